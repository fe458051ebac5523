// Package dashboard renders a live terminal view of a run: one row per
// worker, the aggregated totals, the settings and the tail of worker logs.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/loadsurge/internal/controller"
	"github.com/torosent/loadsurge/internal/metrics"
)

const (
	refreshInterval = 500 * time.Millisecond
	historySize     = 100
	maxErrorRows    = 10
)

// Dashboard renders a live terminal UI fed by a controller view.
type Dashboard struct {
	view         *controller.View
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	grid          *ui.Grid
	summaryPara   *widgets.Paragraph
	settingsPara  *widgets.Paragraph
	workerTable   *widgets.Table
	activeSpark   *widgets.SparklineGroup
	latencyPara   *widgets.Paragraph
	errorList     *widgets.List
	logList       *widgets.List
	activeHistory []float64
}

// New initialises the terminal. shutdownFunc runs when the user presses q or
// Ctrl-C; it should cancel the run, the dashboard keeps drawing until Stop.
func New(view *controller.View, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dashboard{
		view:          view,
		ctx:           ctx,
		cancel:        cancel,
		shutdownFunc:  shutdownFunc,
		activeHistory: make([]float64, 0, historySize),
	}
	d.initWidgets()
	d.setupGrid()
	return d, nil
}

func (d *Dashboard) initWidgets() {
	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run"
	d.summaryPara.Text = "Starting workers..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.settingsPara = widgets.NewParagraph()
	d.settingsPara.Title = "Settings"
	d.settingsPara.BorderStyle.Fg = ui.ColorCyan

	d.workerTable = widgets.NewTable()
	d.workerTable.Title = "Workers"
	d.workerTable.Rows = workerRows(nil)
	d.workerTable.TextStyle = ui.NewStyle(ui.ColorWhite)
	d.workerTable.RowSeparator = false
	d.workerTable.FillRow = true
	d.workerTable.RowStyles[0] = ui.NewStyle(ui.ColorCyan, ui.ColorClear, ui.ModifierBold)
	d.workerTable.BorderStyle.Fg = ui.ColorCyan

	spark := widgets.NewSparkline()
	spark.Title = "Active sessions"
	spark.LineColor = ui.ColorGreen
	spark.Data = []float64{0}
	d.activeSpark = widgets.NewSparklineGroup(spark)
	d.activeSpark.Title = "Sessions"
	d.activeSpark.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency"
	d.latencyPara.Text = "Waiting for data..."
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.errorList = widgets.NewList()
	d.errorList.Title = "Errors"
	d.errorList.Rows = []string{"[No errors](fg:green)"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan

	d.logList = widgets.NewList()
	d.logList.Title = "Log"
	d.logList.Rows = []string{""}
	d.logList.TextStyle = ui.NewStyle(ui.ColorWhite)
	d.logList.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)
	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(0.55, d.summaryPara),
			ui.NewCol(0.45, d.settingsPara),
		),
		ui.NewRow(0.30,
			ui.NewCol(1.0, d.workerTable),
		),
		ui.NewRow(0.20,
			ui.NewCol(0.4, d.activeSpark),
			ui.NewCol(0.3, d.latencyPara),
			ui.NewCol(0.3, d.errorList),
		),
		ui.NewRow(0.34,
			ui.NewCol(1.0, d.logList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.update()
	d.render()

	for {
		select {
		case <-d.ctx.Done():
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.mu.Lock()
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				d.mu.Unlock()
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	workers := d.view.Workers()
	snaps := d.view.Snapshots()
	totals := metrics.Sum(snaps)
	elapsed := time.Since(d.view.Started())

	d.activeHistory = append(d.activeHistory, float64(totals.Active))
	if len(d.activeHistory) > historySize {
		d.activeHistory = d.activeHistory[1:]
	}
	d.activeSpark.Sparklines[0].Data = d.activeHistory
	d.activeSpark.Title = fmt.Sprintf("Sessions | Active: %d | Opened: %d | Closed: %d", totals.Active, totals.Opened, totals.Closed)

	d.summaryPara.Text = summaryText(totals, d.view.Running(), len(workers), elapsed)
	d.settingsPara.Text = settingsText(d.view.Settings())
	d.workerTable.Rows = workerRows(workers)
	d.latencyPara.Text = latencyText(metrics.MergeLatency(snaps))
	d.errorList.Rows = errorRows(snaps)

	height := d.logList.Inner.Dy()
	if height <= 0 {
		height = 10
	}
	d.logList.Rows = logRows(d.view.Logs(), height)
	d.logList.ScrollBottom()
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()
	ui.Render(d.grid)
}

func summaryText(t metrics.Totals, running, workers int, elapsed time.Duration) string {
	return fmt.Sprintf(
		"Elapsed: %s | Workers running: %d/%d\nActive sessions: %d | Opened: %d | Closed: %d | Failed to open: %d\nInteractions: %d | Errors: %d | Memory: %.2f MB",
		elapsed.Round(time.Second), running, workers,
		t.Active, t.Opened, t.Closed, t.FailedToOpen,
		t.Interactions, t.Errors, t.MemoryMB,
	)
}

func settingsText(settings []controller.Setting) string {
	if len(settings) == 0 {
		return ""
	}
	width := 0
	for _, s := range settings {
		if len(s.Name) > width {
			width = len(s.Name)
		}
	}
	lines := make([]string, 0, len(settings))
	for _, s := range settings {
		lines = append(lines, fmt.Sprintf("%-*s  %s", width, s.Name+":", s.Value))
	}
	return strings.Join(lines, "\n")
}

// workerRows renders the table, header first. The "Opened" column shows
// opened sessions with closed ones in parentheses.
func workerRows(workers []controller.WorkerStatus) [][]string {
	rows := [][]string{{"Worker", "PID", "Opened (Closed)", "Interactions", "Errors", "Memory MB", "State"}}
	for _, w := range workers {
		s := w.Snapshot
		rows = append(rows, []string{
			fmt.Sprint(w.ID),
			fmt.Sprint(w.PID),
			fmt.Sprintf("%d (%d)", s.Opened, s.Closed),
			fmt.Sprint(s.Interactions),
			fmt.Sprint(s.Errors),
			fmt.Sprintf("%.2f", s.MemoryMB),
			workerState(w),
		})
	}
	return rows
}

func workerState(w controller.WorkerStatus) string {
	switch {
	case w.Exited && w.Exit.Success():
		return "done"
	case w.Exited:
		return w.Exit.String()
	case !w.HasSnapshot:
		return "starting"
	default:
		return "running"
	}
}

func logRows(lines []controller.LogLine, limit int) []string {
	if len(lines) == 0 {
		return []string{""}
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	rows := make([]string, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, fmt.Sprintf("%s [%d] %s", l.Time.Format("15:04:05"), l.WorkerID, escape(l.Text)))
	}
	return rows
}

// escape keeps worker text from being parsed as termui style markup.
func escape(text string) string {
	return strings.NewReplacer("[", "(", "]", ")").Replace(text)
}

func latencyText(latency map[metrics.Op]metrics.LatencyStats) string {
	if len(latency) == 0 {
		return "Waiting for data..."
	}
	lines := make([]string, 0, len(latency))
	for _, op := range metrics.SortedOps(latency) {
		s := latency[op]
		lines = append(lines, fmt.Sprintf("%-8s n=%d mean %.1fms p99 %.1fms", op, s.Count, s.MeanMs, s.P99Ms))
	}
	return strings.Join(lines, "\n")
}

func errorRows(snaps []metrics.Snapshot) []string {
	rows := metrics.FlattenErrorBuckets(metrics.MergeErrorTypes(snaps))
	if len(rows) == 0 {
		return []string{"[No errors](fg:green)"}
	}
	if len(rows) > maxErrorRows {
		rows = rows[:maxErrorRows]
	}
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		formatted = append(formatted, fmt.Sprintf("[%s %s](fg:red) %d", strings.ToUpper(row.Op), escape(row.Type), row.Count))
	}
	return formatted
}
