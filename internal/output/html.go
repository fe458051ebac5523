package output

import (
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/torosent/loadsurge/internal/metrics"
)

type htmlLatencyRow struct {
	Op    metrics.Op
	Stats metrics.LatencyStats
}

// htmlReportData contains all data needed for the HTML report template.
type htmlReportData struct {
	Report      Report
	GeneratedAt string
	Latency     []htmlLatencyRow
	Failed      int
}

// GenerateHTMLReport renders r as a standalone HTML page.
func GenerateHTMLReport(w io.Writer, r Report) error {
	data := htmlReportData{
		Report:      r,
		GeneratedAt: r.FinishedAt.Format(time.RFC3339),
	}
	for _, op := range metrics.SortedOps(r.Latency) {
		data.Latency = append(data.Latency, htmlLatencyRow{Op: op, Stats: r.Latency[op]})
	}
	for _, wr := range r.Workers {
		if wr.ExitCode != 0 {
			data.Failed++
		}
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.Round(time.Millisecond).String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatPercent": func(part, total int64) string {
			if total == 0 {
				return "0.0"
			}
			return fmt.Sprintf("%.1f", (float64(part)/float64(total))*100)
		},
		"upper": strings.ToUpper,
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Loadsurge Report {{.Report.RunID}}</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #0f766e 0%, #1e3a8a 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 { font-size: 2rem; margin-bottom: 10px; }
        header .meta { opacity: 0.9; font-size: 0.9rem; }
        .content { padding: 40px; }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(220px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #0f766e;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value { font-size: 2rem; font-weight: bold; }
        .card .subvalue { font-size: 0.85rem; color: #6c757d; margin-top: 5px; }
        .card.success { border-left-color: #10b981; }
        .card.error { border-left-color: #ef4444; }
        .section { margin-bottom: 40px; }
        .section h2 {
            font-size: 1.4rem;
            margin-bottom: 16px;
            padding-bottom: 8px;
            border-bottom: 2px solid #e5e7eb;
        }
        table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
        th, td { padding: 10px 12px; text-align: left; border-bottom: 1px solid #e5e7eb; }
        th { background: #f8f9fa; font-weight: 600; color: #495057; }
        tr.failed td { color: #b91c1c; }
        .badge { padding: 2px 8px; border-radius: 4px; font-size: 0.8rem; font-weight: 600; }
        .badge.ok { background: #d1fae5; color: #065f46; }
        .badge.fail { background: #fee2e2; color: #991b1b; }
    </style>
</head>
<body>
<div class="container">
    <header>
        <h1>Loadsurge Report</h1>
        <div class="meta">Run {{.Report.RunID}} &middot; generated {{.GeneratedAt}} &middot; duration {{formatDuration .Report.Duration}}</div>
    </header>
    <div class="content">
        <div class="grid">
            <div class="card {{if eq .Report.ExitCode 0}}success{{else}}error{{end}}">
                <h3>Exit code</h3>
                <div class="value">{{.Report.ExitCode}}</div>
                <div class="subvalue">{{.Failed}} of {{len .Report.Workers}} workers failed</div>
            </div>
            <div class="card">
                <h3>Sessions opened</h3>
                <div class="value">{{.Report.Totals.Opened}}</div>
                <div class="subvalue">{{.Report.Totals.Closed}} closed</div>
            </div>
            <div class="card {{if gt .Report.Totals.FailedToOpen 0}}error{{end}}">
                <h3>Failed to open</h3>
                <div class="value">{{.Report.Totals.FailedToOpen}}</div>
            </div>
            <div class="card">
                <h3>Interactions</h3>
                <div class="value">{{.Report.Totals.Interactions}}</div>
                <div class="subvalue">{{formatPercent .Report.Totals.Errors .Report.Totals.Interactions}}% errors</div>
            </div>
            <div class="card">
                <h3>Memory</h3>
                <div class="value">{{formatFloat .Report.Totals.MemoryMB}} MB</div>
            </div>
        </div>

        {{if .Report.Settings}}
        <div class="section">
            <h2>Settings</h2>
            <table>
                {{range .Report.Settings}}
                <tr><th>{{.Name}}</th><td>{{.Value}}</td></tr>
                {{end}}
            </table>
        </div>
        {{end}}

        {{if .Latency}}
        <div class="section">
            <h2>Latency</h2>
            <table>
                <tr><th>Operation</th><th>Count</th><th>Errors</th><th>Mean (ms)</th><th>P50 (ms)</th><th>P90 (ms)</th><th>P99 (ms)</th><th>Max (ms)</th></tr>
                {{range .Latency}}
                <tr>
                    <td>{{.Op}}</td><td>{{.Stats.Count}}</td><td>{{.Stats.Errors}}</td>
                    <td>{{formatFloat .Stats.MeanMs}}</td><td>{{formatFloat .Stats.P50Ms}}</td>
                    <td>{{formatFloat .Stats.P90Ms}}</td><td>{{formatFloat .Stats.P99Ms}}</td>
                    <td>{{formatFloat .Stats.MaxMs}}</td>
                </tr>
                {{end}}
            </table>
        </div>
        {{end}}

        {{if .Report.Errors}}
        <div class="section">
            <h2>Errors</h2>
            <table>
                <tr><th>Operation</th><th>Type</th><th>Count</th></tr>
                {{range .Report.Errors}}
                <tr><td>{{upper .Op}}</td><td>{{.Type}}</td><td>{{.Count}}</td></tr>
                {{end}}
            </table>
        </div>
        {{end}}

        <div class="section">
            <h2>Workers</h2>
            <table>
                <tr><th>Worker</th><th>PID</th><th>Opened (Closed)</th><th>Failed to open</th><th>Interactions</th><th>Errors</th><th>Memory MB</th><th>Exit</th></tr>
                {{range .Report.Workers}}
                <tr{{if ne .ExitCode 0}} class="failed"{{end}}>
                    <td>{{.ID}}</td><td>{{.PID}}</td><td>{{.Opened}} ({{.Closed}})</td><td>{{.FailedToOpen}}</td>
                    <td>{{.Interactions}}</td><td>{{.Errors}}</td><td>{{formatFloat .MemoryMB}}</td>
                    <td><span class="badge {{if eq .ExitCode 0}}ok{{else}}fail{{end}}">{{.Exit}}</span></td>
                </tr>
                {{end}}
            </table>
        </div>
    </div>
</div>
</body>
</html>
`
