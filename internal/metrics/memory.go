package metrics

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/process"
)

const bytesPerMB = 1024 * 1024

// ResidentMemoryMB returns the resident set size of the process in megabytes.
// When the OS query fails it falls back to the Go runtime's view of memory
// obtained from the system.
func ResidentMemoryMB(pid int) float64 {
	if proc, err := process.NewProcess(int32(pid)); err == nil {
		if info, err := proc.MemoryInfo(); err == nil && info != nil {
			return float64(info.RSS) / bytesPerMB
		}
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return float64(stats.Sys) / bytesPerMB
}
