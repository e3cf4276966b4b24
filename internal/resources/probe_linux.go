//go:build linux

package resources

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// loadShift is the fixed-point shift of sysinfo load averages.
const loadShift = 16

// SystemProbe samples memory and load via sysinfo(2) and disk via statfs(2).
type SystemProbe struct {
	diskPath string
}

// NewSystemProbe constructs a probe that checks free space under diskPath.
func NewSystemProbe(diskPath string) *SystemProbe {
	if diskPath == "" {
		diskPath = "/"
	}
	return &SystemProbe{diskPath: diskPath}
}

// Headroom implements Probe. CPU utilization is approximated by the one
// minute load average over the number of CPUs.
func (p *SystemProbe) Headroom(context.Context) (Headroom, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return Headroom{}, fmt.Errorf("sysinfo: %w", err)
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	available := (uint64(info.Freeram) + uint64(info.Bufferram)) * unit

	load := float64(info.Loads[0]) / float64(1<<loadShift)
	cpus := runtime.NumCPU()
	cpuPercent := 0.0
	if cpus > 0 {
		cpuPercent = load / float64(cpus) * 100
	}

	var fs unix.Statfs_t
	if err := unix.Statfs(p.diskPath, &fs); err != nil {
		return Headroom{}, fmt.Errorf("statfs %s: %w", p.diskPath, err)
	}
	freeDisk := uint64(fs.Bavail) * uint64(fs.Bsize)

	return Headroom{
		AvailableMemoryMB: int(available / (1024 * 1024)),
		CPUPercent:        cpuPercent,
		FreeDiskMB:        int(freeDisk / (1024 * 1024)),
	}, nil
}
