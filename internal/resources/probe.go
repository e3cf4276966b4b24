package resources

import "context"

// Headroom is a live view of host capacity. Negative memory or disk values
// mean "unknown" and are not checked.
type Headroom struct {
	AvailableMemoryMB int
	CPUPercent        float64
	FreeDiskMB        int
}

// Probe samples host headroom.
type Probe interface {
	Headroom(ctx context.Context) (Headroom, error)
}

// Unlimited reports unknown memory and disk and idle CPU.
type Unlimited struct{}

// Headroom implements Probe.
func (Unlimited) Headroom(context.Context) (Headroom, error) {
	return Headroom{AvailableMemoryMB: -1, FreeDiskMB: -1}, nil
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) (Headroom, error)

// Headroom implements Probe.
func (f ProbeFunc) Headroom(ctx context.Context) (Headroom, error) {
	return f(ctx)
}

// NewProbe returns the probe named by kind: "system" samples the host,
// anything else is Unlimited.
func NewProbe(kind, diskPath string) Probe {
	if kind == "system" {
		return NewSystemProbe(diskPath)
	}
	return Unlimited{}
}
