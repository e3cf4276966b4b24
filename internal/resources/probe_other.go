//go:build !linux

package resources

import "context"

// SystemProbe falls back to unlimited headroom off Linux.
type SystemProbe struct{}

// NewSystemProbe constructs a probe; diskPath is ignored on this platform.
func NewSystemProbe(string) *SystemProbe {
	return &SystemProbe{}
}

// Headroom implements Probe.
func (p *SystemProbe) Headroom(ctx context.Context) (Headroom, error) {
	return Unlimited{}.Headroom(ctx)
}
