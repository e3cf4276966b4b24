// Package assembly merges per-scene artifacts into one gapless output.
//
// BuildTimeline orders scenes and fills every missing artifact with a
// flagged filler placeholder so no entry is ever incomplete. Engine.Assemble
// synthesizes those fillers, trims or pads every segment to its slot,
// concatenates one track per kind, overlays the UI track on the visual
// track, muxes the voice track, verifies the probed duration against the
// planned total, and writes a JSON manifest. Any media failure is fatal and
// reported as services.ErrAssembly.
package assembly
