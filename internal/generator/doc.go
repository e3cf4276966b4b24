// Package generator holds the per-scene content generators for the three
// generation stages.
//
// Backends form a closed set chosen by configuration: voice "silent" or
// "espeak", visual "card", ui "caption" or "none". Each Generate call writes
// one artifact for one scene into the job's artifact directory and returns
// its path. An empty path with a nil error means the scene has no content of
// that kind; assembly fills the slot. Failures are tagged with
// services.ErrExternalTool so the orchestrator's retry policy can act on them.
package generator
