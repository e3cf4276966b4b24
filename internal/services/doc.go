// Package services defines shared utilities consumed by the orchestrator,
// the assembly engine and the external collaborator wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, scene keys, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     retryable, fallback-worthy, or fatal to the job.
//
// Use these helpers when wiring new collaborator calls so operational
// behaviour (error handling, observability, retries) stays uniform across the
// pipeline.
package services
