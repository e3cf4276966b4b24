// Package model holds the immutable domain values shared across the
// pipeline: scripts and scenes produced by the parser, per-scene artifacts
// produced by the generators, and the render settings carried by a job.
package model
