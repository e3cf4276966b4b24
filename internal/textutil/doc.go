// Package textutil provides small text helpers shared by the orchestrator and
// the CLI: file-safe slugs for output names and rune-aware excerpts for
// table cells.
package textutil
