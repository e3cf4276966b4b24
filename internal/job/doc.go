// Package job persists storyreel jobs in SQLite and defines the job
// lifecycle the orchestrator drives.
//
// A Job moves Parsing → VoiceGeneration → VisualGeneration → UIGeneration →
// Assembly → Completed, or ends in Failed or Cancelled. Progress is held at
// fixed stage boundaries and never decreases. The Store keeps one row per job
// with JSON columns for settings, recorded stage errors, and artifact
// references; it is a keyed record store, not a queue.
//
// The schema version lives in PRAGMA user_version; a mismatch asks the user
// to remove the database.
package job
