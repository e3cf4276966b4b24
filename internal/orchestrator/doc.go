// Package orchestrator drives a job from raw script to assembled video.
//
// A run parses the script, runs the voice, visual, and UI stages in order,
// and hands the per-scene artifacts to the assembly engine. Within a stage
// scenes fan out through an errgroup bounded by pipeline.scene_parallelism;
// every generator call takes a resource lease, passes the stage's circuit
// breaker, and runs under a per-call deadline, with the whole attempt
// wrapped by the retry handler. A scene that still fails is recorded on the
// job and left without an artifact, which assembly replaces with a flagged
// filler. Parse and assembly failures end the job as Failed; cancellation
// discards partial artifacts and ends it as Cancelled.
//
// The job store handle is passed in explicitly and every write happens at a
// stage boundary.
package orchestrator
