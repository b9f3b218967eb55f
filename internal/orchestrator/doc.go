// Package orchestrator runs the coordinating loop of the pipeline: one tick
// checks the token budget, dispatches at most one schedulable task, then
// polls every in-flight worker session and reacts. The loop is a single
// serialized control flow; the task workflow map is owned by it exclusively.
//
// Failures never crash the loop. They route through the escalation
// controller, which spawns diagnostic workers, deposits warn pheromones,
// and escalates to human review after the retry threshold.
package orchestrator
