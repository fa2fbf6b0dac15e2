// Package pipeline implements the deadline-bounded stage executor (C1),
// the fault classifier (C2) and the fetch/transform/store processing
// pipeline (C4).
//
// # Deadline
//
// RunWithDeadline races a task against a wall-clock timer using a plain
// cancellable context plus a buffered result channel — Go's native
// substitute for the "promise race" described in spec §9. On timeout the
// caller must not wait on the task further; cancelling the context is the
// best-effort signal for the task to stop early, physical cancellation of
// underlying I/O is not guaranteed.
//
// # Classification
//
// Classify maps any error to {retryable, code} using the ordered rules
// in spec §4.2. The inner transform retry base (2^k seconds) is
// intentionally hardcoded per spec §9 — not yet externalized into
// RetryPolicy; flagging here rather than guessing at a config surface
// the spec explicitly declines to define.
package pipeline
