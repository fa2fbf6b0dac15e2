// Package consumer implements the per-partition consumer and the
// Received → Executing → Faulted/Terminal message state machine
// (spec §4.5): it wires internal/mq.Consumer, internal/pipeline,
// internal/backoff and internal/outcome together into the decision of
// whether a message is retried, dead-lettered, or acked as done.
//
// A publish failure on the outcome or journal side is logged and
// swallowed — it never changes the ack/nack decision, since the
// delivery's fate is owned by the pipeline's result, not by whether the
// side effects of reporting it succeeded.
package consumer
