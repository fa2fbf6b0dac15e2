// Package backoff implements the delay-scheduled republish (C3).
//
// ScheduleRepublish never blocks its caller — it owns its own timer
// (time.AfterFunc) and the consumer dispatch slot is released the moment
// the call returns, per spec §4.3/§5. Ordering across a backoff-delayed
// message and subsequently-published messages for the same partition is
// explicitly not guaranteed.
package backoff
