// Package journal implements a best-effort Postgres audit trail for
// terminal outcomes: every image.failed and ImageProcessed emission is
// also recorded here, keyed by its event id, so an operator can list
// and manually republish dead-lettered jobs (cmd/imageworkerctl).
//
// The journal is not on the hot path's critical path: write failures
// are logged and swallowed by the caller (internal/consumer) — a
// missing audit row must never block ack/nack (spec §4.5/§7).
package journal
