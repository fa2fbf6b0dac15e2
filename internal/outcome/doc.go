// Package outcome implements the outcome publisher (C6): emits
// ImageProcessed and image.failed JSON events to the image.results
// fanout exchange.
//
// Publish failures are logged and swallowed by the caller (internal/consumer)
// — they must never block the ack/nack decision (spec §4.5/§7).
package outcome
