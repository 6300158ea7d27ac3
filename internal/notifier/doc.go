// Package notifier delivers reminder texts to recipients.
//
// Deliveries run synchronously on the caller's goroutine (a task-engine
// worker) under the caller's deadline. A token bucket caps the outgoing send
// rate. An optional dedup window suppresses an identical text to the same
// recipient, which guards against double firings around restarts. A small
// history of recent deliveries is kept for diagnostics.
package notifier
