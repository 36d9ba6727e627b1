// Package notifier delivers outbound chat messages on behalf of the monitor
// loop and the heartbeat.
//
// Deliver is synchronous: it returns only once the transport acknowledged
// the message or every retry failed, so callers can decide whether to
// advance their own state. Sends are paced by a token bucket, retried with
// jittered exponential backoff and each attempt is bounded by a timeout.
//
// Successful sends are kept in a small in-memory history for /status, and
// every outcome is published on the event bus and appended to the audit
// store when one is configured.
package notifier
