// Package events publishes plan and strategy-memory changes.
//
// NATSPublisher sends JSON events over core NATS; Nop is used when no NATS
// URL is configured. Publishing is best effort: callers log failures and
// carry on.
package events
