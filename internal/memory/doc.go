// Package memory holds strategy memory: the per-business set of experiments
// that already failed and should not be proposed again.
//
// Store is the minimal read/write contract the pipeline depends on. MemStore
// keeps it in process; the store package provides a SQLite implementation.
// Service adds validation, tracing, metrics and failure notifications, and
// maps reported experiment outcomes (FAILED, CANCELED_LOW_IMPACT, NO_IMPACT)
// onto memory writes.
package memory
