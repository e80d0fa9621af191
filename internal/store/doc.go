// Package store persists growth plans, experiment outcomes and strategy
// memory.
//
// Two Repository implementations exist: Memory keeps everything in process
// and SQLite writes to a database file through modernc.org/sqlite. Both
// satisfy memory.Store, so either can back the pipeline's strategy memory.
//
// Saving a plan registers the business, stores the request and plan as JSON
// and assigns an id to each experiment. Experiment ids are what outcome
// reports refer to.
package store
