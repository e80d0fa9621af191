// Package services wires the growth co-pilot together.
//
// Build turns a config.Config into a Registry holding the store, event
// publisher, memory service, orchestrator and Planner. Planner is the
// use-case layer shared by the HTTP API and the CLI: it runs the pipeline,
// stores plans, and feeds experiment outcomes back into strategy memory.
package services
