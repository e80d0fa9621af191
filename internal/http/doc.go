// Package http serves the growth co-pilot REST API on Echo.
//
// Routes:
//
//	GET   /health
//	GET   /metrics
//	POST  /api/v1/plans
//	GET   /api/v1/businesses/:id/plans
//	GET   /api/v1/businesses/:id/summary
//	GET   /api/v1/businesses/:id/memory
//	POST  /api/v1/businesses/:id/memory/failures
//	PATCH /api/v1/experiments/:id
package http
