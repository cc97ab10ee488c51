// Package api implements the HTTP status server of the device.
//
// This package provides:
//   - GET /health: liveness plus run loop state and dependency checks
//   - GET /entities: point-in-time snapshot of every entity
//   - GET /entities/{id}: one entity
//   - GET /entities/{id}/history: stored states, when state history is enabled
//   - GET /metrics: Prometheus exposition
//   - Middleware stack (request ID, logging, recovery)
//
// The server is read-only. Commands reach the device through MQTT only.
package api
