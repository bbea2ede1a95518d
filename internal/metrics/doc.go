// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Lifecycle state, losses, polls, reloads and abandonments
//   - Recovery cycle duration and fallback visibility
//   - Channel message routing outcomes
//   - Team snapshot fetch latency
//   - Journal write throughput
//
// A Metrics value outlives application generations, so one registry
// serves the whole process.
package metrics
