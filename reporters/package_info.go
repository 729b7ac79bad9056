// Package reporters contains ldtest.Reporter implementations that publish a run's lifecycle
// events to machines rather than people: a JSON-lines event log and Prometheus metrics.
package reporters
