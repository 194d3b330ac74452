// Package api implements the REST API consumed by the workload dashboard.
//
// Handlers read snapshots produced by the dataset loader (or the snapshot
// store when cached data is acceptable) and return JSON. Upstream failures
// never reach the client: the loader substitutes the demo dataset and the
// insights route falls back to locally computed hints.
package api
