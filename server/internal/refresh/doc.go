// Package refresh re-runs the workload pipeline on a cron schedule so the
// snapshot store, the WebSocket stream and the alert engine stay current
// without a dashboard request driving each upstream fetch.
package refresh
