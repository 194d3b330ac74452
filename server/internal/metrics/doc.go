// Package metrics exposes server counters in the Prometheus text format.
//
// Registry keeps a handful of fixed counters and gauges (pipeline runs by
// origin, upstream failures, rejected rows, HTTP requests by route and code,
// records by status, connected stream clients). Gather converts them to
// client_model MetricFamily messages; Handler encodes them with expfmt,
// negotiating the format from the Accept header.
package metrics
