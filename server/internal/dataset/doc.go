// Package dataset runs the workload pipeline against the upstream source and
// turns every run into a stored snapshot. When the upstream cannot supply a
// usable dataset the snapshot carries the fixed demo records instead, so the
// API always has something to serve.
package dataset
