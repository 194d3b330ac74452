// Package types defines the workload records shared by every server package.
// These are the canonical in-memory representations of faculty assignments;
// their JSON tags are the field names served by the REST API.
package types
