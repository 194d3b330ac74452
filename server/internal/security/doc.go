// Package security inspects the TLS certificate of the upstream script
// endpoint so operators see an expiring or unreachable source before the
// dashboard silently switches to demo data.
package security
