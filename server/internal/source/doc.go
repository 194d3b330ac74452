// Package source fetches data from the upstream spreadsheet script.
//
// The script is a single URL that answers GET requests selected by an
// "action" query parameter: action=workload returns the wide faculty rows,
// action=insights returns a summary with recommendations.
//
// Client adds upstream authentication (API key, bearer token, basic auth) in
// a RoundTripper, retries transient failures with exponential backoff and
// decodes brotli or gzip response bodies. Every failure is reported as an
// error wrapping ErrUpstream; callers decide how to fall back.
package source
