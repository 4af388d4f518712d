// Package middleware provides the HTTP middleware chain of the row API:
// request IDs, trusted client IPs, CORS, access logging, metrics, API key
// authentication and per-client rate limiting.
package middleware
