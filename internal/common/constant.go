// Package common contains shared constants and small helpers used across
// careercoach client components.
package common

const (
	// AuthorizationHeaderName carries the bearer credential on outbound requests.
	AuthorizationHeaderName = "Authorization"

	// RequestIDHeaderName carries a per-request correlation id.
	RequestIDHeaderName = "X-Request-ID"

	// DefaultStoragePrefix namespaces secure-storage entries.
	DefaultStoragePrefix = "careercoach"
)
