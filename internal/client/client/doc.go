// Package client talks to the careercoach backend on behalf of the
// session-establishment core.
//
// # Overview
//
// The package provides:
//  1. The Client contract: send-magic-link, verify-token, refresh,
//     session-check and logout.
//  2. HTTPClient, a JSON-over-HTTP implementation that attaches the bearer
//     token, tags every request with an X-Request-ID, and transparently
//     redeems the refresh token once when an authenticated call returns 401.
//     Concurrent refreshes are collapsed into one request.
//  3. Local database bootstrap (InitDatabase, RunMigrations) that opens the
//     SQLite file and applies the embedded goose migrations.
//
// # Error Handling
//
// Failures are *APIError values classified by Kind, matched with errors.Is:
//
//   - ErrNetwork   no response (transport error, timeout, cancellation)
//   - ErrRejected  4xx, the server message is authoritative (ErrUnauthorized for 401)
//   - ErrServer    5xx or an unusable body
//
// ErrRateLimited and ErrInvalidEmail are produced locally, before any request.
package client
