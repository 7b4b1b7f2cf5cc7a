// Package verification implements the state machine that turns a classified
// link into an authenticated session.
//
// A Session starts in StateVerifying and ends in StateVerified or StateError.
// Only the attempt that wins flight.Coordinator.Begin talks to the network;
// every other entry reuses the retained result or waits for the running
// attempt. Errors and panics never leave the package: they become the error
// state, and the coordinator is always completed.
package verification
