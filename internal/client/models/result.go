package models

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// FailureReason classifies a failed verification for the presentation layer.
type FailureReason string

const (
	ReasonNone FailureReason = ""
	// ReasonMalformedLink: missing or unparseable parameters, no network call made.
	ReasonMalformedLink FailureReason = "malformed_link"
	// ReasonCredentialRejected: the server refused the token; a new link is needed.
	ReasonCredentialRejected FailureReason = "credential_rejected"
	// ReasonNetworkOrServer: transport failure or 5xx; the same token may be retried.
	ReasonNetworkOrServer FailureReason = "network_or_server"
)

// VerificationResult is produced at most once per verification attempt.
type VerificationResult struct {
	Outcome      Outcome
	Profile      *UserProfile
	Route        string
	ErrorMessage string
	Reason       FailureReason
}

func (r VerificationResult) Succeeded() bool { return r.Outcome == OutcomeSuccess }

// Success builds a successful result.
func Success(profile *UserProfile, route string) VerificationResult {
	return VerificationResult{Outcome: OutcomeSuccess, Profile: profile, Route: route}
}

// Failure builds a failed result.
func Failure(reason FailureReason, message string) VerificationResult {
	return VerificationResult{Outcome: OutcomeFailure, Reason: reason, ErrorMessage: message}
}
