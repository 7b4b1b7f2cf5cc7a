package verification

import (
	"github.com/dmitrijs2005/careercoach/internal/client/models"
)

type State string

const (
	StateVerifying State = "verifying"
	StateVerified  State = "verified"
	StateError     State = "error"
)

// Snapshot is what the presentation layer renders. Result is nil exactly
// when State is StateVerifying.
type Snapshot struct {
	State  State
	Result *models.VerificationResult
}

func verifying() Snapshot {
	return Snapshot{State: StateVerifying}
}

func settled(res models.VerificationResult) Snapshot {
	if res.Succeeded() {
		return Snapshot{State: StateVerified, Result: &res}
	}
	return Snapshot{State: StateError, Result: &res}
}

// Terminal reports whether the snapshot is verified or error.
func (s Snapshot) Terminal() bool {
	return s.State != StateVerifying
}

// Route is the post-auth destination, set when verified.
func (s Snapshot) Route() string {
	if s.State != StateVerified || s.Result == nil {
		return ""
	}
	return s.Result.Route
}

// ErrorMessage is the text to show, set in the error state.
func (s Snapshot) ErrorMessage() string {
	if s.State != StateError || s.Result == nil {
		return ""
	}
	return s.Result.ErrorMessage
}

func (s Snapshot) Profile() *models.UserProfile {
	if s.Result == nil {
		return nil
	}
	return s.Result.Profile
}
