// Package models holds the client-side data model of session establishment.
package models

// OnboardingStatus mirrors the server's onboarding progress for a user.
type OnboardingStatus string

const (
	OnboardingNotStarted OnboardingStatus = "not_started"
	OnboardingInProgress OnboardingStatus = "in_progress"
	OnboardingCompleted  OnboardingStatus = "completed"
)

// UserProfile is the cached mirror of the server-side user. The server stays
// authoritative; the client refreshes it opportunistically.
type UserProfile struct {
	ID               string           `json:"id" validate:"required"`
	Email            string           `json:"email" validate:"omitempty,email"`
	Name             string           `json:"name"`
	OnboardingStatus OnboardingStatus `json:"onboardingStatus" validate:"omitempty,oneof=not_started in_progress completed"`
	OnboardingStep   string           `json:"onboardingStep,omitempty"`
}

// Credential is the single live session on the device. Writing a new one
// replaces the previous.
type Credential struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken,omitempty"`
	Profile      *UserProfile `json:"user,omitempty"`
}
