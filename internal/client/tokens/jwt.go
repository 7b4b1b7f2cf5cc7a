// Package tokens inspects bearer credentials issued by the backend.
//
// The client never holds the signing key, so tokens are parsed without
// signature verification. The results are hints (expiry, subject) and are
// never used to grant access.
package tokens

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/careercoach/internal/client/models"
	"github.com/golang-jwt/jwt/v5"
)

var ErrNotJWT = errors.New("token is not a JWT")

// Claims are the claims the backend puts into access tokens.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

func parse(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, errors.Join(ErrNotJWT, err)
	}
	return claims, nil
}

// Expired reports whether token carries an exp claim that is before now.
// Opaque tokens and tokens without exp are never considered expired.
func Expired(token string, now time.Time) bool {
	claims, err := parse(token)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(now)
}

// MinimalProfile builds a profile from the token's claims. It is used when
// the credential is valid but the profile fetch failed. Onboarding status is
// unknown and therefore reported as not started.
func MinimalProfile(token string) (*models.UserProfile, error) {
	claims, err := parse(token)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return &models.UserProfile{
		ID:               claims.Subject,
		Email:            claims.Email,
		Name:             claims.Name,
		OnboardingStatus: models.OnboardingNotStarted,
	}, nil
}
