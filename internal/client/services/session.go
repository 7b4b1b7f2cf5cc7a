// Package services contains application services for the careercoach client.
// This file defines the session service: requesting magic links, restoring
// a stored session on cold start, completing OAuth sign-in, logout, and
// keeping the credential store in sync with token refreshes.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/careercoach/internal/client/client"
	"github.com/dmitrijs2005/careercoach/internal/client/credentials"
	"github.com/dmitrijs2005/careercoach/internal/client/models"
	"github.com/dmitrijs2005/careercoach/internal/client/tokens"
	"github.com/dmitrijs2005/careercoach/internal/client/verification"
	"github.com/dmitrijs2005/careercoach/internal/logging"
	"github.com/dmitrijs2005/careercoach/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// DefaultSignedOutRoute is where logout and revocation land.
const DefaultSignedOutRoute = "/login"

const msgOAuthRejected = "sign-in was not accepted, please try again"

type RestoreState string

const (
	RestoreAuthenticated   RestoreState = "authenticated"
	RestoreUnauthenticated RestoreState = "unauthenticated"
	// RestoreOffline: a credential is stored but could not be checked. It is
	// kept and the check may be repeated.
	RestoreOffline RestoreState = "offline"
)

// RestoreResult describes the outcome of a cold-start restore. Profile is the
// server's profile when authenticated and the cached one when offline.
type RestoreResult struct {
	State   RestoreState
	Profile *models.UserProfile
	Route   string
	Err     error
}

// CredentialStore is the persistence the session service needs.
type CredentialStore interface {
	Persist(ctx context.Context, cred models.Credential) error
	Load(ctx context.Context) (*models.Credential, error)
	UpdateTokens(ctx context.Context, accessToken, refreshToken string) error
	UpdateProfile(ctx context.Context, profile models.UserProfile) error
	Clear(ctx context.Context) error
}

// SessionService defines session lifecycle operations for the CLI.
//
// Contract:
//   - RequestMagicLink: ask the server to email a sign-in link.
//   - Restore: resume a stored session without re-verification.
//   - WatchRestore: repeat Restore while offline.
//   - CompleteOAuth: sign in with a bearer token from an OAuth redirect.
//   - Logout: revoke server-side, clear local state, then navigate away.
//
// It also implements client.TokenListener.
type SessionService interface {
	RequestMagicLink(ctx context.Context, email string) (string, error)
	Restore(ctx context.Context) RestoreResult
	WatchRestore(ctx context.Context, interval time.Duration) RestoreResult
	CompleteOAuth(ctx context.Context, token, redirect string) models.VerificationResult
	Logout(ctx context.Context) error

	client.TokenListener
}

type sessionService struct {
	api            client.Client
	store          CredentialStore
	nav            verification.Navigator
	routes         verification.Routes
	signedOutRoute string
	log            logging.Logger
	metrics        metrics.Recorder
	now            func() time.Time
	oauth          singleflight.Group
}

type SessionOption func(*sessionService)

func WithSessionLogger(l logging.Logger) SessionOption {
	return func(s *sessionService) { s.log = l }
}

func WithSessionMetrics(m metrics.Recorder) SessionOption {
	return func(s *sessionService) { s.metrics = m }
}

// WithSignedOutRoute overrides DefaultSignedOutRoute.
func WithSignedOutRoute(route string) SessionOption {
	return func(s *sessionService) {
		if route != "" {
			s.signedOutRoute = route
		}
	}
}

func withClock(now func() time.Time) SessionOption {
	return func(s *sessionService) { s.now = now }
}

// NewSessionService constructs a SessionService. nav may be nil, in which
// case logout and revocation only clear state.
func NewSessionService(api client.Client, store CredentialStore, nav verification.Navigator, routes verification.Routes, opts ...SessionOption) SessionService {
	s := &sessionService{
		api:            api,
		store:          store,
		nav:            nav,
		routes:         routes,
		signedOutRoute: DefaultSignedOutRoute,
		log:            logging.Nop(),
		metrics:        metrics.Nop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestMagicLink returns the server's confirmation message.
func (s *sessionService) RequestMagicLink(ctx context.Context, email string) (string, error) {
	msg, err := s.api.SendMagicLink(ctx, email)
	if err != nil {
		return "", fmt.Errorf("send magic link: %w", err)
	}
	return msg, nil
}

// Restore reads the stored credential and validates it with a session check.
// An expired access token is refreshed first when a refresh token exists. An
// explicit rejection clears the store; a network or server failure keeps it
// and reports RestoreOffline.
func (s *sessionService) Restore(ctx context.Context) (res RestoreResult) {
	defer func() { s.metrics.RecordRestore(string(res.State)) }()

	cred, err := s.store.Load(ctx)
	if errors.Is(err, credentials.ErrNoCredential) {
		return RestoreResult{State: RestoreUnauthenticated}
	}
	if err != nil {
		s.log.Error(ctx, "stored credential unreadable, clearing", "op", "restore", "err", err)
		s.clearLocal(ctx)
		return RestoreResult{State: RestoreUnauthenticated, Err: err}
	}

	s.api.SetTokens(cred.AccessToken, cred.RefreshToken)

	if cred.RefreshToken != "" && tokens.Expired(cred.AccessToken, s.now()) {
		if _, err := s.api.RefreshToken(ctx); err != nil {
			return s.restoreFailed(ctx, cred, err)
		}
	}

	profile, err := s.api.GetSession(ctx)
	if err != nil {
		return s.restoreFailed(ctx, cred, err)
	}
	if err := s.store.UpdateProfile(ctx, *profile); err != nil {
		s.log.Warn(ctx, "failed to update cached profile", "op", "restore", "err", err)
	}

	s.log.Info(ctx, "session restored", "op", "restore")
	return RestoreResult{State: RestoreAuthenticated, Profile: profile, Route: s.routes.Resolve("", profile)}
}

func (s *sessionService) restoreFailed(ctx context.Context, cred *models.Credential, err error) RestoreResult {
	if errors.Is(err, client.ErrRejected) {
		s.log.Info(ctx, "stored session rejected, clearing", "op", "restore", "err", err)
		s.clearLocal(ctx)
		return RestoreResult{State: RestoreUnauthenticated, Err: err}
	}

	s.log.Warn(ctx, "session check unavailable, keeping credential", "op", "restore", "err", err)
	return RestoreResult{State: RestoreOffline, Profile: cred.Profile, Err: err}
}

// WatchRestore calls Restore every interval until the result is no longer
// RestoreOffline or ctx is done, and returns the last result. It is started
// after a Restore that came back offline.
func (s *sessionService) WatchRestore(ctx context.Context, interval time.Duration) RestoreResult {
	res := RestoreResult{State: RestoreOffline}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res = s.Restore(ctx)
			if res.State != RestoreOffline {
				return res
			}
		case <-ctx.Done():
			return res
		}
	}
}

// CompleteOAuth signs in with a bearer token delivered by an OAuth redirect.
// Concurrent deliveries of the same token share one sign-in. A profile fetch
// that fails for any reason other than rejection is a soft success.
func (s *sessionService) CompleteOAuth(ctx context.Context, token, redirect string) models.VerificationResult {
	v, _, _ := s.oauth.Do(token, func() (any, error) {
		return s.completeOAuth(context.WithoutCancel(ctx), token, redirect), nil
	})
	return v.(models.VerificationResult)
}

func (s *sessionService) completeOAuth(ctx context.Context, token, redirect string) models.VerificationResult {
	log := s.log.With("op", "oauth")
	if token == "" {
		return models.Failure(models.ReasonMalformedLink, "invalid sign-in link")
	}

	s.api.SetTokens(token, "")
	profile, err := s.api.GetSession(ctx)
	switch {
	case errors.Is(err, client.ErrRejected):
		log.Warn(ctx, "oauth token rejected", "err", err)
		s.api.ClearTokens()
		return models.Failure(models.ReasonCredentialRejected, msgOAuthRejected)
	case err != nil:
		log.Warn(ctx, "profile fetch failed, using token claims", "err", err)
		if profile, err = tokens.MinimalProfile(token); err != nil {
			profile = &models.UserProfile{}
		}
	}

	if err := s.store.Persist(ctx, models.Credential{AccessToken: token, Profile: profile}); err != nil {
		log.Error(ctx, "failed to persist credential", "err", err)
	}
	log.Info(ctx, "oauth sign-in completed")
	return models.Success(profile, s.routes.Resolve(redirect, profile))
}

// Logout revokes the session server-side on a best-effort basis, clears
// local state, and only then navigates to the signed-out route.
func (s *sessionService) Logout(ctx context.Context) error {
	if err := s.api.Logout(ctx); err != nil {
		s.log.Warn(ctx, "server logout failed", "op", "logout", "err", err)
	}
	if err := s.clearLocal(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return s.navigateSignedOut(ctx)
}

// TokensRefreshed persists tokens obtained by a transparent refresh.
func (s *sessionService) TokensRefreshed(ctx context.Context, accessToken, refreshToken string) {
	if err := s.store.UpdateTokens(ctx, accessToken, refreshToken); err != nil {
		s.log.Error(ctx, "failed to persist refreshed tokens", "op", "refresh", "err", err)
	}
}

// SessionRevoked destroys the credential after a failed refresh.
func (s *sessionService) SessionRevoked(ctx context.Context) {
	if err := s.clearLocal(ctx); err != nil {
		s.log.Error(ctx, "failed to clear revoked session", "op", "refresh", "err", err)
		return
	}
	if err := s.navigateSignedOut(ctx); err != nil {
		s.log.Warn(ctx, "navigation after revocation failed", "err", err)
	}
}

func (s *sessionService) clearLocal(ctx context.Context) error {
	s.api.ClearTokens()
	return s.store.Clear(ctx)
}

func (s *sessionService) navigateSignedOut(ctx context.Context) error {
	if s.nav == nil {
		return nil
	}
	return s.nav.Navigate(ctx, s.signedOutRoute)
}
