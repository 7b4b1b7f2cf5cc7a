package verification

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/careercoach/internal/client/client"
	"github.com/dmitrijs2005/careercoach/internal/client/flight"
	"github.com/dmitrijs2005/careercoach/internal/client/models"
	"github.com/dmitrijs2005/careercoach/internal/client/tokens"
	"github.com/dmitrijs2005/careercoach/internal/logging"
	"github.com/dmitrijs2005/careercoach/internal/metrics"
	"github.com/google/uuid"
)

const (
	msgInvalidLink = "invalid verification link"
	msgRejected    = "this sign-in link is invalid or has expired, please request a new one"
	msgNetwork     = "could not reach the server, check your connection and try again"
	msgUnexpected  = "something went wrong while signing you in, please try again"
)

// Verifier is the part of the API client the state machine needs.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (*models.Credential, error)
	GetSession(ctx context.Context) (*models.UserProfile, error)
	SetTokens(accessToken, refreshToken string)
}

// CredentialWriter persists the session produced by a successful attempt.
type CredentialWriter interface {
	Persist(ctx context.Context, cred models.Credential) error
	UpdateProfile(ctx context.Context, profile models.UserProfile) error
}

// Navigator performs the post-auth navigation chosen by the presentation
// layer. It is only called from Session.Continue.
type Navigator interface {
	Navigate(ctx context.Context, route string) error
}

// Service creates verification sessions bound to one shared coordinator.
type Service struct {
	coord   *flight.Coordinator
	api     Verifier
	store   CredentialWriter
	nav     Navigator
	routes  Routes
	log     logging.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(l logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(coord *flight.Coordinator, api Verifier, store CredentialWriter, nav Navigator, routes Routes, opts ...Option) *Service {
	s := &Service{
		coord:   coord,
		api:     api,
		store:   store,
		nav:     nav,
		routes:  routes,
		log:     logging.Nop(),
		metrics: metrics.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open mounts a new session in StateVerifying. The caller must Close it when
// the screen goes away.
func (s *Service) Open() *Session {
	s.coord.Acquire()
	return &Session{svc: s, snap: verifying(), subs: make(map[int]chan Snapshot)}
}

// settle returns the result for payload: the one retained for the same
// credential, a freshly executed attempt, or the one published by a
// concurrent attempt for the same credential.
func (s *Service) settle(ctx context.Context, payload models.LinkPayload) (models.VerificationResult, error) {
	key := attemptKey(payload)
	for {
		if res, ok := s.coord.CachedFor(key); ok {
			s.metrics.RecordJoin("cached")
			return res, nil
		}
		if s.coord.BeginFor(key) {
			return s.attempt(ctx, payload), nil
		}

		res, err := s.coord.ObserveFor(ctx, key)
		switch {
		case err == nil:
			s.metrics.RecordJoin("waited")
			return res, nil
		case errors.Is(err, flight.ErrNoAttempt):
			// evicted, or the attempt belonged to another credential
			continue
		default:
			return models.VerificationResult{}, err
		}
	}
}

// attemptKey identifies the credential a payload carries. Payloads without
// one share the empty credential of their kind.
func attemptKey(p models.LinkPayload) string {
	switch p.Kind {
	case models.LinkFastPath:
		return p.Kind.String() + ":" + p.JWT
	case models.LinkExchange:
		return p.Kind.String() + ":" + p.Token
	default:
		return p.Kind.String()
	}
}

// attempt runs after a successful Begin. Complete is called exactly once on
// every exit path, panics included.
func (s *Service) attempt(ctx context.Context, payload models.LinkPayload) (res models.VerificationResult) {
	path := payload.Kind.String()
	log := s.log.With("op", "verify", "attempt_id", uuid.NewString(), "path", path)
	started := s.now()

	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "verification attempt panicked", "panic", r)
			res = models.Failure(models.ReasonNetworkOrServer, msgUnexpected)
		}
		s.coord.Complete(res)
		s.metrics.RecordVerification(path, string(res.Outcome), string(res.Reason), s.now().Sub(started))
		log.Info(ctx, "verification attempt finished", "outcome", res.Outcome, "reason", res.Reason)
	}()

	// once begun, an attempt runs to completion even if its caller goes away
	ctx = context.WithoutCancel(ctx)

	switch payload.Kind {
	case models.LinkFastPath:
		return s.fastPath(ctx, log, payload)
	case models.LinkExchange:
		return s.exchange(ctx, log, payload)
	default:
		log.Warn(ctx, "link carries no usable credential")
		return models.Failure(models.ReasonMalformedLink, msgInvalidLink)
	}
}

func (s *Service) fastPath(ctx context.Context, log logging.Logger, payload models.LinkPayload) models.VerificationResult {
	if payload.JWT == "" || payload.Profile == nil {
		return models.Failure(models.ReasonMalformedLink, msgInvalidLink)
	}

	cred := models.Credential{AccessToken: payload.JWT, Profile: payload.Profile}
	if err := s.store.Persist(ctx, cred); err != nil {
		log.Error(ctx, "failed to persist credential", "err", err)
	}
	s.api.SetTokens(payload.JWT, "")

	return models.Success(payload.Profile, s.routes.Resolve(payload.RedirectPath, payload.Profile))
}

func (s *Service) exchange(ctx context.Context, log logging.Logger, payload models.LinkPayload) models.VerificationResult {
	if payload.Token == "" {
		return models.Failure(models.ReasonMalformedLink, msgInvalidLink)
	}

	cred, err := s.api.VerifyToken(ctx, payload.Token)
	if err != nil {
		log.Warn(ctx, "token exchange failed", "err", err)
		return failureFor(err)
	}

	s.api.SetTokens(cred.AccessToken, cred.RefreshToken)
	if err := s.store.Persist(ctx, *cred); err != nil {
		log.Error(ctx, "failed to persist credential", "err", err)
	}

	profile := cred.Profile
	if profile == nil {
		profile = s.fetchProfile(ctx, log, cred.AccessToken)
		if err := s.store.UpdateProfile(ctx, *profile); err != nil {
			log.Error(ctx, "failed to persist profile", "err", err)
		}
	}

	return models.Success(profile, s.routes.Resolve(payload.RedirectPath, profile))
}

// fetchProfile never fails: the token is valid, so a missing profile
// degrades to whatever the token's claims say.
func (s *Service) fetchProfile(ctx context.Context, log logging.Logger, accessToken string) *models.UserProfile {
	profile, err := s.api.GetSession(ctx)
	if err == nil {
		return profile
	}
	log.Warn(ctx, "profile fetch failed, using token claims", "err", err)

	profile, err = tokens.MinimalProfile(accessToken)
	if err != nil {
		return &models.UserProfile{}
	}
	return profile
}

func failureFor(err error) models.VerificationResult {
	if !errors.Is(err, client.ErrRejected) {
		return models.Failure(models.ReasonNetworkOrServer, msgNetwork)
	}

	msg := msgRejected
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.UserMessage() != "" {
		msg = apiErr.UserMessage()
	}
	return models.Failure(models.ReasonCredentialRejected, msg)
}
