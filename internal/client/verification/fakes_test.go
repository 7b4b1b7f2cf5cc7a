package verification

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/careercoach/internal/client/models"
)

// fakeVerifier implements Verifier for unit tests.
type fakeVerifier struct {
	verifyCalls  atomic.Int32
	sessionCalls atomic.Int32

	// VerifyFn defaults to a success with a completed profile.
	VerifyFn  func(ctx context.Context, token string) (*models.Credential, error)
	SessionFn func(ctx context.Context) (*models.UserProfile, error)

	mu      sync.Mutex
	access  string
	refresh string
}

func (f *fakeVerifier) VerifyToken(ctx context.Context, token string) (*models.Credential, error) {
	f.verifyCalls.Add(1)
	if f.VerifyFn != nil {
		return f.VerifyFn(ctx, token)
	}
	return &models.Credential{
		AccessToken:  "access-" + token,
		RefreshToken: "refresh-" + token,
		Profile:      &models.UserProfile{ID: "u1", OnboardingStatus: models.OnboardingCompleted},
	}, nil
}

func (f *fakeVerifier) GetSession(ctx context.Context) (*models.UserProfile, error) {
	f.sessionCalls.Add(1)
	if f.SessionFn != nil {
		return f.SessionFn(ctx)
	}
	return &models.UserProfile{ID: "u1", OnboardingStatus: models.OnboardingInProgress}, nil
}

func (f *fakeVerifier) SetTokens(accessToken, refreshToken string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access, f.refresh = accessToken, refreshToken
}

func (f *fakeVerifier) tokens() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access, f.refresh
}

// fakeStore implements CredentialWriter and remembers the last writes.
type fakeStore struct {
	mu         sync.Mutex
	PersistErr error
	persisted  []models.Credential
	profiles   []models.UserProfile
}

func (f *fakeStore) Persist(_ context.Context, cred models.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PersistErr != nil {
		return f.PersistErr
	}
	f.persisted = append(f.persisted, cred)
	return nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, p models.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles = append(f.profiles, p)
	return nil
}

func (f *fakeStore) last() (models.Credential, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.persisted) == 0 {
		return models.Credential{}, false
	}
	return f.persisted[len(f.persisted)-1], true
}

type fakeNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (f *fakeNavigator) Navigate(_ context.Context, route string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes = append(f.routes, route)
	return nil
}
