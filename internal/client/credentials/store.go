// Package credentials is the credential store: the one live session on the
// device, kept encrypted in the local database.
//
// Two entries are written under the storage prefix:
//
//	<prefix>.session  {accessToken, refreshToken?}
//	<prefix>.profile  UserProfile
//
// Both are sealed with AES-GCM (see cryptox) and written or removed in one
// transaction, so a reader never sees a token without the matching profile
// slot having been attempted. The profile may still be absent (for instance
// after an OAuth sign-in whose profile fetch failed); callers treat a missing
// profile as recoverable.
package credentials

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/careercoach/internal/client/models"
	"github.com/dmitrijs2005/careercoach/internal/client/repositories/secrets"
	"github.com/dmitrijs2005/careercoach/internal/cryptox"
	"github.com/dmitrijs2005/careercoach/internal/dbx"
)

var ErrNoCredential = errors.New("no stored credential")

const (
	sessionSlot = "session"
	profileSlot = "profile"
)

type sessionEntry struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type Store struct {
	db     *sql.DB
	key    []byte
	prefix string
}

// NewStore binds a store to db. key must be cryptox.KeySize bytes.
func NewStore(db *sql.DB, key []byte, prefix string) (*Store, error) {
	if len(key) != cryptox.KeySize {
		return nil, fmt.Errorf("storage key must be %d bytes", cryptox.KeySize)
	}
	if prefix == "" {
		return nil, errors.New("storage prefix is required")
	}
	return &Store{db: db, key: key, prefix: prefix}, nil
}

func (s *Store) slot(name string) string { return s.prefix + "." + name }

// Persist replaces the stored credential. A nil profile removes any
// previously cached profile, so a new session never inherits the old user.
func (s *Store) Persist(ctx context.Context, cred models.Credential) error {
	if cred.AccessToken == "" {
		return errors.New("persist credential: access token is empty")
	}

	session, err := s.seal(sessionSlot, sessionEntry{AccessToken: cred.AccessToken, RefreshToken: cred.RefreshToken})
	if err != nil {
		return fmt.Errorf("persist credential: %w", err)
	}
	var profile []byte
	if cred.Profile != nil {
		if profile, err = s.seal(profileSlot, cred.Profile); err != nil {
			return fmt.Errorf("persist credential: %w", err)
		}
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := secrets.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, s.slot(sessionSlot), session); err != nil {
			return err
		}
		if profile == nil {
			return repo.Delete(ctx, s.slot(profileSlot))
		}
		return repo.Set(ctx, s.slot(profileSlot), profile)
	})
}

// Load returns the stored credential or ErrNoCredential. Profile is nil when
// only the token was stored.
func (s *Store) Load(ctx context.Context) (*models.Credential, error) {
	repo := secrets.NewSQLiteRepository(s.db)

	raw, err := repo.Get(ctx, s.slot(sessionSlot))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNoCredential
	}
	var session sessionEntry
	if err := s.open(sessionSlot, raw, &session); err != nil {
		return nil, fmt.Errorf("decrypt session: %w", err)
	}
	cred := &models.Credential{AccessToken: session.AccessToken, RefreshToken: session.RefreshToken}

	raw, err = repo.Get(ctx, s.slot(profileSlot))
	if err != nil {
		return nil, err
	}
	if raw != nil {
		var profile models.UserProfile
		if err := s.open(profileSlot, raw, &profile); err != nil {
			return nil, fmt.Errorf("decrypt profile: %w", err)
		}
		cred.Profile = &profile
	}
	return cred, nil
}

// UpdateTokens rotates the tokens of the stored session and keeps the
// cached profile. An empty refresh token keeps the previous one.
func (s *Store) UpdateTokens(ctx context.Context, accessToken, refreshToken string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := secrets.NewSQLiteRepository(tx)

		raw, err := repo.Get(ctx, s.slot(sessionSlot))
		if err != nil {
			return err
		}
		if raw == nil {
			return ErrNoCredential
		}
		var session sessionEntry
		if err := s.open(sessionSlot, raw, &session); err != nil {
			return fmt.Errorf("decrypt session: %w", err)
		}

		session.AccessToken = accessToken
		if refreshToken != "" {
			session.RefreshToken = refreshToken
		}
		sealed, err := s.seal(sessionSlot, session)
		if err != nil {
			return err
		}
		return repo.Set(ctx, s.slot(sessionSlot), sealed)
	})
}

// UpdateProfile replaces the cached profile mirror. It fails with
// ErrNoCredential when there is no session to attach it to.
func (s *Store) UpdateProfile(ctx context.Context, profile models.UserProfile) error {
	sealed, err := s.seal(profileSlot, profile)
	if err != nil {
		return err
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := secrets.NewSQLiteRepository(tx)
		raw, err := repo.Get(ctx, s.slot(sessionSlot))
		if err != nil {
			return err
		}
		if raw == nil {
			return ErrNoCredential
		}
		return repo.Set(ctx, s.slot(profileSlot), sealed)
	})
}

// Clear removes the tokens and the profile mirror together. Callers must
// clear before leaving authenticated screens, never after.
func (s *Store) Clear(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return secrets.NewSQLiteRepository(tx).DeletePrefix(ctx, s.prefix+".")
	})
}

func (s *Store) seal(slot string, v any) ([]byte, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return cryptox.Seal(s.key, plain, []byte(s.slot(slot)))
}

func (s *Store) open(slot string, sealed []byte, v any) error {
	plain, err := cryptox.Open(s.key, sealed, []byte(s.slot(slot)))
	if err != nil {
		return err
	}
	return json.Unmarshal(plain, v)
}
