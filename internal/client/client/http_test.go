package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/careercoach/internal/client/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend emulates the auth endpoints. Handlers are swappable per test.
type fakeBackend struct {
	verify  http.HandlerFunc
	session http.HandlerFunc
	refresh http.HandlerFunc
	start   http.HandlerFunc

	verifyCalls  atomic.Int32
	sessionCalls atomic.Int32
	refreshCalls atomic.Int32
	logoutCalls  atomic.Int32

	mu         sync.Mutex
	lastAuth   string
	lastReqID  string
	lastLogout string
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{}
	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		r.Post("/email/start", func(w http.ResponseWriter, r *http.Request) {
			if fb.start != nil {
				fb.start(w, r)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"message": "check your inbox"})
		})
		r.Post("/email/verify", func(w http.ResponseWriter, r *http.Request) {
			fb.verifyCalls.Add(1)
			fb.verify(w, r)
		})
		r.Get("/session", func(w http.ResponseWriter, r *http.Request) {
			fb.sessionCalls.Add(1)
			fb.mu.Lock()
			fb.lastAuth = r.Header.Get("Authorization")
			fb.lastReqID = r.Header.Get("X-Request-ID")
			fb.mu.Unlock()
			fb.session(w, r)
		})
		r.Post("/refresh", func(w http.ResponseWriter, r *http.Request) {
			fb.refreshCalls.Add(1)
			fb.refresh(w, r)
		})
		r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
			fb.logoutCalls.Add(1)
			fb.mu.Lock()
			fb.lastLogout = r.Header.Get("Authorization")
			fb.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return fb, srv
}

func newTestClient(t *testing.T, url string, opts ...Option) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(url+"/", opts...)
	require.NoError(t, err)
	return c
}

type recordingListener struct {
	mu        sync.Mutex
	refreshed []string
	revoked   int
}

func (l *recordingListener) TokensRefreshed(_ context.Context, access, refresh string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refreshed = append(l.refreshed, access+"/"+refresh)
}

func (l *recordingListener) SessionRevoked(context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked++
}

func TestNewHTTPClient_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPClient("  ")
	require.Error(t, err)
}

func TestSendMagicLink(t *testing.T) {
	_, srv := newFakeBackend(t)
	c := newTestClient(t, srv.URL)

	msg, err := c.SendMagicLink(context.Background(), " ada@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "check your inbox", msg)
}

func TestSendMagicLink_InvalidEmail_NoRequest(t *testing.T) {
	fb, srv := newFakeBackend(t)
	var called atomic.Bool
	fb.start = func(w http.ResponseWriter, r *http.Request) { called.Store(true) }
	c := newTestClient(t, srv.URL)

	_, err := c.SendMagicLink(context.Background(), "not-an-email")
	require.ErrorIs(t, err, ErrInvalidEmail)
	assert.False(t, called.Load())
}

func TestSendMagicLink_ResendThrottled(t *testing.T) {
	_, srv := newFakeBackend(t)
	c := newTestClient(t, srv.URL, WithResendInterval(time.Hour))

	_, err := c.SendMagicLink(context.Background(), "ada@example.com")
	require.NoError(t, err)

	_, err = c.SendMagicLink(context.Background(), "ada@example.com")
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestVerifyToken_Success(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.verify = func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "magic-123", req["token"])
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken":  "acc",
			"refreshToken": "ref",
			"user":         map[string]any{"id": "u1", "email": "ada@example.com", "onboardingStatus": "completed"},
		})
	}
	c := newTestClient(t, srv.URL)

	cred, err := c.VerifyToken(context.Background(), "magic-123")
	require.NoError(t, err)
	assert.Equal(t, "acc", cred.AccessToken)
	assert.Equal(t, "ref", cred.RefreshToken)
	require.NotNil(t, cred.Profile)
	assert.Equal(t, models.OnboardingCompleted, cred.Profile.OnboardingStatus)
}

func TestVerifyToken_InvalidProfileDropped(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.verify = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"accessToken": "acc",
			"user":        map[string]any{"email": "ada@example.com", "onboardingStatus": "weird"},
		})
	}
	c := newTestClient(t, srv.URL)

	cred, err := c.VerifyToken(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "acc", cred.AccessToken)
	assert.Nil(t, cred.Profile)
}

func TestVerifyToken_Rejected_CarriesServerMessage(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.verify = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "magic link already used", "debug": "token_consumed"})
	}
	c := newTestClient(t, srv.URL)

	_, err := c.VerifyToken(context.Background(), "t")
	require.ErrorIs(t, err, ErrRejected)
	require.False(t, Retriable(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "magic link already used (token_consumed)", apiErr.UserMessage())
}

func TestVerifyToken_ServerError(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.verify = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}
	c := newTestClient(t, srv.URL)

	_, err := c.VerifyToken(context.Background(), "t")
	require.ErrorIs(t, err, ErrServer)
	require.True(t, Retriable(err))
}

func TestVerifyToken_MissingAccessToken(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.verify = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u1"}})
	}
	c := newTestClient(t, srv.URL)

	_, err := c.VerifyToken(context.Background(), "t")
	require.ErrorIs(t, err, ErrServer)
}

func TestNetworkError(t *testing.T) {
	_, srv := newFakeBackend(t)
	url := srv.URL
	srv.Close()
	c := newTestClient(t, url)

	_, err := c.VerifyToken(context.Background(), "t")
	require.ErrorIs(t, err, ErrNetwork)
	require.True(t, Retriable(err))
}

func TestGetSession_AttachesBearerAndRequestID(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.session = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u1", "onboardingStatus": "in_progress"}})
	}
	c := newTestClient(t, srv.URL)
	c.SetTokens("acc", "")

	p, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", p.ID)

	fb.mu.Lock()
	defer fb.mu.Unlock()
	assert.Equal(t, "Bearer acc", fb.lastAuth)
	assert.NotEmpty(t, fb.lastReqID)
}

func TestGetSession_401WithoutRefreshToken(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.session = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token revoked"})
	}
	c := newTestClient(t, srv.URL)
	c.SetTokens("acc", "")

	_, err := c.GetSession(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, int32(0), fb.refreshCalls.Load())
}

func TestGetSession_RefreshesOnceAndRetries(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.session = func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u1"}})
	}
	fb.refresh = func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ref", req["refreshToken"])
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "fresh"})
	}
	l := &recordingListener{}
	c := newTestClient(t, srv.URL)
	c.SetTokenListener(l)
	c.SetTokens("stale", "ref")

	p, err := c.GetSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", p.ID)
	assert.Equal(t, int32(2), fb.sessionCalls.Load())
	assert.Equal(t, int32(1), fb.refreshCalls.Load())

	access, refresh := c.Tokens()
	assert.Equal(t, "fresh", access)
	assert.Equal(t, "ref", refresh)
	assert.Equal(t, []string{"fresh/ref"}, l.refreshed)
}

func TestGetSession_RefreshRejected_RevokesSession(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.session = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
	}
	fb.refresh = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "refresh token expired"})
	}
	l := &recordingListener{}
	c := newTestClient(t, srv.URL)
	c.SetTokenListener(l)
	c.SetTokens("stale", "ref")

	_, err := c.GetSession(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, l.revoked)

	access, refresh := c.Tokens()
	assert.Empty(t, access)
	assert.Empty(t, refresh)
}

func TestGetSession_RefreshNetworkError_KeepsTokens(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.session = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
	}
	fb.refresh = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}
	l := &recordingListener{}
	c := newTestClient(t, srv.URL)
	c.SetTokenListener(l)
	c.SetTokens("stale", "ref")

	_, err := c.GetSession(context.Background())
	require.ErrorIs(t, err, ErrServer)
	assert.NotErrorIs(t, err, ErrRejected)
	assert.Equal(t, 0, l.revoked)

	access, _ := c.Tokens()
	assert.Equal(t, "stale", access)
}

func TestGetSession_RefreshConnectionDropped_ReportsNetwork(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.session = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "access token expired"})
	}
	fb.refresh = func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		_ = conn.Close()
	}
	l := &recordingListener{}
	c := newTestClient(t, srv.URL)
	c.SetTokenListener(l)
	c.SetTokens("stale", "ref")

	_, err := c.GetSession(context.Background())
	require.ErrorIs(t, err, ErrNetwork)
	assert.NotErrorIs(t, err, ErrRejected)
	assert.Equal(t, 0, l.revoked)

	access, refresh := c.Tokens()
	assert.Equal(t, "stale", access)
	assert.Equal(t, "ref", refresh)
}

func TestGetSession_TransientStatusIsNotRejection(t *testing.T) {
	for _, status := range []int{http.StatusRequestTimeout, http.StatusTooManyRequests} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			fb, srv := newFakeBackend(t)
			fb.session = func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, status, map[string]string{"message": "slow down"})
			}
			c := newTestClient(t, srv.URL)
			c.SetTokens("acc", "")

			_, err := c.GetSession(context.Background())
			require.ErrorIs(t, err, ErrServer)
			assert.NotErrorIs(t, err, ErrRejected)
			assert.True(t, Retriable(err))
			assert.Equal(t, status == http.StatusTooManyRequests, errors.Is(err, ErrRateLimited))
		})
	}
}

func TestGetSession_MissingUser(t *testing.T) {
	fb, srv := newFakeBackend(t)
	fb.session = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	}
	c := newTestClient(t, srv.URL)

	_, err := c.GetSession(context.Background())
	require.ErrorIs(t, err, ErrServer)
}

func TestRefreshToken_NoRefreshToken(t *testing.T) {
	fb, srv := newFakeBackend(t)
	c := newTestClient(t, srv.URL)

	_, err := c.RefreshToken(context.Background())
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, int32(0), fb.refreshCalls.Load())
}

func TestLogout_ClearsTokens(t *testing.T) {
	fb, srv := newFakeBackend(t)
	c := newTestClient(t, srv.URL)
	c.SetTokens("acc", "ref")

	require.NoError(t, c.Logout(context.Background()))
	assert.Equal(t, int32(1), fb.logoutCalls.Load())

	fb.mu.Lock()
	assert.Equal(t, "Bearer acc", fb.lastLogout)
	fb.mu.Unlock()

	access, refresh := c.Tokens()
	assert.Empty(t, access)
	assert.Empty(t, refresh)
	require.NoError(t, c.Close())
}

func TestAPIError_Formatting(t *testing.T) {
	e := &APIError{Kind: ErrRejected, Status: 400, Message: "expired"}
	assert.True(t, strings.Contains(e.Error(), "expired"))
	assert.Equal(t, "expired", e.UserMessage())

	e = &APIError{Kind: ErrRejected, Status: 400, Detail: "only-detail"}
	assert.Equal(t, "only-detail", e.UserMessage())

	n := &APIError{Kind: ErrNetwork, cause: errors.New("dial tcp: refused")}
	assert.Contains(t, n.Error(), "dial tcp")
	assert.False(t, errors.Is(n, ErrUnauthorized))
}
