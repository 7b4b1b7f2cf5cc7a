package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/careercoach/internal/client/models"
	"github.com/dmitrijs2005/careercoach/internal/common"
	"github.com/dmitrijs2005/careercoach/internal/logging"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const maxResponseBody = 1 << 20

const (
	pathEmailStart  = "/auth/email/start"
	pathEmailVerify = "/auth/email/verify"
	pathSession     = "/auth/session"
	pathRefresh     = "/auth/refresh"
	pathLogout      = "/auth/logout"
)

type HTTPClient struct {
	baseURL  string
	http     *http.Client
	log      logging.Logger
	validate *validator.Validate
	resend   *rate.Limiter
	refresh  singleflight.Group

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	listener     TokenListener
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.http = hc }
}

// WithTimeout sets the request timeout of the default *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

func WithLogger(l logging.Logger) Option {
	return func(c *HTTPClient) { c.log = l }
}

// WithResendInterval limits SendMagicLink to one call per interval.
// Zero disables the limit.
func WithResendInterval(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d <= 0 {
			c.resend = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.resend = rate.NewLimiter(rate.Every(d), 1)
	}
}

func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("server base url is required")
	}
	c := &HTTPClient{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 30 * time.Second},
		log:      logging.Nop(),
		validate: validator.New(),
		resend:   rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetTokenListener registers the receiver of refresh notifications.
func (c *HTTPClient) SetTokenListener(l TokenListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = l
}

func (c *HTTPClient) SetTokens(accessToken, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
	c.refreshToken = refreshToken
}

func (c *HTTPClient) ClearTokens() {
	c.SetTokens("", "")
}

// Tokens returns the tokens currently attached to requests.
func (c *HTTPClient) Tokens() (accessToken, refreshToken string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken, c.refreshToken
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

type emailStartRequest struct {
	Email string `json:"email"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (c *HTTPClient) SendMagicLink(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if err := c.validate.Var(email, "required,email"); err != nil {
		return "", ErrInvalidEmail
	}
	if !c.resend.Allow() {
		return "", ErrRateLimited
	}

	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, pathEmailStart, emailStartRequest{Email: email}, &resp, false); err != nil {
		return "", err
	}
	return resp.Message, nil
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	AccessToken  string              `json:"accessToken"`
	RefreshToken string              `json:"refreshToken"`
	User         *models.UserProfile `json:"user"`
}

// VerifyToken redeems a single-use magic-link token. The returned credential
// may lack a profile when the server omitted or mangled it; callers fetch
// it separately.
func (c *HTTPClient) VerifyToken(ctx context.Context, token string) (*models.Credential, error) {
	var resp verifyResponse
	if err := c.do(ctx, http.MethodPost, pathEmailVerify, verifyRequest{Token: token}, &resp, false); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &APIError{Kind: ErrServer, Message: "verify response has no access token"}
	}

	cred := &models.Credential{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if resp.User != nil {
		if err := c.validate.Struct(resp.User); err != nil {
			c.log.Warn(ctx, "discarding invalid profile from verify response", "err", err)
		} else {
			cred.Profile = resp.User
		}
	}
	return cred, nil
}

type sessionResponse struct {
	User *models.UserProfile `json:"user"`
}

func (c *HTTPClient) GetSession(ctx context.Context) (*models.UserProfile, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodGet, pathSession, nil, &resp, true); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, &APIError{Kind: ErrServer, Message: "session response has no user"}
	}
	if err := c.validate.Struct(resp.User); err != nil {
		return nil, &APIError{Kind: ErrServer, Message: "session response has an invalid user", cause: err}
	}
	return resp.User, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshToken redeems the current refresh token for a new access token and
// attaches it to subsequent calls. Concurrent callers share one request.
func (c *HTTPClient) RefreshToken(ctx context.Context) (string, error) {
	v, err, _ := c.refresh.Do("refresh", func() (any, error) {
		_, refreshToken := c.Tokens()
		if refreshToken == "" {
			return "", &APIError{Kind: ErrRejected, Status: http.StatusUnauthorized, Message: "no refresh token"}
		}

		var resp refreshResponse
		if err := c.roundTrip(ctx, http.MethodPost, pathRefresh, refreshRequest{RefreshToken: refreshToken}, &resp, false); err != nil {
			return "", err
		}
		if resp.AccessToken == "" {
			return "", &APIError{Kind: ErrServer, Message: "refresh response has no access token"}
		}
		if resp.RefreshToken == "" {
			resp.RefreshToken = refreshToken
		}
		c.SetTokens(resp.AccessToken, resp.RefreshToken)

		if l := c.tokenListener(); l != nil {
			l.TokensRefreshed(ctx, resp.AccessToken, resp.RefreshToken)
		}
		return resp.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Logout revokes the session server-side. Local tokens are dropped whatever
// the outcome.
func (c *HTTPClient) Logout(ctx context.Context) error {
	err := c.roundTrip(ctx, http.MethodPost, pathLogout, nil, nil, true)
	c.ClearTokens()
	return err
}

func (c *HTTPClient) tokenListener() TokenListener {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listener
}

// do performs an API call and, for authenticated calls answered with 401,
// refreshes the access token once and repeats the call.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any, auth bool) error {
	err := c.roundTrip(ctx, method, path, in, out, auth)
	if !auth || !errors.Is(err, ErrUnauthorized) {
		return err
	}
	if _, refreshToken := c.Tokens(); refreshToken == "" {
		return err
	}

	if _, rerr := c.RefreshToken(ctx); rerr != nil {
		if !errors.Is(rerr, ErrRejected) {
			// the session may still be valid; report why it could not be renewed
			return rerr
		}
		c.log.Warn(ctx, "refresh token rejected, dropping session", "op", path)
		c.ClearTokens()
		if l := c.tokenListener(); l != nil {
			l.SessionRevoked(ctx)
		}
		return err
	}
	return c.roundTrip(ctx, method, path, in, out, auth)
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Detail  string `json:"detail"`
	Debug   string `json:"debug"`
}

func (c *HTTPClient) roundTrip(ctx context.Context, method, path string, in, out any, auth bool) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.RequestIDHeaderName, requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		if token, _ := c.Tokens(); token != "" {
			req.Header.Set(common.AuthorizationHeaderName, "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn(ctx, "api call failed", "op", path, "request_id", requestID, "err", err)
		return &APIError{Kind: ErrNetwork, cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &APIError{Kind: ErrNetwork, Status: resp.StatusCode, cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := statusError(resp.StatusCode, raw)
		c.log.Warn(ctx, "api call rejected", "op", path, "request_id", requestID, "status", resp.StatusCode)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Kind: ErrServer, Status: resp.StatusCode, Message: "malformed response", cause: err}
	}
	return nil
}

func statusError(status int, raw []byte) *APIError {
	kind := ErrServer
	if status >= 400 && status < 500 && !transient(status) {
		kind = ErrRejected
	}

	var er errorResponse
	_ = json.Unmarshal(raw, &er)

	msg := er.Message
	if msg == "" {
		msg = er.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	detail := er.Detail
	if detail == "" {
		detail = er.Debug
	}
	return &APIError{Kind: kind, Status: status, Message: msg, Detail: detail}
}

// transient 4xx answers say nothing about the credential: the same request
// may succeed later.
func transient(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}
