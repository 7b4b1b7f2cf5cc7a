// Package links turns inbound application links into classified payloads
// and hands them to whoever acts on them.
package links

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/careercoach/internal/client/models"
	"github.com/go-playground/validator/v10"
)

// DefaultVerifyPath marks an auth-verification callback. The backend serves
// magic-link callbacks from a route containing it.
const DefaultVerifyPath = "auth/verify"

const (
	paramToken    = "token"
	paramJWT      = "jwt"
	paramUser     = "user"
	paramRedirect = "redirectTo"
)

var validate = validator.New()

// Classify parses raw and decides which flow it belongs to. It never fails:
// unparseable input is LinkIgnored, a verification callback without a
// usable credential is LinkMalformed.
//
// Priority: verification callback with jwt and a valid user is the fast
// path; a verification callback with token is the exchange path; a token
// anywhere else is an OAuth token. A user value that does not decode is
// treated as absent.
func Classify(raw, verifyPath string) models.LinkPayload {
	if verifyPath == "" {
		verifyPath = DefaultVerifyPath
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || raw == "" {
		return models.LinkPayload{Kind: models.LinkIgnored}
	}

	q := u.Query()
	p := models.LinkPayload{
		Path:         linkPath(u),
		RedirectPath: SafeRedirect(q.Get(paramRedirect)),
	}
	verify := strings.Contains(p.Path, strings.Trim(verifyPath, "/"))

	token := q.Get(paramToken)
	jwt := q.Get(paramJWT)

	if verify && jwt != "" {
		if profile, ok := decodeProfile(q.Get(paramUser)); ok {
			p.Kind = models.LinkFastPath
			p.JWT = jwt
			p.Profile = profile
			return p
		}
	}

	switch {
	case verify && token != "":
		p.Kind = models.LinkExchange
		p.Token = token
	case token != "":
		p.Kind = models.LinkOAuthToken
		p.Token = token
	case verify:
		p.Kind = models.LinkMalformed
	default:
		p.Kind = models.LinkIgnored
	}
	return p
}

// linkPath returns the path of u with a custom scheme's host folded in, so
// that app://auth/verify and https://host/auth/verify both yield a path
// containing auth/verify.
func linkPath(u *url.URL) string {
	if u.Opaque != "" {
		return "/" + strings.TrimPrefix(u.Opaque, "/")
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https":
		return u.Path
	default:
		return "/" + u.Host + u.Path
	}
}

// decodeProfile accepts the user parameter once or twice URL-encoded.
func decodeProfile(raw string) (*models.UserProfile, bool) {
	if raw == "" {
		return nil, false
	}
	if p, ok := unmarshalProfile(raw); ok {
		return p, true
	}
	unescaped, err := url.QueryUnescape(raw)
	if err != nil || unescaped == raw {
		return nil, false
	}
	return unmarshalProfile(unescaped)
}

func unmarshalProfile(s string) (*models.UserProfile, bool) {
	var p models.UserProfile
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, false
	}
	if err := validate.Struct(p); err != nil {
		return nil, false
	}
	return &p, true
}

// SafeRedirect returns p if it is an app-relative path and "" otherwise.
// Absolute URLs, scheme-relative //host paths and backslash tricks are
// dropped.
func SafeRedirect(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return ""
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return p
}
