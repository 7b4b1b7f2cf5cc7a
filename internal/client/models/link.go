package models

// LinkKind tags how an inbound application link must be handled.
type LinkKind int

const (
	// LinkIgnored carries no auth action; other collaborators may handle it.
	LinkIgnored LinkKind = iota
	// LinkFastPath already carries a verified bearer credential and profile.
	LinkFastPath
	// LinkExchange carries an opaque single-use token to redeem with the server.
	LinkExchange
	// LinkOAuthToken carries a directly usable bearer token from an OAuth redirect.
	LinkOAuthToken
	// LinkMalformed targets the verification callback but holds no usable credential.
	LinkMalformed
)

func (k LinkKind) String() string {
	switch k {
	case LinkFastPath:
		return "fast_path"
	case LinkExchange:
		return "exchange"
	case LinkOAuthToken:
		return "oauth_token"
	case LinkMalformed:
		return "malformed"
	default:
		return "ignored"
	}
}

// LinkPayload is parsed from exactly one inbound link, consumed once and
// never persisted. Which fields are set depends on Kind:
//
//	LinkFastPath   JWT, Profile
//	LinkExchange   Token
//	LinkOAuthToken Token
//
// RedirectPath is optional for every kind.
type LinkPayload struct {
	Kind         LinkKind
	Path         string
	Token        string
	JWT          string
	Profile      *UserProfile
	RedirectPath string
}
