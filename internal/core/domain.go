package core

import (
	"fmt"
	"time"
)

// Platform identifies an upstream platform the gateway can link accounts with.
type Platform string

const (
	PlatformWhatsApp   Platform = "whatsapp"
	PlatformInstagram  Platform = "instagram"
	PlatformTiendaNube Platform = "tiendanube"
)

// Platforms lists every supported platform.
var Platforms = []Platform{PlatformWhatsApp, PlatformInstagram, PlatformTiendaNube}

// ParsePlatform converts a string (as used in routes and config) into a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch p := Platform(s); p {
	case PlatformWhatsApp, PlatformInstagram, PlatformTiendaNube:
		return p, nil
	default:
		return "", fmt.Errorf("unknown platform '%s'", s)
	}
}

// Source returns the canonical provenance tag a token exchanged on this platform is stored under.
func (p Platform) Source() Source {
	switch p {
	case PlatformWhatsApp:
		return SourceWhatsAppOAuth
	case PlatformInstagram:
		return SourceInstagramLogin
	case PlatformTiendaNube:
		return SourceTiendaNubeOAuth
	default:
		return ""
	}
}

// Source is the provenance tag of a token. It identifies "the current token"
// of one integration surface, so the store keeps at most one record per Source.
type Source string

const (
	SourceWhatsAppOAuth   Source = "whatsapp_oauth"
	SourceInstagramLogin  Source = "instagram_login"
	SourcePageToken       Source = "page_token"
	SourceTiendaNubeOAuth Source = "tiendanube_oauth"
	SourceManual          Source = "manual"
)

func (s Source) IsValid() bool {
	switch s {
	case SourceWhatsAppOAuth, SourceInstagramLogin, SourcePageToken, SourceTiendaNubeOAuth, SourceManual:
		return true
	default:
		return false
	}
}

// Platform returns the platform that issued tokens of this source.
// Page tokens and manually captured tokens are Graph API tokens.
func (s Source) Platform() Platform {
	switch s {
	case SourceInstagramLogin:
		return PlatformInstagram
	case SourceTiendaNubeOAuth:
		return PlatformTiendaNube
	default:
		return PlatformWhatsApp
	}
}

// TokenKind classifies a token by its validity window.
type TokenKind string

const (
	KindShortLived  TokenKind = "short_lived"
	KindLongLived   TokenKind = "long_lived"
	KindNonExpiring TokenKind = "non_expiring"
)

// TokenRecord represents one issued credential as held by the TokenStore.
type TokenRecord struct {
	// Token is the bearer credential.
	Token string `json:"token"`

	// Source is the provenance tag, see Source.
	Source Source `json:"source"`

	// Platform is the platform that issued the token.
	Platform Platform `json:"platform"`

	// OwnerID is the platform-assigned account identifier (WABA ID, Instagram
	// business account ID, store ID). Empty if unknown at capture time.
	OwnerID string `json:"owner_id,omitempty"`

	// Kind is the classification computed when the record was created.
	Kind TokenKind `json:"kind"`

	// IssuedAt is the time the token was captured.
	IssuedAt time.Time `json:"issued_at"`

	// ExpiresInSeconds is nil when no expiry is known (non-expiring tokens).
	ExpiresInSeconds *int64 `json:"expires_in,omitempty"`

	// ExpiresAt is IssuedAt + ExpiresInSeconds, or nil.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Metadata contains extra information returned by the platform (scope, token_type, ...).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IsExpired reports whether the record has a known expiry that lies before now.
func (r TokenRecord) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// SecondsUntilExpiry returns the signed remaining lifetime, or nil for non-expiring tokens.
func (r TokenRecord) SecondsUntilExpiry(now time.Time) *int64 {
	return SecondsUntil(r.ExpiresAt, now)
}

// SecondsUntil returns the signed number of whole seconds from now until t, or nil if t is nil.
func SecondsUntil(t *time.Time, now time.Time) *int64 {
	if t == nil {
		return nil
	}
	secs := int64(t.Sub(now) / time.Second)
	return &secs
}

// CodeExchange is the input of a code-for-token exchange (Mode A).
// Empty credential fields fall back to the credentials configured for the platform client.
type CodeExchange struct {
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string

	// OwnerID is used as the record owner if the upstream response carries none.
	OwnerID string
}

// ExchangeResult is what an Exchanger returns after a successful exchange.
type ExchangeResult struct {
	Platform    Platform
	AccessToken string

	// ExpiresInSeconds is nil if the platform did not report a lifetime.
	ExpiresInSeconds *int64

	// OwnerID is empty if the response did not identify an account.
	OwnerID string

	Metadata map[string]any
}

// Introspection is the answer of a platform's token introspection endpoint.
// An invalid token is a normal result with IsValid=false, not an error.
type Introspection struct {
	Platform           Platform   `json:"platform"`
	IsValid            bool       `json:"is_valid"`
	OwnerID            string     `json:"owner_id,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	SecondsUntilExpiry *int64     `json:"seconds_until_expiry,omitempty"`
	Scopes             []string   `json:"scopes"`

	// AppID and Type are reported by the Graph API debug endpoint only.
	AppID string `json:"app_id,omitempty"`
	Type  string `json:"type,omitempty"`
}
