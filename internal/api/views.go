package api

import (
	"time"

	"github.com/darmiel/linkgate/internal/core"
)

const previewLength = 20

// TokenView is the listing representation of a record. The token itself is
// reduced to a preview.
type TokenView struct {
	Source       core.Source    `json:"source"`
	Platform     core.Platform  `json:"platform"`
	OwnerID      string         `json:"owner_id,omitempty"`
	Kind         core.TokenKind `json:"kind"`
	TokenPreview string         `json:"token_preview"`
	TokenLength  int            `json:"token_length"`
	IssuedAt     time.Time      `json:"issued_at"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
	IsExpired    bool           `json:"is_expired"`
}

// TokenDetail is the full record plus its expiry state.
type TokenDetail struct {
	core.TokenRecord
	IsExpired          bool   `json:"is_expired"`
	SecondsUntilExpiry *int64 `json:"seconds_until_expiry,omitempty"`
}

func preview(token string) string {
	if len(token) <= previewLength {
		return token + "..."
	}
	return token[:previewLength] + "..."
}

func NewTokenView(rec core.TokenRecord, now time.Time) TokenView {
	return TokenView{
		Source:       rec.Source,
		Platform:     rec.Platform,
		OwnerID:      rec.OwnerID,
		Kind:         rec.Kind,
		TokenPreview: preview(rec.Token),
		TokenLength:  len(rec.Token),
		IssuedAt:     rec.IssuedAt,
		ExpiresAt:    rec.ExpiresAt,
		IsExpired:    rec.IsExpired(now),
	}
}

func NewTokenDetail(rec core.TokenRecord, now time.Time) TokenDetail {
	return TokenDetail{
		TokenRecord:        rec,
		IsExpired:          rec.IsExpired(now),
		SecondsUntilExpiry: rec.SecondsUntilExpiry(now),
	}
}
