// Package classifier turns raw exchange results into TokenRecord candidates.
package classifier

import (
	"time"

	"github.com/darmiel/linkgate/internal/core"
)

// ShortLivedCutoff is the lifetime below which a token is considered short-lived.
// Instagram short-lived tokens live ~1h, Graph user tokens from the code
// exchange ~1-2h, long-lived tokens ~60 days.
const ShortLivedCutoff = 24 * time.Hour

// Input is everything the classifier needs to build a record.
type Input struct {
	RawToken         string
	Source           core.Source
	Platform         core.Platform
	OwnerID          string
	ExpiresInSeconds *int64
	Metadata         map[string]any
}

// Classify builds a candidate TokenRecord issued at now.
// It fails with an InvalidTokenError for an empty token or a negative expiry.
func Classify(in Input, now time.Time) (*core.TokenRecord, error) {
	if in.RawToken == "" {
		return nil, &core.InvalidTokenError{Reason: "token is empty"}
	}
	if !in.Source.IsValid() {
		return nil, &core.InvalidTokenError{Reason: "unknown source '" + string(in.Source) + "'"}
	}

	platform := in.Platform
	if platform == "" {
		platform = in.Source.Platform()
	}

	rec := &core.TokenRecord{
		Token:    in.RawToken,
		Source:   in.Source,
		Platform: platform,
		OwnerID:  in.OwnerID,
		IssuedAt: now,
		Kind:     core.KindNonExpiring,
		Metadata: in.Metadata,
	}

	if in.ExpiresInSeconds == nil {
		return rec, nil
	}

	secs := *in.ExpiresInSeconds
	if secs < 0 {
		return nil, &core.InvalidTokenError{Reason: "expires_in must not be negative"}
	}

	expiresAt := now.Add(time.Duration(secs) * time.Second)
	rec.ExpiresInSeconds = &secs
	rec.ExpiresAt = &expiresAt

	if time.Duration(secs)*time.Second < ShortLivedCutoff {
		rec.Kind = core.KindShortLived
	} else {
		rec.Kind = core.KindLongLived
	}
	return rec, nil
}

// FromExchange classifies the result of an exchange to be stored under source.
// fallbackOwner is used if the exchange did not identify an owner.
func FromExchange(res *core.ExchangeResult, source core.Source, fallbackOwner string, now time.Time) (*core.TokenRecord, error) {
	if res == nil {
		return nil, &core.InvalidTokenError{Reason: "empty exchange result"}
	}
	owner := res.OwnerID
	if owner == "" {
		owner = fallbackOwner
	}
	return Classify(Input{
		RawToken:         res.AccessToken,
		Source:           source,
		Platform:         res.Platform,
		OwnerID:          owner,
		ExpiresInSeconds: res.ExpiresInSeconds,
		Metadata:         res.Metadata,
	}, now)
}
