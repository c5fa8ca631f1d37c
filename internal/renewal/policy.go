// Package renewal decides whether a token should be renewed.
// It never performs the renewal itself.
package renewal

import (
	"time"

	"github.com/darmiel/linkgate/internal/core"
)

const (
	// StrictThreshold is used for single-token checks.
	StrictThreshold = time.Hour

	// BatchThreshold is used by the background sweep.
	BatchThreshold = 24 * time.Hour
)

// Probe is the validity probe result the decision is based on.
type Probe struct {
	IsValid   bool
	ExpiresAt *time.Time
}

// ProbeFrom converts an introspection result into a Probe.
func ProbeFrom(in *core.Introspection) Probe {
	return Probe{IsValid: in.IsValid, ExpiresAt: in.ExpiresAt}
}

// Assessment is computed on demand and never stored.
type Assessment struct {
	IsValid bool `json:"is_valid"`

	// SecondsUntilExpiry is negative for expired tokens and nil for non-expiring ones.
	SecondsUntilExpiry *int64 `json:"seconds_until_expiry,omitempty"`

	NeedsRenewal bool `json:"needs_renewal"`

	// Terminal is set for invalid tokens. They cannot be renewed, the OAuth
	// flow has to be restarted.
	Terminal bool `json:"terminal"`
}

// Policy is one renewal policy, parameterized by its threshold.
type Policy struct {
	Threshold time.Duration
}

func NewPolicy(threshold time.Duration) Policy {
	return Policy{Threshold: threshold}
}

// Assess applies the policy to probe at time now.
// Renewal is due iff the token is valid, has an expiry, and less than
// Threshold remains (strictly less).
func (p Policy) Assess(probe Probe, now time.Time) Assessment {
	a := Assessment{
		IsValid:            probe.IsValid,
		SecondsUntilExpiry: core.SecondsUntil(probe.ExpiresAt, now),
	}
	if !probe.IsValid {
		a.Terminal = true
		return a
	}
	if a.SecondsUntilExpiry == nil {
		return a
	}
	a.NeedsRenewal = *a.SecondsUntilExpiry < int64(p.Threshold/time.Second)
	return a
}
