package service

import (
	"time"

	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/renewal"
)

const (
	ActionNoRefreshNeeded = "no_refresh_needed"
	ActionRefreshed       = "refreshed"
)

// ExchangeRequest is the input of ExchangeCode.
type ExchangeRequest struct {
	Platform core.Platform
	core.CodeExchange
}

// RenewalResult is returned by RenewToken.
// ExtensionSeconds is nil if either expiry is unknown.
type RenewalResult struct {
	OldExpiresAt     *time.Time        `json:"old_expires_at,omitempty"`
	NewExpiresAt     *time.Time        `json:"new_expires_at,omitempty"`
	ExtensionSeconds *int64            `json:"extension_seconds,omitempty"`
	Record           *core.TokenRecord `json:"record"`
}

// AutoRenewResult is the tagged outcome of AutoRenewIfNeeded.
// Action is ActionNoRefreshNeeded or ActionRefreshed.
type AutoRenewResult struct {
	Action string `json:"action"`

	// set for ActionNoRefreshNeeded
	Token              string `json:"token,omitempty"`
	SecondsUntilExpiry *int64 `json:"seconds_until_expiry,omitempty"`

	// set for ActionRefreshed
	OldToken         string `json:"old_token,omitempty"`
	NewToken         string `json:"new_token,omitempty"`
	ExtensionSeconds *int64 `json:"extension_seconds,omitempty"`

	ExpiresAt  *time.Time         `json:"expires_at,omitempty"`
	Assessment renewal.Assessment `json:"assessment"`
	Record     *core.TokenRecord  `json:"record,omitempty"`
}

// SweepOutcome is the result of one record in a renewal sweep.
type SweepOutcome struct {
	Source           core.Source   `json:"source"`
	Platform         core.Platform `json:"platform"`
	Action           string        `json:"action"` // no_refresh_needed, refreshed, skipped, failed
	Reason           string        `json:"reason,omitempty"`
	ExtensionSeconds *int64        `json:"extension_seconds,omitempty"`
}

// SweepReport summarizes a renewal sweep.
type SweepReport struct {
	StartedAt        time.Time      `json:"started_at"`
	ThresholdSeconds int64          `json:"threshold_seconds"`
	Outcomes         []SweepOutcome `json:"outcomes"`
	Renewed          int            `json:"renewed"`
	Skipped          int            `json:"skipped"`
	Failed           int            `json:"failed"`
}
