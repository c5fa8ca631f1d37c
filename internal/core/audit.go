package core

import "time"

const (
	ActionTokenExchange  = "token.exchange"
	ActionTokenInspect   = "token.inspect"
	ActionTokenRenew     = "token.renew"
	ActionTokenAutoRenew = "token.auto_renew"
	ActionTokenSweep     = "token.sweep"
)

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "token.exchange", "token.renew")
	Action string `json:"action"`

	Platform Platform `json:"platform,omitempty"`
	Source   Source   `json:"source,omitempty"`
	OwnerID  string   `json:"owner_id,omitempty"`

	// TokenFingerprint identifies the affected token without revealing it.
	TokenFingerprint string `json:"token_fingerprint,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}

// AuditReader is implemented by auditors that can serve past entries.
type AuditReader interface {
	GetRecent(limit int) ([]AuditEntry, error)
	Find(filter func(entry AuditEntry) bool, limit int) ([]AuditEntry, error)
}
