package audit

import (
	"fmt"

	"github.com/darmiel/linkgate/internal/config"
	"github.com/darmiel/linkgate/internal/core"
)

const (
	TypeMemory = "memory"
	TypeFile   = "file"
)

// New builds the auditor selected by cfg. A disabled audit config yields a NoopAuditor.
func New(cfg config.AuditConfig) (core.Auditor, error) {
	if !cfg.Enabled {
		return NewNoopAuditor(), nil
	}
	switch cfg.Type {
	case "", TypeMemory:
		return NewInMemoryAuditor(), nil
	case TypeFile:
		return NewFileAuditor(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown audit type: %s", cfg.Type)
	}
}

var _ core.Auditor = NoopAuditor{}

// NoopAuditor drops every entry. It does not implement core.AuditReader.
type NoopAuditor struct{}

func NewNoopAuditor() NoopAuditor {
	return NoopAuditor{}
}

func (NoopAuditor) Log(core.AuditEntry) error { return nil }
func (NoopAuditor) Close() error { return nil }
