package client

import (
	"context"

	"github.com/darmiel/linkgate/internal/api"
	"github.com/darmiel/linkgate/internal/core"
)

type ListAuditsOpts struct {
	Limit uint

	CorrelationID string
	Action        string
	Source        core.Source
	Fingerprint   string
}

// ListAudits retrieves the latest audit entries from the server, oldest first.
func (c *Client) ListAudits(ctx context.Context, opts ListAuditsOpts) ([]core.AuditEntry, string, error) {
	ub := c.url().setPath(api.ListAuditsRoute)
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	if opts.CorrelationID != "" {
		ub = ub.addQueryParam("correlation_id", opts.CorrelationID)
	}
	if opts.Action != "" {
		ub = ub.addQueryParam("action", opts.Action)
	}
	if opts.Source != "" {
		ub = ub.addQueryParam("source", opts.Source)
	}
	if opts.Fingerprint != "" {
		ub = ub.addQueryParam("fingerprint", opts.Fingerprint)
	}
	var resp []core.AuditEntry
	correlation, err := c.get(ctx, ub.build(), &resp)
	return resp, correlation, err
}
