package client

import (
	"context"
	"time"

	"github.com/darmiel/linkgate/internal/api"
	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/service"
)

// ListTokens returns previews of the stored tokens, most recent first.
func (c *Client) ListTokens(ctx context.Context) ([]api.TokenView, string, error) {
	var res []api.TokenView
	correlation, err := c.get(ctx, c.url().
		setPath(api.ListTokensRoute).
		build(), &res)
	return res, correlation, err
}

// GetToken returns the current token of a source.
func (c *Client) GetToken(ctx context.Context, source core.Source) (*api.TokenDetail, string, error) {
	var res api.TokenDetail
	correlation, err := c.get(ctx, c.url().
		setPath(api.GetTokenRoute).
		setPathParam("source", string(source)).
		build(), &res)
	if err != nil {
		return nil, correlation, err
	}
	return &res, correlation, nil
}

// InspectToken introspects token on platform. An empty platform lets the
// server pick the platform the token was stored for.
func (c *Client) InspectToken(ctx context.Context, token string, platform core.Platform) (*core.Introspection, string, error) {
	var res core.Introspection
	correlation, err := c.post(ctx, c.url().
		setPath(api.InspectRoute).
		build(), api.InspectPayload{Token: token, Platform: string(platform)}, &res)
	if err != nil {
		return nil, correlation, err
	}
	return &res, correlation, nil
}

func (c *Client) RenewToken(ctx context.Context, token string) (*service.RenewalResult, string, error) {
	var res service.RenewalResult
	correlation, err := c.post(ctx, c.url().
		setPath(api.RenewRoute).
		build(), api.RenewPayload{Token: token}, &res)
	if err != nil {
		return nil, correlation, err
	}
	return &res, correlation, nil
}

// AutoRenewToken renews token if it expires within threshold.
// A zero threshold selects the server's strict threshold.
func (c *Client) AutoRenewToken(ctx context.Context, token string, threshold time.Duration) (*service.AutoRenewResult, string, error) {
	var res service.AutoRenewResult
	correlation, err := c.post(ctx, c.url().
		setPath(api.AutoRenewRoute).
		build(), api.AutoRenewPayload{
		Token:            token,
		ThresholdSeconds: int64(threshold / time.Second),
	}, &res)
	if err != nil {
		return nil, correlation, err
	}
	return &res, correlation, nil
}

// Sweep runs a renewal sweep. A zero threshold selects the server's batch threshold.
func (c *Client) Sweep(ctx context.Context, threshold time.Duration) (*service.SweepReport, string, error) {
	var res service.SweepReport
	correlation, err := c.post(ctx, c.url().
		setPath(api.SweepRoute).
		build(), api.SweepPayload{ThresholdSeconds: int64(threshold / time.Second)}, &res)
	if err != nil {
		return nil, correlation, err
	}
	return &res, correlation, nil
}
