package facebook

import (
	"context"
	"fmt"
	"net/url"

	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/upstream"
)

type pageAccount struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

type accountsResponse struct {
	Data []pageAccount `json:"data"`
}

// PageToken returns the access token of the first page managed by the owner
// of userToken. Page tokens derived from a long-lived user token do not expire.
func (c *Client) PageToken(ctx context.Context, userToken string) (*core.ExchangeResult, error) {
	query := url.Values{}
	query.Set("access_token", userToken)
	query.Set("fields", "id,name,access_token")

	endpoint := upstream.JoinURL(c.cfg.GraphBaseURL, c.cfg.GraphVersion+"/me/accounts")
	resp, err := c.upstream.Get(ctx, "page_token", endpoint, query)
	if err != nil {
		return nil, c.upstream.ExchangeFailure(nil, err)
	}
	if !resp.OK() {
		return nil, c.upstream.ExchangeFailure(resp, graphErrorOf(resp))
	}

	var body accountsResponse
	if err := resp.Decode(&body); err != nil {
		return nil, c.upstream.ExchangeFailure(resp, err)
	}
	if len(body.Data) == 0 || body.Data[0].AccessToken == "" {
		return nil, nil
	}
	page := body.Data[0]
	if page.ID == "" {
		return nil, c.upstream.ExchangeFailure(resp, fmt.Errorf("page carries no id"))
	}
	return &core.ExchangeResult{
		Platform:    core.PlatformWhatsApp,
		AccessToken: page.AccessToken,
		OwnerID:     page.ID,
		Metadata:    map[string]any{"page_name": page.Name},
	}, nil
}
