package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/upstream"
)

const codeInvalidToken = 190

// apiError covers both error shapes Instagram uses: the Graph style
// {"error":{...}} and the flat {"error_type","code","error_message"}.
type apiError struct {
	Type    string `json:"error_type"`
	Code    int    `json:"code"`
	Message string `json:"error_message"`

	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (e *apiError) normalize() (typ string, code int, msg string) {
	if e.Error != nil {
		return e.Error.Type, e.Error.Code, e.Error.Message
	}
	return e.Type, e.Code, e.Message
}

func apiErrorOf(resp *upstream.Response) error {
	var body apiError
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil
	}
	typ, code, msg := body.normalize()
	if msg == "" {
		return nil
	}
	return fmt.Errorf("%s (type=%s, code=%d)", msg, typ, code)
}

// Introspect probes the token against /me. Instagram has no debug endpoint,
// so expiry and scopes are unknown to the probe.
func (c *Client) Introspect(ctx context.Context, token string) (*core.Introspection, error) {
	query := url.Values{}
	query.Set("fields", "user_id,username")
	query.Set("access_token", token)

	resp, err := c.upstream.Get(ctx, "introspect", upstream.JoinURL(c.cfg.GraphBaseURL, "me"), query)
	if err != nil {
		return nil, c.upstream.IntrospectionFailure(nil, err)
	}

	if !resp.OK() {
		var body apiError
		if err := json.Unmarshal(resp.Body, &body); err == nil {
			typ, code, _ := body.normalize()
			if code == codeInvalidToken || (resp.StatusCode == 400 && typ == "OAuthException") {
				return &core.Introspection{Platform: core.PlatformInstagram, Scopes: []string{}}, nil
			}
		}
		return nil, c.upstream.IntrospectionFailure(resp, apiErrorOf(resp))
	}

	var me struct {
		ID       json.Number `json:"id"`
		UserID   json.Number `json:"user_id"`
		Username string      `json:"username"`
	}
	if err := resp.Decode(&me); err != nil {
		return nil, c.upstream.IntrospectionFailure(resp, err)
	}

	owner := me.UserID.String()
	if owner == "" {
		owner = me.ID.String()
	}
	return &core.Introspection{
		Platform: core.PlatformInstagram,
		IsValid:  true,
		OwnerID:  owner,
		Scopes:   []string{},
	}, nil
}
