package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/upstream"
)

type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Subcode int    `json:"error_subcode"`
}

func (e *graphError) Error() string {
	return fmt.Sprintf("%s (type=%s, code=%d)", e.Message, e.Type, e.Code)
}

// graphErrorOf extracts the Graph API error object from a response body.
// It returns nil if the body does not carry one.
func graphErrorOf(resp *upstream.Response) error {
	var body struct {
		Error *graphError `json:"error"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil || body.Error == nil {
		return nil
	}
	return body.Error
}

type granularScope struct {
	Scope     string   `json:"scope"`
	TargetIDs []string `json:"target_ids"`
}

type debugTokenResponse struct {
	Data *struct {
		AppID          string          `json:"app_id"`
		Type           string          `json:"type"`
		Application    string          `json:"application"`
		ExpiresAt      int64           `json:"expires_at"`
		IsValid        bool            `json:"is_valid"`
		Scopes         []string        `json:"scopes"`
		GranularScopes []granularScope `json:"granular_scopes"`
		UserID         string          `json:"user_id"`
		Error          *graphError     `json:"error"`
	} `json:"data"`
}

// Introspect asks the debug_token endpoint about a token using the app access token.
func (c *Client) Introspect(ctx context.Context, token string) (*core.Introspection, error) {
	query := url.Values{}
	query.Set("input_token", token)
	query.Set("access_token", c.cfg.AppID+"|"+c.cfg.AppSecret)

	endpoint := upstream.JoinURL(c.cfg.GraphBaseURL, "debug_token")
	resp, err := c.upstream.Get(ctx, "introspect", endpoint, query)
	if err != nil {
		return nil, c.upstream.IntrospectionFailure(nil, err)
	}

	// a top-level error is about the app access token, not input_token;
	// rejected input tokens come back as 200 with data.is_valid=false
	if !resp.OK() {
		return nil, c.upstream.IntrospectionFailure(resp, graphErrorOf(resp))
	}

	var body debugTokenResponse
	if err := resp.Decode(&body); err != nil {
		return nil, c.upstream.IntrospectionFailure(resp, err)
	}
	if body.Data == nil {
		return nil, c.upstream.IntrospectionFailure(resp, fmt.Errorf("response carries no data"))
	}
	data := body.Data

	result := &core.Introspection{
		Platform: core.PlatformWhatsApp,
		IsValid:  data.IsValid,
		OwnerID:  ownerFromScopes(data.GranularScopes, data.UserID),
		Scopes:   data.Scopes,
		AppID:    data.AppID,
		Type:     data.Type,
	}
	if result.Scopes == nil {
		result.Scopes = []string{}
	}
	// expires_at = 0 means the token never expires
	if data.ExpiresAt > 0 {
		exp := time.Unix(data.ExpiresAt, 0).UTC()
		result.ExpiresAt = &exp
	}

	if data.Error != nil {
		log.Ctx(ctx).Debug().
			Int("code", data.Error.Code).
			Str("reason", data.Error.Message).
			Msg("graph reports token as invalid")
	}
	return result, nil
}

// ownerFromScopes prefers the WABA targeted by the WhatsApp management scope.
func ownerFromScopes(scopes []granularScope, userID string) string {
	for _, s := range scopes {
		if s.Scope == whatsappScope && len(s.TargetIDs) > 0 {
			return s.TargetIDs[0]
		}
	}
	return userID
}
