// Package instagram implements Instagram Business Login.
package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/linkgate/internal/config"
	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/upstream"
)

const (
	Type = "instagram"

	DefaultAPIBaseURL       = "https://api.instagram.com"
	DefaultGraphBaseURL     = "https://graph.instagram.com"
	DefaultAuthorizeBaseURL = "https://www.instagram.com"
)

var DefaultScopes = []string{
	"instagram_business_basic",
	"instagram_business_manage_messages",
}

var (
	_ core.Exchanger    = (*Client)(nil)
	_ core.Introspector = (*Client)(nil)
	_ core.Authorizer   = (*Client)(nil)
)

type Config struct {
	AppID       string   `mapstructure:"app_id"`
	AppSecret   string   `mapstructure:"app_secret"`
	RedirectURI string   `mapstructure:"redirect_uri"`
	Scopes      []string `mapstructure:"scopes"`

	APIBaseURL       string `mapstructure:"api_base_url"`
	GraphBaseURL     string `mapstructure:"graph_base_url"`
	AuthorizeBaseURL string `mapstructure:"authorize_base_url"`
}

type Client struct {
	cfg      Config
	upstream *upstream.Client
}

func New(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.AppID == "" {
		return nil, fmt.Errorf("app_id cannot be empty for %s platform", Type)
	}
	if cfg.AppSecret == "" {
		return nil, fmt.Errorf("app_secret cannot be empty for %s platform", Type)
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("redirect_uri cannot be empty for %s platform", Type)
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.GraphBaseURL == "" {
		cfg.GraphBaseURL = DefaultGraphBaseURL
	}
	if cfg.AuthorizeBaseURL == "" {
		cfg.AuthorizeBaseURL = DefaultAuthorizeBaseURL
	}
	return &Client{
		cfg:      cfg,
		upstream: upstream.New(core.PlatformInstagram, httpClient),
	}, nil
}

func NewFromConfig(cfg config.PlatformConfig, httpClient *http.Client) (*Client, error) {
	var conf Config

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         nil,
		WeaklyTypedInput: true,
		Result:           &conf,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder for %s platform: %w", Type, err)
	}
	if err := decoder.Decode(cfg.Config); err != nil {
		return nil, fmt.Errorf("failed to decode config for %s platform: %w", Type, err)
	}

	return New(conf, httpClient)
}

func (c *Client) Platform() core.Platform {
	return core.PlatformInstagram
}

// shortLivedToken is one entry of the step 1 response.
type shortLivedToken struct {
	AccessToken string          `json:"access_token"`
	UserID      json.Number     `json:"user_id"`
	Permissions json.RawMessage `json:"permissions"`
}

// shortLivedResponse accepts both the flat and the {data:[...]} shape.
type shortLivedResponse struct {
	shortLivedToken
	Data []shortLivedToken `json:"data"`
}

func (r shortLivedResponse) token() shortLivedToken {
	if r.AccessToken == "" && len(r.Data) > 0 {
		return r.Data[0]
	}
	return r.shortLivedToken
}

type longLivedResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   *int64 `json:"expires_in"`
}

// ExchangeCode runs both steps: code to short-lived token, then short-lived
// to long-lived token.
func (c *Client) ExchangeCode(ctx context.Context, req core.CodeExchange) (*core.ExchangeResult, error) {
	if req.Code == "" {
		return nil, c.upstream.ExchangeFailure(nil, fmt.Errorf("authorization code is required"))
	}
	clientSecret := firstNonEmpty(req.ClientSecret, c.cfg.AppSecret)

	form := url.Values{}
	form.Set("client_id", firstNonEmpty(req.ClientID, c.cfg.AppID))
	form.Set("client_secret", clientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", firstNonEmpty(req.RedirectURI, c.cfg.RedirectURI))
	// Instagram appends "#_" to the redirect, some callers forward it verbatim
	form.Set("code", strings.TrimSuffix(req.Code, "#_"))

	resp, err := c.upstream.PostForm(ctx, "exchange_code", upstream.JoinURL(c.cfg.APIBaseURL, "oauth/access_token"), form)
	if err != nil {
		return nil, c.upstream.ExchangeFailure(nil, err)
	}
	if !resp.OK() {
		return nil, c.upstream.ExchangeFailure(resp, apiErrorOf(resp))
	}
	var short shortLivedResponse
	if err := resp.Decode(&short); err != nil {
		return nil, c.upstream.ExchangeFailure(resp, err)
	}
	step1 := short.token()
	if step1.AccessToken == "" {
		return nil, c.upstream.ExchangeFailure(resp, fmt.Errorf("response carries no access_token"))
	}

	log.Ctx(ctx).Debug().
		Str("platform", Type).
		Str("user_id", step1.UserID.String()).
		Msg("obtained short-lived token, exchanging for long-lived token")

	query := url.Values{}
	query.Set("grant_type", "ig_exchange_token")
	query.Set("client_secret", clientSecret)
	query.Set("access_token", step1.AccessToken)

	resp, err = c.upstream.Get(ctx, "exchange_long_lived", upstream.JoinURL(c.cfg.GraphBaseURL, "access_token"), query)
	if err != nil {
		return nil, c.upstream.ExchangeFailure(nil, err)
	}
	if !resp.OK() {
		return nil, c.upstream.ExchangeFailure(resp, apiErrorOf(resp))
	}
	var long longLivedResponse
	if err := resp.Decode(&long); err != nil {
		return nil, c.upstream.ExchangeFailure(resp, err)
	}

	meta := map[string]any{}
	if long.TokenType != "" {
		meta["token_type"] = long.TokenType
	}
	if perms := permissionsOf(step1.Permissions); len(perms) > 0 {
		meta["permissions"] = perms
	}

	return &core.ExchangeResult{
		Platform:         core.PlatformInstagram,
		AccessToken:      long.AccessToken,
		ExpiresInSeconds: long.ExpiresIn,
		OwnerID:          step1.UserID.String(),
		Metadata:         meta,
	}, nil
}

func (c *Client) CallbackRedirectURI() string {
	return c.cfg.RedirectURI
}

// AuthorizeURL builds the Instagram Business Login URL.
func (c *Client) AuthorizeURL(state string) (string, error) {
	query := url.Values{}
	query.Set("client_id", c.cfg.AppID)
	query.Set("redirect_uri", c.cfg.RedirectURI)
	query.Set("response_type", "code")
	query.Set("scope", strings.Join(c.cfg.Scopes, ","))
	if state != "" {
		query.Set("state", state)
	}
	return upstream.JoinURL(c.cfg.AuthorizeBaseURL, "oauth/authorize") + "?" + query.Encode(), nil
}

// permissionsOf accepts permissions as a comma separated string or a list.
func permissionsOf(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil && joined != "" {
		return strings.Split(joined, ",")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
