// Package facebook implements the WhatsApp Business exchange client on top of
// the Facebook Graph API.
package facebook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/darmiel/linkgate/internal/config"
	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/upstream"
)

const (
	Type = "whatsapp"

	DefaultGraphBaseURL  = "https://graph.facebook.com"
	DefaultDialogBaseURL = "https://www.facebook.com"
	DefaultGraphVersion  = "v23.0"

	// whatsappScope is the granular scope whose target is the WABA.
	whatsappScope = "whatsapp_business_management"
)

var (
	_ core.Exchanger    = (*Client)(nil)
	_ core.Renewer      = (*Client)(nil)
	_ core.Introspector = (*Client)(nil)
	_ core.Authorizer   = (*Client)(nil)

	_ core.PageTokenFetcher = (*Client)(nil)
)

type Config struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`

	// ConfigurationID is the Embedded Signup configuration (config_id).
	ConfigurationID string `mapstructure:"configuration_id"`

	RedirectURI  string   `mapstructure:"redirect_uri"`
	Scopes       []string `mapstructure:"scopes"`
	GraphVersion string   `mapstructure:"graph_version"`

	GraphBaseURL  string `mapstructure:"graph_base_url"`
	DialogBaseURL string `mapstructure:"dialog_base_url"`
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
	if cfg.GraphVersion == "" {
		cfg.GraphVersion = DefaultGraphVersion
	}
	if cfg.GraphBaseURL == "" {
		cfg.GraphBaseURL = DefaultGraphBaseURL
	}
	if cfg.DialogBaseURL == "" {
		cfg.DialogBaseURL = DefaultDialogBaseURL
	}
	return &Client{
		cfg:      cfg,
		upstream: upstream.New(core.PlatformWhatsApp, httpClient),
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
	return core.PlatformWhatsApp
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   *int64 `json:"expires_in"`
}

type exchangeCodeRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
}

// ExchangeCode trades an Embedded Signup authorization code for a user access token.
func (c *Client) ExchangeCode(ctx context.Context, req core.CodeExchange) (*core.ExchangeResult, error) {
	if req.Code == "" {
		return nil, c.upstream.ExchangeFailure(nil, fmt.Errorf("authorization code is required"))
	}

	payload := exchangeCodeRequest{
		ClientID:     firstNonEmpty(req.ClientID, c.cfg.AppID),
		ClientSecret: firstNonEmpty(req.ClientSecret, c.cfg.AppSecret),
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
	}

	endpoint := upstream.JoinURL(c.cfg.GraphBaseURL, c.cfg.GraphVersion+"/oauth/access_token")
	resp, err := c.upstream.PostJSON(ctx, "exchange_code", endpoint, payload)
	if err != nil {
		return nil, c.upstream.ExchangeFailure(nil, err)
	}
	return c.parseTokenResponse(resp)
}

// RenewToken trades a still-valid token for a fresh long-lived one.
func (c *Client) RenewToken(ctx context.Context, current string) (*core.ExchangeResult, error) {
	query := url.Values{}
	query.Set("grant_type", "fb_exchange_token")
	query.Set("client_id", c.cfg.AppID)
	query.Set("client_secret", c.cfg.AppSecret)
	query.Set("fb_exchange_token", current)

	endpoint := upstream.JoinURL(c.cfg.GraphBaseURL, "oauth/access_token")
	resp, err := c.upstream.Get(ctx, "renew_token", endpoint, query)
	if err != nil {
		return nil, c.upstream.ExchangeFailure(nil, err)
	}
	return c.parseTokenResponse(resp)
}

func (c *Client) parseTokenResponse(resp *upstream.Response) (*core.ExchangeResult, error) {
	if !resp.OK() {
		return nil, c.upstream.ExchangeFailure(resp, graphErrorOf(resp))
	}
	var body tokenResponse
	if err := resp.Decode(&body); err != nil {
		return nil, c.upstream.ExchangeFailure(resp, err)
	}
	meta := map[string]any{}
	if body.TokenType != "" {
		meta["token_type"] = body.TokenType
	}
	return &core.ExchangeResult{
		Platform:         core.PlatformWhatsApp,
		AccessToken:      body.AccessToken,
		ExpiresInSeconds: body.ExpiresIn,
		Metadata:         meta,
	}, nil
}

// AuthorizeURL builds the Facebook login dialog URL for Embedded Signup.
func (c *Client) AuthorizeURL(state string) (string, error) {
	if c.cfg.RedirectURI == "" {
		return "", fmt.Errorf("redirect_uri is not configured for %s platform", Type)
	}
	query := url.Values{}
	query.Set("client_id", c.cfg.AppID)
	query.Set("redirect_uri", c.cfg.RedirectURI)
	query.Set("response_type", "code")
	if c.cfg.ConfigurationID != "" {
		query.Set("config_id", c.cfg.ConfigurationID)
		query.Set("override_default_response_type", "true")
	}
	if len(c.cfg.Scopes) > 0 {
		query.Set("scope", strings.Join(c.cfg.Scopes, ","))
	}
	if state != "" {
		query.Set("state", state)
	}
	endpoint := upstream.JoinURL(c.cfg.DialogBaseURL, c.cfg.GraphVersion+"/dialog/oauth")
	return endpoint + "?" + query.Encode(), nil
}

func (c *Client) CallbackRedirectURI() string {
	return c.cfg.RedirectURI
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
