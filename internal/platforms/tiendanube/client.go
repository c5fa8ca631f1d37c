// Package tiendanube implements the Tienda Nube (Nuvemshop) app authorization.
// Tienda Nube access tokens do not expire; they stay valid until the app is
// uninstalled, so there is no renewal or introspection path.
package tiendanube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mitchellh/mapstructure"

	"github.com/darmiel/linkgate/internal/config"
	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/upstream"
)

const (
	Type = "tiendanube"

	DefaultBaseURL = "https://www.tiendanube.com"
)

var (
	_ core.Exchanger  = (*Client)(nil)
	_ core.Authorizer = (*Client)(nil)
)

type Config struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
	BaseURL      string `mapstructure:"base_url"`
}

type Client struct {
	cfg      Config
	upstream *upstream.Client
}

func New(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client_id cannot be empty for %s platform", Type)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client_secret cannot be empty for %s platform", Type)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		cfg:      cfg,
		upstream: upstream.New(core.PlatformTiendaNube, httpClient),
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
	return core.PlatformTiendaNube
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	Scope       string      `json:"scope"`
	UserID      json.Number `json:"user_id"`

	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ExchangeCode trades the installation code for the store's access token.
// The response's user_id is the store ID.
func (c *Client) ExchangeCode(ctx context.Context, req core.CodeExchange) (*core.ExchangeResult, error) {
	if req.Code == "" {
		return nil, c.upstream.ExchangeFailure(nil, fmt.Errorf("authorization code is required"))
	}

	form := url.Values{}
	form.Set("client_id", firstNonEmpty(req.ClientID, c.cfg.ClientID))
	form.Set("client_secret", firstNonEmpty(req.ClientSecret, c.cfg.ClientSecret))
	form.Set("grant_type", "authorization_code")
	form.Set("code", req.Code)

	resp, err := c.upstream.PostForm(ctx, "exchange_code", upstream.JoinURL(c.cfg.BaseURL, "apps/authorize/token"), form)
	if err != nil {
		return nil, c.upstream.ExchangeFailure(nil, err)
	}

	var body tokenResponse
	decodeErr := resp.Decode(&body)

	if !resp.OK() {
		return nil, c.upstream.ExchangeFailure(resp, errorOf(body))
	}
	if decodeErr != nil {
		return nil, c.upstream.ExchangeFailure(resp, decodeErr)
	}
	// errors such as an expired code are reported with 200
	if body.AccessToken == "" && body.Error != "" {
		return nil, c.upstream.ExchangeFailure(resp, errorOf(body))
	}

	meta := map[string]any{}
	if body.TokenType != "" {
		meta["token_type"] = body.TokenType
	}
	if body.Scope != "" {
		meta["scope"] = body.Scope
	}

	return &core.ExchangeResult{
		Platform:    core.PlatformTiendaNube,
		AccessToken: body.AccessToken,
		OwnerID:     body.UserID.String(),
		Metadata:    meta,
	}, nil
}

// CallbackRedirectURI is empty, the installation redirect is registered
// with the app in the partner portal.
func (c *Client) CallbackRedirectURI() string {
	return ""
}

// AuthorizeURL builds the app installation URL a merchant is sent to.
func (c *Client) AuthorizeURL(state string) (string, error) {
	u := upstream.JoinURL(c.cfg.BaseURL, "apps/"+url.PathEscape(c.cfg.ClientID)+"/authorize")
	if state != "" {
		u += "?" + url.Values{"state": []string{state}}.Encode()
	}
	return u, nil
}

func errorOf(body tokenResponse) error {
	switch {
	case body.ErrorDescription != "":
		return fmt.Errorf("%s: %s", body.Error, body.ErrorDescription)
	case body.Error != "":
		return fmt.Errorf("%s", body.Error)
	default:
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
