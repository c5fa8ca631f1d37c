package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// Client talks to the admin API of a LinkGate server.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

type Option func(*Client)

// WithAuthToken sets the admin JWT sent as bearer token.
func WithAuthToken(token string) Option {
	return func(c *Client) {
		c.authToken = token
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type urlBuilder struct {
	base       string
	path       string
	pathParams map[string]string
	query      url.Values
}

func (c *Client) url() *urlBuilder {
	return &urlBuilder{
		base:       c.baseURL,
		pathParams: map[string]string{},
		query:      url.Values{},
	}
}

func (u *urlBuilder) setPath(path string) *urlBuilder {
	u.path = path
	return u
}

// setPathParam replaces the {name} segment of the path.
func (u *urlBuilder) setPathParam(name, value string) *urlBuilder {
	u.pathParams[name] = value
	return u
}

func (u *urlBuilder) addQueryParam(key string, value any) *urlBuilder {
	u.query.Add(key, fmt.Sprint(value))
	return u
}

func (u *urlBuilder) build() string {
	path := u.path
	for name, value := range u.pathParams {
		path = strings.ReplaceAll(path, "{"+name+"}", url.PathEscape(value))
	}
	res := u.base + path
	if len(u.query) > 0 {
		res += "?" + u.query.Encode()
	}
	return res
}
