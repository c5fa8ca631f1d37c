package core

import "context"

// Exchanger performs code-for-token exchanges (Mode A) against one platform.
// Implementations: Facebook Graph, Instagram Business Login, Tienda Nube.
type Exchanger interface {
	// Platform returns the platform served by this client.
	Platform() Platform

	// ExchangeCode trades an authorization code for an access token.
	// For Instagram this includes the second step (short-lived to long-lived).
	ExchangeCode(ctx context.Context, req CodeExchange) (*ExchangeResult, error)
}

// Renewer is an optional capability of platforms that can trade a
// still-valid token for a fresh one with a reset validity window (Mode B).
type Renewer interface {
	RenewToken(ctx context.Context, current string) (*ExchangeResult, error)
}

// Introspector is an optional capability of platforms that can report
// whether a token is valid and when it expires.
type Introspector interface {
	Introspect(ctx context.Context, token string) (*Introspection, error)
}

// Authorizer is an optional capability of platforms that can build the
// browser URL starting the authorization code flow.
type Authorizer interface {
	AuthorizeURL(state string) (string, error)

	// CallbackRedirectURI is the redirect_uri placed in the authorize URL.
	// Codes returned to it have to be exchanged with the same value.
	CallbackRedirectURI() string
}

// PageTokenFetcher is an optional capability of Graph platforms that can
// derive a page access token from a freshly exchanged user token.
// It returns nil and no error if the user manages no page.
type PageTokenFetcher interface {
	PageToken(ctx context.Context, userToken string) (*ExchangeResult, error)
}
