package api

import (
	"net/http"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/linkgate/internal/api/presenter"
	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/service"
)

// ExchangePayload is the body of the exchange route. Only code is required.
type ExchangePayload struct {
	Code         string `json:"code"`
	RedirectURI  string `json:"redirect_uri,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	OwnerID      string `json:"owner_id,omitempty"`
}

func pathPlatform(r *http.Request) (core.Platform, error) {
	name := r.PathValue("platform")
	p, err := core.ParsePlatform(name)
	if err != nil {
		return "", &core.UnknownPlatformError{Platform: name}
	}
	return p, nil
}

// handleAuthorize redirects to the platform's OAuth dialog.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	platform, err := pathPlatform(r)
	if err != nil {
		presenter.Err(w, r, err, "unknown platform")
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		state = xid.New().String()
	}

	target, err := s.coordinator.AuthorizeURL(platform, state)
	if err != nil {
		presenter.Err(w, r, err, "cannot build authorize url")
		return
	}
	log.Ctx(r.Context()).Debug().
		Str("platform", string(platform)).
		Str("state", state).
		Msg("redirecting to authorize dialog")
	http.Redirect(w, r, target, http.StatusFound)
}

// handleCallback completes the OAuth redirect by exchanging the code from the query.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	platform, err := pathPlatform(r)
	if err != nil {
		presenter.Err(w, r, err, "unknown platform")
		return
	}

	q := r.URL.Query()
	if upstreamErr := q.Get("error"); upstreamErr != "" {
		msg := upstreamErr
		if desc := q.Get("error_description"); desc != "" {
			msg += ": " + desc
		}
		log.Ctx(r.Context()).Warn().
			Str("platform", string(platform)).
			Str("error", upstreamErr).
			Msg("authorization was denied")
		presenter.Error(w, r, msg, http.StatusBadRequest)
		return
	}

	// the code was issued for the dialog's redirect_uri and must be redeemed with it
	s.exchange(w, r, platform, ExchangePayload{
		Code:        q.Get("code"),
		RedirectURI: s.coordinator.CallbackRedirectURI(platform),
	}, http.StatusOK)
}

// handleExchange exchanges a code posted by the frontend (Embedded Signup).
func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	platform, err := pathPlatform(r)
	if err != nil {
		presenter.Err(w, r, err, "unknown platform")
		return
	}

	var payload ExchangePayload
	if err := DecodePayload(r, &payload, false); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("invalid exchange payload")
		presenter.Error(w, r, "invalid payload", http.StatusBadRequest)
		return
	}

	s.exchange(w, r, platform, payload, http.StatusCreated)
}

func (s *Server) exchange(w http.ResponseWriter, r *http.Request, platform core.Platform, payload ExchangePayload, status int) {
	if payload.Code == "" {
		presenter.Error(w, r, "missing authorization code", http.StatusBadRequest)
		return
	}

	rec, err := s.coordinator.ExchangeCode(r.Context(), service.ExchangeRequest{
		Platform: platform,
		CodeExchange: core.CodeExchange{
			Code:         payload.Code,
			RedirectURI:  payload.RedirectURI,
			ClientID:     payload.ClientID,
			ClientSecret: payload.ClientSecret,
			OwnerID:      payload.OwnerID,
		},
	})
	if err != nil {
		presenter.Err(w, r, err, "token exchange failed")
		return
	}

	presenter.JSON(w, r, rec, status)
}
