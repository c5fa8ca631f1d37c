package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/linkgate/internal/api/presenter"
	"github.com/darmiel/linkgate/internal/core"
)

type InspectPayload struct {
	Token    string `json:"token"`
	Platform string `json:"platform,omitempty"`
}

type RenewPayload struct {
	Token string `json:"token"`
}

type AutoRenewPayload struct {
	Token string `json:"token"`

	// ThresholdSeconds defaults to the strict threshold if zero.
	ThresholdSeconds int64 `json:"threshold_seconds,omitempty"`
}

type SweepPayload struct {
	// ThresholdSeconds defaults to the batch threshold if zero.
	ThresholdSeconds int64 `json:"threshold_seconds,omitempty"`
}

// handleListTokens responds with previews of all stored tokens, most recent first.
func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	records, err := s.coordinator.ListTokens(r.Context())
	if err != nil {
		presenter.Err(w, r, err, "failed to list tokens")
		return
	}

	now := s.coordinator.Now()
	views := make([]TokenView, 0, len(records))
	for _, rec := range records {
		views = append(views, NewTokenView(rec, now))
	}
	presenter.JSON(w, r, views, http.StatusOK)
}

// handleGetToken responds with the current token of a source.
func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	source := core.Source(r.PathValue("source"))
	if !source.IsValid() {
		presenter.Error(w, r, "unknown source", http.StatusBadRequest)
		return
	}

	rec, err := s.coordinator.GetToken(r.Context(), source)
	if err != nil {
		presenter.Err(w, r, err, "failed to get token")
		return
	}
	presenter.JSON(w, r, NewTokenDetail(*rec, s.coordinator.Now()), http.StatusOK)
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	var payload InspectPayload
	if !decodeTokenPayload(w, r, &payload, &payload.Token) {
		return
	}

	var platform core.Platform
	if payload.Platform != "" {
		p, err := core.ParsePlatform(payload.Platform)
		if err != nil {
			presenter.Err(w, r, &core.UnknownPlatformError{Platform: payload.Platform}, "unknown platform")
			return
		}
		platform = p
	}

	result, err := s.coordinator.InspectToken(r.Context(), payload.Token, platform)
	if err != nil {
		presenter.Err(w, r, err, "token inspection failed")
		return
	}
	presenter.JSON(w, r, result, http.StatusOK)
}

func (s *Server) handleRenew(w http.ResponseWriter, r *http.Request) {
	var payload RenewPayload
	if !decodeTokenPayload(w, r, &payload, &payload.Token) {
		return
	}

	result, err := s.coordinator.RenewToken(r.Context(), payload.Token)
	if err != nil {
		presenter.Err(w, r, err, "token renewal failed")
		return
	}
	presenter.JSON(w, r, result, http.StatusOK)
}

func (s *Server) handleAutoRenew(w http.ResponseWriter, r *http.Request) {
	var payload AutoRenewPayload
	if !decodeTokenPayload(w, r, &payload, &payload.Token) {
		return
	}
	if payload.ThresholdSeconds < 0 {
		presenter.Error(w, r, "threshold_seconds must not be negative", http.StatusBadRequest)
		return
	}

	threshold := time.Duration(payload.ThresholdSeconds) * time.Second
	result, err := s.coordinator.AutoRenewIfNeeded(r.Context(), payload.Token, threshold)
	if err != nil {
		presenter.Err(w, r, err, "auto renewal failed")
		return
	}
	presenter.JSON(w, r, result, http.StatusOK)
}

// handleSweep runs a renewal sweep synchronously and responds with its report.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var payload SweepPayload
	if err := DecodePayload(r, &payload, true); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("invalid sweep payload")
		presenter.Error(w, r, "invalid payload", http.StatusBadRequest)
		return
	}

	threshold := time.Duration(payload.ThresholdSeconds) * time.Second
	report, err := s.coordinator.SweepRenewals(r.Context(), threshold, nil)
	if err != nil {
		presenter.Err(w, r, err, "renewal sweep failed")
		return
	}
	presenter.JSON(w, r, report, http.StatusOK)
}

// decodeTokenPayload decodes dest and writes an error response if it is
// malformed or token is empty.
func decodeTokenPayload(w http.ResponseWriter, r *http.Request, dest any, token *string) bool {
	if err := DecodePayload(r, dest, false); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("invalid payload")
		presenter.Error(w, r, "invalid payload", http.StatusBadRequest)
		return false
	}
	if *token == "" {
		presenter.Error(w, r, "missing token", http.StatusBadRequest)
		return false
	}
	return true
}
