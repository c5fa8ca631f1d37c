package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/linkgate/internal/api/presenter"
	"github.com/darmiel/linkgate/internal/core"
)

const defaultAuditLimit = 50

// handleAdminAudit processes requests to retrieve audit log entries.
func (s *Server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	reader, ok := s.auditor.(core.AuditReader)
	if !ok {
		presenter.Error(w, r, "audit log is not readable", http.StatusNotImplemented)
		return
	}

	// filters
	q := r.URL.Query()
	limitStr := q.Get("limit")

	filterCorrelationID := q.Get("correlation_id")
	filterAction := q.Get("action")
	filterSource := core.Source(q.Get("source"))
	filterFingerprint := q.Get("fingerprint")

	limit := defaultAuditLimit
	if limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v <= 0 {
			logger.Warn().Str("limit", limitStr).Msg("invalid limit parameter")
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = v
	}

	var entries []core.AuditEntry
	var err error

	if filterCorrelationID != "" || filterAction != "" || filterSource != "" || filterFingerprint != "" {
		logger.Debug().Msg("applying audit log filters")
		entries, err = reader.Find(func(entry core.AuditEntry) bool {
			if filterCorrelationID != "" && entry.ID != filterCorrelationID {
				return false
			}
			if filterAction != "" && entry.Action != filterAction {
				return false
			}
			if filterSource != "" && entry.Source != filterSource {
				return false
			}
			if filterFingerprint != "" && entry.TokenFingerprint != filterFingerprint {
				return false
			}
			return true
		}, limit)
	} else {
		entries, err = reader.GetRecent(limit)
	}

	if err != nil {
		logger.Error().Err(err).Msg("failed to retrieve audit logs")
		presenter.Error(w, r, "failed to retrieve audit logs", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}

	presenter.JSON(w, r, entries, http.StatusOK)
}
