package presenter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/tasks"
)

// correlationHeader is set on the response by the correlation middleware
// before any handler runs.
const correlationHeader = "X-Correlation-ID"

type ErrorResponse struct {
	Error         string        `json:"error"`
	CorrelationID string        `json:"correlation_id"`
	Platform      core.Platform `json:"platform,omitempty"`

	// set if an upstream platform rejected the call
	UpstreamStatus int    `json:"upstream_status,omitempty"`
	UpstreamBody   string `json:"upstream_body,omitempty"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg string, status int) {
	JSON(w, r, ErrorResponse{
		Error:         msg,
		CorrelationID: w.Header().Get(correlationHeader),
	}, status)
}

// Err writes err with the status code matching its type.
func Err(w http.ResponseWriter, r *http.Request, err error, short string) {
	resp := ErrorResponse{
		Error:         short + ": " + err.Error(),
		CorrelationID: w.Header().Get(correlationHeader),
	}
	status := StatusOf(err)

	var exErr *core.ExchangeError
	var inErr *core.IntrospectionError
	var renewErr *core.TokenNotRenewableError
	var unsupErr *core.UnsupportedOperationError
	switch {
	case errors.As(err, &exErr):
		resp.Platform = exErr.Platform
		resp.UpstreamStatus = exErr.HTTPStatus
		resp.UpstreamBody = exErr.UpstreamBody
	case errors.As(err, &inErr):
		resp.Platform = inErr.Platform
		resp.UpstreamStatus = inErr.HTTPStatus
		resp.UpstreamBody = inErr.UpstreamBody
	case errors.As(err, &renewErr):
		resp.Platform = renewErr.Platform
	case errors.As(err, &unsupErr):
		resp.Platform = unsupErr.Platform
	}

	if status >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error().Err(err).Int("status", status).Msg(short)
	} else {
		log.Ctx(r.Context()).Warn().Err(err).Int("status", status).Msg(short)
	}
	JSON(w, r, resp, status)
}

// StatusOf maps domain errors to HTTP status codes.
func StatusOf(err error) int {
	var (
		exErr       *core.ExchangeError
		inErr       *core.IntrospectionError
		renewErr    *core.TokenNotRenewableError
		unsupErr    *core.UnsupportedOperationError
		notFoundErr *core.NotFoundError
		platformErr *core.UnknownPlatformError
		taskErr     tasks.TaskNotFoundError
	)
	switch {
	case errors.Is(err, core.ErrInvalidToken):
		return http.StatusBadRequest
	case errors.As(err, &exErr), errors.As(err, &inErr):
		return http.StatusBadGateway
	case errors.As(err, &renewErr):
		return http.StatusConflict
	case errors.As(err, &unsupErr):
		return http.StatusNotImplemented
	case errors.As(err, &notFoundErr), errors.As(err, &taskErr):
		return http.StatusNotFound
	case errors.As(err, &platformErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
