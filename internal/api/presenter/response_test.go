package presenter

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/tasks"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid token", &core.InvalidTokenError{Reason: "empty"}, http.StatusBadRequest},
		{"exchange", &core.ExchangeError{Platform: core.PlatformWhatsApp, Err: errors.New("x")}, http.StatusBadGateway},
		{"introspection", &core.IntrospectionError{Platform: core.PlatformWhatsApp, Err: errors.New("x")}, http.StatusBadGateway},
		{"not renewable", &core.TokenNotRenewableError{Platform: core.PlatformWhatsApp}, http.StatusConflict},
		{"unsupported", &core.UnsupportedOperationError{Platform: core.PlatformTiendaNube}, http.StatusNotImplemented},
		{"not found", &core.NotFoundError{Source: core.SourceManual}, http.StatusNotFound},
		{"task not found", tasks.TaskNotFoundError{Name: "x"}, http.StatusNotFound},
		{"unknown platform", &core.UnknownPlatformError{Platform: "x"}, http.StatusBadRequest},
		{"wrapped", fmt.Errorf("storing: %w", &core.NotFoundError{}), http.StatusNotFound},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf() = %d, want %d", got, tt.want)
			}
		})
	}
}
