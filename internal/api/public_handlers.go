package api

import (
	"net/http"

	"github.com/darmiel/linkgate/internal/api/presenter"
	"github.com/darmiel/linkgate/internal/buildinfo"
	"github.com/darmiel/linkgate/internal/platforms"
)

// handleHealth responds with a simple OK status to indicate the server is healthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type AboutResponse struct {
	buildinfo.Info
	Platforms []platforms.Capabilities `json:"platforms"`
}

// handleAbout responds with service information and the configured platforms.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, AboutResponse{
		Info:      buildinfo.GetBuildInfo(),
		Platforms: s.coordinator.Platforms(),
	}, http.StatusOK)
}
