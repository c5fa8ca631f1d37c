package api

import (
	"net/http"

	"github.com/darmiel/linkgate/internal/api/middleware"
	"github.com/darmiel/linkgate/internal/audit"
	"github.com/darmiel/linkgate/internal/core"
	"github.com/darmiel/linkgate/internal/service"
	"github.com/darmiel/linkgate/internal/tasks"
)

type Server struct {
	coordinator *service.Coordinator
	taskManager *tasks.Manager
	auditor     core.Auditor
}

func NewServer(
	coordinator *service.Coordinator,
	taskManager *tasks.Manager,
	auditor core.Auditor,
) *Server {
	if auditor == nil {
		auditor = audit.NewNoopAuditor()
	}
	if taskManager == nil {
		taskManager = tasks.NewManager()
	}
	return &Server{
		coordinator: coordinator,
		taskManager: taskManager,
		auditor:     auditor,
	}
}

// Routes builds the HTTP handler. Admin routes require an HS256 JWT signed
// with signingKey and are disabled if the key is empty.
func (s *Server) Routes(signingKey []byte) http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)

	// oauth flow
	mux.HandleFunc("GET "+AuthorizeRoute, s.handleAuthorize)
	mux.HandleFunc("GET "+CallbackRoute, s.handleCallback)
	mux.HandleFunc("POST "+ExchangeRoute, s.handleExchange)

	// admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET "+ListTokensRoute, s.handleListTokens)
	adminMux.HandleFunc("GET "+GetTokenRoute, s.handleGetToken)
	adminMux.HandleFunc("POST "+InspectRoute, s.handleInspect)
	adminMux.HandleFunc("POST "+RenewRoute, s.handleRenew)
	adminMux.HandleFunc("POST "+AutoRenewRoute, s.handleAutoRenew)
	adminMux.HandleFunc("POST "+SweepRoute, s.handleSweep)
	adminMux.HandleFunc("GET "+ListAuditsRoute, s.handleAdminAudit)
	adminMux.HandleFunc("GET "+ListTasksRoute, s.handleListTasks)
	adminMux.HandleFunc("POST "+TriggerTaskRoute, s.handleTriggerTask)
	adminMux.HandleFunc("GET "+LogsForTaskRoute, s.handleLogsForTask)
	mux.Handle(AdminParent, middleware.AdminAuth(signingKey)(adminMux))

	return middleware.RecoverMiddleware(
		middleware.CorrelationIDMiddleware(
			middleware.LoggingMiddleware(
				mux)))
}
