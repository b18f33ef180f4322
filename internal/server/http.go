// Package server wires the HTTP router: public health, the step-up flow, and
// the guarded admin surface.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"stepup-gateway/internal/audit"
	audithandler "stepup-gateway/internal/audit/handler"
	healthhandler "stepup-gateway/internal/health/handler"
	"stepup-gateway/internal/security"
	"stepup-gateway/internal/server/middleware"
	"stepup-gateway/internal/session"
	stepuphandler "stepup-gateway/internal/stepup/handler"
)

// Deps holds the handler dependencies for the router.
type Deps struct {
	// Tokens validates access tokens and step-up tokens. Required.
	Tokens *security.TokenProvider
	// Registry is the in-memory session registry. Required.
	Registry *session.Registry
	// StepUp serves the step-up flow endpoints. Required.
	StepUp *stepuphandler.Handler
	// Audit serves the guarded audit log listing. If nil, the route is not registered.
	Audit *audithandler.Handler
	// Health serves /healthz. If nil, the route is not registered.
	Health *healthhandler.Handler
	// AuditLogger records access denials at the guard. May be nil.
	AuditLogger audit.AuditLogger
}

// NewRouter builds the router. Route layout:
//
//	GET  /healthz                   public
//	POST /v1/stepup/begin           authenticated
//	POST /v1/stepup/code            authenticated
//	POST /v1/stepup/challenge       authenticated
//	POST /v1/stepup/recovery        authenticated
//	GET  /v1/stepup/status          authenticated
//	GET  /v1/admin/audit-logs       authenticated + step-up guard
//
// Every handler is wrapped with otelhttp for traces and metrics.
func NewRouter(deps Deps) http.Handler {
	r := mux.NewRouter()

	if deps.Health != nil {
		r.HandleFunc("/healthz", deps.Health.Check).Methods(http.MethodGet)
	}

	auth := middleware.Auth(deps.Tokens)

	stepupRouter := r.PathPrefix("/v1/stepup").Subrouter()
	stepupRouter.Use(auth)
	stepupRouter.HandleFunc("/begin", deps.StepUp.Begin).Methods(http.MethodPost)
	stepupRouter.HandleFunc("/code", deps.StepUp.SubmitCode).Methods(http.MethodPost)
	stepupRouter.HandleFunc("/challenge", deps.StepUp.NewChallenge).Methods(http.MethodPost)
	stepupRouter.HandleFunc("/recovery", deps.StepUp.Recovery).Methods(http.MethodPost)
	stepupRouter.HandleFunc("/status", deps.StepUp.Status).Methods(http.MethodGet)

	adminRouter := r.PathPrefix("/v1/admin").Subrouter()
	adminRouter.Use(auth, middleware.StepUpGuard(deps.Registry, deps.Tokens, deps.AuditLogger))
	if deps.Audit != nil {
		adminRouter.HandleFunc("/audit-logs", deps.Audit.List).Methods(http.MethodGet)
	}

	return otelhttp.NewHandler(r, "stepup-gateway")
}
