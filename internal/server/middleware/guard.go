package middleware

import (
	"net/http"

	"stepup-gateway/internal/audit"
	"stepup-gateway/internal/security"
	"stepup-gateway/internal/session"
)

// StepUpTokenHeader carries the step-up token for stateless replicas that do
// not hold the session's in-memory gate.
const StepUpTokenHeader = "X-StepUp-Token"

// StepUpGuard returns middleware that gates privileged routes on the session's
// step-up state. A request passes when the session's gate is satisfied, or when
// it carries a valid step-up token bound to the same session. Everything else
// gets 403 with a pointer to the step-up flow.
//
// The guard only ever reads the gate; the controller's verify-success
// transition is the single writer.
func StepUpGuard(registry *session.Registry, tokens *security.TokenProvider, auditLogger audit.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sessionID, _ := GetSessionID(ctx)
			adminID, _ := GetAdminID(ctx)
			role, _ := GetRole(ctx)
			if sessionID == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization")
				return
			}

			// Privileged-route activation is where the step-up requirement is
			// decided: create the session entry here so the policy runs even
			// when the caller never touched the step-up flow. Exempt roles get
			// a gate that is satisfied from the start.
			entry, err := registry.GetOrCreate(ctx, sessionID, adminID, role)
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "session_setup_failed", "could not evaluate step-up requirement")
				return
			}
			if entry.Gate.Satisfied() {
				next.ServeHTTP(w, r)
				return
			}

			if token := r.Header.Get(StepUpTokenHeader); token != "" && tokens != nil {
				tokenSession, _, err := tokens.ValidateStepUp(token)
				if err == nil && tokenSession == sessionID {
					next.ServeHTTP(w, r)
					return
				}
			}

			if auditLogger != nil {
				auditLogger.LogEvent(ctx, adminID, sessionID, audit.ActionAccessDenied, "admin_surface", "path="+r.URL.Path)
			}
			writeErrorBody(w, http.StatusForbidden, errorBody{
				Error:    "step_up_required",
				Message:  "additional verification is required before using this surface",
				StepUpAt: "/v1/stepup/begin",
			})
		})
	}
}
