package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"stepup-gateway/internal/security"
)

const bearerPrefix = "bearer "

// Auth returns middleware that validates the Bearer (access) token from the
// Authorization header and sets admin_id, session_id, and role in the request
// context. Requests without a valid token get 401; the step-up flow never runs
// for unauthenticated callers. Client IP is resolved into the context for every
// request, authenticated or not.
func Auth(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithClientIP(r.Context(), requestIP(r))

			token := extractBearer(r.Header.Get("Authorization"))
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization")
				return
			}
			sessionID, adminID, role, err := tokens.ValidateAccess(token)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid authorization")
				return
			}
			ctx = WithIdentity(ctx, adminID, sessionID, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearer returns the Bearer token from an Authorization header value,
// or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// requestIP returns the client IP from X-Forwarded-For, X-Real-IP, or RemoteAddr.
func requestIP(r *http.Request) string {
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		if i := strings.Index(v, ","); i > 0 {
			v = v[:i]
		}
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	if v := strings.TrimSpace(r.Header.Get("X-Real-IP")); v != "" {
		return v
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type errorBody struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	StepUpAt string `json:"step_up_url,omitempty"`
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeErrorBody(w, status, errorBody{Error: code, Message: message})
}

func writeErrorBody(w http.ResponseWriter, status int, body errorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
