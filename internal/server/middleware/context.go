package middleware

import "context"

type contextKey struct{ name string }

var (
	adminIDKey   = contextKey{"admin_id"}
	sessionIDKey = contextKey{"session_id"}
	roleKey      = contextKey{"role"}
	clientIPKey  = contextKey{"client_ip"}
)

// WithIdentity returns a context with admin_id, session_id, and role set.
// Handlers and the route guard read these via GetAdminID, GetSessionID, GetRole.
func WithIdentity(ctx context.Context, adminID, sessionID, role string) context.Context {
	ctx = context.WithValue(ctx, adminIDKey, adminID)
	ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	ctx = context.WithValue(ctx, roleKey, role)
	return ctx
}

// GetAdminID returns the admin_id from context and true if set; otherwise "", false.
func GetAdminID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(adminIDKey).(string)
	return v, ok
}

// GetSessionID returns the session_id from context and true if set; otherwise "", false.
func GetSessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	return v, ok
}

// GetRole returns the role from context and true if set; otherwise "", false.
func GetRole(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(roleKey).(string)
	return v, ok
}

// WithClientIP returns a context carrying the client IP resolved from the request.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the client IP from context, or "unknown" if not set.
// Matches the audit.IPExtractor signature.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey).(string); ok && v != "" {
		return v
	}
	return "unknown"
}
