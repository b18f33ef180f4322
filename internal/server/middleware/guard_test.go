package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"stepup-gateway/internal/session"
	sessiondomain "stepup-gateway/internal/session/domain"
	"stepup-gateway/internal/stepup"
)

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *recordingAudit) LogEvent(ctx context.Context, adminID, sessionID, action, resource, metadata string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
}

// newGuardRegistry builds sessions the way the server does: the builder decides
// required from the role, so service accounts get an open gate from the start.
func newGuardRegistry(t *testing.T) *session.Registry {
	t.Helper()
	return session.NewRegistry(func(ctx context.Context, s sessiondomain.Session) (*stepup.Gate, *stepup.Controller, error) {
		gate := stepup.NewGate(s.Role != "service_account")
		return gate, nil, nil
	})
}

func guardedRequest(sessionID, role string) *http.Request {
	req := httptest.NewRequest("GET", "/v1/admin/audit-logs", nil)
	ctx := WithIdentity(req.Context(), "admin-1", sessionID, role)
	return req.WithContext(ctx)
}

func TestGuard_DeniesUnsatisfiedGate(t *testing.T) {
	registry := newGuardRegistry(t)
	auditLog := &recordingAudit{}
	guard := StepUpGuard(registry, newTokens(t), auditLog)

	rec := httptest.NewRecorder()
	guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("guarded handler should not run")
	})).ServeHTTP(rec, guardedRequest("sess-1", "admin"))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "step_up_required") || !strings.Contains(body, "/v1/stepup/begin") {
		t.Errorf("body = %s, want step_up_required with a pointer to the flow", body)
	}
	if len(auditLog.actions) != 1 || auditLog.actions[0] != "access_denied" {
		t.Errorf("audit actions = %v, want one access_denied", auditLog.actions)
	}
}

// An exempt role reaches the admin surface directly: the guard creates the
// session entry itself, so no prior call to the step-up flow is needed.
func TestGuard_ExemptRolePassesWithoutPriorStepUp(t *testing.T) {
	registry := newGuardRegistry(t)
	guard := StepUpGuard(registry, newTokens(t), nil)

	rec := httptest.NewRecorder()
	called := false
	guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rec, guardedRequest("sess-1", "service_account"))

	if !called || rec.Code != 200 {
		t.Fatalf("called = %v, status = %d; exempt role should pass on first contact", called, rec.Code)
	}
	// The guard registered the session along the way.
	if _, ok := registry.Get("sess-1"); !ok {
		t.Error("guard did not create the session entry")
	}
}

func TestGuard_PassesSatisfiedGate(t *testing.T) {
	registry := session.NewRegistry(func(ctx context.Context, s sessiondomain.Session) (*stepup.Gate, *stepup.Controller, error) {
		gate := stepup.NewGate(true)
		controller := stepup.NewController(s.AdminID, nil, nil, nil, gate, nil)
		return gate, controller, nil
	})
	entry, err := registry.GetOrCreate(context.Background(), "sess-1", "admin-1", "admin")
	if err != nil {
		t.Fatal(err)
	}
	entry.Controller.CompleteOutOfBand()
	guard := StepUpGuard(registry, newTokens(t), nil)

	rec := httptest.NewRecorder()
	called := false
	guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rec, guardedRequest("sess-1", "admin"))

	if !called {
		t.Fatalf("status = %d; satisfied gate should pass", rec.Code)
	}
}

func TestGuard_PassesWithStepUpToken(t *testing.T) {
	// The in-memory gate is unsatisfied (e.g. verification happened on a
	// different replica), but a valid step-up token bound to the session passes.
	registry := newGuardRegistry(t)
	tokens := newTokens(t)
	token, _, err := tokens.IssueStepUp("sess-1", "admin-1")
	if err != nil {
		t.Fatal(err)
	}
	guard := StepUpGuard(registry, tokens, nil)

	req := guardedRequest("sess-1", "admin")
	req.Header.Set(StepUpTokenHeader, token)
	rec := httptest.NewRecorder()
	called := false
	guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(rec, req)

	if !called {
		t.Fatalf("status = %d; valid step-up token should pass", rec.Code)
	}
}

func TestGuard_RejectsTokenForOtherSession(t *testing.T) {
	registry := newGuardRegistry(t)
	tokens := newTokens(t)
	token, _, err := tokens.IssueStepUp("sess-other", "admin-1")
	if err != nil {
		t.Fatal(err)
	}
	guard := StepUpGuard(registry, tokens, nil)

	req := guardedRequest("sess-1", "admin")
	req.Header.Set(StepUpTokenHeader, token)
	rec := httptest.NewRecorder()
	guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("token for another session must not pass")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestGuard_SessionSetupFailure(t *testing.T) {
	registry := session.NewRegistry(func(ctx context.Context, s sessiondomain.Session) (*stepup.Gate, *stepup.Controller, error) {
		return nil, nil, errors.New("policy unavailable")
	})
	guard := StepUpGuard(registry, newTokens(t), nil)

	rec := httptest.NewRecorder()
	guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run when session setup fails")
	})).ServeHTTP(rec, guardedRequest("sess-1", "admin"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
