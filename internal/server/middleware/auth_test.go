package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stepup-gateway/internal/security"
)

func newTokens(t *testing.T) *security.TokenProvider {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("test token provider: %v", err)
	}
	return tokens
}

func TestAuth_ValidToken(t *testing.T) {
	tokens := newTokens(t)
	access, err := tokens.IssueAccess("sess-1", "admin-1", "admin", time.Minute)
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}

	var gotAdmin, gotSession, gotRole string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAdmin, _ = GetAdminID(r.Context())
		gotSession, _ = GetSessionID(r.Context())
		gotRole, _ = GetRole(r.Context())
	})

	req := httptest.NewRequest("GET", "/v1/stepup/status", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	Auth(tokens)(next).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotAdmin != "admin-1" || gotSession != "sess-1" || gotRole != "admin" {
		t.Errorf("identity = %s/%s/%s", gotAdmin, gotSession, gotRole)
	}
}

func TestAuth_MissingOrInvalidToken(t *testing.T) {
	tokens := newTokens(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run without a valid token")
	})

	for _, header := range []string{"", "Bearer garbage", "Basic abc", "Bearer"} {
		req := httptest.NewRequest("GET", "/v1/stepup/status", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		Auth(tokens)(next).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestRequestIP(t *testing.T) {
	testCases := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"remote addr", "10.1.2.3:4444", nil, "10.1.2.3"},
		{"x-forwarded-for", "10.1.2.3:4444", map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "203.0.113.9"},
		{"x-real-ip", "10.1.2.3:4444", map[string]string{"X-Real-IP": "203.0.113.7"}, "203.0.113.7"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := requestIP(req); got != tc.want {
				t.Errorf("requestIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtractBearer(t *testing.T) {
	testCases := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"  Bearer   abc  ", "abc"},
		{"Basic abc", ""},
		{"", ""},
	}
	for _, tc := range testCases {
		if got := extractBearer(tc.header); got != tc.want {
			t.Errorf("extractBearer(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
