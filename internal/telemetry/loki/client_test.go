package loki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPushEvent(t *testing.T) {
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/loki/api/v1/push" {
			t.Errorf("path = %q, want /loki/api/v1/push", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("unmarshal push body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := PushEvent(context.Background(), srv.URL, ts, `{"eventType":"verified"}`, map[string]string{
		"admin_id":   "admin-1",
		"event_type": "verified",
		"weird":      "a b/c",
	})
	if err != nil {
		t.Fatalf("PushEvent: %v", err)
	}
	if len(got.Streams) != 1 {
		t.Fatalf("streams = %d, want 1", len(got.Streams))
	}
	labels := got.Streams[0].Stream
	if labels["job"] != "stepup-gateway" {
		t.Errorf("job label = %q, want stepup-gateway", labels["job"])
	}
	if labels["admin_id"] != "admin-1" {
		t.Errorf("admin_id label = %q", labels["admin_id"])
	}
	if labels["weird"] != "a_b_c" {
		t.Errorf("sanitized label = %q, want a_b_c", labels["weird"])
	}
}

func TestPushEventJSON_ParsesLabelsAndTimestamp(t *testing.T) {
	var got PushRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	raw := []byte(`{"adminId":"admin-1","sessionId":"sess-1","eventType":"stepup_begin","source":"stepup-gateway","createdAt":"2026-03-01T12:00:00Z"}`)
	if err := PushEventJSON(context.Background(), srv.URL, raw); err != nil {
		t.Fatalf("PushEventJSON: %v", err)
	}
	labels := got.Streams[0].Stream
	if labels["event_type"] != "stepup_begin" || labels["session_id"] != "sess-1" {
		t.Errorf("labels = %v", labels)
	}
	wantNS := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixNano()
	if got.Streams[0].Values[0][0] != fmt.Sprintf("%d", wantNS) {
		t.Errorf("timestamp = %s, want %d", got.Streams[0].Values[0][0], wantNS)
	}
}

func TestPushEvent_EmptyBaseURL(t *testing.T) {
	if err := PushEvent(context.Background(), "", time.Now(), "line", nil); err == nil {
		t.Fatal("PushEvent with empty base URL should return error")
	}
}

func TestPushEvent_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ingestion disabled", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := PushEvent(context.Background(), srv.URL, time.Now(), "line", nil); err == nil {
		t.Fatal("PushEvent should return error on non-2xx")
	}
}
