package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"stepup-gateway/internal/audit/domain"
	auditrepo "stepup-gateway/internal/audit/repository"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Handler serves audit log reads on the privileged admin surface.
type Handler struct {
	repo auditrepo.Repository
}

// NewHandler returns an audit log HTTP handler backed by repo.
func NewHandler(repo auditrepo.Repository) *Handler {
	return &Handler{repo: repo}
}

type auditLogResponse struct {
	ID        string    `json:"id"`
	AdminID   string    `json:"admin_id"`
	SessionID string    `json:"session_id,omitempty"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type listResponse struct {
	AuditLogs []auditLogResponse `json:"audit_logs"`
	Limit     int32              `json:"limit"`
	Offset    int32              `json:"offset"`
}

// List handles GET /v1/admin/audit-logs. Query params: admin_id (optional
// filter), limit, offset.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseInt32(r.URL.Query().Get("limit"), defaultLimit)
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	offset := parseInt32(r.URL.Query().Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	var (
		logs []*domain.AuditLog
		err  error
	)
	if adminID := r.URL.Query().Get("admin_id"); adminID != "" {
		logs, err = h.repo.ListByAdmin(r.Context(), adminID, limit, offset)
	} else {
		logs, err = h.repo.ListRecent(r.Context(), limit, offset)
	}
	if err != nil {
		log.Printf("audit: list failed: %v", err)
		http.Error(w, `{"error":"failed to list audit logs"}`, http.StatusInternalServerError)
		return
	}

	resp := listResponse{AuditLogs: make([]auditLogResponse, 0, len(logs)), Limit: limit, Offset: offset}
	for _, a := range logs {
		resp.AuditLogs = append(resp.AuditLogs, auditLogResponse{
			ID:        a.ID,
			AdminID:   a.AdminID,
			SessionID: a.SessionID,
			Action:    a.Action,
			Resource:  a.Resource,
			IP:        a.IP,
			Metadata:  a.Metadata,
			CreatedAt: a.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("audit: encode response: %v", err)
	}
}

func parseInt32(s string, def int32) int32 {
	if s == "" {
		return def
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return def
	}
	return int32(n)
}
