// Package handler serves the step-up flow over HTTP: begin, code submission,
// challenge reissue, recovery redemption, and status.
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"stepup-gateway/internal/audit"
	"stepup-gateway/internal/recovery"
	"stepup-gateway/internal/security"
	"stepup-gateway/internal/server/middleware"
	"stepup-gateway/internal/session"
	"stepup-gateway/internal/stepup"
	"stepup-gateway/internal/telemetry"
	telemetrydomain "stepup-gateway/internal/telemetry/domain"
)

const eventSource = "stepup-gateway"

// Handler serves the step-up endpoints. All requests arrive authenticated; the
// auth middleware has already placed admin_id, session_id, and role in context.
type Handler struct {
	registry *session.Registry
	tokens   *security.TokenProvider
	recovery *recovery.Service
	audit    audit.AuditLogger
	emitter  telemetry.EventEmitter
}

// NewHandler returns the step-up HTTP handler. recoverySvc, auditLogger, and
// emitter may be nil; the corresponding features degrade to no-ops.
func NewHandler(registry *session.Registry, tokens *security.TokenProvider, recoverySvc *recovery.Service, auditLogger audit.AuditLogger, emitter telemetry.EventEmitter) *Handler {
	return &Handler{
		registry: registry,
		tokens:   tokens,
		recovery: recoverySvc,
		audit:    auditLogger,
		emitter:  emitter,
	}
}

type enrollmentResponse struct {
	FactorID   string `json:"factor_id"`
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

type stepUpResponse struct {
	State         string              `json:"state"`
	Required      bool                `json:"required"`
	Satisfied     bool                `json:"satisfied"`
	ChallengeID   string              `json:"challenge_id,omitempty"`
	Enrollment    *enrollmentResponse `json:"enrollment,omitempty"`
	StepUpToken   string              `json:"step_up_token,omitempty"`
	TokenExpires  *time.Time          `json:"step_up_token_expires_at,omitempty"`
	RecoveryCodes []string            `json:"recovery_codes,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	State   string `json:"state,omitempty"`
	Retry   bool   `json:"retry"`
}

// Begin handles POST /v1/stepup/begin: it resolves the administrator's factor
// state and advances the session's controller toward a live challenge,
// enrolling a fresh factor first when needed.
func (h *Handler) Begin(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	adminID, sessionID := entry.Session.AdminID, entry.Session.ID

	// Nothing to drive when the gate is already open, either because step-up
	// was completed earlier or because the policy exempts the role.
	if entry.Gate.Satisfied() {
		h.writePrompt(w, r, entry, &stepup.Prompt{State: entry.Controller.State()})
		return
	}

	prompt, err := entry.Controller.Begin(r.Context())
	h.logEvent(r, adminID, sessionID, audit.ActionStepUpBegin, prompt.State.String(), "")
	if err != nil {
		if errors.Is(err, stepup.ErrCleanupFailed) {
			h.logEvent(r, adminID, sessionID, audit.ActionCleanupFailed, prompt.State.String(), "")
		}
		h.writeStepUpError(w, prompt.State, err)
		return
	}
	if prompt.Enrollment != nil {
		h.logEvent(r, adminID, sessionID, audit.ActionEnrollmentStarted, prompt.State.String(), "factor_id="+prompt.Enrollment.FactorID)
	} else if prompt.ChallengeID != "" {
		h.logEvent(r, adminID, sessionID, audit.ActionChallengeIssued, prompt.State.String(), "challenge_id="+prompt.ChallengeID)
	}
	h.writePrompt(w, r, entry, prompt)
}

type codeRequest struct {
	Code string `json:"code"`
}

// SubmitCode handles POST /v1/stepup/code: it validates the submitted TOTP
// code against the live challenge. Success satisfies the session gate, issues
// the step-up token, and, when the code confirmed a fresh enrollment, issues a
// new set of recovery codes.
func (h *Handler) SubmitCode(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	adminID, sessionID := entry.Session.AdminID, entry.Session.ID

	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, errorResponse{
			Error:   "bad_request",
			Message: "request body must be JSON with a non-empty code field",
		})
		return
	}

	prompt, err := entry.Controller.SubmitCode(r.Context(), req.Code)
	if err != nil {
		if errors.Is(err, stepup.ErrCodeInvalid) || errors.Is(err, stepup.ErrChallengeExpired) {
			h.logEvent(r, adminID, sessionID, audit.ActionCodeRejected, prompt.State.String(), "")
		}
		h.writeStepUpError(w, prompt.State, err)
		return
	}

	h.logEvent(r, adminID, sessionID, audit.ActionVerified, prompt.State.String(), "")
	h.writePrompt(w, r, entry, prompt)
}

// NewChallenge handles POST /v1/stepup/challenge: it discards the live
// challenge and issues a fresh one for the same factor. Codes for the old
// challenge are no longer accepted.
func (h *Handler) NewChallenge(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	adminID, sessionID := entry.Session.AdminID, entry.Session.ID

	prompt, err := entry.Controller.RequestNewChallenge(r.Context())
	if err != nil {
		h.writeStepUpError(w, prompt.State, err)
		return
	}
	h.logEvent(r, adminID, sessionID, audit.ActionChallengeIssued, prompt.State.String(), "challenge_id="+prompt.ChallengeID)
	h.writePrompt(w, r, entry, prompt)
}

// Recovery handles POST /v1/stepup/recovery: it redeems a recovery code as the
// out-of-band alternative to a TOTP code. A redeemed code satisfies the gate
// through the controller's single verify-success transition.
func (h *Handler) Recovery(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	adminID, sessionID := entry.Session.AdminID, entry.Session.ID

	if h.recovery == nil {
		writeError(w, http.StatusNotImplemented, errorResponse{
			Error:   "recovery_unavailable",
			Message: "recovery codes are not enabled on this deployment",
		})
		return
	}

	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, errorResponse{
			Error:   "bad_request",
			Message: "request body must be JSON with a non-empty code field",
		})
		return
	}

	if err := h.recovery.Redeem(r.Context(), adminID, req.Code); err != nil {
		h.logEvent(r, adminID, sessionID, audit.ActionRecoveryRejected, entry.Controller.State().String(), "")
		if errors.Is(err, recovery.ErrNotRecognized) {
			writeError(w, http.StatusBadRequest, errorResponse{
				Error:   "code_not_recognized",
				Message: "the recovery code was not recognized or was already used",
				Retry:   true,
			})
			return
		}
		writeError(w, http.StatusBadGateway, errorResponse{
			Error:   "recovery_failed",
			Message: "recovery code lookup failed; try again",
			Retry:   true,
		})
		return
	}

	prompt := entry.Controller.CompleteOutOfBand()
	h.logEvent(r, adminID, sessionID, audit.ActionRecoveryRedeemed, prompt.State.String(), "")
	h.writePrompt(w, r, entry, prompt)
}

// Status handles GET /v1/stepup/status: it reports the controller state and
// whether the session gate is satisfied, without advancing the machine.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stepUpResponse{
		State:     entry.Controller.State().String(),
		Required:  entry.Gate.Required(),
		Satisfied: entry.Gate.Satisfied(),
	})
}

// entry resolves the session entry from the authenticated request context.
func (h *Handler) entry(w http.ResponseWriter, r *http.Request) (*session.Entry, bool) {
	ctx := r.Context()
	sessionID, _ := middleware.GetSessionID(ctx)
	adminID, _ := middleware.GetAdminID(ctx)
	role, _ := middleware.GetRole(ctx)
	if sessionID == "" || adminID == "" {
		writeError(w, http.StatusUnauthorized, errorResponse{
			Error:   "unauthenticated",
			Message: "missing or invalid authorization",
		})
		return nil, false
	}
	entry, err := h.registry.GetOrCreate(ctx, sessionID, adminID, role)
	if err != nil {
		log.Printf("stepup: session setup failed: %v", err)
		writeError(w, http.StatusInternalServerError, errorResponse{
			Error:   "session_setup_failed",
			Message: "could not initialize the step-up session; try again",
			Retry:   true,
		})
		return nil, false
	}
	return entry, true
}

// writePrompt renders a successful controller prompt. Verified prompts carry
// the step-up token; an enrollment-completing verification also carries a
// fresh set of recovery codes.
func (h *Handler) writePrompt(w http.ResponseWriter, r *http.Request, entry *session.Entry, prompt *stepup.Prompt) {
	resp := stepUpResponse{
		State:       prompt.State.String(),
		Required:    entry.Gate.Required(),
		Satisfied:   entry.Gate.Satisfied(),
		ChallengeID: prompt.ChallengeID,
	}
	if prompt.Enrollment != nil {
		resp.Enrollment = &enrollmentResponse{
			FactorID:   prompt.Enrollment.FactorID,
			Secret:     prompt.Enrollment.Secret,
			OTPAuthURL: prompt.Enrollment.OTPAuthURL,
		}
	}
	if prompt.State == stepup.StateVerified {
		token, expiresAt, err := h.tokens.IssueStepUp(entry.Session.ID, entry.Session.AdminID)
		if err != nil {
			log.Printf("stepup: step-up token issue failed: %v", err)
		} else {
			resp.StepUpToken = token
			resp.TokenExpires = &expiresAt
		}
		if prompt.EnrollmentCompleted && h.recovery != nil {
			codes, err := h.recovery.Issue(r.Context(), entry.Session.AdminID)
			if err != nil {
				log.Printf("stepup: recovery code issue failed: %v", err)
			} else {
				resp.RecoveryCodes = codes
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeStepUpError maps controller errors to HTTP responses with an actionable
// message and a retry hint.
func (h *Handler) writeStepUpError(w http.ResponseWriter, state stepup.State, err error) {
	resp := errorResponse{State: state.String()}
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, stepup.ErrCleanupFailed):
		resp.Error = "cleanup_failed"
		resp.Message = "a stale authenticator could not be removed; retry to continue enrollment"
		resp.Retry = true
	case errors.Is(err, stepup.ErrEnrollmentFailed):
		resp.Error = "enrollment_failed"
		resp.Message = "could not create a new authenticator; retry"
		resp.Retry = true
	case errors.Is(err, stepup.ErrCodeInvalid):
		status = http.StatusBadRequest
		resp.Error = "code_invalid"
		resp.Message = "the code was not accepted; begin step-up again to get a new challenge"
		resp.Retry = true
	case errors.Is(err, stepup.ErrChallengeExpired):
		status = http.StatusGone
		resp.Error = "challenge_expired"
		resp.Message = "the challenge expired; begin step-up again to get a new one"
		resp.Retry = true
	case errors.Is(err, stepup.ErrNoLiveChallenge):
		status = http.StatusConflict
		resp.Error = "no_live_challenge"
		resp.Message = "no challenge is in progress; begin step-up first"
	default:
		resp.Error = "challenge_failed"
		resp.Message = "the verification service is unavailable; retry"
		resp.Retry = true
	}
	writeError(w, status, resp)
}

// logEvent records the action to the audit log and emits a telemetry event.
// Both are best-effort.
func (h *Handler) logEvent(r *http.Request, adminID, sessionID, action, state, metadata string) {
	if h.audit != nil {
		h.audit.LogEvent(r.Context(), adminID, sessionID, action, "stepup", metadata)
	}
	telemetry.EmitAsync(h.emitter, r.Context(), &telemetrydomain.StepUpEvent{
		AdminID:   adminID,
		SessionID: sessionID,
		EventType: action,
		Source:    eventSource,
		State:     state,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("stepup: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, body errorResponse) {
	writeJSON(w, status, body)
}
