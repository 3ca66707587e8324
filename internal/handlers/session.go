package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/linguabridge-backend/internal/logger"
	"github.com/yungbote/linguabridge-backend/internal/pipeline"
	"github.com/yungbote/linguabridge-backend/internal/services"
	"github.com/yungbote/linguabridge-backend/internal/store"
)

type SessionHandler struct {
	log *logger.Logger
	svc services.SessionService
}

func NewSessionHandler(log *logger.Logger, svc services.SessionService) *SessionHandler {
	return &SessionHandler{
		log: log.With("handler", "SessionHandler"),
		svc: svc,
	}
}

type startSessionRequest struct {
	UserID          string   `json:"user_id" binding:"required"`
	Domains         []string `json:"domains"`
	ExtraCurricular bool     `json:"extra_curricular"`
}

// POST /api/sessions
func (h *SessionHandler) Start(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	view, err := h.svc.StartSession(c.Request.Context(), services.StartSessionInput{
		UserID:          userID,
		Domains:         req.Domains,
		ExtraCurricular: req.ExtraCurricular,
	})
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "start_failed", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GET /api/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	view, err := h.svc.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		h.respondSessionError(c, err)
		return
	}
	RespondOK(c, view)
}

type interactRequest struct {
	ItemID     string     `json:"item_id" binding:"required"`
	Outcome    string     `json:"outcome" binding:"required"`
	LatencyMs  int64      `json:"latency_ms"`
	Seq        int64      `json:"seq"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}

// POST /api/sessions/:id/interactions
func (h *SessionHandler) Interact(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	var req interactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	resp, err := h.svc.Interact(c.Request.Context(), sessionID, services.InteractInput{
		ItemID:     itemID,
		Outcome:    req.Outcome,
		LatencyMs:  req.LatencyMs,
		Seq:        req.Seq,
		OccurredAt: req.OccurredAt,
	})
	if err != nil {
		h.respondSessionError(c, err)
		return
	}
	RespondOK(c, resp)
}

// POST /api/sessions/:id/pause
func (h *SessionHandler) Pause(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	if err := h.svc.PauseSession(c.Request.Context(), sessionID); err != nil {
		h.respondSessionError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/sessions/:id/resume
func (h *SessionHandler) Resume(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	view, err := h.svc.ResumeSession(c.Request.Context(), sessionID)
	if err != nil {
		h.respondSessionError(c, err)
		return
	}
	RespondOK(c, view)
}

// POST /api/sessions/:id/end
func (h *SessionHandler) End(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	summary, err := h.svc.EndSession(c.Request.Context(), sessionID)
	if err != nil {
		h.respondSessionError(c, err)
		return
	}
	RespondOK(c, summary)
}

func (h *SessionHandler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return uuid.Nil, false
	}
	return id, true
}

// respondSessionError maps the engine's error taxonomy onto the wire.
// Only invalid events and missing/ended sessions are caller-actionable;
// everything else degrades inside the engine and never reaches here.
func (h *SessionHandler) respondSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		RespondError(c, http.StatusNotFound, "session_not_found", err)
	case errors.Is(err, services.ErrSessionEnded):
		RespondError(c, http.StatusGone, "session_ended", err)
	case errors.Is(err, services.ErrSessionPaused):
		RespondError(c, http.StatusConflict, "session_paused", err)
	case errors.Is(err, pipeline.ErrInvalidEvent):
		RespondError(c, http.StatusUnprocessableEntity, "invalid_event", err)
	default:
		h.log.Error("session operation failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
