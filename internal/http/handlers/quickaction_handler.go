// Quick action HTTP handler.
//
// This file exposes the canned-message endpoint:
//   - POST /quick-actions   (render a job status template and dispatch it)
//
// The action kind selects a fixed template; the job id resolves the client
// and destination number server-side, so the caller never supplies a phone
// number or message text.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dev-avwi/TradieTrack-sub004/internal/services"
)

//
// DTOs
//

// QuickActionRequest is the JSON payload for sending a quick action.
type QuickActionRequest struct {
	// Kind selects the canned template (e.g. "on_my_way").
	Kind string `json:"kind" binding:"required,min=1"`
	// JobID names the job whose client receives the message.
	JobID string `json:"job_id" binding:"required,min=1"`
	// SenderID optionally records which tenant user triggered the action.
	SenderID string `json:"sender_id"`
	// ETA optionally augments time-sensitive templates, e.g. "about 20 minutes".
	ETA string `json:"eta"`
}

//
// Handlers
//

// SendQuickAction validates the action kind, renders its template for the
// job's client, and dispatches the resulting SMS.
func (h *Handlers) SendQuickAction(c *gin.Context) {
	var req QuickActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "kind and job_id required")
		return
	}

	m, err := h.qaSvc.Send(c.Request.Context(), services.QuickActionRequest{
		TenantID: tenantID(c),
		Kind:     strings.TrimSpace(req.Kind),
		JobID:    strings.TrimSpace(req.JobID),
		SenderID: strings.TrimSpace(req.SenderID),
		ETA:      req.ETA,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownQuickAction):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown quick action kind")
		case errors.Is(err, services.ErrJobNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "job not found")
		case errors.Is(err, services.ErrClientWithoutPhone):
			fail(c, http.StatusConflict, ErrCodeConflict, "client has no phone number on file")
		case m != nil:
			fail(c, http.StatusBadGateway, ErrCodeSendFailed, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSendFailed, err.Error())
		}
		return
	}

	ok(c, http.StatusCreated, SendMessageResponse{Message: m})
}
