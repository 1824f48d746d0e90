// Outbound message HTTP handler.
//
// This file exposes the send endpoint:
//   - POST /messages   (dispatch one outbound SMS)
//
// The handler is transport-thin:
//   - validate & normalize inputs (body text, length constraints)
//   - delegate to the application dispatcher (SMSService)
//   - implement idempotency semantics
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (tenant, key), the handler returns that recorded message
// and sets `Idempotency-Replayed: true`. A failed dispatch is never recorded
// under the key, so retrying after a gateway error re-attempts the send.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/dev-avwi/TradieTrack-sub004/internal/domain"
	"github.com/dev-avwi/TradieTrack-sub004/internal/http/middleware"
	"github.com/dev-avwi/TradieTrack-sub004/internal/repo"
	"github.com/dev-avwi/TradieTrack-sub004/internal/services"
)

//
// DTOs
//

// SendMessageRequest is the JSON payload for dispatching an outbound SMS.
//
// Body is normalized by the handler (line endings and excessive blank lines)
// before being passed to the service layer. The service also enforces a
// maximum rune count, which can be configured in SMSService.
type SendMessageRequest struct {
	// To is the destination phone number in any recognizable format.
	To string `json:"to" binding:"required,min=1"`
	// Body is the message text. It must be non-empty.
	Body string `json:"body" binding:"required,min=1"`
	// SenderID optionally records which tenant user sent the message.
	SenderID string `json:"sender_id"`
	// ClientID/ClientName/JobID optionally seed a newly created conversation.
	ClientID   string `json:"client_id"`
	ClientName string `json:"client_name"`
	JobID      string `json:"job_id"`
}

// SendMessageResponse is the JSON envelope for a dispatched message.
type SendMessageResponse struct {
	// Message is the persisted outbound message in its terminal state.
	Message *domain.Message `json:"message"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeBody normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeBody(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// discoverMaxBodyRunes inspects the concrete SMSService for a configured
// body-length limit. If unavailable, it returns a conservative fallback.
func discoverMaxBodyRunes(msgSvc MessageService) int {
	const fallback = 1600
	if ms, ok := msgSvc.(*services.SMSService); ok {
		if ms.MaxBodyRunes > 0 {
			return ms.MaxBodyRunes
		}
	}
	return fallback
}

//
// Handlers
//

// SendMessage dispatches one outbound SMS and returns the persisted message.
// Supports idempotency via the Idempotency-Key header (same key → same result).
func (h *Handlers) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "to and body required")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	body := sanitizeBody(req.Body)
	maxRunes := discoverMaxBodyRunes(h.msgSvc)
	if maxRunes > 0 && utf8.RuneCountInString(body) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("body too long: max %d runes", maxRunes))
		return
	}
	if body == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body required")
		return
	}

	tid := tenantID(c)

	// Idempotency (replay path) – read validated key if present.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey == "" {
		idemKey = strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
	}
	if idemKey != "" {
		if svc, okSvc := h.msgSvc.(*services.SMSService); okSvc && svc.DB != nil {
			if rec, err := repo.GetIdempotency(ctx, svc.DB, tid, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := repo.GetMessage(ctx, svc.DB, rec.MessageID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusCreated, SendMessageResponse{Message: prev})
					return
				}
			}
		}
	}

	m, err := h.msgSvc.Send(ctx, services.SendRequest{
		TenantID:   tid,
		To:         req.To,
		Body:       body,
		SenderID:   strings.TrimSpace(req.SenderID),
		ClientID:   strings.TrimSpace(req.ClientID),
		ClientName: strings.TrimSpace(req.ClientName),
		JobID:      strings.TrimSpace(req.JobID),
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPhone):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "destination phone number is not usable")
		case errors.Is(err, services.ErrEmptyBody):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body required")
		case errors.Is(err, services.ErrBodyTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("body too long: max %d runes", maxRunes))
		case m != nil:
			// The dispatch reached the gateway and failed; the attempt is
			// persisted with status failed. Surface the gateway error.
			fail(c, http.StatusBadGateway, ErrCodeSendFailed, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSendFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort, successful sends only.
	if idemKey != "" {
		if svc, okSvc := h.msgSvc.(*services.SMSService); okSvc && svc.DB != nil {
			ttl := 24 * time.Hour
			_, _ = repo.CreateIdempotency(ctx, svc.DB, tid, idemKey, m.ID, http.StatusCreated, ttl)
		}
	}

	ok(c, http.StatusCreated, SendMessageResponse{Message: m})
}
