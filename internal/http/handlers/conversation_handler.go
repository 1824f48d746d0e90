// Conversation HTTP handlers.
//
// This file exposes REST endpoints for conversation threads:
//   - GET  /conversations               (list, paginated, most recently active first)
//   - GET  /conversations/{id}/messages (list messages, paginated, oldest first)
//   - POST /conversations/{id}/read     (acknowledge, zero the unread counter)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dev-avwi/TradieTrack-sub004/internal/domain"
	"github.com/dev-avwi/TradieTrack-sub004/internal/gateway"
	"github.com/dev-avwi/TradieTrack-sub004/internal/services"
	"github.com/dev-avwi/TradieTrack-sub004/internal/utils"
)

//
// Service contracts (context-aware)
//

// ConversationService defines thread-level operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ConversationService interface {
	// ListPage returns a page of the tenant's conversations and the total count.
	ListPage(ctx context.Context, tenantID string, page, pageSize int) ([]domain.Conversation, int64, error)
	// MarkRead zeroes the unread counter of a thread the tenant owns.
	MarkRead(ctx context.Context, tenantID, conversationID string) error
}

// MessageService defines outbound dispatch and message retrieval operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MessageService interface {
	// Send dispatches one outbound SMS; the returned message is terminal.
	Send(ctx context.Context, req services.SendRequest) (*domain.Message, error)
	// ListMessagesPage returns a page of messages within a conversation the
	// tenant owns, plus the total count.
	ListMessagesPage(ctx context.Context, tenantID, conversationID string, page, pageSize int) ([]domain.Message, int64, error)
}

// QuickActionService defines the canned-message composer operations.
type QuickActionService interface {
	// Send renders the named quick action for a job and dispatches it.
	Send(ctx context.Context, req services.QuickActionRequest) (*domain.Message, error)
}

// InboundService resolves arriving webhook payloads to a conversation.
type InboundService interface {
	// Route attributes an inbound SMS; (nil, nil) means dropped or redelivered.
	Route(ctx context.Context, in gateway.Inbound) (*domain.Message, error)
}

// AutomationService defines the rule administration operations.
type AutomationService interface {
	ListRules(ctx context.Context, tenantID string) ([]domain.AutomationRule, error)
	CreateRule(ctx context.Context, tenantID, triggerType string, customTemplate *string) (*domain.AutomationRule, error)
	UpdateRule(ctx context.Context, tenantID, ruleID string, active bool, customTemplate *string) (*domain.AutomationRule, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for conversations, messages, quick actions,
// automation rules, and the inbound webhook. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	convSvc ConversationService
	msgSvc  MessageService
	qaSvc   QuickActionService
	inSvc   InboundService
	autoSvc AutomationService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(convSvc ConversationService, msgSvc MessageService, qaSvc QuickActionService, inSvc InboundService, autoSvc AutomationService) *Handlers {
	return &Handlers{convSvc: convSvc, msgSvc: msgSvc, qaSvc: qaSvc, inSvc: inSvc, autoSvc: autoSvc}
}

// tenantID extracts the workspace identity from Gin context (set by upstream
// middleware). If absent, it falls back to the "X-Tenant-ID" header (tests use
// it), and finally to "demo-tenant". It never touches c.Request if it's nil.
func tenantID(c *gin.Context) string {
	if v, ok := c.Get("tenantID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-Tenant-ID")); h != "" {
			return h
		}
	}
	return "demo-tenant"
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListConversationsResponse wraps a page of conversations and pagination
// information.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

// ListMessagesResponse contains a page of messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// paginationFor computes the metadata envelope for a page.
func paginationFor(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Handlers
//

// ListConversations returns a page of the tenant's threads, most recently
// active first. Archived threads are excluded.
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	tid := tenantID(c)
	page, pageSize := clampPagination(c)

	items, total, err := h.convSvc.ListPage(ctx, tid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: items,
		Pagination:    paginationFor(page, pageSize, total),
	})
}

// ListMessages returns paginated messages for one conversation, oldest first.
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	convID := c.Param("id")

	if _, err := uuid.Parse(convID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	page, pageSize := clampPagination(c)

	items, total, err := h.msgSvc.ListMessagesPage(ctx, tenantID(c), convID, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   items,
		Pagination: paginationFor(page, pageSize, total),
	})
}

// MarkConversationRead acknowledges a thread, zeroing its unread counter.
func (h *Handlers) MarkConversationRead(c *gin.Context) {
	convID := c.Param("id")
	if _, err := uuid.Parse(convID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	if err := h.convSvc.MarkRead(c.Request.Context(), tenantID(c), convID); err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	noContent(c)
}
