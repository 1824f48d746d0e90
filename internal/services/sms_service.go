// Package services – SMSService
//
// This file implements the outbound dispatcher. A send is a three-step
// sequence with deliberate ordering: resolve the conversation, persist a
// pending message row, then invoke the gateway and persist the terminal
// status. The pending row exists before the gateway call returns, so a crash
// between the call and the status write leaves a discoverable pending record
// for the reconciliation pass instead of a silently lost event.
//
// Failures are never erased: a failed gateway call leaves a failed message
// row, and the conversation's last-message timestamp is bumped regardless of
// outcome.
//
// Observability: Send is OpenTelemetry-instrumented; spans carry tenant and
// conversation identifiers.
package services

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dev-avwi/TradieTrack-sub004/internal/domain"
	"github.com/dev-avwi/TradieTrack-sub004/internal/gateway"
	"github.com/dev-avwi/TradieTrack-sub004/internal/repo"
)

// SendRequest carries everything the dispatcher needs for one outbound SMS.
type SendRequest struct {
	TenantID string
	To       string // raw phone; normalized during resolution
	Body     string
	SenderID string // tenant user; empty for system/automation sends

	// Optional resolution context, forwarded to the conversation directory.
	ClientID   string
	ClientName string
	JobID      string

	// QuickAction tags the message with the canned template that produced it.
	QuickAction string
}

// Dispatcher is the narrow outbound contract consumed by the quick action
// composer and the automation engine.
type Dispatcher interface {
	Send(ctx context.Context, req SendRequest) (*domain.Message, error)
}

// SMSService coordinates conversation resolution, message persistence, and
// the telephony gateway.
type SMSService struct {
	DB            *gorm.DB
	Gateway       gateway.Sender
	Conversations *ConversationService

	// MaxBodyRunes caps outbound bodies; 0 disables the check.
	MaxBodyRunes int
}

var _ Dispatcher = (*SMSService)(nil)

// Send dispatches one outbound SMS. On gateway failure the message row is
// kept with status failed and the gateway error is returned alongside it, so
// callers can both report the failure and reference the auditable attempt.
// After Send returns, the message is always in a terminal state — never
// pending.
func (s *SMSService) Send(ctx context.Context, req SendRequest) (*domain.Message, error) {
	tr := otel.Tracer("services/SMSService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("tenant.id", req.TenantID),
			attribute.Bool("quick_action", req.QuickAction != ""),
		),
	)
	defer span.End()

	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, ErrEmptyBody
	}
	if s.MaxBodyRunes > 0 && utf8.RuneCountInString(body) > s.MaxBodyRunes {
		return nil, ErrBodyTooLong
	}

	conv, err := s.Conversations.Resolve(ctx, req.TenantID, req.To, ResolveOptions{
		ClientID:   req.ClientID,
		ClientName: req.ClientName,
		JobID:      req.JobID,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("conversation.id", conv.ID))

	var senderID, quickAction *string
	if req.SenderID != "" {
		senderID = &req.SenderID
	}
	if req.QuickAction != "" {
		quickAction = &req.QuickAction
	}

	msg, err := repo.CreateOutboundMessage(ctx, s.DB, conv.ID, body, senderID, quickAction)
	if err != nil {
		return nil, err
	}

	res, gwErr := s.Gateway.Send(ctx, conv.Phone, body)

	// The thread saw activity either way, including on failure.
	now := time.Now().UTC()
	if err := repo.TouchLastMessage(ctx, s.DB, conv.ID, now); err != nil {
		log.Error().Err(err).Str("conversation_id", conv.ID).Msg("touch last message")
	}

	if gwErr != nil {
		if err := repo.MarkMessageFailed(ctx, s.DB, msg.ID, gwErr.Error()); err != nil {
			return nil, err
		}
		msg.Status = domain.StatusFailed
		errText := gwErr.Error()
		msg.ErrorMessage = &errText
		smsDispatched.WithLabelValues(domain.StatusFailed).Inc()
		log.Warn().Err(gwErr).
			Str("tenant_id", req.TenantID).
			Str("conversation_id", conv.ID).
			Str("message_id", msg.ID).
			Msg("outbound sms failed")
		return msg, gwErr
	}

	if err := repo.MarkMessageSent(ctx, s.DB, msg.ID, res.ExternalID, res.Simulated); err != nil {
		return nil, err
	}
	msg.Status = domain.StatusSent
	if res.Simulated {
		msg.Status = domain.StatusSimulated
	}
	msg.GatewayMessageID = &res.ExternalID
	smsDispatched.WithLabelValues(msg.Status).Inc()
	return msg, nil
}

// ListMessagesPage returns paginated messages for a conversation the tenant
// owns, oldest first.
func (s *SMSService) ListMessagesPage(ctx context.Context, tenantID, conversationID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/SMSService")
	ctx, span := tr.Start(ctx, "ListMessagesPage",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if _, err := repo.GetConversation(ctx, s.DB, conversationID, tenantID); err != nil {
		return nil, 0, ErrConversationNotFound
	}

	total, err := repo.CountMessages(ctx, s.DB, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, conversationID, offset, pageSize)
	return items, total, err
}
