// Package services – InboundService
//
// This file implements inbound webhook routing, the multi-tenant
// disambiguation problem: one client phone may hold conversations with
// several independent tenants, and an arriving reply names no tenant.
//
// The rule is "replies go to whoever last texted this person": the candidate
// whose most recent outbound message is latest wins. Candidates with no
// outbound history fall back to the latest last-message timestamp, and ties
// break toward the earliest-created conversation. When no conversation exists
// anywhere, the message is dropped — fabricating a tenant would leak one
// business's client to another.
//
// Selection itself is a pure function over candidates so the ordering logic
// is unit-testable without persistence.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dev-avwi/TradieTrack-sub004/internal/domain"
	"github.com/dev-avwi/TradieTrack-sub004/internal/gateway"
	"github.com/dev-avwi/TradieTrack-sub004/internal/phone"
	"github.com/dev-avwi/TradieTrack-sub004/internal/repo"
)

// Candidate pairs a conversation with the timestamp of its most recent
// outbound message, nil when it has none.
type Candidate struct {
	Conversation   domain.Conversation
	LastOutboundAt *time.Time
}

// SelectConversation picks the routing target from candidates. It prefers
// the latest LastOutboundAt; among candidates with no outbound history it
// falls back to the latest conversation LastMessageAt. All ties break toward
// the earliest-created conversation, so the result is deterministic for any
// constructed time ordering. Returns -1 for an empty slice.
func SelectConversation(candidates []Candidate) int {
	best := -1
	for i, c := range candidates {
		if best == -1 {
			best = i
			continue
		}
		if candidateLess(candidates[best], c) {
			best = i
		}
	}
	return best
}

// candidateLess reports whether b outranks a.
func candidateLess(a, b Candidate) bool {
	switch {
	case a.LastOutboundAt != nil && b.LastOutboundAt != nil:
		if !a.LastOutboundAt.Equal(*b.LastOutboundAt) {
			return b.LastOutboundAt.After(*a.LastOutboundAt)
		}
	case a.LastOutboundAt == nil && b.LastOutboundAt == nil:
		if !a.Conversation.LastMessageAt.Equal(b.Conversation.LastMessageAt) {
			return b.Conversation.LastMessageAt.After(a.Conversation.LastMessageAt)
		}
	default:
		// Outbound history beats none.
		return b.LastOutboundAt != nil
	}
	// Tie: earliest created wins.
	return b.Conversation.CreatedAt.Before(a.Conversation.CreatedAt)
}

// InboundService resolves arriving webhook payloads to exactly one
// conversation and records the message.
type InboundService struct {
	DB   *gorm.DB
	Norm phone.Normalizer
}

// Route attributes an inbound SMS. It returns (nil, nil) both when the
// message matches no conversation across any tenant (dropped, logged) and
// when the gateway message id was already recorded (webhook redelivery).
// Otherwise the created message is returned with the unread counter and
// last-message timestamp already updated.
func (s *InboundService) Route(ctx context.Context, in gateway.Inbound) (*domain.Message, error) {
	tr := otel.Tracer("services/InboundService")
	ctx, span := tr.Start(ctx, "Route",
		trace.WithAttributes(attribute.String("gateway.message_id", in.GatewayMessageID)),
	)
	defer span.End()

	from := s.Norm.Normalize(in.From)
	if from == "" {
		smsInbound.WithLabelValues("dropped").Inc()
		log.Warn().Str("payload", in.String()).Msg("inbound sms with unusable from number; dropped")
		return nil, nil
	}

	convs, err := repo.ListConversationsByPhone(ctx, s.DB, from)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		smsInbound.WithLabelValues("dropped").Inc()
		log.Warn().
			Str("from", from).
			Str("gateway_message_id", in.GatewayMessageID).
			Msg("inbound sms matches no conversation in any tenant; dropped")
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(convs))
	for _, c := range convs {
		var lastOut *time.Time
		m, err := repo.LatestOutboundMessage(ctx, s.DB, c.ID)
		switch {
		case err == nil:
			t := m.CreatedAt
			lastOut = &t
		case errors.Is(err, gorm.ErrRecordNotFound):
			// no outbound history; candidate still eligible via fallback
		default:
			return nil, err
		}
		candidates = append(candidates, Candidate{Conversation: c, LastOutboundAt: lastOut})
	}

	target := candidates[SelectConversation(candidates)].Conversation
	span.SetAttributes(
		attribute.String("conversation.id", target.ID),
		attribute.String("tenant.id", target.TenantID),
	)

	msg, err := repo.CreateInboundMessage(ctx, s.DB, target.ID, in.Body, in.GatewayMessageID)
	if errors.Is(err, repo.ErrDuplicate) {
		smsInbound.WithLabelValues("duplicate").Inc()
		log.Debug().
			Str("gateway_message_id", in.GatewayMessageID).
			Msg("inbound sms already recorded; redelivery ignored")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := repo.IncrementUnread(ctx, s.DB, target.ID, time.Now().UTC()); err != nil {
		return nil, err
	}
	smsInbound.WithLabelValues("routed").Inc()
	return msg, nil
}
