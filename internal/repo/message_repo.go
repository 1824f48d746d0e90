// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dev-avwi/TradieTrack-sub004/internal/domain"
)

// CreateOutboundMessage inserts a pending outbound message row. The row must
// exist before the gateway is invoked so a crash mid-dispatch leaves a
// discoverable pending record instead of a silently lost event.
func CreateOutboundMessage(ctx context.Context, db *gorm.DB, conversationID, body string, senderID *string, quickAction *string) (*domain.Message, error) {
	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Direction:      domain.DirectionOutbound,
		Body:           body,
		SenderID:       senderID,
		Status:         domain.StatusPending,
		QuickAction:    quickAction,
		Read:           true, // the tenant wrote it
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// CreateInboundMessage inserts a received inbound message. Returns
// ErrDuplicate when the gateway message id was already recorded, which makes
// redelivered webhooks a no-op.
func CreateInboundMessage(ctx context.Context, db *gorm.DB, conversationID, body, gatewayMessageID string) (*domain.Message, error) {
	var extID *string
	if gatewayMessageID != "" {
		extID = &gatewayMessageID
	}
	m := &domain.Message{
		ID:               uuid.NewString(),
		ConversationID:   conversationID,
		Direction:        domain.DirectionInbound,
		Body:             body,
		Status:           domain.StatusReceived,
		GatewayMessageID: extID,
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return m, nil
}

// MarkMessageSent records a successful gateway hand-off. Simulated results
// are persisted as their own status, never collapsed into sent.
func MarkMessageSent(ctx context.Context, db *gorm.DB, id, gatewayMessageID string, simulated bool) error {
	status := domain.StatusSent
	if simulated {
		status = domain.StatusSimulated
	}
	return db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":             status,
			"gateway_message_id": gatewayMessageID,
		}).Error
}

// MarkMessageFailed records a gateway failure. The row is kept as an
// auditable attempt.
func MarkMessageFailed(ctx context.Context, db *gorm.DB, id, errMsg string) error {
	return db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domain.StatusFailed,
			"error_message": errMsg,
		}).Error
}

// LatestOutboundMessage returns the most recent outbound message of a
// conversation, or ErrNotFound when it has none.
func LatestOutboundMessage(ctx context.Context, db *gorm.DB, conversationID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND direction = ?", conversationID, domain.DirectionOutbound).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE conversation_id = ? AND deleted_at IS NULL", conversationID).
		Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
func ListMessagesPage(ctx context.Context, db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// FailStalePendingMessages marks outbound messages still pending since before
// the cutoff as failed. This is the reconciliation pass for dispatches
// interrupted between the gateway call and the status write. Returns the
// number of rows reconciled.
func FailStalePendingMessages(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("direction = ? AND status = ? AND created_at < ?", domain.DirectionOutbound, domain.StatusPending, cutoff).
		Updates(map[string]any{
			"status":        domain.StatusFailed,
			"error_message": "reconciled: no gateway confirmation",
		})
	return res.RowsAffected, res.Error
}
