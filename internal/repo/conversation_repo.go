// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a conversation is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Inserts that hit the (tenant_id, phone) unique index return ErrDuplicate
//     so callers can re-fetch the winning row.
//   - On other DB errors, the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dev-avwi/TradieTrack-sub004/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that an insert violated a unique constraint.
var ErrDuplicate = errors.New("duplicate")

// isUniqueViolation reports whether err is a unique-constraint failure.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// CreateConversation inserts a new conversation for (tenantID, phone). The id
// is a randomly generated UUID and LastMessageAt starts at now so brand-new
// threads sort sensibly. Returns ErrDuplicate when a non-deleted conversation
// already exists for the key.
func CreateConversation(ctx context.Context, db *gorm.DB, tenantID, phone, displayName string, clientID, jobID *string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	c := &domain.Conversation{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		Phone:         phone,
		ClientID:      clientID,
		JobID:         jobID,
		DisplayName:   displayName,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return c, nil
}

// FindConversation fetches the non-deleted conversation for (tenantID, phone),
// or ErrNotFound.
func FindConversation(ctx context.Context, db *gorm.DB, tenantID, phone string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND phone = ?", tenantID, phone).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversation fetches a conversation by id, enforcing tenant ownership.
func GetConversation(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversationsByPhone returns every tenant's non-deleted conversation
// with the given canonical phone, ordered by creation time ascending so the
// inbound router's tie-break (earliest created wins) is deterministic.
func ListConversationsByPhone(ctx context.Context, db *gorm.DB, phone string) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Where("phone = ?", phone).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountConversations returns the number of non-archived conversations owned
// by tenantID.
func CountConversations(ctx context.Context, db *gorm.DB, tenantID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("tenant_id = ? AND archived = ?", tenantID, false).
		Count(&total).Error
	return total, err
}

// ListConversationsPage returns a page of the tenant's non-archived
// conversations, most recently active first.
func ListConversationsPage(ctx context.Context, db *gorm.DB, tenantID string, offset, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND archived = ?", tenantID, false).
		Order("last_message_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// LinkJob sets the conversation's job id if none is linked yet. Linking is
// one-way: an already-linked conversation is left untouched.
func LinkJob(ctx context.Context, db *gorm.DB, id, jobID string) error {
	return db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ? AND job_id IS NULL", id).
		Update("job_id", jobID).Error
}

// TouchLastMessage bumps the conversation's last-message timestamp.
func TouchLastMessage(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("last_message_at", at).Error
}

// IncrementUnread adds one to the conversation's unread counter and bumps the
// last-message timestamp in the same write.
func IncrementUnread(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"unread_count":    gorm.Expr("unread_count + 1"),
			"last_message_at": at,
		}).Error
}

// MarkConversationRead zeroes the unread counter. Returns ErrNotFound when
// the conversation does not exist or is not owned by tenantID.
func MarkConversationRead(ctx context.Context, db *gorm.DB, id, tenantID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Update("unread_count", 0)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ArchiveIdleConversations flags conversations whose last activity predates
// the cutoff. Returns the number of rows archived.
func ArchiveIdleConversations(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("archived = ? AND last_message_at < ?", false, cutoff).
		Update("archived", true)
	return res.RowsAffected, res.Error
}
