// Package services – ConversationService
//
// This file implements the conversation directory: it resolves the single
// non-deleted conversation for a (tenant, client phone) pair, creating it
// lazily when first contacted. Resolution is safe under concurrent calls:
// creation relies on the partial unique index on (tenant_id, phone), and a
// duplicate insert triggers a re-fetch of the row the other caller won.
//
// Service-level errors (e.g., ErrConversationNotFound) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dev-avwi/TradieTrack-sub004/internal/domain"
	"github.com/dev-avwi/TradieTrack-sub004/internal/phone"
	"github.com/dev-avwi/TradieTrack-sub004/internal/repo"
)

// ConversationRepo defines the repository contract required by
// ConversationService. Implementations are responsible for persistence of
// conversation aggregates.
type ConversationRepo interface {
	// CreateConversation inserts a new row; returns repo.ErrDuplicate when
	// the (tenant, phone) key is already taken.
	CreateConversation(ctx context.Context, db *gorm.DB, tenantID, phone, displayName string, clientID, jobID *string) (*domain.Conversation, error)

	// FindConversation fetches the non-deleted conversation for the key.
	FindConversation(ctx context.Context, db *gorm.DB, tenantID, phone string) (*domain.Conversation, error)

	// GetConversation fetches by id ensuring it belongs to the tenant.
	GetConversation(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.Conversation, error)

	// LinkJob links a job to the conversation if none is linked yet.
	LinkJob(ctx context.Context, db *gorm.DB, id, jobID string) error

	// CountConversations returns the total for pagination.
	CountConversations(ctx context.Context, db *gorm.DB, tenantID string) (int64, error)

	// ListConversationsPage returns a page of the tenant's conversations.
	ListConversationsPage(ctx context.Context, db *gorm.DB, tenantID string, offset, limit int) ([]domain.Conversation, error)

	// MarkConversationRead zeroes the unread counter.
	MarkConversationRead(ctx context.Context, db *gorm.DB, id, tenantID string) error
}

// ResolveOptions carries the optional context known at resolution time.
// ClientName seeds the display name of a newly created thread; JobID is
// linked one-way when the conversation has no job yet.
type ResolveOptions struct {
	ClientID   string
	ClientName string
	JobID      string
}

// ConversationService finds or creates conversations and owns thread-level
// operations such as listing and read acknowledgement.
type ConversationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the conversation repository used by this service.
	Repo ConversationRepo
	// Norm canonicalizes phone numbers before they are used as keys.
	Norm phone.Normalizer
}

// NewConversationService constructs a ConversationService with the default
// dialing plan.
func NewConversationService(db *gorm.DB, r ConversationRepo, norm phone.Normalizer) *ConversationService {
	return &ConversationService{DB: db, Repo: r, Norm: norm}
}

// Resolve returns the tenant's conversation for rawPhone, creating it when
// absent. Concurrent calls for the same key converge on one row: the loser of
// the insert race re-fetches the winner. When opts.JobID is supplied and the
// conversation has no job linked, it is linked now; links are never undone.
func (s *ConversationService) Resolve(ctx context.Context, tenantID, rawPhone string, opts ResolveOptions) (*domain.Conversation, error) {
	canonical := s.Norm.Normalize(rawPhone)
	if canonical == "" {
		return nil, ErrInvalidPhone
	}

	conv, err := s.Repo.FindConversation(ctx, s.DB, tenantID, canonical)
	switch {
	case err == nil:
		return s.maybeLinkJob(ctx, conv, opts.JobID)
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fall through to create
	default:
		return nil, err
	}

	display := opts.ClientName
	if display == "" {
		display = canonical
	}
	var clientID, jobID *string
	if opts.ClientID != "" {
		clientID = &opts.ClientID
	}
	if opts.JobID != "" {
		jobID = &opts.JobID
	}

	conv, err = s.Repo.CreateConversation(ctx, s.DB, tenantID, canonical, display, clientID, jobID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, repo.ErrDuplicate) {
		return nil, err
	}

	// Lost the insert race: the unique index guarantees the winner exists.
	conv, err = s.Repo.FindConversation(ctx, s.DB, tenantID, canonical)
	if err != nil {
		return nil, err
	}
	return s.maybeLinkJob(ctx, conv, opts.JobID)
}

// maybeLinkJob applies the one-way job link and mirrors it on the returned
// struct.
func (s *ConversationService) maybeLinkJob(ctx context.Context, conv *domain.Conversation, jobID string) (*domain.Conversation, error) {
	if jobID == "" || conv.JobID != nil {
		return conv, nil
	}
	if err := s.Repo.LinkJob(ctx, s.DB, conv.ID, jobID); err != nil {
		return nil, err
	}
	conv.JobID = &jobID
	return conv, nil
}

// ListPage returns a page of the tenant's conversations (most recently active
// first) along with the total count. It applies defaults for invalid
// page/pageSize.
func (s *ConversationService) ListPage(ctx context.Context, tenantID string, page, pageSize int) ([]domain.Conversation, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountConversations(ctx, s.DB, tenantID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Conversation{}, 0, nil
	}

	items, err := s.Repo.ListConversationsPage(ctx, s.DB, tenantID, offset, pageSize)
	return items, total, err
}

// MarkRead acknowledges a thread, zeroing its unread counter.
func (s *ConversationService) MarkRead(ctx context.Context, tenantID, conversationID string) error {
	err := s.Repo.MarkConversationRead(ctx, s.DB, conversationID, tenantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrConversationNotFound
	}
	return err
}
