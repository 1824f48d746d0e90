// Package domain defines the persistence models for conversations, messages,
// and SMS automation. These types are mapped with GORM and form the core data
// layer of the messaging backend.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Message direction values.
const (
	DirectionOutbound = "outbound"
	DirectionInbound  = "inbound"
)

// Message status values. Outbound messages move pending → sent|simulated|failed
// and never revert; inbound messages are created as received.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusSimulated = "simulated" // gateway ran in simulation mode (non-production only)
	StatusFailed    = "failed"
	StatusReceived  = "received"
)

// Conversation is the per-tenant, per-client-phone SMS thread. It is created
// lazily on the first outbound or inbound message and soft-deleted only, so
// message history survives as an audit trail.
//
// Invariant: at most one non-deleted conversation per (tenant_id, phone);
// enforced by a partial unique index so a soft-deleted thread does not block
// a new one for the same number.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - TenantID: owning business account; indexed for tenant-scoped listing.
//   - Phone: canonical E.164 client number (the conversation join key).
//   - ClientID / JobID: optional links into the tenant's records; JobID is
//     linked once and never unlinked.
//   - DisplayName: name shown for the thread (client name or raw number).
//   - LastMessageAt: bumped on every outbound or inbound message.
//   - UnreadCount: inbound messages not yet acknowledged by the tenant.
//   - Archived: hidden from the default inbox view, still routable.
type Conversation struct {
	ID            string         `json:"id"              gorm:"type:char(36);primaryKey"`
	TenantID      string         `json:"tenant_id"       gorm:"type:varchar(64);not null;index:idx_tenant_convs;uniqueIndex:ux_tenant_phone,priority:1,where:deleted_at IS NULL"`
	Phone         string         `json:"phone"           gorm:"type:varchar(20);not null;index;uniqueIndex:ux_tenant_phone,priority:2,where:deleted_at IS NULL"`
	ClientID      *string        `json:"client_id,omitempty" gorm:"type:char(36)"`
	JobID         *string        `json:"job_id,omitempty"    gorm:"type:char(36)"`
	DisplayName   string         `json:"display_name"    gorm:"type:varchar(255);not null;default:''"`
	LastMessageAt time.Time      `json:"last_message_at" gorm:"index"`
	UnreadCount   int            `json:"unread_count"    gorm:"not null;default:0"`
	Archived      bool           `json:"archived"        gorm:"not null;default:false"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-"               gorm:"index"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Message is a single SMS within a conversation.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ConversationID: foreign key to the owning conversation (indexed).
//   - Direction: "outbound" or "inbound" (enforced by DB constraint).
//   - Body: full text content.
//   - SenderID: tenant user who sent it; outbound only.
//   - Status: delivery state; monotonic, never reverts.
//   - GatewayMessageID: the telephony provider's id. Unique when present so a
//     redelivered inbound webhook is a no-op rather than a duplicate row.
//   - ErrorMessage: gateway error detail for failed outbound attempts. Failed
//     messages are kept, never deleted, as auditable attempts.
//   - QuickAction: tag of the canned template that produced this message.
//   - Read: whether the tenant has seen an inbound message.
type Message struct {
	ID               string         `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID   string         `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conv_msgs,priority:1"`
	Direction        string         `json:"direction"       gorm:"type:varchar(16);not null;check:direction IN ('outbound','inbound')"`
	Body             string         `json:"body"            gorm:"type:text;not null"`
	SenderID         *string        `json:"sender_id,omitempty" gorm:"type:varchar(64)"`
	Status           string         `json:"status"          gorm:"type:varchar(16);not null;default:'pending'"`
	GatewayMessageID *string        `json:"gateway_message_id,omitempty" gorm:"type:varchar(64);uniqueIndex:ux_gateway_msg"`
	ErrorMessage     *string        `json:"error_message,omitempty" gorm:"type:text"`
	QuickAction      *string        `json:"quick_action,omitempty"  gorm:"type:varchar(32)"`
	Read             bool           `json:"read"            gorm:"not null;default:false"`
	CreatedAt        time.Time      `json:"created_at"      gorm:"index:idx_conv_msgs,priority:2"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-"               gorm:"index"`

	// Conversation is the parent thread. Messages are cascade-deleted if
	// their conversation is hard-removed.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }
