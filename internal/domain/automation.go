// Package domain defines the persistence models for conversations, messages,
// and SMS automation. This file holds the automation rule and its idempotency
// log.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Automation trigger types. Each names a time-based condition evaluated
// against the tenant's live records.
const (
	TriggerQuoteFollowUp  = "quote_follow_up" // quote sent >= 3 days ago, still sent
	TriggerInvoiceOverdue = "invoice_overdue" // invoice >= 1 day past due, still unpaid
	TriggerJobDayBefore   = "job_day_before"  // job scheduled tomorrow
)

// Entity types recorded in automation logs.
const (
	EntityQuote   = "quote"
	EntityInvoice = "invoice"
	EntityJob     = "job"
)

// Automation log outcomes.
const (
	LogSent    = "sent"
	LogSkipped = "skipped" // matched but unactionable (e.g. client has no phone)
	LogFailed  = "failed"  // dispatch error; kept for manual retry
)

// AutomationRule is a tenant-configured, time-triggered condition that
// auto-sends a templated message when a business record matches it.
//
// Fields:
//   - TriggerType: one of the Trigger* constants (enforced by DB constraint).
//   - Active: inactive rules are skipped by the evaluation pass.
//   - CustomTemplate: optional tenant override; placeholders like
//     {client_name}, {amount}, {date} are substituted at dispatch time.
//   - TriggerCount / LastTriggeredAt: bookkeeping bumped on each fire.
type AutomationRule struct {
	ID              string         `json:"id"         gorm:"type:char(36);primaryKey"`
	TenantID        string         `json:"tenant_id"  gorm:"type:varchar(64);not null;index:idx_tenant_rules"`
	TriggerType     string         `json:"trigger_type" gorm:"type:varchar(32);not null;check:trigger_type IN ('quote_follow_up','invoice_overdue','job_day_before')"`
	Active          bool           `json:"active"     gorm:"not null;default:true"`
	CustomTemplate  *string        `json:"custom_template,omitempty" gorm:"type:text"`
	TriggerCount    int            `json:"trigger_count" gorm:"not null;default:0"`
	LastTriggeredAt *time.Time     `json:"last_triggered_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for AutomationRule.
func (AutomationRule) TableName() string { return "automation_rules" }

// AutomationLog is the idempotency guard for rule firing: at most one row per
// (rule_id, entity_type, entity_id), enforced by a unique index. A duplicate
// insert therefore means "already handled", which makes concurrent or
// overlapping evaluation passes safe.
//
// Status is one of the Log* constants. MessageID links the outbound message
// for sent logs; Error captures the dispatch failure for failed ones.
type AutomationLog struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	RuleID     string    `json:"rule_id"     gorm:"type:char(36);not null;index;uniqueIndex:ux_rule_entity,priority:1"`
	EntityType string    `json:"entity_type" gorm:"type:varchar(16);not null;uniqueIndex:ux_rule_entity,priority:2"`
	EntityID   string    `json:"entity_id"   gorm:"type:char(36);not null;uniqueIndex:ux_rule_entity,priority:3"`
	Status     string    `json:"status"      gorm:"type:varchar(16);not null;check:status IN ('sent','skipped','failed')"`
	MessageID  *string   `json:"message_id,omitempty" gorm:"type:char(36)"`
	Error      *string   `json:"error,omitempty"      gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`

	// Rule is the owning automation rule. Logs are cascade-deleted when the
	// rule is hard-removed.
	Rule AutomationRule `json:"-" gorm:"foreignKey:RuleID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AutomationLog.
func (AutomationLog) TableName() string { return "automation_logs" }
