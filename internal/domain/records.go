// Package domain defines the persistence models for conversations, messages,
// and SMS automation. This file declares the business records the messaging
// core reads but does not manage: clients, jobs, quotes, and invoices. Their
// CRUD lives elsewhere in the platform; only the fields needed for routing,
// quick actions, and automation rule evaluation are mapped here.
package domain

import "time"

// Client is a tenant's customer. Phone may be empty, in which case automation
// rules record a skipped log instead of dispatching.
type Client struct {
	ID       string `json:"id"        gorm:"type:char(36);primaryKey"`
	TenantID string `json:"tenant_id" gorm:"type:varchar(64);not null;index"`
	Name     string `json:"name"      gorm:"type:varchar(255);not null"`
	Phone    string `json:"phone"     gorm:"type:varchar(20);not null;default:''"`
}

// TableName returns the database table name for Client.
func (Client) TableName() string { return "clients" }

// Job statuses consulted by the day-before reminder trigger.
const (
	JobScheduled = "scheduled"
	JobConfirmed = "confirmed"
)

// Job is a piece of scheduled field work.
type Job struct {
	ID          string     `json:"id"           gorm:"type:char(36);primaryKey"`
	TenantID    string     `json:"tenant_id"    gorm:"type:varchar(64);not null;index"`
	ClientID    string     `json:"client_id"    gorm:"type:char(36);not null"`
	Title       string     `json:"title"        gorm:"type:varchar(255);not null"`
	Status      string     `json:"status"       gorm:"type:varchar(32);not null"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty" gorm:"index"`
}

// TableName returns the database table name for Job.
func (Job) TableName() string { return "jobs" }

// Quote statuses consulted by the follow-up trigger.
const (
	QuoteSent = "sent"
)

// Quote is a priced offer sent to a client. TotalCents avoids float money.
type Quote struct {
	ID         string     `json:"id"         gorm:"type:char(36);primaryKey"`
	TenantID   string     `json:"tenant_id"  gorm:"type:varchar(64);not null;index"`
	ClientID   string     `json:"client_id"  gorm:"type:char(36);not null"`
	Number     string     `json:"number"     gorm:"type:varchar(32);not null"`
	TotalCents int64      `json:"total_cents" gorm:"not null;default:0"`
	Status     string     `json:"status"     gorm:"type:varchar(32);not null"`
	SentAt     *time.Time `json:"sent_at,omitempty" gorm:"index"`
}

// TableName returns the database table name for Quote.
func (Quote) TableName() string { return "quotes" }

// Invoice statuses consulted by the overdue trigger.
const (
	InvoiceSent    = "sent"
	InvoiceOverdue = "overdue"
)

// Invoice is a bill issued to a client.
type Invoice struct {
	ID         string     `json:"id"         gorm:"type:char(36);primaryKey"`
	TenantID   string     `json:"tenant_id"  gorm:"type:varchar(64);not null;index"`
	ClientID   string     `json:"client_id"  gorm:"type:char(36);not null"`
	Number     string     `json:"number"     gorm:"type:varchar(32);not null"`
	TotalCents int64      `json:"total_cents" gorm:"not null;default:0"`
	Status     string     `json:"status"     gorm:"type:varchar(32);not null"`
	DueDate    *time.Time `json:"due_date,omitempty" gorm:"index"`
}

// TableName returns the database table name for Invoice.
func (Invoice) TableName() string { return "invoices" }
