// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides tenant-scoped read access to the
// business records the automation engine and quick actions consult: clients,
// jobs, quotes, and invoices. Their lifecycle is owned elsewhere in the
// platform; the messaging core only queries them.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dev-avwi/TradieTrack-sub004/internal/domain"
)

// GetClient fetches a client by id, enforcing tenant ownership.
func GetClient(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.Client, error) {
	var c domain.Client
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetJob fetches a job by id, enforcing tenant ownership.
func GetJob(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.Job, error) {
	var j domain.Job
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&j).Error
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// StalledQuotes returns the tenant's quotes still in "sent" whose send time
// is at or before the cutoff — the candidates of the quote follow-up trigger.
func StalledQuotes(ctx context.Context, db *gorm.DB, tenantID string, cutoff time.Time) ([]domain.Quote, error) {
	var out []domain.Quote
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND sent_at IS NOT NULL AND sent_at <= ?", tenantID, domain.QuoteSent, cutoff).
		Order("sent_at ASC").
		Find(&out).Error
	return out, err
}

// OverdueInvoices returns the tenant's unpaid invoices whose due date is at
// or before the cutoff — the candidates of the invoice overdue trigger.
func OverdueInvoices(ctx context.Context, db *gorm.DB, tenantID string, cutoff time.Time) ([]domain.Invoice, error) {
	var out []domain.Invoice
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ? AND due_date IS NOT NULL AND due_date <= ?",
			tenantID, []string{domain.InvoiceSent, domain.InvoiceOverdue}, cutoff).
		Order("due_date ASC").
		Find(&out).Error
	return out, err
}

// JobsScheduledBetween returns the tenant's upcoming jobs inside [from, to)
// that are still going ahead — the candidates of the day-before trigger.
func JobsScheduledBetween(ctx context.Context, db *gorm.DB, tenantID string, from, to time.Time) ([]domain.Job, error) {
	var out []domain.Job
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ? AND scheduled_at >= ? AND scheduled_at < ?",
			tenantID, []string{domain.JobScheduled, domain.JobConfirmed}, from, to).
		Order("scheduled_at ASC").
		Find(&out).Error
	return out, err
}
