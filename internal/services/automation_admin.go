// Package services – automation rule administration
//
// Tenant-facing CRUD over automation rules, kept beside the engine that
// evaluates them. Trigger types are validated against the closed set before
// anything is persisted.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/dev-avwi/TradieTrack-sub004/internal/domain"
	"github.com/dev-avwi/TradieTrack-sub004/internal/repo"
)

// validTriggers is the closed set of rule trigger types.
var validTriggers = map[string]bool{
	domain.TriggerQuoteFollowUp:  true,
	domain.TriggerInvoiceOverdue: true,
	domain.TriggerJobDayBefore:   true,
}

// ListRules returns all of the tenant's rules, active or not.
func (s *AutomationService) ListRules(ctx context.Context, tenantID string) ([]domain.AutomationRule, error) {
	return repo.ListRulesForTenant(ctx, s.DB, tenantID)
}

// CreateRule registers a new active rule for the tenant. The trigger type
// must be one of the known triggers.
func (s *AutomationService) CreateRule(ctx context.Context, tenantID, triggerType string, customTemplate *string) (*domain.AutomationRule, error) {
	if !validTriggers[triggerType] {
		return nil, ErrInvalidTrigger
	}
	return repo.CreateRule(ctx, s.DB, tenantID, triggerType, customTemplate)
}

// UpdateRule sets the active flag and custom template of a rule the tenant
// owns. Trigger type and accumulated counters are immutable.
func (s *AutomationService) UpdateRule(ctx context.Context, tenantID, ruleID string, active bool, customTemplate *string) (*domain.AutomationRule, error) {
	err := repo.UpdateRule(ctx, s.DB, ruleID, tenantID, active, customTemplate)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, err
	}
	return repo.GetRule(ctx, s.DB, ruleID, tenantID)
}
