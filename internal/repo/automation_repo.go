// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for automation rules
// and their idempotency logs.
//
// The log table carries a unique index on (rule_id, entity_type, entity_id);
// CreateAutomationLog maps a unique violation to ErrDuplicate so overlapping
// evaluation passes treat "someone else already logged this" as success, not
// as a retryable failure.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dev-avwi/TradieTrack-sub004/internal/domain"
)

// ListActiveRules returns every active rule across all tenants, the working
// set of one evaluation pass.
func ListActiveRules(ctx context.Context, db *gorm.DB) ([]domain.AutomationRule, error) {
	var out []domain.AutomationRule
	err := db.WithContext(ctx).
		Where("active = ?", true).
		Order("tenant_id ASC, created_at ASC").
		Find(&out).Error
	return out, err
}

// ListRulesForTenant returns all of a tenant's rules, active or not.
func ListRulesForTenant(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.AutomationRule, error) {
	var out []domain.AutomationRule
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

// GetRule fetches a rule by id, enforcing tenant ownership.
func GetRule(ctx context.Context, db *gorm.DB, id, tenantID string) (*domain.AutomationRule, error) {
	var r domain.AutomationRule
	err := db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRule inserts a new automation rule.
func CreateRule(ctx context.Context, db *gorm.DB, tenantID, triggerType string, customTemplate *string) (*domain.AutomationRule, error) {
	r := &domain.AutomationRule{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		TriggerType:    triggerType,
		Active:         true,
		CustomTemplate: customTemplate,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateRule sets the active flag and custom template of a rule owned by
// tenantID. Returns ErrNotFound when no row matches.
func UpdateRule(ctx context.Context, db *gorm.DB, id, tenantID string, active bool, customTemplate *string) error {
	res := db.WithContext(ctx).
		Model(&domain.AutomationRule{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(map[string]any{
			"active":          active,
			"custom_template": customTemplate,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// HasAutomationLog reports whether a log row already exists for the
// (rule, entity) pair. This is the cheap pre-check; the unique index remains
// the authority under races.
func HasAutomationLog(ctx context.Context, db *gorm.DB, ruleID, entityType, entityID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.AutomationLog{}).
		Where("rule_id = ? AND entity_type = ? AND entity_id = ?", ruleID, entityType, entityID).
		Count(&n).Error
	return n > 0, err
}

// CreateAutomationLog inserts an idempotency log row and returns ErrDuplicate
// when the (rule, entity) pair was already handled.
func CreateAutomationLog(ctx context.Context, db *gorm.DB, ruleID, entityType, entityID, status string, messageID, errDetail *string) (*domain.AutomationLog, error) {
	l := &domain.AutomationLog{
		ID:         uuid.NewString(),
		RuleID:     ruleID,
		EntityType: entityType,
		EntityID:   entityID,
		Status:     status,
		MessageID:  messageID,
		Error:      errDetail,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return l, nil
}

// CountAutomationLogs returns how many log rows exist for a rule with the
// given status ("" counts all).
func CountAutomationLogs(ctx context.Context, db *gorm.DB, ruleID, status string) (int64, error) {
	q := db.WithContext(ctx).
		Model(&domain.AutomationLog{}).
		Where("rule_id = ?", ruleID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// BumpRuleTriggered increments the rule's trigger counter and stamps the
// firing time.
func BumpRuleTriggered(ctx context.Context, db *gorm.DB, ruleID string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.AutomationRule{}).
		Where("id = ?", ruleID).
		Updates(map[string]any{
			"trigger_count":     gorm.Expr("trigger_count + 1"),
			"last_triggered_at": at,
		}).Error
}
