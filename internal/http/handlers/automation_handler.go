// Automation rule HTTP handlers.
//
// This file exposes REST endpoints for automation rule administration:
//   - GET  /automation/rules        (list the tenant's rules)
//   - POST /automation/rules        (register a rule)
//   - PUT  /automation/rules/{id}   (toggle active / set custom template)
//
// Rule evaluation itself runs on the background scheduler; these endpoints
// only manage the rule records.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dev-avwi/TradieTrack-sub004/internal/domain"
	"github.com/dev-avwi/TradieTrack-sub004/internal/services"
)

//
// DTOs
//

// CreateRuleRequest is the JSON payload for registering an automation rule.
type CreateRuleRequest struct {
	// TriggerType selects the trigger condition (e.g. "quote_follow_up").
	TriggerType string `json:"trigger_type" binding:"required,min=1"`
	// CustomTemplate optionally overrides the default message template.
	CustomTemplate string `json:"custom_template"`
}

// UpdateRuleRequest is the JSON payload for updating an automation rule.
// Trigger type and accumulated counters are immutable.
type UpdateRuleRequest struct {
	// Active enables or pauses the rule.
	Active *bool `json:"active" binding:"required"`
	// CustomTemplate replaces the template; empty reverts to the default.
	CustomTemplate string `json:"custom_template"`
}

// ListRulesResponse wraps the tenant's rules.
type ListRulesResponse struct {
	Rules []domain.AutomationRule `json:"rules"`
}

// RuleResponse is the JSON envelope for a single rule.
type RuleResponse struct {
	Rule *domain.AutomationRule `json:"rule"`
}

// templatePtr maps an empty custom template to nil (use the default).
func templatePtr(s string) *string {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	return &t
}

//
// Handlers
//

// ListRules returns all of the tenant's automation rules, active or not.
func (h *Handlers) ListRules(c *gin.Context) {
	rules, err := h.autoSvc.ListRules(c.Request.Context(), tenantID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListRulesResponse{Rules: rules})
}

// CreateRule registers a new active rule for the tenant.
func (h *Handlers) CreateRule(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "trigger_type required")
		return
	}

	rule, err := h.autoSvc.CreateRule(c.Request.Context(), tenantID(c), strings.TrimSpace(req.TriggerType), templatePtr(req.CustomTemplate))
	if err != nil {
		if errors.Is(err, services.ErrInvalidTrigger) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown trigger type")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, RuleResponse{Rule: rule})
}

// UpdateRule sets the active flag and custom template of one rule.
func (h *Handlers) UpdateRule(c *gin.Context) {
	ruleID := c.Param("id")
	if _, err := uuid.Parse(ruleID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "rule id must be a UUID")
		return
	}

	var req UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "active required")
		return
	}

	rule, err := h.autoSvc.UpdateRule(c.Request.Context(), tenantID(c), ruleID, *req.Active, templatePtr(req.CustomTemplate))
	if err != nil {
		if errors.Is(err, services.ErrRuleNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "rule not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, RuleResponse{Rule: rule})
}
