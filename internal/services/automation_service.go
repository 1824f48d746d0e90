// Package services – AutomationService
//
// This file implements the time-based rule engine. One evaluation pass walks
// every active rule, queries the tenant's live records for entities matching
// the rule's trigger condition, and dispatches a templated message for each
// match — at most once per (rule, entity), ever.
//
// Idempotency is two-layered: a cheap log pre-check skips already-handled
// entities, and the unique index on (rule_id, entity_type, entity_id) is the
// authority when two passes overlap — a duplicate insert means "already
// handled", never a retryable error. Within one pass entities are processed
// sequentially; a single entity's failure is logged (with rule and entity
// ids, and a failed log row for manual retry) and evaluation continues.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dev-avwi/TradieTrack-sub004/internal/domain"
	"github.com/dev-avwi/TradieTrack-sub004/internal/repo"
)

// Default templates per trigger, used when the rule has no custom one.
var defaultTemplates = map[string]string{
	domain.TriggerQuoteFollowUp:  "Hi {client_name}, just following up on quote {quote_number} for {amount} we sent on {date}. Happy to answer any questions — just reply here.",
	domain.TriggerInvoiceOverdue: "Hi {client_name}, a friendly reminder that invoice {invoice_number} for {amount} was due on {date}. You can reply here if anything needs sorting out.",
	domain.TriggerJobDayBefore:   "Hi {client_name}, a reminder that we're booked in for {job_title} tomorrow ({date}). Reply here if anything has changed.",
}

// PassStats summarizes one evaluation pass.
type PassStats struct {
	Rules   int
	Sent    int
	Skipped int
	Failed  int
}

// AutomationService evaluates automation rules against live records and
// dispatches matching messages exactly once per entity.
type AutomationService struct {
	DB       *gorm.DB
	Dispatch Dispatcher

	// Trigger thresholds. Zero values fall back to the spec defaults:
	// quotes stall after 3 days, invoices age 1 day past due.
	QuoteFollowUpAfter time.Duration
	InvoiceGrace       time.Duration

	// Location anchors "tomorrow" for the day-before trigger; nil means
	// time.Local.
	Location *time.Location
}

// RunPass evaluates every active rule across all tenants as of now. Per-rule
// and per-entity failures are contained; only infrastructure errors (listing
// rules) abort the pass.
func (s *AutomationService) RunPass(ctx context.Context, now time.Time) (PassStats, error) {
	tr := otel.Tracer("services/AutomationService")
	ctx, span := tr.Start(ctx, "RunPass")
	defer span.End()

	rules, err := repo.ListActiveRules(ctx, s.DB)
	if err != nil {
		return PassStats{}, err
	}

	stats := PassStats{Rules: len(rules)}
	for _, rule := range rules {
		if err := s.evaluateRule(ctx, rule, now, &stats); err != nil {
			// Rule-level failure (bad trigger, query error): log and move on.
			log.Error().Err(err).
				Str("rule_id", rule.ID).
				Str("tenant_id", rule.TenantID).
				Str("trigger", rule.TriggerType).
				Msg("automation rule evaluation failed")
		}
	}
	span.SetAttributes(
		attribute.Int("rules", stats.Rules),
		attribute.Int("sent", stats.Sent),
		attribute.Int("skipped", stats.Skipped),
		attribute.Int("failed", stats.Failed),
	)
	return stats, nil
}

// match is one entity satisfying a rule's trigger condition, plus the
// template variables its message renders with.
type match struct {
	entityType string
	entityID   string
	clientID   string
	vars       map[string]string
}

// evaluateRule finds matching entities for one rule and acts on each.
func (s *AutomationService) evaluateRule(ctx context.Context, rule domain.AutomationRule, now time.Time, stats *PassStats) error {
	matches, err := s.findMatches(ctx, rule, now)
	if err != nil {
		return err
	}
	for _, m := range matches {
		s.actOnMatch(ctx, rule, m, now, stats)
	}
	return nil
}

// findMatches runs the trigger-specific record query.
func (s *AutomationService) findMatches(ctx context.Context, rule domain.AutomationRule, now time.Time) ([]match, error) {
	switch rule.TriggerType {
	case domain.TriggerQuoteFollowUp:
		after := s.QuoteFollowUpAfter
		if after <= 0 {
			after = 72 * time.Hour
		}
		quotes, err := repo.StalledQuotes(ctx, s.DB, rule.TenantID, now.Add(-after))
		if err != nil {
			return nil, err
		}
		out := make([]match, 0, len(quotes))
		for _, q := range quotes {
			out = append(out, match{
				entityType: domain.EntityQuote,
				entityID:   q.ID,
				clientID:   q.ClientID,
				vars: map[string]string{
					"quote_number": q.Number,
					"amount":       formatAmount(q.TotalCents),
					"date":         formatDate(*q.SentAt),
				},
			})
		}
		return out, nil

	case domain.TriggerInvoiceOverdue:
		grace := s.InvoiceGrace
		if grace <= 0 {
			grace = 24 * time.Hour
		}
		invoices, err := repo.OverdueInvoices(ctx, s.DB, rule.TenantID, now.Add(-grace))
		if err != nil {
			return nil, err
		}
		out := make([]match, 0, len(invoices))
		for _, inv := range invoices {
			out = append(out, match{
				entityType: domain.EntityInvoice,
				entityID:   inv.ID,
				clientID:   inv.ClientID,
				vars: map[string]string{
					"invoice_number": inv.Number,
					"amount":         formatAmount(inv.TotalCents),
					"date":           formatDate(*inv.DueDate),
				},
			})
		}
		return out, nil

	case domain.TriggerJobDayBefore:
		loc := s.Location
		if loc == nil {
			loc = time.Local
		}
		local := now.In(loc)
		tomorrow := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
		jobs, err := repo.JobsScheduledBetween(ctx, s.DB, rule.TenantID, tomorrow, tomorrow.AddDate(0, 0, 1))
		if err != nil {
			return nil, err
		}
		out := make([]match, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, match{
				entityType: domain.EntityJob,
				entityID:   j.ID,
				clientID:   j.ClientID,
				vars: map[string]string{
					"job_title": j.Title,
					"date":      formatDate(j.ScheduledAt.In(loc)),
				},
			})
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidTrigger, rule.TriggerType)
	}
}

// actOnMatch applies the idempotency guard and dispatches for one entity.
// Every outcome is contained here so the pass continues regardless.
func (s *AutomationService) actOnMatch(ctx context.Context, rule domain.AutomationRule, m match, now time.Time, stats *PassStats) {
	handled, err := repo.HasAutomationLog(ctx, s.DB, rule.ID, m.entityType, m.entityID)
	if err != nil {
		log.Error().Err(err).Str("rule_id", rule.ID).Str("entity_id", m.entityID).Msg("automation log lookup failed")
		return
	}
	if handled {
		return
	}

	client, err := repo.GetClient(ctx, s.DB, m.clientID, rule.TenantID)
	if err != nil || client.Phone == "" {
		// Matched but unactionable: record the skip and keep going.
		s.writeLog(ctx, rule, m, domain.LogSkipped, nil, strPtr("client has no phone"))
		stats.Skipped++
		automationFires.WithLabelValues(rule.TriggerType, domain.LogSkipped).Inc()
		return
	}
	m.vars["client_name"] = client.Name

	tpl := defaultTemplates[rule.TriggerType]
	if rule.CustomTemplate != nil && *rule.CustomTemplate != "" {
		tpl = *rule.CustomTemplate
	}
	body := renderTemplate(tpl, m.vars)

	msg, err := s.Dispatch.Send(ctx, SendRequest{
		TenantID:   rule.TenantID,
		To:         client.Phone,
		Body:       body,
		ClientID:   client.ID,
		ClientName: client.Name,
	})
	if err != nil {
		errText := err.Error()
		s.writeLog(ctx, rule, m, domain.LogFailed, nil, &errText)
		stats.Failed++
		automationFires.WithLabelValues(rule.TriggerType, domain.LogFailed).Inc()
		log.Error().Err(err).
			Str("rule_id", rule.ID).
			Str("entity_type", m.entityType).
			Str("entity_id", m.entityID).
			Msg("automation dispatch failed")
		return
	}

	if !s.writeLog(ctx, rule, m, domain.LogSent, &msg.ID, nil) {
		// An overlapping pass logged first; it owns the bookkeeping.
		return
	}
	stats.Sent++
	automationFires.WithLabelValues(rule.TriggerType, domain.LogSent).Inc()
	if err := repo.BumpRuleTriggered(ctx, s.DB, rule.ID, now); err != nil {
		log.Error().Err(err).Str("rule_id", rule.ID).Msg("bump rule trigger count")
	}
}

// writeLog inserts the idempotency row, treating a duplicate as already
// handled. Returns false when another pass won the insert.
func (s *AutomationService) writeLog(ctx context.Context, rule domain.AutomationRule, m match, status string, messageID, errDetail *string) bool {
	_, err := repo.CreateAutomationLog(ctx, s.DB, rule.ID, m.entityType, m.entityID, status, messageID, errDetail)
	if errors.Is(err, repo.ErrDuplicate) {
		return false
	}
	if err != nil {
		log.Error().Err(err).Str("rule_id", rule.ID).Str("entity_id", m.entityID).Msg("write automation log")
		return false
	}
	return true
}

func strPtr(s string) *string { return &s }
