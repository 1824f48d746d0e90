// Package services – QuickActionService
//
// This file implements the quick action composer: a fixed enumeration of
// canned operational messages tied to field-service status changes. Each
// action renders a template parameterized by the business name, the job
// title, an optional ETA string, and a locally formatted clock time, then
// delegates to the outbound dispatcher with the action tag stamped on the
// message. An unrecognized kind is rejected synchronously, before any
// persistence.
package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dev-avwi/TradieTrack-sub004/internal/domain"
	"github.com/dev-avwi/TradieTrack-sub004/internal/repo"
)

// Quick action kinds. The set is closed; anything else is ErrUnknownQuickAction.
const (
	ActionOnMyWay       = "on_my_way"
	ActionJustArrived   = "just_arrived"
	ActionJobFinished   = "job_finished"
	ActionRunningLate   = "running_late"
	ActionNeedMaterials = "need_materials"
)

// quickActionTemplates maps each kind to its message template.
var quickActionTemplates = map[string]string{
	ActionOnMyWay:       "Hi {client_name}, it's {business_name}. We're on our way to {job_title}{eta}. See you soon!",
	ActionJustArrived:   "Hi {client_name}, {business_name} here — we've just arrived on site for {job_title} ({time}).",
	ActionJobFinished:   "Hi {client_name}, good news from {business_name}: {job_title} is all finished as of {time}. Thanks for having us!",
	ActionRunningLate:   "Hi {client_name}, {business_name} here. Sorry — we're running a bit late for {job_title}{eta}. Thanks for your patience.",
	ActionNeedMaterials: "Hi {client_name}, {business_name} here. We need to pick up some materials for {job_title}, so there'll be a short delay. Back as soon as we can.",
}

// QuickActionRequest identifies the action, the job it concerns, and who is
// sending it.
type QuickActionRequest struct {
	TenantID string
	Kind     string
	JobID    string
	SenderID string
	ETA      string // optional free-text ETA, e.g. "about 20 minutes"
}

// QuickActionService renders canned messages and hands them to the
// dispatcher.
type QuickActionService struct {
	DB       *gorm.DB
	Dispatch Dispatcher

	// BusinessName is the sender identity used in templates.
	BusinessName string
	// Location formats the {time} placeholder; nil means time.Local.
	Location *time.Location
}

// Send validates the action kind, loads the job and its client, renders the
// template, and dispatches. The job link is forwarded so a first-contact
// conversation is created already tied to the job.
func (s *QuickActionService) Send(ctx context.Context, req QuickActionRequest) (*domain.Message, error) {
	tpl, ok := quickActionTemplates[req.Kind]
	if !ok {
		return nil, ErrUnknownQuickAction
	}

	job, err := repo.GetJob(ctx, s.DB, req.JobID, req.TenantID)
	if err != nil {
		return nil, ErrJobNotFound
	}
	client, err := repo.GetClient(ctx, s.DB, job.ClientID, req.TenantID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(client.Phone) == "" {
		return nil, ErrClientWithoutPhone
	}

	eta := ""
	if strings.TrimSpace(req.ETA) != "" {
		eta = ", ETA " + strings.TrimSpace(req.ETA)
	}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}

	body := renderTemplate(tpl, map[string]string{
		"client_name":   client.Name,
		"business_name": s.BusinessName,
		"job_title":     job.Title,
		"eta":           eta,
		"time":          formatClock(time.Now().In(loc)),
	})

	return s.Dispatch.Send(ctx, SendRequest{
		TenantID:    req.TenantID,
		To:          client.Phone,
		Body:        body,
		SenderID:    req.SenderID,
		ClientID:    client.ID,
		ClientName:  client.Name,
		JobID:       job.ID,
		QuickAction: req.Kind,
	})
}
