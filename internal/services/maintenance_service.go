// Package services – MaintenanceService
//
// Housekeeping passes driven by the scheduler: archiving idle threads and
// reconciling outbound messages stranded in pending by a crash between the
// gateway call and the status write.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dev-avwi/TradieTrack-sub004/internal/repo"
)

// MaintenanceService bundles the periodic housekeeping operations.
type MaintenanceService struct {
	DB *gorm.DB

	// ArchiveAfter is how long a conversation may sit without activity
	// before the archival pass hides it. Zero falls back to 90 days.
	ArchiveAfter time.Duration

	// ReconcileAfter is how long an outbound message may stay pending before
	// the reconciliation pass declares it failed. Zero falls back to 10
	// minutes — far beyond any legitimate gateway round trip.
	ReconcileAfter time.Duration
}

// ArchiveIdle flags conversations idle past the threshold.
func (s *MaintenanceService) ArchiveIdle(ctx context.Context, now time.Time) error {
	after := s.ArchiveAfter
	if after <= 0 {
		after = 90 * 24 * time.Hour
	}
	n, err := repo.ArchiveIdleConversations(ctx, s.DB, now.Add(-after))
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int64("archived", n).Msg("archived idle conversations")
	}
	return nil
}

// ReconcilePending fails outbound messages stuck in pending since before the
// threshold, making interrupted dispatches visible instead of lost.
func (s *MaintenanceService) ReconcilePending(ctx context.Context, now time.Time) error {
	after := s.ReconcileAfter
	if after <= 0 {
		after = 10 * time.Minute
	}
	n, err := repo.FailStalePendingMessages(ctx, s.DB, now.Add(-after))
	if err != nil {
		return err
	}
	if n > 0 {
		log.Warn().Int64("reconciled", n).Msg("failed stale pending outbound messages")
	}
	return nil
}
