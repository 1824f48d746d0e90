package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dev-avwi/TradieTrack-sub004/internal/domain"
	"github.com/dev-avwi/TradieTrack-sub004/internal/gateway"
	"github.com/dev-avwi/TradieTrack-sub004/internal/phone"
	"github.com/dev-avwi/TradieTrack-sub004/internal/repo"
)

// newServiceDB opens a throwaway SQLite database with the full schema for
// service-level tests.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("services_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func candidateAt(id, tenant string, created time.Time, lastMsg time.Time, lastOut *time.Time) Candidate {
	return Candidate{
		Conversation: domain.Conversation{
			ID:            id,
			TenantID:      tenant,
			CreatedAt:     created,
			LastMessageAt: lastMsg,
		},
		LastOutboundAt: lastOut,
	}
}

func TestSelectConversation(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	older := base.Add(-time.Hour)
	newer := base.Add(time.Hour)

	tests := []struct {
		name       string
		candidates []Candidate
		want       int
	}{
		{
			name:       "empty",
			candidates: nil,
			want:       -1,
		},
		{
			name: "single candidate",
			candidates: []Candidate{
				candidateAt("a", "t1", base, base, nil),
			},
			want: 0,
		},
		{
			name: "latest outbound wins",
			candidates: []Candidate{
				candidateAt("a", "t1", older, base, &base),
				candidateAt("b", "t2", older, base, &newer),
				candidateAt("c", "t3", older, base, &older),
			},
			want: 1,
		},
		{
			name: "outbound history beats none",
			candidates: []Candidate{
				candidateAt("a", "t1", older, newer, nil),
				candidateAt("b", "t2", older, older, &older),
			},
			want: 1,
		},
		{
			name: "no outbound anywhere falls back to last activity",
			candidates: []Candidate{
				candidateAt("a", "t1", older, base, nil),
				candidateAt("b", "t2", older, newer, nil),
			},
			want: 1,
		},
		{
			name: "outbound tie breaks to earliest created",
			candidates: []Candidate{
				candidateAt("a", "t1", newer, base, &base),
				candidateAt("b", "t2", older, base, &base),
			},
			want: 1,
		},
		{
			name: "fallback tie breaks to earliest created",
			candidates: []Candidate{
				candidateAt("a", "t1", older, base, nil),
				candidateAt("b", "t2", newer, base, nil),
			},
			want: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SelectConversation(tc.candidates); got != tc.want {
				t.Fatalf("want index %d, got %d", tc.want, got)
			}
		})
	}
}

func newInboundService(db *gorm.DB) *InboundService {
	return &InboundService{DB: db, Norm: phone.NewNormalizer("")}
}

func TestRoute_DropsWhenNoConversationExists(t *testing.T) {
	db := newServiceDB(t)
	svc := newInboundService(db)

	msg, err := svc.Route(context.Background(), gateway.Inbound{
		From: "+61412000001", Body: "hello?", GatewayMessageID: "SM1",
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if msg != nil {
		t.Fatalf("unattributable message must be dropped, got %+v", msg)
	}

	var n int64
	if err := db.Model(&domain.Message{}).Count(&n).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if n != 0 {
		t.Fatalf("dropped message must not be persisted, found %d rows", n)
	}
}

func TestRoute_DropsUnusableFromNumber(t *testing.T) {
	db := newServiceDB(t)
	svc := newInboundService(db)

	msg, err := svc.Route(context.Background(), gateway.Inbound{From: "anonymous", Body: "hi"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if msg != nil {
		t.Fatalf("expected drop, got %+v", msg)
	}
}

func TestRoute_AttributesToLastTexter(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := newInboundService(db)

	// Two tenants share the client number; t2 texted last.
	c1, err := repo.CreateConversation(ctx, db, "t1", "+61412000001", "a", nil, nil)
	if err != nil {
		t.Fatalf("create c1: %v", err)
	}
	c2, err := repo.CreateConversation(ctx, db, "t2", "+61412000001", "b", nil, nil)
	if err != nil {
		t.Fatalf("create c2: %v", err)
	}

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	m1, err := repo.CreateOutboundMessage(ctx, db, c1.ID, "from t1", nil, nil)
	if err != nil {
		t.Fatalf("outbound t1: %v", err)
	}
	m2, err := repo.CreateOutboundMessage(ctx, db, c2.ID, "from t2", nil, nil)
	if err != nil {
		t.Fatalf("outbound t2: %v", err)
	}
	for id, at := range map[string]time.Time{m1.ID: base, m2.ID: base.Add(time.Hour)} {
		if err := db.Model(&domain.Message{}).Where("id = ?", id).Update("created_at", at).Error; err != nil {
			t.Fatalf("backdate: %v", err)
		}
	}

	msg, err := svc.Route(ctx, gateway.Inbound{
		From: "0412 000 001", Body: "on my way back", GatewayMessageID: "SM1",
	})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if msg == nil {
		t.Fatal("expected a routed message")
	}
	if msg.ConversationID != c2.ID {
		t.Fatalf("routed to %s, want the last texter's thread %s", msg.ConversationID, c2.ID)
	}
	if msg.Direction != domain.DirectionInbound || msg.Status != domain.StatusReceived {
		t.Fatalf("unexpected message state: %+v", msg)
	}

	var conv domain.Conversation
	if err := db.First(&conv, "id = ?", c2.ID).Error; err != nil {
		t.Fatalf("reload target: %v", err)
	}
	if conv.UnreadCount != 1 {
		t.Fatalf("unread not incremented: %d", conv.UnreadCount)
	}
	conv = domain.Conversation{}
	if err := db.First(&conv, "id = ?", c1.ID).Error; err != nil {
		t.Fatalf("reload other: %v", err)
	}
	if conv.UnreadCount != 0 {
		t.Fatalf("losing candidate must be untouched: %d", conv.UnreadCount)
	}
}

func TestRoute_FallsBackToLastActivityWithoutOutbound(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := newInboundService(db)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	quiet := domain.Conversation{ID: "quiet", TenantID: "t1", Phone: "+61412000001", CreatedAt: base, LastMessageAt: base}
	busy := domain.Conversation{ID: "busy", TenantID: "t2", Phone: "+61412000001", CreatedAt: base, LastMessageAt: base.Add(time.Hour)}
	for _, c := range []domain.Conversation{quiet, busy} {
		if err := db.Create(&c).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	msg, err := svc.Route(ctx, gateway.Inbound{From: "+61412000001", Body: "hi", GatewayMessageID: "SM1"})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if msg == nil || msg.ConversationID != "busy" {
		t.Fatalf("expected the most recently active thread, got %+v", msg)
	}
}

func TestRoute_RedeliveryIsNoOp(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := newInboundService(db)

	if _, err := repo.CreateConversation(ctx, db, "t1", "+61412000001", "a", nil, nil); err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	in := gateway.Inbound{From: "+61412000001", Body: "hello", GatewayMessageID: "SM1"}
	first, err := svc.Route(ctx, in)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if first == nil {
		t.Fatal("first delivery should create a message")
	}

	second, err := svc.Route(ctx, in)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if second != nil {
		t.Fatalf("redelivery must be a no-op, got %+v", second)
	}

	var conv domain.Conversation
	if err := db.First(&conv, "id = ?", first.ConversationID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if conv.UnreadCount != 1 {
		t.Fatalf("redelivery must not double-count unread: %d", conv.UnreadCount)
	}
}
