package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dev-avwi/TradieTrack-sub004/internal/domain"
	"gorm.io/gorm"
)

// backdateMessage rewrites a message's creation time so ordering and cutoff
// assertions are deterministic.
func backdateMessage(t *testing.T, db *gorm.DB, id string, at time.Time) {
	t.Helper()
	if err := db.Model(&domain.Message{}).Where("id = ?", id).Update("created_at", at).Error; err != nil {
		t.Fatalf("backdate message %s: %v", id, err)
	}
}

func TestCreateOutboundMessage_Error_NoTable(t *testing.T) {
	db := newRepoDB(t)

	_, err := CreateOutboundMessage(context.Background(), db, "conv-1", "hello", nil, nil)
	if err == nil {
		t.Fatal("expected error when table is missing, got nil")
	}
}

func TestCreateOutboundMessage_Success_PersistsAndSetsFields(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})

	sender := "user-7"
	action := "on_my_way"
	m, err := CreateOutboundMessage(context.Background(), db, "conv-1", "On my way!", &sender, &action)
	if err != nil {
		t.Fatalf("CreateOutboundMessage: %v", err)
	}
	if m.ID == "" {
		t.Fatal("expected generated id")
	}

	var got domain.Message
	if err := db.First(&got, "id = ?", m.ID).Error; err != nil {
		t.Fatalf("load created row: %v", err)
	}
	if got.Direction != domain.DirectionOutbound || got.Status != domain.StatusPending {
		t.Fatalf("unexpected direction/status: %s/%s", got.Direction, got.Status)
	}
	if got.Body != "On my way!" {
		t.Fatalf("unexpected body: %q", got.Body)
	}
	if got.SenderID == nil || *got.SenderID != sender {
		t.Fatalf("sender not persisted: %+v", got.SenderID)
	}
	if got.QuickAction == nil || *got.QuickAction != action {
		t.Fatalf("quick action not persisted: %+v", got.QuickAction)
	}
	if !got.Read {
		t.Fatal("outbound messages start read")
	}
	if got.GatewayMessageID != nil {
		t.Fatalf("pending outbound must not have a gateway id yet: %+v", got.GatewayMessageID)
	}
}

func TestCreateInboundMessage_PersistsReceived(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})

	m, err := CreateInboundMessage(context.Background(), db, "conv-1", "yes please", "SM123")
	if err != nil {
		t.Fatalf("CreateInboundMessage: %v", err)
	}

	var got domain.Message
	if err := db.First(&got, "id = ?", m.ID).Error; err != nil {
		t.Fatalf("load created row: %v", err)
	}
	if got.Direction != domain.DirectionInbound || got.Status != domain.StatusReceived {
		t.Fatalf("unexpected direction/status: %s/%s", got.Direction, got.Status)
	}
	if got.GatewayMessageID == nil || *got.GatewayMessageID != "SM123" {
		t.Fatalf("gateway id not persisted: %+v", got.GatewayMessageID)
	}
	if got.Read {
		t.Fatal("inbound messages start unread")
	}
}

func TestCreateInboundMessage_DuplicateGatewayID(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})
	ctx := context.Background()

	if _, err := CreateInboundMessage(ctx, db, "conv-1", "first delivery", "SM123"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := CreateInboundMessage(ctx, db, "conv-1", "redelivery", "SM123")
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on redelivered gateway id, got %v", err)
	}
}

func TestCreateInboundMessage_EmptyGatewayIDNeverConflicts(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})
	ctx := context.Background()

	// Without a provider id the column stays NULL, which the unique index
	// ignores.
	if _, err := CreateInboundMessage(ctx, db, "conv-1", "one", ""); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := CreateInboundMessage(ctx, db, "conv-1", "two", ""); err != nil {
		t.Fatalf("second insert without gateway id must succeed: %v", err)
	}
}

func TestMarkMessageSent_SentAndSimulated(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})
	ctx := context.Background()

	real, err := CreateOutboundMessage(ctx, db, "conv-1", "real", nil, nil)
	if err != nil {
		t.Fatalf("create real: %v", err)
	}
	sim, err := CreateOutboundMessage(ctx, db, "conv-1", "simulated", nil, nil)
	if err != nil {
		t.Fatalf("create sim: %v", err)
	}

	if err := MarkMessageSent(ctx, db, real.ID, "SM900", false); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := MarkMessageSent(ctx, db, sim.ID, "SIM-1", true); err != nil {
		t.Fatalf("mark simulated: %v", err)
	}

	var got domain.Message
	if err := db.First(&got, "id = ?", real.ID).Error; err != nil {
		t.Fatalf("reload real: %v", err)
	}
	if got.Status != domain.StatusSent {
		t.Fatalf("expected sent, got %s", got.Status)
	}
	if got.GatewayMessageID == nil || *got.GatewayMessageID != "SM900" {
		t.Fatalf("gateway id not recorded: %+v", got.GatewayMessageID)
	}

	got = domain.Message{}
	if err := db.First(&got, "id = ?", sim.ID).Error; err != nil {
		t.Fatalf("reload sim: %v", err)
	}
	if got.Status != domain.StatusSimulated {
		t.Fatalf("simulated must not collapse into sent, got %s", got.Status)
	}
}

func TestMarkMessageFailed_KeepsRowWithError(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})
	ctx := context.Background()

	m, err := CreateOutboundMessage(ctx, db, "conv-1", "doomed", nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := MarkMessageFailed(ctx, db, m.ID, "gateway: 30007 message filtered"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	var got domain.Message
	if err := db.First(&got, "id = ?", m.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "gateway: 30007 message filtered" {
		t.Fatalf("error detail not recorded: %+v", got.ErrorMessage)
	}
}

func TestLatestOutboundMessage_OrderAndNotFound(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	older, err := CreateOutboundMessage(ctx, db, "conv-1", "older", nil, nil)
	if err != nil {
		t.Fatalf("create older: %v", err)
	}
	newer, err := CreateOutboundMessage(ctx, db, "conv-1", "newer", nil, nil)
	if err != nil {
		t.Fatalf("create newer: %v", err)
	}
	backdateMessage(t, db, older.ID, base)
	backdateMessage(t, db, newer.ID, base.Add(time.Hour))

	// Inbound traffic after the latest outbound must not win.
	in, err := CreateInboundMessage(ctx, db, "conv-1", "reply", "SM1")
	if err != nil {
		t.Fatalf("create inbound: %v", err)
	}
	backdateMessage(t, db, in.ID, base.Add(2*time.Hour))

	got, err := LatestOutboundMessage(ctx, db, "conv-1")
	if err != nil {
		t.Fatalf("latest outbound: %v", err)
	}
	if got.ID != newer.ID {
		t.Fatalf("expected %s, got %s", newer.ID, got.ID)
	}

	if _, err := LatestOutboundMessage(ctx, db, "conv-empty"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("conversation without outbound traffic, got %v", err)
	}
}

func TestGetMessage_FoundAndNotFound(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})
	ctx := context.Background()

	m, err := CreateOutboundMessage(ctx, db, "conv-1", "hello", nil, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := GetMessage(ctx, db, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Body != "hello" {
		t.Fatalf("unexpected body: %q", got.Body)
	}

	if _, err := GetMessage(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown id, got %v", err)
	}
}

func TestCountMessages_Error_NoTable(t *testing.T) {
	db := newRepoDB(t)

	if _, err := CountMessages(context.Background(), db, "conv-1"); err == nil {
		t.Fatal("expected error when table is missing, got nil")
	}
}

func TestCountMessages_ScopedToConversation(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := CreateOutboundMessage(ctx, db, "conv-1", "m", nil, nil); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := CreateOutboundMessage(ctx, db, "conv-2", "other", nil, nil); err != nil {
		t.Fatalf("create other: %v", err)
	}

	n, err := CountMessages(ctx, db, "conv-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3, got %d", n)
	}
}

func TestListMessagesPage_OrderAndPagination(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 4; i++ {
		m, err := CreateOutboundMessage(ctx, db, "conv-1", "m", nil, nil)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		backdateMessage(t, db, m.ID, base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, m.ID)
	}

	page, err := ListMessagesPage(ctx, db, "conv-1", 0, 3)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(page))
	}
	// Oldest first: a client rendering the thread appends pages downward.
	for i := 0; i < 3; i++ {
		if page[i].ID != ids[i] {
			t.Fatalf("position %d: want %s, got %s", i, ids[i], page[i].ID)
		}
	}

	page, err = ListMessagesPage(ctx, db, "conv-1", 3, 3)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(page) != 1 || page[0].ID != ids[3] {
		t.Fatalf("second page wrong: %+v", page)
	}
}

func TestFailStalePendingMessages_ReconcilesOnlyStalePending(t *testing.T) {
	db := newRepoDB(t, &domain.Conversation{}, &domain.Message{})
	ctx := context.Background()
	cutoff := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	stale, err := CreateOutboundMessage(ctx, db, "conv-1", "stale", nil, nil)
	if err != nil {
		t.Fatalf("create stale: %v", err)
	}
	backdateMessage(t, db, stale.ID, cutoff.Add(-time.Hour))

	fresh, err := CreateOutboundMessage(ctx, db, "conv-1", "fresh", nil, nil)
	if err != nil {
		t.Fatalf("create fresh: %v", err)
	}
	backdateMessage(t, db, fresh.ID, cutoff.Add(time.Minute))

	sent, err := CreateOutboundMessage(ctx, db, "conv-1", "sent", nil, nil)
	if err != nil {
		t.Fatalf("create sent: %v", err)
	}
	backdateMessage(t, db, sent.ID, cutoff.Add(-time.Hour))
	if err := MarkMessageSent(ctx, db, sent.ID, "SM55", false); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	in, err := CreateInboundMessage(ctx, db, "conv-1", "inbound", "SM56")
	if err != nil {
		t.Fatalf("create inbound: %v", err)
	}
	backdateMessage(t, db, in.ID, cutoff.Add(-time.Hour))

	n, err := FailStalePendingMessages(ctx, db, cutoff)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row reconciled, got %d", n)
	}

	var got domain.Message
	if err := db.First(&got, "id = ?", stale.ID).Error; err != nil {
		t.Fatalf("reload stale: %v", err)
	}
	if got.Status != domain.StatusFailed || got.ErrorMessage == nil {
		t.Fatalf("stale pending not failed: %+v", got)
	}
	got = domain.Message{}
	if err := db.First(&got, "id = ?", fresh.ID).Error; err != nil {
		t.Fatalf("reload fresh: %v", err)
	}
	if got.Status != domain.StatusPending {
		t.Fatalf("fresh pending must be untouched, got %s", got.Status)
	}
	got = domain.Message{}
	if err := db.First(&got, "id = ?", sent.ID).Error; err != nil {
		t.Fatalf("reload sent: %v", err)
	}
	if got.Status != domain.StatusSent {
		t.Fatalf("sent must be untouched, got %s", got.Status)
	}
	got = domain.Message{}
	if err := db.First(&got, "id = ?", in.ID).Error; err != nil {
		t.Fatalf("reload inbound: %v", err)
	}
	if got.Status != domain.StatusReceived {
		t.Fatalf("inbound must be untouched, got %s", got.Status)
	}
}
