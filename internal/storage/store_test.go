package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"banalert/internal/config"
	"banalert/internal/model"
)

func TestSQLiteRoundTrip(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "audit.db") + "?_pragma=busy_timeout(5000)"
	store, err := NewStore(config.StorageConfig{Enabled: true, Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	minutes := 30
	first := model.Delivery{
		ID:         "one",
		Source:     "rest",
		ReceivedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Notification: model.BanNotification{
			IPAddress: "10.0.0.5", Reason: "abuse", BanType: "TEMPORARY",
			BannedAt: "2026-03-01T10:00:00Z", ExpiresAt: "-", BannedByAdminLoginID: "AUTO_BAN_SYSTEM",
			DurationMinutes: &minutes,
		},
		Outcome: model.OutcomeDelivered,
		Latency: 120 * time.Millisecond,
	}
	second := first
	second.ID = "two"
	second.Notification.DurationMinutes = nil
	second.Outcome = model.OutcomeFailed
	second.StatusCode = 500
	second.Error = "webhook delivery failed: 500 boom"

	for _, d := range []model.Delivery{first, second} {
		if err := store.SaveDelivery(ctx, d); err != nil {
			t.Fatalf("save %s: %v", d.ID, err)
		}
	}
	list, err := store.RecentDeliveries(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "two" || list[1].ID != "one" {
		t.Fatalf("unexpected order: %+v", list)
	}
	if list[0].StatusCode != 500 || list[0].Notification.DurationMinutes != nil {
		t.Fatalf("second row mismatch: %+v", list[0])
	}
	if list[1].Notification.DurationMinutes == nil || *list[1].Notification.DurationMinutes != 30 {
		t.Fatalf("duration not restored")
	}
	if !list[1].ReceivedAt.Equal(first.ReceivedAt) || list[1].Latency != 120*time.Millisecond {
		t.Fatalf("timestamps mismatch: %+v", list[1])
	}
}

func TestNewStoreDisabled(t *testing.T) {
	store, err := NewStore(config.StorageConfig{Enabled: false})
	if err != nil || store != nil {
		t.Fatalf("disabled store should be nil, got %v %v", store, err)
	}
	if _, err := NewStore(config.StorageConfig{Enabled: true, Driver: "mysql"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}
