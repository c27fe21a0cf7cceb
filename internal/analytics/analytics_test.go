package analytics

import (
	"context"
	"testing"
	"time"

	"promptguard/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)

	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestReportAggregation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	events := []storage.SecurityEvent{
		{GuildID: "g1", UserID: "u1", Level: "CRIT", Event: "ban", Details: "Wallet scam"},
		{GuildID: "g1", UserID: "u2", Level: "CRIT", Event: "ban", Details: "Screenshot spam"},
		{GuildID: "g1", UserID: "u3", Level: "WARN", Event: "watchlist", Details: "Score: 60"},
		{GuildID: "g2", UserID: "u4", Level: "CRIT", Event: "ban", Details: "other guild"},
	}
	for _, event := range events {
		if err := store.AddSecurityEvent(ctx, event); err != nil {
			t.Fatalf("add event: %v", err)
		}
	}

	report, err := New(store).Report(ctx, "g1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.Total != 3 {
		t.Fatalf("expected 3 events for g1, got %d", report.Total)
	}
	if report.ByLevel["CRIT"] != 2 || report.ByLevel["WARN"] != 1 {
		t.Fatalf("unexpected level counts: %v", report.ByLevel)
	}

	top := report.TopEvents(1)
	if len(top) != 1 || top[0].Event != "ban" || top[0].Count != 2 {
		t.Fatalf("unexpected top events: %v", top)
	}
}

func TestTopEventsTieBreak(t *testing.T) {
	report := Report{ByEvent: map[string]int{"watchlist": 1, "ban": 1, "delete_alert": 2}}
	top := report.TopEvents(3)
	if top[0].Event != "delete_alert" || top[1].Event != "ban" || top[2].Event != "watchlist" {
		t.Fatalf("unexpected ordering: %v", top)
	}
}
