package storage

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)

	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestUpsertGuildSettings(t *testing.T) {
	store := newTestStore(t)

	settings := GuildSettings{GuildID: "g1", SecurityEnabled: true, RetentionDays: 30}
	if err := store.UpsertGuildSettings(context.Background(), settings); err != nil {
		t.Fatalf("upsert guild settings: %v", err)
	}

	settings.SecurityEnabled = false
	if err := store.UpsertGuildSettings(context.Background(), settings); err != nil {
		t.Fatalf("update guild settings: %v", err)
	}

	got, err := store.GetGuildSettings(context.Background(), "g1", GuildSettings{SecurityEnabled: true})
	if err != nil {
		t.Fatalf("get guild settings: %v", err)
	}
	if got.SecurityEnabled {
		t.Fatal("expected security disabled after update")
	}
	if got.RetentionDays != 30 {
		t.Fatalf("expected retention 30, got %d", got.RetentionDays)
	}
}

func TestGuildSettingsDefaults(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetGuildSettings(context.Background(), "missing", GuildSettings{SecurityEnabled: true, RetentionDays: 14})
	if err != nil {
		t.Fatalf("get guild settings: %v", err)
	}
	if !got.SecurityEnabled || got.RetentionDays != 14 || got.GuildID != "missing" {
		t.Fatalf("unexpected defaults: %+v", got)
	}
}

func TestTrustedUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddTrustedUser(ctx, "g1", "u1"); err != nil {
		t.Fatalf("add trusted: %v", err)
	}
	if err := store.AddTrustedUser(ctx, "g1", "u1"); err != nil {
		t.Fatalf("re-add trusted: %v", err)
	}

	trusted, err := store.IsTrustedUser(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("is trusted: %v", err)
	}
	if !trusted {
		t.Fatal("expected u1 trusted")
	}

	users, err := store.ListTrustedUsers(ctx, "g1")
	if err != nil {
		t.Fatalf("list trusted: %v", err)
	}
	if len(users) != 1 || users[0] != "u1" {
		t.Fatalf("unexpected trusted list: %v", users)
	}

	if err := store.RemoveTrustedUser(ctx, "g1", "u1"); err != nil {
		t.Fatalf("remove trusted: %v", err)
	}
	trusted, err = store.IsTrustedUser(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("is trusted after remove: %v", err)
	}
	if trusted {
		t.Fatal("expected u1 no longer trusted")
	}
}

func TestAdminChannels(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddAdminChannel(ctx, "g1", "c2"); err != nil {
		t.Fatalf("add channel: %v", err)
	}
	if err := store.AddAdminChannel(ctx, "g1", "c1"); err != nil {
		t.Fatalf("add channel: %v", err)
	}

	channels, err := store.ListAdminChannels(ctx, "g1")
	if err != nil {
		t.Fatalf("list channels: %v", err)
	}
	if len(channels) != 2 || channels[0] != "c1" || channels[1] != "c2" {
		t.Fatalf("unexpected channels: %v", channels)
	}

	if err := store.RemoveAdminChannel(ctx, "g1", "c1"); err != nil {
		t.Fatalf("remove channel: %v", err)
	}
	channels, err = store.ListAdminChannels(ctx, "g1")
	if err != nil {
		t.Fatalf("list channels: %v", err)
	}
	if len(channels) != 1 || channels[0] != "c2" {
		t.Fatalf("unexpected channels after remove: %v", channels)
	}
}

func TestSecurityEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	event := SecurityEvent{
		GuildID:   "g1",
		UserID:    "u1",
		Level:     "CRIT",
		Event:     "ban",
		Details:   "Wallet scam (Score: 105)",
		CreatedAt: time.Now(),
	}
	if err := store.AddSecurityEvent(ctx, event); err != nil {
		t.Fatalf("add event: %v", err)
	}

	events, err := store.ListSecurityEvents(ctx, "g1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Event != "ban" || events[0].Level != "CRIT" {
		t.Fatalf("unexpected event: %+v", events[0])
	}

	events, err = store.ListSecurityEvents(ctx, "g1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events past cutoff, got %d", len(events))
	}
}

func TestIncrementInfraction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	prior, err := store.IncrementInfraction(ctx, "g1", "u1", "watchlist")
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if prior != 0 {
		t.Fatalf("expected 0 prior incidents, got %d", prior)
	}

	prior, err = store.IncrementInfraction(ctx, "g1", "u1", "ban")
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if prior != 1 {
		t.Fatalf("expected 1 prior incident, got %d", prior)
	}

	inf, err := store.GetInfraction(ctx, "g1", "u1")
	if err != nil {
		t.Fatalf("get infraction: %v", err)
	}
	if inf.CountTotal != 2 || inf.LastAction != "ban" {
		t.Fatalf("unexpected infraction: %+v", inf)
	}
}
