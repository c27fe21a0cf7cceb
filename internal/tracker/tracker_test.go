package tracker

import (
	"fmt"
	"testing"
	"time"

	"promptguard/internal/config"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func testConfig() config.SecurityConfig {
	return config.SecurityConfig{
		CrossPostWindowSeconds: 300,
		MaxTrackedPerUser:      50,
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	atts := []Attachment{{Filename: "a.png", Size: 123}}
	first := Fingerprint("hello", atts)
	second := Fingerprint("hello", atts)
	if first != second {
		t.Fatalf("fingerprint not deterministic: %s vs %s", first, second)
	}
	if Fingerprint("  hello  ", atts) != first {
		t.Fatal("expected surrounding whitespace to be ignored")
	}
	if Fingerprint("hello", nil) == first {
		t.Fatal("expected attachment change to alter fingerprint")
	}
	if Fingerprint("hello!", atts) == first {
		t.Fatal("expected content change to alter fingerprint")
	}
}

func TestCrossPostChannels(t *testing.T) {
	tr := New(testConfig())

	fp := Fingerprint("same payload", nil)
	tr.Record("u1", fp, "chanA", "m1")
	tr.Record("u1", fp, "chanB", "m2")
	tr.Record("u1", fp, "chanA", "m3")

	if got := tr.CrossPostChannels("u1", fp); got != 2 {
		t.Fatalf("expected 2 distinct channels, got %d", got)
	}
	if got := tr.CrossPostChannels("u2", fp); got != 0 {
		t.Fatalf("expected 0 for unknown author, got %d", got)
	}
	if got := tr.CrossPostChannels("u1", Fingerprint("other", nil)); got != 0 {
		t.Fatalf("expected 0 for unknown fingerprint, got %d", got)
	}
}

func TestWindowPruning(t *testing.T) {
	tr := New(testConfig())
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	tr.WithClock(clock)

	fp := Fingerprint("payload", nil)
	tr.Record("u1", fp, "chanA", "m1")

	clock.now = clock.now.Add(301 * time.Second)
	tr.Record("u1", fp, "chanB", "m2")

	if got := tr.CrossPostChannels("u1", fp); got != 1 {
		t.Fatalf("expected old channel pruned, got %d", got)
	}
}

func TestPerUserCap(t *testing.T) {
	cfg := testConfig()
	tr := New(cfg)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	tr.WithClock(clock)

	for i := 0; i < 60; i++ {
		clock.now = clock.now.Add(time.Second)
		fp := Fingerprint(fmt.Sprintf("payload-%d", i), nil)
		tr.Record("u1", fp, "chanA", fmt.Sprintf("m%d", i))
	}

	total := 0
	for i := 0; i < 60; i++ {
		fp := Fingerprint(fmt.Sprintf("payload-%d", i), nil)
		total += tr.CrossPostChannels("u1", fp)
	}
	if total != cfg.MaxTrackedPerUser {
		t.Fatalf("expected %d tracked messages, got %d", cfg.MaxTrackedPerUser, total)
	}

	// oldest entries evicted first
	if got := tr.CrossPostChannels("u1", Fingerprint("payload-0", nil)); got != 0 {
		t.Fatalf("expected oldest entry evicted, got %d", got)
	}
	if got := tr.CrossPostChannels("u1", Fingerprint("payload-59", nil)); got != 1 {
		t.Fatalf("expected newest entry kept, got %d", got)
	}
}
