package utils

import (
	"fmt"
	"testing"
)

func TestSeenCache(t *testing.T) {
	cache := NewSeenCache(3)

	if cache.Seen("a") {
		t.Fatal("first sighting should not be seen")
	}
	if !cache.Seen("a") {
		t.Fatal("second sighting should be seen")
	}
}

func TestSeenCacheClearsWhenFull(t *testing.T) {
	cache := NewSeenCache(3)
	for i := 0; i < 3; i++ {
		cache.Seen(fmt.Sprintf("k%d", i))
	}
	if cache.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", cache.Len())
	}

	// the 4th insert drops the whole set first
	cache.Seen("k3")
	if cache.Len() != 1 {
		t.Fatalf("expected reset to 1 entry, got %d", cache.Len())
	}
	if cache.Seen("k0") {
		t.Fatal("old keys forgotten after reset")
	}
}
