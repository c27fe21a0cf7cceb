package utils

import (
	"strings"
	"testing"
)

func TestSanitizeText(t *testing.T) {
	got := SanitizeText("hi `rm -rf` <world>; 100%", 0)
	if got != "hi rm -rf <world> 100" {
		t.Fatalf("unexpected sanitized text %q", got)
	}

	if SanitizeText("", 100) != "" {
		t.Fatal("empty input stays empty")
	}

	long := strings.Repeat("a", 50)
	if got := SanitizeText(long, 10); got != strings.Repeat("a", 10) {
		t.Fatalf("expected truncation to 10, got %d chars", len(got))
	}
}
