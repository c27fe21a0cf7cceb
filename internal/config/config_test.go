package config

import "testing"

func TestEnvListOverride(t *testing.T) {
	t.Setenv("TRUSTED_USER_IDS", "1, 2,3")
	ids := envList("TRUSTED_USER_IDS", nil)
	if len(ids) != 3 || ids[0] != "1" || ids[1] != "2" || ids[2] != "3" {
		t.Fatalf("unexpected ids: %v", ids)
	}

	t.Setenv("TRUSTED_USER_IDS", "[]")
	if ids := envList("TRUSTED_USER_IDS", []string{"9"}); ids != nil {
		t.Fatalf("expected cleared list, got %v", ids)
	}
}

func TestSecurityDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Security.CrossPostWindowSeconds != 300 {
		t.Fatalf("expected 300, got %d", cfg.Security.CrossPostWindowSeconds)
	}
	if cfg.Security.MaxTrackedPerUser != 50 {
		t.Fatalf("expected 50, got %d", cfg.Security.MaxTrackedPerUser)
	}
	if cfg.Security.BanScore != 100 || cfg.Security.DeleteScore != 75 || cfg.Security.WatchScore != 50 {
		t.Fatalf("unexpected thresholds: %+v", cfg.Security)
	}
}
