package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken        string          `yaml:"discord_token"`
	DatabasePath        string          `yaml:"database_path"`
	LogLevel            string          `yaml:"log_level"`
	RetentionDays       int             `yaml:"retention_days"`
	AllowedGuildIDs     []string        `yaml:"allowed_guild_ids"`
	MonitoredChannelIDs []string        `yaml:"monitored_channel_ids"`
	DMAllowedUserIDs    []string        `yaml:"dm_allowed_user_ids"`
	DMResponse          string          `yaml:"dm_response"`
	Health              HealthConfig    `yaml:"health"`
	Security            SecurityConfig  `yaml:"security"`
	RateLimit           RateLimitConfig `yaml:"rate_limit"`
	Notifications       NotifyConfig    `yaml:"notifications"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type SecurityConfig struct {
	CrossPostWindowSeconds int      `yaml:"cross_post_window_seconds"`
	MaxTrackedPerUser      int      `yaml:"max_tracked_per_user"`
	MaxTrackedAttachments  int      `yaml:"max_tracked_attachments"`
	BanScore               int      `yaml:"ban_score"`
	DeleteScore            int      `yaml:"delete_score"`
	WatchScore             int      `yaml:"watch_score"`
	ScreenshotImageCount   int      `yaml:"screenshot_image_count"`
	ScreenshotChannelCount int      `yaml:"screenshot_channel_count"`
	PurgeWindowMinutes     int      `yaml:"purge_window_minutes"`
	FetchTimeoutSeconds    int      `yaml:"fetch_timeout_seconds"`
	CatcherRoleID          string   `yaml:"catcher_role_id"`
	TrustedUserIDs         []string `yaml:"trusted_user_ids"`
	AdminChannelIDs        []string `yaml:"admin_channel_ids"`
}

type RateLimitConfig struct {
	MaxRequests   int `yaml:"max_requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

type NotifyConfig struct {
	EmbedColors EmbedColors `yaml:"embed_colors"`
}

type EmbedColors struct {
	Banned      int `yaml:"banned"`
	Compromised int `yaml:"compromised"`
	Deleted     int `yaml:"deleted"`
	Alert       int `yaml:"alert"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:  "/data/promptguard.db",
		LogLevel:      "info",
		RetentionDays: 30,
		DMResponse:    "This bot does not respond to direct messages.",
		Health:        HealthConfig{Enabled: false, Addr: ":8080"},
		Security: SecurityConfig{
			CrossPostWindowSeconds: 300,
			MaxTrackedPerUser:      50,
			MaxTrackedAttachments:  1000,
			BanScore:               100,
			DeleteScore:            75,
			WatchScore:             50,
			ScreenshotImageCount:   4,
			ScreenshotChannelCount: 2,
			PurgeWindowMinutes:     5,
			FetchTimeoutSeconds:    10,
		},
		RateLimit: RateLimitConfig{MaxRequests: 5, WindowSeconds: 30},
		Notifications: NotifyConfig{
			EmbedColors: EmbedColors{
				Banned:      0xED4245,
				Compromised: 0xF1C40F,
				Deleted:     0xE67E22,
				Alert:       0xFEE75C,
			},
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.RetentionDays = envInt("RETENTION_DAYS", cfg.RetentionDays)
	cfg.AllowedGuildIDs = envList("ALLOWED_GUILD_IDS", cfg.AllowedGuildIDs)
	cfg.MonitoredChannelIDs = envList("MONITORED_CHANNEL_IDS", cfg.MonitoredChannelIDs)
	cfg.DMAllowedUserIDs = envList("DM_ALLOWED_USER_IDS", cfg.DMAllowedUserIDs)
	cfg.DMResponse = envString("DM_RESPONSE", cfg.DMResponse)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Security.CrossPostWindowSeconds = envInt("CROSS_POST_WINDOW_SECONDS", cfg.Security.CrossPostWindowSeconds)
	cfg.Security.MaxTrackedPerUser = envInt("MAX_TRACKED_PER_USER", cfg.Security.MaxTrackedPerUser)
	cfg.Security.MaxTrackedAttachments = envInt("MAX_TRACKED_ATTACHMENTS", cfg.Security.MaxTrackedAttachments)
	cfg.Security.BanScore = envInt("BAN_SCORE", cfg.Security.BanScore)
	cfg.Security.DeleteScore = envInt("DELETE_SCORE", cfg.Security.DeleteScore)
	cfg.Security.WatchScore = envInt("WATCH_SCORE", cfg.Security.WatchScore)
	cfg.Security.ScreenshotImageCount = envInt("SCREENSHOT_IMAGE_COUNT", cfg.Security.ScreenshotImageCount)
	cfg.Security.ScreenshotChannelCount = envInt("SCREENSHOT_CHANNEL_COUNT", cfg.Security.ScreenshotChannelCount)
	cfg.Security.PurgeWindowMinutes = envInt("PURGE_WINDOW_MINUTES", cfg.Security.PurgeWindowMinutes)
	cfg.Security.FetchTimeoutSeconds = envInt("FETCH_TIMEOUT_SECONDS", cfg.Security.FetchTimeoutSeconds)
	cfg.Security.CatcherRoleID = envString("CATCHER_ROLE_ID", cfg.Security.CatcherRoleID)
	cfg.Security.TrustedUserIDs = envList("TRUSTED_USER_IDS", cfg.Security.TrustedUserIDs)
	cfg.Security.AdminChannelIDs = envList("ADMIN_CHANNEL_IDS", cfg.Security.AdminChannelIDs)
	cfg.RateLimit.MaxRequests = envInt("RATE_LIMIT_MAX_REQUESTS", cfg.RateLimit.MaxRequests)
	cfg.RateLimit.WindowSeconds = envInt("RATE_LIMIT_WINDOW_SECONDS", cfg.RateLimit.WindowSeconds)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

// envList parses a comma-separated ID list; "[]" or "" clears the list.
func envList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if value == "" || value == "[]" {
		return nil
	}
	parts := strings.Split(value, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}
