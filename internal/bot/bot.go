package bot

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"promptguard/internal/analytics"
	"promptguard/internal/config"
	"promptguard/internal/enforce"
	"promptguard/internal/metrics"
	"promptguard/internal/modules/audit"
	"promptguard/internal/storage"
	"promptguard/internal/tracker"
	"promptguard/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const discordEpochMs = 1420070400000

const maxImageBytes = 25 << 20

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	tracker   *tracker.Tracker
	engine    *enforce.Engine
	audit     *audit.Logger
	analytics *analytics.Service
	metrics   *metrics.Metrics
	session   *discordgo.Session
	limiter   *utils.RateLimiter
	seen      *utils.SeenCache
	http      *http.Client
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, tr *tracker.Tracker, auditLogger *audit.Logger, analyticsSvc *analytics.Service, m *metrics.Metrics) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildBans |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		tracker:   tr,
		audit:     auditLogger,
		analytics: analyticsSvc,
		metrics:   m,
		session:   session,
		limiter:   utils.NewRateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second),
		seen:      utils.NewSeenCache(cfg.Security.MaxTrackedAttachments),
		http:      &http.Client{Timeout: time.Duration(cfg.Security.FetchTimeoutSeconds) * time.Second},
	}

	// the bot is both the moderator and the alert sink for the engine
	b.engine = enforce.NewEngine(cfg.Security, tr, b, b, store, auditLogger, m, logger)

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onGuildCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	return b.registerCommands()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready",
		zap.String("user", session.State.User.Username),
		zap.Int("guilds", len(event.Guilds)))
}

// DeleteMessage implements enforce.Moderator.
func (b *Bot) DeleteMessage(channelID, messageID string) error {
	return b.session.ChannelMessageDelete(channelID, messageID)
}

// PurgeRecent implements enforce.Moderator: best-effort removal of the
// user's messages across the guild's text channels inside the window.
// Inaccessible channels are skipped.
func (b *Bot) PurgeRecent(guildID, userID string, window time.Duration) {
	channels, err := b.session.GuildChannels(guildID)
	if err != nil {
		b.logger.Warn("purge: listing channels failed", zap.String("guild_id", guildID), zap.Error(err))
		return
	}

	afterID := snowflakeForTime(time.Now().Add(-window))
	for _, channel := range channels {
		if channel == nil {
			continue
		}
		if channel.Type != discordgo.ChannelTypeGuildText && channel.Type != discordgo.ChannelTypeGuildNews {
			continue
		}
		messages, err := b.session.ChannelMessages(channel.ID, 100, "", afterID, "")
		if err != nil {
			continue
		}
		for _, message := range messages {
			if message == nil || message.Author == nil || message.Author.ID != userID {
				continue
			}
			if err := b.session.ChannelMessageDelete(channel.ID, message.ID); err == nil {
				b.logger.Info("purged message",
					zap.String("user_id", userID),
					zap.String("channel_id", channel.ID))
			}
		}
	}
}

// Ban implements enforce.Moderator. Discord's ban endpoint counts the
// purge in whole days, so any window up to a day rounds to one day;
// PurgeRecent has already handled the precise window.
func (b *Bot) Ban(guildID, userID, reason string, purgeWindow time.Duration) error {
	days := int(purgeWindow / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	if days > 7 {
		days = 7
	}
	return b.session.GuildBanCreateWithReason(guildID, userID, reason, days)
}

func (b *Bot) guildSettings(ctx context.Context, guildID string) storage.GuildSettings {
	defaults := storage.GuildSettings{
		GuildID:         guildID,
		SecurityEnabled: true,
		RetentionDays:   b.cfg.RetentionDays,
	}

	settings, err := b.store.GetGuildSettings(ctx, guildID, defaults)
	if err != nil {
		b.logger.Warn("guild settings fallback", zap.Error(err))
		return defaults
	}
	return settings
}

func (b *Bot) fetchImage(url string) ([]byte, bool) {
	resp, err := b.http.Get(url)
	if err != nil {
		b.logger.Warn("image fetch failed", zap.String("url", url), zap.Error(err))
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b.logger.Warn("image fetch failed", zap.String("url", url), zap.Int("status", resp.StatusCode))
		return nil, false
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}

func snowflakeForTime(t time.Time) string {
	ms := t.UnixMilli() - discordEpochMs
	if ms < 0 {
		ms = 0
	}
	return strconv.FormatInt(ms<<22, 10)
}
