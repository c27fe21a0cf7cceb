package audit

import (
	"context"
	"time"

	"promptguard/internal/storage"

	"go.uber.org/zap"
)

// Level classifies a security event. CRIT covers enforcement actions
// (bans, ban failures), WARN covers suspicion short of a ban.
type Level string

const (
	LevelInfo Level = "INFO"
	LevelWarn Level = "WARN"
	LevelCrit Level = "CRIT"
)

type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	notify func(context.Context, storage.SecurityEvent)
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

func (l *Logger) SetNotifier(notify func(context.Context, storage.SecurityEvent)) {
	l.notify = notify
}

// Log persists the event, forwards it to the notifier, and mirrors it
// to the process log at a matching severity.
func (l *Logger) Log(ctx context.Context, level Level, guildID, userID, event, details string) {
	entry := storage.SecurityEvent{
		GuildID:   guildID,
		UserID:    userID,
		Level:     string(level),
		Event:     event,
		Details:   details,
		CreatedAt: time.Now(),
	}
	if l.store != nil {
		if err := l.store.AddSecurityEvent(ctx, entry); err != nil {
			l.logger.Warn("security event not persisted", zap.String("event", event), zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}

	write := l.logger.Info
	switch level {
	case LevelWarn:
		write = l.logger.Warn
	case LevelCrit:
		write = l.logger.Error
	}
	write("security_event",
		zap.String("level", string(level)),
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("event", event),
		zap.String("details", details))
}
