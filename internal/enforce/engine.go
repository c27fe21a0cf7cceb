package enforce

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"promptguard/internal/config"
	"promptguard/internal/metrics"
	"promptguard/internal/modules/audit"
	"promptguard/internal/modules/gibberish"
	"promptguard/internal/modules/imagesafety"
	"promptguard/internal/scorer"
	"promptguard/internal/tracker"
)

type Action int

const (
	ActionAllow Action = iota
	ActionWatchlist
	ActionDeleteAlert
	ActionBan
)

func (a Action) String() string {
	switch a {
	case ActionWatchlist:
		return "watchlist"
	case ActionDeleteAlert:
		return "delete_alert"
	case ActionBan:
		return "ban"
	default:
		return "allow"
	}
}

const (
	SeverityBanned      = "BANNED"
	SeverityCompromised = "COMPROMISED"
	SeverityDeleted     = "DELETED"
	SeverityAlert       = "ALERT"
	SeverityBanFailed   = "FAILED - Missing permissions"
)

type Alert struct {
	Severity       string
	GuildID        string
	GuildName      string
	AuthorID       string
	AuthorMention  string
	AuthorTag      string
	AvatarURL      string
	Reason         string
	Details        []string
	PriorIncidents int
}

// Image is one gathered image candidate. Fetched=false means the body
// could not be downloaded; the sniffer never judges what it cannot see.
type Image struct {
	Source   string
	Filename string
	Data     []byte
	Fetched  bool
}

type Message struct {
	GuildID       string
	GuildName     string
	ChannelID     string
	ID            string
	AuthorID      string
	AuthorMention string
	AuthorTag     string
	DisplayName   string
	AvatarURL     string
	Content       string
	Author        scorer.Membership
	HasAvatar     bool
	Attachments   []tracker.Attachment
	Images        []Image
}

type Moderator interface {
	DeleteMessage(channelID, messageID string) error
	PurgeRecent(guildID, userID string, window time.Duration)
	Ban(guildID, userID, reason string, purgeWindow time.Duration) error
}

type AlertSink interface {
	Send(ctx context.Context, alert Alert)
}

type InfractionStore interface {
	IncrementInfraction(ctx context.Context, guildID, userID, lastAction string) (int, error)
}

type Decision struct {
	Action  Action
	Reason  string
	Details []string
	Score   int
}

type Engine struct {
	cfg         config.SecurityConfig
	tracker     *tracker.Tracker
	moderator   Moderator
	sink        AlertSink
	infractions InfractionStore
	audit       *audit.Logger
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewEngine(cfg config.SecurityConfig, tr *tracker.Tracker, mod Moderator, sink AlertSink, infractions InfractionStore, auditLogger *audit.Logger, m *metrics.Metrics, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:         cfg,
		tracker:     tr,
		moderator:   mod,
		sink:        sink,
		infractions: infractions,
		audit:       auditLogger,
		metrics:     m,
		logger:      logger,
	}
}

// Process runs the full security pipeline for one message. Bypass for
// the server owner and trusted users happens before this is called.
func (e *Engine) Process(ctx context.Context, msg Message) Decision {
	fingerprint := tracker.Fingerprint(msg.Content, msg.Attachments)
	e.tracker.Record(msg.AuthorID, fingerprint, msg.ChannelID, msg.ID)

	member, isMember := msg.Author.(scorer.GuildMember)
	hasRoles := isMember && len(member.RoleIDs) > 0

	if decision, banned := e.malwareGate(ctx, msg); banned {
		return decision
	}

	imageCount := len(msg.Images)
	if imageCount >= e.cfg.ScreenshotImageCount {
		channels := e.tracker.CrossPostChannels(msg.AuthorID, fingerprint)
		if channels >= e.cfg.ScreenshotChannelCount {
			reason := fmt.Sprintf("Screenshot spam (%d images, %d channels)", imageCount, channels)
			details := []string{
				fmt.Sprintf("%d images", imageCount),
				fmt.Sprintf("%d channels", channels),
				"Cross-posting",
			}
			return e.ban(ctx, msg, reason, details, 0)
		}

		if !hasRoles && gibberish.Classify(msg.Content, false, imageCount > 0) {
			reason := fmt.Sprintf("Screenshot spam (%d images + gibberish)", imageCount)
			details := []string{
				fmt.Sprintf("%d images", imageCount),
				"No roles",
				"Gibberish text",
			}
			return e.ban(ctx, msg, reason, details, 0)
		}
	}

	score, reasons := scorer.Score(scorer.Input{
		DisplayName:   msg.DisplayName,
		Content:       msg.Content,
		HasAvatar:     msg.HasAvatar,
		Author:        msg.Author,
		CatcherRoleID: e.cfg.CatcherRoleID,
	})

	switch {
	case score >= e.cfg.BanScore:
		return e.ban(ctx, msg, fmt.Sprintf("Wallet scam (Score: %d)", score), reasons, score)

	case score >= e.cfg.DeleteScore:
		return e.deleteAndAlert(ctx, msg, score, reasons)

	case score >= e.cfg.WatchScore:
		prior := e.recordInfraction(ctx, msg, ActionWatchlist)
		e.audit.Log(ctx, audit.LevelWarn, msg.GuildID, msg.AuthorID, "watchlist",
			fmt.Sprintf("Score: %d - %s (prior incidents: %d)", score, strings.Join(firstN(reasons, 3), ", "), prior))
		e.metrics.Decision(ActionWatchlist.String())
		return Decision{Action: ActionWatchlist, Reason: fmt.Sprintf("Watchlist (Score: %d)", score), Details: reasons, Score: score}
	}

	e.metrics.Decision(ActionAllow.String())
	return Decision{Action: ActionAllow, Score: score}
}

// malwareGate sniffs every fetched image. Any unsafe verdict is an
// instant ban; unfetched images are skipped rather than guessed at.
func (e *Engine) malwareGate(ctx context.Context, msg Message) (Decision, bool) {
	for _, img := range msg.Images {
		if !img.Fetched {
			e.metrics.ImageSniffed(imagesafety.Undetermined.String())
			continue
		}
		result := imagesafety.Verify(img.Data, img.Filename)
		e.metrics.ImageSniffed(result.Verdict.String())
		if result.Verdict == imagesafety.Unsafe {
			reason := fmt.Sprintf("%s from %s", result.Reason, img.Source)
			return e.ban(ctx, msg, reason, nil, 0), true
		}
		if !imagesafety.DeepVerify(img.Data) {
			e.logger.Warn("image failed deep verification",
				zap.String("guild_id", msg.GuildID),
				zap.String("user_id", msg.AuthorID),
				zap.String("filename", img.Filename),
				zap.String("format", result.Format))
		}
	}
	return Decision{}, false
}

func (e *Engine) ban(ctx context.Context, msg Message, reason string, details []string, score int) Decision {
	e.logger.Error("instant ban",
		zap.String("guild_id", msg.GuildID),
		zap.String("user_id", msg.AuthorID),
		zap.String("reason", reason))

	if err := e.moderator.DeleteMessage(msg.ChannelID, msg.ID); err != nil {
		e.logger.Warn("failed to delete message before ban",
			zap.String("message_id", msg.ID), zap.Error(err))
	}

	purgeWindow := time.Duration(e.cfg.PurgeWindowMinutes) * time.Minute
	e.moderator.PurgeRecent(msg.GuildID, msg.AuthorID, purgeWindow)

	banReason := "Auto-ban: " + reason
	if len(details) > 0 {
		banReason += " | " + strings.Join(firstN(details, 3), ", ")
	}

	prior := e.recordInfraction(ctx, msg, ActionBan)

	if err := e.moderator.Ban(msg.GuildID, msg.AuthorID, banReason, purgeWindow); err != nil {
		e.audit.Log(ctx, audit.LevelCrit, msg.GuildID, msg.AuthorID, "ban_failed", reason)
		e.sink.Send(ctx, e.alert(msg, SeverityBanFailed, reason, details, prior))
	} else {
		e.audit.Log(ctx, audit.LevelCrit, msg.GuildID, msg.AuthorID, "ban", reason)
		e.sink.Send(ctx, e.alert(msg, SeverityBanned, reason, details, prior))
	}

	e.metrics.Decision(ActionBan.String())
	return Decision{Action: ActionBan, Reason: reason, Details: details, Score: score}
}

func (e *Engine) deleteAndAlert(ctx context.Context, msg Message, score int, reasons []string) Decision {
	reason := fmt.Sprintf("Suspicious (Score: %d)", score)

	if err := e.moderator.DeleteMessage(msg.ChannelID, msg.ID); err != nil {
		// can't delete, don't claim we did
		e.logger.Warn("missing permissions to delete suspicious message",
			zap.String("message_id", msg.ID), zap.Error(err))
		e.metrics.Decision(ActionDeleteAlert.String())
		return Decision{Action: ActionDeleteAlert, Reason: reason, Details: reasons, Score: score}
	}

	prior := e.recordInfraction(ctx, msg, ActionDeleteAlert)
	e.audit.Log(ctx, audit.LevelWarn, msg.GuildID, msg.AuthorID, "delete_alert", reason)
	e.sink.Send(ctx, e.alert(msg, SeverityDeleted, reason, reasons, prior))

	e.metrics.Decision(ActionDeleteAlert.String())
	return Decision{Action: ActionDeleteAlert, Reason: reason, Details: reasons, Score: score}
}

func (e *Engine) recordInfraction(ctx context.Context, msg Message, action Action) int {
	if e.infractions == nil {
		return 0
	}
	prior, err := e.infractions.IncrementInfraction(ctx, msg.GuildID, msg.AuthorID, action.String())
	if err != nil {
		e.logger.Warn("failed to record infraction",
			zap.String("user_id", msg.AuthorID), zap.Error(err))
		return 0
	}
	return prior
}

func (e *Engine) alert(msg Message, severity, reason string, details []string, prior int) Alert {
	return Alert{
		Severity:       severity,
		GuildID:        msg.GuildID,
		GuildName:      msg.GuildName,
		AuthorID:       msg.AuthorID,
		AuthorMention:  msg.AuthorMention,
		AuthorTag:      msg.AuthorTag,
		AvatarURL:      msg.AvatarURL,
		Reason:         reason,
		Details:        details,
		PriorIncidents: prior,
	}
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
