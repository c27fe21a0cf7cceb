package bot

import (
	"context"
	"strings"

	"promptguard/internal/enforce"
	"promptguard/internal/modules/audit"
	"promptguard/internal/scorer"
	"promptguard/internal/tracker"
	"promptguard/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	// fail open: a pipeline bug must never take the gateway handler down
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("message handler panic", zap.Any("panic", r))
		}
	}()

	if msg.Author == nil {
		return
	}
	// bots are ignored, but webhooks may proxy real users
	if msg.Author.Bot && msg.WebhookID == "" {
		return
	}
	if session.State.User != nil && msg.Author.ID == session.State.User.ID {
		return
	}

	ctx := context.Background()

	if msg.GuildID == "" {
		b.handleDirectMessage(msg)
		return
	}

	if !b.isMonitoredChannel(msg.ChannelID) {
		return
	}

	settings := b.guildSettings(ctx, msg.GuildID)
	if !settings.SecurityEnabled {
		return
	}

	if b.isBypassed(ctx, msg.GuildID, msg.Author.ID) {
		return
	}

	decision := b.engine.Process(ctx, b.buildMessage(msg))
	if decision.Action != enforce.ActionAllow {
		b.logger.Info("security decision",
			zap.String("guild_id", msg.GuildID),
			zap.String("user_id", msg.Author.ID),
			zap.String("action", decision.Action.String()),
			zap.String("reason", decision.Reason),
			zap.Int("score", decision.Score))
	}
}

func (b *Bot) handleDirectMessage(msg *discordgo.MessageCreate) {
	for _, id := range b.cfg.DMAllowedUserIDs {
		if id == msg.Author.ID {
			return
		}
	}
	if b.cfg.DMResponse != "" {
		// user may have DMs blocked
		_, _ = b.session.ChannelMessageSend(msg.ChannelID, b.cfg.DMResponse)
	}
}

// isMonitoredChannel applies the monitored-channel filter; an empty
// list monitors everything. Threads match on their parent channel.
func (b *Bot) isMonitoredChannel(channelID string) bool {
	if len(b.cfg.MonitoredChannelIDs) == 0 {
		return true
	}

	checkID := channelID
	if channel, err := b.session.State.Channel(channelID); err == nil && channel != nil && channel.ParentID != "" && channel.IsThread() {
		checkID = channel.ParentID
	}

	for _, id := range b.cfg.MonitoredChannelIDs {
		if id == checkID || id == channelID {
			return true
		}
	}
	return false
}

func (b *Bot) isBypassed(ctx context.Context, guildID, userID string) bool {
	if guild, err := b.session.State.Guild(guildID); err == nil && guild != nil && guild.OwnerID == userID {
		return true
	}
	for _, id := range b.cfg.Security.TrustedUserIDs {
		if id == userID {
			return true
		}
	}
	trusted, err := b.store.IsTrustedUser(ctx, guildID, userID)
	if err != nil {
		b.logger.Warn("trusted user lookup failed", zap.Error(err))
		return false
	}
	return trusted
}

func (b *Bot) buildMessage(msg *discordgo.MessageCreate) enforce.Message {
	var membership scorer.Membership = scorer.ProxyAuthor{}
	if msg.WebhookID == "" && msg.Member != nil {
		membership = scorer.GuildMember{RoleIDs: msg.Member.Roles}
	}

	displayName := msg.Author.Username
	if msg.Member != nil && msg.Member.Nick != "" {
		displayName = msg.Member.Nick
	}

	guildName := msg.GuildID
	if guild, err := b.session.State.Guild(msg.GuildID); err == nil && guild != nil {
		guildName = guild.Name
	}

	attachments := make([]tracker.Attachment, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		if att == nil {
			continue
		}
		attachments = append(attachments, tracker.Attachment{
			Filename:    att.Filename,
			Size:        att.Size,
			URL:         att.URL,
			ContentType: att.ContentType,
		})
	}

	return enforce.Message{
		GuildID:       msg.GuildID,
		GuildName:     guildName,
		ChannelID:     msg.ChannelID,
		ID:            msg.ID,
		AuthorID:      msg.Author.ID,
		AuthorMention: msg.Author.Mention(),
		AuthorTag:     msg.Author.String(),
		DisplayName:   displayName,
		AvatarURL:     msg.Author.AvatarURL(""),
		Content:       msg.Content,
		Author:        membership,
		HasAvatar:     msg.Author.Avatar != "",
		Attachments:   attachments,
		Images:        b.gatherImages(msg, attachments),
	}
}

// gatherImages collects image candidates from attachments and embeds.
// Already-seen URLs keep their slot in the count but skip the refetch;
// fetch failures stay in the list unfetched so the sniffer can pass
// over them explicitly.
func (b *Bot) gatherImages(msg *discordgo.MessageCreate, attachments []tracker.Attachment) []enforce.Image {
	var images []enforce.Image

	for _, att := range attachments {
		if !strings.HasPrefix(att.ContentType, "image/") {
			continue
		}
		image := enforce.Image{Source: "attachment", Filename: att.Filename}
		if !b.seenURL(att.URL) {
			image.Data, image.Fetched = b.fetchImage(att.URL)
		}
		images = append(images, image)
	}

	for _, embed := range msg.Embeds {
		if embed == nil || embed.Image == nil || embed.Image.URL == "" {
			continue
		}
		image := enforce.Image{Source: "embed", Filename: utils.ImageFilename(embed.Image.URL)}
		if !b.seenURL(embed.Image.URL) {
			image.Data, image.Fetched = b.fetchImage(embed.Image.URL)
		}
		images = append(images, image)
	}

	return images
}

func (b *Bot) seenURL(rawURL string) bool {
	key := rawURL
	if normalized, _, err := utils.NormalizeURL(rawURL); err == nil {
		key = normalized
	}
	return b.seen.Seen(key)
}

// onGuildCreate enforces the guild whitelist: joining a guild outside
// the allow-list notifies its owner and leaves. Empty list = public.
func (b *Bot) onGuildCreate(session *discordgo.Session, event *discordgo.GuildCreate) {
	if event.Guild == nil || len(b.cfg.AllowedGuildIDs) == 0 {
		return
	}
	for _, id := range b.cfg.AllowedGuildIDs {
		if id == event.Guild.ID {
			return
		}
	}

	ctx := context.Background()
	guildName := utils.SanitizeText(event.Guild.Name, 100)
	b.audit.Log(ctx, audit.LevelWarn, event.Guild.ID, "", "guild_not_whitelisted",
		"leaving guild "+guildName)

	if channel, err := session.UserChannelCreate(event.Guild.OwnerID); err == nil && channel != nil {
		_, _ = session.ChannelMessageSend(channel.ID,
			"This bot is private and not available for your server. Leaving **"+guildName+"**.")
	}
	if err := session.GuildLeave(event.Guild.ID); err != nil {
		b.logger.Warn("failed to leave non-whitelisted guild",
			zap.String("guild_id", event.Guild.ID), zap.Error(err))
	}
}
