package bot

import (
	"context"
	"fmt"
	"strings"

	"promptguard/internal/enforce"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const maxAlertDetails = 10

// Send implements enforce.AlertSink: render the alert embed and fan it
// out to every configured admin channel for the guild.
func (b *Bot) Send(ctx context.Context, alert enforce.Alert) {
	channels := b.alertChannels(ctx, alert.GuildID)
	if len(channels) == 0 {
		b.logger.Warn("no admin channels configured for alert",
			zap.String("guild_id", alert.GuildID),
			zap.String("severity", alert.Severity))
		return
	}

	embed := b.alertEmbed(alert)
	for _, channelID := range channels {
		if _, err := b.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
			b.metrics.AlertFailed()
			b.logger.Warn("alert delivery failed",
				zap.String("channel_id", channelID), zap.Error(err))
		}
	}
}

func (b *Bot) alertChannels(ctx context.Context, guildID string) []string {
	var channels []string
	seen := map[string]bool{}

	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			channels = append(channels, id)
		}
	}

	for _, id := range b.cfg.Security.AdminChannelIDs {
		add(id)
	}

	stored, err := b.store.ListAdminChannels(ctx, guildID)
	if err != nil {
		b.logger.Warn("admin channel lookup failed", zap.Error(err))
	}
	for _, id := range stored {
		add(id)
	}

	return channels
}

func (b *Bot) alertEmbed(alert enforce.Alert) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "🚨 Security " + alert.Severity,
		Description: fmt.Sprintf("**User:** %s (`%s`)\n**Server:** %s\n**Reason:** %s",
			alert.AuthorMention, alert.AuthorID, alert.GuildName, alert.Reason),
		Color: b.severityColor(alert.Severity),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "User: " + alert.AuthorTag,
		},
	}

	if alert.AvatarURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: alert.AvatarURL}
	}

	if len(alert.Details) > 0 {
		lines := make([]string, 0, maxAlertDetails)
		for _, detail := range alert.Details {
			if len(lines) == maxAlertDetails {
				break
			}
			lines = append(lines, "• "+detail)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Details",
			Value: strings.Join(lines, "\n"),
		})
	}

	if alert.PriorIncidents > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Prior incidents",
			Value:  fmt.Sprintf("%d", alert.PriorIncidents),
			Inline: true,
		})
	}

	if alert.Severity == enforce.SeverityCompromised {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "⚠️ Action Required",
			Value: "This account appears compromised. Verify the owner regained control before unbanning.",
		})
	}

	return embed
}

func (b *Bot) severityColor(severity string) int {
	colors := b.cfg.Notifications.EmbedColors
	switch severity {
	case enforce.SeverityBanned, enforce.SeverityBanFailed:
		return colors.Banned
	case enforce.SeverityCompromised:
		return colors.Compromised
	case enforce.SeverityDeleted:
		return colors.Deleted
	case enforce.SeverityAlert:
		return colors.Alert
	default:
		return colors.Deleted
	}
}
