package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var manageGuild int64 = discordgo.PermissionManageServer

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "security",
			Description:              "Show or toggle security enforcement",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "status, enable, or disable",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "status", Value: "status"},
						{Name: "enable", Value: "enable"},
						{Name: "disable", Value: "disable"},
					},
				},
			},
		},
		{
			Name:                     "trust",
			Description:              "Manage trusted users exempt from enforcement",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "add, remove, or list",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "add", Value: "add"},
						{Name: "remove", Value: "remove"},
						{Name: "list", Value: "list"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "target user",
					Required:    false,
				},
			},
		},
		{
			Name:                     "alertchannel",
			Description:              "Manage admin alert channels",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "add, remove, or list",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "add", Value: "add"},
						{Name: "remove", Value: "remove"},
						{Name: "list", Value: "list"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "channel to receive alerts",
					Required:    false,
				},
			},
		},
		{
			Name:                     "report",
			Description:              "Security event report",
			DefaultMemberPermissions: &manageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "period",
					Description: "day or week",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "day", Value: "day"},
						{Name: "week", Value: "week"},
					},
				},
			},
		},
	}
}

// registerCommands reconciles the registered application commands with
// the desired set: edit in place, create what's missing, delete what's
// stale (including leftovers registered per guild).
func (b *Bot) registerCommands() error {
	commands := commandDefinitions()

	appID := b.session.State.User.ID
	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}

	for _, guild := range b.session.State.Guilds {
		if guild == nil {
			continue
		}
		guildCmds, err := b.session.ApplicationCommands(appID, guild.ID)
		if err != nil {
			continue
		}
		for _, cmd := range guildCmds {
			if _, ok := desired[cmd.Name]; ok {
				continue
			}
			_ = b.session.ApplicationCommandDelete(appID, guild.ID, cmd.ID)
		}
	}
	return nil
}

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}

	userID := ""
	if interaction.Member != nil && interaction.Member.User != nil {
		userID = interaction.Member.User.ID
	} else if interaction.User != nil {
		userID = interaction.User.ID
	}

	if userID != "" && b.limiter.Limited(userID) {
		b.respond(interaction, "You're sending commands too fast. Try again shortly.")
		return
	}

	if interaction.GuildID == "" {
		b.respond(interaction, "This command only works inside a server.")
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()

	switch data.Name {
	case "security":
		b.handleSecurity(ctx, interaction, data)
	case "trust":
		b.handleTrust(ctx, interaction, data)
	case "alertchannel":
		b.handleAlertChannel(ctx, interaction, data)
	case "report":
		b.handleReport(ctx, interaction, data)
	default:
		b.respond(interaction, "Unknown command.")
	}
}

func (b *Bot) handleSecurity(ctx context.Context, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	settings := b.guildSettings(ctx, interaction.GuildID)

	switch stringOption(data, "action") {
	case "enable":
		settings.SecurityEnabled = true
	case "disable":
		settings.SecurityEnabled = false
	default:
		state := "disabled"
		if settings.SecurityEnabled {
			state = "enabled"
		}
		b.respondEmbed(interaction, b.commandEmbed("Security status", fmt.Sprintf(
			"Enforcement is **%s**.\nBan ≥ %d, delete ≥ %d, watchlist ≥ %d.\nEvent retention: %d days.",
			state, b.cfg.Security.BanScore, b.cfg.Security.DeleteScore, b.cfg.Security.WatchScore, settings.RetentionDays)))
		return
	}

	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.logger.Warn("failed to update guild settings", zap.Error(err))
		b.respond(interaction, "Failed to update settings.")
		return
	}
	if settings.SecurityEnabled {
		b.respond(interaction, "Security enforcement enabled.")
	} else {
		b.respond(interaction, "Security enforcement disabled.")
	}
}

func (b *Bot) handleTrust(ctx context.Context, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	action := stringOption(data, "action")

	if action == "list" {
		users, err := b.store.ListTrustedUsers(ctx, interaction.GuildID)
		if err != nil {
			b.respond(interaction, "Failed to list trusted users.")
			return
		}
		if len(users) == 0 {
			b.respond(interaction, "No trusted users configured.")
			return
		}
		lines := make([]string, 0, len(users))
		for _, id := range users {
			lines = append(lines, fmt.Sprintf("• <@%s> (`%s`)", id, id))
		}
		b.respondEmbed(interaction, b.commandEmbed("Trusted users", strings.Join(lines, "\n")))
		return
	}

	user := userOption(b.session, data)
	if user == nil {
		b.respond(interaction, "A user is required for this action.")
		return
	}

	var err error
	if action == "add" {
		err = b.store.AddTrustedUser(ctx, interaction.GuildID, user.ID)
	} else {
		err = b.store.RemoveTrustedUser(ctx, interaction.GuildID, user.ID)
	}
	if err != nil {
		b.logger.Warn("trust update failed", zap.Error(err))
		b.respond(interaction, "Failed to update the trusted list.")
		return
	}
	if action == "add" {
		b.respond(interaction, fmt.Sprintf("%s is now exempt from enforcement.", user.Mention()))
	} else {
		b.respond(interaction, fmt.Sprintf("%s is no longer exempt.", user.Mention()))
	}
}

func (b *Bot) handleAlertChannel(ctx context.Context, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	action := stringOption(data, "action")

	if action == "list" {
		channels, err := b.store.ListAdminChannels(ctx, interaction.GuildID)
		if err != nil {
			b.respond(interaction, "Failed to list alert channels.")
			return
		}
		if len(channels) == 0 && len(b.cfg.Security.AdminChannelIDs) == 0 {
			b.respond(interaction, "No alert channels configured.")
			return
		}
		lines := make([]string, 0, len(channels)+len(b.cfg.Security.AdminChannelIDs))
		for _, id := range b.cfg.Security.AdminChannelIDs {
			lines = append(lines, fmt.Sprintf("• <#%s> (from config)", id))
		}
		for _, id := range channels {
			lines = append(lines, fmt.Sprintf("• <#%s>", id))
		}
		b.respondEmbed(interaction, b.commandEmbed("Alert channels", strings.Join(lines, "\n")))
		return
	}

	channel := channelOption(data)
	if channel == "" {
		b.respond(interaction, "A channel is required for this action.")
		return
	}

	var err error
	if action == "add" {
		err = b.store.AddAdminChannel(ctx, interaction.GuildID, channel)
	} else {
		err = b.store.RemoveAdminChannel(ctx, interaction.GuildID, channel)
	}
	if err != nil {
		b.logger.Warn("alert channel update failed", zap.Error(err))
		b.respond(interaction, "Failed to update alert channels.")
		return
	}
	if action == "add" {
		b.respond(interaction, fmt.Sprintf("Alerts will be sent to <#%s>.", channel))
	} else {
		b.respond(interaction, fmt.Sprintf("<#%s> removed from alert channels.", channel))
	}
}

func (b *Bot) handleReport(ctx context.Context, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	period := stringOption(data, "period")
	since := time.Now().Add(-24 * time.Hour)
	label := "24 hours"
	if period == "week" {
		since = time.Now().Add(-7 * 24 * time.Hour)
		label = "7 days"
	}

	report, err := b.analytics.Report(ctx, interaction.GuildID, since)
	if err != nil {
		b.logger.Warn("report generation failed", zap.Error(err))
		b.respond(interaction, "Failed to generate the report.")
		return
	}

	description := fmt.Sprintf("**Events in the last %s:** %d\n\n"+
		"ℹ️ Info: %d\n⚠️ Warnings: %d\n🚨 Critical: %d",
		label, report.Total,
		report.ByLevel["INFO"], report.ByLevel["WARN"], report.ByLevel["CRIT"])

	embed := b.commandEmbed("Security report", description)
	if len(report.ByEvent) > 0 {
		lines := make([]string, 0, len(report.ByEvent))
		for _, entry := range report.TopEvents(5) {
			lines = append(lines, fmt.Sprintf("• %s: %d", entry.Event, entry.Count))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Top events",
			Value: strings.Join(lines, "\n"),
		})
	}
	b.respondEmbed(interaction, embed)
}

func (b *Bot) respond(interaction *discordgo.InteractionCreate, content string) {
	err := b.session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Warn("interaction respond failed", zap.Error(err))
	}
}

func (b *Bot) respondEmbed(interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed) {
	err := b.session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.Warn("interaction respond failed", zap.Error(err))
	}
}

func (b *Bot) commandEmbed(title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       b.cfg.Notifications.EmbedColors.Alert,
	}
}

func stringOption(data discordgo.ApplicationCommandInteractionData, name string) string {
	for _, opt := range data.Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}

func userOption(session *discordgo.Session, data discordgo.ApplicationCommandInteractionData) *discordgo.User {
	for _, opt := range data.Options {
		if opt.Name == "user" && opt.Type == discordgo.ApplicationCommandOptionUser {
			return opt.UserValue(session)
		}
	}
	return nil
}

func channelOption(data discordgo.ApplicationCommandInteractionData) string {
	for _, opt := range data.Options {
		if opt.Name == "channel" && opt.Type == discordgo.ApplicationCommandOptionChannel {
			if channel := opt.ChannelValue(nil); channel != nil {
				return channel.ID
			}
		}
	}
	return ""
}
