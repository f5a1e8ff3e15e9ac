// Package command holds the slash commands and the registry that
// dispatches interactions to them. Dependencies arrive through Deps;
// nothing here is a package-level singleton.
package command

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"maplebgm-bot/internal/maple"
	"maplebgm-bot/internal/music/session"
	"maplebgm-bot/internal/storage"
	"maplebgm-bot/internal/userdata"
)

type Command interface {
	Name() string
	Description() string
	Group() string
	Run(ctx *SlashContext) error
}

// SlashProvider exposes the Discord application-command definition.
type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// VoiceLocator resolves the voice channel a user sits in, verifying
// the bot may connect and speak there.
type VoiceLocator interface {
	FindUserVoiceChannel(guildID, userID string) (string, error)
}

// Deps is everything a command may need, wired once at startup.
type Deps struct {
	Player  *session.Session
	Maple   *maple.Client
	Users   *userdata.Store
	Storage *storage.Storage
	Voice   VoiceLocator
}

// SlashContext is what the runtime hands a command on invocation.
type SlashContext struct {
	Ctx     context.Context
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Deps    *Deps
}

// Subcommand returns the invoked subcommand name and its options, or
// "" when the interaction carries no subcommand.
func (c *SlashContext) Subcommand() (string, []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := c.Event.ApplicationCommandData().Options
	if len(opts) == 0 || opts[0].Type != discordgo.ApplicationCommandOptionSubCommand {
		return "", nil
	}
	return opts[0].Name, opts[0].Options
}

// Option returns the named option from a subcommand's option list.
func Option(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, o := range opts {
		if o.Name == name {
			return o
		}
	}
	return nil
}
