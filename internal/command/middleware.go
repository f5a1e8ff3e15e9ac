package command

import (
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"maplebgm-bot/internal/storage"
)

type Middleware func(Command) Command

type wrappedCommand struct {
	Command
	wrap func(*SlashContext) error
}

func (w *wrappedCommand) Run(ctx *SlashContext) error {
	if w.wrap != nil {
		return w.wrap(ctx)
	}
	return w.Command.Run(ctx)
}

func (w *wrappedCommand) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := w.Command.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

func ApplyMiddlewares(cmd Command, mws ...Middleware) Command {
	for _, mw := range mws {
		cmd = mw(cmd)
	}
	return cmd
}

// WithGuildOnly drops interactions that arrive outside a guild.
func WithGuildOnly() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx *SlashContext) error {
				if ctx.Event.GuildID == "" {
					return RespondEphemeral(ctx.Session, ctx.Event, "This command only works in a server.")
				}
				return cmd.Run(ctx)
			},
		}
	}
}

// WithCommandLogger records each invocation in the guild's history.
func WithCommandLogger() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx *SlashContext) error {
				err := cmd.Run(ctx)

				if ctx.Event.Member != nil && ctx.Deps.Storage != nil {
					user := ctx.Event.Member.User
					entry := storage.CommandHistory{
						ChannelID:   ctx.Event.ChannelID,
						ChannelName: channelName(ctx.Session, ctx.Event.ChannelID),
						GuildName:   guildName(ctx.Session, ctx.Event.GuildID),
						UserID:      user.ID,
						Username:    user.Username,
						Command:     cmd.Name(),
						Datetime:    time.Now().UTC(),
					}
					if e := ctx.Deps.Storage.AddCommandHistory(ctx.Event.GuildID, entry); e != nil {
						log.Printf("[WARN] Failed to log command /%s: %v", cmd.Name(), e)
					}
				}

				return err
			},
		}
	}
}

func channelName(s *discordgo.Session, channelID string) string {
	channel, err := s.State.Channel(channelID)
	if err != nil {
		channel, err = s.Channel(channelID)
		if err != nil {
			return ""
		}
	}
	return channel.Name
}

func guildName(s *discordgo.Session, guildID string) string {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		guild, err = s.Guild(guildID)
		if err != nil {
			return ""
		}
	}
	return guild.Name
}
