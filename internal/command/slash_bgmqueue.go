package command

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"maplebgm-bot/internal/music/queue"
)

type QueueCommand struct{}

func (c *QueueCommand) Name() string        { return "bgmqueue" }
func (c *QueueCommand) Description() string { return "Manage the BGM playback queue" }
func (c *QueueCommand) Group() string       { return "music" }

func (c *QueueCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Add a map's BGM to the queue",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "map",
						Description: "Map name to search for, or a numeric map ID",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "show",
				Description: "Show the queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a queue entry",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "position",
						Description: "1-based queue position",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "move",
				Description: "Move a queue entry to another position",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "from",
						Description: "1-based position to move",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "to",
						Description: "1-based destination position",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "shuffle",
				Description: "Shuffle the queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "clear",
				Description: "Clear the queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "loop",
				Description: "Show or set the loop mode",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "mode",
						Description: "Loop mode",
						Required:    false,
						Choices: []*discordgo.ApplicationCommandOptionChoice{
							{Name: "none", Value: "none"},
							{Name: "song", Value: "song"},
							{Name: "queue", Value: "queue"},
						},
					},
				},
			},
		},
	}
}

func (c *QueueCommand) Run(ctx *SlashContext) error {
	sub, opts := ctx.Subcommand()
	guildID := ctx.Event.GuildID

	switch sub {
	case "add":
		return c.add(ctx, opts)

	case "show":
		entries := ctx.Deps.Player.Queues().List(guildID)
		title := fmt.Sprintf("📜 Queue · loop %s", ctx.Deps.Player.LoopMode(guildID))
		return RespondEmbed(ctx.Session, ctx.Event, QueueEmbed(title, entries))

	case "skip":
		if !ctx.Deps.Player.Skip(guildID) {
			return RespondEphemeral(ctx.Session, ctx.Event, "Nothing is playing.")
		}
		return Respond(ctx.Session, ctx.Event, "⏭️ Skipped.")

	case "remove":
		pos := int(Option(opts, "position").IntValue())
		removed := ctx.Deps.Player.Queues().RemoveAt(guildID, pos-1)
		if removed == nil {
			return RespondEphemeral(ctx.Session, ctx.Event, fmt.Sprintf("No queue entry at position %d.", pos))
		}
		return Respond(ctx.Session, ctx.Event, fmt.Sprintf("🗑️ Removed **%s**.", removed.Track.Label()))

	case "move":
		from := int(Option(opts, "from").IntValue())
		to := int(Option(opts, "to").IntValue())
		if !ctx.Deps.Player.Queues().Move(guildID, from-1, to-1) {
			return RespondEphemeral(ctx.Session, ctx.Event, "Invalid positions.")
		}
		return Respond(ctx.Session, ctx.Event, fmt.Sprintf("↕️ Moved entry %d to position %d.", from, to))

	case "shuffle":
		if !ctx.Deps.Player.Queues().Shuffle(guildID) {
			return RespondEphemeral(ctx.Session, ctx.Event, "Not enough queued tracks to shuffle.")
		}
		return Respond(ctx.Session, ctx.Event, "🔀 Queue shuffled.")

	case "clear":
		if !ctx.Deps.Player.Queues().Clear(guildID) {
			return RespondEphemeral(ctx.Session, ctx.Event, "The queue is already empty.")
		}
		return Respond(ctx.Session, ctx.Event, "🧹 Queue cleared.")

	case "loop":
		opt := Option(opts, "mode")
		if opt == nil {
			return Respond(ctx.Session, ctx.Event,
				fmt.Sprintf("🔁 Loop mode is **%s**.", ctx.Deps.Player.LoopMode(guildID)))
		}
		mode, ok := queue.ParseLoopMode(opt.StringValue())
		if !ok {
			return RespondEphemeral(ctx.Session, ctx.Event, "Loop mode must be none, song or queue.")
		}
		ctx.Deps.Player.SetLoopMode(guildID, mode)
		return Respond(ctx.Session, ctx.Event, fmt.Sprintf("🔁 Loop mode set to **%s**.", mode))
	}
	return nil
}

func (c *QueueCommand) add(ctx *SlashContext, opts []*discordgo.ApplicationCommandInteractionDataOption) error {
	input := Option(opts, "map").StringValue()

	if err := Defer(ctx.Session, ctx.Event); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	track, errMsg := resolveInputTrack(ctx, input)
	if track == nil {
		return Followup(ctx.Session, ctx.Event, errMsg)
	}
	return playOrQueue(ctx, *track)
}
