package command

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

type FavoritesCommand struct{}

func (c *FavoritesCommand) Name() string        { return "favorites" }
func (c *FavoritesCommand) Description() string { return "Manage your favorite BGMs" }
func (c *FavoritesCommand) Group() string       { return "collections" }

func (c *FavoritesCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Add a map to your favorites (defaults to the current track)",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "map",
						Description: "Map name to search for, or a numeric map ID",
						Required:    false,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a map from your favorites",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "id",
						Description: "Map ID",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List your favorites",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Play all your favorites",
			},
		},
	}
}

func (c *FavoritesCommand) Run(ctx *SlashContext) error {
	sub, opts := ctx.Subcommand()
	userID := ctx.Event.Member.User.ID

	switch sub {
	case "add":
		return c.add(ctx, opts, userID)

	case "remove":
		mapID := Option(opts, "id").IntValue()
		if !ctx.Deps.Users.RemoveFavorite(userID, mapID) {
			return RespondEphemeral(ctx.Session, ctx.Event, fmt.Sprintf("Map %d is not in your favorites.", mapID))
		}
		return Respond(ctx.Session, ctx.Event, fmt.Sprintf("💔 Removed map %d from your favorites.", mapID))

	case "list":
		return RespondEmbed(ctx.Session, ctx.Event,
			TrackListEmbed("⭐ Your favorites", ctx.Deps.Users.Favorites(userID)))

	case "play":
		return c.play(ctx, userID)
	}
	return nil
}

func (c *FavoritesCommand) add(ctx *SlashContext, opts []*discordgo.ApplicationCommandInteractionDataOption, userID string) error {
	opt := Option(opts, "map")

	// Without an argument, favorite what is playing right now.
	if opt == nil {
		track := ctx.Deps.Player.NowPlaying(ctx.Event.GuildID)
		if track == nil {
			return RespondEphemeral(ctx.Session, ctx.Event, "Nothing is playing. Name a map to add instead.")
		}
		if !ctx.Deps.Users.AddFavorite(userID, *track) {
			return RespondEphemeral(ctx.Session, ctx.Event, fmt.Sprintf("**%s** is already in your favorites.", track.Label()))
		}
		return Respond(ctx.Session, ctx.Event, fmt.Sprintf("⭐ Added **%s** to your favorites.", track.Label()))
	}

	if err := Defer(ctx.Session, ctx.Event); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	track, errMsg := resolveInputTrack(ctx, opt.StringValue())
	if track == nil {
		return Followup(ctx.Session, ctx.Event, errMsg)
	}
	if !ctx.Deps.Users.AddFavorite(userID, *track) {
		return Followup(ctx.Session, ctx.Event, fmt.Sprintf("**%s** is already in your favorites.", track.Label()))
	}
	return Followup(ctx.Session, ctx.Event, fmt.Sprintf("⭐ Added **%s** to your favorites.", track.Label()))
}

func (c *FavoritesCommand) play(ctx *SlashContext, userID string) error {
	favorites := ctx.Deps.Users.Favorites(userID)
	if len(favorites) == 0 {
		return RespondEphemeral(ctx.Session, ctx.Event, "You have no favorites yet.")
	}

	if err := Defer(ctx.Session, ctx.Event); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	channelID, err := ctx.Deps.Voice.FindUserVoiceChannel(ctx.Event.GuildID, userID)
	if err != nil {
		return Followup(ctx.Session, ctx.Event, fmt.Sprintf("🎵 %s", err))
	}

	for _, track := range favorites {
		if _, _, err := ctx.Deps.Player.EnqueueOrPlay(ctx.Ctx, ctx.Event.GuildID, channelID, track, userID); err != nil {
			return Followup(ctx.Session, ctx.Event, fmt.Sprintf("🎵 %s", err))
		}
	}
	return Followup(ctx.Session, ctx.Event,
		fmt.Sprintf("⭐ Playing your %d favorite track(s).", len(favorites)))
}
