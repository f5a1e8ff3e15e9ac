package command

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

type PlaylistCommand struct{}

func (c *PlaylistCommand) Name() string        { return "playlist" }
func (c *PlaylistCommand) Description() string { return "Manage your BGM playlists" }
func (c *PlaylistCommand) Group() string       { return "collections" }

func (c *PlaylistCommand) SlashDefinition() *discordgo.ApplicationCommand {
	nameOpt := func(desc string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "name",
			Description: desc,
			Required:    true,
		}
	}

	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "create",
				Description: "Create a playlist",
				Options:     []*discordgo.ApplicationCommandOption{nameOpt("Playlist name")},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "delete",
				Description: "Delete a playlist",
				Options:     []*discordgo.ApplicationCommandOption{nameOpt("Playlist name")},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List your playlists",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "show",
				Description: "Show a playlist's tracks",
				Options:     []*discordgo.ApplicationCommandOption{nameOpt("Playlist name")},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Add a map to a playlist (defaults to the current track)",
				Options: []*discordgo.ApplicationCommandOption{
					nameOpt("Playlist name"),
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
				Description: "Remove a track from a playlist",
				Options: []*discordgo.ApplicationCommandOption{
					nameOpt("Playlist name"),
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "position",
						Description: "1-based track position",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Play a playlist",
				Options:     []*discordgo.ApplicationCommandOption{nameOpt("Playlist name")},
			},
		},
	}
}

func (c *PlaylistCommand) Run(ctx *SlashContext) error {
	sub, opts := ctx.Subcommand()
	userID := ctx.Event.Member.User.ID

	switch sub {
	case "create":
		name := Option(opts, "name").StringValue()
		if !ctx.Deps.Users.CreatePlaylist(userID, name) {
			return RespondEphemeral(ctx.Session, ctx.Event, fmt.Sprintf("You already have a playlist named %q.", name))
		}
		return Respond(ctx.Session, ctx.Event, fmt.Sprintf("📝 Created playlist **%s**.", name))

	case "delete":
		name := Option(opts, "name").StringValue()
		if !ctx.Deps.Users.DeletePlaylist(userID, name) {
			return RespondEphemeral(ctx.Session, ctx.Event, fmt.Sprintf("No playlist named %q.", name))
		}
		return Respond(ctx.Session, ctx.Event, fmt.Sprintf("🗑️ Deleted playlist **%s**.", name))

	case "list":
		playlists := ctx.Deps.Users.Playlists(userID)
		if len(playlists) == 0 {
			return RespondEphemeral(ctx.Session, ctx.Event, "You have no playlists yet.")
		}
		var desc string
		for _, p := range playlists {
			desc += fmt.Sprintf("**%s** · %d track(s)\n", p.Name, len(p.Songs))
		}
		return Respond(ctx.Session, ctx.Event, desc)

	case "show":
		name := Option(opts, "name").StringValue()
		playlist := ctx.Deps.Users.Playlist(userID, name)
		if playlist == nil {
			return RespondEphemeral(ctx.Session, ctx.Event, fmt.Sprintf("No playlist named %q.", name))
		}
		return RespondEmbed(ctx.Session, ctx.Event,
			TrackListEmbed("📝 "+playlist.Name, playlist.Songs))

	case "add":
		return c.add(ctx, opts, userID)

	case "remove":
		name := Option(opts, "name").StringValue()
		pos := int(Option(opts, "position").IntValue())
		if !ctx.Deps.Users.RemoveFromPlaylist(userID, name, pos-1) {
			return RespondEphemeral(ctx.Session, ctx.Event, "No such playlist or track position.")
		}
		return Respond(ctx.Session, ctx.Event, fmt.Sprintf("🗑️ Removed track %d from **%s**.", pos, name))

	case "play":
		return c.play(ctx, opts, userID)
	}
	return nil
}

func (c *PlaylistCommand) add(ctx *SlashContext, opts []*discordgo.ApplicationCommandInteractionDataOption, userID string) error {
	name := Option(opts, "name").StringValue()
	opt := Option(opts, "map")

	if opt == nil {
		track := ctx.Deps.Player.NowPlaying(ctx.Event.GuildID)
		if track == nil {
			return RespondEphemeral(ctx.Session, ctx.Event, "Nothing is playing. Name a map to add instead.")
		}
		if !ctx.Deps.Users.AddToPlaylist(userID, name, *track) {
			return RespondEphemeral(ctx.Session, ctx.Event, "No such playlist, or the track is already on it.")
		}
		return Respond(ctx.Session, ctx.Event, fmt.Sprintf("📝 Added **%s** to **%s**.", track.Label(), name))
	}

	if err := Defer(ctx.Session, ctx.Event); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	track, errMsg := resolveInputTrack(ctx, opt.StringValue())
	if track == nil {
		return Followup(ctx.Session, ctx.Event, errMsg)
	}
	if !ctx.Deps.Users.AddToPlaylist(userID, name, *track) {
		return Followup(ctx.Session, ctx.Event, "No such playlist, or the track is already on it.")
	}
	return Followup(ctx.Session, ctx.Event, fmt.Sprintf("📝 Added **%s** to **%s**.", track.Label(), name))
}

func (c *PlaylistCommand) play(ctx *SlashContext, opts []*discordgo.ApplicationCommandInteractionDataOption, userID string) error {
	name := Option(opts, "name").StringValue()
	playlist := ctx.Deps.Users.Playlist(userID, name)
	if playlist == nil {
		return RespondEphemeral(ctx.Session, ctx.Event, fmt.Sprintf("No playlist named %q.", name))
	}
	if len(playlist.Songs) == 0 {
		return RespondEphemeral(ctx.Session, ctx.Event, fmt.Sprintf("Playlist **%s** is empty.", playlist.Name))
	}

	if err := Defer(ctx.Session, ctx.Event); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	channelID, err := ctx.Deps.Voice.FindUserVoiceChannel(ctx.Event.GuildID, userID)
	if err != nil {
		return Followup(ctx.Session, ctx.Event, fmt.Sprintf("🎵 %s", err))
	}

	for _, track := range playlist.Songs {
		if _, _, err := ctx.Deps.Player.EnqueueOrPlay(ctx.Ctx, ctx.Event.GuildID, channelID, track, userID); err != nil {
			return Followup(ctx.Session, ctx.Event, fmt.Sprintf("🎵 %s", err))
		}
	}
	return Followup(ctx.Session, ctx.Event,
		fmt.Sprintf("📝 Playing **%s** (%d tracks).", playlist.Name, len(playlist.Songs)))
}
