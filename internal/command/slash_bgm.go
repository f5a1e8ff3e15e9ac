package command

import (
	"fmt"
	"log"
	"strconv"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"

	"maplebgm-bot/internal/maple"
)

type BGMCommand struct{}

func (c *BGMCommand) Name() string        { return "bgm" }
func (c *BGMCommand) Description() string { return "Play MapleStory background music" }
func (c *BGMCommand) Group() string       { return "music" }

func (c *BGMCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Play the BGM of a map, by name or map ID",
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
				Name:        "search",
				Description: "Search maps by name",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "term",
						Description: "Map or street name",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "find",
				Description: "Show details of one map",
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
				Name:        "stop",
				Description: "Stop playback and clear the queue",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "volume",
				Description: "Show or set the playback volume",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "percent",
						Description: "Volume from 0 to 100",
						Required:    false,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "nowplaying",
				Description: "Show the currently playing track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "recent",
				Description: "Show recently played tracks in this server",
			},
		},
	}
}

func (c *BGMCommand) Run(ctx *SlashContext) error {
	sub, opts := ctx.Subcommand()
	switch sub {
	case "play":
		return c.play(ctx, opts)
	case "search":
		return c.search(ctx, opts)
	case "find":
		return c.find(ctx, opts)
	case "stop":
		return c.stop(ctx)
	case "volume":
		return c.volume(ctx, opts)
	case "nowplaying":
		return c.nowPlaying(ctx)
	case "recent":
		return c.recent(ctx)
	}
	return nil
}

func (c *BGMCommand) play(ctx *SlashContext, opts []*discordgo.ApplicationCommandInteractionDataOption) error {
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

// resolveInputTrack turns user input into a track: a numeric input is
// treated as a map ID, anything else searches by name and takes the
// first hit.
func resolveInputTrack(ctx *SlashContext, input string) (*maple.Track, string) {
	if mapID, err := strconv.ParseInt(input, 10, 64); err == nil {
		track := ctx.Deps.Maple.MapDetails(ctx.Ctx, mapID)
		if track == nil {
			return nil, fmt.Sprintf("🎵 No map found with ID %d.", mapID)
		}
		return track, ""
	}

	results := ctx.Deps.Maple.SearchMaps(ctx.Ctx, input)
	if len(results) == 0 {
		return nil, fmt.Sprintf("🎵 No maps found matching %q.", input)
	}
	return &results[0], ""
}

// playOrQueue starts playback when the guild is idle, otherwise
// enqueues. The interaction must already be deferred.
func playOrQueue(ctx *SlashContext, track maple.Track) error {
	member := ctx.Event.Member
	channelID, err := ctx.Deps.Voice.FindUserVoiceChannel(ctx.Event.GuildID, member.User.ID)
	if err != nil {
		return Followup(ctx.Session, ctx.Event, fmt.Sprintf("🎵 %s", err))
	}

	started, pos, err := ctx.Deps.Player.EnqueueOrPlay(ctx.Ctx, ctx.Event.GuildID, channelID, track, member.User.ID)
	if err != nil {
		return Followup(ctx.Session, ctx.Event, fmt.Sprintf("🎵 %s", err))
	}

	if started {
		if e := ctx.Deps.Storage.AddRecentTrack(ctx.Event.GuildID, track, member.User.ID); e != nil {
			log.Println("[WARN] Failed to record recent track:", e)
		}
		return FollowupEmbed(ctx.Session, ctx.Event, TrackEmbed("▶️ Now Playing", track, ctx.Deps.Maple))
	}
	return FollowupEmbed(ctx.Session, ctx.Event,
		TrackEmbed(fmt.Sprintf("🎶 Queued at position %d", pos), track, ctx.Deps.Maple))
}

func (c *BGMCommand) search(ctx *SlashContext, opts []*discordgo.ApplicationCommandInteractionDataOption) error {
	term := Option(opts, "term").StringValue()

	if err := Defer(ctx.Session, ctx.Event); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	results := ctx.Deps.Maple.SearchMaps(ctx.Ctx, term)
	if len(results) == 0 {
		return Followup(ctx.Session, ctx.Event, fmt.Sprintf("🎵 No maps found matching %q.", term))
	}
	return FollowupEmbed(ctx.Session, ctx.Event,
		TrackListEmbed(fmt.Sprintf("🔍 Maps matching %q", term), results))
}

func (c *BGMCommand) find(ctx *SlashContext, opts []*discordgo.ApplicationCommandInteractionDataOption) error {
	mapID := Option(opts, "id").IntValue()

	if err := Defer(ctx.Session, ctx.Event); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	track := ctx.Deps.Maple.MapDetails(ctx.Ctx, mapID)
	if track == nil {
		return Followup(ctx.Session, ctx.Event, fmt.Sprintf("🎵 No map found with ID %d.", mapID))
	}

	e := embed.NewEmbed().
		SetTitle("🗺️ "+track.MapName).
		SetDescription(fmt.Sprintf("%s\nRegion %s · version %s · map %d",
			track.StreetName, track.Region, track.Version, track.MapID)).
		SetImage(ctx.Deps.Maple.ImageURL(track.MapID, false)).
		SetThumbnail(ctx.Deps.Maple.ImageURL(track.MapID, true)).
		SetColor(EmbedColor).
		MessageEmbed
	return FollowupEmbed(ctx.Session, ctx.Event, e)
}

func (c *BGMCommand) stop(ctx *SlashContext) error {
	if !ctx.Deps.Player.Stop(ctx.Event.GuildID) {
		return RespondEphemeral(ctx.Session, ctx.Event, "Nothing is playing.")
	}
	return Respond(ctx.Session, ctx.Event, "⏹️ Playback stopped and queue cleared.")
}

func (c *BGMCommand) volume(ctx *SlashContext, opts []*discordgo.ApplicationCommandInteractionDataOption) error {
	guildID := ctx.Event.GuildID

	opt := Option(opts, "percent")
	if opt == nil {
		return Respond(ctx.Session, ctx.Event,
			fmt.Sprintf("🔊 Volume is %d%%.", ctx.Deps.Player.Volume(guildID)))
	}

	ctx.Deps.Player.SetVolume(guildID, int(opt.IntValue()))
	return Respond(ctx.Session, ctx.Event,
		fmt.Sprintf("🔊 Volume set to %d%%.", ctx.Deps.Player.Volume(guildID)))
}

func (c *BGMCommand) recent(ctx *SlashContext) error {
	recent, err := ctx.Deps.Storage.RecentTracks(ctx.Event.GuildID)
	if err != nil {
		return RespondEphemeral(ctx.Session, ctx.Event, "Failed to load recent tracks.")
	}
	tracks := make([]maple.Track, len(recent))
	for i, p := range recent {
		tracks[i] = p.Track
	}
	return RespondEmbed(ctx.Session, ctx.Event, TrackListEmbed("🕘 Recently played", tracks))
}

func (c *BGMCommand) nowPlaying(ctx *SlashContext) error {
	track := ctx.Deps.Player.NowPlaying(ctx.Event.GuildID)
	if track == nil {
		return RespondEphemeral(ctx.Session, ctx.Event, "Nothing is playing.")
	}
	return RespondEmbed(ctx.Session, ctx.Event, TrackEmbed("🎶 Now Playing", *track, ctx.Deps.Maple))
}
