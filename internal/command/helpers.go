package command

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"

	"maplebgm-bot/internal/maple"
	"maplebgm-bot/internal/music/queue"
)

const EmbedColor = 0xef9c35

func Respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	})
}

func RespondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func RespondEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, e *discordgo.MessageEmbed) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{e},
		},
	})
}

// Defer acknowledges the interaction so slow work can follow up later.
func Defer(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
}

func Followup(s *discordgo.Session, i *discordgo.InteractionCreate, content string) error {
	_, err := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
		Content: content,
	})
	return err
}

func FollowupEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, e *discordgo.MessageEmbed) error {
	_, err := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{e},
	})
	return err
}

// TrackEmbed renders one track with its minimap thumbnail.
func TrackEmbed(title string, track maple.Track, api *maple.Client) *discordgo.MessageEmbed {
	return embed.NewEmbed().
		SetTitle(title).
		SetDescription(fmt.Sprintf("🎶 **%s**\n%s · map %d", track.MapName, track.StreetName, track.MapID)).
		SetThumbnail(api.ImageURL(track.MapID, true)).
		SetColor(EmbedColor).
		MessageEmbed
}

// TrackListEmbed renders a numbered track list, truncated to fit.
func TrackListEmbed(title string, tracks []maple.Track) *discordgo.MessageEmbed {
	return embed.NewEmbed().
		SetTitle(title).
		SetDescription(formatTrackList(tracks)).
		SetColor(EmbedColor).
		MessageEmbed
}

// QueueEmbed renders the pending queue entries.
func QueueEmbed(title string, entries []queue.Entry) *discordgo.MessageEmbed {
	var sb strings.Builder
	for i, e := range entries {
		if i >= 20 {
			fmt.Fprintf(&sb, "… and %d more", len(entries)-i)
			break
		}
		fmt.Fprintf(&sb, "`%2d.` %s · <@%s>\n", i+1, e.Track.Label(), e.RequestedBy)
	}
	if sb.Len() == 0 {
		sb.WriteString("The queue is empty.")
	}
	return embed.NewEmbed().
		SetTitle(title).
		SetDescription(sb.String()).
		SetColor(EmbedColor).
		MessageEmbed
}

func formatTrackList(tracks []maple.Track) string {
	if len(tracks) == 0 {
		return "Nothing here yet."
	}
	var sb strings.Builder
	for i, t := range tracks {
		if i >= 20 {
			fmt.Fprintf(&sb, "… and %d more", len(tracks)-i)
			break
		}
		fmt.Fprintf(&sb, "`%2d.` %s (map %d)\n", i+1, t.Label(), t.MapID)
	}
	return sb.String()
}
