package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"maplebgm-bot/internal/music/session"
)

// FindUserVoiceChannel returns the voice channel the user currently
// sits in, after checking the bot may connect and speak there.
func (b *Bot) FindUserVoiceChannel(guildID, userID string) (string, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("error retrieving guild: %w", err)
	}

	var channelID string
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			channelID = vs.ChannelID
			break
		}
	}
	if channelID == "" {
		return "", session.ErrNotInVoiceChannel
	}

	perms, err := b.dg.UserChannelPermissions(b.dg.State.User.ID, channelID)
	if err != nil {
		return "", fmt.Errorf("error checking channel permissions: %w", err)
	}
	need := int64(discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak)
	if perms&need != need {
		return "", session.ErrMissingPermission
	}

	return channelID, nil
}

// VoiceDialer adapts the gateway session to the playback session's
// dialer interface.
type VoiceDialer struct {
	dg *discordgo.Session
}

func NewVoiceDialer(dg *discordgo.Session) *VoiceDialer {
	return &VoiceDialer{dg: dg}
}

// Join connects to the channel and waits, bounded by ctx, for the
// connection to become ready. ChannelVoiceJoin blocks on its own
// timeout, so the wait runs in a goroutine that ctx can abandon.
func (d *VoiceDialer) Join(ctx context.Context, guildID, channelID string) (session.VoiceConn, error) {
	type result struct {
		vc  *discordgo.VoiceConnection
		err error
	}

	ch := make(chan result, 1)
	go func() {
		vc, err := d.dg.ChannelVoiceJoin(guildID, channelID, false, true)
		ch <- result{vc, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return &voiceConn{vc: r.vc}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type voiceConn struct {
	vc *discordgo.VoiceConnection
}

func (c *voiceConn) Speaking(on bool) error { return c.vc.Speaking(on) }
func (c *voiceConn) Send() chan<- []byte    { return c.vc.OpusSend }
func (c *voiceConn) Disconnect() error      { return c.vc.Disconnect() }
