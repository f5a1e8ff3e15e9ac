// Package storage keeps per-guild operational records (command history
// and recently played tracks) in the JSON datastore, keyed by guild ID.
package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"maplebgm-bot/datastore"
	"maplebgm-bot/internal/maple"
)

const (
	historyLimit = 200
	recentLimit  = 25
)

// CommandHistory is one logged command invocation.
type CommandHistory struct {
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	GuildName   string    `json:"guild_name"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	Command     string    `json:"command"`
	Datetime    time.Time `json:"datetime"`
}

// PlayedTrack is one entry in a guild's recently-played list.
type PlayedTrack struct {
	Track       maple.Track `json:"track"`
	RequestedBy string      `json:"requested_by"`
	PlayedAt    time.Time   `json:"played_at"`
}

// Record is everything stored per guild.
type Record struct {
	CommandsHistory []CommandHistory `json:"commands_history"`
	RecentTracks    []PlayedTrack    `json:"recent_tracks"`
}

type Storage struct {
	ds *datastore.DataStore
}

func New(ds *datastore.DataStore) *Storage {
	return &Storage{ds: ds}
}

// getOrCreateGuildRecord loads the guild's record, tolerating the
// map[string]any shape the datastore yields after a reload.
func (s *Storage) getOrCreateGuildRecord(guildID string) (*Record, error) {
	raw, ok := s.ds.Get(guildID)
	if !ok {
		return &Record{}, nil
	}

	if record, ok := raw.(*Record); ok {
		return record, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-marshal guild record: %w", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode guild record: %w", err)
	}
	return &record, nil
}

// AddCommandHistory appends an invocation to the guild's bounded log.
func (s *Storage) AddCommandHistory(guildID string, entry CommandHistory) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	record.CommandsHistory = append(record.CommandsHistory, entry)
	if len(record.CommandsHistory) > historyLimit {
		record.CommandsHistory = record.CommandsHistory[len(record.CommandsHistory)-historyLimit:]
	}

	s.ds.Add(guildID, record)
	return nil
}

// CommandsHistory returns the guild's logged invocations, oldest first.
func (s *Storage) CommandsHistory(guildID string) ([]CommandHistory, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.CommandsHistory, nil
}

// AddRecentTrack records a played track, most recent first. A track
// already on the list moves to the front instead of duplicating.
func (s *Storage) AddRecentTrack(guildID string, track maple.Track, requestedBy string) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}

	kept := make([]PlayedTrack, 0, len(record.RecentTracks)+1)
	kept = append(kept, PlayedTrack{Track: track, RequestedBy: requestedBy, PlayedAt: time.Now().UTC()})
	for _, p := range record.RecentTracks {
		if p.Track.MapID != track.MapID {
			kept = append(kept, p)
		}
	}
	if len(kept) > recentLimit {
		kept = kept[:recentLimit]
	}
	record.RecentTracks = kept

	s.ds.Add(guildID, record)
	return nil
}

// RecentTracks returns the guild's recently played tracks, most recent
// first.
func (s *Storage) RecentTracks(guildID string) ([]PlayedTrack, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return nil, err
	}
	return record.RecentTracks, nil
}
