package storage

import (
	"path/filepath"
	"testing"
	"time"

	"maplebgm-bot/datastore"
	"maplebgm-bot/internal/maple"
)

func newTestStorage(t *testing.T) (*Storage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guilds.json")
	ds, err := datastore.NewWithConfig(&datastore.Config{FilePath: path, BackupCount: 0})
	if err != nil {
		t.Fatalf("datastore: %v", err)
	}
	t.Cleanup(func() { ds.Close() })
	return New(ds), path
}

func track(id int64) maple.Track {
	return maple.Track{MapID: id, MapName: "Map", StreetName: "Street", Region: "gms", Version: "253"}
}

func TestCommandHistoryBounded(t *testing.T) {
	s, _ := newTestStorage(t)

	for i := 0; i < historyLimit+10; i++ {
		err := s.AddCommandHistory("g1", CommandHistory{Command: "bgm", Datetime: time.Now()})
		if err != nil {
			t.Fatalf("AddCommandHistory: %v", err)
		}
	}

	history, err := s.CommandsHistory("g1")
	if err != nil {
		t.Fatalf("CommandsHistory: %v", err)
	}
	if len(history) != historyLimit {
		t.Fatalf("history length = %d, want %d", len(history), historyLimit)
	}
}

func TestRecentTracksDedupeAndOrder(t *testing.T) {
	s, _ := newTestStorage(t)

	s.AddRecentTrack("g1", track(1), "u1")
	s.AddRecentTrack("g1", track(2), "u1")
	s.AddRecentTrack("g1", track(1), "u2")

	recent, err := s.RecentTracks("g1")
	if err != nil {
		t.Fatalf("RecentTracks: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent length = %d, want 2", len(recent))
	}
	if recent[0].Track.MapID != 1 || recent[0].RequestedBy != "u2" {
		t.Fatalf("replayed track not moved to front: %+v", recent[0])
	}
	if recent[1].Track.MapID != 2 {
		t.Fatalf("unexpected second entry: %+v", recent[1])
	}
}

func TestRecordsSurviveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guilds.json")

	ds, err := datastore.NewWithConfig(&datastore.Config{FilePath: path, BackupCount: 0})
	if err != nil {
		t.Fatalf("datastore: %v", err)
	}
	s := New(ds)
	s.AddRecentTrack("g1", track(7), "u1")
	s.AddCommandHistory("g1", CommandHistory{Command: "bgm", Username: "alice", Datetime: time.Now().UTC()})
	if err := ds.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ds2, err := datastore.NewWithConfig(&datastore.Config{FilePath: path, BackupCount: 0})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer ds2.Close()
	s2 := New(ds2)

	recent, err := s2.RecentTracks("g1")
	if err != nil {
		t.Fatalf("RecentTracks after reload: %v", err)
	}
	if len(recent) != 1 || recent[0].Track.MapID != 7 {
		t.Fatalf("recent tracks did not survive reload: %+v", recent)
	}

	history, err := s2.CommandsHistory("g1")
	if err != nil {
		t.Fatalf("CommandsHistory after reload: %v", err)
	}
	if len(history) != 1 || history[0].Username != "alice" {
		t.Fatalf("history did not survive reload: %+v", history)
	}
}

func TestGuildIsolation(t *testing.T) {
	s, _ := newTestStorage(t)

	s.AddRecentTrack("g1", track(1), "u1")
	s.AddRecentTrack("g2", track(2), "u2")

	recent, _ := s.RecentTracks("g1")
	if len(recent) != 1 || recent[0].Track.MapID != 1 {
		t.Fatalf("guild records leaked: %+v", recent)
	}
}
