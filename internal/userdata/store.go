// Package userdata persists per-user favorites and named playlists in
// one JSON document. The whole document is rewritten on every mutation
// with an atomic temp-file+rename, trading throughput for a store that
// can never be observed half-written.
package userdata

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"maplebgm-bot/internal/maple"
)

// Playlist is a named, ordered list of tracks. Names are unique per
// user, compared case-insensitively. Timestamps are RFC 3339 strings.
type Playlist struct {
	Name      string        `json:"name"`
	Songs     []maple.Track `json:"songs"`
	CreatedAt string        `json:"createdAt"`
	UpdatedAt string        `json:"updatedAt"`
}

// UserData holds everything stored for one Discord user.
type UserData struct {
	UserID    string        `json:"userId"`
	Favorites []maple.Track `json:"favorites"`
	Playlists []Playlist    `json:"playlists"`
}

// Store is the in-memory mirror of the user data document. All
// mutating operations save the full document; if the save fails the
// in-memory change is rolled back so memory always matches the last
// successfully persisted state.
type Store struct {
	mu    sync.Mutex
	path  string
	users map[string]*UserData
	now   func() time.Time
}

// NewStore loads (or creates) the document at path. A missing file is
// created empty; an empty or unparseable file is tolerated with a
// logged warning and an empty store, never a startup failure.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	s := &Store{
		path:  path,
		users: make(map[string]*UserData),
		now:   time.Now,
	}
	s.load()
	return s, nil
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		if werr := s.writeFileAtomic([]byte("{}\n")); werr != nil {
			log.Printf("[ERR] [Store] Failed to create user data file: %v", werr)
		} else {
			log.Printf("[INFO] [Store] Created new user data file at %s", s.path)
		}
		return
	}
	if err != nil {
		log.Printf("[WARN] [Store] Failed to read user data, starting empty: %v", err)
		return
	}
	if strings.TrimSpace(string(data)) == "" {
		log.Printf("[INFO] [Store] User data file is empty, starting fresh")
		return
	}

	var raw map[string]*UserData
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Printf("[WARN] [Store] Corrupt user data, starting empty: %v", err)
		return
	}

	for userID, u := range raw {
		s.users[userID] = normalize(userID, u)
	}
	log.Printf("[INFO] [Store] Loaded user data for %d users", len(s.users))
}

// normalize fills in missing structure from older or hand-edited
// documents.
func normalize(userID string, u *UserData) *UserData {
	if u == nil {
		u = &UserData{}
	}
	if u.UserID == "" {
		u.UserID = userID
	}
	if u.Favorites == nil {
		u.Favorites = []maple.Track{}
	}
	if u.Playlists == nil {
		u.Playlists = []Playlist{}
	}
	for i := range u.Playlists {
		p := &u.Playlists[i]
		if p.Name == "" {
			p.Name = "Unnamed Playlist"
		}
		if p.Songs == nil {
			p.Songs = []maple.Track{}
		}
		if p.CreatedAt == "" {
			p.CreatedAt = time.Now().UTC().Format(time.RFC3339)
		}
		if p.UpdatedAt == "" {
			p.UpdatedAt = p.CreatedAt
		}
	}
	return u
}

// Get returns the user's data, lazily creating (and persisting) an
// empty entry on first access. The returned value is a copy.
func (s *Store) Get(userID string) UserData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *cloneUser(s.getOrCreateLocked(userID))
}

// AddFavorite adds a track to the user's favorites. Returns false if
// the track is already favorited or the save fails.
func (s *Store) AddFavorite(userID string, track maple.Track) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.getOrCreateLocked(userID)
	for _, fav := range u.Favorites {
		if fav.MapID == track.MapID {
			return false
		}
	}

	backup := cloneUser(u)
	u.Favorites = append(u.Favorites, track)
	return s.commitLocked(userID, backup)
}

// RemoveFavorite removes a track by map id. Returns false if absent.
func (s *Store) RemoveFavorite(userID string, mapID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.getOrCreateLocked(userID)
	idx := -1
	for i, fav := range u.Favorites {
		if fav.MapID == mapID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	backup := cloneUser(u)
	u.Favorites = append(u.Favorites[:idx], u.Favorites[idx+1:]...)
	return s.commitLocked(userID, backup)
}

// Favorites returns a copy of the user's favorites.
func (s *Store) Favorites(userID string) []maple.Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.getOrCreateLocked(userID)
	out := make([]maple.Track, len(u.Favorites))
	copy(out, u.Favorites)
	return out
}

// CreatePlaylist creates an empty playlist. Returns false when a
// playlist with the same name (case-insensitive) already exists.
func (s *Store) CreatePlaylist(userID, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.getOrCreateLocked(userID)
	if u.findPlaylist(name) != nil {
		return false
	}

	backup := cloneUser(u)
	now := s.now().UTC().Format(time.RFC3339)
	u.Playlists = append(u.Playlists, Playlist{
		Name:      name,
		Songs:     []maple.Track{},
		CreatedAt: now,
		UpdatedAt: now,
	})
	return s.commitLocked(userID, backup)
}

// DeletePlaylist removes a playlist by name. Returns false if absent.
func (s *Store) DeletePlaylist(userID, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.getOrCreateLocked(userID)
	idx := -1
	for i := range u.Playlists {
		if strings.EqualFold(u.Playlists[i].Name, name) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	backup := cloneUser(u)
	u.Playlists = append(u.Playlists[:idx], u.Playlists[idx+1:]...)
	return s.commitLocked(userID, backup)
}

// AddToPlaylist appends a track to a playlist. Returns false when the
// playlist does not exist or already contains the track.
func (s *Store) AddToPlaylist(userID, name string, track maple.Track) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.getOrCreateLocked(userID)
	p := u.findPlaylist(name)
	if p == nil {
		return false
	}
	for _, song := range p.Songs {
		if song.MapID == track.MapID {
			return false
		}
	}

	backup := cloneUser(u)
	p.Songs = append(p.Songs, track)
	p.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	return s.commitLocked(userID, backup)
}

// RemoveFromPlaylist removes the song at the 0-based index. Returns
// false when the playlist is missing or the index is out of range.
func (s *Store) RemoveFromPlaylist(userID, name string, index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.getOrCreateLocked(userID)
	p := u.findPlaylist(name)
	if p == nil || index < 0 || index >= len(p.Songs) {
		return false
	}

	backup := cloneUser(u)
	p.Songs = append(p.Songs[:index], p.Songs[index+1:]...)
	p.UpdatedAt = s.now().UTC().Format(time.RFC3339)
	return s.commitLocked(userID, backup)
}

// Playlist returns a copy of the named playlist, or nil.
func (s *Store) Playlist(userID, name string) *Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreateLocked(userID).findPlaylist(name)
	if p == nil {
		return nil
	}
	c := clonePlaylist(*p)
	return &c
}

// Playlists returns a copy of all the user's playlists.
func (s *Store) Playlists(userID string) []Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.getOrCreateLocked(userID)
	out := make([]Playlist, len(u.Playlists))
	for i, p := range u.Playlists {
		out[i] = clonePlaylist(p)
	}
	return out
}

func (u *UserData) findPlaylist(name string) *Playlist {
	for i := range u.Playlists {
		if strings.EqualFold(u.Playlists[i].Name, name) {
			return &u.Playlists[i]
		}
	}
	return nil
}

func (s *Store) getOrCreateLocked(userID string) *UserData {
	if u, ok := s.users[userID]; ok {
		return u
	}
	u := &UserData{
		UserID:    userID,
		Favorites: []maple.Track{},
		Playlists: []Playlist{},
	}
	s.users[userID] = u
	if err := s.saveLocked(); err != nil {
		// The empty entry stays usable in memory; reads never fail.
		log.Printf("[ERR] [Store] Failed to persist new user %s: %v", userID, err)
	}
	return u
}

// commitLocked saves the document and rolls the user entry back to the
// pre-mutation snapshot when the save fails.
func (s *Store) commitLocked(userID string, backup *UserData) bool {
	if err := s.saveLocked(); err != nil {
		log.Printf("[ERR] [Store] Save failed, rolling back change for user %s: %v", userID, err)
		s.users[userID] = backup
		return false
	}
	return true
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user data: %w", err)
	}
	return s.writeFileAtomic(data)
}

// writeFileAtomic writes via a temp file, fsyncs and renames so a
// crash mid-write leaves the previous document intact.
func (s *Store) writeFileAtomic(data []byte) error {
	tmp := s.path + ".tmp"

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	f.Close()

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func cloneUser(u *UserData) *UserData {
	c := &UserData{
		UserID:    u.UserID,
		Favorites: make([]maple.Track, len(u.Favorites)),
		Playlists: make([]Playlist, len(u.Playlists)),
	}
	copy(c.Favorites, u.Favorites)
	for i, p := range u.Playlists {
		c.Playlists[i] = clonePlaylist(p)
	}
	return c
}

func clonePlaylist(p Playlist) Playlist {
	songs := make([]maple.Track, len(p.Songs))
	copy(songs, p.Songs)
	p.Songs = songs
	return p
}
