// Package queue holds the per-guild ordered lists of pending tracks.
// It is pure bookkeeping: playback is the session's job.
package queue

import (
	"math/rand"
	"strings"
	"sync"

	"maplebgm-bot/internal/maple"
)

// LoopMode controls what happens to a track or queue once playback of
// the current track finishes.
type LoopMode int

const (
	LoopNone LoopMode = iota
	LoopSong
	LoopQueue
)

func (m LoopMode) String() string {
	switch m {
	case LoopSong:
		return "song"
	case LoopQueue:
		return "queue"
	default:
		return "none"
	}
}

// ParseLoopMode maps the user-facing mode names onto LoopMode.
func ParseLoopMode(s string) (LoopMode, bool) {
	switch strings.ToLower(s) {
	case "none":
		return LoopNone, true
	case "song":
		return LoopSong, true
	case "queue":
		return LoopQueue, true
	}
	return LoopNone, false
}

// Entry is one queued track plus the user who requested it.
type Entry struct {
	Track       maple.Track
	RequestedBy string
}

// Coordinator owns every guild's queue behind one mutex. Operations
// never suspend, so each one is atomic with respect to the others, and
// indices always resolve against the live queue (last call wins).
type Coordinator struct {
	mu     sync.Mutex
	queues map[string][]Entry
}

func NewCoordinator() *Coordinator {
	return &Coordinator{queues: make(map[string][]Entry)}
}

// Enqueue appends a track and returns its 1-based queue position.
// Queues have no capacity limit.
func (c *Coordinator) Enqueue(guildID string, track maple.Track, requestedBy string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queues[guildID] = append(c.queues[guildID], Entry{Track: track, RequestedBy: requestedBy})
	return len(c.queues[guildID])
}

// DequeueNext returns the next entry to play, or nil when the queue is
// empty. In queue-loop mode the head rotates to the tail instead of
// being removed, so the queue cycles without shrinking.
func (c *Coordinator) DequeueNext(guildID string, mode LoopMode) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queues[guildID]
	if len(q) == 0 {
		return nil
	}

	head := q[0]
	if mode == LoopQueue {
		c.queues[guildID] = append(q[1:], head)
	} else {
		c.queues[guildID] = q[1:]
		if len(c.queues[guildID]) == 0 {
			delete(c.queues, guildID)
		}
	}
	return &head
}

// RemoveAt removes and returns the entry at the 0-based index, or nil
// when the index is out of bounds.
func (c *Coordinator) RemoveAt(guildID string, index int) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queues[guildID]
	if index < 0 || index >= len(q) {
		return nil
	}

	removed := q[index]
	c.queues[guildID] = append(q[:index], q[index+1:]...)
	if len(c.queues[guildID]) == 0 {
		delete(c.queues, guildID)
	}
	return &removed
}

// Move extracts the entry at from and reinserts it at to (both
// 0-based). Returns false when either index is out of bounds.
func (c *Coordinator) Move(guildID string, from, to int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queues[guildID]
	if from < 0 || from >= len(q) || to < 0 || to >= len(q) {
		return false
	}
	if from == to {
		return true
	}

	entry := q[from]
	q = append(q[:from], q[from+1:]...)
	q = append(q[:to], append([]Entry{entry}, q[to:]...)...)
	c.queues[guildID] = q
	return true
}

// Shuffle randomizes the queue in place (Fisher-Yates). Returns false
// when the queue has one entry or fewer, distinguishing "nothing to
// shuffle" from success.
func (c *Coordinator) Shuffle(guildID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queues[guildID]
	if len(q) <= 1 {
		return false
	}

	for i := len(q) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		q[i], q[j] = q[j], q[i]
	}
	return true
}

// Clear empties the guild's queue. Returns false when there was
// nothing to clear.
func (c *Coordinator) Clear(guildID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queues[guildID]) == 0 {
		return false
	}
	delete(c.queues, guildID)
	return true
}

// Position returns the 1-based position of the first entry with the
// given map id, or false when it is not queued.
func (c *Coordinator) Position(guildID string, mapID int64) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, e := range c.queues[guildID] {
		if e.Track.MapID == mapID {
			return i + 1, true
		}
	}
	return 0, false
}

// List returns a copy of the guild's queue.
func (c *Coordinator) List(guildID string) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.queues[guildID]
	out := make([]Entry, len(q))
	copy(out, q)
	return out
}

// Len returns the number of queued entries.
func (c *Coordinator) Len(guildID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queues[guildID])
}
