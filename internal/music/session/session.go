// Package session owns per-guild voice playback: one connection, one
// pumping resource, the volume setting and the loop mode, plus the
// advance loop that walks the queue when tracks finish.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"maplebgm-bot/internal/maple"
	"maplebgm-bot/internal/music/queue"
	"maplebgm-bot/internal/music/stream"
	"maplebgm-bot/pkg/retrylimit"
)

const (
	// DefaultVolumePercent is applied to guilds that never set a volume.
	DefaultVolumePercent = 20

	readyTimeout      = 30 * time.Second
	reconnectWindow   = 5 * time.Second
	reconnectAttempts = 2
)

var (
	// ErrNotInVoiceChannel reports that the requesting user is not
	// connected to a voice channel.
	ErrNotInVoiceChannel = errors.New("you need to join a voice channel first")

	// ErrMissingPermission reports that the bot lacks Connect/Speak on
	// the target channel.
	ErrMissingPermission = errors.New("missing permission to join and speak in the voice channel")

	// ErrVoiceConnect reports that the voice connection could not be
	// established in time.
	ErrVoiceConnect = errors.New("failed to connect to voice channel")

	// ErrPlaybackSetup reports that the connection was established but
	// audio playback could not be started on it.
	ErrPlaybackSetup = errors.New("failed to set up audio playback")
)

// VoiceConn is the slice of a Discord voice connection the session
// needs: a frame sink, the speaking flag and teardown.
type VoiceConn interface {
	Speaking(bool) error
	Send() chan<- []byte
	Disconnect() error
}

// VoiceDialer joins a guild voice channel and waits, bounded by ctx,
// for the connection to become ready.
type VoiceDialer interface {
	Join(ctx context.Context, guildID, channelID string) (VoiceConn, error)
}

// TrackSource resolves a track into a playable resource carrying the
// guild's volume control.
type TrackSource interface {
	Resolve(ctx context.Context, track maple.Track, vol *stream.Volume) (stream.Resource, error)
}

// guildState is the live playback state of one guild. At most one
// exists per guild; a new PlayTrack supersedes and replaces it.
type guildState struct {
	guildID   string
	channelID string

	conn    VoiceConn
	vol     *stream.Volume
	now     *maple.Track
	stop    chan struct{}
	skip    chan struct{}
	stopped bool
}

// Session coordinates playback across guilds. Volume and loop-mode
// settings outlive individual playback runs; the guildState entry is
// created when playback starts and removed on teardown to idle.
type Session struct {
	mu      sync.Mutex
	dialer  VoiceDialer
	source  TrackSource
	queues  *queue.Coordinator
	guilds  map[string]*guildState
	volumes map[string]int
	loops   map[string]queue.LoopMode
}

// New creates a session coordinator. All collaborators are injected;
// there are no package-level singletons.
func New(dialer VoiceDialer, source TrackSource, queues *queue.Coordinator) *Session {
	return &Session{
		dialer:  dialer,
		source:  source,
		queues:  queues,
		guilds:  make(map[string]*guildState),
		volumes: make(map[string]int),
		loops:   make(map[string]queue.LoopMode),
	}
}

// Queues exposes the queue coordinator the session advances.
func (s *Session) Queues() *queue.Coordinator { return s.queues }

// PlayTrack starts playing track in the guild's voice channel. Any
// existing connection for the guild is destroyed first; there is never
// more than one. The call returns once playback has started (or
// failed); the advance loop then keeps the guild playing until the
// queue runs dry, an error occurs, or Stop is called.
func (s *Session) PlayTrack(ctx context.Context, guildID, channelID string, track maple.Track) error {
	st := s.begin(guildID, channelID)
	return s.startRun(ctx, st, track)
}

// EnqueueOrPlay is the "play or queue" entry point commands use: when
// the guild is idle the track starts immediately, otherwise it is
// appended to the queue. Returns whether playback started and, if not,
// the track's 1-based queue position.
func (s *Session) EnqueueOrPlay(ctx context.Context, guildID, channelID string, track maple.Track, requestedBy string) (bool, int, error) {
	st, fresh := s.beginIfIdle(guildID, channelID)
	if !fresh {
		pos := s.queues.Enqueue(guildID, track, requestedBy)
		return false, pos, nil
	}
	if err := s.startRun(ctx, st, track); err != nil {
		return false, 0, err
	}
	return true, 0, nil
}

// startRun connects, resolves the first resource and hands off to the
// advance loop. Failures before playback starts tear the state down
// and leave the queue untouched.
func (s *Session) startRun(ctx context.Context, st *guildState, track maple.Track) error {
	if err := s.connect(ctx, st); err != nil {
		s.teardown(st)
		return err
	}

	res, err := s.source.Resolve(ctx, track, st.vol)
	if err != nil {
		s.teardown(st)
		return err
	}

	go s.run(st, res, track)
	return nil
}

// run is the advance loop: it pumps one resource to the voice
// connection, then consults the loop mode and the queue to decide what
// plays next. An explicit loop rather than recursion, so teardown
// happens in exactly one place and long queues cannot grow the stack.
func (s *Session) run(st *guildState, res stream.Resource, track maple.Track) {
	for {
		err := s.playResource(st, res, track)

		switch {
		case errors.Is(err, stream.ErrStopped):
			res.Close()
			s.teardown(st)
			return

		case errors.Is(err, stream.ErrSendStalled):
			log.Printf("[Session] Voice send stalled in guild %s, attempting reconnect", st.guildID)
			if rerr := s.reconnect(st); rerr != nil {
				log.Printf("[ERR] [Session] Reconnect failed in guild %s: %v", st.guildID, rerr)
				res.Close()
				s.teardown(st)
				return
			}
			continue // resume the same resource on the new connection

		case err != nil && !errors.Is(err, stream.ErrSkipped):
			log.Printf("[ERR] [Session] Playback error in guild %s: %v", st.guildID, err)
			res.Close()
			s.teardown(st)
			return
		}

		// Natural finish or skip: pick the next track.
		res.Close()

		next, ok := s.nextTrack(st.guildID, track)
		if !ok {
			s.teardown(st)
			return
		}

		// Each track gets a fresh connection and a fresh stream, so a
		// looping song is re-fetched rather than seeked.
		nres, err := s.renew(st, next)
		if err != nil {
			log.Printf("[ERR] [Session] Failed to start next track in guild %s: %v", st.guildID, err)
			s.teardown(st)
			return
		}
		res, track = nres, next
	}
}

// nextTrack applies the loop mode: song repeats the current track,
// queue rotates, none drains. The queue is consulted at this very
// moment, never from a snapshot.
func (s *Session) nextTrack(guildID string, current maple.Track) (maple.Track, bool) {
	mode := s.LoopMode(guildID)
	if mode == queue.LoopSong {
		return current, true
	}
	entry := s.queues.DequeueNext(guildID, mode)
	if entry == nil {
		return maple.Track{}, false
	}
	return entry.Track, true
}

// renew tears down the current connection and dials a fresh one for
// the next track, then resolves its resource.
func (s *Session) renew(st *guildState, track maple.Track) (stream.Resource, error) {
	s.mu.Lock()
	if st.stopped {
		s.mu.Unlock()
		return nil, stream.ErrStopped
	}
	conn := st.conn
	s.mu.Unlock()

	if conn != nil {
		conn.Disconnect()
	}

	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()

	if err := s.connect(ctx, st); err != nil {
		return nil, err
	}
	return s.source.Resolve(ctx, track, st.vol)
}

// playResource pumps one resource until it ends, recording it as the
// currently playing track for the duration.
func (s *Session) playResource(st *guildState, res stream.Resource, track maple.Track) error {
	s.mu.Lock()
	if st.stopped {
		s.mu.Unlock()
		return stream.ErrStopped
	}
	st.skip = make(chan struct{})
	st.now = &track
	conn, stop, skip := st.conn, st.stop, st.skip
	s.mu.Unlock()

	if err := conn.Speaking(true); err != nil {
		return fmt.Errorf("%w: %v", ErrPlaybackSetup, err)
	}
	log.Printf("[Session] Now playing %q in guild %s", track.Label(), st.guildID)

	err := res.Pump(conn.Send(), stop, skip)
	conn.Speaking(false)
	return err
}

// connect dials the guild's channel and records the connection on st.
func (s *Session) connect(ctx context.Context, st *guildState) error {
	cctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	conn, err := s.dialer.Join(cctx, st.guildID, st.channelID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVoiceConnect, err)
	}

	s.mu.Lock()
	st.conn = conn
	s.mu.Unlock()
	return nil
}

// reconnect makes one bounded attempt to re-establish a dropped
// connection; beyond the window the session is torn down.
func (s *Session) reconnect(st *guildState) error {
	s.mu.Lock()
	if st.stopped {
		s.mu.Unlock()
		return stream.ErrStopped
	}
	old := st.conn
	s.mu.Unlock()

	if old != nil {
		old.Disconnect()
	}

	ctx, cancel := context.WithTimeout(context.Background(), reconnectWindow)
	defer cancel()

	return retrylimit.WithRetryMax(ctx, func() error {
		conn, err := s.dialer.Join(ctx, st.guildID, st.channelID)
		if err != nil {
			return err
		}
		s.mu.Lock()
		st.conn = conn
		s.mu.Unlock()
		return nil
	}, nil, reconnectAttempts)
}

// begin replaces any existing run for the guild with a fresh state.
func (s *Session) begin(guildID, channelID string) *guildState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersedeLocked(guildID)
	return s.newStateLocked(guildID, channelID)
}

// beginIfIdle creates a fresh state only when the guild has none —
// the Idle-to-Connecting guard that keeps a newly enqueued track from
// stomping on active playback.
func (s *Session) beginIfIdle(guildID, channelID string) (*guildState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guilds[guildID] != nil {
		return nil, false
	}
	return s.newStateLocked(guildID, channelID), true
}

func (s *Session) supersedeLocked(guildID string) {
	st := s.guilds[guildID]
	if st == nil {
		return
	}
	if !st.stopped {
		st.stopped = true
		close(st.stop)
	}
	if st.conn != nil {
		st.conn.Disconnect()
	}
	delete(s.guilds, guildID)
}

func (s *Session) newStateLocked(guildID, channelID string) *guildState {
	st := &guildState{
		guildID:   guildID,
		channelID: channelID,
		vol:       stream.NewVolume(s.volumeLocked(guildID)),
		stop:      make(chan struct{}),
		skip:      make(chan struct{}),
	}
	s.guilds[guildID] = st
	return st
}

// teardown removes the state entry (unless a newer run already
// replaced it) and destroys its connection. Safe to call from
// superseded runs; their teardown is a no-op against the map.
func (s *Session) teardown(st *guildState) {
	s.mu.Lock()
	if s.guilds[st.guildID] == st {
		delete(s.guilds, st.guildID)
	}
	if !st.stopped {
		st.stopped = true
		close(st.stop)
	}
	conn := st.conn
	st.conn = nil
	st.now = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Disconnect()
	}
	log.Printf("[Session] Guild %s returned to idle", st.guildID)
}

// Stop halts playback, destroys the connection and clears the guild's
// queue. Returns false when there was nothing to stop.
func (s *Session) Stop(guildID string) bool {
	s.mu.Lock()
	st := s.guilds[guildID]
	if st == nil {
		s.mu.Unlock()
		return false
	}
	if !st.stopped {
		st.stopped = true
		close(st.stop)
	}
	s.mu.Unlock()

	s.queues.Clear(guildID)
	return true
}

// Skip ends the current track; the advance loop then applies the loop
// mode as if the track had finished naturally. Returns false when the
// guild has no active playback. A skip only applies to a track whose
// pump has started; one landing between tracks is absorbed when the
// next pump installs a fresh skip channel.
func (s *Session) Skip(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.guilds[guildID]
	if st == nil {
		return false
	}
	select {
	case <-st.skip:
	default:
		close(st.skip)
	}
	return true
}

// SetVolume clamps percent to [0,100] and stores it for the guild so
// the next track picks it up; a currently playing resource is adjusted
// live. Returns whether a live resource existed.
func (s *Session) SetVolume(guildID string, percent int) bool {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.volumes[guildID] = percent
	st := s.guilds[guildID]
	if st == nil {
		return false
	}
	st.vol.SetPercent(percent)
	return st.now != nil
}

// Volume returns the guild's stored volume percentage, or the default.
func (s *Session) Volume(guildID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volumeLocked(guildID)
}

func (s *Session) volumeLocked(guildID string) int {
	if v, ok := s.volumes[guildID]; ok {
		return v
	}
	return DefaultVolumePercent
}

// NowPlaying returns the currently playing track, or nil when idle.
func (s *Session) NowPlaying(guildID string) *maple.Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.guilds[guildID]
	if st == nil || st.now == nil {
		return nil
	}
	t := *st.now
	return &t
}

// IsPlaying reports whether the guild has an active track.
func (s *Session) IsPlaying(guildID string) bool {
	return s.NowPlaying(guildID) != nil
}

// SetLoopMode records the guild's loop mode; it survives teardown.
func (s *Session) SetLoopMode(guildID string, mode queue.LoopMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loops[guildID] = mode
}

// LoopMode returns the guild's loop mode, defaulting to none.
func (s *Session) LoopMode(guildID string) queue.LoopMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loops[guildID]
}
