package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"maplebgm-bot/internal/maple"
	"maplebgm-bot/internal/music/queue"
	"maplebgm-bot/internal/music/stream"
)

const guild = "g1"
const channel = "vc1"

func track(id int64) maple.Track {
	return maple.Track{MapID: id, MapName: "Map", StreetName: "Street", Region: "gms", Version: "253"}
}

// fakeResource blocks in Pump until finished, stopped or skipped.
type fakeResource struct {
	track  maple.Track
	finish chan struct{}
	stall  bool

	mu     sync.Mutex
	closed bool
}

func (r *fakeResource) Pump(send chan<- []byte, stop, skip <-chan struct{}) error {
	r.mu.Lock()
	stallOnce := r.stall
	r.stall = false
	r.mu.Unlock()
	if stallOnce {
		return stream.ErrSendStalled
	}

	select {
	case <-stop:
		return stream.ErrStopped
	case <-skip:
		return stream.ErrSkipped
	case <-r.finish:
		return nil
	}
}

func (r *fakeResource) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *fakeResource) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

type fakeSource struct {
	mu        sync.Mutex
	err       error
	stallNext bool
	resources []*fakeResource
}

func (s *fakeSource) Resolve(ctx context.Context, t maple.Track, vol *stream.Volume) (stream.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	r := &fakeResource{track: t, finish: make(chan struct{}), stall: s.stallNext}
	s.stallNext = false
	s.resources = append(s.resources, r)
	return r, nil
}

func (s *fakeSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resources)
}

func (s *fakeSource) at(i int) *fakeResource {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.resources) {
		return nil
	}
	return s.resources[i]
}

type fakeConn struct {
	send chan []byte

	mu           sync.Mutex
	disconnected bool
}

func (c *fakeConn) Speaking(bool) error { return nil }
func (c *fakeConn) Send() chan<- []byte { return c.send }

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) isDisconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

type fakeDialer struct {
	mu        sync.Mutex
	err       error
	failAfter int // when > 0, joins beyond this count fail
	attempts  int
	conns     []*fakeConn
}

func (d *fakeDialer) Join(ctx context.Context, guildID, channelID string) (VoiceConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.err != nil {
		return nil, d.err
	}
	if d.failAfter > 0 && len(d.conns) >= d.failAfter {
		return nil, errors.New("voice gateway down")
	}
	c := &fakeConn{send: make(chan []byte, 16)}
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) joinAttempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

func (d *fakeDialer) at(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func newTestSession() (*Session, *fakeDialer, *fakeSource) {
	dialer := &fakeDialer{}
	source := &fakeSource{}
	return New(dialer, source, queue.NewCoordinator()), dialer, source
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPlayThenFinishReturnsToIdle(t *testing.T) {
	s, dialer, source := newTestSession()

	if err := s.PlayTrack(context.Background(), guild, channel, track(1)); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}
	waitFor(t, "playback to start", func() bool { return s.IsPlaying(guild) })

	if now := s.NowPlaying(guild); now == nil || now.MapID != 1 {
		t.Fatalf("NowPlaying = %+v, want map 1", now)
	}

	close(source.at(0).finish)
	waitFor(t, "return to idle", func() bool { return !s.IsPlaying(guild) })

	if !source.at(0).isClosed() {
		t.Fatal("resource not closed after playback")
	}
	if !dialer.at(0).isDisconnected() {
		t.Fatal("connection not destroyed after playback")
	}
	if s.Stop(guild) {
		t.Fatal("Stop on idle guild should report false")
	}
}

func TestQueueAdvance(t *testing.T) {
	s, _, source := newTestSession()

	started, _, err := s.EnqueueOrPlay(context.Background(), guild, channel, track(1), "u1")
	if err != nil || !started {
		t.Fatalf("first EnqueueOrPlay = %v/%v, want started", started, err)
	}
	waitFor(t, "playback to start", func() bool { return s.IsPlaying(guild) })

	started, pos, err := s.EnqueueOrPlay(context.Background(), guild, channel, track(2), "u1")
	if err != nil || started || pos != 1 {
		t.Fatalf("second EnqueueOrPlay = %v/%d/%v, want queued at 1", started, pos, err)
	}

	close(source.at(0).finish)
	waitFor(t, "second track to start", func() bool {
		now := s.NowPlaying(guild)
		return now != nil && now.MapID == 2
	})
	if s.Queues().Len(guild) != 0 {
		t.Fatal("queue should be drained")
	}

	close(source.at(1).finish)
	waitFor(t, "return to idle", func() bool { return !s.IsPlaying(guild) })
}

func TestStopClearsQueueAndState(t *testing.T) {
	s, _, _ := newTestSession()

	if err := s.PlayTrack(context.Background(), guild, channel, track(1)); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}
	waitFor(t, "playback to start", func() bool { return s.IsPlaying(guild) })
	s.Queues().Enqueue(guild, track(2), "u1")

	if !s.Stop(guild) {
		t.Fatal("Stop on active guild should report true")
	}
	waitFor(t, "return to idle", func() bool { return !s.IsPlaying(guild) })

	if s.Queues().Len(guild) != 0 {
		t.Fatal("Stop should clear the queue")
	}
	if s.NowPlaying(guild) != nil {
		t.Fatal("NowPlaying should be nil after Stop")
	}
}

func TestSkipAdvancesToNextTrack(t *testing.T) {
	s, _, _ := newTestSession()

	if s.Skip(guild) {
		t.Fatal("Skip on idle guild should report false")
	}

	s.PlayTrack(context.Background(), guild, channel, track(1))
	waitFor(t, "playback to start", func() bool { return s.IsPlaying(guild) })
	s.Queues().Enqueue(guild, track(2), "u1")

	if !s.Skip(guild) {
		t.Fatal("Skip on active guild should report true")
	}
	waitFor(t, "second track to start", func() bool {
		now := s.NowPlaying(guild)
		return now != nil && now.MapID == 2
	})
}

func TestLoopSongReFetchesSameTrack(t *testing.T) {
	s, _, source := newTestSession()
	s.SetLoopMode(guild, queue.LoopSong)

	s.PlayTrack(context.Background(), guild, channel, track(7))
	waitFor(t, "playback to start", func() bool { return s.IsPlaying(guild) })

	close(source.at(0).finish)
	waitFor(t, "track to restart", func() bool { return source.count() >= 2 })

	second := source.at(1)
	if second.track.MapID != 7 {
		t.Fatalf("looped track = %d, want 7", second.track.MapID)
	}

	s.Stop(guild)
	waitFor(t, "return to idle", func() bool { return !s.IsPlaying(guild) })
}

func TestQueueLoopRotatesForever(t *testing.T) {
	s, _, source := newTestSession()
	s.SetLoopMode(guild, queue.LoopQueue)

	s.PlayTrack(context.Background(), guild, channel, track(1))
	waitFor(t, "playback to start", func() bool { return s.IsPlaying(guild) })
	s.Queues().Enqueue(guild, track(2), "u1")

	close(source.at(0).finish)
	waitFor(t, "second track to start", func() bool {
		now := s.NowPlaying(guild)
		return now != nil && now.MapID == 2
	})
	if s.Queues().Len(guild) != 1 {
		t.Fatal("queue should not shrink under queue loop")
	}

	s.Stop(guild)
	waitFor(t, "return to idle", func() bool { return !s.IsPlaying(guild) })
}

func TestVolumeClampAndDefault(t *testing.T) {
	s, _, _ := newTestSession()

	if got := s.Volume(guild); got != DefaultVolumePercent {
		t.Fatalf("default volume = %d, want %d", got, DefaultVolumePercent)
	}

	if s.SetVolume(guild, 150) {
		t.Fatal("idle guild should report no live resource")
	}
	if got := s.Volume(guild); got != 100 {
		t.Fatalf("volume = %d, want clamp to 100", got)
	}

	s.SetVolume(guild, -50)
	if got := s.Volume(guild); got != 0 {
		t.Fatalf("volume = %d, want clamp to 0", got)
	}
}

func TestSetVolumeAdjustsLiveResource(t *testing.T) {
	s, _, _ := newTestSession()

	s.PlayTrack(context.Background(), guild, channel, track(1))
	waitFor(t, "playback to start", func() bool { return s.IsPlaying(guild) })

	if !s.SetVolume(guild, 55) {
		t.Fatal("active guild should report a live resource")
	}
	if got := s.Volume(guild); got != 55 {
		t.Fatalf("volume = %d, want 55", got)
	}

	s.Stop(guild)
	waitFor(t, "return to idle", func() bool { return !s.IsPlaying(guild) })

	// The setting survives teardown.
	if got := s.Volume(guild); got != 55 {
		t.Fatalf("volume after stop = %d, want 55", got)
	}
}

func TestPlayTrackSupersedesExistingRun(t *testing.T) {
	s, dialer, source := newTestSession()

	s.PlayTrack(context.Background(), guild, channel, track(1))
	waitFor(t, "playback to start", func() bool { return s.IsPlaying(guild) })

	if err := s.PlayTrack(context.Background(), guild, channel, track(2)); err != nil {
		t.Fatalf("second PlayTrack: %v", err)
	}
	waitFor(t, "second track to start", func() bool {
		now := s.NowPlaying(guild)
		return now != nil && now.MapID == 2
	})

	if !dialer.at(0).isDisconnected() {
		t.Fatal("superseded connection not destroyed")
	}
	waitFor(t, "first resource to close", func() bool { return source.at(0).isClosed() })

	s.Stop(guild)
	waitFor(t, "return to idle", func() bool { return !s.IsPlaying(guild) })
}

func TestJoinFailure(t *testing.T) {
	s, dialer, _ := newTestSession()
	dialer.err = errors.New("gateway unreachable")

	err := s.PlayTrack(context.Background(), guild, channel, track(1))
	if !errors.Is(err, ErrVoiceConnect) {
		t.Fatalf("err = %v, want ErrVoiceConnect", err)
	}
	if s.IsPlaying(guild) || s.Stop(guild) {
		t.Fatal("failed connect must leave the guild idle")
	}
}

func TestResolveFailure(t *testing.T) {
	s, dialer, source := newTestSession()
	source.err = errors.New("bgm unavailable")

	if err := s.PlayTrack(context.Background(), guild, channel, track(1)); err == nil {
		t.Fatal("expected resolve error")
	}
	if !dialer.at(0).isDisconnected() {
		t.Fatal("connection must be destroyed when resolve fails")
	}
	if s.IsPlaying(guild) {
		t.Fatal("failed resolve must leave the guild idle")
	}
}

func TestStallReconnectsAndResumes(t *testing.T) {
	s, dialer, source := newTestSession()
	source.stallNext = true

	s.PlayTrack(context.Background(), guild, channel, track(1))

	// The first Pump stalls; the session reconnects and resumes the
	// same resource instead of re-resolving it.
	waitFor(t, "reconnect", func() bool { return dialer.count() >= 2 })
	waitFor(t, "resumed playback", func() bool { return s.IsPlaying(guild) })

	if source.count() != 1 {
		t.Fatalf("resolve count = %d, want 1 (same resource resumed)", source.count())
	}
	if !dialer.at(0).isDisconnected() {
		t.Fatal("stalled connection not destroyed")
	}

	close(source.at(0).finish)
	waitFor(t, "return to idle", func() bool { return !s.IsPlaying(guild) })
}

func TestStallTearsDownWhenReconnectFails(t *testing.T) {
	s, dialer, source := newTestSession()
	source.stallNext = true
	dialer.failAfter = 1

	s.PlayTrack(context.Background(), guild, channel, track(1))
	waitFor(t, "playback to start", func() bool { return s.IsPlaying(guild) })

	// The first Pump stalls and every redial fails, so after the
	// bounded attempts the guild returns to idle.
	waitFor(t, "teardown to idle", func() bool { return !s.IsPlaying(guild) })

	if !dialer.at(0).isDisconnected() {
		t.Fatal("stalled connection not destroyed")
	}
	waitFor(t, "resource to close", func() bool { return source.at(0).isClosed() })

	if s.Stop(guild) {
		t.Fatal("guild should be idle after failed reconnect")
	}
	if got := dialer.joinAttempts(); got != 3 {
		t.Fatalf("join attempts = %d, want 3 (initial plus two bounded redials)", got)
	}
	if source.count() != 1 {
		t.Fatalf("resolve count = %d, want 1", source.count())
	}
}
