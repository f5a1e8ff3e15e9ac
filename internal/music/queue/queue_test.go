package queue

import (
	"sort"
	"testing"

	"maplebgm-bot/internal/maple"
)

const guild = "g1"

func track(id int64) maple.Track {
	return maple.Track{MapID: id, MapName: "Map", StreetName: "Street", Region: "gms", Version: "253"}
}

func fill(c *Coordinator, ids ...int64) {
	for _, id := range ids {
		c.Enqueue(guild, track(id), "u1")
	}
}

func ids(entries []Entry) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.Track.MapID
	}
	return out
}

func equal(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDequeueFIFO(t *testing.T) {
	c := NewCoordinator()
	fill(c, 1, 2, 3)

	for _, want := range []int64{1, 2, 3} {
		e := c.DequeueNext(guild, LoopNone)
		if e == nil || e.Track.MapID != want {
			t.Fatalf("got %+v, want map %d", e, want)
		}
	}
	if e := c.DequeueNext(guild, LoopNone); e != nil {
		t.Fatalf("drained queue returned %+v", e)
	}
}

func TestDequeueQueueLoopRotates(t *testing.T) {
	c := NewCoordinator()
	fill(c, 1, 2, 3)

	e := c.DequeueNext(guild, LoopQueue)
	if e == nil || e.Track.MapID != 1 {
		t.Fatalf("first dequeue = %+v, want map 1", e)
	}
	if got := ids(c.List(guild)); !equal(got, []int64{2, 3, 1}) {
		t.Fatalf("after one rotation queue = %v, want [2 3 1]", got)
	}

	// Two more rotations return 2 and 3 and cycle the queue back.
	for _, want := range []int64{2, 3} {
		e := c.DequeueNext(guild, LoopQueue)
		if e == nil || e.Track.MapID != want {
			t.Fatalf("got %+v, want map %d", e, want)
		}
	}
	if got := ids(c.List(guild)); !equal(got, []int64{1, 2, 3}) {
		t.Fatalf("after full cycle queue = %v, want [1 2 3]", got)
	}
	if c.Len(guild) != 3 {
		t.Fatalf("queue shrank to %d under queue loop", c.Len(guild))
	}
}

func TestRemoveAt(t *testing.T) {
	c := NewCoordinator()
	fill(c, 1, 2)

	if e := c.RemoveAt(guild, 5); e != nil {
		t.Fatalf("out-of-range remove returned %+v", e)
	}
	if got := ids(c.List(guild)); !equal(got, []int64{1, 2}) {
		t.Fatalf("queue mutated by failed remove: %v", got)
	}

	e := c.RemoveAt(guild, 0)
	if e == nil || e.Track.MapID != 1 {
		t.Fatalf("remove = %+v, want map 1", e)
	}
	if got := ids(c.List(guild)); !equal(got, []int64{2}) {
		t.Fatalf("queue = %v, want [2]", got)
	}
}

func TestMove(t *testing.T) {
	c := NewCoordinator()
	fill(c, 1, 2, 3, 4)

	if !c.Move(guild, 0, 2) {
		t.Fatal("valid move should succeed")
	}
	if got := ids(c.List(guild)); !equal(got, []int64{2, 3, 1, 4}) {
		t.Fatalf("after move queue = %v, want [2 3 1 4]", got)
	}

	// Moving the element back restores the original order.
	if !c.Move(guild, 2, 0) {
		t.Fatal("inverse move should succeed")
	}
	if got := ids(c.List(guild)); !equal(got, []int64{1, 2, 3, 4}) {
		t.Fatalf("inverse move did not restore order: %v", got)
	}

	if c.Move(guild, 0, 9) || c.Move(guild, 9, 0) {
		t.Fatal("out-of-range move should report false")
	}
}

func TestMoveSameIndexIsNoop(t *testing.T) {
	c := NewCoordinator()
	fill(c, 1, 2, 3)

	if !c.Move(guild, 1, 1) {
		t.Fatal("same-index move should succeed")
	}
	if got := ids(c.List(guild)); !equal(got, []int64{1, 2, 3}) {
		t.Fatalf("same-index move changed queue: %v", got)
	}
}

func TestShufflePreservesMultiset(t *testing.T) {
	c := NewCoordinator()
	fill(c, 1, 2, 3, 4, 5, 6, 7, 8)

	if !c.Shuffle(guild) {
		t.Fatal("shuffle of 8 entries should succeed")
	}

	got := ids(c.List(guild))
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if !equal(got, []int64{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Fatalf("shuffle changed the multiset: %v", got)
	}
}

func TestShuffleTooShort(t *testing.T) {
	c := NewCoordinator()

	if c.Shuffle(guild) {
		t.Fatal("shuffle of empty queue should report false")
	}
	fill(c, 1)
	if c.Shuffle(guild) {
		t.Fatal("shuffle of single entry should report false")
	}
	if got := ids(c.List(guild)); !equal(got, []int64{1}) {
		t.Fatalf("failed shuffle changed queue: %v", got)
	}
}

func TestClear(t *testing.T) {
	c := NewCoordinator()

	if c.Clear(guild) {
		t.Fatal("clear of absent queue should report false")
	}
	fill(c, 1, 2)
	if !c.Clear(guild) {
		t.Fatal("clear of populated queue should succeed")
	}
	if c.Len(guild) != 0 {
		t.Fatal("queue not empty after clear")
	}
}

func TestPosition(t *testing.T) {
	c := NewCoordinator()
	fill(c, 10, 20, 30)

	if pos, ok := c.Position(guild, 20); !ok || pos != 2 {
		t.Fatalf("position = %d/%v, want 2/true", pos, ok)
	}
	if _, ok := c.Position(guild, 99); ok {
		t.Fatal("absent track should report false")
	}
}

func TestEnqueueReportsPosition(t *testing.T) {
	c := NewCoordinator()

	if pos := c.Enqueue(guild, track(1), "u1"); pos != 1 {
		t.Fatalf("first enqueue position = %d, want 1", pos)
	}
	if pos := c.Enqueue(guild, track(2), "u2"); pos != 2 {
		t.Fatalf("second enqueue position = %d, want 2", pos)
	}
	if got := c.List(guild); got[1].RequestedBy != "u2" {
		t.Fatalf("requester not recorded: %+v", got[1])
	}
}

func TestGuildIsolation(t *testing.T) {
	c := NewCoordinator()
	fill(c, 1)
	c.Enqueue("other", track(9), "u1")

	if c.Len(guild) != 1 || c.Len("other") != 1 {
		t.Fatal("queues leaked across guilds")
	}
	c.Clear(guild)
	if c.Len("other") != 1 {
		t.Fatal("clear affected another guild")
	}
}

func TestParseLoopMode(t *testing.T) {
	cases := map[string]LoopMode{"none": LoopNone, "Song": LoopSong, "QUEUE": LoopQueue}
	for in, want := range cases {
		got, ok := ParseLoopMode(in)
		if !ok || got != want {
			t.Errorf("ParseLoopMode(%q) = %v/%v, want %v/true", in, got, ok, want)
		}
	}
	if _, ok := ParseLoopMode("forever"); ok {
		t.Error("unknown mode should report false")
	}
}
