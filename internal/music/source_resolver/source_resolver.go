// Package source_resolver bridges the map catalog and the audio
// pipeline: it fetches a track's BGM over HTTP and wraps the body in a
// playable resource.
package source_resolver

import (
	"context"
	"io"

	"maplebgm-bot/internal/maple"
	"maplebgm-bot/internal/music/stream"
)

// BGMStreamer is the slice of the maple client the resolver needs.
type BGMStreamer interface {
	BGMStream(ctx context.Context, mapID int64) (io.ReadCloser, error)
}

type Resolver struct {
	api BGMStreamer
}

func New(api BGMStreamer) *Resolver {
	return &Resolver{api: api}
}

// Resolve fetches the track's BGM and returns a resource pumping it at
// the given volume. Each call opens a fresh stream, so a looped song is
// re-fetched from the start rather than seeked.
func (r *Resolver) Resolve(ctx context.Context, track maple.Track, vol *stream.Volume) (stream.Resource, error) {
	body, err := r.api.BGMStream(ctx, track.MapID)
	if err != nil {
		return nil, err
	}
	return stream.NewMP3Resource(body, vol)
}
