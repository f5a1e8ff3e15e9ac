// Package stream turns an MP3 body into 20ms Opus frames for a Discord
// voice connection: decode, resample to 48kHz stereo, apply the live
// volume gain, encode.
package stream

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"layeh.com/gopus"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
	maxOpus    = frameSize * channels * 2

	// sendStallTimeout bounds how long a single frame may wait on the
	// voice send channel before the connection is considered dead.
	sendStallTimeout = 5 * time.Second
)

var (
	// ErrStopped reports that the pump ended because the session was
	// stopped.
	ErrStopped = errors.New("playback stopped")

	// ErrSkipped reports that the pump ended because the current track
	// was skipped.
	ErrSkipped = errors.New("track skipped")

	// ErrSendStalled reports that the voice connection stopped
	// accepting frames; the session may try to reconnect and resume.
	ErrSendStalled = errors.New("voice send stalled")
)

// Volume is a live-adjustable linear gain shared between a playing
// resource and the session that owns the guild's volume setting.
type Volume struct {
	mu      sync.RWMutex
	percent int
}

// NewVolume creates a volume control at the given percentage (0-100).
func NewVolume(percent int) *Volume {
	v := &Volume{}
	v.SetPercent(percent)
	return v
}

// SetPercent clamps and stores the volume percentage.
func (v *Volume) SetPercent(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	v.mu.Lock()
	v.percent = percent
	v.mu.Unlock()
}

// Percent returns the stored volume percentage.
func (v *Volume) Percent() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.percent
}

func (v *Volume) gain() float64 {
	return float64(v.Percent()) / 100
}

// Resource is one playable audio stream. Pump blocks until the
// resource is exhausted (nil), stopped, skipped, or the connection
// stalls.
type Resource interface {
	Pump(send chan<- []byte, stop, skip <-chan struct{}) error
	Close() error
}

type mp3Resource struct {
	src     io.Closer
	decoded beep.StreamSeekCloser
	samples beep.Streamer
	vol     *Volume
	enc     *gopus.Encoder
}

// NewMP3Resource decodes an MP3 body into a playable resource with the
// given volume control. The resource owns body and closes it.
func NewMP3Resource(body io.ReadCloser, vol *Volume) (Resource, error) {
	decoded, format, err := mp3.Decode(body)
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	var samples beep.Streamer = decoded
	if format.SampleRate != sampleRate {
		samples = beep.Resample(4, format.SampleRate, sampleRate, decoded)
	}

	enc, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		decoded.Close()
		return nil, fmt.Errorf("failed to create Opus encoder: %w", err)
	}

	return &mp3Resource{
		src:     body,
		decoded: decoded,
		samples: samples,
		vol:     vol,
		enc:     enc,
	}, nil
}

func (r *mp3Resource) Pump(send chan<- []byte, stop, skip <-chan struct{}) error {
	frame := make([][2]float64, frameSize)
	pcm := make([]int16, frameSize*channels)

	stall := time.NewTimer(sendStallTimeout)
	defer stall.Stop()

	for {
		select {
		case <-stop:
			return ErrStopped
		case <-skip:
			return ErrSkipped
		default:
		}

		n, ok := r.samples.Stream(frame)
		if n == 0 && !ok {
			return nil // track finished
		}

		gain := r.vol.gain()
		for i := 0; i < frameSize; i++ {
			var left, right float64
			if i < n {
				left = frame[i][0] * gain
				right = frame[i][1] * gain
			}
			pcm[i*2] = clampSample(left)
			pcm[i*2+1] = clampSample(right)
		}

		opus, err := r.enc.Encode(pcm, frameSize, maxOpus)
		if err != nil {
			return fmt.Errorf("opus encode error: %w", err)
		}

		if !stall.Stop() {
			select {
			case <-stall.C:
			default:
			}
		}
		stall.Reset(sendStallTimeout)

		select {
		case send <- opus:
		case <-stop:
			return ErrStopped
		case <-skip:
			return ErrSkipped
		case <-stall.C:
			return ErrSendStalled
		}
	}
}

func (r *mp3Resource) Close() error {
	err := r.decoded.Close()
	if cerr := r.src.Close(); err == nil {
		err = cerr
	}
	return err
}

func clampSample(f float64) int16 {
	if f > 1 {
		f = 1
	}
	if f < -1 {
		f = -1
	}
	return int16(f * 32767)
}
