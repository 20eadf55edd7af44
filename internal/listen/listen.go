// Package listen turns audio (or typed input) into one utterance per call.
package listen

import (
	"context"
	"math"
	"time"
)

// Listener returns one utterance. An empty string with a nil error means
// nothing was said before the listener gave up.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Source is a frame-by-frame audio input, mono float32 in [-1, 1].
type Source interface {
	SampleRate() int
	Stream(ctx context.Context, fn func(frame []float32) bool) error
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

// VAD is an energy gate: frames above Threshold RMS are speech, and an
// utterance ends after Hang of continuous silence.
type VAD struct {
	Threshold float64
	Hang      time.Duration
}

var DefaultVAD = VAD{Threshold: 0.015, Hang: 600 * time.Millisecond}

// RecordFor captures exactly d worth of audio, or less if ctx ends first.
func RecordFor(ctx context.Context, src Source, d time.Duration) ([]float32, error) {
	want := int(d.Seconds() * float64(src.SampleRate()))
	out := make([]float32, 0, want)

	err := src.Stream(ctx, func(frame []float32) bool {
		out = append(out, frame...)
		return len(out) < want
	})
	if len(out) > want {
		out = out[:want]
	}
	return out, err
}

// RecordUtterance waits for speech and captures it until the VAD hears
// enough silence or max elapses. It returns nil if no speech started.
func RecordUtterance(ctx context.Context, src Source, vad VAD, max time.Duration) ([]float32, error) {
	if vad.Threshold <= 0 {
		vad = DefaultVAD
	}

	var (
		rate     = float64(src.SampleRate())
		limit    = int(max.Seconds() * rate)
		hang     = int(vad.Hang.Seconds() * rate)
		seen     int
		silent   int
		speaking bool
		out      []float32
	)

	err := src.Stream(ctx, func(frame []float32) bool {
		seen += len(frame)

		if frameRMS(frame) > vad.Threshold {
			speaking = true
			silent = 0
			out = append(out, frame...)
		} else if speaking {
			silent += len(frame)
			out = append(out, frame...)
			if silent >= hang {
				return false
			}
		}
		return limit <= 0 || seen < limit
	})

	if !speaking {
		return nil, err
	}
	return out, err
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
