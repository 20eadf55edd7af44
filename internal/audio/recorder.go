package audio

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

const (
	SampleRate = 16000
	FrameSize  = 320 // 20ms
)

// Recorder reads mono 16 kHz frames from the default input device.
type Recorder struct {
	frameSize int
}

func NewRecorder() *Recorder { return &Recorder{frameSize: FrameSize} }

func (r *Recorder) Init() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	return nil
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

func (r *Recorder) SampleRate() int { return SampleRate }

// Stream hands each captured frame to fn until fn returns false or ctx is
// done. The frame slice is reused between calls.
func (r *Recorder) Stream(ctx context.Context, fn func(frame []float32) bool) error {
	buf := make([]float32, r.frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	defer stream.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := stream.Read(); err != nil {
			return fmt.Errorf("read stream: %w", err)
		}
		if !fn(buf) {
			return nil
		}
	}
}
