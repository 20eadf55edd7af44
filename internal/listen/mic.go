package listen

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"
)

type Mode int

const (
	// Window records a fixed slice of audio; used for wake polling.
	Window Mode = iota
	// Utterance records one VAD-delimited command.
	Utterance
)

type MicOptions struct {
	Mode     Mode
	Duration time.Duration // window length, or the utterance cap
	VAD      VAD
}

// Mic records from a Source and transcribes the result.
type Mic struct {
	src Source
	tr  Transcriber
	opt MicOptions
}

func NewMic(src Source, tr Transcriber, opt MicOptions) *Mic {
	if opt.Duration <= 0 {
		opt.Duration = 2 * time.Second
		if opt.Mode == Utterance {
			opt.Duration = 8 * time.Second
		}
	}
	return &Mic{src: src, tr: tr, opt: opt}
}

func (m *Mic) Listen(ctx context.Context) (string, error) {
	var (
		pcm []float32
		err error
	)
	switch m.opt.Mode {
	case Utterance:
		pcm, err = RecordUtterance(ctx, m.src, m.opt.VAD, m.opt.Duration)
	default:
		pcm, err = RecordFor(ctx, m.src, m.opt.Duration)
	}
	if err != nil {
		return "", fmt.Errorf("record: %w", err)
	}
	if len(pcm) == 0 {
		return "", nil
	}

	log.Debug("Recorded", "samples", len(pcm))

	text, err := m.tr.Transcribe(ctx, pcm)
	if errors.Is(err, context.DeadlineExceeded) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return CleanTranscript(text), nil
}
