// Package shard answers text and audio requests arriving over the bus with
// the assistant core.
package shard

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"jarvis/internal/assistant"
	"jarvis/internal/bus"
	"jarvis/internal/listen"
)

const (
	NoAudio      = "I can't process audio on this shard."
	maxClipSecs  = 60
	clipRate     = 16000
	maxReconnect = 2 * time.Minute
)

// Conn is a bus connection; *bus.Bus implements it.
type Conn interface {
	Read() (*bus.Message, error)
	Write(m *bus.Message) error
	Close() error
}

type Responder interface {
	Respond(ctx context.Context, text string) (string, bool)
}

// Decoder turns an encoded clip into 16 kHz mono PCM.
type Decoder func(ctx context.Context, data []byte, format string) ([]float32, error)

type Options struct {
	Name      string
	Responder Responder
	// Transcriber and Decoder are both needed for audio messages.
	Transcriber listen.Transcriber
	Decoder     Decoder
	// Dial reconnects after the bus drops. Nil makes Run return instead.
	Dial func(ctx context.Context) (Conn, error)
}

type Shard struct {
	opt Options
}

func New(opt Options) *Shard {
	if opt.Name == "" {
		opt.Name = "jarvis"
	}
	return &Shard{opt: opt}
}

// Run answers messages until ctx is done.
func (s *Shard) Run(ctx context.Context, conn Conn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	log.Info("Shard ready", "name", s.opt.Name)
	for {
		msg, err := conn.Read()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if s.opt.Dial == nil {
				return fmt.Errorf("read bus: %w", err)
			}
			log.Error("Bus read failed, reconnecting", "err", err)
			if conn, err = s.reconnect(ctx); err != nil {
				return err
			}
			go func(c Conn) {
				<-ctx.Done()
				c.Close()
			}(conn)
			continue
		}

		reply := s.Handle(ctx, msg)
		if reply == nil {
			continue
		}
		if err := conn.Write(reply); err != nil {
			log.Error("Failed to send reply", "to", reply.To, "err", err)
		}
	}
}

func (s *Shard) reconnect(ctx context.Context) (Conn, error) {
	var conn Conn

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxReconnect

	err := backoff.RetryNotify(func() error {
		c, err := s.opt.Dial(ctx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		log.Warn("Bus dial failed", "err", err, "retry_in", wait)
	})
	if err != nil {
		return nil, fmt.Errorf("reconnect bus: %w", err)
	}
	return conn, nil
}

// Handle answers one message. Messages not addressed to the shard, its own
// messages and non-request kinds yield nil.
func (s *Shard) Handle(ctx context.Context, msg *bus.Message) *bus.Message {
	if strings.EqualFold(msg.From, s.opt.Name) {
		return nil
	}
	if msg.To != "" && !strings.EqualFold(msg.To, s.opt.Name) {
		return nil
	}

	var text string
	switch {
	case msg.Kind == bus.KindAudio || len(msg.Audio) > 0:
		t, err := s.transcribe(ctx, msg)
		if errors.Is(err, errNoAudio) {
			return s.reply(msg, NoAudio)
		}
		if err != nil {
			log.Error("Failed to transcribe bus audio", "from", msg.From, "err", err)
			return s.reply(msg, assistant.NotHeard)
		}
		text = t
	case msg.Kind == bus.KindText || msg.Kind == "":
		text = strings.TrimSpace(msg.Content)
	default:
		return nil
	}

	if text == "" {
		return s.reply(msg, assistant.NotHeard)
	}

	log.Info("Bus request", "from", msg.From, "text", text)
	answer, _ := s.opt.Responder.Respond(ctx, text)
	return s.reply(msg, answer)
}

var errNoAudio = errors.New("audio not supported")

func (s *Shard) transcribe(ctx context.Context, msg *bus.Message) (string, error) {
	if s.opt.Transcriber == nil || s.opt.Decoder == nil {
		return "", errNoAudio
	}

	pcm, err := s.opt.Decoder(ctx, msg.Audio, msg.Format)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(pcm) > maxClipSecs*clipRate {
		pcm = pcm[:maxClipSecs*clipRate]
	}

	text, err := s.opt.Transcriber.Transcribe(ctx, pcm)
	if err != nil {
		return "", err
	}
	return listen.CleanTranscript(text), nil
}

func (s *Shard) reply(to *bus.Message, content string) *bus.Message {
	return &bus.Message{
		From:    s.opt.Name,
		To:      to.From,
		Kind:    bus.KindReply,
		Content: content,
	}
}
