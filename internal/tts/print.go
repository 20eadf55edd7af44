package tts

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Printer "speaks" by writing lines to w. It backs text mode and the shard.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

func NewPrinter(w io.Writer, prefix string) *Printer {
	return &Printer{w: w, prefix: prefix}
}

func (p *Printer) Speak(_ context.Context, text string) error {
	if text == "" {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := fmt.Fprintln(p.w, p.prefix+text)
	return err
}
