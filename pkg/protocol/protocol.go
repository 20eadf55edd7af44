// Package protocol speaks the colon-framed device protocol
// TO:VERB:NOUN[:ARGS...]:FROM over a websocket hub.
package protocol

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

var (
	ErrTimeout = errors.New("no reply before timeout")
	ErrClosed  = errors.New("protocol closed")
)

type Config struct {
	Shard     string
	URL       string
	Reconnect time.Duration // pause between reconnect attempts
	Timeout   time.Duration // Request deadline when ctx has none
	// OnFrame receives frames addressed to us that answer no request.
	OnFrame func(*Message)
}

type waiter struct {
	from string
	ch   chan *Message
}

type Protocol struct {
	ws      *WebSocket
	shard   string
	timeout time.Duration
	onFrame func(*Message)

	mu      sync.Mutex
	waiters []*waiter
}

func Dial(ctx context.Context, cfg Config) (*Protocol, error) {
	if cfg.Shard == "" {
		return nil, errors.New("empty shard name")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	ws, err := DialWebSocket(ctx, cfg.URL, cfg.Reconnect)
	if err != nil {
		return nil, err
	}

	return &Protocol{
		ws:      ws,
		shard:   strings.ToUpper(cfg.Shard),
		timeout: cfg.Timeout,
		onFrame: cfg.OnFrame,
	}, nil
}

func (p *Protocol) Shard() string { return p.shard }

// Send writes one frame with our shard as the sender.
func (p *Protocol) Send(m Message) error {
	m.From = p.shard
	line := m.String()
	if _, err := Parse(line); err != nil {
		return fmt.Errorf("refusing to send %q: %w", line, err)
	}
	if err := p.ws.Write([]byte(line)); err != nil {
		return fmt.Errorf("transmit %q: %w", line, err)
	}
	return nil
}

// Request sends a frame to m.To and waits for the first frame that node
// sends back to us. Run must be active to deliver the reply.
func (p *Protocol) Request(ctx context.Context, m Message) (*Message, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	w := p.addWaiter(strings.ToUpper(m.To))
	defer p.removeWaiter(w)

	if err := p.Send(m); err != nil {
		return nil, err
	}

	select {
	case reply := <-w.ch:
		return reply, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s %s %s: %w", m.To, m.Verb, m.Noun, ErrTimeout)
		}
		return nil, ctx.Err()
	}
}

// Run reads frames until ctx is done, reconnecting when the hub drops us.
func (p *Protocol) Run(ctx context.Context) error {
	for {
		in := p.ws.Read()

		switch in.kind {
		case connClosed:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("Hub connection lost, reconnecting", "url", p.ws.url)
			if err := p.ws.Reconnect(ctx); err != nil {
				return err
			}
			log.Info("Reconnected to hub", "url", p.ws.url)

		case readFailed:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("Failed to read frame", "err", in.err)

		case readOK:
			p.deliver(string(in.msg))
		}
	}
}

func (p *Protocol) Close() error {
	return p.ws.Close()
}

func (p *Protocol) deliver(line string) {
	msg, err := Parse(line)
	if err != nil {
		log.Warn("Failed to parse frame", "msg", line, "err", err)
		return
	}
	if msg.To != p.shard && msg.To != "ALL" {
		return
	}

	p.mu.Lock()
	for i, w := range p.waiters {
		if w.from == msg.From {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()
			w.ch <- msg
			return
		}
	}
	p.mu.Unlock()

	if p.onFrame != nil {
		p.onFrame(msg)
	}
}

func (p *Protocol) addWaiter(from string) *waiter {
	w := &waiter{from: from, ch: make(chan *Message, 1)}
	p.mu.Lock()
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()
	return w
}

func (p *Protocol) removeWaiter(w *waiter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, x := range p.waiters {
		if x == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

// Parse validates one frame. Verb and noun are upper-cased.
func Parse(line string) (*Message, error) {
	s := strings.TrimSpace(line)
	if s == "" {
		return nil, errors.New("empty message")
	}
	if strings.ContainsAny(s, " \t\r\n") {
		return nil, errors.New("invalid whitespace present")
	}
	parts := strings.Split(s, ":")
	if len(parts) < 4 {
		return nil, fmt.Errorf("too few fields: got %d, want >= 4", len(parts))
	}

	to := parts[0]
	verb := parts[1]
	noun := parts[2]
	from := parts[len(parts)-1]
	args := append([]string(nil), parts[3:len(parts)-1]...)

	if !isToken(to) && !isHexID(to) && to != "ALL" {
		return nil, fmt.Errorf("invalid TO token: %q", to)
	}
	if !isToken(from) && !isHexID(from) {
		return nil, fmt.Errorf("invalid FROM token: %q", from)
	}
	if !isToken(noun) || !isToken(verb) {
		return nil, fmt.Errorf("invalid NOUN/VERB: %q %q", noun, verb)
	}
	for i, a := range args {
		if !isToken(a) {
			return nil, fmt.Errorf("invalid ARG[%d]: %q", i, a)
		}
	}

	return &Message{
		To:   strings.ToUpper(to),
		Verb: strings.ToUpper(verb),
		Noun: strings.ToUpper(noun),
		Args: args,
		From: strings.ToUpper(from),
	}, nil
}

var (
	tokenRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	hexIDRe = regexp.MustCompile(`^[0-9A-F]{2}$`)
)

func isToken(s string) bool {
	return tokenRe.MatchString(s)
}

func isHexID(s string) bool {
	return hexIDRe.MatchString(strings.ToUpper(s))
}

type Message struct {
	To   string
	Verb string
	Noun string
	Args []string
	From string
}

func (m Message) String() string {
	parts := make([]string, 0, 4+len(m.Args))
	parts = append(parts, m.To, m.Verb, m.Noun)
	parts = append(parts, m.Args...)
	parts = append(parts, m.From)
	return strings.Join(parts, ":")
}

func (m Message) IsError() bool { return m.Verb == "ERR" }

// Reply builds the answer to m from its recipient.
func (m Message) Reply(verb, noun string, args ...string) Message {
	return Message{To: m.From, Verb: verb, Noun: noun, Args: args, From: m.To}
}
