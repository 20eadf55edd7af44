// Package bus is the JSON-over-websocket client the shard uses to talk to
// the hub, plus a Publisher for assistant events.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	log "log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	KindText  = "text"
	KindAudio = "audio"
	KindReply = "reply"
	KindEvent = "event"
)

type Message struct {
	ID      string    `json:"id,omitempty"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Kind    string    `json:"kind"`
	Content string    `json:"content"`
	Format  string    `json:"format,omitempty"` // audio container hint
	Audio   []byte    `json:"audio,omitempty"`
	At      time.Time `json:"at,omitzero"`
}

type Bus struct {
	wmu  sync.Mutex
	conn *websocket.Conn
}

func Dial(ctx context.Context, wsURL string) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parse bus url: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial bus: %w", err)
	}

	log.Info("Connected to bus", "url", wsURL)
	return &Bus{conn: conn}, nil
}

func (b *Bus) Read() (*Message, error) {
	_, data, err := b.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode bus message: %w", err)
	}

	return &m, nil
}

func (b *Bus) Write(m *Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.At.IsZero() {
		m.At = time.Now()
	}

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	b.wmu.Lock()
	defer b.wmu.Unlock()
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

func (b *Bus) Close() error {
	return b.conn.Close()
}

// Publisher broadcasts assistant events (turns, state changes) on the bus.
// Write failures are logged; events are best effort.
type Publisher struct {
	bus  *Bus
	name string
}

func NewPublisher(b *Bus, name string) *Publisher {
	return &Publisher{bus: b, name: name}
}

func (p *Publisher) Publish(kind string, fields map[string]any) {
	if p == nil || p.bus == nil {
		return
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		log.Warn("Failed to encode event", "kind", kind, "err", err)
		return
	}

	m := &Message{
		From:    p.name,
		To:      "all",
		Kind:    KindEvent,
		Content: kind + " " + string(payload),
	}
	if err := p.bus.Write(m); err != nil {
		log.Warn("Failed to publish event", "kind", kind, "err", err)
	}
}
