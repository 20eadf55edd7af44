package protocol

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		line string
		want *Message
		err  bool
	}{
		{line: "vertex:on:lamp:jarvis", want: &Message{To: "VERTEX", Verb: "ON", Noun: "LAMP", From: "JARVIS"}},
		{line: "VERTEX:SET:FAN:3:JARVIS", want: &Message{To: "VERTEX", Verb: "SET", Noun: "FAN", Args: []string{"3"}, From: "JARVIS"}},
		{line: "ALL:PING:HUB:0A", want: &Message{To: "ALL", Verb: "PING", Noun: "HUB", From: "0A"}},
		{line: "", err: true},
		{line: "A:B:C", err: true},
		{line: "A:B C:D:E", err: true},
		{line: "A:B:C:$:E", err: true},
	}

	for _, c := range cases {
		t.Run(c.line, func(t *testing.T) {
			got, err := Parse(c.line)
			if c.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestMessageString(t *testing.T) {
	m := Message{To: "VERTEX", Verb: "SET", Noun: "FAN", Args: []string{"3"}, From: "JARVIS"}
	assert.Equal(t, "VERTEX:SET:FAN:3:JARVIS", m.String())

	r := m.Reply("OK", "FAN")
	assert.Equal(t, "JARVIS:OK:FAN:VERTEX", r.String())
	assert.False(t, r.IsError())
}

// hub answers every frame with handle's result; an empty result means no reply.
func hub(t *testing.T, handle func(*Message) string) string {
	t.Helper()

	up := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := Parse(string(data))
			if err != nil {
				continue
			}
			if out := handle(msg); out != "" {
				if err := conn.WriteMessage(ws.TextMessage, []byte(out)); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, onFrame func(*Message)) (*Protocol, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	p, err := Dial(ctx, Config{Shard: "jarvis", URL: url, Timeout: 200 * time.Millisecond, OnFrame: onFrame})
	require.NoError(t, err)

	go p.Run(ctx)
	t.Cleanup(func() {
		cancel()
		p.Close()
	})
	return p, cancel
}

func TestRequestReply(t *testing.T) {
	url := hub(t, func(m *Message) string {
		return m.Reply("OK", m.Noun).String()
	})
	p, _ := dial(t, url, nil)

	reply, err := p.Request(context.Background(), Message{To: "VERTEX", Verb: "ON", Noun: "LAMP"})
	require.NoError(t, err)
	assert.Equal(t, "OK", reply.Verb)
	assert.Equal(t, "LAMP", reply.Noun)
	assert.Equal(t, "VERTEX", reply.From)
	assert.Equal(t, "JARVIS", reply.To)
}

func TestRequestTimeout(t *testing.T) {
	url := hub(t, func(*Message) string { return "" })
	p, _ := dial(t, url, nil)

	_, err := p.Request(context.Background(), Message{To: "VERTEX", Verb: "ON", Noun: "LAMP"})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestUnsolicitedFrame(t *testing.T) {
	url := hub(t, func(m *Message) string {
		// Announce from a node nobody asked.
		return Message{To: "JARVIS", Verb: "EVT", Noun: "DOOR", From: "PORCH"}.String()
	})

	got := make(chan *Message, 1)
	p, _ := dial(t, url, func(m *Message) { got <- m })

	require.NoError(t, p.Send(Message{To: "VERTEX", Verb: "PING", Noun: "HUB"}))

	select {
	case m := <-got:
		assert.Equal(t, "PORCH", m.From)
		assert.Equal(t, "DOOR", m.Noun)
	case <-time.After(2 * time.Second):
		t.Fatal("frame not delivered")
	}
}

func TestSendRejectsInvalid(t *testing.T) {
	url := hub(t, func(*Message) string { return "" })
	p, _ := dial(t, url, nil)

	assert.Error(t, p.Send(Message{To: "VERTEX", Verb: "turn on", Noun: "LAMP"}))
}
