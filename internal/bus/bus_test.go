package bus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHub sends every message it receives back to the sender.
func echoHub(t *testing.T) string {
	t.Helper()

	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(kind, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialHub(t *testing.T) *Bus {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	b, err := Dial(ctx, echoHub(t))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestWriteRead(t *testing.T) {
	b := dialHub(t)

	out := &Message{From: "phone", To: "jarvis", Kind: KindAudio, Format: "ogg", Audio: []byte{1, 2, 3}}
	require.NoError(t, b.Write(out))
	assert.NotEmpty(t, out.ID)
	assert.False(t, out.At.IsZero())

	in, err := b.Read()
	require.NoError(t, err)
	assert.Equal(t, out.ID, in.ID)
	assert.Equal(t, "phone", in.From)
	assert.Equal(t, KindAudio, in.Kind)
	assert.Equal(t, "ogg", in.Format)
	assert.Equal(t, []byte{1, 2, 3}, in.Audio)
}

func TestPublisher(t *testing.T) {
	b := dialHub(t)

	NewPublisher(b, "jarvis").Publish("turn", map[string]any{"intent": "time"})

	in, err := b.Read()
	require.NoError(t, err)
	assert.Equal(t, KindEvent, in.Kind)
	assert.Equal(t, "jarvis", in.From)
	assert.Equal(t, `turn {"intent":"time"}`, in.Content)
}

func TestNilPublisher(t *testing.T) {
	var p *Publisher
	assert.NotPanics(t, func() { p.Publish("turn", nil) })
}

func TestDialBadURL(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/nothing")
	assert.Error(t, err)
}
