package ipc

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, handler Handler) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	path := filepath.Join(t.TempDir(), "jarvis.sock")
	s, err := Listen(ctx, path, handler)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return path
}

func TestSayRoundTrip(t *testing.T) {
	path := serve(t, func(_ context.Context, msg ControlMessage) Reply {
		if msg.Cmd != CmdSay {
			return Reply{Error: "unknown command"}
		}
		return Reply{OK: true, Text: "you said " + msg.Text}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := Send(ctx, path, ControlMessage{Cmd: CmdSay, Text: "hello"})
	require.NoError(t, err)
	assert.True(t, reply.OK)
	assert.Equal(t, "you said hello", reply.Text)
}

func TestSendCommand(t *testing.T) {
	got := make(chan string, 2)
	path := serve(t, func(_ context.Context, msg ControlMessage) Reply {
		got <- msg.Cmd
		if msg.Cmd == CmdTrigger {
			return Reply{OK: true}
		}
		return Reply{Error: "unknown command: " + msg.Cmd}
	})

	ctx := context.Background()
	require.NoError(t, SendCommand(ctx, path, CmdTrigger))
	assert.Equal(t, CmdTrigger, <-got)

	err := SendCommand(ctx, path, "dance")
	assert.EqualError(t, err, "unknown command: dance")
}

func TestSendNoDaemon(t *testing.T) {
	_, err := Send(context.Background(), filepath.Join(t.TempDir(), "missing.sock"), ControlMessage{Cmd: CmdTrigger})
	assert.Error(t, err)
}
