package connectionmanager

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/gearbroker.net/internal/tcp/codec"
	"gitlab.com/gearbroker.net/internal/tcp/defs"
)

type mockLogger struct{}

func (mockLogger) Debug(string, ...interface{}) {}
func (mockLogger) Info(string, ...interface{})  {}
func (mockLogger) Warn(string, ...interface{})  {}
func (mockLogger) Error(string, ...interface{}) {}

func TestSessionWritesQueuedPacketsInOrder(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	s := NewSession(server, mockLogger{})
	errCh := make(chan error, 1)
	go func() { errCh <- s.WriteLoop() }()

	s.Send(defs.NewResponse(defs.JobCreated, map[string]string{"job": "1"}, nil))
	s.Send(defs.NewResponse(defs.Noop, nil, nil))
	s.Send(defs.NewText("OK\n"))
	s.Drain()

	dec := codec.NewDecoder(client, 0)
	first, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, defs.JobCreated, first.Type)
	assert.Equal(t, "1", first.Arg("job"))

	second, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, defs.Noop, second.Type)

	third, err := dec.Decode()
	require.NoError(t, err)
	assert.Equal(t, "OK", third.Text())

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("write loop did not stop after drain")
	}
}

func TestSessionSendAfterCloseIsDiscarded(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	s := NewSession(server, mockLogger{})
	require.NoError(t, s.Close())
	assert.NotPanics(t, func() {
		s.Send(defs.NewResponse(defs.Noop, nil, nil))
	})
	assert.NoError(t, s.Close())
	assert.NoError(t, s.WriteLoop())
}

func TestConnectionManagerRegistry(t *testing.T) {
	cm := NewConnectionManager(mockLogger{})
	a, _ := net.Pipe()
	b, _ := net.Pipe()

	sa := cm.Open(a)
	sb := cm.Open(b)
	cm.Register("a", sa)
	cm.Register("b", sb)
	assert.Equal(t, 2, cm.Count())

	got, ok := cm.Get("a")
	require.True(t, ok)
	assert.Same(t, sa, got)

	cm.Remove("a")
	_, ok = cm.Get("a")
	assert.False(t, ok)

	assert.NoError(t, cm.CloseAll())
}
