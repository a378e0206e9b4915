package hub

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnection_Lifecycle(t *testing.T) {
	stream := newFakeStream()
	conn := NewConnection("c1", TransportSSE, TopicSet{}, stream, &mockLogger{})
	assert.Equal(t, StateConnecting, conn.State())

	require.NoError(t, conn.activate())
	assert.Equal(t, StateActive, conn.State())

	conn.Close(nil)
	select {
	case <-conn.Done():
	default:
		t.Fatal("done should be closed once closing starts")
	}
	assert.Contains(t, []State{StateClosing, StateClosed}, conn.State())

	waitClosed(t, conn)
	assert.Equal(t, StateClosed, conn.State())
	assert.True(t, stream.IsClosed())
	assert.NoError(t, conn.Err())
}

func TestConnection_CloseBeforeActivateReleasesStream(t *testing.T) {
	stream := newFakeStream()
	conn := NewConnection("c1", TransportSSE, TopicSet{}, stream, &mockLogger{})

	conn.Close(ErrHubNotRunning)

	waitClosed(t, conn)
	assert.True(t, stream.IsClosed())
	assert.ErrorIs(t, conn.activate(), ErrConnectionNotActive)
}

func TestConnection_CloseKeepsFirstReason(t *testing.T) {
	conn, _ := newActiveConnection(t, "c1", TopicSet{})

	conn.Close(ErrSlowConsumer)
	conn.Close(ErrHubStopped)

	assert.ErrorIs(t, conn.Err(), ErrSlowConsumer)
}

func TestConnection_EnqueueAfterCloseFails(t *testing.T) {
	conn, stream := newActiveConnection(t, "c1", TopicSet{})
	conn.Close(nil)
	waitClosed(t, conn)

	assert.ErrorIs(t, conn.Enqueue(HeartbeatFrame()), ErrConnectionClosed)
	assert.Equal(t, 0, stream.Writes())
}

func TestConnection_EnqueueReportsSlowConsumer(t *testing.T) {
	stream := newFakeStream()
	stream.gate = make(chan struct{})
	defer close(stream.gate)

	conn := NewConnection("slow", TransportSSE, TopicSet{}, stream, &mockLogger{}, WithBufferSize(2))
	require.NoError(t, conn.activate())
	defer conn.Close(nil)

	var err error
	for i := 0; i < 10 && err == nil; i++ {
		err = conn.Enqueue(HeartbeatFrame())
	}
	assert.ErrorIs(t, err, ErrSlowConsumer)
}

func TestConnection_WriteFailureClosesConnection(t *testing.T) {
	stream := newFakeStream()
	stream.failErr = errors.New("broken pipe")

	conn := NewConnection("c1", TransportSSE, TopicSet{}, stream, &mockLogger{})
	require.NoError(t, conn.activate())
	require.NoError(t, conn.Enqueue(HeartbeatFrame()))

	waitClosed(t, conn)
	assert.ErrorIs(t, conn.Err(), ErrWriteFailed)
	assert.True(t, stream.IsClosed())
}

func TestConnection_TracksWriteTimes(t *testing.T) {
	conn, stream := newActiveConnection(t, "c1", TopicSet{})
	assert.True(t, conn.LastHeartbeatAt().IsZero())

	require.NoError(t, conn.Enqueue(HeartbeatFrame()))
	require.Eventually(t, func() bool { return stream.Heartbeats() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !conn.LastHeartbeatAt().IsZero() }, time.Second, 5*time.Millisecond)

	info := conn.Info()
	assert.Equal(t, "c1", info.ID)
	assert.Equal(t, []string{"*"}, info.Topics)
	assert.Equal(t, "active", info.State)
}
