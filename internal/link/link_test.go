package link

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rgoulter/bhtlink/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeTransport adapts a net.Conn half of an in-memory pipe to Transport.
type pipeTransport struct {
	net.Conn
}

func newPipeDialer(server net.Conn) Dialer {
	return func(address string, port int) (Transport, error) {
		return pipeTransport{server}, nil
	}
}

func TestEngineDispatchesDecodedFrames(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()

	received := make(chan wire.Message, 1)
	cfg := DefaultConfig()
	cfg.LifesignInterval = time.Hour // keep the test deterministic, no lifesign noise
	e := NewEngine(cfg, newPipeDialer(serverSide), nil, func(m wire.Message) {
		received <- m
	})

	go e.Run(context.Background())
	defer e.Stop()

	encoded := wire.Encode(wire.NewMessage(wire.GetSerialNumber, []byte("SN1")))
	_, err := clientSide.Write(encoded)
	require.NoError(t, err)

	select {
	case m := <-received:
		assert.Equal(t, wire.GetSerialNumber, m.MsgID)
		assert.Equal(t, []byte("SN1"), m.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatched message")
	}
}

func TestEngineSendsEnqueuedMessages(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()

	cfg := DefaultConfig()
	cfg.LifesignInterval = time.Hour
	e := NewEngine(cfg, newPipeDialer(serverSide), nil, func(wire.Message) {})

	go e.Run(context.Background())
	defer e.Stop()

	e.Enqueue(wire.NewMessage(wire.GetRTCDateTime, nil))

	buf := make([]byte, 64)
	clientSide.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := clientSide.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, wire.Encode(wire.NewMessage(wire.GetRTCDateTime, nil)), buf[:n])
}

func TestEngineReconnectsAfterTransportError(t *testing.T) {
	attempts := 0
	var lastServer net.Conn
	dial := func(address string, port int) (Transport, error) {
		attempts++
		client, server := net.Pipe()
		lastServer = server
		go func() {
			// simulate the peer hanging up shortly after connecting
			time.Sleep(30 * time.Millisecond)
			client.Close()
		}()
		return pipeTransport{server}, nil
	}

	cfg := DefaultConfig()
	cfg.LifesignInterval = time.Hour
	cfg.ReconnectBackoff = 10 * time.Millisecond
	e := NewEngine(cfg, dial, nil, func(wire.Message) {})

	go e.Run(context.Background())
	defer func() {
		e.Stop()
		_ = lastServer
	}()

	time.Sleep(200 * time.Millisecond)
	assert.GreaterOrEqual(t, attempts, 2)
}

func TestEngineStopIsIdempotentAndReachesStoppedState(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer clientSide.Close()

	e := NewEngine(DefaultConfig(), newPipeDialer(serverSide), nil, func(wire.Message) {})
	go e.Run(context.Background())

	e.Stop()
	e.Stop() // must not panic or deadlock
	assert.Equal(t, Stopped, e.State())
}

var _ io.ReadWriteCloser = pipeTransport{}
