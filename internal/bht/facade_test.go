package bht

import (
	"context"
	"testing"
	"time"

	"github.com/rgoulter/bhtlink/internal/link"
	"github.com/rgoulter/bhtlink/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noopDialer never succeeds; these tests drive the façade without ever
// requiring a live engine connection since call() only needs Enqueue to
// accept a send and dispatch() to be invoked manually.
func noopDialer(string, int) (link.Transport, error) {
	select {} // never called in these tests
}

func newTestFacade(t *testing.T) *Facade {
	t.Helper()
	eng := link.NewEngine(link.DefaultConfig(), noopDialer, nil, nil)
	return New(eng, nil, 200*time.Millisecond)
}

func TestCallResolvesOnMatchingReply(t *testing.T) {
	f := newTestFacade(t)

	done := make(chan struct{})
	var got wire.Message
	var callErr error
	go func() {
		got, callErr = f.call(context.Background(), wire.GetSerialNumber, nil)
		close(done)
	}()

	// give call() a moment to register the pending slot, then simulate the
	// device's reply arriving via dispatch
	time.Sleep(20 * time.Millisecond)
	f.dispatch(wire.Message{MsgID: wire.GetSerialNumber, Payload: []byte("ABC"), Fin: wire.ACK})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("call() did not return")
	}
	require.NoError(t, callErr)
	assert.Equal(t, []byte("ABC"), got.Payload)
}

func TestCallFailsOnNak(t *testing.T) {
	f := newTestFacade(t)

	done := make(chan struct{})
	var callErr error
	go func() {
		_, callErr = f.call(context.Background(), wire.GetSerialNumber, nil)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	f.dispatch(wire.Message{MsgID: wire.GetSerialNumber, Payload: nil, Fin: wire.NAK})

	<-done
	assert.Error(t, callErr)
}

func TestCallTimesOutWithoutReply(t *testing.T) {
	f := newTestFacade(t)
	_, err := f.call(context.Background(), wire.GetSerialNumber, nil)
	assert.Error(t, err)
}

func TestFIFOCorrelationIsFirstSentFirstCompleted(t *testing.T) {
	f := newTestFacade(t)

	type out struct {
		msg wire.Message
		err error
	}
	r1 := make(chan out, 1)
	r2 := make(chan out, 1)
	go func() {
		m, e := f.call(context.Background(), wire.GetNetworkID, nil)
		r1 <- out{m, e}
	}()
	time.Sleep(10 * time.Millisecond)
	go func() {
		m, e := f.call(context.Background(), wire.GetNetworkID, nil)
		r2 <- out{m, e}
	}()
	time.Sleep(10 * time.Millisecond)

	f.dispatch(wire.Message{MsgID: wire.GetNetworkID, Payload: []byte("first"), Fin: wire.ACK})
	f.dispatch(wire.Message{MsgID: wire.GetNetworkID, Payload: []byte("second"), Fin: wire.ACK})

	o1 := <-r1
	o2 := <-r2
	require.NoError(t, o1.err)
	require.NoError(t, o2.err)
	assert.Equal(t, []byte("first"), o1.msg.Payload)
	assert.Equal(t, []byte("second"), o2.msg.Payload)
}

func TestLifesignIsIgnoredByDispatch(t *testing.T) {
	f := newTestFacade(t)
	// must not panic or block: there is no pending slot and no handler
	f.dispatch(wire.Message{MsgID: wire.Lifesign})
}

func TestPeriodicMessageRoutesToRegisteredHandler(t *testing.T) {
	f := newTestFacade(t)
	received := make(chan wire.Record, 1)
	f.ToggleEvents(func(r wire.Record) { received <- r })

	payload := make([]byte, 11)
	payload[9], payload[10] = 1, 0 // event code 1
	f.dispatch(wire.Message{MsgID: wire.EventPacket, Payload: payload, Fin: wire.ETX})

	select {
	case rec := <-received:
		ev, ok := rec.(wire.Event)
		require.True(t, ok)
		assert.Equal(t, uint16(1), ev.EventCode)
	case <-time.After(time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestPeriodicMessageWithoutHandlerIsDropped(t *testing.T) {
	f := newTestFacade(t)
	// no handler registered for EventPacket; dispatch must not panic
	f.dispatch(wire.Message{MsgID: wire.EventPacket, Payload: make([]byte, 11), Fin: wire.ETX})
}

func TestUnrequestedReplyIsDiscarded(t *testing.T) {
	f := newTestFacade(t)
	// no pending call for this id; dispatch must not panic
	f.dispatch(wire.Message{MsgID: wire.GetSerialNumber, Payload: []byte("x"), Fin: wire.ACK})
}

func TestGetBioHarnessUserConfigReturnsRawPayload(t *testing.T) {
	f := newTestFacade(t)

	done := make(chan struct{})
	var got []byte
	var callErr error
	go func() {
		got, callErr = f.GetBioHarnessUserConfig(context.Background())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	f.dispatch(wire.Message{MsgID: wire.GetBioHarnessUserConfig, Payload: []byte{1, 2, 3}, Fin: wire.ACK})

	<-done
	require.NoError(t, callErr)
	assert.Equal(t, []byte{1, 2, 3}, got)
}
