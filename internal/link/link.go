package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rgoulter/bhtlink/internal/telemetry"
	"github.com/rgoulter/bhtlink/internal/wire"
	"go.uber.org/zap"
)

// State is the link engine's coarse connection state.
type State int

const (
	Disconnected State = iota
	Connected
	Stopped
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config configures the link engine.
type Config struct {
	Address          string        `yaml:"address" json:"address"`
	Port             int           `yaml:"port" json:"port"`
	LifesignInterval time.Duration `yaml:"lifesign_interval" json:"lifesignInterval"`
	Reconnect        bool          `yaml:"reconnect" json:"reconnect"`
	ReconnectBackoff time.Duration `yaml:"-" json:"-"`
}

// DefaultConfig returns the façade-level defaults named in the external
// interface (port 1, 2s lifesign, reconnect enabled).
func DefaultConfig() Config {
	return Config{
		Port:             1,
		LifesignInterval: 2 * time.Second,
		Reconnect:        true,
		ReconnectBackoff: time.Second,
	}
}

// Dialer opens a fresh Transport for the given address/port. Production
// code backs this with OpenRFCOMM; tests substitute an in-memory pipe.
type Dialer func(address string, port int) (Transport, error)

// Engine owns a single RFCOMM socket and drives the reconnecting
// transmit/receive loop described in the link engine state machine. It
// never decodes payloads itself: decoded frames are handed to Dispatch.
type Engine struct {
	cfg    Config
	dial   Dialer
	log    *zap.Logger
	send   chan wire.Message
	done   chan struct{}
	stopMu sync.Mutex
	stopCh chan struct{}

	// Dispatch is invoked for every well-formed frame read off the wire.
	// It must not block for long; the I/O worker calls it synchronously.
	Dispatch func(wire.Message)

	stateMu sync.RWMutex
	state   State
}

// NewEngine builds an Engine. dial is the transport factory (OpenRFCOMM in
// production).
func NewEngine(cfg Config, dial Dialer, log *zap.Logger, dispatch func(wire.Message)) *Engine {
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		dial:     dial,
		log:      log,
		send:     make(chan wire.Message, 64),
		done:     make(chan struct{}),
		stopCh:   make(chan struct{}),
		Dispatch: dispatch,
		state:    Disconnected,
	}
}

// State reports the engine's current connection state.
func (e *Engine) State() State {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.stateMu.Lock()
	prev := e.state
	e.state = s
	e.stateMu.Unlock()
	if prev != s {
		telemetry.LogLinkStateChange(e.cfg.Address, prev.String(), s.String())
	}
}

// Enqueue queues a message for transmission. Safe for concurrent use; it is
// the only pathway into the I/O worker's socket.
func (e *Engine) Enqueue(msg wire.Message) {
	select {
	case e.send <- msg:
	case <-e.stopCh:
	}
}

// Stop requests cooperative shutdown: the current (or next) loop iteration
// closes the socket and the worker returns. Stop blocks until the worker
// has exited.
func (e *Engine) Stop() {
	e.stopMu.Lock()
	select {
	case <-e.stopCh:
	default:
		close(e.stopCh)
	}
	e.stopMu.Unlock()
	<-e.done
}

// Run drives the Disconnected -> Connected -> Stopped state machine until
// Stop is called or reconnect is disabled and a connection attempt fails.
// It is meant to run on its own goroutine; Run blocks until the engine
// reaches Stopped.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)
	defer e.setState(Stopped)

	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		e.setState(Disconnected)
		e.log.Info("connecting to device", zap.String("address", e.cfg.Address), zap.Int("port", e.cfg.Port))
		conn, err := e.dial(e.cfg.Address, e.cfg.Port)
		if err != nil {
			e.log.Warn("connection attempt failed", zap.Error(err))
			if !e.cfg.Reconnect {
				e.log.Error("reconnect disabled, stopping")
				return
			}
			if !e.sleepOrStop(e.cfg.ReconnectBackoff) {
				return
			}
			continue
		}

		e.setState(Connected)
		e.log.Info("connected; transferring")
		err = e.transmitReceiveLoop(conn)
		conn.Close()
		e.log.Info("socket closed")

		if err == nil {
			return // cooperative stop
		}
		e.log.Error("link error", zap.Error(err))
		if !e.cfg.Reconnect {
			return
		}
	}
}

func (e *Engine) sleepOrStop(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-e.stopCh:
		return false
	}
}

// transmitReceiveLoop drives one connected session: emit a lifesign if due,
// drain the send queue, and feed frames arriving from the framer goroutine
// to the dispatch callback, until the transport errors or a stop is
// requested.
func (e *Engine) transmitReceiveLoop(conn Transport) error {
	framer := wire.NewFramer(conn, e.log.Sugar())
	var lastLifesign time.Time

	readErrCh := make(chan error, 1)
	frameCh := make(chan wire.Message, 16)
	go func() {
		for {
			msg, err := framer.Next()
			if err != nil {
				if errors.Is(err, wire.ErrBadFrame) {
					continue
				}
				readErrCh <- err
				return
			}
			select {
			case frameCh <- msg:
			case <-e.stopCh:
				return
			}
		}
	}()

	lifesignTicker := time.NewTicker(100 * time.Millisecond)
	defer lifesignTicker.Stop()

	for {
		select {
		case <-e.stopCh:
			return nil

		case err := <-readErrCh:
			return err

		case msg := <-frameCh:
			if e.Dispatch != nil {
				e.Dispatch(msg)
			}

		case m := <-e.send:
			if _, err := conn.Write(wire.Encode(m)); err != nil {
				return fmt.Errorf("link: write failed: %w", err)
			}

		case now := <-lifesignTicker.C:
			if now.Sub(lastLifesign) >= e.cfg.LifesignInterval {
				if _, err := conn.Write(wire.EncodeLifesign()); err != nil {
					return fmt.Errorf("link: lifesign write failed: %w", err)
				}
				lastLifesign = now // track actual send time, not reset to zero
			}
		}
	}
}
