// Package bht implements the RPC/dispatch façade over the link engine: it
// turns fire-and-forget command sends and an inbound dispatch callback into
// blocking query/toggle operations with FIFO reply correlation and
// timeouts, and routes periodic data to registered stream handlers.
package bht

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rgoulter/bhtlink/internal/link"
	"github.com/rgoulter/bhtlink/internal/wire"
	"go.uber.org/zap"
)

// DefaultTimeout is the default RPC reply timeout.
const DefaultTimeout = 20 * time.Second

// Handler receives one decoded record per frame for a given periodic
// stream.
type Handler func(wire.Record)

// pendingReply is one in-flight call's completion slot.
type pendingReply struct {
	done chan wire.Message
}

// Facade is the consumer-facing BioHarness interface: query operations,
// batch info, and stream toggles, all backed by a single link.Engine.
type Facade struct {
	engine  *link.Engine
	log     *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	pending  map[wire.MessageID][]*pendingReply
	handlers map[wire.MessageID]Handler
}

// New wires a Facade on top of engine. The caller is still responsible for
// running engine.Run and engine.Stop; New only installs the dispatch
// callback.
func New(engine *link.Engine, log *zap.Logger, timeout time.Duration) *Facade {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	f := &Facade{
		engine:   engine,
		log:      log,
		timeout:  timeout,
		pending:  make(map[wire.MessageID][]*pendingReply),
		handlers: make(map[wire.MessageID]Handler),
	}
	engine.Dispatch = f.dispatch
	return f
}

// dispatch routes an inbound frame: ignore lifesigns, route periodic ids to
// their registered handler (or drop with a debug note), and otherwise
// complete the oldest pending reply slot for that id.
func (f *Facade) dispatch(m wire.Message) {
	if m.MsgID == wire.Lifesign {
		return
	}

	if m.MsgID.IsPeriodic() {
		f.mu.Lock()
		handler := f.handlers[m.MsgID]
		f.mu.Unlock()
		if handler == nil {
			f.log.Debug("no handler installed for periodic message, discarding", zap.Stringer("msgid", m.MsgID))
			return
		}
		rec, err := wire.Parse(m)
		if err != nil {
			f.log.Warn("failed to parse periodic message", zap.Stringer("msgid", m.MsgID), zap.Error(err))
			return
		}
		handler(rec)
		return
	}

	f.mu.Lock()
	slots := f.pending[m.MsgID]
	var slot *pendingReply
	if len(slots) > 0 {
		slot = slots[0]
		f.pending[m.MsgID] = slots[1:]
	}
	f.mu.Unlock()

	if slot == nil {
		f.log.Warn("got unrequested reply, discarding", zap.Stringer("msgid", m.MsgID))
		return
	}
	slot.done <- m
}

// call sends msgid/payload and blocks until the oldest matching reply
// arrives, the context is canceled, or the timeout elapses.
func (f *Facade) call(ctx context.Context, msgid wire.MessageID, payload []byte) (wire.Message, error) {
	slot := &pendingReply{done: make(chan wire.Message, 1)}
	f.mu.Lock()
	f.pending[msgid] = append(f.pending[msgid], slot)
	f.mu.Unlock()

	f.engine.Enqueue(wire.NewMessage(msgid, payload))

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	select {
	case msg := <-slot.done:
		if err := msg.EnsureFinOK(); err != nil {
			return wire.Message{}, err
		}
		return msg, nil
	case <-ctx.Done():
		f.removePending(msgid, slot)
		return wire.Message{}, fmt.Errorf("bht: waiting for device response to %s timed out", msgid)
	}
}

func (f *Facade) removePending(msgid wire.MessageID, target *pendingReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slots := f.pending[msgid]
	for i, s := range slots {
		if s == target {
			f.pending[msgid] = append(slots[:i], slots[i+1:]...)
			return
		}
	}
}

// --- query operations (one per query id) ---

func (f *Facade) GetSerialNumber(ctx context.Context) (string, error) {
	msg, err := f.call(ctx, wire.GetSerialNumber, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(msg.PayloadString()), nil
}

func (f *Facade) GetBootSoftwareVersion(ctx context.Context) ([]byte, error) {
	msg, err := f.call(ctx, wire.GetBootSoftwareVersion, nil)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

func (f *Facade) GetApplicationSoftwareVersion(ctx context.Context) ([]byte, error) {
	msg, err := f.call(ctx, wire.GetApplicationSoftwareVersion, nil)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

func (f *Facade) GetHardwarePartNumber(ctx context.Context) (string, error) {
	msg, err := f.call(ctx, wire.GetHardwarePartNumber, nil)
	if err != nil {
		return "", err
	}
	return msg.PayloadString(), nil
}

func (f *Facade) GetBootloaderPartNumber(ctx context.Context) (string, error) {
	msg, err := f.call(ctx, wire.GetBootloaderPartNumber, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(msg.PayloadString()), nil
}

func (f *Facade) GetApplicationPartNumber(ctx context.Context) (string, error) {
	msg, err := f.call(ctx, wire.GetApplicationPartNumber, nil)
	if err != nil {
		return "", err
	}
	return msg.PayloadString(), nil
}

func (f *Facade) GetUnitMACAddress(ctx context.Context) (string, error) {
	msg, err := f.call(ctx, wire.GetUnitMACAddress, nil)
	if err != nil {
		return "", err
	}
	return msg.PayloadString(), nil
}

func (f *Facade) GetBluetoothFriendlyName(ctx context.Context) (string, error) {
	msg, err := f.call(ctx, wire.GetUnitBluetoothFriendlyName, nil)
	if err != nil {
		return "", err
	}
	return msg.PayloadString(), nil
}

func (f *Facade) GetNetworkID(ctx context.Context) (string, error) {
	msg, err := f.call(ctx, wire.GetNetworkID, nil)
	if err != nil {
		return "", err
	}
	return msg.PayloadString(), nil
}

func (f *Facade) GetBatteryStatus(ctx context.Context) ([]byte, error) {
	msg, err := f.call(ctx, wire.GetBatteryStatus, nil)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

func (f *Facade) GetRTCDateTime(ctx context.Context) ([]byte, error) {
	msg, err := f.call(ctx, wire.GetRTCDateTime, nil)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

func (f *Facade) GetBluetoothUserConfig(ctx context.Context) ([]byte, error) {
	msg, err := f.call(ctx, wire.GetBluetoothUserConfig, nil)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

func (f *Facade) GetBTLinkConfig(ctx context.Context) ([]byte, error) {
	msg, err := f.call(ctx, wire.GetBTLinkConfig, nil)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

func (f *Facade) GetBioHarnessUserConfig(ctx context.Context) ([]byte, error) {
	msg, err := f.call(ctx, wire.GetBioHarnessUserConfig, nil)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

func (f *Facade) GetAccelerometerAxisMapping(ctx context.Context) ([]byte, error) {
	msg, err := f.call(ctx, wire.GetAccelerometerAxisMapping, nil)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

func (f *Facade) GetAlgorithmConfig(ctx context.Context) ([]byte, error) {
	msg, err := f.call(ctx, wire.GetAlgorithmConfig, nil)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

func (f *Facade) GetROGSettings(ctx context.Context) ([]byte, error) {
	msg, err := f.call(ctx, wire.GetROGSettings, nil)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

func (f *Facade) GetSubjectInfoSettings(ctx context.Context) ([]byte, error) {
	msg, err := f.call(ctx, wire.GetSubjectInfoSettings, nil)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

func (f *Facade) GetRemoteMACAddressAndPIN(ctx context.Context) ([]byte, error) {
	msg, err := f.call(ctx, wire.GetRemoteMACAddressAndPIN, nil)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

func (f *Facade) GetSupportedLogFormats(ctx context.Context) ([]byte, error) {
	msg, err := f.call(ctx, wire.GetSupportedLogFormats, nil)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

func (f *Facade) GetRemoteDeviceDescription(ctx context.Context) ([]byte, error) {
	msg, err := f.call(ctx, wire.GetRemoteDeviceDescription, nil)
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

// Infos launches every query concurrently and returns a name->value map. A
// single failing query fails the whole call, mirroring asyncio.gather's
// all-or-nothing semantics.
func (f *Facade) Infos(ctx context.Context) (map[string]interface{}, error) {
	type result struct {
		key string
		val interface{}
		err error
	}
	queries := map[string]func(context.Context) (interface{}, error){
		"serial":             func(c context.Context) (interface{}, error) { return f.GetSerialNumber(c) },
		"net_id":             func(c context.Context) (interface{}, error) { return f.GetNetworkID(c) },
		"hw_part_no":         func(c context.Context) (interface{}, error) { return f.GetHardwarePartNumber(c) },
		"mac_addr":           func(c context.Context) (interface{}, error) { return f.GetUnitMACAddress(c) },
		"app_part_no":        func(c context.Context) (interface{}, error) { return f.GetApplicationPartNumber(c) },
		"app_sw_version":     func(c context.Context) (interface{}, error) { return f.GetApplicationSoftwareVersion(c) },
		"bt_friendly_name":   func(c context.Context) (interface{}, error) { return f.GetBluetoothFriendlyName(c) },
		"boot_sw_ver":        func(c context.Context) (interface{}, error) { return f.GetBootSoftwareVersion(c) },
		"bootloader_part_no": func(c context.Context) (interface{}, error) { return f.GetBootloaderPartNumber(c) },
	}

	results := make(chan result, len(queries))
	for key, q := range queries {
		key, q := key, q
		go func() {
			val, err := q(ctx)
			results <- result{key: key, val: val, err: err}
		}()
	}

	out := make(map[string]interface{}, len(queries))
	var firstErr error
	for range queries {
		r := <-results
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("bht: query %q failed: %w", r.key, r.err)
			continue
		}
		out[r.key] = r.val
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// --- stream toggles ---

func (f *Facade) toggleHandler(ctx context.Context, setMsgID wire.MessageID, handler Handler, payloadOn, payloadOff []byte) (wire.Message, error) {
	payload := payloadOff
	if handler != nil {
		payload = payloadOn
	}
	resp, err := f.call(ctx, setMsgID, payload)
	if err != nil {
		return wire.Message{}, err
	}
	dataID := wire.TransmitState2DataPacket[setMsgID]
	f.mu.Lock()
	if handler == nil {
		delete(f.handlers, dataID)
	} else {
		f.handlers[dataID] = handler
	}
	f.mu.Unlock()
	return resp, nil
}

func (f *Facade) ToggleGeneral(ctx context.Context, handler Handler) error {
	_, err := f.toggleHandler(ctx, wire.SetGeneralDataPacketTransmitState, handler, []byte{1}, []byte{0})
	return err
}

func (f *Facade) ToggleAccel(ctx context.Context, handler Handler) error {
	_, err := f.toggleHandler(ctx, wire.SetAccelerometerPacketTransmitState, handler, []byte{1}, []byte{0})
	return err
}

func (f *Facade) ToggleAccel100Mg(ctx context.Context, handler Handler) error {
	_, err := f.toggleHandler(ctx, wire.SetAccelerometer100mgPacketTransmitState, handler, []byte{1}, []byte{0})
	return err
}

func (f *Facade) ToggleBreathing(ctx context.Context, handler Handler) error {
	_, err := f.toggleHandler(ctx, wire.SetBreathingWaveformPacketTransmitState, handler, []byte{1}, []byte{0})
	return err
}

func (f *Facade) ToggleECG(ctx context.Context, handler Handler) error {
	_, err := f.toggleHandler(ctx, wire.SetECGWaveformPacketTransmitState, handler, []byte{1}, []byte{0})
	return err
}

func (f *Facade) ToggleRtoR(ctx context.Context, handler Handler) error {
	_, err := f.toggleHandler(ctx, wire.SetRtoRDataPacketTransmitState, handler, []byte{1}, []byte{0})
	return err
}

// ToggleSummary enables (or, if handler is nil, disables) the summary data
// stream, additionally setting the integration interval in seconds when
// enabling.
func (f *Facade) ToggleSummary(ctx context.Context, handler Handler, intervalSeconds byte) error {
	_, err := f.toggleHandler(ctx, wire.SetSummaryDataPacketUpdateRate, handler,
		[]byte{intervalSeconds, 0}, []byte{0, 0})
	return err
}

// ToggleEvents registers (or clears) the event handler directly; events
// have no corresponding transmit-state toggle command to send.
func (f *Facade) ToggleEvents(handler Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if handler == nil {
		delete(f.handlers, wire.EventPacket)
	} else {
		f.handlers[wire.EventPacket] = handler
	}
}
