package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/rgoulter/bhtlink/internal/bitutil"
	"github.com/rgoulter/bhtlink/internal/telemetry"
	"go.uber.org/zap"
)

// ErrBadFrame is returned by Framer.Next for a single corrupted frame that
// the framer chose to discard (bad CRC, bad terminator, unknown id) rather
// than bail out over. Transport-level errors from the underlying reader are
// returned unwrapped and are fatal to the iterator.
var ErrBadFrame = errors.New("wire: frame discarded")

// Framer pulls bytes from a stream and assembles them into Messages,
// resynchronizing on STX and discarding malformed frames without losing the
// rest of the stream. It never decodes payloads itself — callers pass the
// resulting Message to Parse.
type Framer struct {
	r   *bufio.Reader
	log *zap.SugaredLogger
}

// NewFramer wraps r (typically the link's socket) in a Framer. log may be
// nil, in which case framing diagnostics are discarded.
func NewFramer(r io.Reader, log *zap.SugaredLogger) *Framer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Framer{r: bufio.NewReaderSize(r, 512), log: log}
}

// Next reads and returns the next frame from the stream. Transport errors
// (EOF, read failures) are returned as-is and mean the stream is no longer
// usable. A malformed frame is logged, the stream is resynchronized past
// it, and ErrBadFrame is returned so the caller can loop and call Next
// again without treating it as fatal.
func (f *Framer) Next() (Message, error) {
	if err := f.scanToSTX(); err != nil {
		return Message{}, err
	}

	msgidByte, err := f.r.ReadByte()
	if err != nil {
		return Message{}, err
	}
	msgid := MessageID(msgidByte)
	known := msgid.Known()
	if !known {
		f.log.Infow("unknown message id encountered", "msgid", fmt.Sprintf("%#02x", msgidByte))
	}

	payloadLen, err := f.r.ReadByte()
	if err != nil {
		return Message{}, err
	}
	if payloadLen > 128 {
		f.log.Errorw("invalid payload length, skipping frame", "length", payloadLen)
		telemetry.LogFrameDiscarded("payload length exceeds 128", msgidByte)
		if err := f.skipToTerminator(); err != nil {
			return Message{}, err
		}
		return Message{}, ErrBadFrame
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(f.r, payload); err != nil {
		return Message{}, err
	}

	crc, err := f.r.ReadByte()
	if err != nil {
		return Message{}, err
	}
	crcOK := crc == bitutil.CRC8(payload)
	if !crcOK {
		f.log.Errorw("payload CRC mismatch, discarding message")
	}

	finByte, err := f.r.ReadByte()
	if err != nil {
		return Message{}, err
	}
	fin := Marker(finByte)
	if !IsValidFin(fin) {
		f.log.Errorw("message not terminated by a valid byte", "got", fmt.Sprintf("%#02x", finByte))
	}

	if !known || !crcOK || !IsValidFin(fin) {
		reason := "unknown message id"
		switch {
		case !crcOK:
			reason = "crc mismatch"
		case !IsValidFin(fin):
			reason = "invalid terminator"
		}
		telemetry.LogFrameDiscarded(reason, msgidByte)
		telemetry.LogRawFrame("discarded frame payload", payload)
		return Message{}, ErrBadFrame
	}

	return Message{MsgID: msgid, Payload: payload, Fin: fin}, nil
}

// scanToSTX discards bytes until it sees an STX marker (or an error).
func (f *Framer) scanToSTX() error {
	for {
		b, err := f.r.ReadByte()
		if err != nil {
			return err
		}
		if Marker(b) == STX {
			return nil
		}
	}
}

// skipToTerminator discards bytes until it sees a valid frame terminator,
// used to recover alignment after a bogus payload length.
func (f *Framer) skipToTerminator() error {
	for {
		b, err := f.r.ReadByte()
		if err != nil {
			return err
		}
		if IsValidFin(Marker(b)) {
			return nil
		}
	}
}

// Messages runs Next in a loop, invoking handle for every well-formed frame
// and logging (but otherwise ignoring) discarded frames, until the
// underlying stream returns a fatal error, which it returns.
func (f *Framer) Messages(handle func(Message)) error {
	for {
		msg, err := f.Next()
		if err != nil {
			if errors.Is(err, ErrBadFrame) {
				continue
			}
			return err
		}
		handle(msg)
	}
}
