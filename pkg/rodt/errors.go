// Package rodt implements the Reliable Ordered Data Transfer core: packet
// framing, the handshake that negotiates a maximum payload size, message
// fragmentation, and the sliding-window sender/receiver engines that move a
// message over a single byte-oriented stream connection.
package rodt

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers should classify failures with errors.Is
// against these rather than matching on message text.
var (
	// ErrBadFrame is returned when a packet header is short or carries a
	// NaN timestamp.
	ErrBadFrame = errors.New("rodt: malformed packet frame")

	// ErrHandshakeParse is returned when the handshake preamble does not
	// decode as a decimal integer.
	ErrHandshakeParse = errors.New("rodt: handshake payload is not an integer")

	// ErrHandshakeZeroSize is returned when the negotiated maximum
	// payload size is zero.
	ErrHandshakeZeroSize = errors.New("rodt: negotiated maximum payload size is zero")

	// ErrTransmissionAborted is returned when the sender's transmission
	// or ack-intake task hits a local I/O failure.
	ErrTransmissionAborted = errors.New("rodt: transmission aborted")

	// ErrPeerClosed is returned when the stream ends before the session
	// reached its expected termination point.
	ErrPeerClosed = errors.New("rodt: peer closed the connection")

	// ErrIncompleteMessage is returned by the receiver when the stream
	// ends with a gap in the reassembly buffer and no terminator was
	// observed.
	ErrIncompleteMessage = errors.New("rodt: message incomplete, stream ended with missing fragments")
)

// wrapf wraps err with a sentinel kind and a formatted message, preserving
// errors.Is/As compatibility with both.
func wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// ErrorKind returns a short, stable label for err suitable for a metrics
// label or a log field, classifying it against the sentinel kinds above.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrBadFrame):
		return "bad_frame"
	case errors.Is(err, ErrHandshakeParse):
		return "handshake_parse"
	case errors.Is(err, ErrHandshakeZeroSize):
		return "handshake_zero_size"
	case errors.Is(err, ErrTransmissionAborted):
		return "transmission_aborted"
	case errors.Is(err, ErrPeerClosed):
		return "peer_closed"
	case errors.Is(err, ErrIncompleteMessage):
		return "incomplete_message"
	default:
		return "other"
	}
}
