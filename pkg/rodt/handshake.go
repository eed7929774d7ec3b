package rodt

import (
	"io"
	"strconv"
	"strings"
)

// HandshakePreambleSize is the fixed width of the handshake frame (spec
// §4.2, §9: padded rather than raw, for deterministic read semantics).
const HandshakePreambleSize = 1024

// SendMaxPayloadSize announces m as the decimal ASCII preamble, right-padded
// with spaces to HandshakePreambleSize bytes, in a single write. This is
// the receiver side of the handshake.
func SendMaxPayloadSize(w io.Writer, m int) error {
	buf := make([]byte, HandshakePreambleSize)
	for i := range buf {
		buf[i] = ' '
	}
	digits := strconv.Itoa(m)
	copy(buf, digits)
	return writeFull(w, buf)
}

// ReceiveMaxPayloadSize reads the HandshakePreambleSize-byte preamble and
// parses the negotiated maximum payload size. This is the sender side of
// the handshake. It fails with ErrHandshakeParse if the preamble does not
// decode as a decimal integer, or ErrHandshakeZeroSize if it decodes to
// zero — the sender must abort before entering SenderEngine in that case.
func ReceiveMaxPayloadSize(r io.Reader) (int, error) {
	buf := make([]byte, HandshakePreambleSize)
	n, err := readQuantum(r, buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, wrapf(ErrPeerClosed, "peer closed before sending the handshake preamble")
	}
	trimmed := strings.TrimSpace(string(buf))
	m, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, wrapf(ErrHandshakeParse, "could not parse %q as an integer", trimmed)
	}
	if m == 0 {
		return 0, ErrHandshakeZeroSize
	}
	return m, nil
}
