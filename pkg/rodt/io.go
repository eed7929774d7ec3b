package rodt

import (
	"errors"
	"io"
)

// readQuantum reads exactly len(buf) bytes from r, looping across short
// reads the way the spec's read-quanta requirement mandates (spec §6: "MUST
// NOT assume a single read system call returns exactly one quantum"). It
// returns (0, nil) with a nil error only when the stream ends cleanly
// before any byte of this quantum was read; a partial quantum followed by
// EOF is reported as ErrPeerClosed.
func readQuantum(r io.Reader, buf []byte) (int, error) {
	n, err := io.ReadFull(r, buf)
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF):
		return 0, nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return n, wrapf(ErrPeerClosed, "stream ended mid-quantum after %d of %d bytes", n, len(buf))
	default:
		return n, wrapf(ErrTransmissionAborted, "read failed: %v", err)
	}
}

// writeFull writes the entire buffer, classifying any failure as a local
// transmission abort.
func writeFull(w io.Writer, buf []byte) error {
	if _, err := w.Write(buf); err != nil {
		return wrapf(ErrTransmissionAborted, "write failed: %v", err)
	}
	return nil
}
