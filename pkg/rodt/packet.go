package rodt

import (
	"encoding/binary"
	"math"
)

// HeaderSize is the fixed wire size of a Packet header: a little-endian
// u32 sequence/ack number, a 1-byte boolean flag, 3 bytes of padding, and a
// little-endian f64 timestamp. See spec §6 for the exact byte layout.
const HeaderSize = 16

// Packet is a single unit of RODT wire traffic.
type Packet struct {
	// SeqNum carries the fragment sequence number for data packets and
	// the terminator, or the acknowledged sequence number for acks.
	SeqNum uint32

	// AckMsg is the end-of-stream flag. It is set only on the sender's
	// terminator packet.
	AckMsg bool

	// Timestamp is used locally by the sender to gate timeout-driven
	// retransmission; it is meaningless to the receiver.
	Timestamp float64

	// Payload is the opaque fragment data. Its length is the negotiated
	// maximum payload size for data and terminator packets, and zero for
	// acks.
	Payload []byte
}

// Pack serializes p into its wire representation: a HeaderSize-byte header
// followed by the raw payload bytes.
func Pack(p Packet) []byte {
	buf := make([]byte, HeaderSize+len(p.Payload))
	binary.LittleEndian.PutUint32(buf[0:4], p.SeqNum)
	if p.AckMsg {
		buf[4] = 1
	}
	// buf[5:8] is padding, left zero.
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(p.Timestamp))
	copy(buf[16:], p.Payload)
	return buf
}

// Unpack reconstructs a Packet from a HeaderSize-byte header and its
// trailing payload. It fails with ErrBadFrame if header is short or the
// encoded timestamp is NaN. Unpack does not validate payload length; that
// contract belongs to the engine reading the stream.
func Unpack(header []byte, payload []byte) (Packet, error) {
	if len(header) < HeaderSize {
		return Packet{}, wrapf(ErrBadFrame, "header is %d bytes, want %d", len(header), HeaderSize)
	}
	seq := binary.LittleEndian.Uint32(header[0:4])
	ackMsg := header[4] != 0
	ts := math.Float64frombits(binary.LittleEndian.Uint64(header[8:16]))
	if math.IsNaN(ts) {
		return Packet{}, wrapf(ErrBadFrame, "timestamp is NaN")
	}
	return Packet{
		SeqNum:    seq,
		AckMsg:    ackMsg,
		Timestamp: ts,
		Payload:   payload,
	}, nil
}
