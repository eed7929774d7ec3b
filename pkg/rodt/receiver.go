package rodt

import (
	"context"

	"github.com/datawire/dlib/dlog"
)

// ReceiverEngine accepts packets on a single session, buffers them by
// sequence number, emits cumulative acks, and reassembles the message in
// order (spec §4.5).
type ReceiverEngine struct {
	Metrics *Metrics
}

// NewReceiverEngine builds a ReceiverEngine. A nil metrics registry wires
// up a private, unexported registry so engine code never needs a nil
// check.
func NewReceiverEngine(m *Metrics) *ReceiverEngine {
	if m == nil {
		m = noopMetrics()
	}
	return &ReceiverEngine{Metrics: m}
}

// Serve runs one receive session over stream, reading fixed
// maxPayloadSize+HeaderSize quanta until the sender's end-of-stream packet
// arrives or the stream closes, and returns the reassembled payload bytes.
// It fails with ErrIncompleteMessage if the stream ends with any slot
// still absent.
func (e *ReceiverEngine) Serve(ctx context.Context, stream Stream, maxPayloadSize int) ([]byte, error) {
	quantum := maxPayloadSize + HeaderSize
	var slots []*Packet

	for {
		buf := make([]byte, quantum)
		n, err := readQuantum(stream, buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			dlog.Debugf(ctx, "rodt: stream closed by peer")
			break
		}

		pkt, err := Unpack(buf[:HeaderSize], buf[HeaderSize:])
		if err != nil {
			return nil, err
		}

		if pkt.AckMsg {
			dlog.Debugf(ctx, "rodt: terminator seq=%d received, session complete", pkt.SeqNum)
			break
		}

		slots = insertSlot(slots, pkt)

		if ack := cumulativeAck(slots); ack >= 0 {
			ackPkt := Packet{SeqNum: uint32(ack)}
			if err := writeFull(stream, Pack(ackPkt)); err != nil {
				return nil, err
			}
			e.Metrics.AcksSent.Inc()
			dlog.Tracef(ctx, "rodt: ack %d sent", ack)
		}
	}

	message, err := flatten(slots)
	if err != nil {
		return nil, err
	}
	e.Metrics.BytesReassembled.Add(float64(len(message)))
	return message, nil
}

// insertSlot places pkt into slots by sequence number, growing the slice
// with absent (nil) cells as needed and leaving existing filled slots
// untouched (spec §4.5 step 3 — duplicates are silently ignored, slots are
// never overwritten once filled).
func insertSlot(slots []*Packet, pkt Packet) []*Packet {
	s := int(pkt.SeqNum)
	l := len(slots)
	switch {
	case s == l:
		return append(slots, &pkt)
	case s > l:
		slots = append(slots, make([]*Packet, s-l)...)
		return append(slots, &pkt)
	case slots[s] == nil:
		slots[s] = &pkt
		return slots
	default:
		return slots // duplicate, ignore
	}
}

// cumulativeAck returns the largest s such that slots[0..s] are all
// filled, or -1 if slot 0 is absent (spec §4.5 step 4).
func cumulativeAck(slots []*Packet) int64 {
	if len(slots) == 0 || slots[0] == nil {
		return -1
	}
	i := 0
	for i < len(slots) && slots[i] != nil {
		i++
	}
	return int64(i - 1)
}

// flatten concatenates every slot's payload in order, failing with
// ErrIncompleteMessage if any slot is still absent.
func flatten(slots []*Packet) ([]byte, error) {
	for i, p := range slots {
		if p == nil {
			return nil, wrapf(ErrIncompleteMessage, "fragment %d of %d never arrived", i, len(slots))
		}
	}
	out := make([]byte, 0, len(slots)*maxLen(slots))
	for _, p := range slots {
		out = append(out, p.Payload...)
	}
	return out, nil
}

func maxLen(slots []*Packet) int {
	if len(slots) == 0 {
		return 0
	}
	return len(slots[0].Payload)
}
