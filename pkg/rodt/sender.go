package rodt

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
)

// Stream is the bidirectional byte-oriented connection a session runs
// over. A *net.TCPConn satisfies it directly.
type Stream interface {
	io.Reader
	io.Writer
}

// senderState is the mutable state shared by the sender's two cooperating
// tasks: lastAck is written only by the ack-intake task and read by the
// transmission task; writeMu serializes the two tasks' writes to the
// shared stream (the transmission task writes data packets, the ack-intake
// task writes the lone terminator). Grounded on the mutex-guarded
// sequenceAcked field of the teacher's handler struct in
// pkg/vif/tcp/handler.go.
type senderState struct {
	mu      sync.Mutex
	lastAck int64 // -1 sentinel: nothing acknowledged yet

	writeMu sync.Mutex
}

func (s *senderState) get() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAck
}

// advance sets lastAck to a and reports whether it advanced (spec's
// "A ≤ last_ack are silently ignored" duplicate/decreasing-ack guard).
func (s *senderState) advance(a int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a > s.lastAck {
		s.lastAck = a
		return true
	}
	return false
}

func (s *senderState) writePacket(stream Stream, p Packet) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return writeFull(stream, Pack(p))
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// SenderEngine drives the sliding-window transmission of a fragmented
// message to completion (spec §4.4).
type SenderEngine struct {
	Metrics *Metrics
}

// NewSenderEngine builds a SenderEngine. A nil metrics registry wires up a
// private, unexported registry so engine code never needs a nil check.
func NewSenderEngine(m *Metrics) *SenderEngine {
	if m == nil {
		m = noopMetrics()
	}
	return &SenderEngine{Metrics: m}
}

// Run transmits fragments over stream under a window of windowSize
// packets, retransmitting the whole window (Go-Back-N) whenever the head
// packet's age exceeds timeout, and returns once the ack-intake task has
// sent the terminator and exited normally. It fails with
// ErrTransmissionAborted on a local I/O error or ErrPeerClosed if the
// stream ends before the session completes.
func (e *SenderEngine) Run(ctx context.Context, stream Stream, fragments [][]byte, windowSize int, timeout time.Duration) error {
	n := len(fragments)
	if n == 0 {
		return wrapf(ErrTransmissionAborted, "no fragments to send")
	}
	finalSeq := int64(n - 1)
	maxPayload := len(fragments[0])

	state := &senderState{lastAck: -1}
	win := newSendWindow(windowSize)

	g := dgroup.NewGroup(ctx, dgroup.GroupConfig{
		EnableSignalHandling: false,
		ShutdownOnNonError:   true,
	})

	g.Go("transmit", func(ctx context.Context) error {
		return e.transmit(ctx, stream, fragments, win, state, finalSeq, timeout)
	})
	g.Go("ack-intake", func(ctx context.Context) error {
		return e.ackIntake(ctx, stream, state, finalSeq, maxPayload)
	})

	return g.Wait()
}

func (e *SenderEngine) transmit(ctx context.Context, stream Stream, fragments [][]byte, win *sendWindow, state *senderState, finalSeq int64, timeout time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = derror.PanicToError(r)
			dlog.Errorf(ctx, "rodt: transmit task panicked: %v", err)
		}
	}()

	timeoutSeconds := timeout.Seconds()

	for {
		curAck := state.get()
		if curAck == finalSeq {
			return nil
		}

		win.retireThrough(curAck)

		if !win.Full() {
			var nextSeq int64
			if tail, ok := win.tail(); ok {
				nextSeq = int64(tail.SeqNum) + 1
			} else {
				nextSeq = curAck + 1
			}
			toSend := win.capacity - win.Len()
			if remain := finalSeq - nextSeq + 1; remain < int64(toSend) {
				toSend = int(remain)
			}
			for i := 0; i < toSend; i++ {
				seq := nextSeq + int64(i)
				pkt := Packet{SeqNum: uint32(seq), Timestamp: nowSeconds(), Payload: fragments[seq]}
				if err := state.writePacket(stream, pkt); err != nil {
					return err
				}
				win.push(pkt)
				e.Metrics.PacketsSent.Inc()
				dlog.Tracef(ctx, "rodt: sent data packet seq=%d", seq)
			}
		}

		if head, ok := win.head(); ok && nowSeconds()-head.Timestamp > timeoutSeconds {
			pkts := win.all()
			dlog.Debugf(ctx, "rodt: timeout, retransmitting %d packets from seq=%d", len(pkts), pkts[0].SeqNum)
			refreshed := make([]Packet, len(pkts))
			for i, p := range pkts {
				p.Timestamp = nowSeconds()
				if err := state.writePacket(stream, p); err != nil {
					return err
				}
				e.Metrics.PacketsRetransmitted.Inc()
				refreshed[i] = p
			}
			win.replaceAll(refreshed)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (e *SenderEngine) ackIntake(ctx context.Context, stream Stream, state *senderState, finalSeq int64, maxPayload int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = derror.PanicToError(r)
			dlog.Errorf(ctx, "rodt: ack-intake task panicked: %v", err)
		}
	}()

	header := make([]byte, HeaderSize)
	for {
		n, err := readQuantum(stream, header)
		if err != nil {
			return err
		}
		if n == 0 {
			if state.get() < finalSeq {
				return wrapf(ErrPeerClosed, "peer closed before acknowledging all fragments")
			}
			return nil
		}

		pkt, err := Unpack(header, nil)
		if err != nil {
			return err
		}

		a := int64(pkt.SeqNum)
		if state.advance(a) {
			e.Metrics.AcksReceived.Inc()
			dlog.Tracef(ctx, "rodt: ack %d received", a)
		}

		if state.get() == finalSeq {
			term := Packet{
				SeqNum:  uint32(finalSeq + 1),
				AckMsg:  true,
				Timestamp: nowSeconds(),
				Payload: make([]byte, maxPayload),
			}
			for i := range term.Payload {
				term.Payload[i] = ' '
			}
			if err := state.writePacket(stream, term); err != nil {
				return err
			}
			e.Metrics.PacketsSent.Inc()
			dlog.Debugf(ctx, "rodt: terminator seq=%d sent, session complete", term.SeqNum)
			return nil
		}
	}
}
