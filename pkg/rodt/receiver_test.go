package rodt

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRecvStream feeds Serve a prepared byte stream and swallows every ack
// it writes back, for tests that only care about reassembly.
type fakeRecvStream struct {
	in  io.Reader
	out bytes.Buffer
}

func (f *fakeRecvStream) Read(p []byte) (int, error)  { return f.in.Read(p) }
func (f *fakeRecvStream) Write(p []byte) (int, error) { return f.out.Write(p) }

func TestServeReassemblesInOrder(t *testing.T) {
	const maxPayload = 4
	var wire bytes.Buffer
	wire.Write(Pack(Packet{SeqNum: 0, Payload: []byte("hell")}))
	wire.Write(Pack(Packet{SeqNum: 1, Payload: []byte("o   ")}))
	wire.Write(Pack(Packet{SeqNum: 2, AckMsg: true, Payload: []byte("    ")}))

	stream := &fakeRecvStream{in: &wire}
	e := NewReceiverEngine(nil)
	msg, err := e.Serve(context.Background(), stream, maxPayload)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello   "), msg)

	// One ack per data fragment, none for the terminator.
	assert.Equal(t, 2*HeaderSize, stream.out.Len())
}

func TestServeReassemblesOutOfOrder(t *testing.T) {
	const maxPayload = 4
	var wire bytes.Buffer
	wire.Write(Pack(Packet{SeqNum: 1, Payload: []byte("o   ")}))
	wire.Write(Pack(Packet{SeqNum: 0, Payload: []byte("hell")}))
	wire.Write(Pack(Packet{SeqNum: 2, AckMsg: true, Payload: []byte("    ")}))

	stream := &fakeRecvStream{in: &wire}
	e := NewReceiverEngine(nil)
	msg, err := e.Serve(context.Background(), stream, maxPayload)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello   "), msg)
}

func TestServeIgnoresDuplicateFragment(t *testing.T) {
	const maxPayload = 4
	var wire bytes.Buffer
	wire.Write(Pack(Packet{SeqNum: 0, Payload: []byte("hell")}))
	wire.Write(Pack(Packet{SeqNum: 0, Payload: []byte("XXXX")}))
	wire.Write(Pack(Packet{SeqNum: 1, Payload: []byte("o   ")}))
	wire.Write(Pack(Packet{SeqNum: 2, AckMsg: true, Payload: []byte("    ")}))

	stream := &fakeRecvStream{in: &wire}
	e := NewReceiverEngine(nil)
	msg, err := e.Serve(context.Background(), stream, maxPayload)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello   "), msg)
}

func TestServeIncompleteMessageOnEarlyClose(t *testing.T) {
	const maxPayload = 4
	var wire bytes.Buffer
	wire.Write(Pack(Packet{SeqNum: 0, Payload: []byte("hell")}))
	wire.Write(Pack(Packet{SeqNum: 2, Payload: []byte("rld ")}))
	// Stream ends here: seq 1 never arrives, leaving a gap, and no terminator.

	stream := &fakeRecvStream{in: &wire}
	e := NewReceiverEngine(nil)
	_, err := e.Serve(context.Background(), stream, maxPayload)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIncompleteMessage)
}

func TestServeTerminatorOnlyReturnsEmpty(t *testing.T) {
	const maxPayload = 8
	var wire bytes.Buffer
	wire.Write(Pack(Packet{SeqNum: 0, AckMsg: true, Payload: bytes.Repeat([]byte(" "), maxPayload)}))

	stream := &fakeRecvStream{in: &wire}
	e := NewReceiverEngine(nil)
	msg, err := e.Serve(context.Background(), stream, maxPayload)
	require.NoError(t, err)
	assert.Empty(t, msg)
}
