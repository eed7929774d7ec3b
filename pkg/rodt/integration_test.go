package rodt

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEndToEndSession wires a SenderEngine and a ReceiverEngine together
// over a net.Pipe, covering the handshake and full transfer of the worked
// example from spec §8 (message "hello world", M=4, W=2, T=1s).
func TestEndToEndSession(t *testing.T) {
	const maxPayload = 4
	const windowSize = 2
	const timeout = time.Second

	senderConn, recvConn := net.Pipe()
	defer senderConn.Close()
	defer recvConn.Close()

	handshakeErrs := make(chan error, 2)
	go func() { handshakeErrs <- SendMaxPayloadSize(senderConn, maxPayload) }()
	var negotiated int
	go func() {
		n, err := ReceiveMaxPayloadSize(recvConn)
		negotiated = n
		handshakeErrs <- err
	}()
	require.NoError(t, <-handshakeErrs)
	require.NoError(t, <-handshakeErrs)
	require.Equal(t, maxPayload, negotiated)

	fragments, err := Fragment([]byte("hello world"), maxPayload)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	recvResult := make(chan []byte, 1)
	recvErr := make(chan error, 1)
	go func() {
		msg, err := NewReceiverEngine(nil).Serve(ctx, recvConn, maxPayload)
		recvResult <- msg
		recvErr <- err
	}()

	err = NewSenderEngine(nil).Run(ctx, senderConn, fragments, windowSize, timeout)
	require.NoError(t, err)

	require.NoError(t, <-recvErr)
	assert.Equal(t, []byte("hello world "), <-recvResult)
}

// TestEndToEndEmptyMessage covers the zero-length-message edge case: a
// single all-padding data fragment, followed by the separate terminator.
func TestEndToEndEmptyMessage(t *testing.T) {
	const maxPayload = 8

	senderConn, recvConn := net.Pipe()
	defer senderConn.Close()
	defer recvConn.Close()

	fragments, err := Fragment(nil, maxPayload)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	recvResult := make(chan []byte, 1)
	recvErr := make(chan error, 1)
	go func() {
		msg, err := NewReceiverEngine(nil).Serve(ctx, recvConn, maxPayload)
		recvResult <- msg
		recvErr <- err
	}()

	err = NewSenderEngine(nil).Run(ctx, senderConn, fragments, 1, time.Second)
	require.NoError(t, err)

	require.NoError(t, <-recvErr)
	assert.Equal(t, []byte("        "), <-recvResult)
}
