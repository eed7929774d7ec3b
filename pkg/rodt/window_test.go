package rodt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSendWindowRetireAndFill(t *testing.T) {
	w := newSendWindow(2)
	assert.False(t, w.Full())

	w.push(Packet{SeqNum: 0})
	w.push(Packet{SeqNum: 1})
	assert.True(t, w.Full())

	w.retireThrough(0)
	assert.Equal(t, 1, w.Len())

	head, ok := w.head()
	assert.True(t, ok)
	assert.Equal(t, uint32(1), head.SeqNum)
}

func TestSendWindowReplaceAll(t *testing.T) {
	w := newSendWindow(3)
	w.push(Packet{SeqNum: 0, Timestamp: 1})
	w.push(Packet{SeqNum: 1, Timestamp: 1})

	refreshed := make([]Packet, 0)
	for _, p := range w.all() {
		p.Timestamp = 2
		refreshed = append(refreshed, p)
	}
	w.replaceAll(refreshed)

	for _, p := range w.all() {
		assert.Equal(t, float64(2), p.Timestamp)
	}
}

func TestInsertSlotOrderingAndDuplicates(t *testing.T) {
	var slots []*Packet
	slots = insertSlot(slots, Packet{SeqNum: 0, Payload: []byte("a")})
	slots = insertSlot(slots, Packet{SeqNum: 2, Payload: []byte("c")})
	assert.Len(t, slots, 3)
	assert.Nil(t, slots[1])

	// Out-of-order fill.
	slots = insertSlot(slots, Packet{SeqNum: 1, Payload: []byte("b")})
	assert.NotNil(t, slots[1])

	// Duplicate is ignored, doesn't overwrite.
	slots = insertSlot(slots, Packet{SeqNum: 1, Payload: []byte("z")})
	assert.Equal(t, []byte("b"), slots[1].Payload)
}

func TestCumulativeAck(t *testing.T) {
	assert.Equal(t, int64(-1), cumulativeAck(nil))

	var slots []*Packet
	slots = insertSlot(slots, Packet{SeqNum: 0})
	slots = insertSlot(slots, Packet{SeqNum: 2})
	assert.Equal(t, int64(0), cumulativeAck(slots))

	slots = insertSlot(slots, Packet{SeqNum: 1})
	assert.Equal(t, int64(2), cumulativeAck(slots))
}
