package rodt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFragmentExactMultiple(t *testing.T) {
	frags, err := Fragment([]byte("abcdef"), 2)
	require.NoError(t, err)
	require.Len(t, frags, 3)
	assert.Equal(t, [][]byte{[]byte("ab"), []byte("cd"), []byte("ef")}, frags)
}

func TestFragmentPadsTail(t *testing.T) {
	frags, err := Fragment([]byte("hello"), 4)
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, []byte("hell"), frags[0])
	assert.Equal(t, []byte("o   "), frags[1])
}

func TestFragmentEmptyMessage(t *testing.T) {
	frags, err := Fragment(nil, 8)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, []byte(strings.Repeat(" ", 8)), frags[0])
}

func TestFragmentEveryFragmentIsMaxPayloadLong(t *testing.T) {
	for _, m := range []int{1, 2, 7, 16} {
		frags, err := Fragment([]byte("a sample message of some length"), m)
		require.NoError(t, err)
		for _, f := range frags {
			assert.Len(t, f, m)
		}
	}
}

func TestFragmentRejectsNonPositiveMaxPayload(t *testing.T) {
	_, err := Fragment([]byte("x"), 0)
	require.Error(t, err)
}
