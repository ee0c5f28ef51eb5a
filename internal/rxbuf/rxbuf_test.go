package rxbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader replays a fixed sequence of byte slices, one per Read call,
// simulating packet/read boundaries that don't align with newlines.
type chunkReader struct {
	chunks [][]byte
	i      int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if c.i >= len(c.chunks) {
		return 0, nil
	}
	n := copy(p, c.chunks[c.i])
	c.i++
	return n, nil
}

func TestBuf_SplitAcrossReads(t *testing.T) {
	r := &chunkReader{chunks: [][]byte{
		[]byte("10.0.0.1@tcp 1 2 3\n10.0.0.2@tcp"),
		[]byte(" 4 5 6\n"),
	}}

	b := New(64)

	_, err := b.Read(r)
	require.NoError(t, err)
	line, ok := b.Iter()
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1@tcp 1 2 3", line)

	_, ok = b.Iter()
	assert.False(t, ok, "second line not complete yet")

	_, err = b.Read(r)
	require.NoError(t, err)
	line, ok = b.Iter()
	require.True(t, ok)
	assert.Equal(t, "10.0.0.2@tcp 4 5 6", line)
}

func TestBuf_OverflowDropsTruncatedLine(t *testing.T) {
	// Buffer of 8 bytes, fed a line far longer than that with no newline
	// until after it would have overflowed.
	r := &chunkReader{chunks: [][]byte{
		[]byte("12345678"), // fills the buffer exactly, no newline yet
		[]byte("90abcd\n"), // continuation of the dropped line
		[]byte("next\n"),   // a fresh, well-formed line
	}}

	b := New(8)

	_, err := b.Read(r)
	require.NoError(t, err)
	_, ok := b.Iter()
	assert.False(t, ok)

	_, err = b.Read(r)
	require.NoError(t, err)
	// The continuation line (ending at the first \n after overflow) must
	// be dropped, not returned as a corrupt partial record.
	_, ok = b.Iter()
	assert.False(t, ok)

	_, err = b.Read(r)
	require.NoError(t, err)
	line, ok := b.Iter()
	require.True(t, ok)
	assert.Equal(t, "next", line)
}

func TestBuf_CompactFreesSpaceForNextRead(t *testing.T) {
	r := &chunkReader{chunks: [][]byte{
		[]byte("a\nb\n"),
		[]byte("c\n"),
	}}
	b := New(4)

	_, err := b.Read(r)
	require.NoError(t, err)

	line, ok := b.Iter()
	require.True(t, ok)
	assert.Equal(t, "a", line)

	line, ok = b.Iter()
	require.True(t, ok)
	assert.Equal(t, "b", line)

	// The buffer is full but fully consumed: Read must compact it rather
	// than treat it as an overflow, so "c" arrives intact.
	_, err = b.Read(r)
	require.NoError(t, err)
	line, ok = b.Iter()
	require.True(t, ok)
	assert.Equal(t, "c", line)
}
