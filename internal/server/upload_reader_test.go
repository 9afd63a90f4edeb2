package server

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messages(msgs ...*UploadRequest) func() (*UploadRequest, error) {
	return func() (*UploadRequest, error) {
		if len(msgs) == 0 {
			return nil, io.EOF
		}
		m := msgs[0]
		msgs = msgs[1:]
		return m, nil
	}
}

func TestFileReaderSplitsByIndex(t *testing.T) {
	stream := &chunkStream{recv: messages(
		&UploadRequest{Index: 0, Chunk: []byte("ab")},
		&UploadRequest{Index: 0, Chunk: []byte("cd")},
		&UploadRequest{Index: 1, Chunk: []byte("skipped")},
		&UploadRequest{Index: 2, Chunk: []byte("ef")},
		&UploadRequest{Index: 2},
		&UploadRequest{Index: 2, Chunk: []byte("g")},
	)}

	first, err := io.ReadAll(&fileReader{stream: stream, index: 0})
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(first))

	// entry 1 is never read
	third, err := io.ReadAll(&fileReader{stream: stream, index: 2})
	require.NoError(t, err)
	assert.Equal(t, "efg", string(third))

	rest, err := io.ReadAll(&fileReader{stream: stream, index: 3})
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestFileReaderEmptyFile(t *testing.T) {
	stream := &chunkStream{recv: messages(
		&UploadRequest{Index: 1, Chunk: []byte("x")},
	)}

	empty, err := io.ReadAll(&fileReader{stream: stream, index: 0})
	require.NoError(t, err)
	assert.Empty(t, empty)

	next, err := io.ReadAll(&fileReader{stream: stream, index: 1})
	require.NoError(t, err)
	assert.Equal(t, "x", string(next))
}

func TestFileReaderPartialReadLeavesRestForLaterEntries(t *testing.T) {
	stream := &chunkStream{recv: messages(
		&UploadRequest{Index: 0, Chunk: []byte("abcdef")},
		&UploadRequest{Index: 0, Chunk: []byte("ghi")},
		&UploadRequest{Index: 1, Chunk: []byte("next")},
	)}

	buf := make([]byte, 3)
	n, err := (&fileReader{stream: stream, index: 0}).Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))

	next, err := io.ReadAll(&fileReader{stream: stream, index: 1})
	require.NoError(t, err)
	assert.Equal(t, "next", string(next))
}
