package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcatAudioOrdersChunks(t *testing.T) {
	merged, err := ConcatAudio([][]byte{{1, 2}, {3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, merged)
}

func TestConcatAudioSingleBufferPassthrough(t *testing.T) {
	buf := []byte{9, 8, 7}
	merged, err := ConcatAudio([][]byte{buf})
	require.NoError(t, err)
	assert.Same(t, &buf[0], &merged[0], "single buffer should not be copied")
}

func TestConcatAudioRejectsEmptyInput(t *testing.T) {
	_, err := ConcatAudio(nil)
	require.Error(t, err)
}

func TestConcatAudioRejectsEmptyChunk(t *testing.T) {
	_, err := ConcatAudio([][]byte{{1}, {}, {2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk 1")
}
