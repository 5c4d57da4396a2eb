package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedBodyReader_GetExact(t *testing.T) {
	r := NewBoundedBodyReader(strings.NewReader("hello world"), 11, 0, 0)
	chunk, err := r.GetExact(5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(chunk))
	assert.EqualValues(t, 5, r.BytesRead())
}

func TestBoundedBodyReader_PastContentLength(t *testing.T) {
	r := NewBoundedBodyReader(strings.NewReader("hi"), 2, 2, 0)
	_, err := r.GetChunk()
	assert.ErrorIs(t, err, ErrMaxBodySizeExceeded)
}

func TestBoundedBodyReader_PastMaxBodySize(t *testing.T) {
	r := NewBoundedBodyReader(strings.NewReader("hello"), 100, 10, 10)
	_, err := r.GetChunk()
	assert.ErrorIs(t, err, ErrBodyAlreadyRead)
}
