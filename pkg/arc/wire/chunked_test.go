package wire

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkedReader_Decode(t *testing.T) {
	raw := "5\r\nhello\r\n6\r\n world\r\n0\r\n\r\n"
	r := NewChunkedReader(strings.NewReader(raw))

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(out))
}

func TestChunkedReader_IgnoresExtensions(t *testing.T) {
	raw := "5;ext=value\r\nhello\r\n0\r\n\r\n"
	r := NewChunkedReader(strings.NewReader(raw))

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestChunkedReader_MalformedSize(t *testing.T) {
	raw := "zzz\r\nhello\r\n"
	r := NewChunkedReader(strings.NewReader(raw))

	_, err := io.ReadAll(r)
	assert.ErrorIs(t, err, ErrChunkedEncoding)
}
