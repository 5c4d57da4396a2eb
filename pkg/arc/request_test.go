package arc

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watt-toolkit/arc/pkg/arc/wire"
)

// stubConn adapts an io.Reader to net.Conn for tests that only ever
// read from the "socket".
type stubConn struct {
	r *strings.Reader
}

func (c *stubConn) Read(p []byte) (int, error)         { return c.r.Read(p) }
func (c *stubConn) Write(p []byte) (int, error)         { return len(p), nil }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) LocalAddr() net.Addr                 { return nil }
func (c *stubConn) RemoteAddr() net.Addr                { return nil }
func (c *stubConn) SetDeadline(t time.Time) error       { return nil }
func (c *stubConn) SetReadDeadline(t time.Time) error    { return nil }
func (c *stubConn) SetWriteDeadline(t time.Time) error   { return nil }

func newTestRequest(t *testing.T, rawPath, bodyRemainder string, headers wire.Header, partialBody []byte) *Request {
	t.Helper()
	ctx := &connContext{conn: &stubConn{r: strings.NewReader(bodyRemainder)}, keepLooping: true}
	line := wire.RequestLine{Method: "GET", RawPath: rawPath, Version: "HTTP/1.1"}
	return newRequest(ctx, line, headers, partialBody, wire.ResolveLimits(wire.Limits{}))
}

// newTestPostRequest is newTestRequest with Method POST, for bodies that
// must not hit the bodiless-method body_read preset (spec.md §3).
func newTestPostRequest(t *testing.T, rawPath, bodyRemainder string, headers wire.Header, partialBody []byte) *Request {
	t.Helper()
	ctx := &connContext{conn: &stubConn{r: strings.NewReader(bodyRemainder)}, keepLooping: true}
	line := wire.RequestLine{Method: "POST", RawPath: rawPath, Version: "HTTP/1.1"}
	return newRequest(ctx, line, headers, partialBody, wire.ResolveLimits(wire.Limits{}))
}

// TestRequest_S3_GetWithQuery is scenario S3.
func TestRequest_S3_GetWithQuery(t *testing.T) {
	req := newTestRequest(t, "/search?q=hi&lang=en", "", wire.NewHeader(), nil)
	assert.Equal(t, "/search", req.Pathname)
	assert.Equal(t, []string{"hi"}, req.QueryParams["q"])
	assert.Equal(t, []string{"en"}, req.QueryParams["lang"])
	assert.True(t, req.bodyRead)
}

func TestRequest_FormData_URLEncoded(t *testing.T) {
	headers := wire.NewHeader()
	headers.Set("Content-Type", "application/x-www-form-urlencoded")
	headers.Set("Content-Length", "16")

	req := newTestRequest(t, "/submit", "name=John&age=22", headers, nil)
	form := req.FormData()
	assert.Equal(t, "John", form.Get("name"))
	assert.Equal(t, "22", form.Get("age"))
}

func TestRequest_FormData_Idempotent(t *testing.T) {
	headers := wire.NewHeader()
	headers.Set("Content-Type", "application/x-www-form-urlencoded")
	headers.Set("Content-Length", "7")

	req := newTestRequest(t, "/submit", "a=1&b=2", headers, nil)
	first := req.FormData()
	second := req.FormData()
	assert.Equal(t, first, second)
}

func TestRequest_FormData_ChunkedURLEncoded(t *testing.T) {
	headers := wire.NewHeader()
	headers.Set("Content-Type", "application/x-www-form-urlencoded")
	headers.Set("Transfer-Encoding", "chunked")

	req := newTestPostRequest(t, "/submit", "4\r\nname\r\n5\r\n=John\r\n0\r\n\r\n", headers, nil)
	form := req.FormData()
	assert.Equal(t, "John", form.Get("name"))
}

func TestRequest_FormData_ChunkedURLEncoded_PartialBodySeed(t *testing.T) {
	headers := wire.NewHeader()
	headers.Set("Content-Type", "application/x-www-form-urlencoded")
	headers.Set("Transfer-Encoding", "chunked")

	// Simulate the header extractor having already read a prefix of the
	// chunked stream past the CRLF-CRLF boundary.
	req := newTestPostRequest(t, "/submit", "5\r\n=John\r\n0\r\n\r\n", headers, []byte("4\r\nname\r\n"))
	form := req.FormData()
	assert.Equal(t, "John", form.Get("name"))
}

func TestRequest_Body_Chunked(t *testing.T) {
	headers := wire.NewHeader()
	headers.Set("Transfer-Encoding", "chunked")

	req := newTestPostRequest(t, "/upload", "5\r\nhello\r\n0\r\n\r\n", headers, nil)
	f, err := req.Body()
	require.NoError(t, err)
	defer f.Close()

	data := make([]byte, 5)
	n, err := f.Read(data)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data[:n]))
}

func TestRequest_UnrecognisedContentType_SilentlyEmpty(t *testing.T) {
	headers := wire.NewHeader()
	headers.Set("Content-Type", "application/octet-stream")
	headers.Set("Content-Length", "3")

	req := newTestRequest(t, "/upload", "abc", headers, nil)
	form := req.FormData()
	assert.Empty(t, form)
}

func TestRequest_ShouldCloseConnection_NoConnectionHeader(t *testing.T) {
	req := newTestRequest(t, "/", "", wire.NewHeader(), nil)
	assert.True(t, req.ShouldCloseConnection())
}

func TestRequest_ShouldCloseConnection_KeepAliveAndBodyRead(t *testing.T) {
	headers := wire.NewHeader()
	headers.Set("Connection", "keep-alive")
	req := newTestRequest(t, "/", "", headers, nil)
	require.True(t, req.bodyRead)
	assert.False(t, req.ShouldCloseConnection())
}
