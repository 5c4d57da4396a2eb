package arc

import (
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watt-toolkit/arc/pkg/arc/wire"
)

type fullStubConn struct {
	r       io.Reader
	written strings.Builder
	closed  bool
}

func (c *fullStubConn) Read(p []byte) (int, error)       { return c.r.Read(p) }
func (c *fullStubConn) Write(p []byte) (int, error)      { c.written.Write(p); return len(p), nil }
func (c *fullStubConn) Close() error                     { c.closed = true; return nil }
func (c *fullStubConn) LocalAddr() net.Addr              { return nil }
func (c *fullStubConn) RemoteAddr() net.Addr             { return nil }
func (c *fullStubConn) SetDeadline(t time.Time) error     { return nil }
func (c *fullStubConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fullStubConn) SetWriteDeadline(t time.Time) error { return nil }

var _ net.Conn = (*fullStubConn)(nil)

// TestServeConnection_S4_KeepAliveReuse is scenario S4: two sequential
// GETs with Connection: keep-alive and no body, on one socket. Each
// request arrives in its own read, as from a client that waits for the
// first response before sending the second.
func TestServeConnection_S4_KeepAliveReuse(t *testing.T) {
	conn := &fullStubConn{r: io.MultiReader(
		strings.NewReader("GET /a HTTP/1.1\r\nConnection: keep-alive\r\n\r\n"),
		strings.NewReader("GET /b HTTP/1.1\r\nConnection: keep-alive\r\n\r\n"),
	)}

	routes := NewRouteTable()
	var seenPaths []string
	routes.Handle("/a", func(req *Request, res *Response) {
		seenPaths = append(seenPaths, req.Pathname)
		res.HTML(200, "a")
		res.Send()
	})
	routes.Handle("/b", func(req *Request, res *Response) {
		seenPaths = append(seenPaths, req.Pathname)
		res.HTML(200, "b")
		res.Send()
	})

	ServeConnection(conn, routes, wire.ResolveLimits(wire.Limits{}))

	require.Equal(t, []string{"/a", "/b"}, seenPaths)
	assert.True(t, conn.closed, "ServeConnection closes the socket once the stream is exhausted")
}

// TestServeConnection_S5_MalformedRequestLine is scenario S5.
func TestServeConnection_S5_MalformedRequestLine(t *testing.T) {
	conn := &fullStubConn{r: strings.NewReader("GARBAGE\r\n\r\n")}
	routes := NewRouteTable()
	called := false
	routes.Handle("/", func(req *Request, res *Response) {
		called = true
		res.HTML(200, "unreachable")
	})

	ServeConnection(conn, routes, wire.ResolveLimits(wire.Limits{}))

	assert.False(t, called)
	assert.Empty(t, conn.written.String())
	assert.True(t, conn.closed)
}

func TestServeConnection_UnmatchedPath_Returns404(t *testing.T) {
	conn := &fullStubConn{r: strings.NewReader("GET /missing HTTP/1.1\r\n\r\n")}
	routes := NewRouteTable()

	ServeConnection(conn, routes, wire.ResolveLimits(wire.Limits{}))

	assert.Contains(t, conn.written.String(), "404")
}
