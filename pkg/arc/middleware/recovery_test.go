package middleware

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/watt-toolkit/arc/pkg/arc"
	"github.com/watt-toolkit/arc/pkg/arc/wire"
)

type stubConn struct{ r *strings.Reader }

func (c *stubConn) Read(p []byte) (int, error)       { return c.r.Read(p) }
func (c *stubConn) Write(p []byte) (int, error)      { return len(p), nil }
func (c *stubConn) Close() error                     { return nil }
func (c *stubConn) LocalAddr() net.Addr              { return nil }
func (c *stubConn) RemoteAddr() net.Addr             { return nil }
func (c *stubConn) SetDeadline(t time.Time) error     { return nil }
func (c *stubConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *stubConn) SetWriteDeadline(t time.Time) error { return nil }

func TestRecovery_CatchesPanic(t *testing.T) {
	routes := arc.NewRouteTable()
	routes.Handle("/", Recovery(func(req *arc.Request, res *arc.Response) {
		panic("boom")
	}))

	conn := &stubConn{r: strings.NewReader("GET / HTTP/1.1\r\n\r\n")}
	assert.NotPanics(t, func() {
		arc.ServeConnection(conn, routes, wire.ResolveLimits(wire.Limits{}))
	})
}

func TestRecovery_PassesThroughWhenNoPanic(t *testing.T) {
	called := false
	handler := Recovery(func(req *arc.Request, res *arc.Response) {
		called = true
		res.HTML(200, "fine")
		res.Send()
	})

	routes := arc.NewRouteTable()
	routes.Handle("/", handler)
	conn := &stubConn{r: strings.NewReader("GET / HTTP/1.1\r\n\r\n")}
	arc.ServeConnection(conn, routes, wire.ResolveLimits(wire.Limits{}))

	assert.True(t, called)
}
