package server

import (
	"net"
	"time"
)

// deadlineConn renews a read/write deadline before every operation, so
// a single slow or silent client cannot hold a connection worker open
// indefinitely. A zero timeout leaves the corresponding deadline
// unset, matching the historical no-timeout behaviour.
type deadlineConn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.readTimeout > 0 {
		c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.writeTimeout > 0 {
		c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.Conn.Write(p)
}
