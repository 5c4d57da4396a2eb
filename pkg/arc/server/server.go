// Package server implements the Listener (C10): it binds a TCP address,
// accepts connections, and spawns one worker goroutine per connection
// running arc.ServeConnection against a shared, read-mostly route table.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/watt-toolkit/arc/pkg/arc"
	"github.com/watt-toolkit/arc/pkg/arc/wire"
)

// Config holds server configuration. Zero-valued fields fall back to
// DefaultConfig's values.
type Config struct {
	// Addr is the TCP address to listen on, e.g. ":8080".
	Addr string

	// Routes is the exact-match path dispatch table. Required.
	Routes *arc.RouteTable

	// ReadTimeout bounds how long a connection worker will block on a
	// single read before the read fails and the connection is closed.
	// Zero falls back to DefaultConfig's 60s, so every connection served
	// by Server carries a read deadline; there is no setting that
	// disables it.
	ReadTimeout time.Duration

	// WriteTimeout bounds how long a single write may block.
	WriteTimeout time.Duration

	MaxHeaderSize int64
	MaxBodySize   int64
	TempDir       string
}

// DefaultConfig returns the configuration used for any zero-valued
// field passed to Serve.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		ReadTimeout:   60 * time.Second,
		WriteTimeout:  60 * time.Second,
		MaxHeaderSize: wire.DefaultMaxHeaderSize,
		MaxBodySize:   wire.DefaultMaxBodySize,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.MaxHeaderSize == 0 {
		c.MaxHeaderSize = d.MaxHeaderSize
	}
	if c.MaxBodySize == 0 {
		c.MaxBodySize = d.MaxBodySize
	}
	return c
}

// Server accepts TCP connections and dispatches them to the route
// table, one goroutine per connection.
type Server struct {
	config   Config
	listener net.Listener

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	wg sync.WaitGroup

	ready    chan struct{}
	readyOne sync.Once
}

// New constructs a Server. config.Routes must not be nil.
func New(config Config) *Server {
	config = config.withDefaults()
	if config.Routes == nil {
		panic("server: Config.Routes is required")
	}
	return &Server{
		config: config,
		conns:  make(map[net.Conn]struct{}),
		ready:  make(chan struct{}),
	}
}

// Addr blocks until Serve has bound its listener, then returns its
// address. Intended for tests that bind an ephemeral port (":0").
func (s *Server) Addr() net.Addr {
	<-s.ready
	return s.listener.Addr()
}

// Serve binds config.Addr and accepts connections until ctx is
// cancelled or a non-recoverable accept error occurs. It blocks until
// all connection workers have exited.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.readyOne.Do(func() { close(s.ready) })

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	group.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				return err
			}
			s.trackConn(conn)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer s.untrackConn(conn)
				s.serve(conn)
			}()
		}
	})

	err = group.Wait()
	s.wg.Wait()
	return err
}

func (s *Server) serve(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("arc: recovered panic serving %s: %v", conn.RemoteAddr(), r)
		}
	}()

	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}

	limits := wire.ResolveLimits(wire.Limits{
		MaxHeaderSize: s.config.MaxHeaderSize,
		MaxBodySize:   s.config.MaxBodySize,
		TempDir:       s.config.TempDir,
	})

	arc.ServeConnection(&deadlineConn{Conn: conn, readTimeout: s.config.ReadTimeout, writeTimeout: s.config.WriteTimeout}, s.config.Routes, limits)
}

func (s *Server) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

// Shutdown stops accepting new connections and waits for in-flight
// connections to finish, or forcibly closes them once ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener != nil {
		s.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.connsMu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.connsMu.Unlock()
		return ctx.Err()
	}
}
