package arc

import (
	"net"
	"sync"

	"github.com/watt-toolkit/arc/pkg/arc/wire"
)

// HandlerFunc receives a Request and a Response and must call Send
// exactly once on the Response.
type HandlerFunc func(*Request, *Response)

// connContext is the per-connection state shared between Request and
// Response: the socket handle and the keep_looping flag. Per this
// engine's concurrency model, one goroutine serialises extract → handle
// → send → reloop for a given connection, so keep_looping is a plain
// bool rather than an atomic — there is never a second goroutine that
// could race it.
type connContext struct {
	conn        net.Conn
	keepLooping bool
}

// RouteTable is the exact-match path dispatch table, shared read-only
// across connection workers under a RWMutex: only the listener
// registers routes, workers only read.
type RouteTable struct {
	mu     sync.RWMutex
	routes map[string]HandlerFunc
}

// NewRouteTable returns an empty RouteTable.
func NewRouteTable() *RouteTable {
	return &RouteTable{routes: make(map[string]HandlerFunc)}
}

// Handle registers handler for pathname, exact-match only.
func (rt *RouteTable) Handle(pathname string, handler HandlerFunc) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.routes[pathname] = handler
}

func (rt *RouteTable) lookup(pathname string) (HandlerFunc, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	h, ok := rt.routes[pathname]
	return h, ok
}

// notFound synthesises the 404 response for unmatched paths.
func notFound(req *Request, res *Response) {
	res.HTML(404, "404 Not Found")
	res.Send()
}

// ServeConnection runs the per-connection loop (C9): extract headers,
// parse the request line, dispatch, send, and decide whether to loop
// based on the per-connection keep_looping flag the just-sent Response
// set. Malformed input at any stage stops the loop and closes the
// socket without emitting a response, except for an unmatched path,
// which gets a synthetic 404.
func ServeConnection(conn net.Conn, routes *RouteTable, limits wire.Limits) {
	defer conn.Close()

	limits = wire.ResolveLimits(limits)
	ctx := &connContext{conn: conn, keepLooping: true}

	for ctx.keepLooping {
		headerText, leftover, err := wire.ExtractHeaders(conn, int(limits.MaxHeaderSize))
		if err != nil {
			return
		}

		lines := splitFirstLine(headerText)
		line, err := wire.ParseRequestLine(lines.requestLine)
		if err != nil {
			return
		}
		headers := wire.ParseHeaderLines(lines.headerLines)

		req := newRequest(ctx, line, headers, leftover, limits)
		res := newResponse(ctx, req)

		handler, ok := routes.lookup(req.Pathname)
		if !ok {
			handler = notFound
		}
		handler(req, res)

		if !ctx.keepLooping {
			return
		}
	}
}

type splitLines struct {
	requestLine string
	headerLines string
}

// splitFirstLine separates the request-line from the remaining header
// lines in the header_text returned by ExtractHeaders.
func splitFirstLine(headerText []byte) splitLines {
	text := string(headerText)
	for i := 0; i < len(text); i++ {
		if text[i] == '\r' && i+1 < len(text) && text[i+1] == '\n' {
			return splitLines{requestLine: text[:i], headerLines: text[i+2:]}
		}
	}
	return splitLines{requestLine: text}
}
