package arc

import (
	"strconv"

	"github.com/valyala/bytebufferpool"
	"github.com/watt-toolkit/arc/pkg/arc/wire"
)

// Response assembles the status line, headers and body for one request
// and writes them to the connection exactly once.
type Response struct {
	ctx     *connContext
	request *Request

	headers wire.Header
	status  int
	body    []byte
	sent    bool
}

func newResponse(ctx *connContext, request *Request) *Response {
	return &Response{ctx: ctx, request: request, headers: wire.NewHeader()}
}

// AddHeader appends a response header. Call before Send.
func (res *Response) AddHeader(name, value string) {
	res.headers.Add(name, value)
}

// HTML sets status and a text/html body.
func (res *Response) HTML(status int, text string) {
	res.status = status
	res.body = []byte(text)
	if res.headers.Get("Content-Type") == "" {
		res.headers.Set("Content-Type", "text/html; charset=utf-8")
	}
}

// JSON sets status and an application/json body. Callers are expected
// to pass already-serialised JSON text.
func (res *Response) JSON(status int, text string) {
	res.status = status
	res.body = []byte(text)
	if res.headers.Get("Content-Type") == "" {
		res.headers.Set("Content-Type", "application/json; charset=utf-8")
	}
}

// Send writes the response to the connection. It is a programming
// error to call Send more than once or before HTML/JSON has set a
// status; the handler contract requires exactly one call.
func (res *Response) Send() error {
	if res.sent {
		return nil
	}
	res.sent = true

	closeConn := res.request.ShouldCloseConnection()
	res.ctx.keepLooping = !closeConn

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	reason := StatusText(res.status)
	buf.WriteString("HTTP/1.1 " + strconv.Itoa(res.status) + " " + reason + "\r\n")

	res.headers.VisitInOrder(func(name, value string) {
		buf.WriteString(name + ": " + value + "\r\n")
	})

	buf.WriteString("Content-Length: " + strconv.Itoa(len(res.body)) + "\r\n")
	if !closeConn {
		buf.WriteString("Connection: keep-alive\r\n")
	}
	buf.WriteString("\r\n")

	if res.request.Method != wire.MethodHead {
		buf.Write(res.body)
	}

	// Writes are buffered and flushed once per spec.md §4.8.
	if _, err := res.ctx.conn.Write(buf.Bytes()); err != nil {
		return err
	}

	if closeConn {
		res.ctx.conn.Close()
	}
	return nil
}
