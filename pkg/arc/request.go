package arc

import (
	"bytes"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/watt-toolkit/arc/pkg/arc/wire"
)

// FormFile is an uploaded multipart file, handed to user code with its
// spooled contents seeked to the start.
type FormFile struct {
	Filename    string
	ContentType string
	File        *os.File
}

// Request holds one HTTP/1.1 request's parsed head and lazy, idempotent
// accessors over its body.
type Request struct {
	ctx *connContext

	Method      string
	RawPath     string
	Pathname    string
	RawQuery    string
	Version     string
	Headers     wire.Header
	QueryParams wire.Values

	partialBody []byte
	limits      wire.Limits

	bodyRead   bool
	bodyParsed bool

	bodyFile  *os.File
	formData  wire.Values
	formFiles map[string][]FormFile
}

// newRequest builds a Request from an already-parsed request line and
// header block, then performs the setup step inline: query-string
// decoding and the bodiless-method body_read pre-set.
func newRequest(ctx *connContext, line wire.RequestLine, headers wire.Header, partialBody []byte, limits wire.Limits) *Request {
	pathname, rawQuery := wire.SplitPathQuery(line.RawPath)

	r := &Request{
		ctx:         ctx,
		Method:      strings.ToUpper(line.Method),
		RawPath:     line.RawPath,
		Pathname:    pathname,
		RawQuery:    rawQuery,
		Version:     line.Version,
		Headers:     headers,
		QueryParams: wire.ParseURLEncoded(rawQuery),
		partialBody: partialBody,
		limits:      limits,
	}

	if wire.IsBodilessMethod(r.Method) && !r.Headers.Has("Content-Length") {
		r.bodyRead = true
	}

	return r
}

// isChunked reports whether the request declares
// Transfer-Encoding: chunked in place of Content-Length. Per the
// chunked-decoding supplement (SPEC_FULL.md §4.7), such bodies are
// de-chunked transparently before reaching the URL-encoded or
// multipart parser.
func (r *Request) isChunked() bool {
	return strings.EqualFold(r.Headers.Get("Transfer-Encoding"), "chunked")
}

// contentLength returns the parsed Content-Length header, or -1 if
// absent or malformed.
func (r *Request) contentLength() int64 {
	raw := r.Headers.Get("Content-Length")
	if raw == "" {
		return -1
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// drainPartialBody returns partial_body and clears it, per the
// drain-on-first-read invariant.
func (r *Request) drainPartialBody() []byte {
	b := r.partialBody
	r.partialBody = nil
	return b
}

// Body streams the raw request body to a temp file, seeked to the
// start. The body must carry Content-Length or Transfer-Encoding:
// chunked; otherwise Body returns ErrContentLengthMissing. Once the body
// has been consumed, Body returns the file from an earlier successful
// Body call, or nil, nil when FormData/Files, a failed Body call or the
// bodiless-method pre-set marked it read.
func (r *Request) Body() (*os.File, error) {
	if r.bodyRead {
		return r.bodyFile, nil
	}

	cl := r.contentLength()
	chunked := cl < 0 && r.isChunked()
	if cl < 0 && !chunked {
		r.bodyRead = true
		return nil, wire.ErrContentLengthMissing
	}
	if !chunked && r.limits.MaxBodySize > 0 && cl > r.limits.MaxBodySize {
		r.bodyRead = true
		return nil, wire.ErrMaxBodySizeExceeded
	}

	f, err := os.CreateTemp(r.limits.TempDir, "arc-body-*")
	if err != nil {
		r.bodyRead = true
		return nil, err
	}

	partial := r.drainPartialBody()

	if chunked {
		// partial holds chunk-encoded bytes (framing included), not raw
		// body content, so it must flow through the decoder rather than
		// being written to f directly.
		if err := r.spoolChunkedBody(f, partial); err != nil {
			f.Close()
			os.Remove(f.Name())
			r.bodyRead = true
			return nil, err
		}
	} else {
		if _, err := f.Write(partial); err != nil {
			f.Close()
			os.Remove(f.Name())
			r.bodyRead = true
			return nil, err
		}
		reader := wire.NewBoundedBodyReader(r.ctx.conn, cl, int64(len(partial)), r.limits.MaxBodySize)
		for reader.BytesRead() < cl {
			chunk, err := reader.GetChunk()
			if err != nil {
				f.Close()
				os.Remove(f.Name())
				r.bodyRead = true
				return nil, err
			}
			if len(chunk) == 0 {
				break
			}
			if _, err := f.Write(chunk); err != nil {
				f.Close()
				os.Remove(f.Name())
				r.bodyRead = true
				return nil, err
			}
		}
	}

	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		r.bodyRead = true
		return nil, err
	}

	r.bodyFile = f
	r.bodyRead = true
	r.bodyParsed = true
	return f, nil
}

// spoolChunkedBody de-chunks partial (chunk-encoded bytes already read
// past the header boundary) followed by the rest of the connection
// stream, and writes the decoded content to f, bounded by MaxBodySize.
func (r *Request) spoolChunkedBody(f *os.File, partial []byte) error {
	dechunked := wire.NewChunkedReader(io.MultiReader(bytes.NewReader(partial), r.ctx.conn))
	written := int64(0)
	buf := make([]byte, 8*1024)
	for {
		n, err := dechunked.Read(buf)
		if n > 0 {
			written += int64(n)
			if r.limits.MaxBodySize > 0 && written > r.limits.MaxBodySize {
				return wire.ErrMaxBodySizeExceeded
			}
			if _, werr := f.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// FormData returns the decoded form fields, parsing the body on first
// call and returning the cached mapping thereafter. Per spec.md §7, a
// decode failure is logged and observed by the caller as an empty
// mapping, not surfaced as an error: the handler is never informed of
// decode failure directly.
func (r *Request) FormData() wire.Values {
	r.ensureParsed()
	return r.formData
}

// Files returns the decoded multipart files, parsing the body on first
// call and returning the cached mapping thereafter. Same silent-empty
// policy as FormData on decode failure.
func (r *Request) Files() map[string][]FormFile {
	r.ensureParsed()
	return r.formFiles
}

// ensureParsed parses the request body at most once, branching on
// Content-Type; non-matching content types leave form_data/form_files
// empty without error, per the silent-empty policy. Any decode error
// is logged here and otherwise swallowed: per spec.md §7 the decoder
// surfaces structured errors to the Request accessors, which log and
// return empty rather than informing the handler directly.
func (r *Request) ensureParsed() {
	if r.bodyRead {
		return
	}

	contentType := r.Headers.Get("Content-Type")
	partial := r.drainPartialBody()
	cl := r.contentLength()
	chunked := cl < 0 && r.isChunked()

	switch {
	case strings.HasPrefix(contentType, "multipart/form-data;"):
		boundary, err := wire.BoundaryFromContentType(contentType)
		if err != nil {
			log.Printf("arc: %s %s: multipart decode failed: %v", r.Method, r.Pathname, err)
			r.formData = make(wire.Values)
			r.formFiles = make(map[string][]FormFile)
			break
		}
		bodyReader := io.Reader(r.ctx.conn)
		bodyPartial, bodyCL := partial, cl
		if chunked {
			bodyReader = wire.NewChunkedReader(io.MultiReader(bytes.NewReader(partial), r.ctx.conn))
			bodyPartial, bodyCL = nil, -1
		}
		parts, err := wire.ParseMultipart(bodyReader, boundary, bodyPartial, bodyCL, r.limits)
		if err != nil {
			log.Printf("arc: %s %s: multipart decode failed: %v", r.Method, r.Pathname, err)
			r.formData = make(wire.Values)
			r.formFiles = make(map[string][]FormFile)
			break
		}
		r.formData = make(wire.Values)
		r.formFiles = make(map[string][]FormFile)
		for _, p := range parts {
			if p.IsFile() {
				r.formFiles[p.Name] = append(r.formFiles[p.Name], FormFile{
					Filename:    p.Filename,
					ContentType: p.ContentType,
					File:        p.SpooledFile,
				})
			} else {
				r.formData.Add(p.Name, string(p.ValueBytes))
			}
		}

	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		var values wire.Values
		var err error
		if chunked {
			dechunked := wire.NewChunkedReader(io.MultiReader(bytes.NewReader(partial), r.ctx.conn))
			values, err = wire.ParseURLEncodedBodyChunked(dechunked, nil, r.limits.MaxBodySize)
		} else {
			values, err = wire.ParseURLEncodedBody(r.ctx.conn, partial, cl, r.limits.MaxBodySize)
		}
		if err != nil {
			log.Printf("arc: %s %s: url-encoded decode failed: %v", r.Method, r.Pathname, err)
			r.formData = make(wire.Values)
			r.formFiles = make(map[string][]FormFile)
			break
		}
		r.formData = values
		r.formFiles = make(map[string][]FormFile)

	default:
		r.formData = make(wire.Values)
		r.formFiles = make(map[string][]FormFile)
	}

	r.bodyRead = true
	r.bodyParsed = true
}

// ShouldCloseConnection reports whether the connection driver must shut
// the socket down after this request/response cycle: keep-alive
// requires an explicit "Connection: keep-alive" AND a fully-read body.
func (r *Request) ShouldCloseConnection() bool {
	if !strings.EqualFold(r.Headers.Get("Connection"), "keep-alive") {
		return true
	}
	return !r.bodyRead
}
