package wire

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/valyala/bytebufferpool"
)

// FieldLimit bounds a single named multipart field.
type FieldLimit struct {
	MaxSize     int64
	ContentType string
}

// Limits bounds the resources a multipart (or url-encoded) body parse
// may consume.
type Limits struct {
	MaxBodySize    int64
	MaxHeaderSize  int64
	FormPartLimits map[string]FieldLimit

	// TempDir, if set, is where file parts are spooled. Empty uses the
	// OS default temp directory.
	TempDir string
}

// FormPart is one part of a parsed multipart/form-data body. At most
// one of SpooledFile / ValueBytes is set: a present Filename means the
// part is a file (SpooledFile set), otherwise it is a value
// (ValueBytes set).
type FormPart struct {
	Name        string
	Filename    string
	ContentType string
	SpooledFile *os.File
	ValueBytes  []byte
}

// IsFile reports whether this part was uploaded with a filename.
func (p FormPart) IsFile() bool { return p.Filename != "" }

// multipartSource is the streaming reader contract the boundary state
// machine is built on: GetChunk reads up to 8KiB (a zero-byte read
// means BodyReadEnd), GetExact reads exactly n bytes. body_ended is
// tracked by content-length when known; once ended, further reads keep
// failing with BodyReadEnd rather than blocking again.
type multipartSource struct {
	r         io.Reader
	remaining int64 // -1 when the body length isn't known up front
	ended     bool
}

func newMultipartSource(r io.Reader, contentLength int64) *multipartSource {
	remaining := int64(-1)
	if contentLength >= 0 {
		remaining = contentLength
	}
	return &multipartSource{r: r, remaining: remaining}
}

func (s *multipartSource) GetChunk() ([]byte, error) {
	if s.ended {
		return nil, ErrBodyReadEnd
	}

	want := multipartReadChunk
	if s.remaining >= 0 {
		if s.remaining == 0 {
			s.ended = true
			return nil, ErrBodyReadEnd
		}
		if int64(want) > s.remaining {
			want = int(s.remaining)
		}
	}

	buf := make([]byte, want)
	n, err := s.r.Read(buf)
	if n == 0 {
		s.ended = true
		return nil, ErrBodyReadEnd
	}
	if s.remaining >= 0 {
		s.remaining -= int64(n)
	}
	if err != nil && err != io.EOF {
		return buf[:n], err
	}
	return buf[:n], nil
}

func (s *multipartSource) GetExact(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		chunk, err := s.GetChunk()
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out[:n], nil
}

// multipartParser drives the boundary state machine over a sliding
// byte buffer fed by multipartSource.
type multipartParser struct {
	src      *multipartSource
	buf      []byte
	start    []byte
	inter    []byte
	endTail  []byte
	nextTail []byte
	limits   Limits
}

// ParseMultipart streams a multipart/form-data body from r, spooling
// file parts to temp files and keeping value parts in memory, per the
// boundary vocabulary:
//
//	START     = "--<boundary>\r\n"       opens the body, precedes every part
//	INTER     = "\r\n--<boundary>"        ends a part's content
//	END_TAIL  = "--\r\n"                  follows INTER for the final part
//	NEXT_TAIL = "\r\n"                    follows INTER for a non-final part
//
// partialBody is any body bytes already consumed past the header
// boundary by the header extractor; it is replayed as the initial
// buffer contents. contentLength is -1 when not known up front.
func ParseMultipart(r io.Reader, boundary string, partialBody []byte, contentLength int64, limits Limits) ([]FormPart, error) {
	if limits.MaxBodySize > 0 && contentLength >= 0 && contentLength > limits.MaxBodySize {
		return nil, ErrMaxBodySizeExceeded
	}

	// contentLength bounds the whole body, including partialBody (bytes
	// the header extractor already consumed from the socket). The
	// source only ever reads the rest from r, so it must be seeded with
	// the remainder, not the full length, or it over-counts by
	// len(partialBody).
	sourceRemaining := contentLength
	if sourceRemaining >= 0 {
		sourceRemaining -= int64(len(partialBody))
		if sourceRemaining < 0 {
			sourceRemaining = 0
		}
	}

	p := &multipartParser{
		src:      newMultipartSource(r, sourceRemaining),
		buf:      append([]byte(nil), partialBody...),
		start:    []byte("--" + boundary + "\r\n"),
		inter:    []byte("\r\n--" + boundary),
		endTail:  []byte("--\r\n"),
		nextTail: []byte("\r\n"),
		limits:   limits,
	}

	return p.run()
}

// ensure grows p.buf until it has at least n bytes buffered, or
// returns the error that prevented that (typically ErrBodyReadEnd).
func (p *multipartParser) ensure(n int) error {
	for len(p.buf) < n {
		chunk, err := p.src.GetChunk()
		if err != nil {
			return err
		}
		p.buf = append(p.buf, chunk...)
	}
	return nil
}

func (p *multipartParser) consume(n int) {
	p.buf = p.buf[n:]
}

func (p *multipartParser) run() ([]FormPart, error) {
	// State 1: ExpectStart
	if err := p.ensure(len(p.start)); err != nil {
		return nil, ErrInvalidMultipart
	}
	if !bytes.Equal(p.buf[:len(p.start)], p.start) {
		return nil, ErrInvalidMultipart
	}
	p.consume(len(p.start))

	var parts []FormPart
	for {
		part, final, err := p.readOnePart()
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
		if final {
			return parts, nil
		}
	}
}

// readOnePart runs states 2-5 for a single part: ReadPartHeader,
// ParsePartHeader, ReadPartBody, BoundaryTail.
func (p *multipartParser) readOnePart() (FormPart, bool, error) {
	headerBlock, err := p.readPartHeaderBlock()
	if err != nil {
		return FormPart{}, false, err
	}

	part, err := parsePartHeaderBlock(headerBlock)
	if err != nil {
		return FormPart{}, false, err
	}

	if err := p.readPartBody(&part); err != nil {
		return FormPart{}, false, err
	}

	final, err := p.readBoundaryTail()
	if err != nil {
		return FormPart{}, false, err
	}

	return part, final, nil
}

// readPartHeaderBlock implements state 2: accumulate until \r\n\r\n;
// everything before it is the header block (possibly empty).
func (p *multipartParser) readPartHeaderBlock() ([]byte, error) {
	for {
		if idx := bytes.Index(p.buf, []byte(crlfcrlf)); idx != -1 {
			block := append([]byte(nil), p.buf[:idx]...)
			p.consume(idx + len(crlfcrlf))
			return block, nil
		}

		if p.limits.MaxHeaderSize > 0 && int64(len(p.buf)) >= p.limits.MaxHeaderSize {
			return nil, ErrMaxHeaderSizeExceeded
		}

		chunk, err := p.src.GetChunk()
		if err != nil {
			return nil, ErrInvalidMultipart
		}
		p.buf = append(p.buf, chunk...)
	}
}

// parsePartHeaderBlock implements state 3. Content-Disposition must
// begin with "form-data;" followed by name="..." and optional
// filename="..." (or the RFC 5987 filename*=... form, which takes
// precedence when both are present). Header names are matched
// case-insensitively; unrecognised header lines are ignored. An empty
// header block yields an unnamed value part.
func parsePartHeaderBlock(block []byte) (FormPart, error) {
	if len(block) == 0 {
		return FormPart{}, nil
	}

	var disposition, contentType string
	for _, line := range strings.Split(string(block), crlf) {
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon == -1 {
			continue
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		switch {
		case strings.EqualFold(name, "Content-Disposition"):
			disposition = value
		case strings.EqualFold(name, "Content-Type"):
			contentType = value
		}
	}

	if disposition == "" {
		return FormPart{}, ErrInvalidMultipart
	}

	fields := strings.Split(disposition, ";")
	if !strings.EqualFold(strings.TrimSpace(fields[0]), "form-data") {
		return FormPart{}, ErrInvalidMultipart
	}

	var name, filename, filenameStar string
	for _, field := range fields[1:] {
		key, value, ok := parseDispositionParam(field)
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "name":
			name = value
		case "filename":
			filename = value
		case "filename*":
			filenameStar = value
		}
	}

	if filenameStar != "" {
		filename = decodeExtValue(filenameStar)
	}

	return FormPart{Name: name, Filename: filename, ContentType: contentType}, nil
}

// parseDispositionParam parses one "key=value" (optionally quoted)
// Content-Disposition parameter.
func parseDispositionParam(field string) (key, value string, ok bool) {
	field = strings.TrimSpace(field)
	eq := strings.IndexByte(field, '=')
	if eq == -1 {
		return "", "", false
	}
	key = strings.TrimSpace(field[:eq])
	value = strings.TrimSpace(field[eq+1:])
	value = strings.Trim(value, `"`)
	return key, value, true
}

// decodeExtValue decodes the RFC 5987 extended value form
// charset'lang'value, returning just value percent-decoded. Unknown
// charsets are decoded the same way: this engine only needs the bytes,
// not a charset conversion.
func decodeExtValue(raw string) string {
	parts := strings.SplitN(raw, "'", 3)
	v := raw
	if len(parts) == 3 {
		v = parts[2]
	}
	return percentDecodeExt(v)
}

func percentDecodeExt(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if hi, ok1 := hexDigit(s[i+1]); ok1 {
				if lo, ok2 := hexDigit(s[i+2]); ok2 {
					b.WriteByte(hi<<4 | lo)
					i += 2
					continue
				}
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// readPartBody implements state 4: scan for INTER, retaining a
// len(INTER)+2 byte tail so a cross-chunk match is never missed and a
// client-appended trailing \r\n inside the content can be stripped.
func (p *multipartParser) readPartBody(part *FormPart) error {
	if part.IsFile() {
		return p.readFileBody(part)
	}
	return p.readValueBody(part)
}

func (p *multipartParser) readFileBody(part *FormPart) error {
	f, err := os.CreateTemp(p.limits.TempDir, "arc-multipart-*")
	if err != nil {
		return err
	}
	part.SpooledFile = f

	if err := p.scanUntilInter(func(b []byte) error {
		_, werr := f.Write(b)
		return werr
	}); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return err
	}
	return nil
}

func (p *multipartParser) readValueBody(part *FormPart) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	limit := p.limits.MaxBodySize
	if fl, ok := p.limits.FormPartLimits[part.Name]; ok && fl.MaxSize > 0 {
		limit = fl.MaxSize
	}

	if err := p.scanUntilInter(func(b []byte) error {
		if limit > 0 && int64(buf.Len()+len(b)) > limit {
			return &FieldSizeError{Field: part.Name}
		}
		_, werr := buf.Write(b)
		return werr
	}); err != nil {
		return err
	}

	part.ValueBytes = append([]byte(nil), buf.Bytes()...)
	return nil
}

// scanUntilInter feeds flush with every byte confirmed to belong to
// the part body (with a trailing \r\n stripped immediately before
// INTER), and leaves p.buf positioned right after INTER once found.
func (p *multipartParser) scanUntilInter(flush func([]byte) error) error {
	tailLen := len(p.inter) + 2

	for {
		if idx := bytes.Index(p.buf, p.inter); idx != -1 {
			content := p.buf[:idx]
			if len(content) >= 2 && content[len(content)-2] == '\r' && content[len(content)-1] == '\n' {
				content = content[:len(content)-2]
			}
			if len(content) > 0 {
				if err := flush(content); err != nil {
					return err
				}
			}
			p.consume(idx + len(p.inter))
			return nil
		}

		if len(p.buf) > tailLen {
			safe := p.buf[:len(p.buf)-tailLen]
			if err := flush(safe); err != nil {
				return err
			}
			p.buf = p.buf[len(p.buf)-tailLen:]
		}

		chunk, err := p.src.GetChunk()
		if err != nil {
			return ErrParsing
		}
		p.buf = append(p.buf, chunk...)
	}
}

// readBoundaryTail implements state 5.
func (p *multipartParser) readBoundaryTail() (final bool, err error) {
	if err := p.ensure(len(p.endTail)); err != nil {
		return false, ErrParsing
	}
	if bytes.Equal(p.buf[:len(p.endTail)], p.endTail) {
		p.consume(len(p.endTail))
		return true, nil
	}
	if bytes.Equal(p.buf[:len(p.nextTail)], p.nextTail) {
		p.consume(len(p.nextTail))
		return false, nil
	}
	return false, ErrParsing
}

// BoundaryFromContentType extracts the boundary token from a
// multipart/form-data Content-Type header value, scanning every
// ";"-separated parameter rather than assuming boundary= is any
// particular position (RFC 7578 allows other parameter orderings).
func BoundaryFromContentType(contentType string) (string, error) {
	parts := strings.Split(contentType, ";")
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, "boundary=") {
			continue
		}
		boundary := strings.TrimPrefix(part, "boundary=")
		boundary = strings.Trim(boundary, `"`)
		if boundary == "" {
			continue
		}
		return boundary, nil
	}
	return "", ErrMissingBoundary
}
