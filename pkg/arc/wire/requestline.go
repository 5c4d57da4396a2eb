package wire

import "strings"

// RequestLine is the parsed first line of an HTTP request.
type RequestLine struct {
	Method  string
	RawPath string
	Version string
}

// ParseRequestLine splits "<METHOD> <RAW-PATH> <VERSION>". A line that
// doesn't have exactly this shape is rejected outright — the caller is
// expected to close the connection on error, never to guess.
func ParseRequestLine(line string) (RequestLine, error) {
	first := strings.IndexByte(line, ' ')
	if first == -1 {
		return RequestLine{}, ErrMalformedRequestLine
	}
	rest := line[first+1:]
	second := strings.IndexByte(rest, ' ')
	if second == -1 {
		return RequestLine{}, ErrMalformedRequestLine
	}

	method := line[:first]
	rawPath := rest[:second]
	version := rest[second+1:]

	if method == "" || rawPath == "" || version == "" {
		return RequestLine{}, ErrMalformedRequestLine
	}

	return RequestLine{Method: method, RawPath: rawPath, Version: version}, nil
}

// ParseHeaderLines splits header text by CRLF, then each line on the
// first ':'. Both sides are trimmed of surrounding whitespace. Lines
// without a ':' are silently ignored rather than rejected.
func ParseHeaderLines(headerText string) Header {
	h := NewHeader()
	if headerText == "" {
		return h
	}
	for _, line := range strings.Split(headerText, crlf) {
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon == -1 {
			continue
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		if name == "" {
			continue
		}
		h.Add(name, value)
	}
	return h
}

// SplitPathQuery locates the first '?' in rawPath, returning the
// pathname and the (possibly empty) raw query suffix.
func SplitPathQuery(rawPath string) (pathname, rawQuery string) {
	if idx := strings.IndexByte(rawPath, '?'); idx != -1 {
		return rawPath[:idx], rawPath[idx+1:]
	}
	return rawPath, ""
}
