package wire

import "io"

// ParseURLEncodedBody buffers the full body (bounded by maxBodySize)
// and decodes it as application/x-www-form-urlencoded. contentLength
// must be present and within maxBodySize; partialBody is any body bytes
// already consumed past the header boundary and is seeded into the
// buffer before reading continues from r.
func ParseURLEncodedBody(r io.Reader, partialBody []byte, contentLength, maxBodySize int64) (Values, error) {
	if contentLength < 0 {
		return nil, ErrContentLengthMissing
	}
	if maxBodySize > 0 && contentLength > maxBodySize {
		return nil, ErrMaxBodySizeExceeded
	}

	buf := make([]byte, 0, contentLength)
	buf = append(buf, partialBody...)

	reader := NewBoundedBodyReader(r, contentLength, int64(len(partialBody)), maxBodySize)
	for reader.BytesRead() < contentLength {
		chunk, err := reader.GetChunk()
		if err != nil {
			if err == ErrMaxBodySizeExceeded && reader.BytesRead() >= contentLength {
				break
			}
			return nil, err
		}
		if len(chunk) == 0 {
			break
		}
		buf = append(buf, chunk...)
	}

	return ParseURLEncoded(string(buf)), nil
}

// ParseURLEncodedBodyChunked decodes a body of unknown length (fed from
// a ChunkedReader, where Transfer-Encoding: chunked stood in for
// Content-Length) by reading to EOF, bounded by maxBodySize.
func ParseURLEncodedBodyChunked(r io.Reader, partialBody []byte, maxBodySize int64) (Values, error) {
	buf := append([]byte(nil), partialBody...)
	chunk := make([]byte, 8*1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if maxBodySize > 0 && int64(len(buf)+n) > maxBodySize {
				return nil, ErrMaxBodySizeExceeded
			}
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
	}
	return ParseURLEncoded(string(buf)), nil
}
