package wire

import (
	"bytes"
	"io"
)

// ExtractHeaders reads from r until the CRLF-CRLF request-head
// terminator is found, returning the header text (not including the
// terminator) and any body bytes already read past it.
//
// Unlike a scan restricted to each freshly read chunk, this rescans the
// whole accumulator (cheap: bytes.Index over a buffer capped at
// maxHeaderSize) after every append, so a terminator that straddles two
// reads is still found. A version that only scanned the newest chunk
// would miss that case — this is exactly the failure mode named as an
// open question in this engine's design notes, and the fix is to do
// the correct, if slightly more expensive, thing.
func ExtractHeaders(r io.Reader, maxHeaderSize int) (headerText, leftover []byte, err error) {
	acc := GetBuffer()
	defer PutBuffer(acc)

	chunk := make([]byte, headerReadChunk)

	for {
		n, rerr := r.Read(chunk)
		if n == 0 {
			if rerr != nil {
				return nil, nil, ErrClientDisconnected
			}
			continue
		}
		acc.Write(chunk[:n])

		if idx := bytes.Index(acc.B, []byte(crlfcrlf)); idx != -1 {
			if idx >= maxHeaderSize {
				return nil, nil, ErrMaxHeaderSizeExceeded
			}
			headerText = append([]byte(nil), acc.B[:idx]...)
			leftover = append([]byte(nil), acc.B[idx+len(crlfcrlf):]...)
			return headerText, leftover, nil
		}

		if acc.Len() >= maxHeaderSize {
			return nil, nil, ErrMaxHeaderSizeExceeded
		}

		if rerr != nil {
			if rerr == io.EOF {
				return nil, nil, ErrClientDisconnected
			}
			return nil, nil, rerr
		}
	}
}
