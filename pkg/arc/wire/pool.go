package wire

import "github.com/valyala/bytebufferpool"

// bufferPool backs the header-accumulation buffer in ExtractHeaders, so
// repeated requests on a keep-alive
// connection reuse the same backing arrays instead of allocating fresh
// ones per request.
var bufferPool bytebufferpool.Pool

// GetBuffer borrows a pooled buffer. Callers must return it with
// PutBuffer once done.
func GetBuffer() *bytebufferpool.ByteBuffer {
	return bufferPool.Get()
}

// PutBuffer returns a buffer borrowed from GetBuffer to the pool.
func PutBuffer(b *bytebufferpool.ByteBuffer) {
	bufferPool.Put(b)
}
