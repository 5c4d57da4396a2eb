package wire

// ResolveLimits fills any zero-valued field of l with this package's
// defaults, so callers can pass a partially-specified Limits (or the
// zero value) and still get the documented ceilings rather than "no
// limit at all".
func ResolveLimits(l Limits) Limits {
	if l.MaxHeaderSize == 0 {
		l.MaxHeaderSize = DefaultMaxHeaderSize
	}
	if l.MaxBodySize == 0 {
		l.MaxBodySize = DefaultMaxBodySize
	}
	return l
}
