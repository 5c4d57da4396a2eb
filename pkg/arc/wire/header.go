package wire

// Header is a mapping from header name to an ordered list of values.
// Multiple headers with the same name append to that name's value list;
// insertion order of distinct names is preserved for serialization.
// Lookup is by exact (case-sensitive) name match — the wire decoder does
// not case-fold header names, except where explicitly noted (multipart
// Content-Disposition/Content-Type parsing, see multipart.go).
type Header struct {
	values map[string][]string
	order  []string
}

// NewHeader returns an empty Header ready for use.
func NewHeader() Header {
	return Header{values: make(map[string][]string)}
}

// Add appends value to name's value list, recording name's first
// appearance in insertion order.
func (h *Header) Add(name, value string) {
	if h.values == nil {
		h.values = make(map[string][]string)
	}
	if _, ok := h.values[name]; !ok {
		h.order = append(h.order, name)
	}
	h.values[name] = append(h.values[name], value)
}

// Set replaces name's value list with a single value.
func (h *Header) Set(name, value string) {
	if h.values == nil {
		h.values = make(map[string][]string)
	}
	if _, ok := h.values[name]; !ok {
		h.order = append(h.order, name)
	}
	h.values[name] = []string{value}
}

// Get returns the first value for name, or "" if absent.
func (h Header) Get(name string) string {
	vs := h.values[name]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns every value recorded for name, in append order.
func (h Header) Values(name string) []string {
	return h.values[name]
}

// Has reports whether name has at least one recorded value.
func (h Header) Has(name string) bool {
	_, ok := h.values[name]
	return ok
}

// Del removes all values recorded for name.
func (h *Header) Del(name string) {
	if _, ok := h.values[name]; !ok {
		return
	}
	delete(h.values, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of distinct header names.
func (h Header) Len() int {
	return len(h.order)
}

// VisitInOrder calls visit once per (name, value) pair, names in
// insertion order and values in append order within a name — the order
// a response serializes its headers in.
func (h Header) VisitInOrder(visit func(name, value string)) {
	for _, name := range h.order {
		for _, value := range h.values[name] {
			visit(name, value)
		}
	}
}
