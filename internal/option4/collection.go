package option4

import (
	"cmp"
	"fmt"
	"slices"
)

// Collection is a multimap of options keyed by code, preserving
// insertion order within a code, per spec.md §3 ("payload bytes plus
// an optional child option collection (multimap by code, insertion
// order preserved within a code)").
type Collection struct {
	order  []Code
	byCode map[Code][]Option
}

// NewCollection returns an empty option collection.
func NewCollection() *Collection {
	return &Collection{byCode: make(map[Code][]Option)}
}

// Add appends o to the collection under its code, preserving
// insertion order.
func (c *Collection) Add(o Option) {
	if _, ok := c.byCode[o.Code]; !ok {
		c.order = append(c.order, o.Code)
	}

	c.byCode[o.Code] = append(c.byCode[o.Code], o)
}

// Get returns every option stored under code, in insertion order.
func (c *Collection) Get(code Code) []Option {
	return c.byCode[code]
}

// GetFirst returns the first option stored under code, if any.
func (c *Collection) GetFirst(code Code) (o Option, ok bool) {
	opts := c.byCode[code]
	if len(opts) == 0 {
		return Option{}, false
	}

	return opts[0], true
}

// Has reports whether code is present in c.
func (c *Collection) Has(code Code) bool {
	return len(c.byCode[code]) > 0
}

// Codes returns the distinct codes present in c, in first-seen order.
func (c *Collection) Codes() []Code {
	return slices.Clone(c.order)
}

// DecodeAll parses a sequence of TLV-encoded options from buf against
// space, resolving vendor-encapsulated sub-spaces via vendorSpaces.
// Tag 0 (PAD) is skipped; tag 255 (END) terminates decoding of buf
// (but is not required to be present, so nested/vendor payloads that
// have no END marker decode correctly too).  space may be nil, in
// which case every option decodes as opaque.
func DecodeAll(buf []byte, space *Space, vendorSpaces map[uint32]*Space) (c *Collection, err error) {
	c = NewCollection()

	for len(buf) > 0 {
		code := Code(buf[0])
		buf = buf[1:]

		if code == CodePad {
			continue
		}

		if code == CodeEnd {
			return c, nil
		}

		if len(buf) == 0 {
			return nil, fmt.Errorf("option %d: length byte: %w", code, ErrTruncated)
		}

		length := int(buf[0])
		buf = buf[1:]

		if length > len(buf) {
			return nil, fmt.Errorf("option %d: payload: %w", code, ErrTruncated)
		}

		payload := buf[:length]
		buf = buf[length:]

		var def *Definition
		if space != nil {
			def, _ = space.ByCode(code)
		}

		opt, derr := Decode(code, payload, def, vendorSpaces)
		if derr != nil {
			return nil, fmt.Errorf("option %d: %w", code, derr)
		}

		c.Add(opt)
	}

	return c, nil
}

// Encode serializes every option in c as a TLV sequence, sorted by
// code ascending, per spec.md §4.1 ("The encoder writes ... then each
// option in code order").  It does not emit an END marker; callers
// that need one (the top-level packet encoder) append it themselves.
func (c *Collection) Encode() (buf []byte, err error) {
	if c == nil {
		return nil, nil
	}

	codes := slices.Clone(c.order)
	slices.SortFunc(codes, func(a, b Code) int { return cmp.Compare(a, b) })

	for _, code := range codes {
		for _, opt := range c.byCode[code] {
			payload, perr := opt.Encode()
			if perr != nil {
				return nil, perr
			}

			if len(payload) > 255 {
				return nil, fmt.Errorf("option %d: payload length %d: %w", code, len(payload), ErrOutOfRange)
			}

			buf = append(buf, byte(code), byte(len(payload)))
			buf = append(buf, payload...)
		}
	}

	return buf, nil
}
