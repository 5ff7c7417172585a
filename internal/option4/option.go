package option4

import (
	"encoding/binary"
	"fmt"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
)

// FieldValue is one decoded value of a TypeCustom record field.  Only
// the member matching Kind is meaningful; this is the same
// tagged-union-by-discriminator shape as [Option] itself, nested one
// level for record fields.
type FieldValue struct {
	Kind FieldKind
	U32  uint32
	Addr addr4.Address
	Str  string
}

// Option is a single decoded DHCPv4 option.  Per the design note in
// spec.md §9, it is a tagged sum: Kind discriminates which of the
// type-specific fields below is meaningful, and every operation
// dispatches with a type switch on Kind rather than through an
// interface with per-variant method implementations.
type Option struct {
	// Code is the option's numeric tag.
	Code Code

	// Kind is the data type this option was decoded or constructed
	// as; it picks which field below holds the value.
	Kind DataType

	// Name is the definition name, or "" if the option was decoded
	// without a matching [Definition] (opaque/unknown option).
	Name string

	// Raw is the canonical payload bytes.  Decode always populates it,
	// so an option with no matching definition can still be forwarded
	// and re-encoded verbatim; NewAddr and NewAddrList leave it nil.
	// For TypeUint8/16/32 and TypeString it is the sole source of
	// truth.
	Raw []byte

	// Addrs holds the decoded values for TypeAddrList.
	Addrs []addr4.Address

	// Tuples holds the decoded values for TypeTuples: each entry is
	// one (length, bytes) tuple's payload.
	Tuples [][]byte

	// EnterpriseID and Vendor hold the decoded enterprise-id and
	// nested option collection for TypeVendor.
	EnterpriseID uint32
	Vendor       *Collection

	// Values holds the decoded record field values for TypeCustom,
	// one entry per [Definition.Fields] entry, repeating the set if
	// [Definition.Array] is set.
	Values []FieldValue
}

// scalarSize looks up the minimal built-in reflection needed to pack a
// raw scalar payload: size in bytes, for TypeUint8/16/32.
func scalarSize(t DataType) (n int, ok bool) {
	switch t {
	case TypeUint8:
		return 1, true
	case TypeUint16:
		return 2, true
	case TypeUint32:
		return 4, true
	default:
		return 0, false
	}
}

// Decode parses payload (the option's value bytes, without the
// code/length TLV header) according to def.  If def is nil the option
// is stored as opaque raw bytes, matching the decoder contract in
// spec.md §4.1 ("construct... or a generic opaque-data option").
// vendorSpaces resolves the nested option space for TypeVendor options
// by enterprise-id, keyed the way [CodeVendorEncapsulated]'s payload
// is structured.
func Decode(code Code, payload []byte, def *Definition, vendorSpaces map[uint32]*Space) (o Option, err error) {
	o = Option{Code: code, Raw: payload}

	if def == nil {
		o.Kind = TypeRaw

		return o, nil
	}

	o.Name = def.Name
	o.Kind = def.Type

	switch def.Type {
	case TypeRaw:
		return o, nil
	case TypeUint8, TypeUint16, TypeUint32:
		size, _ := scalarSize(def.Type)
		if len(payload) != size {
			return o, fmt.Errorf("option %s: payload length %d: %w", def.Name, len(payload), ErrLengthMismatch)
		}

		return o, nil
	case TypeString:
		if len(payload) == 0 {
			return o, fmt.Errorf("option %s: %w", def.Name, ErrLengthMismatch)
		}

		return o, nil
	case TypeAddrList:
		if len(payload) == 0 || len(payload)%4 != 0 {
			return o, fmt.Errorf("option %s: payload length %d: %w", def.Name, len(payload), ErrLengthMismatch)
		}

		o.Addrs = make([]addr4.Address, 0, len(payload)/4)
		for i := 0; i < len(payload); i += 4 {
			a, aerr := addr4.FromBytes(payload[i : i+4])
			if aerr != nil {
				return o, fmt.Errorf("option %s: %w", def.Name, aerr)
			}

			o.Addrs = append(o.Addrs, a)
		}

		return o, nil
	case TypeTuples:
		o.Tuples, err = decodeTuples(payload)
		if err != nil {
			return o, fmt.Errorf("option %s: %w", def.Name, err)
		}

		return o, nil
	case TypeVendor:
		if len(payload) < 4 {
			return o, fmt.Errorf("option %s: %w", def.Name, ErrLengthMismatch)
		}

		o.EnterpriseID = binary.BigEndian.Uint32(payload[:4])

		space := vendorSpaces[o.EnterpriseID]
		children, cerr := DecodeAll(payload[4:], space, vendorSpaces)
		if cerr != nil {
			return o, fmt.Errorf("option %s: vendor space %d: %w", def.Name, o.EnterpriseID, cerr)
		}

		o.Vendor = children

		return o, nil
	case TypeCustom:
		o.Values, err = decodeRecord(payload, def.Fields, def.Array)
		if err != nil {
			return o, fmt.Errorf("option %s: %w", def.Name, err)
		}

		return o, nil
	default:
		return o, fmt.Errorf("option %s: %w", def.Name, ErrUnknownType)
	}
}

// decodeTuples decodes a sequence of (1-byte length, bytes) tuples,
// per spec.md §4.1 ("a tuple option serializes each tuple as (1-byte
// length, bytes)").
func decodeTuples(payload []byte) (tuples [][]byte, err error) {
	for len(payload) > 0 {
		n := int(payload[0])
		payload = payload[1:]

		if n > len(payload) {
			return nil, ErrTruncated
		}

		tuples = append(tuples, payload[:n])
		payload = payload[n:]
	}

	return tuples, nil
}

// decodeRecord decodes payload against a sequence of record fields,
// repeating the whole sequence while bytes remain if array is set.
func decodeRecord(payload []byte, fields []Field, array bool) (values []FieldValue, err error) {
	for len(payload) > 0 {
		for _, f := range fields {
			v := FieldValue{Kind: f.Kind}

			switch f.Kind {
			case FieldUint8:
				if len(payload) < 1 {
					return nil, ErrTruncated
				}

				v.U32 = uint32(payload[0])
				payload = payload[1:]
			case FieldUint16:
				if len(payload) < 2 {
					return nil, ErrTruncated
				}

				v.U32 = uint32(binary.BigEndian.Uint16(payload))
				payload = payload[2:]
			case FieldUint32:
				if len(payload) < 4 {
					return nil, ErrTruncated
				}

				v.U32 = binary.BigEndian.Uint32(payload)
				payload = payload[4:]
			case FieldAddr:
				if len(payload) < 4 {
					return nil, ErrTruncated
				}

				v.Addr, err = addr4.FromBytes(payload[:4])
				if err != nil {
					return nil, err
				}

				payload = payload[4:]
			case FieldString:
				v.Str = string(payload)
				payload = nil
			}

			values = append(values, v)
		}

		if !array {
			break
		}
	}

	return values, nil
}

// Encode serializes o's payload bytes (without the code/length TLV
// header).  It returns [ErrOutOfRange] if a length-constrained field
// (a tuple, an address list) would exceed its wire limit.
func (o Option) Encode() (payload []byte, err error) {
	switch o.Kind {
	case TypeRaw, TypeUint8, TypeUint16, TypeUint32, TypeString:
		return o.Raw, nil
	case TypeAddrList:
		if len(o.Addrs)*4 > 255 {
			return nil, fmt.Errorf("option %s: %d addresses: %w", o.Name, len(o.Addrs), ErrOutOfRange)
		}

		payload = make([]byte, 0, len(o.Addrs)*4)
		for _, a := range o.Addrs {
			b := a.Bytes()
			payload = append(payload, b[:]...)
		}

		return payload, nil
	case TypeTuples:
		return encodeTuples(o.Tuples)
	case TypeVendor:
		payload = make([]byte, 4, 4+vendorChildrenLen(o.Vendor))
		binary.BigEndian.PutUint32(payload, o.EnterpriseID)

		child, cerr := o.Vendor.Encode()
		if cerr != nil {
			return nil, fmt.Errorf("option %s: %w", o.Name, cerr)
		}

		return append(payload, child...), nil
	case TypeCustom:
		return encodeRecord(o.Values)
	default:
		return nil, fmt.Errorf("option %s: %w", o.Name, ErrUnknownType)
	}
}

// vendorChildrenLen estimates the encoded size of a nested vendor
// collection for capacity pre-allocation; a rough estimate is fine
// since append grows as needed.
func vendorChildrenLen(c *Collection) int {
	if c == nil {
		return 0
	}

	return len(c.order) * 8
}

// encodeTuples is the inverse of decodeTuples.
func encodeTuples(tuples [][]byte) (payload []byte, err error) {
	for _, t := range tuples {
		if len(t) > 255 {
			return nil, fmt.Errorf("tuple length %d: %w", len(t), ErrOutOfRange)
		}

		payload = append(payload, byte(len(t)))
		payload = append(payload, t...)
	}

	return payload, nil
}

// encodeRecord is the inverse of decodeRecord.
func encodeRecord(values []FieldValue) (payload []byte, err error) {
	for _, v := range values {
		switch v.Kind {
		case FieldUint8:
			payload = append(payload, byte(v.U32))
		case FieldUint16:
			if v.U32 > 0xffff {
				return nil, fmt.Errorf("field value %d: %w", v.U32, ErrOutOfRange)
			}

			payload = binary.BigEndian.AppendUint16(payload, uint16(v.U32))
		case FieldUint32:
			payload = binary.BigEndian.AppendUint32(payload, v.U32)
		case FieldAddr:
			b := v.Addr.Bytes()
			payload = append(payload, b[:]...)
		case FieldString:
			payload = append(payload, v.Str...)
		}
	}

	return payload, nil
}

// Uint8 returns o's value interpreted as an 8-bit scalar.  o must
// have Kind == TypeUint8.
func (o Option) Uint8() uint8 { return o.Raw[0] }

// Uint16 returns o's value interpreted as a 16-bit scalar.  o must
// have Kind == TypeUint16.
func (o Option) Uint16() uint16 { return binary.BigEndian.Uint16(o.Raw) }

// Uint32 returns o's value interpreted as a 32-bit scalar.  o must
// have Kind == TypeUint32.
func (o Option) Uint32() uint32 { return binary.BigEndian.Uint32(o.Raw) }

// String returns o's value interpreted as text.  o must have
// Kind == TypeString.
func (o Option) String() string { return string(o.Raw) }

// NewUint8 constructs a scalar option with the given code and value.
func NewUint8(code Code, name string, v uint8) Option {
	return Option{Code: code, Kind: TypeUint8, Name: name, Raw: []byte{v}}
}

// NewUint16 constructs a scalar option with the given code and value.
func NewUint16(code Code, name string, v uint16) Option {
	return Option{Code: code, Kind: TypeUint16, Name: name, Raw: binary.BigEndian.AppendUint16(nil, v)}
}

// NewUint32 constructs a scalar option with the given code and value.
func NewUint32(code Code, name string, v uint32) Option {
	return Option{Code: code, Kind: TypeUint32, Name: name, Raw: binary.BigEndian.AppendUint32(nil, v)}
}

// NewAddr constructs a single-address option with the given code.
func NewAddr(code Code, name string, a addr4.Address) Option {
	return Option{Code: code, Kind: TypeAddrList, Name: name, Addrs: []addr4.Address{a}}
}

// NewAddrList constructs a multi-address option with the given code.
func NewAddrList(code Code, name string, as []addr4.Address) Option {
	return Option{Code: code, Kind: TypeAddrList, Name: name, Addrs: as}
}

// NewString constructs a string option with the given code.
func NewString(code Code, name string, s string) Option {
	return Option{Code: code, Kind: TypeString, Name: name, Raw: []byte(s)}
}

// NewRaw constructs an opaque option with the given code and payload.
func NewRaw(code Code, payload []byte) Option {
	return Option{Code: code, Kind: TypeRaw, Raw: payload}
}
