package option4

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
)

// Code is a DHCPv4 option tag.  0 is PAD and 255 is END; both are
// handled by the codec directly and never appear as a [Definition].
type Code uint8

// Well-known standard option codes used by the engine outside the
// generic option machinery (message dispatch, relay sub-options,
// server identification).
const (
	CodePad                Code = 0
	CodeSubnetMask         Code = 1
	CodeTimeOffset         Code = 2
	CodeRouter             Code = 3
	CodeHostname           Code = 12
	CodeRequestedIPAddress Code = 50
	CodeIPAddressLeaseTime Code = 51
	CodeOptionOverload     Code = 52
	CodeDHCPMessageType    Code = 53
	CodeServerIdentifier   Code = 54
	CodeParameterRequestList Code = 55
	CodeMaxMessageSize     Code = 57
	CodeRenewalTimeT1      Code = 58
	CodeRebindingTimeT2    Code = 59
	CodeVendorClassID      Code = 60
	CodeClientIdentifier   Code = 61
	CodeVendorEncapsulated Code = 43
	CodeRelayAgentInfo     Code = 82
	CodeSubnetSelection    Code = 118
	CodeEnd                Code = 255
)

// Relay Agent Information (82) sub-option codes, per spec.md §6.
const (
	SubOptCircuitID     Code = 1
	SubOptRemoteID      Code = 2
	SubOptLinkSelection Code = 5
)

// DataType enumerates the wire shapes a [Definition] can declare.
type DataType int

const (
	// TypeRaw treats the payload as opaque bytes; used when no other
	// type applies or for options the engine only forwards verbatim.
	TypeRaw DataType = iota

	// TypeUint8 is a 1-byte unsigned scalar.
	TypeUint8

	// TypeUint16 is a 2-byte unsigned scalar, network byte order.
	TypeUint16

	// TypeUint32 is a 4-byte unsigned scalar, network byte order.
	TypeUint32

	// TypeString is a non-empty ASCII/UTF-8 byte string.
	TypeString

	// TypeAddrList is a sequence of 4-byte IPv4 addresses; payload
	// length must be a non-zero multiple of 4.
	TypeAddrList

	// TypeTuples is a sequence of (1-byte length, bytes) tuples, used
	// for opaque-data-tuples options such as the vendor class (60).
	TypeTuples

	// TypeVendor is an enterprise-id-prefixed nested option space
	// (vendor-encapsulated-options, 43).
	TypeVendor

	// TypeCustom is a record/array option whose shape is described by
	// Definition.Fields.
	TypeCustom
)

// FieldKind enumerates the primitive kinds usable in a record field.
type FieldKind int

const (
	FieldUint8 FieldKind = iota
	FieldUint16
	FieldUint32
	FieldAddr
	FieldString
)

// Size returns the fixed wire size of k in bytes, or 0 if k is
// variable-length (only valid as the last field of a record).
func (k FieldKind) Size() int {
	switch k {
	case FieldUint8:
		return 1
	case FieldUint16:
		return 2
	case FieldUint32, FieldAddr:
		return 4
	default:
		return 0
	}
}

// Field describes one field of a TypeCustom record.
type Field struct {
	Name string
	Kind FieldKind
}

// Definition describes one option code within a [Space]: its name,
// data type, whether it repeats as an array, its record fields (for
// TypeCustom), and the option space it encapsulates, if any.
//
// Grounded on internal/dhcpsvc/options4.go's per-option construction
// helpers, generalized into data instead of code: the teacher
// hardcodes one set of options for one product; this engine's
// spaces are configuration-driven, so the "how to build this option"
// knowledge has to live in a value, not a function.
type Definition struct {
	Name         string
	Code         Code
	Type         DataType
	Array        bool
	Fields       []Field
	EncapSpace   *Space
}

// Validate checks d's internal consistency, per spec.md §3: an array
// definition may not also encapsulate a space, and TypeCustom
// definitions must list at least one field.
func (d *Definition) Validate() (err error) {
	if d == nil {
		return errors.ErrNoValue
	}

	if d.Name == "" {
		return fmt.Errorf("definition %d: %w", d.Code, errors.ErrEmptyValue)
	}

	if d.Array && d.EncapSpace != nil {
		return fmt.Errorf("definition %s: array option may not encapsulate a space", d.Name)
	}

	if d.Type == TypeCustom && len(d.Fields) == 0 {
		return fmt.Errorf("definition %s: record definition must list at least one field", d.Name)
	}

	return nil
}

// Space is a named collection of option [Definition]s, indexed both
// by name (for the class-matcher grammar, spec.md §4.5) and by code
// (for the wire codec).
type Space struct {
	Name    string
	byCode  map[Code]*Definition
	byName  map[string]*Definition
}

// NewSpace creates an empty, named option space.
func NewSpace(name string) *Space {
	return &Space{
		Name:   name,
		byCode: make(map[Code]*Definition),
		byName: make(map[string]*Definition),
	}
}

// Register adds def to s.  It returns an error if def is invalid or
// its code or name is already registered.
func (s *Space) Register(def *Definition) (err error) {
	if err = def.Validate(); err != nil {
		return fmt.Errorf("space %s: %w", s.Name, err)
	}

	if _, ok := s.byCode[def.Code]; ok {
		return fmt.Errorf("space %s: code %d already registered", s.Name, def.Code)
	}

	if _, ok := s.byName[def.Name]; ok {
		return fmt.Errorf("space %s: name %q already registered", s.Name, def.Name)
	}

	s.byCode[def.Code] = def
	s.byName[def.Name] = def

	return nil
}

// ByCode looks up a definition by its numeric code.
func (s *Space) ByCode(code Code) (def *Definition, ok bool) {
	def, ok = s.byCode[code]

	return def, ok
}

// ByName looks up a definition by name only; a decimal code string is
// not resolved here.
func (s *Space) ByName(name string) (def *Definition, ok bool) {
	def, ok = s.byName[name]

	return def, ok
}
