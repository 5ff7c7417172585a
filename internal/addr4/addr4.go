// Package addr4 implements arithmetic on 32-bit IPv4 addresses.
//
// The engine works with addresses as plain 32-bit values rather than
// generic [net.IP] byte slices, the way [internal/dhcpsvc.ipRange]
// works with [netip.Addr] and big.Int diffs under the hood; unlike
// that package, every operation here stays in native uint32 math
// since IPv4-only arithmetic never needs arbitrary precision.
package addr4

import (
	"fmt"
	"net/netip"

	"github.com/AdguardTeam/golibs/errors"
)

// Address is a 32-bit IPv4 address held in host byte order for
// arithmetic convenience; it is formatted and parsed in the usual
// dotted-quad text form.
type Address uint32

// Zero is the unspecified IPv4 address 0.0.0.0.
const Zero Address = 0

// Broadcast is the limited broadcast address 255.255.255.255.
const Broadcast Address = 0xffffffff

// ErrInvalidText is returned by [Parse] when the input is not a valid
// dotted-quad IPv4 address.
const ErrInvalidText errors.Error = "invalid ipv4 text form"

// Parse parses the dotted-quad text form of an IPv4 address.
func Parse(s string) (a Address, err error) {
	p, err := netip.ParseAddr(s)
	if err != nil || !p.Is4() {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidText)
	}

	return FromNetip(p), nil
}

// FromNetip converts a 4-in-4 [netip.Addr] to an [Address].  a must be
// an IPv4 address.
func FromNetip(a netip.Addr) Address {
	b := a.As4()

	return Address(b[0])<<24 | Address(b[1])<<16 | Address(b[2])<<8 | Address(b[3])
}

// FromBytes reads an [Address] from the first four bytes of b.
func FromBytes(b []byte) (a Address, err error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("%w: need 4 bytes, got %d", ErrInvalidText, len(b))
	}

	return Address(b[0])<<24 | Address(b[1])<<16 | Address(b[2])<<8 | Address(b[3]), nil
}

// Netip returns a as a [netip.Addr].
func (a Address) Netip() netip.Addr {
	return netip.AddrFrom4(a.Bytes())
}

// Bytes returns the big-endian byte representation of a.
func (a Address) Bytes() (b [4]byte) {
	b[0] = byte(a >> 24)
	b[1] = byte(a >> 16)
	b[2] = byte(a >> 8)
	b[3] = byte(a)

	return b
}

// String implements the fmt.Stringer interface for Address.
func (a Address) String() string {
	b := a.Bytes()

	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}

// IsZero reports whether a is the unspecified address.
func (a Address) IsZero() bool { return a == Zero }

// Less reports whether a orders before o.
func (a Address) Less(o Address) bool { return a < o }

// Subtract returns the number of addresses between a and o, assuming
// a >= o; it is the address-space analogue of [internal/dhcpsvc.ipRange.offset].
func (a Address) Subtract(o Address) uint32 { return uint32(a - o) }

// Next returns the address immediately following a.  It wraps from
// 255.255.255.255 to 0.0.0.0.
func (a Address) Next() Address { return a + 1 }

// Netmask returns the netmask for a prefix length of n bits, 0 <= n <= 32.
func Netmask(n int) Address {
	if n <= 0 {
		return 0
	}
	if n >= 32 {
		return Broadcast
	}

	return Address(0xffffffff << uint(32-n))
}

// FirstInNetwork returns the first address of the network containing
// a with prefix length n (the network address itself).
func FirstInNetwork(a Address, n int) Address {
	return a & Netmask(n)
}

// LastInNetwork returns the last address of the network containing a
// with prefix length n (the directed broadcast address).
func LastInNetwork(a Address, n int) Address {
	return a | ^Netmask(n)
}

// NextNetwork returns the first address of the network immediately
// following the network containing a with prefix length n.
func NextNetwork(a Address, n int) Address {
	return LastInNetwork(a, n).Next()
}

// InRange reports whether a lies within the inclusive range [first, last].
func InRange(a, first, last Address) bool {
	return first <= a && a <= last
}
