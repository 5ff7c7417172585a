// Package iface enumerates network interfaces and opens the two kinds
// of DHCPv4 socket filter spec.md §4.2 describes: a plain UDP "inet"
// filter and a raw link-layer "LPF" filter capable of unicasting to a
// client that does not yet own an address.
package iface

import (
	"fmt"
	"net"
	"net/netip"

	"github.com/AdguardTeam/golibs/errors"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
	"github.com/zdnscloud/zdhcp-sub001/internal/packet4"
)

// ErrNoAddress is returned when an interface carries no usable IPv4
// address.
const ErrNoAddress errors.Error = "interface has no IPv4 address"

// Interface describes one enumerated network interface, per spec.md
// §4.2's "name, index, hwaddr, flags, address list".
type Interface struct {
	Name       string
	Index      int
	HWAddr     net.HardwareAddr
	Flags      net.Flags
	Addrs      []netip.Addr
	PrimaryV4  addr4.Address
}

// Enumerate lists the host's network interfaces and their IPv4
// addresses, following the style of [net.Interfaces] wrapped with the
// extra address resolution the teacher's NetworkDeviceManager does
// for each configured device.
func Enumerate() (ifaces []*Interface, err error) {
	sys, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}

	for _, s := range sys {
		one, ierr := fromSystem(&s)
		if ierr != nil {
			// Interfaces without a usable IPv4 address are skipped
			// rather than treated as a fatal enumeration error.
			continue
		}

		ifaces = append(ifaces, one)
	}

	return ifaces, nil
}

func fromSystem(s *net.Interface) (i *Interface, err error) {
	addrs, err := s.Addrs()
	if err != nil {
		return nil, fmt.Errorf("addrs for %s: %w", s.Name, err)
	}

	i = &Interface{
		Name:   s.Name,
		Index:  s.Index,
		HWAddr: s.HardwareAddr,
		Flags:  s.Flags,
	}

	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}

		v4 := ipNet.IP.To4()
		if v4 == nil {
			continue
		}

		ap, ok := netip.AddrFromSlice(v4)
		if !ok {
			continue
		}

		i.Addrs = append(i.Addrs, ap)

		if i.PrimaryV4.IsZero() {
			i.PrimaryV4 = addr4.FromNetip(ap)
		}
	}

	if i.PrimaryV4.IsZero() {
		return nil, ErrNoAddress
	}

	return i, nil
}

// ByName returns the interface named name from ifaces, or nil.
func ByName(ifaces []*Interface, name string) *Interface {
	for _, i := range ifaces {
		if i.Name == name {
			return i
		}
	}

	return nil
}

// Received is a packet decoded by a [Filter], paired with the
// metadata the pipeline needs to route a response, per spec.md §4.2's
// "a parsed Packet with originating interface index and source
// endpoint is returned".
type Received struct {
	Packet    *packet4.Packet
	Iface     *Interface
	SrcAddr   addr4.Address
	SrcPort   uint16
}

// destinationFor computes the address a response to pkt should be
// sent to, per spec.md §4.2: "broadcast-flagged or ciaddr==0
// responses are sent to the broadcast address; otherwise to yiaddr or
// giaddr".
func destinationFor(pkt *packet4.Packet) addr4.Address {
	if pkt.IsBroadcast() || pkt.CIAddr.IsZero() {
		return addr4.Broadcast
	}

	if !pkt.GIAddr.IsZero() {
		return pkt.GIAddr
	}

	return pkt.YIAddr
}
