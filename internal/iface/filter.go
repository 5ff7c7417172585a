package iface

import (
	"context"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
	"github.com/zdnscloud/zdhcp-sub001/internal/option4"
	"github.com/zdnscloud/zdhcp-sub001/internal/packet4"
)

// maxDatagram is the scratch read buffer size spec.md §4.2 calls for:
// the largest permitted datagram, 1500 bytes plus L2 headers when the
// filter is raw.
const maxDatagram = 1500 + 18 // Ethernet header (14) + VLAN tag headroom (4)

// Filter is a socket abstraction over one interface, mirroring the
// teacher's NetworkDevice interface but specialized to DHCPv4: it
// decodes inbound datagrams into [packet4.Packet] itself rather than
// handing back raw bytes, since both filter variants need to strip a
// different set of framing layers before the DHCP payload is visible.
type Filter interface {
	// Interface returns the interface this filter is bound to.
	Interface() *Interface

	// Receive blocks until a well-formed DHCPv4 packet arrives or ctx
	// is done. Malformed datagrams are discarded by the filter and do
	// not cause Receive to return an error.
	Receive(ctx context.Context) (*Received, error)

	// Send transmits resp. dst is the resolved destination address
	// computed by destinationFor; filters that can answer clients
	// lacking an address (LPF) use resp's CHAddr instead of ARP when
	// dst is the broadcast address and resp targets a specific
	// client.
	Send(resp *packet4.Packet, dst addr4.Address, dstPort uint16) error

	// IsDirectResponseSupported reports whether the filter can
	// unicast to a client's hardware address before that client has
	// an IP address assigned.
	IsDirectResponseSupported() bool

	// Close releases the filter's socket.  It returns true if a
	// socket was actually closed, per spec.md §9's
	// "Iface::closeSockets(filter) return-value semantics (true when
	// any socket was closed) is preserved verbatim".
	Close() bool
}

// space is the DHCPv4 option space every filter decodes incoming
// options against.
var space = option4.NewDHCP4Space()
