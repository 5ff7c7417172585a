package iface

import (
	"context"
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/mdlayher/packet"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
	"github.com/zdnscloud/zdhcp-sub001/internal/packet4"
)

// etherTypeIPv4 is the EtherType gopacket uses for IPv4 frames.
const etherTypeIPv4 = 0x0800

// LPFFilter is the raw link-layer "LPF" variant of spec.md §4.2: it
// reads and writes full Ethernet frames over an AF_PACKET socket so
// it can unicast to a client's hardware address before that client
// has an IP address, the way the teacher's sendEthernet helper does
// for outgoing DHCP replies.
type LPFFilter struct {
	iface *Interface
	conn  *packet.Conn
	buf   []byte
	done  bool
}

// NewLPFFilter opens a raw Ethernet socket bound to i.
func NewLPFFilter(i *Interface) (f *LPFFilter, err error) {
	sysIface, err := net.InterfaceByIndex(i.Index)
	if err != nil {
		return nil, fmt.Errorf("resolving system interface %s: %w", i.Name, err)
	}

	conn, err := packet.Listen(sysIface, packet.Raw, etherTypeIPv4, nil)
	if err != nil {
		return nil, fmt.Errorf("opening LPF filter on %s: %w", i.Name, err)
	}

	return &LPFFilter{iface: i, conn: conn, buf: make([]byte, maxDatagram)}, nil
}

// Receive implements [Filter] for *LPFFilter.
func (f *LPFFilter) Receive(ctx context.Context) (rcv *Received, err error) {
	for {
		if dl, ok := ctx.Deadline(); ok {
			_ = f.conn.SetReadDeadline(dl)
		}

		n, _, rerr := f.conn.ReadFrom(f.buf)
		if rerr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			return nil, fmt.Errorf("LPF receive on %s: %w", f.iface.Name, rerr)
		}

		udpPayload, srcAddr, srcPort, ok := decodeUDPv4Frame(f.buf[:n])
		if !ok {
			continue
		}

		pkt, derr := packet4.Decode(udpPayload, space, nil)
		if derr != nil {
			continue
		}

		return &Received{Packet: pkt, Iface: f.iface, SrcAddr: srcAddr, SrcPort: srcPort}, nil
	}
}

// decodeUDPv4Frame strips the Ethernet, IPv4, and UDP layers off a
// raw frame, returning the UDP payload and the source endpoint.
func decodeUDPv4Frame(frame []byte) (payload []byte, src addr4.Address, port uint16, ok bool) {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.NoCopy)

	ipLayer, isIP := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !isIP {
		return nil, addr4.Zero, 0, false
	}

	udpLayer, isUDP := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if !isUDP {
		return nil, addr4.Zero, 0, false
	}

	srcAddr, aerr := addr4.FromBytes(ipLayer.SrcIP.To4())
	if aerr != nil {
		return nil, addr4.Zero, 0, false
	}

	return udpLayer.Payload, srcAddr, uint16(udpLayer.SrcPort), true
}

// Send implements [Filter] for *LPFFilter. It builds a full Ethernet
// frame addressed to resp's client hardware address, matching the
// teacher's sendEthernet: the IP-layer destination is still dst (the
// broadcast address for clients without one), but the Ethernet
// destination is the client's MAC so the kernel need not ARP for it.
func (f *LPFFilter) Send(resp *packet4.Packet, dst addr4.Address, dstPort uint16) error {
	payload, err := resp.Encode()
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}

	eth := layers.Ethernet{
		EthernetType: layers.EthernetTypeIPv4,
		SrcMAC:       f.iface.HWAddr,
		DstMAC:       resp.HardwareAddr(),
	}
	ip := layers.IPv4{
		Version:  4,
		TTL:      64,
		SrcIP:    resp.SIAddr.Netip().AsSlice(),
		DstIP:    dst.Netip().AsSlice(),
		Protocol: layers.IPProtocolUDP,
		Flags:    layers.IPv4DontFragment,
	}
	udp := layers.UDP{
		SrcPort: ServerPort,
		DstPort: layers.UDPPort(dstPort),
	}

	if serr := udp.SetNetworkLayerForChecksum(&ip); serr != nil {
		return fmt.Errorf("setting network layer for checksum: %w", serr)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}

	if serr := gopacket.SerializeLayers(buf, opts, &eth, &ip, &udp, gopacket.Payload(payload)); serr != nil {
		return fmt.Errorf("serializing frame: %w", serr)
	}

	dstHW := resp.HardwareAddr()
	if dst == addr4.Broadcast {
		dstHW = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	}

	_, err = f.conn.WriteTo(buf.Bytes(), &packet.Addr{HardwareAddr: dstHW})
	if err != nil {
		return fmt.Errorf("LPF send on %s: %w", f.iface.Name, err)
	}

	return nil
}

// IsDirectResponseSupported implements [Filter] for *LPFFilter. Raw
// link-layer sockets can always address a client by hardware address.
func (f *LPFFilter) IsDirectResponseSupported() bool {
	return true
}

// Interface implements [Filter].
func (f *LPFFilter) Interface() *Interface {
	return f.iface
}

// Close implements [Filter] for *LPFFilter.
func (f *LPFFilter) Close() bool {
	if f.done {
		return false
	}

	f.done = true
	_ = f.conn.Close()

	return true
}
