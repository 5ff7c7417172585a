package iface

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/sys/unix"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
	"github.com/zdnscloud/zdhcp-sub001/internal/packet4"
)

// ClientPort and ServerPort are the well-known DHCPv4 UDP ports.
const (
	ServerPort = 67
	ClientPort = 68
)

// InetFilter is the "inet" variant of spec.md §4.2: a regular UDP
// socket bound to :67 on one interface, relying on the kernel to
// perform any broadcast delivery.
type InetFilter struct {
	iface *Interface
	conn  *net.UDPConn
	buf   []byte
	mu    closeOnce
}

// closeOnce guards Close against being observed as closing a socket
// more than once, matching the single-close-reports-true contract
// spec.md §9 preserves from the teacher.
type closeOnce struct {
	done bool
}

// NewInetFilter opens a UDP/67 socket bound to i's primary address.
func NewInetFilter(i *Interface) (f *InetFilter, err error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{
		IP:   i.PrimaryV4.Netip().AsSlice(),
		Port: ServerPort,
	})
	if err != nil {
		return nil, fmt.Errorf("binding inet filter on %s: %w", i.Name, err)
	}

	if serr := enableBroadcast(conn); serr != nil {
		_ = conn.Close()

		return nil, fmt.Errorf("enabling broadcast on %s: %w", i.Name, serr)
	}

	return &InetFilter{iface: i, conn: conn, buf: make([]byte, maxDatagram)}, nil
}

// enableBroadcast sets SO_BROADCAST on conn's underlying socket so
// that replies addressed to [addr4.Broadcast] leave the interface
// rather than being rejected by the kernel.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	cerr := raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if cerr != nil {
		return cerr
	}

	return sockErr
}

// Receive implements [Filter] for *InetFilter.
func (f *InetFilter) Receive(ctx context.Context) (rcv *Received, err error) {
	for {
		if dl, ok := ctx.Deadline(); ok {
			_ = f.conn.SetReadDeadline(dl)
		}

		n, src, rerr := f.conn.ReadFromUDP(f.buf)
		if rerr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			return nil, fmt.Errorf("inet receive on %s: %w", f.iface.Name, rerr)
		}

		pkt, derr := packet4.Decode(f.buf[:n], space, nil)
		if derr != nil {
			// Malformed datagrams are discarded, per spec.md §4.2.
			continue
		}

		srcAddr, ok := netip.AddrFromSlice(src.IP.To4())
		if !ok {
			continue
		}

		return &Received{
			Packet:  pkt,
			Iface:   f.iface,
			SrcAddr: addr4.FromNetip(srcAddr),
			SrcPort: uint16(src.Port),
		}, nil
	}
}

// Send implements [Filter] for *InetFilter.
func (f *InetFilter) Send(resp *packet4.Packet, dst addr4.Address, dstPort uint16) error {
	buf, err := resp.Encode()
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}

	addr := &net.UDPAddr{IP: dst.Netip().AsSlice(), Port: int(dstPort)}

	_, err = f.conn.WriteToUDP(buf, addr)
	if err != nil {
		return fmt.Errorf("inet send on %s to %s: %w", f.iface.Name, dst, err)
	}

	return nil
}

// IsDirectResponseSupported implements [Filter] for *InetFilter. A
// plain UDP socket cannot unicast by hardware address, so it always
// relies on the kernel's broadcast delivery.
func (f *InetFilter) IsDirectResponseSupported() bool {
	return false
}

// Interface implements [Filter].
func (f *InetFilter) Interface() *Interface {
	return f.iface
}

// Close implements [Filter] for *InetFilter.
func (f *InetFilter) Close() bool {
	if f.mu.done {
		return false
	}

	f.mu.done = true
	_ = f.conn.Close()

	return true
}
