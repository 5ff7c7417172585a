// Package packet4 implements decoding and encoding of DHCPv4 messages:
// the fixed header (spec.md §3) plus the magic cookie and TLV option
// list from [internal/option4].
//
// Grounded on internal/dhcpsvc/handler4.go's message-type dispatch
// shape and internal/dhcpd/sendEthernet.go's header field usage;
// unlike the teacher, which decodes into gopacket/layers.DHCPv4 (a
// fixed struct with no vendor-space or record-option support), the
// codec here is hand-rolled against [internal/option4.Collection] so
// it can express the option model spec.md §3/§4.1 require.
package packet4

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/AdguardTeam/golibs/errors"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
	"github.com/zdnscloud/zdhcp-sub001/internal/option4"
)

// Op is the BOOTP message op code.
type Op uint8

// BOOTP op codes, per RFC 951/2131.
const (
	OpBootRequest Op = 1
	OpBootReply   Op = 2
)

// MsgType is the value of the DHCP Message Type option (53).
type MsgType uint8

// DHCP message types, per RFC 2131 §3.
const (
	MsgDiscover MsgType = 1
	MsgOffer    MsgType = 2
	MsgRequest  MsgType = 3
	MsgDecline  MsgType = 4
	MsgAck      MsgType = 5
	MsgNak      MsgType = 6
	MsgRelease  MsgType = 7
	MsgInform   MsgType = 8
)

// Magic is the DHCP magic cookie that follows the fixed BOOTP header,
// per spec.md §3.
var Magic = [4]byte{0x63, 0x82, 0x53, 0x63}

// headerLen is the length of the fixed BOOTP header up to (but not
// including) the magic cookie: 236 bytes (op..file).
const headerLen = 236

// Flags bit for the broadcast flag.
const flagBroadcast uint16 = 0x8000

// Packet is a decoded DHCPv4 message: the fixed header plus its
// option collection.  Per spec.md §3's ownership model, a Packet is
// uniquely owned by whichever pipeline stage currently holds it.
type Packet struct {
	Op      Op
	HType   uint8
	HLen    uint8
	Hops    uint8
	Xid     uint32
	Secs    uint16
	Flags   uint16
	CIAddr  addr4.Address
	YIAddr  addr4.Address
	SIAddr  addr4.Address
	GIAddr  addr4.Address
	CHAddr  [16]byte
	SName   [64]byte
	File    [128]byte
	Options *option4.Collection
}

// New returns a zero-value Packet with an empty option collection,
// ready for a response builder to populate.
func New() *Packet {
	return &Packet{Options: option4.NewCollection()}
}

// Decode parses buf as a DHCPv4 message, looking up option
// definitions in space and nested vendor spaces in vendorSpaces.
// Packets exceeding 1500 bytes are rejected, per spec.md §6.
func Decode(buf []byte, space *option4.Space, vendorSpaces map[uint32]*option4.Space) (p *Packet, err error) {
	if len(buf) > 1500 {
		return nil, fmt.Errorf("packet length %d: %w", len(buf), option4.ErrOutOfRange)
	}

	if len(buf) < headerLen+4 {
		return nil, fmt.Errorf("header: %w", option4.ErrTruncated)
	}

	p = &Packet{
		Op:     Op(buf[0]),
		HType:  buf[1],
		HLen:   buf[2],
		Hops:   buf[3],
		Xid:    binary.BigEndian.Uint32(buf[4:8]),
		Secs:   binary.BigEndian.Uint16(buf[8:10]),
		Flags:  binary.BigEndian.Uint16(buf[10:12]),
	}

	p.CIAddr, _ = addr4.FromBytes(buf[12:16])
	p.YIAddr, _ = addr4.FromBytes(buf[16:20])
	p.SIAddr, _ = addr4.FromBytes(buf[20:24])
	p.GIAddr, _ = addr4.FromBytes(buf[24:28])
	copy(p.CHAddr[:], buf[28:44])
	copy(p.SName[:], buf[44:108])
	copy(p.File[:], buf[108:236])

	if [4]byte(buf[236:240]) != Magic {
		return nil, fmt.Errorf("%w", option4.ErrBadMagic)
	}

	p.Options, err = option4.DecodeAll(buf[240:], space, vendorSpaces)
	if err != nil {
		return nil, fmt.Errorf("options: %w", err)
	}

	return p, nil
}

// Encode serializes p into a wire-format DHCPv4 message.
func (p *Packet) Encode() (buf []byte, err error) {
	buf = make([]byte, headerLen, headerLen+4+64)

	buf[0] = byte(p.Op)
	buf[1] = p.HType
	buf[2] = p.HLen
	buf[3] = p.Hops
	binary.BigEndian.PutUint32(buf[4:8], p.Xid)
	binary.BigEndian.PutUint16(buf[8:10], p.Secs)
	binary.BigEndian.PutUint16(buf[10:12], p.Flags)

	ci, yi, si, gi := p.CIAddr.Bytes(), p.YIAddr.Bytes(), p.SIAddr.Bytes(), p.GIAddr.Bytes()
	copy(buf[12:16], ci[:])
	copy(buf[16:20], yi[:])
	copy(buf[20:24], si[:])
	copy(buf[24:28], gi[:])
	copy(buf[28:44], p.CHAddr[:])
	copy(buf[44:108], p.SName[:])
	copy(buf[108:236], p.File[:])

	buf = append(buf, Magic[:]...)

	opts, err := p.Options.Encode()
	if err != nil {
		return nil, fmt.Errorf("options: %w", err)
	}

	buf = append(buf, opts...)
	buf = append(buf, byte(option4.CodeEnd))

	if len(buf) > 1500 {
		return nil, fmt.Errorf("packet length %d: %w", len(buf), option4.ErrOutOfRange)
	}

	return buf, nil
}

// errNoMessageType is returned by [Packet.Type] when the mandatory
// DHCP Message Type option is absent.
const errNoMessageType errors.Error = "no dhcp message type option"

// Type returns the packet's DHCP message type, derived from option 53
// per spec.md §3.
func (p *Packet) Type() (typ MsgType, err error) {
	opt, ok := p.Options.GetFirst(option4.CodeDHCPMessageType)
	if !ok {
		return 0, errNoMessageType
	}

	return MsgType(opt.Uint8()), nil
}

// HardwareAddr returns the client's hardware address, truncated to
// HLen bytes of CHAddr.
func (p *Packet) HardwareAddr() net.HardwareAddr {
	n := int(p.HLen)
	if n > len(p.CHAddr) {
		n = len(p.CHAddr)
	}

	return net.HardwareAddr(p.CHAddr[:n])
}

// ClientID returns the client-identifier option (61) payload, if
// present; otherwise it falls back to the hardware address, the
// common behavior described in spec.md §3's host reservation
// identifier model.
func (p *Packet) ClientID() []byte {
	if opt, ok := p.Options.GetFirst(option4.CodeClientIdentifier); ok {
		return opt.Raw
	}

	return p.HardwareAddr()
}

// RequestedAddress returns the Requested IP Address option (50)
// value, if present.
func (p *Packet) RequestedAddress() (a addr4.Address, ok bool) {
	opt, ok := p.Options.GetFirst(option4.CodeRequestedIPAddress)
	if !ok || len(opt.Addrs) == 0 {
		return 0, false
	}

	return opt.Addrs[0], true
}

// IsBroadcast reports whether the client set the broadcast flag, or
// ciaddr is unspecified and the caller has no other way to unicast,
// matching spec.md §4.2's send-path rule.
func (p *Packet) IsBroadcast() bool {
	return p.Flags&flagBroadcast != 0 || p.CIAddr.IsZero()
}
