package pipeline

import (
	"time"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
	"github.com/zdnscloud/zdhcp-sub001/internal/clientctx"
	"github.com/zdnscloud/zdhcp-sub001/internal/option4"
	"github.com/zdnscloud/zdhcp-sub001/internal/packet4"
)

// buildReply constructs a BOOTREPLY for c's query, setting the fields
// spec.md §6 requires: op, htype, chaddr, xid from the query, siaddr
// from the subnet override if present, and option 54 to serverID.
func buildReply(c *clientctx.Context, msgType packet4.MsgType, yiaddr uint32) *packet4.Packet {
	query := c.Received.Packet

	resp := packet4.New()
	resp.Op = packet4.OpBootReply
	resp.HType = query.HType
	resp.HLen = query.HLen
	resp.Xid = query.Xid
	resp.Flags = query.Flags
	resp.CHAddr = query.CHAddr
	resp.GIAddr = query.GIAddr
	resp.YIAddr = addr4.Address(yiaddr)

	if c.Subnet != nil && !c.Subnet.NextServerAddr.IsZero() {
		resp.SIAddr = c.Subnet.NextServerAddr
	}

	resp.Options.Add(option4.NewUint8(option4.CodeDHCPMessageType, "dhcp-message-type", uint8(msgType)))
	resp.Options.Add(option4.NewAddr(option4.CodeServerIdentifier, "dhcp-server-identifier", c.ServerID))

	if msgType != packet4.MsgNak && c.Subnet != nil {
		resp.Options.Add(option4.NewUint32(option4.CodeIPAddressLeaseTime, "dhcp-lease-time", c.ValidLifetime))
		resp.Options.Add(option4.NewUint32(option4.CodeRenewalTimeT1, "dhcp-renewal-time", c.T1))
		resp.Options.Add(option4.NewUint32(option4.CodeRebindingTimeT2, "dhcp-rebinding-time", c.T2))

		for _, code := range c.Subnet.Options.Codes() {
			for _, opt := range c.Subnet.Options.Get(code) {
				resp.Options.Add(opt)
			}
		}
	}

	return resp
}

// buildOffer builds an OFFER for an allocated candidate address.
func buildOffer(c *clientctx.Context, yiaddr uint32) *packet4.Packet {
	return buildReply(c, packet4.MsgOffer, yiaddr)
}

// buildAck builds an ACK for an allocated address.
func buildAck(c *clientctx.Context, yiaddr uint32) *packet4.Packet {
	return buildReply(c, packet4.MsgAck, yiaddr)
}

// buildNak builds a NAK; NAKs carry no lease options.
func buildNak(c *clientctx.Context) *packet4.Packet {
	return buildReply(c, packet4.MsgNak, 0)
}

// buildInformAck builds the ACK spec.md §4.3 describes for INFORM:
// "constructs an ACK without address allocation".
func buildInformAck(c *clientctx.Context) *packet4.Packet {
	return buildReply(c, packet4.MsgAck, uint32(c.Received.Packet.CIAddr))
}

// leaseTimers computes T1/T2/valid from a subnet's configured
// lifetime triples, defaulting T1 to half and T2 to seven-eighths of
// the valid lifetime when a subnet does not override them.
func leaseTimers(s *clientctx.Context) (valid, t1, t2 uint32) {
	sub := s.Subnet
	if sub == nil {
		return 0, 0, 0
	}

	validDur := sub.Valid.Default
	validSec := uint32(validDur / time.Second)

	t1Dur := sub.T1.Default
	t2Dur := sub.T2.Default

	if t1Dur == 0 {
		t1Dur = validDur / 2
	}

	if t2Dur == 0 {
		t2Dur = (validDur * 7) / 8
	}

	return validSec, uint32(t1Dur / time.Second), uint32(t2Dur / time.Second)
}
