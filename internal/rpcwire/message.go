package rpcwire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
)

// MsgType mirrors the DHCP message type driving a request, per
// spec.md §4.6's request contract.
type MsgType int32

const (
	MsgTypeDiscover MsgType = 1
	MsgTypeRequest  MsgType = 3
	MsgTypeRelease  MsgType = 7
	MsgTypeDecline  MsgType = 4
)

// Result is the master's disposition of a ClientRequest, per
// spec.md §4.6.
type Result int32

const (
	ResultOK Result = iota
	ResultNoAddress
	ResultConflict
	ResultNotOnLink
	ResultTransient
)

// ClientRequest is the request half of the master RPC contract.
type ClientRequest struct {
	MsgType         MsgType
	SubnetID        uint32
	SharedSubnetID  uint32
	ClientID        []byte
	HWAddr          []byte
	RequestedAddr   addr4.Address
	Hostname        string
	RetryCount      uint32
}

// Field numbers for ClientRequest, documented in rpcwire.proto.
const (
	reqFieldMsgType        = 1
	reqFieldSubnetID       = 2
	reqFieldSharedSubnetID = 3
	reqFieldClientID       = 4
	reqFieldHWAddr         = 5
	reqFieldRequestedAddr  = 6
	reqFieldHostname       = 7
	reqFieldRetryCount     = 8
)

// Encode serializes r using the wire types rpcwire.proto declares for
// each field.
func (r *ClientRequest) Encode() []byte {
	var b []byte

	b = protowire.AppendTag(b, reqFieldMsgType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.MsgType))

	b = protowire.AppendTag(b, reqFieldSubnetID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.SubnetID))

	b = protowire.AppendTag(b, reqFieldSharedSubnetID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.SharedSubnetID))

	if len(r.ClientID) > 0 {
		b = protowire.AppendTag(b, reqFieldClientID, protowire.BytesType)
		b = protowire.AppendBytes(b, r.ClientID)
	}

	if len(r.HWAddr) > 0 {
		b = protowire.AppendTag(b, reqFieldHWAddr, protowire.BytesType)
		b = protowire.AppendBytes(b, r.HWAddr)
	}

	b = protowire.AppendTag(b, reqFieldRequestedAddr, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, uint32(r.RequestedAddr))

	if r.Hostname != "" {
		b = protowire.AppendTag(b, reqFieldHostname, protowire.BytesType)
		b = protowire.AppendString(b, r.Hostname)
	}

	b = protowire.AppendTag(b, reqFieldRetryCount, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.RetryCount))

	return b
}

// DecodeClientRequest parses a wire-encoded ClientRequest.
func DecodeClientRequest(b []byte) (r *ClientRequest, err error) {
	r = &ClientRequest{}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("client request: %w", protowire.ParseError(n))
		}

		b = b[n:]

		switch num {
		case reqFieldMsgType:
			v, vn, verr := consumeVarint(b, typ)
			if verr != nil {
				return nil, verr
			}

			r.MsgType = MsgType(v)
			b = b[vn:]
		case reqFieldSubnetID:
			v, vn, verr := consumeVarint(b, typ)
			if verr != nil {
				return nil, verr
			}

			r.SubnetID = uint32(v)
			b = b[vn:]
		case reqFieldSharedSubnetID:
			v, vn, verr := consumeVarint(b, typ)
			if verr != nil {
				return nil, verr
			}

			r.SharedSubnetID = uint32(v)
			b = b[vn:]
		case reqFieldClientID:
			v, vn, verr := consumeBytes(b, typ)
			if verr != nil {
				return nil, verr
			}

			r.ClientID = v
			b = b[vn:]
		case reqFieldHWAddr:
			v, vn, verr := consumeBytes(b, typ)
			if verr != nil {
				return nil, verr
			}

			r.HWAddr = v
			b = b[vn:]
		case reqFieldRequestedAddr:
			v, vn := protowire.ConsumeFixed32(b)
			if vn < 0 {
				return nil, fmt.Errorf("client request requested_addr: %w", protowire.ParseError(vn))
			}

			r.RequestedAddr = addr4.Address(v)
			b = b[vn:]
		case reqFieldHostname:
			v, vn, verr := consumeBytes(b, typ)
			if verr != nil {
				return nil, verr
			}

			r.Hostname = string(v)
			b = b[vn:]
		case reqFieldRetryCount:
			v, vn, verr := consumeVarint(b, typ)
			if verr != nil {
				return nil, verr
			}

			r.RetryCount = uint32(v)
			b = b[vn:]
		default:
			sn := protowire.ConsumeFieldValue(num, typ, b)
			if sn < 0 {
				return nil, fmt.Errorf("client request: unknown field %d: %w", num, protowire.ParseError(sn))
			}

			b = b[sn:]
		}
	}

	return r, nil
}

// ClientResponse is the response half of the master RPC contract.
type ClientResponse struct {
	Result        Result
	YIAddr        addr4.Address
	ValidLifetime uint32
	T1            uint32
	T2            uint32
	ServerID      addr4.Address
}

// Field numbers for ClientResponse, documented in rpcwire.proto.
const (
	respFieldResult        = 1
	respFieldYIAddr        = 2
	respFieldValidLifetime = 3
	respFieldT1            = 4
	respFieldT2            = 5
	respFieldServerID      = 6
)

// Encode serializes resp.
func (resp *ClientResponse) Encode() []byte {
	var b []byte

	b = protowire.AppendTag(b, respFieldResult, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(resp.Result))

	b = protowire.AppendTag(b, respFieldYIAddr, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, uint32(resp.YIAddr))

	b = protowire.AppendTag(b, respFieldValidLifetime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(resp.ValidLifetime))

	b = protowire.AppendTag(b, respFieldT1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(resp.T1))

	b = protowire.AppendTag(b, respFieldT2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(resp.T2))

	b = protowire.AppendTag(b, respFieldServerID, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, uint32(resp.ServerID))

	return b
}

// DecodeClientResponse parses a wire-encoded ClientResponse.
func DecodeClientResponse(b []byte) (resp *ClientResponse, err error) {
	resp = &ClientResponse{}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("client response: %w", protowire.ParseError(n))
		}

		b = b[n:]

		switch num {
		case respFieldResult:
			v, vn, verr := consumeVarint(b, typ)
			if verr != nil {
				return nil, verr
			}

			resp.Result = Result(v)
			b = b[vn:]
		case respFieldYIAddr:
			v, vn := protowire.ConsumeFixed32(b)
			if vn < 0 {
				return nil, fmt.Errorf("client response yiaddr: %w", protowire.ParseError(vn))
			}

			resp.YIAddr = addr4.Address(v)
			b = b[vn:]
		case respFieldValidLifetime:
			v, vn, verr := consumeVarint(b, typ)
			if verr != nil {
				return nil, verr
			}

			resp.ValidLifetime = uint32(v)
			b = b[vn:]
		case respFieldT1:
			v, vn, verr := consumeVarint(b, typ)
			if verr != nil {
				return nil, verr
			}

			resp.T1 = uint32(v)
			b = b[vn:]
		case respFieldT2:
			v, vn, verr := consumeVarint(b, typ)
			if verr != nil {
				return nil, verr
			}

			resp.T2 = uint32(v)
			b = b[vn:]
		case respFieldServerID:
			v, vn := protowire.ConsumeFixed32(b)
			if vn < 0 {
				return nil, fmt.Errorf("client response server_id: %w", protowire.ParseError(vn))
			}

			resp.ServerID = addr4.Address(v)
			b = b[vn:]
		default:
			sn := protowire.ConsumeFieldValue(num, typ, b)
			if sn < 0 {
				return nil, fmt.Errorf("client response: unknown field %d: %w", num, protowire.ParseError(sn))
			}

			b = b[sn:]
		}
	}

	return resp, nil
}

func consumeVarint(b []byte, typ protowire.Type) (v uint64, n int, err error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("expected varint, got wire type %d", typ)
	}

	v, n = protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, fmt.Errorf("consuming varint: %w", protowire.ParseError(n))
	}

	return v, n, nil
}

func consumeBytes(b []byte, typ protowire.Type) (v []byte, n int, err error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("expected length-delimited, got wire type %d", typ)
	}

	raw, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, fmt.Errorf("consuming bytes: %w", protowire.ParseError(n))
	}

	out := make([]byte, len(raw))
	copy(out, raw)

	return out, n, nil
}
