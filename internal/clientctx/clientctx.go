// Package clientctx defines the per-query mutable state carried
// through the RPC and ping stages of the worker pipeline, per
// spec.md's glossary entry for "Client context".
package clientctx

import (
	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
	"github.com/zdnscloud/zdhcp-sub001/internal/iface"
	"github.com/zdnscloud/zdhcp-sub001/internal/packet4"
	"github.com/zdnscloud/zdhcp-sub001/internal/subnet"
)

// Context is a single in-flight DHCP exchange's state as it moves
// from the worker, to the RPC connection, to the ping engine, and
// finally back to the worker for response assembly.
type Context struct {
	// Received is the inbound datagram and its originating interface.
	Received *iface.Received

	// Subnet is the subnet selected for this query.
	Subnet *subnet.Subnet

	// MatchedClasses is the set of client classes the query matched.
	MatchedClasses map[string]struct{}

	// CandidateAddr is the address the master or a prior retry
	// offered, carried forward so a retried allocation request can
	// tell the master which address to avoid re-offering.
	CandidateAddr addr4.Address

	// RetryCount is incremented on each RPC or ping retry, per
	// spec.md §7.
	RetryCount uint32

	// ValidLifetime, T1, T2 hold the lease timers once the master
	// has responded.
	ValidLifetime, T1, T2 uint32

	// ServerID is the server identifier to return to the client, the
	// subnet's relay-facing address on the ingress link.
	ServerID addr4.Address
}

// Type returns the inbound packet's DHCP message type, or an error if
// it carries none.
func (c *Context) Type() (packet4.MsgType, error) {
	return c.Received.Packet.Type()
}
