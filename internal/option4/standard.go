package option4

// DHCP4SpaceName is the name of the built-in standard option space,
// per spec.md §3 ("the two built-in spaces are dhcp4 ... and
// per-enterprise vendor spaces").
const DHCP4SpaceName = "dhcp4"

// mustRegister registers def into s and panics on failure; only used
// for the fixed, compile-time-known standard space, where a
// registration failure is a programming error, not a runtime one.
func mustRegister(s *Space, def *Definition) {
	if err := s.Register(def); err != nil {
		panic(err)
	}
}

// NewDHCP4Space builds the standard "dhcp4" option space containing
// the option definitions the engine itself interprets (message type,
// addresses, lease timers, relay agent info, vendor class).  A
// configuration loader may register additional definitions for
// options the engine only forwards verbatim; see spec.md §4.1 ("a
// general option framework is specified, not every RFC-defined
// option").
func NewDHCP4Space() *Space {
	s := NewSpace(DHCP4SpaceName)

	mustRegister(s, &Definition{Name: "subnet-mask", Code: CodeSubnetMask, Type: TypeAddrList})
	mustRegister(s, &Definition{Name: "time-offset", Code: CodeTimeOffset, Type: TypeUint32})
	mustRegister(s, &Definition{Name: "routers", Code: CodeRouter, Type: TypeAddrList, Array: true})
	mustRegister(s, &Definition{Name: "hostname", Code: CodeHostname, Type: TypeString})
	mustRegister(s, &Definition{Name: "requested-address", Code: CodeRequestedIPAddress, Type: TypeAddrList})
	mustRegister(s, &Definition{Name: "dhcp-lease-time", Code: CodeIPAddressLeaseTime, Type: TypeUint32})
	mustRegister(s, &Definition{Name: "dhcp-option-overload", Code: CodeOptionOverload, Type: TypeUint8})
	mustRegister(s, &Definition{Name: "dhcp-message-type", Code: CodeDHCPMessageType, Type: TypeUint8})
	mustRegister(s, &Definition{Name: "dhcp-server-identifier", Code: CodeServerIdentifier, Type: TypeAddrList})
	mustRegister(s, &Definition{Name: "dhcp-parameter-request-list", Code: CodeParameterRequestList, Type: TypeRaw})
	mustRegister(s, &Definition{Name: "dhcp-max-message-size", Code: CodeMaxMessageSize, Type: TypeUint16})
	mustRegister(s, &Definition{Name: "dhcp-renewal-time", Code: CodeRenewalTimeT1, Type: TypeUint32})
	mustRegister(s, &Definition{Name: "dhcp-rebinding-time", Code: CodeRebindingTimeT2, Type: TypeUint32})
	mustRegister(s, &Definition{Name: "vendor-class-identifier", Code: CodeVendorClassID, Type: TypeTuples})
	mustRegister(s, &Definition{Name: "client-id", Code: CodeClientIdentifier, Type: TypeRaw})
	mustRegister(s, &Definition{Name: "vendor-encapsulated-options", Code: CodeVendorEncapsulated, Type: TypeVendor})
	mustRegister(s, &Definition{Name: "relay-agent-information", Code: CodeRelayAgentInfo, Type: TypeRaw})
	mustRegister(s, &Definition{Name: "subnet-selection", Code: CodeSubnetSelection, Type: TypeAddrList})

	return s
}

// NewRelayAgentSpace builds the option space for Relay Agent
// Information (82) sub-options, per spec.md §6: circuit-id (1),
// remote-id (2), link-selection (5).
func NewRelayAgentSpace() *Space {
	s := NewSpace("relay-agent-information")

	mustRegister(s, &Definition{Name: "circuit-id", Code: SubOptCircuitID, Type: TypeRaw})
	mustRegister(s, &Definition{Name: "remote-id", Code: SubOptRemoteID, Type: TypeRaw})
	mustRegister(s, &Definition{Name: "link-selection", Code: SubOptLinkSelection, Type: TypeAddrList})

	return s
}
