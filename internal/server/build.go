// Package server wires every subsystem together: configuration,
// interfaces, subnets, client classes, the RPC client, the ping
// engine, hook libraries, statistics, and the control server, and
// runs the worker pool's Start/Shutdown lifecycle, per spec.md §5.
package server

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zdnscloud/zdhcp-sub001/internal/addr4"
	"github.com/zdnscloud/zdhcp-sub001/internal/classify"
	"github.com/zdnscloud/zdhcp-sub001/internal/config"
	"github.com/zdnscloud/zdhcp-sub001/internal/option4"
	"github.com/zdnscloud/zdhcp-sub001/internal/subnet"
)

var space = option4.NewDHCP4Space()

// buildClasses compiles every configured client class against the
// standard option space.
func buildClasses(classes []config.ClientClass) ([]*classify.Class, error) {
	out := make([]*classify.Class, 0, len(classes))

	for _, cc := range classes {
		compiled, err := classify.Compile(cc.Name, cc.Test, space)
		if err != nil {
			return nil, fmt.Errorf("client-class %q: %w", cc.Name, err)
		}

		out = append(out, compiled)
	}

	return out, nil
}

// buildSubnets translates every configured subnet4 entry into a
// runtime [subnet.Subnet].
func buildSubnets(entries []config.Subnet4) ([]*subnet.Subnet, error) {
	out := make([]*subnet.Subnet, 0, len(entries))

	for _, e := range entries {
		sub, err := buildSubnet(e)
		if err != nil {
			return nil, fmt.Errorf("subnet4 id=%d: %w", e.ID, err)
		}

		out = append(out, sub)
	}

	return out, nil
}

func buildSubnet(e config.Subnet4) (*subnet.Subnet, error) {
	prefix, prefixLen, err := parseCIDR(e.Subnet)
	if err != nil {
		return nil, err
	}

	sub := subnet.NewSubnet(e.ID, prefix, prefixLen)
	sub.SharedNetworkID = e.SharedNetworkID

	if e.ClientClass != "" {
		sub.AllowClientClasses = []string{e.ClientClass}
	}

	valid := time.Duration(e.ValidLifetime) * time.Second
	if valid == 0 {
		valid = time.Hour
	}

	sub.Valid = subnet.Lifetime{Min: valid, Default: valid, Max: valid}

	for poolID, p := range e.Pools {
		first, last, perr := parseRange(p.PoolRange)
		if perr != nil {
			return nil, perr
		}

		pool, perr := subnet.NewPool(uint32(poolID), first, last)
		if perr != nil {
			return nil, perr
		}

		if aerr := sub.AddPool(pool); aerr != nil {
			return nil, aerr
		}
	}

	for _, od := range e.OptionData {
		opt, oerr := buildOption(od)
		if oerr != nil {
			return nil, oerr
		}

		sub.Options.Add(opt)
	}

	return sub, nil
}

// buildOption constructs an [option4.Option] from one configured
// option-data entry, dispatching on the option's registered data type
// the way Kea-style DHCP servers interpret their "data" string, per
// spec.md §3's option-data table.
func buildOption(od config.OptionData) (option4.Option, error) {
	code := option4.Code(od.Code)

	def, ok := space.ByCode(code)
	name := od.Name

	if ok {
		name = def.Name

		switch def.Type {
		case option4.TypeAddrList:
			addrs, err := parseAddrList(od.Data)
			if err != nil {
				return option4.Option{}, fmt.Errorf("option %s: %w", name, err)
			}

			return option4.NewAddrList(code, name, addrs), nil
		case option4.TypeUint8:
			v, err := strconv.ParseUint(od.Data, 10, 8)
			if err != nil {
				return option4.Option{}, fmt.Errorf("option %s: %w", name, err)
			}

			return option4.NewUint8(code, name, uint8(v)), nil
		case option4.TypeUint16:
			v, err := strconv.ParseUint(od.Data, 10, 16)
			if err != nil {
				return option4.Option{}, fmt.Errorf("option %s: %w", name, err)
			}

			return option4.NewUint16(code, name, uint16(v)), nil
		case option4.TypeUint32:
			v, err := strconv.ParseUint(od.Data, 10, 32)
			if err != nil {
				return option4.Option{}, fmt.Errorf("option %s: %w", name, err)
			}

			return option4.NewUint32(code, name, uint32(v)), nil
		case option4.TypeString:
			return option4.NewString(code, name, od.Data), nil
		}
	}

	return option4.NewRaw(code, []byte(od.Data)), nil
}

func parseAddrList(s string) ([]addr4.Address, error) {
	parts := strings.Split(s, ",")
	out := make([]addr4.Address, 0, len(parts))

	for _, p := range parts {
		a, err := addr4.Parse(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}

		out = append(out, a)
	}

	return out, nil
}

// parseCIDR parses "a.b.c.d/n" into its address and prefix length.
func parseCIDR(s string) (addr4.Address, int, error) {
	prefix, lenStr, ok := strings.Cut(s, "/")
	if !ok {
		return 0, 0, fmt.Errorf("%q: missing prefix length", s)
	}

	a, err := addr4.Parse(prefix)
	if err != nil {
		return 0, 0, err
	}

	n, err := strconv.Atoi(lenStr)
	if err != nil || n < 0 || n > 32 {
		return 0, 0, fmt.Errorf("%q: invalid prefix length", s)
	}

	return a, n, nil
}

// parseRange parses "a.b.c.d-w.x.y.z" into its inclusive bounds.
func parseRange(s string) (first, last addr4.Address, err error) {
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("%q: not a pool range", s)
	}

	first, err = addr4.Parse(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, err
	}

	last, err = addr4.Parse(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, err
	}

	return first, last, nil
}
