package option4

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Text returns o's canonical text form, used for logging and for the
// class-matcher's substring/equality operators (spec.md §4.5).
func (o Option) Text() string {
	switch o.Kind {
	case TypeUint8:
		return fmt.Sprintf("%d", o.Uint8())
	case TypeUint16:
		return fmt.Sprintf("%d", o.Uint16())
	case TypeUint32:
		return fmt.Sprintf("%d", o.Uint32())
	case TypeString:
		return o.String()
	case TypeAddrList:
		parts := make([]string, len(o.Addrs))
		for i, a := range o.Addrs {
			parts[i] = a.String()
		}

		return strings.Join(parts, ",")
	case TypeTuples:
		parts := make([]string, len(o.Tuples))
		for i, t := range o.Tuples {
			parts[i] = string(t)
		}

		return strings.Join(parts, ",")
	case TypeVendor:
		return fmt.Sprintf("enterprise=%d", o.EnterpriseID)
	default:
		return hex.EncodeToString(o.Raw)
	}
}
