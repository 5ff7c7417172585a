package subnet

import "github.com/AdguardTeam/golibs/errors"

// ErrDisjoint is returned when pools configured for the same subnet
// overlap, violating spec.md §3's pool-disjointness invariant.
const ErrDisjoint errors.Error = "pools are not disjoint"

// ErrOutsidePrefix is returned when a pool does not lie entirely
// within its subnet's prefix.
const ErrOutsidePrefix errors.Error = "pool lies outside subnet prefix"

// ErrInvertedRange is returned when a pool's first address is greater
// than its last address.
const ErrInvertedRange errors.Error = "pool first address after last address"

// ErrDuplicateSubnetID is returned by [Manager] construction when two
// subnets share a numeric id.
const ErrDuplicateSubnetID errors.Error = "duplicate subnet id"
