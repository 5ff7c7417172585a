// Package classify compiles and evaluates client-class boolean
// expressions over DHCPv4 packets, per spec.md §4.5.
//
// Grounded on the class/subnet-matching shape of
// other_examples/ca0de55c_JoshFinlayAU-athena-dhcpd__internal-dhcp-handler.go.go
// and the compiled-predicate-over-packet idiom of plugin-style DHCP
// servers such as other_examples/120c08e8_coredhcp-coredhcp__plugins-prefix-plugin.go.go;
// the grammar itself is hand-written recursive descent, since no
// example repo pulls in a parser-generator or expression-evaluator
// library for this kind of ACL matching — every one hand-rolls it in
// plain Go.
package classify

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"

	"github.com/zdnscloud/zdhcp-sub001/internal/option4"
	"github.com/zdnscloud/zdhcp-sub001/internal/packet4"
)

// ErrParse is returned by [Compile] for a syntactically invalid
// expression, and wraps an unknown option name, per spec.md §4.5
// ("an unknown name is a configuration error").
const ErrParse errors.Error = "client-class expression"

// nodeKind discriminates a compiled expression tree node.  As with
// [internal/option4.Option], the tree is a tagged sum dispatched with
// a type switch rather than an interface hierarchy, since the only
// operations are "evaluate" and there are exactly three shapes.
type nodeKind int

const (
	nodeAnd nodeKind = iota
	nodeOr
	nodeAtom
)

// node is one node of a compiled expression tree.  Evaluation
// short-circuits and/or exactly as described in spec.md §4.5.
type node struct {
	kind        nodeKind
	left, right *node
	atom        atom
}

// eval evaluates n against pkt.
func (n *node) eval(pkt *packet4.Packet) bool {
	switch n.kind {
	case nodeAnd:
		return n.left.eval(pkt) && n.right.eval(pkt)
	case nodeOr:
		return n.left.eval(pkt) || n.right.eval(pkt)
	default:
		return n.atom.eval(pkt)
	}
}

// Class is one compiled client-class: a name and its predicate tree.
type Class struct {
	Name string
	root *node
}

// Compile parses test (spec.md §4.5's grammar) against space,
// resolving option names to codes at compile time, and returns a
// reusable [Class] whose evaluation is O(depth).
func Compile(name, test string, space *option4.Space) (c *Class, err error) {
	p := &parser{src: test, space: space}

	root, err := p.parseOrExpr()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", name, ErrParse, err)
	}

	p.skipWS()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("%s: %w: unexpected trailing input %q", name, ErrParse, p.src[p.pos:])
	}

	return &Class{Name: name, root: root}, nil
}

// Match reports whether pkt satisfies c's expression.
func (c *Class) Match(pkt *packet4.Packet) bool {
	return c.root.eval(pkt)
}

// Set is the set of client-class names a packet belongs to.
type Set map[string]struct{}

// Contains reports whether name is a member of s.
func (s Set) Contains(name string) bool {
	_, ok := s[name]

	return ok
}

// Evaluate applies every class in classes, in order, and returns the
// set of classes whose expression matched, per spec.md §4.5 ("the
// packet's class set becomes the set whose predicates returned
// true").
func Evaluate(classes []*Class, pkt *packet4.Packet) Set {
	set := make(Set, len(classes))

	for _, c := range classes {
		if c.Match(pkt) {
			set[c.Name] = struct{}{}
		}
	}

	return set
}
