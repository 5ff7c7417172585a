package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/zdnscloud/zdhcp-sub001/internal/option4"
	"github.com/zdnscloud/zdhcp-sub001/internal/packet4"
)

// parser is a hand-rolled recursive-descent parser for spec.md §4.5's
// grammar.  The grammar's "and binds tighter than or" rule is encoded
// directly in the two-level orExpr/andExpr production below, which is
// equivalent to building the expression with an explicit operator
// stack and a predicate stack (the algorithm spec.md describes) but
// needs no mutable stack state of its own.
type parser struct {
	src   string
	pos   int
	space *option4.Space
}

var (
	reFullNumber = regexp.MustCompile(`^\d+$`)
	reLiteral    = regexp.MustCompile(`^(0x[0-9A-Fa-f]+|'(?:[^'\\]|\\.)*')`)
	reSubstr     = regexp.MustCompile(`^substring\(\s*option\[([^,\]]+)\]\s*,\s*(\d+)\s*,\s*(all|\d+)\s*\)`)
	reExists     = regexp.MustCompile(`^option\[([^\]]+)\]\s*\.\s*exists`)
	reOptEq      = regexp.MustCompile(`^option\[([^\]]+)\]`)
)

func (p *parser) skipWS() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

// peekKeyword reports whether kw appears as a whole word at the
// current position (not as a prefix of a longer identifier), without
// consuming it.
func (p *parser) peekKeyword(kw string) bool {
	p.skipWS()
	rest := p.src[p.pos:]
	if !strings.HasPrefix(rest, kw) {
		return false
	}

	after := rest[len(kw):]

	return after == "" || !isIdentByte(after[0])
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '-' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// parseOrExpr := andExpr ('or' andExpr)*
func (p *parser) parseOrExpr() (n *node, err error) {
	n, err = p.parseAndExpr()
	if err != nil {
		return nil, err
	}

	for p.peekKeyword("or") {
		p.skipWS()
		p.pos += len("or")

		right, rerr := p.parseAndExpr()
		if rerr != nil {
			return nil, rerr
		}

		n = &node{kind: nodeOr, left: n, right: right}
	}

	return n, nil
}

// parseAndExpr := term ('and' term)*
func (p *parser) parseAndExpr() (n *node, err error) {
	n, err = p.parseTerm()
	if err != nil {
		return nil, err
	}

	for p.peekKeyword("and") {
		p.skipWS()
		p.pos += len("and")

		right, rerr := p.parseTerm()
		if rerr != nil {
			return nil, rerr
		}

		n = &node{kind: nodeAnd, left: n, right: right}
	}

	return n, nil
}

// parseTerm := '(' expr ')' | atom
func (p *parser) parseTerm() (n *node, err error) {
	p.skipWS()

	if p.pos < len(p.src) && p.src[p.pos] == '(' {
		p.pos++

		n, err = p.parseOrExpr()
		if err != nil {
			return nil, err
		}

		p.skipWS()
		if p.pos >= len(p.src) || p.src[p.pos] != ')' {
			return nil, fmt.Errorf("expected ')' at %d", p.pos)
		}

		p.pos++

		return n, nil
	}

	a, err := p.parseAtom()
	if err != nil {
		return nil, err
	}

	return &node{kind: nodeAtom, atom: a}, nil
}

// parseAtom parses one of the three atom productions in spec.md §4.5's
// grammar: substring(...)==literal, option[name](==|!=)literal, or
// option[name].exists.
func (p *parser) parseAtom() (a atom, err error) {
	p.skipWS()
	rest := p.src[p.pos:]

	if m := reSubstr.FindStringSubmatch(rest); m != nil {
		p.pos += len(m[0])
		p.skipWS()

		if !strings.HasPrefix(p.src[p.pos:], "==") {
			return nil, fmt.Errorf("expected '==' after substring() at %d", p.pos)
		}

		p.pos += len("==")

		code, cerr := p.resolveName(m[1])
		if cerr != nil {
			return nil, cerr
		}

		start, _ := strconv.Atoi(m[2])

		length := -1
		if m[3] != "all" {
			length, _ = strconv.Atoi(m[3])
		}

		lit, lerr := p.parseLiteral()
		if lerr != nil {
			return nil, lerr
		}

		return &substringAtom{code: code, start: start, length: length, want: lit}, nil
	}

	if m := reExists.FindStringSubmatch(rest); m != nil {
		p.pos += len(m[0])

		code, cerr := p.resolveName(m[1])
		if cerr != nil {
			return nil, cerr
		}

		return &existsAtom{code: code}, nil
	}

	if m := reOptEq.FindStringSubmatch(rest); m != nil {
		code, cerr := p.resolveName(m[1])
		if cerr != nil {
			return nil, cerr
		}

		p.pos += len(m[0])
		p.skipWS()

		var negate bool
		switch {
		case strings.HasPrefix(p.src[p.pos:], "=="):
			p.pos += len("==")
		case strings.HasPrefix(p.src[p.pos:], "!="):
			negate = true
			p.pos += len("!=")
		default:
			return nil, fmt.Errorf("expected '==' or '!=' at %d", p.pos)
		}

		lit, lerr := p.parseLiteral()
		if lerr != nil {
			return nil, lerr
		}

		return &equalityAtom{code: code, want: lit, negate: negate}, nil
	}

	return nil, fmt.Errorf("unrecognized atom at %d: %q", p.pos, rest)
}

// parseLiteral parses a single-quoted string or a 0x hex literal,
// per spec.md §4.5's "literal" production, and returns its decoded
// byte value.
func (p *parser) parseLiteral() (lit []byte, err error) {
	p.skipWS()

	m := reLiteral.FindString(p.src[p.pos:])
	if m == "" {
		return nil, fmt.Errorf("expected literal at %d", p.pos)
	}

	p.pos += len(m)

	if strings.HasPrefix(m, "0x") {
		return decodeHex(m[2:])
	}

	return []byte(unescapeQuoted(m[1 : len(m)-1])), nil
}

// resolveName resolves a grammar "name" — either an option name or a
// decimal/numeric code — against p.space, per spec.md §4.5 ("option[N]
// resolves N as either a numeric code or an option name ...; an
// unknown name is a configuration error").
func (p *parser) resolveName(name string) (code option4.Code, err error) {
	name = strings.TrimSpace(name)
	if reFullNumber.MatchString(name) {
		n, nerr := strconv.Atoi(name)
		if nerr != nil || n < 0 || n > 255 {
			return 0, fmt.Errorf("invalid option code %q", name)
		}

		return option4.Code(n), nil
	}

	if p.space == nil {
		return 0, fmt.Errorf("unknown option name %q: no option space configured", name)
	}

	def, ok := p.space.ByName(name)
	if !ok {
		return 0, fmt.Errorf("unknown option name %q", name)
	}

	return def.Code, nil
}

func decodeHex(s string) (b []byte, err error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex literal %q", s)
	}

	b = make([]byte, len(s)/2)
	for i := 0; i < len(b); i++ {
		var v int
		_, err = fmt.Sscanf(s[i*2:i*2+2], "%02x", &v)
		if err != nil {
			return nil, fmt.Errorf("invalid hex literal %q: %w", s, err)
		}

		b[i] = byte(v)
	}

	return b, nil
}

func unescapeQuoted(s string) string {
	var b strings.Builder

	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}

		b.WriteByte(s[i])
	}

	return b.String()
}

// atom is a single evaluable leaf of a compiled expression.
type atom interface {
	eval(pkt *packet4.Packet) bool
}

// existsAtom implements "option[name].exists".
type existsAtom struct {
	code option4.Code
}

func (a *existsAtom) eval(pkt *packet4.Packet) bool {
	return pkt.Options.Has(a.code)
}

// equalityAtom implements "option[name] == literal" / "!= literal".
type equalityAtom struct {
	code   option4.Code
	want   []byte
	negate bool
}

func (a *equalityAtom) eval(pkt *packet4.Packet) bool {
	opt, ok := pkt.Options.GetFirst(a.code)
	if !ok {
		return a.negate
	}

	eq := bytesEqual(opt.Raw, a.want)
	if a.negate {
		return !eq
	}

	return eq
}

// substringAtom implements "substring(option[name], start, all|n) == literal".
type substringAtom struct {
	code   option4.Code
	start  int
	length int // -1 means "all"
	want   []byte
}

func (a *substringAtom) eval(pkt *packet4.Packet) bool {
	opt, ok := pkt.Options.GetFirst(a.code)
	if !ok || a.start > len(opt.Raw) {
		return false
	}

	end := len(opt.Raw)
	if a.length >= 0 {
		end = a.start + a.length
		if end > len(opt.Raw) {
			return false
		}
	}

	return bytesEqual(opt.Raw[a.start:end], a.want)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
