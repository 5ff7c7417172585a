package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdnscloud/zdhcp-sub001/internal/classify"
	"github.com/zdnscloud/zdhcp-sub001/internal/option4"
	"github.com/zdnscloud/zdhcp-sub001/internal/packet4"
)

func packetWithVendorClass(t *testing.T, vendor string) *packet4.Packet {
	t.Helper()

	p := packet4.New()
	p.Options.Add(option4.Option{
		Code:    option4.CodeVendorClassID,
		Kind:    option4.TypeTuples,
		Name:    "vendor-class-identifier",
		Raw:     []byte(vendor),
		Tuples:  [][]byte{[]byte(vendor)},
	})

	return p
}

func TestEqualityAndExists(t *testing.T) {
	t.Parallel()

	space := option4.NewDHCP4Space()

	c, err := classify.Compile("msft", `option[vendor-class-identifier] == 'MSFT 5.0'`, space)
	require.NoError(t, err)

	assert.True(t, c.Match(packetWithVendorClass(t, "MSFT 5.0")))
	assert.False(t, c.Match(packetWithVendorClass(t, "other")))

	ex, err := classify.Compile("has-vendor", `option[vendor-class-identifier].exists`, space)
	require.NoError(t, err)
	assert.True(t, ex.Match(packetWithVendorClass(t, "anything")))
}

func TestSubstring(t *testing.T) {
	t.Parallel()

	space := option4.NewDHCP4Space()

	c, err := classify.Compile("msft-prefix", `substring(option[vendor-class-identifier], 0, 4) == 'MSFT'`, space)
	require.NoError(t, err)

	assert.True(t, c.Match(packetWithVendorClass(t, "MSFT 6.0")))
	assert.False(t, c.Match(packetWithVendorClass(t, "Linux")))
}

func TestAndOrPrecedenceAndParens(t *testing.T) {
	t.Parallel()

	space := option4.NewDHCP4Space()

	c, err := classify.Compile(
		"combo",
		`option[vendor-class-identifier] == 'A' or option[vendor-class-identifier] == 'B' and option[vendor-class-identifier] == 'C'`,
		space,
	)
	require.NoError(t, err)

	// 'and' binds tighter: this is A or (B and C); since no packet can
	// equal both B and C, only "A" should match.
	assert.True(t, c.Match(packetWithVendorClass(t, "A")))
	assert.False(t, c.Match(packetWithVendorClass(t, "B")))

	parenthesized, err := classify.Compile(
		"combo-paren",
		`(option[vendor-class-identifier] == 'A' or option[vendor-class-identifier] == 'B') and option[vendor-class-identifier] == 'B'`,
		space,
	)
	require.NoError(t, err)
	assert.True(t, parenthesized.Match(packetWithVendorClass(t, "B")))
}

func TestUnknownOptionNameIsConfigError(t *testing.T) {
	t.Parallel()

	_, err := classify.Compile("bad", `option[not-a-real-option] == 'x'`, option4.NewDHCP4Space())
	require.ErrorIs(t, err, classify.ErrParse)
}

func TestEvaluateReturnsMatchingSet(t *testing.T) {
	t.Parallel()

	space := option4.NewDHCP4Space()

	a, err := classify.Compile("is-a", `option[vendor-class-identifier] == 'A'`, space)
	require.NoError(t, err)
	b, err := classify.Compile("is-b", `option[vendor-class-identifier] == 'B'`, space)
	require.NoError(t, err)

	set := classify.Evaluate([]*classify.Class{a, b}, packetWithVendorClass(t, "A"))
	assert.True(t, set.Contains("is-a"))
	assert.False(t, set.Contains("is-b"))
}

func TestHexLiteral(t *testing.T) {
	t.Parallel()

	p := packet4.New()
	p.Options.Add(option4.NewRaw(option4.CodeClientIdentifier, []byte{0x01, 0x02, 0x03}))

	c, err := classify.Compile("hex", `option[client-id] == 0x010203`, option4.NewDHCP4Space())
	require.NoError(t, err)
	assert.True(t, c.Match(p))
}
