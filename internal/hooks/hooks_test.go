package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalloutHandleDefaultsToContinue(t *testing.T) {
	t.Parallel()

	h := NewCalloutHandle()
	assert.Equal(t, StepContinue, h.NextStep())
}

func TestRunOrdersByLibraryIndexAndStopsOnDrop(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	var order []int
	// Listed in library_index order, the sorted order Load keeps, so
	// Run is expected to call them in that same order.
	r.byHook["pkt4_receive"] = []registeredCallout{
		{libraryIndex: 1, fn: func(h *CalloutHandle) error {
			order = append(order, 1)

			return nil
		}},
		{libraryIndex: 2, fn: func(h *CalloutHandle) error {
			order = append(order, 2)
			h.SetNextStep(StepDrop)

			return nil
		}},
		{libraryIndex: 3, fn: func(h *CalloutHandle) error {
			order = append(order, 3)

			return nil
		}},
	}

	h := NewCalloutHandle()
	require.NoError(t, r.Run("pkt4_receive", h))

	assert.Equal(t, StepDrop, h.NextStep())
	assert.Equal(t, []int{1, 2}, order, "library 3 should not run after library 2 drops")
}

func TestExportedHookSymbol(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Pkt4Receive", exportedHookSymbol("pkt4_receive"))
	assert.Equal(t, "Pkt4Send", exportedHookSymbol("pkt4_send"))
}
