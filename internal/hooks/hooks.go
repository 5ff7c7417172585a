// Package hooks implements the process-wide callout registry and
// dynamic library loader described in spec.md §4.9. Hook libraries
// are loaded with the standard library's plugin package, the closest
// Go analogue to a dlopen-based hooks mechanism; no ecosystem library
// in the example corpus addresses native dynamic-library loading.
package hooks

import (
	"fmt"
	"plugin"
	"sort"
	"sync"

	"github.com/AdguardTeam/golibs/errors"
)

// APIVersion is the hooks ABI version every loaded library must
// report from its exported version() function.
const APIVersion = 1

// NextStep is a callout's disposition, per spec.md §4.9.
type NextStep int

const (
	StepContinue NextStep = iota
	StepSkip
	StepDrop
)

// CalloutHandle is the shared argument bag passed to every callout
// invoked for one hook point.
type CalloutHandle struct {
	// Args carries untyped, callout-defined values keyed by name.
	Args map[string]any

	next NextStep
}

// NewCalloutHandle returns a handle with StepContinue as its initial
// disposition.
func NewCalloutHandle() *CalloutHandle {
	return &CalloutHandle{Args: make(map[string]any), next: StepContinue}
}

// SetNextStep records a callout's disposition. A later callout in the
// same chain may override an earlier StepContinue, but spec.md treats
// the chain's final value as authoritative, so no ordering
// restriction is enforced here.
func (h *CalloutHandle) SetNextStep(s NextStep) {
	h.next = s
}

// NextStep returns the chain's current disposition.
func (h *CalloutHandle) NextStep() NextStep {
	return h.next
}

// Callout is one library's implementation of a named hook.
type Callout func(handle *CalloutHandle) error

// ErrVersionMismatch is returned by [Load] when a library's declared
// version does not equal [APIVersion].
const ErrVersionMismatch errors.Error = "hooks library version mismatch"

// registeredCallout pairs a callout with the library that registered
// it, preserving library_index for ordering.
type registeredCallout struct {
	libraryIndex int
	fn           Callout
}

// Registry maps hook name to its ordered callouts.
type Registry struct {
	mu       sync.RWMutex
	byHook   map[string][]registeredCallout
	libs     []*library
}

// library is one loaded hooks library.
type library struct {
	path   string
	plugin *plugin.Plugin
	index  int
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{byHook: make(map[string][]registeredCallout)}
}

// hookNames is the set of hook points spec.md's pipeline invokes:
// pkt4_receive before allocation, pkt4_send before transmission.
var hookNames = []string{"pkt4_receive", "pkt4_send"}

// Load opens the plugin at path, version-checks it, calls its load
// function with params, and registers any exported callout matching a
// known hook name. libraryIndex fixes this library's position in
// every hook's invocation order.
func (r *Registry) Load(path string, libraryIndex int, params map[string]any) error {
	p, err := plugin.Open(path)
	if err != nil {
		return fmt.Errorf("opening hooks library %s: %w", path, err)
	}

	versionSym, err := p.Lookup("Version")
	if err != nil {
		return fmt.Errorf("hooks library %s: missing Version: %w", path, err)
	}

	versionFn, ok := versionSym.(func() int)
	if !ok {
		return fmt.Errorf("hooks library %s: Version has unexpected signature", path)
	}

	if versionFn() != APIVersion {
		return fmt.Errorf("hooks library %s: %w", path, ErrVersionMismatch)
	}

	if loadSym, lerr := p.Lookup("Load"); lerr == nil {
		loadFn, lok := loadSym.(func(map[string]any) int)
		if lok && loadFn(params) != 0 {
			return fmt.Errorf("hooks library %s: Load returned non-zero", path)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range hookNames {
		sym, lerr := p.Lookup(exportedHookSymbol(name))
		if lerr != nil {
			continue
		}

		fn, fok := sym.(func(*CalloutHandle) error)
		if !fok {
			return fmt.Errorf("hooks library %s: hook %s has unexpected signature", path, name)
		}

		r.byHook[name] = append(r.byHook[name], registeredCallout{libraryIndex: libraryIndex, fn: fn})
		sort.SliceStable(r.byHook[name], func(i, j int) bool {
			return r.byHook[name][i].libraryIndex < r.byHook[name][j].libraryIndex
		})
	}

	r.libs = append(r.libs, &library{path: path, plugin: p, index: libraryIndex})

	return nil
}

// exportedHookSymbol maps a hook name to the exported Go identifier a
// plugin must provide, since plugin symbol lookups require exported
// names.
func exportedHookSymbol(hook string) string {
	switch hook {
	case "pkt4_receive":
		return "Pkt4Receive"
	case "pkt4_send":
		return "Pkt4Send"
	default:
		return hook
	}
}

// Run invokes every callout registered for hook, in library_index
// ascending order, against handle. It stops early if a callout
// returns an error or sets StepDrop.
func (r *Registry) Run(hook string, handle *CalloutHandle) error {
	r.mu.RLock()
	callouts := append([]registeredCallout(nil), r.byHook[hook]...)
	r.mu.RUnlock()

	for _, rc := range callouts {
		if err := rc.fn(handle); err != nil {
			return fmt.Errorf("hook %s library %d: %w", hook, rc.libraryIndex, err)
		}

		if handle.NextStep() == StepDrop {
			return nil
		}
	}

	return nil
}

// Unload calls every loaded library's Unload function, in reverse
// load order.
func (r *Registry) Unload() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.libs) - 1; i >= 0; i-- {
		lib := r.libs[i]

		sym, err := lib.plugin.Lookup("Unload")
		if err != nil {
			continue
		}

		if fn, ok := sym.(func() int); ok {
			_ = fn()
		}
	}
}
