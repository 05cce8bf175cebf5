// Package hooks intercepts native method binding for process-spawning JDK
// natives and gates every call through the keyword policy.
//
// The flow per watched method:
//   - the host fires NativeMethodBind; OnNativeMethodBind matches the method
//     against the watched targets, records the original entry once, and
//     proposes the trampoline through the host's output slot
//   - every later call lands in the trampoline, which decodes the arguments,
//     evaluates the policy, and either forwards to the original untouched or
//     returns the target's own failure value
package hooks

import (
	"strings"
	"sync/atomic"

	"github.com/zboralski/raspguard/internal/jvm"
)

// Target identifies a watched native method.
type Target struct {
	Name   string // display name, e.g. "ProcessImpl.create"
	Class  string // substring of the declaring class signature
	Method string // exact method name
}

// Watched targets.
var (
	ProcessImplCreate = Target{
		Name:   "ProcessImpl.create",
		Class:  "java/lang/ProcessImpl",
		Method: "create",
	}
	UNIXProcessForkAndExec = Target{
		Name:   "UNIXProcess.forkAndExec",
		Class:  "java/lang/UNIXProcess",
		Method: "forkAndExec",
	}
)

// Failure values returned to the caller on block. Both are the natives' own
// error results, which the JDK turns into an IOException.
const (
	CreateFailed      int64 = -1
	ForkAndExecFailed int32 = -1
)

// Matches reports whether a method with the given declaring class signature
// and name is this target.
func (t Target) Matches(classSig, method string) bool {
	return method == t.Method && strings.Contains(classSig, t.Class)
}

type entrySlot struct {
	entry jvm.Entry
}

// Symbol is a watched target, its trampoline, and the original entry
// captured from the first bind event.
type Symbol struct {
	Target
	Trampoline jvm.Entry

	original atomic.Pointer[entrySlot]
}

// Capture records e as the original entry unless one is already recorded.
// It reports whether e was stored.
func (s *Symbol) Capture(e jvm.Entry) bool {
	return s.original.CompareAndSwap(nil, &entrySlot{entry: e})
}

// Original returns the captured entry.
func (s *Symbol) Original() (jvm.Entry, bool) {
	slot := s.original.Load()
	if slot == nil {
		return nil, false
	}
	return slot.entry, true
}

// Reset forgets the captured entry.
func (s *Symbol) Reset() {
	s.original.Store(nil)
}

// Registry is the redirect table: watched symbols and the trampolines the
// interceptor may propose for them.
type Registry struct {
	symbols []*Symbol
}

// NewRegistry creates a registry over the given symbols.
func NewRegistry(symbols ...*Symbol) *Registry {
	return &Registry{symbols: symbols}
}

// Lookup returns the symbol matching the method, or nil.
func (r *Registry) Lookup(classSig, method string) *Symbol {
	for _, s := range r.symbols {
		if s.Matches(classSig, method) {
			return s
		}
	}
	return nil
}

// Symbols returns the watched symbols.
func (r *Registry) Symbols() []*Symbol {
	return r.symbols
}

// Reset forgets every captured entry.
func (r *Registry) Reset() {
	for _, s := range r.symbols {
		s.Reset()
	}
}

// Captured returns the names of symbols with a recorded original entry.
func (r *Registry) Captured() []string {
	var names []string
	for _, s := range r.symbols {
		if _, ok := s.Original(); ok {
			names = append(names, s.Name)
		}
	}
	return names
}
