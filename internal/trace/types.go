// Package trace records intercepted calls for display.
package trace

import (
	"sort"
	"sync"

	"github.com/zboralski/raspguard/internal/hooks"
)

// Tag represents an event category.
// Tags are stored without # prefix; the prefix is added on rendering.
type Tag string

// Standard tags for call events.
const (
	Allow      Tag = "allow"
	Block      Tag = "block"
	FailClosed Tag = "fail-closed"
	Create     Tag = "create"
	ForkExec   Tag = "forkexec"
)

// Tags is a collection of tags with helper methods.
type Tags []Tag

// Has returns true if the tag collection contains the given tag.
func (t Tags) Has(tag Tag) bool {
	for _, x := range t {
		if x == tag {
			return true
		}
	}
	return false
}

// Add adds a tag if not already present.
func (t *Tags) Add(tag Tag) {
	if !t.Has(tag) {
		*t = append(*t, tag)
	}
}

// Strings returns tags as strings with # prefix for display.
func (t Tags) Strings() []string {
	out := make([]string, len(t))
	for i, tag := range t {
		out[i] = "#" + string(tag)
	}
	return out
}

// Annotations holds key-value metadata for events.
type Annotations map[string]string

// Set adds or updates an annotation.
func (a Annotations) Set(k, v string) {
	a[k] = v
}

// Get retrieves an annotation value.
func (a Annotations) Get(k string) string {
	return a[k]
}

// Event is one call through a trampoline.
type Event struct {
	Index       int    // submission order
	Target      string // e.g. "ProcessImpl.create"
	Command     string // text the policy saw
	Result      int64  // value returned to the caller
	Tags        Tags
	Annotations Annotations
}

// NewEvent creates an event tagged with its target kind.
func NewEvent(index int, target string, kind Tag, command string) *Event {
	return &Event{
		Index:       index,
		Target:      target,
		Command:     command,
		Tags:        Tags{kind},
		Annotations: make(Annotations),
	}
}

// Blocked reports whether the call was refused.
func (e *Event) Blocked() bool {
	return e.Tags.Has(Block)
}

// Collector gathers events and audit records from concurrent calls.
type Collector struct {
	mu     sync.Mutex
	events []*Event
	audits map[string][]hooks.AuditRecord
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{audits: make(map[string][]hooks.AuditRecord)}
}

func auditKey(target, command string) string {
	return target + "\x00" + command
}

// Audit stores a record to be claimed by Add. It fits hooks.Config.OnAudit.
func (c *Collector) Audit(rec hooks.AuditRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := auditKey(rec.Target, rec.Command)
	c.audits[k] = append(c.audits[k], rec)
}

// Add records a finished call. A blocked call takes the oldest unclaimed
// audit record for the same target and command.
func (c *Collector) Add(e *Event, blocked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !blocked {
		e.Tags.Add(Allow)
		c.events = append(c.events, e)
		return
	}
	e.Tags.Add(Block)

	k := auditKey(e.Target, e.Command)
	if recs := c.audits[k]; len(recs) > 0 {
		rec := recs[0]
		c.audits[k] = recs[1:]
		e.Annotations.Set("incident", rec.ID.String())
		if rec.Keyword != "" {
			e.Annotations.Set("keyword", rec.Keyword)
		}
		if rec.Reason == hooks.ReasonOriginalMissing {
			e.Tags.Add(FailClosed)
		}
	}
	c.events = append(c.events, e)
}

// Events returns the recorded events in submission order.
func (c *Collector) Events() []*Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]*Event(nil), c.events...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].Target < out[j].Target
	})
	return out
}
