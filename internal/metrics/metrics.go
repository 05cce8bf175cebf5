// Package metrics counts bind and decision events in-process.
//
// Counters live in a private prometheus registry. Nothing is exported over
// the network; callers read them back with Snapshot.
package metrics

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds the agent counters. A nil *Metrics discards everything.
type Metrics struct {
	reg        *prometheus.Registry
	binds      *prometheus.CounterVec
	decisions  *prometheus.CounterVec
	failClosed *prometheus.CounterVec
}

// New creates and registers the counters.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		binds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raspguard_binds_total",
				Help: "Native method bind events redirected to a trampoline.",
			},
			[]string{"target"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raspguard_decisions_total",
				Help: "Policy decisions by target and outcome.",
			},
			[]string{"target", "decision"},
		),
		failClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "raspguard_fail_closed_total",
				Help: "Calls blocked because the original entry was never captured.",
			},
			[]string{"target"},
		),
	}
	m.reg.MustRegister(m.binds, m.decisions, m.failClosed)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Bind counts a redirected bind event.
func (m *Metrics) Bind(target string) {
	if m == nil {
		return
	}
	m.binds.WithLabelValues(target).Inc()
}

// Decision counts a policy outcome.
func (m *Metrics) Decision(target, decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(target, decision).Inc()
}

// FailClosed counts a call blocked for lack of an original entry.
func (m *Metrics) FailClosed(target string) {
	if m == nil {
		return
	}
	m.failClosed.WithLabelValues(target).Inc()
}

// Sample is one counter value with its labels rendered as name{k="v",...}.
type Sample struct {
	Series string
	Value  float64
}

// Snapshot gathers all counters, sorted by series.
func (m *Metrics) Snapshot() ([]Sample, error) {
	if m == nil {
		return nil, nil
	}
	families, err := m.reg.Gather()
	if err != nil {
		return nil, err
	}
	var out []Sample
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			out = append(out, Sample{
				Series: series(mf.GetName(), metric.GetLabel()),
				Value:  metric.GetCounter().GetValue(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Series < out[j].Series })
	return out, nil
}

func series(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.GetName()+`="`+l.GetValue()+`"`)
	}
	return name + "{" + strings.Join(parts, ",") + "}"
}
