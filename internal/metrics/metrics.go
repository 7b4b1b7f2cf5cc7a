// Package metrics collects session-establishment counters with Prometheus.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is what the link, verification and session layers report to.
type Recorder interface {
	RecordLink(kind string)
	RecordVerification(path, outcome, reason string, took time.Duration)
	RecordJoin(how string)
	RecordRestore(state string)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	links         *prometheus.CounterVec
	verifications *prometheus.CounterVec
	joins         *prometheus.CounterVec
	restores      *prometheus.CounterVec
	latency       prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		links: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careercoach_links_total",
			Help: "Inbound links by classification.",
		}, []string{"kind"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careercoach_verifications_total",
			Help: "Executed verification attempts by path and outcome.",
		}, []string{"path", "outcome", "reason"}),
		joins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careercoach_verification_joins_total",
			Help: "Verification entries served by another attempt's result.",
		}, []string{"how"}),
		restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "careercoach_restores_total",
			Help: "Cold-start session restores by resulting state.",
		}, []string{"state"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "careercoach_verification_seconds",
			Help:    "Duration of executed verification attempts.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(c.links, c.verifications, c.joins, c.restores, c.latency)
	return c
}

func (c *Collector) RecordLink(kind string) {
	c.links.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordVerification(path, outcome, reason string, took time.Duration) {
	c.verifications.WithLabelValues(path, outcome, reason).Inc()
	c.latency.Observe(took.Seconds())
}

// RecordJoin counts entries that reused a result: "cached" or "waited".
func (c *Collector) RecordJoin(how string) {
	c.joins.WithLabelValues(how).Inc()
}

func (c *Collector) RecordRestore(state string) {
	c.restores.WithLabelValues(state).Inc()
}

// Nop returns a Recorder that drops everything.
func Nop() Recorder { return nop{} }

type nop struct{}

func (nop) RecordLink(string)                                        {}
func (nop) RecordVerification(string, string, string, time.Duration) {}
func (nop) RecordJoin(string)                                        {}
func (nop) RecordRestore(string)                                     {}

// WriteCounters prints every counter sample of g as "name{labels} value",
// sorted, one per line.
func WriteCounters(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)

	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
