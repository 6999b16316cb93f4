// Package monitoring records how long each stage of a run took and how many
// rows it produced.
package monitoring

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"
)

// StageMetrics is the record of one completed stage.
type StageMetrics struct {
	Stage    string        `json:"stage"`
	Rows     int           `json:"rows"`
	Duration time.Duration `json:"duration"`
}

// Collector accumulates stage records in completion order. It is safe for
// concurrent use. A nil *Collector records nothing.
type Collector struct {
	mu      sync.RWMutex
	metrics []StageMetrics
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{metrics: make([]StageMetrics, 0)}
}

// Record stores one stage.
func (c *Collector) Record(stage string, rows int, d time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.metrics = append(c.metrics, StageMetrics{Stage: stage, Rows: rows, Duration: d})
	c.mu.Unlock()
}

// Since records a stage that started at start.
func (c *Collector) Since(stage string, rows int, start time.Time) {
	c.Record(stage, rows, time.Since(start))
}

// Time runs fn and records its duration with the row count it reports.
// Failed stages are not recorded.
func (c *Collector) Time(stage string, fn func() (int, error)) error {
	start := time.Now()
	rows, err := fn()
	if err != nil {
		return err
	}
	c.Since(stage, rows, start)
	return nil
}

// Metrics returns a copy of the records.
func (c *Collector) Metrics() []StageMetrics {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]StageMetrics, len(c.metrics))
	copy(result, c.metrics)
	return result
}

// Clear removes all records.
func (c *Collector) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = c.metrics[:0]
}

// Summary aggregates the records.
func (c *Collector) Summary() Summary {
	metrics := c.Metrics()
	if len(metrics) == 0 {
		return Summary{}
	}

	s := Summary{
		Stages:      len(metrics),
		StageCounts: make(map[string]int),
	}
	for _, m := range metrics {
		s.TotalDuration += m.Duration
		s.StageCounts[m.Stage]++
		if m.Duration >= s.Slowest.Duration {
			s.Slowest = m
		}
	}
	s.FinalRows = metrics[len(metrics)-1].Rows
	return s
}

// Summary provides aggregate statistics over recorded stages.
type Summary struct {
	Stages        int            `json:"stages"`
	TotalDuration time.Duration  `json:"total_duration"`
	FinalRows     int            `json:"final_rows"`
	StageCounts   map[string]int `json:"stage_counts"`
	Slowest       StageMetrics   `json:"slowest"`
}

// WriteTable prints one line per stage followed by the total.
func (c *Collector) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "stage\trows\tduration\t")
	for _, m := range c.Metrics() {
		fmt.Fprintf(tw, "%s\t%d\t%s\t\n", m.Stage, m.Rows, m.Duration.Round(time.Microsecond))
	}
	s := c.Summary()
	fmt.Fprintf(tw, "total\t%d\t%s\t\n", s.FinalRows, s.TotalDuration.Round(time.Microsecond))
	return tw.Flush()
}
