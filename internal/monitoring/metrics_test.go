package monitoring

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Record(t *testing.T) {
	c := NewCollector()
	c.Record("join", 4, 2*time.Millisecond)
	c.Record("sort", 4, time.Millisecond)
	c.Record("reduce", 3, 3*time.Millisecond)

	metrics := c.Metrics()
	require.Len(t, metrics, 3)
	assert.Equal(t, StageMetrics{Stage: "join", Rows: 4, Duration: 2 * time.Millisecond}, metrics[0])

	// The copy is independent of the collector.
	metrics[0].Stage = "changed"
	assert.Equal(t, "join", c.Metrics()[0].Stage)

	summary := c.Summary()
	assert.Equal(t, 3, summary.Stages)
	assert.Equal(t, 6*time.Millisecond, summary.TotalDuration)
	assert.Equal(t, 3, summary.FinalRows)
	assert.Equal(t, "reduce", summary.Slowest.Stage)
	assert.Equal(t, map[string]int{"join": 1, "sort": 1, "reduce": 1}, summary.StageCounts)

	c.Clear()
	assert.Empty(t, c.Metrics())
	assert.Equal(t, Summary{}, c.Summary())
}

func TestCollector_Time(t *testing.T) {
	c := NewCollector()

	err := c.Time("load", func() (int, error) { return 7, nil })
	require.NoError(t, err)

	boom := errors.New("boom")
	err = c.Time("query", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	metrics := c.Metrics()
	require.Len(t, metrics, 1)
	assert.Equal(t, "load", metrics[0].Stage)
	assert.Equal(t, 7, metrics[0].Rows)
}

func TestCollector_Nil(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.Record("join", 1, time.Second)
		c.Clear()
	})
	assert.Nil(t, c.Metrics())
	assert.NoError(t, c.Time("load", func() (int, error) { return 1, nil }))
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record("load", 1, time.Microsecond)
		}()
	}
	wg.Wait()

	assert.Len(t, c.Metrics(), 10)
}

func TestCollector_WriteTable(t *testing.T) {
	c := NewCollector()
	c.Record("join", 4, time.Millisecond)
	c.Record("reduce", 3, time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, c.WriteTable(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "stage")
	assert.Contains(t, lines[1], "join")
	assert.Contains(t, lines[3], "total")
	assert.Contains(t, lines[3], "3")
}
