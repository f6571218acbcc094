package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpLane, 10*time.Millisecond)
	c.RecordTiming(OpLane, 30*time.Millisecond)

	snap := c.Snapshot()
	require.NotNil(t, snap.Lane)
	assert.Equal(t, int64(2), snap.Lane.Count)
	assert.Equal(t, int64(10), snap.Lane.MinTimeMs)
	assert.Equal(t, int64(30), snap.Lane.MaxTimeMs)
	assert.Equal(t, 20.0, snap.Lane.AvgTimeMs)
	assert.Nil(t, snap.Lane.TotalInputTokens, "timing-only ops carry no token stats")
	assert.Nil(t, snap.Reasoning)
}

func TestRecordLLMUsage(t *testing.T) {
	c := NewCollector()
	c.RecordLLMUsage(OpReasoning, 5*time.Millisecond, 100, 20)
	c.RecordLLMUsage(OpReasoning, 15*time.Millisecond, 50, 40)

	snap := c.Snapshot()
	require.NotNil(t, snap.Reasoning)
	assert.Equal(t, int64(150), *snap.Reasoning.TotalInputTokens)
	assert.Equal(t, int64(50), *snap.Reasoning.MinInputTokens)
	assert.Equal(t, int64(40), *snap.Reasoning.MaxOutputTokens)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.RecordTiming(OpLane, time.Millisecond)
	c.RecordLLMUsage(OpReasoning, time.Millisecond, 1, 1)
	assert.Empty(t, c.Snapshot().Rows())
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpStoreQuery, time.Millisecond)
		}()
	}
	wg.Wait()

	rows := c.Snapshot().Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, OpStoreQuery, rows[0].Op)
	assert.Equal(t, int64(50), rows[0].Stats.Count)
}

func TestRecordFailure(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpLane, 4*time.Millisecond)
	c.RecordFailure(OpLane)
	c.RecordFailure(OpEmbedding)

	snap := c.Snapshot()
	require.NotNil(t, snap.Lane)
	assert.Equal(t, int64(1), snap.Lane.Count)
	assert.Equal(t, int64(1), snap.Lane.Failures)

	require.NotNil(t, snap.Embedding, "an operation that only failed still shows up")
	assert.Equal(t, int64(0), snap.Embedding.Count)
	assert.Equal(t, 0.0, snap.Embedding.AvgTimeMs)
}

func TestZeroTokenUsageHidden(t *testing.T) {
	c := NewCollector()
	c.RecordLLMUsage(OpReasoning, time.Millisecond, 0, 0)

	snap := c.Snapshot()
	require.NotNil(t, snap.Reasoning)
	assert.Nil(t, snap.Reasoning.TotalInputTokens)
}

func TestRowsOrder(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpReasoning, time.Millisecond)
	c.RecordTiming(OpPipeline, time.Millisecond)
	c.RecordTiming(OpEmbedding, time.Millisecond)

	var ops []string
	for _, r := range c.Snapshot().Rows() {
		ops = append(ops, r.Op)
	}
	assert.Equal(t, []string{OpPipeline, OpEmbedding, OpReasoning}, ops)
}
