package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	const goroutines = 50
	const opsPerGoroutine = 200

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := range goroutines {
		go func() {
			defer wg.Done()
			for range opsPerGoroutine {
				c.AddFilesCopied(1)
				c.AddBytesCopied(512)
			}
			c.StageDone(i, "stage", time.Millisecond)
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	expected := int64(goroutines * opsPerGoroutine)
	assert.Equal(t, expected, s.FilesCopied)
	assert.Equal(t, expected*512, s.BytesCopied)
	assert.Equal(t, int64(goroutines), s.StagesDone)
	assert.Len(t, s.Timings, goroutines)
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{
		StagesDone:  12,
		StagesTotal: 12,
		FilesCopied: 840,
		BytesCopied: 4096,
		SplitParts:  2,
	}
	assert.Equal(t, "stages=12/12 files=840 bytes=4096 parts=2", s.String())
}

func TestSnapshotTimingsAreCopied(t *testing.T) {
	c := NewCollector()
	c.StageDone(1, "Validate", 2*time.Second)

	s := c.Snapshot()
	require.Len(t, s.Timings, 1)
	s.Timings[0].Label = "mutated"

	assert.Equal(t, "Validate", c.Snapshot().Timings[0].Label)
}

func TestSetters(t *testing.T) {
	c := NewCollector()
	c.SetStagesTotal(12)
	c.SetSplitParts(3)
	c.SetSplitParts(2)

	s := c.Snapshot()
	assert.Equal(t, int64(12), s.StagesTotal)
	assert.Equal(t, int64(2), s.SplitParts)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, FormatBytes(tt.input))
		})
	}
}

func TestSnapshotIncludesElapsed(t *testing.T) {
	c := NewCollector()
	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, c.Snapshot().Elapsed, 10*time.Millisecond)
}
