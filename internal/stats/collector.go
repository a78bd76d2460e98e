package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// StageTiming records how long one stage took.
type StageTiming struct {
	Step    int
	Label   string
	Elapsed time.Duration
}

// Collector tracks run statistics using lock-free atomic counters.
type Collector struct {
	stagesDone  atomic.Int64
	stagesTotal atomic.Int64
	filesCopied atomic.Int64
	bytesCopied atomic.Int64
	splitParts  atomic.Int64
	startTime   time.Time

	mu      sync.Mutex
	timings []StageTiming
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	StagesDone  int64
	StagesTotal int64
	FilesCopied int64
	BytesCopied int64
	SplitParts  int64
	Timings     []StageTiming
	Elapsed     time.Duration
}

func (c *Collector) SetStagesTotal(n int64) { c.stagesTotal.Store(n) }
func (c *Collector) AddFilesCopied(n int64) { c.filesCopied.Add(n) }
func (c *Collector) AddBytesCopied(n int64) { c.bytesCopied.Add(n) }
func (c *Collector) SetSplitParts(n int64)  { c.splitParts.Store(n) }

// StageDone records a finished stage and its duration.
func (c *Collector) StageDone(step int, label string, elapsed time.Duration) {
	c.stagesDone.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timings = append(c.timings, StageTiming{Step: step, Label: label, Elapsed: elapsed})
}

// Snapshot returns a consistent point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	timings := make([]StageTiming, len(c.timings))
	copy(timings, c.timings)
	c.mu.Unlock()

	return Snapshot{
		StagesDone:  c.stagesDone.Load(),
		StagesTotal: c.stagesTotal.Load(),
		FilesCopied: c.filesCopied.Load(),
		BytesCopied: c.bytesCopied.Load(),
		SplitParts:  c.splitParts.Load(),
		Timings:     timings,
		Elapsed:     c.Elapsed(),
	}
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"stages=%d/%d files=%d bytes=%d parts=%d",
		s.StagesDone, s.StagesTotal, s.FilesCopied, s.BytesCopied, s.SplitParts,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
