package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const ringSize = 60

// Collector tracks run statistics using lock-free atomic counters. The
// engine writes, presenters read.
type Collector struct {
	filesScanned      atomic.Int64
	filesEncoded      atomic.Int64
	filesDegraded     atomic.Int64
	filesWritten      atomic.Int64
	filesRenamed      atomic.Int64
	filesUnchanged    atomic.Int64
	filesSkipped      atomic.Int64
	filesFailed       atomic.Int64
	bytesProcessed    atomic.Int64
	bytesTotal        atomic.Int64
	filesTotal        atomic.Int64
	filesVerified     atomic.Int64
	filesVerifyFailed atomic.Int64
	ambiguousLines    atomic.Int64
	startTime         time.Time

	// Ring buffer, written only by the presenter's Tick.
	mu         sync.Mutex
	throughput [ringSize]int64 // bytes delta per tick
	ringIdx    int
	ringCount  int
	lastBytes  int64
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// SetTotals records scan totals.
func (c *Collector) SetTotals(files, bytes int64) {
	c.filesTotal.Store(files)
	c.bytesTotal.Store(bytes)
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesScanned      int64
	FilesEncoded      int64
	FilesDegraded     int64
	FilesWritten      int64
	FilesRenamed      int64
	FilesUnchanged    int64
	FilesSkipped      int64
	FilesFailed       int64
	BytesProcessed    int64
	BytesTotal        int64
	FilesTotal        int64
	FilesVerified     int64
	FilesVerifyFailed int64
	AmbiguousLines    int64
	Elapsed           time.Duration
}

func (c *Collector) AddFilesScanned(n int64)      { c.filesScanned.Add(n) }
func (c *Collector) AddFilesEncoded(n int64)      { c.filesEncoded.Add(n) }
func (c *Collector) AddFilesDegraded(n int64)     { c.filesDegraded.Add(n) }
func (c *Collector) AddFilesWritten(n int64)      { c.filesWritten.Add(n) }
func (c *Collector) AddFilesRenamed(n int64)      { c.filesRenamed.Add(n) }
func (c *Collector) AddFilesUnchanged(n int64)    { c.filesUnchanged.Add(n) }
func (c *Collector) AddFilesSkipped(n int64)      { c.filesSkipped.Add(n) }
func (c *Collector) AddFilesFailed(n int64)       { c.filesFailed.Add(n) }
func (c *Collector) AddBytesProcessed(n int64)    { c.bytesProcessed.Add(n) }
func (c *Collector) AddFilesVerified(n int64)     { c.filesVerified.Add(n) }
func (c *Collector) AddFilesVerifyFailed(n int64) { c.filesVerifyFailed.Add(n) }
func (c *Collector) AddAmbiguousLines(n int64)    { c.ambiguousLines.Add(n) }

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesScanned:      c.filesScanned.Load(),
		FilesEncoded:      c.filesEncoded.Load(),
		FilesDegraded:     c.filesDegraded.Load(),
		FilesWritten:      c.filesWritten.Load(),
		FilesRenamed:      c.filesRenamed.Load(),
		FilesUnchanged:    c.filesUnchanged.Load(),
		FilesSkipped:      c.filesSkipped.Load(),
		FilesFailed:       c.filesFailed.Load(),
		BytesProcessed:    c.bytesProcessed.Load(),
		BytesTotal:        c.bytesTotal.Load(),
		FilesTotal:        c.filesTotal.Load(),
		FilesVerified:     c.filesVerified.Load(),
		FilesVerifyFailed: c.filesVerifyFailed.Load(),
		AmbiguousLines:    c.ambiguousLines.Load(),
		Elapsed:           c.Elapsed(),
	}
}

// FilesDone is the number of files that reached a final state.
func (s Snapshot) FilesDone() int64 {
	return s.FilesEncoded + s.FilesDegraded + s.FilesWritten + s.FilesUnchanged +
		s.FilesSkipped + s.FilesFailed
}

// Tick records the byte delta since the previous Tick. Called once per
// second by presenters.
func (c *Collector) Tick() {
	current := c.bytesProcessed.Load()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.throughput[c.ringIdx] = current - c.lastBytes
	c.lastBytes = current
	c.ringIdx = (c.ringIdx + 1) % ringSize
	if c.ringCount < ringSize {
		c.ringCount++
	}
}

// RollingSpeed returns average bytes/sec over the last n samples.
func (c *Collector) RollingSpeed(seconds int) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := min(seconds, c.ringCount)
	if count <= 0 {
		return 0
	}
	var sum int64
	for i := range count {
		idx := (c.ringIdx - 1 - i + ringSize) % ringSize
		sum += c.throughput[idx]
	}
	return float64(sum) / float64(count)
}

// ETA estimates remaining time from the rolling speed and remaining bytes.
func (c *Collector) ETA() time.Duration {
	speed := c.RollingSpeed(10)
	if speed <= 0 {
		return 0
	}
	remaining := c.bytesTotal.Load() - c.bytesProcessed.Load()
	if remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining)/speed) * time.Second
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"scanned=%d encoded=%d degraded=%d written=%d renamed=%d unchanged=%d skipped=%d failed=%d bytes=%d",
		s.FilesScanned, s.FilesEncoded, s.FilesDegraded, s.FilesWritten,
		s.FilesRenamed, s.FilesUnchanged, s.FilesSkipped, s.FilesFailed,
		s.BytesProcessed,
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
