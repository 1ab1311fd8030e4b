// Package stats tracks per-session counters. All methods are safe for
// concurrent use; the session loop and the report writer run on
// different goroutines.
package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Counters accumulates what a run did. Zero value is ready to use.
type Counters struct {
	scanned     atomic.Int64
	qualified   atomic.Int64
	unqualified atomic.Int64
	skipped     atomic.Int64
	sold        atomic.Int64
	favorited   atomic.Int64
	unfavorited atomic.Int64

	startNanos atomic.Int64
}

// Snapshot is a point-in-time copy for reporting.
type Snapshot struct {
	Scanned     int64
	Qualified   int64
	Unqualified int64
	Skipped     int64
	Sold        int64
	Favorited   int64
	Unfavorited int64
	Elapsed     time.Duration
}

func (c *Counters) Start()          { c.startNanos.Store(time.Now().UnixNano()) }
func (c *Counters) AddScanned()     { c.scanned.Add(1) }
func (c *Counters) AddQualified()   { c.qualified.Add(1) }
func (c *Counters) AddUnqualified() { c.unqualified.Add(1) }
func (c *Counters) AddSkipped()     { c.skipped.Add(1) }
func (c *Counters) AddSold(n int64) { c.sold.Add(n) }
func (c *Counters) AddFavorited()   { c.favorited.Add(1) }
func (c *Counters) AddUnfavorited() { c.unfavorited.Add(1) }

func (c *Counters) Snapshot() Snapshot {
	var elapsed time.Duration
	if start := c.startNanos.Load(); start != 0 {
		elapsed = time.Since(time.Unix(0, start))
	}
	return Snapshot{
		Scanned:     c.scanned.Load(),
		Qualified:   c.qualified.Load(),
		Unqualified: c.unqualified.Load(),
		Skipped:     c.skipped.Load(),
		Sold:        c.sold.Load(),
		Favorited:   c.favorited.Load(),
		Unfavorited: c.unfavorited.Load(),
		Elapsed:     elapsed,
	}
}

// Reset zeroes every counter for a fresh run.
func (c *Counters) Reset() {
	c.scanned.Store(0)
	c.qualified.Store(0)
	c.unqualified.Store(0)
	c.skipped.Store(0)
	c.sold.Store(0)
	c.favorited.Store(0)
	c.unfavorited.Store(0)
	c.startNanos.Store(0)
}

// Report renders the human-readable summary placed on the clipboard
// and logged at session end.
func (s Snapshot) Report() string {
	return fmt.Sprintf(
		"本次整理结果\n"+
			"扫描: %d  合格: %d  不合格: %d  跳过: %d\n"+
			"出售: %d  收藏: %d  取消收藏: %d\n"+
			"用时: %s",
		s.Scanned, s.Qualified, s.Unqualified, s.Skipped,
		s.Sold, s.Favorited, s.Unfavorited,
		s.Elapsed.Round(time.Second),
	)
}
