package sim

import "time"

// Collector is a Recorder that accumulates engine output in memory. It
// backs synchronous runs where no stream consumer exists. Not safe for
// concurrent reads while the engine is running.
type Collector struct {
	Snapshots   []Snapshot
	Decisions   []TradingDecision
	Progress    float64
	CurrentDate time.Time
}

func (c *Collector) Publish(Event) {}

func (c *Collector) SetProgress(progress float64, currentDate time.Time) {
	if progress > c.Progress {
		c.Progress = progress
	}
	c.CurrentDate = currentDate
}

func (c *Collector) RecordSnapshot(s Snapshot) {
	c.Snapshots = append(c.Snapshots, s)
}

func (c *Collector) RecordDecision(d TradingDecision) {
	c.Decisions = append(c.Decisions, d)
}
