package ledger

import (
	"sync/atomic"
	"time"
)

// Clock supplies the ledger's notion of current time in Unix seconds.
type Clock interface {
	Now() int64
}

type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().Unix() }

// ManualClock is a Clock tests move by hand.
type ManualClock struct {
	t atomic.Int64
}

func NewManualClock(unix int64) *ManualClock {
	c := &ManualClock{}
	c.t.Store(unix)
	return c
}

func (c *ManualClock) Now() int64         { return c.t.Load() }
func (c *ManualClock) Set(unix int64)     { c.t.Store(unix) }
func (c *ManualClock) Advance(secs int64) { c.t.Add(secs) }
