package realtime

import (
	"math/rand"
	"time"
)

const defaultJitterPct = 25

// JitteredDelay spreads base by +/- jitterPct percent and caps the result.
func JitteredDelay(base, cap time.Duration, jitterPct int) time.Duration {
	if jitterPct <= 0 {
		jitterPct = defaultJitterPct
	}
	delta := (rand.Float64()*2 - 1) * float64(jitterPct) / 100.0
	wait := time.Duration(float64(base) * (1 + delta))
	if wait < 0 {
		wait = base
	}
	if wait > cap {
		wait = cap
	}
	return wait
}

// Backoff doubles from base up to cap. Reset after a successful connect.
type Backoff struct {
	base    time.Duration
	cap     time.Duration
	current time.Duration
}

func NewBackoff(base, cap time.Duration) *Backoff {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if cap < base {
		cap = base
	}
	return &Backoff{base: base, cap: cap, current: base}
}

func (b *Backoff) Next() time.Duration {
	wait := JitteredDelay(b.current, b.cap, defaultJitterPct)
	if b.current*2 < b.cap {
		b.current *= 2
	} else {
		b.current = b.cap
	}
	return wait
}

func (b *Backoff) Reset() {
	b.current = b.base
}
