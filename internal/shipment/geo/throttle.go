package geo

import (
	"sync"
	"time"
)

// Throttle drops location samples that arrive too soon or moved too little since
// the last accepted sample for the same key.
type Throttle struct {
	minInterval time.Duration
	minDistance float64

	mu   sync.Mutex
	last map[string]sample
}

type sample struct {
	lat, lon float64
	at       time.Time
}

// NewThrottle builds a throttle. Zero values fall back to 5s and 10m.
func NewThrottle(minInterval time.Duration, minDistanceM float64) *Throttle {
	if minInterval <= 0 {
		minInterval = 5 * time.Second
	}
	if minDistanceM <= 0 {
		minDistanceM = 10
	}
	return &Throttle{minInterval: minInterval, minDistance: minDistanceM, last: make(map[string]sample)}
}

// Allow reports whether the sample should be forwarded and records it when it is.
// The first sample for a key always passes.
func (t *Throttle) Allow(key string, lat, lon float64, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.last[key]
	if ok {
		if at.Sub(prev.at) < t.minInterval {
			return false
		}
		if Haversine(prev.lat, prev.lon, lat, lon) < t.minDistance {
			return false
		}
	}
	t.last[key] = sample{lat: lat, lon: lon, at: at}
	return true
}

// Forget clears the state for key.
func (t *Throttle) Forget(key string) {
	t.mu.Lock()
	delete(t.last, key)
	t.mu.Unlock()
}
