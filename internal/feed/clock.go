// Package feed assembles the produce activity feed with a TTL cache in
// front of the analytics computation.
package feed

import "time"

// Clock abstracts time for cache expiry and feed-window pruning so tests
// can control both.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// NewSystemClock returns a Clock backed by the wall clock.
func NewSystemClock() Clock {
	return systemClock{}
}
