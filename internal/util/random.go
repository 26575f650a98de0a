package util

import (
	"math/rand"
	"time"
)

// DurationBetween returns a uniformly distributed duration in [min, max).
// Used for the humanized reply delay bands. If max <= min, min is returned.
func DurationBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// PickString returns one element of items chosen uniformly at random.
// Returns the empty string for an empty slice.
func PickString(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[rand.Intn(len(items))]
}
