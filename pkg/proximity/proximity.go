// Package proximity turns distances into admission decisions.
// Everything here is pure and stateless.
package proximity

import (
	"math"

	"github.com/korobochka/social/pkg/api"
)

// Distance is the Euclidean distance between two locations,
// the sole metric of the system.
func Distance(a, b api.Vector) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }

// Closeness maps a distance onto [0,1]: 1 at minDistance and nearer,
// 0 at maxDistance and farther, linear in between.
func Closeness(distance, minDistance, maxDistance float64) float64 {
	switch {
	case distance >= maxDistance:
		return 0
	case distance <= minDistance:
		return 1
	default:
		return 1.0 - (distance-minDistance)/(maxDistance-minDistance)
	}
}

// ShouldConnect decides whether two participants at the given distance
// should have a live transport. The connectionDistance is expected to
// be at least maxDistance, so that every pair with nonzero closeness
// is connection-eligible.
func ShouldConnect(distance, connectionDistance float64) bool {
	return distance < connectionDistance
}
