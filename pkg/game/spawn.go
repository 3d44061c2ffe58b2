package game

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

// SpawnPoint samples a uniform position on the play disc. The radius is
// √-distributed: sampling r = R·√u spreads points evenly over the disc's
// area instead of clustering them near the center.
func SpawnPoint(rng *rand.Rand, radius, height float64) mgl64.Vec3 {
	r := radius * math.Sqrt(rng.Float64())
	theta := 2 * math.Pi * rng.Float64()
	return mgl64.Vec3{r * math.Cos(theta), height, r * math.Sin(theta)}
}
