package graph

import (
	"math"
	"math/rand"
)

// springLayout computes a Fruchterman-Reingold force-directed layout for
// n nodes with the given symmetric weight matrix. The PRNG sequence is
// owned here and seeded explicitly, so identical topology yields
// identical positions on every run. Coordinates come back centered on
// the origin and scaled into [-1, 1].
func springLayout(n int, weights [][]float64, seed int64, iterations int) [][2]float64 {
	pos := make([][2]float64, n)
	if n == 0 {
		return pos
	}

	rng := rand.New(rand.NewSource(seed))
	for i := range pos {
		pos[i][0] = rng.Float64()
		pos[i][1] = rng.Float64()
	}
	if n == 1 {
		pos[0] = [2]float64{0, 0}
		return pos
	}

	// optimal pair distance for a unit-square domain
	k := math.Sqrt(1.0 / float64(n))

	// initial temperature is a tenth of the domain, cooled linearly so
	// movement settles by the final iteration
	t := 0.1
	dt := t / float64(iterations+1)

	disp := make([][2]float64, n)

	for iter := 0; iter < iterations; iter++ {
		for i := range disp {
			disp[i] = [2]float64{0, 0}
		}

		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				dx := pos[i][0] - pos[j][0]
				dy := pos[i][1] - pos[j][1]
				dist := math.Hypot(dx, dy)
				if dist < 0.01 {
					dist = 0.01
				}

				// repulsion between every pair, attraction along edges
				force := k*k/(dist*dist) - weights[i][j]*dist/k
				disp[i][0] += dx * force
				disp[i][1] += dy * force
			}
		}

		for i := 0; i < n; i++ {
			length := math.Hypot(disp[i][0], disp[i][1])
			if length < 0.01 {
				length = 0.01
			}
			pos[i][0] += disp[i][0] / length * t
			pos[i][1] += disp[i][1] / length * t
		}

		t -= dt
	}

	rescale(pos)
	return pos
}

// rescale centers positions on the origin and scales the largest
// coordinate magnitude to 1.
func rescale(pos [][2]float64) {
	n := len(pos)
	if n == 0 {
		return
	}

	var meanX, meanY float64
	for _, p := range pos {
		meanX += p[0]
		meanY += p[1]
	}
	meanX /= float64(n)
	meanY /= float64(n)

	maxAbs := 0.0
	for i := range pos {
		pos[i][0] -= meanX
		pos[i][1] -= meanY
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(pos[i][0]), math.Abs(pos[i][1])))
	}
	if maxAbs == 0 {
		return
	}
	for i := range pos {
		pos[i][0] /= maxAbs
		pos[i][1] /= maxAbs
	}
}
