package allocator

import (
	"math"
	"math/rand"
)

// sampleBeta draws one sample from Beta(alpha, beta) via two
// independent Gamma draws, X ~ Gamma(alpha,1), Y ~ Gamma(beta,1),
// sample = X/(X+Y). No example repo in the pack imports a
// probability-distribution library (see DESIGN.md), so this is a
// direct, stdlib-only implementation rather than an unjustified new
// dependency for one call site.
func sampleBeta(alpha, beta float64, rng *rand.Rand) float64 {
	x := sampleGamma(alpha, rng)
	y := sampleGamma(beta, rng)
	if x+y == 0 {
		return 0
	}
	return x / (x + y)
}

// sampleGamma draws one sample from Gamma(shape, 1) using the
// Marsaglia-Tsang method for shape >= 1, boosted via the standard
// U^(1/shape) trick for shape < 1.
func sampleGamma(shape float64, rng *rand.Rand) float64 {
	if shape < 1 {
		u := rng.Float64()
		return sampleGamma(shape+1, rng) * math.Pow(u, 1/shape)
	}

	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)

	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		x2 := x * x
		if u < 1-0.0331*x2*x2 {
			return d * v
		}
		if math.Log(u) < 0.5*x2+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}
