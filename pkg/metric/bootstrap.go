package metric

import (
	"math/rand"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// BootstrapInterval represents the confidence interval calculated by the bootstrap method.
type BootstrapInterval struct {
	Lower  float64 // Lower bound of the confidence interval
	Upper  float64 // Upper bound of the confidence interval
	StdDev float64 // Standard deviation of the bootstrap samples
	Mean   float64 // Mean of the bootstrap samples
}

// DefaultBootstrapSeed seeds Bootstrap when no random source is given
const DefaultBootstrapSeed = 1

// Bootstrap estimates a confidence interval for measure(values) by resampling with
// replacement sampleSize times. confidence is e.g. 0.95. Resampling draws from rng,
// or from a source seeded with DefaultBootstrapSeed when rng is nil, so equal
// inputs give equal intervals.
func Bootstrap(rng *rand.Rand, values []float64, measure func([]float64) float64, sampleSize int,
	confidence float64) BootstrapInterval {

	if len(values) == 0 || sampleSize <= 0 {
		return BootstrapInterval{}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(DefaultBootstrapSeed))
	}

	data := make([]float64, 0, sampleSize)
	for i := 0; i < sampleSize; i++ {
		samples := lo.Times(len(values), func(int) float64 {
			return values[rng.Intn(len(values))]
		})
		data = append(data, measure(samples))
	}

	tail := 1 - confidence
	sort.Float64s(data)

	mean, stdDev := stat.MeanStdDev(data, nil)
	if sampleSize == 1 {
		stdDev = 0
	}

	return BootstrapInterval{
		Lower:  stat.Quantile(tail/2, stat.LinInterp, data, nil),
		Upper:  stat.Quantile(1-tail/2, stat.LinInterp, data, nil),
		StdDev: stdDev,
		Mean:   mean,
	}
}
