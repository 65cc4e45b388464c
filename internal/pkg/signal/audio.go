package signal

import (
	"math"
	"sort"
)

// MaxSNR caps the reported signal-to-noise ratio when the noise floor is zero.
const MaxSNR = 96.0

// RMS returns the root-mean-square energy of samples in [-1, 1].
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// SNR returns 20*log10(signal/noise) in dB, capped at MaxSNR.
func SNR(signalRMS, noiseRMS float64) float64 {
	if signalRMS <= 0 {
		return 0
	}
	if noiseRMS <= 0 {
		return MaxSNR
	}
	return math.Min(20*math.Log10(signalRMS/noiseRMS), MaxSNR)
}

// Percentile returns the p-th percentile (0-100) of values using linear
// interpolation. values is not modified.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
