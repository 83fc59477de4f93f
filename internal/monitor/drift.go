package monitor

import "math"

const (
	// psiEpsilon floors histogram bins so empty bins do not blow up the
	// log-ratio.
	psiEpsilon = 1e-4

	// psiFullScale is the PSI value mapped to a drift score of 1.0. PSI
	// above 0.25 is conventionally read as a major population shift, so
	// 0.5 leaves headroom before the score saturates.
	psiFullScale = 0.5
)

// psi computes the population stability index between two normalized
// histograms over the same bin edges.
func psi(expected, observed []float64) float64 {
	if len(expected) == 0 || len(expected) != len(observed) {
		return 0
	}
	var sum float64
	for i := range expected {
		p := expected[i]
		q := observed[i]
		if p < psiEpsilon {
			p = psiEpsilon
		}
		if q < psiEpsilon {
			q = psiEpsilon
		}
		sum += (q - p) * math.Log(q/p)
	}
	return sum
}

// psiScore maps a raw PSI onto [0,1].
func psiScore(expected, observed []float64) float64 {
	s := psi(expected, observed) / psiFullScale
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
