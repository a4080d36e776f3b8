package arima

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// KPSSResult is the outcome of a level-stationarity KPSS test.
type KPSSResult struct {
	Statistic float64
	Lags      int
	Critical  float64 // critical value at the requested significance level
	// Stationary is true when the null hypothesis of level stationarity is not rejected.
	Stationary bool
}

// KPSS 臨界値 (定数項のみ, Kwiatkowski et al. 1992 Table 1)
var kpssCritical = []struct {
	alpha float64
	value float64
}{
	{0.10, 0.347},
	{0.05, 0.463},
	{0.025, 0.574},
	{0.01, 0.739},
}

// minKPSSObs is the shortest series the test is run on.
const minKPSSObs = 3

func kpssCriticalValue(alpha float64) float64 {
	for _, c := range kpssCritical {
		if alpha >= c.alpha {
			return c.value
		}
	}
	return kpssCritical[len(kpssCritical)-1].value
}

// KPSS runs the Kwiatkowski-Phillips-Schmidt-Shin test with a constant
// (level stationarity). The long-run variance uses Bartlett weights with the
// short lag rule trunc(4*(n/100)^0.25). It returns nil for series shorter
// than three observations.
func KPSS(x []float64, alpha float64) *KPSSResult {
	n := len(x)
	if n < minKPSSObs {
		return nil
	}
	lags := int(4 * math.Pow(float64(n)/100, 0.25))
	if lags > n-1 {
		lags = n - 1
	}

	mean := stat.Mean(x, nil)
	resid := make([]float64, n)
	for i, v := range x {
		resid[i] = v - mean
	}

	cum := make([]float64, n)
	floats.CumSum(cum, resid)
	eta := floats.Dot(cum, cum)

	s2 := floats.Dot(resid, resid) / float64(n)
	for l := 1; l <= lags; l++ {
		cov := floats.Dot(resid[l:], resid[:n-l]) / float64(n)
		s2 += 2 * (1 - float64(l)/float64(lags+1)) * cov
	}
	if s2 <= 0 {
		s2 = minVariance
	}

	statistic := eta / (float64(n) * float64(n) * s2)
	critical := kpssCriticalValue(alpha)
	return &KPSSResult{
		Statistic:  statistic,
		Lags:       lags,
		Critical:   critical,
		Stationary: statistic < critical,
	}
}

// NDiffs returns the number of differences (at most maxD) needed before the
// KPSS test stops rejecting stationarity. Differencing stops early when the
// series would become too short to test.
func NDiffs(x []float64, alpha float64, maxD int) int {
	cur := x
	for d := 0; d < maxD; d++ {
		res := KPSS(cur, alpha)
		if res == nil || res.Stationary {
			return d
		}
		next := diff(cur)
		if len(next) < minKPSSObs {
			return d
		}
		cur = next
	}
	return maxD
}

func diff(x []float64) []float64 {
	if len(x) < 2 {
		return nil
	}
	out := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		out[i-1] = x[i] - x[i-1]
	}
	return out
}
