// Package statsfit finds the statistical distribution that best fits sample
// data.
//
// Candidate distributions are fitted to the data with closed form
// estimators, and ranked by the squared error between their probability
// density function and a histogram of the data.
package statsfit

import (
	"math"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution is a continuous probability distribution.
// All distributions in gonum.org/v1/gonum/stat/distuv satisfy it.
type Distribution interface {
	// Prob returns the value of the probability density function at x.
	Prob(x float64) float64
	// Quantile returns the inverse of the cumulative distribution function.
	Quantile(p float64) float64
}

// A Candidate fits a named distribution family to data.
// Fit returns an error when the family cannot describe the data, for example
// a log normal distribution on negative samples.
type Candidate struct {
	Name string
	Fit  func(data []float64) (Distribution, error)
}

// Candidates returns the default distribution families tried by BestFit.
func Candidates() []Candidate {
	return []Candidate{
		{Name: "Chi-Square", Fit: fitChiSquared},
		{Name: "Exponential", Fit: fitExponential},
		{Name: "Laplace", Fit: fitLaplace},
		{Name: "LogNorm", Fit: fitLogNormal},
		{Name: "Normal", Fit: fitNormal},
	}
}

// A Fit is a fitted distribution together with its goodness of fit.
type Fit struct {
	Name string
	Dist Distribution
	// SSE is the sum of squared errors between the distribution's density
	// and the data histogram.
	SSE float64
}

// BestFit fits every candidate to the data and returns the one whose
// probability density function stays closest to the data histogram over
// bins equal width bins.
// Candidates that fail to fit are skipped.
// If no candidate fits, the standard normal distribution is returned.
func BestFit(data []float64, cands []Candidate, bins int) (Fit, error) {
	if len(data) < 2 || bins < 1 {
		return Fit{}, errors.Errorf("%d %d", len(data), bins)
	}
	sorted := slices.Clone(data)
	slices.Sort(sorted)
	low, high := sorted[0], sorted[len(sorted)-1]
	if !(high > low) {
		return Fit{}, errors.Errorf("%f %f", low, high)
	}

	dividers := make([]float64, bins+1)
	floats.Span(dividers, low, high)
	// Keep the largest sample inside the last bin.
	dividers[bins] = math.Nextafter(high, math.Inf(1))
	counts := stat.Histogram(nil, dividers, sorted, nil)

	width := (high - low) / float64(bins)
	centers := make([]float64, bins)
	density := make([]float64, bins)
	for i, c := range counts {
		centers[i] = low + width*(float64(i)+0.5)
		density[i] = c / (float64(len(data)) * width)
	}

	best := Fit{Name: "Normal", Dist: distuv.Normal{Mu: 0, Sigma: 1}, SSE: math.Inf(1)}
	for _, cand := range cands {
		dist, err := cand.Fit(data)
		if err != nil {
			continue
		}
		var sse float64
		for i, x := range centers {
			d := density[i] - dist.Prob(x)
			sse += d * d
		}
		if best.SSE > sse && sse > 0 {
			best = Fit{Name: cand.Name, Dist: dist, SSE: sse}
		}
	}
	return best, nil
}

// MakePDF samples the probability density function of d on an even grid
// between its 1st and 99th percentile.
func MakePDF(d Distribution, size int) (xs, ys []float64) {
	xs = make([]float64, size)
	floats.Span(xs, d.Quantile(0.01), d.Quantile(0.99))
	ys = make([]float64, size)
	for i, x := range xs {
		ys[i] = d.Prob(x)
	}
	return xs, ys
}

func fitNormal(data []float64) (Distribution, error) {
	var normal distuv.Normal
	normal.Fit(data, nil)
	if !(normal.Sigma > 0) {
		return nil, errors.Errorf("%f", normal.Sigma)
	}
	return normal, nil
}

func fitLaplace(data []float64) (Distribution, error) {
	var laplace distuv.Laplace
	laplace.Fit(data, nil)
	if !(laplace.Scale > 0) {
		return nil, errors.Errorf("%f", laplace.Scale)
	}
	return laplace, nil
}

func fitExponential(data []float64) (Distribution, error) {
	if m := floats.Min(data); m < 0 {
		return nil, errors.Errorf("%f", m)
	}
	var expon distuv.Exponential
	expon.Fit(data, nil)
	if !(expon.Rate > 0) || math.IsInf(expon.Rate, 0) {
		return nil, errors.Errorf("%f", expon.Rate)
	}
	return expon, nil
}

// fitLogNormal estimates the parameters from the moments of the logarithms.
func fitLogNormal(data []float64) (Distribution, error) {
	logs := make([]float64, len(data))
	for i, x := range data {
		if x <= 0 {
			return nil, errors.Errorf("%d %f", i, x)
		}
		logs[i] = math.Log(x)
	}
	sigma := stat.StdDev(logs, nil)
	if !(sigma > 0) {
		return nil, errors.Errorf("%f", sigma)
	}
	return distuv.LogNormal{Mu: stat.Mean(logs, nil), Sigma: sigma}, nil
}

// fitChiSquared estimates the degrees of freedom by the sample mean.
func fitChiSquared(data []float64) (Distribution, error) {
	mean := stat.Mean(data, nil)
	if !(mean > 0) {
		return nil, errors.Errorf("%f", mean)
	}
	return distuv.ChiSquared{K: mean}, nil
}
