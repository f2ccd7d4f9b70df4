package phasesync

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/fumin/phasesync/mat"
)

// LinspacePhases returns n evenly spaced phases from low to high.
// The first phase is zero, serving as the reference sensor.
func LinspacePhases(low, high float64, n int) []float64 {
	phis := make([]float64, n)
	floats.Span(phis, low, high)
	phis[0] = 0
	return phis
}

// UniformPhases returns n sorted phases drawn uniformly from [low, high).
// The first phase is zero, serving as the reference sensor.
func UniformPhases(low, high float64, n int, src rand.Source) []float64 {
	uniform := distuv.Uniform{Min: low, Max: high, Src: src}
	phis := make([]float64, n)
	for i := range phis {
		phis[i] = uniform.Rand()
	}
	slices.Sort(phis)
	phis[0] = 0
	return phis
}

// DeltaMatrix returns the pairwise phase differences
// m[i][j] = values[i] - values[j].
func DeltaMatrix(values []float64) [][]float64 {
	m := make([][]float64, len(values))
	for i := range m {
		m[i] = make([]float64, len(values))
		for j := range m[i] {
			m[i][j] = values[i] - values[j]
		}
	}
	return m
}

// AntisymmetricNoise returns an n by n matrix whose upper triangle holds
// gaussian draws and whose lower triangle holds their negation.
// Adding it to a pairwise difference matrix keeps the hermitian structure of
// the resulting measurement matrix.
func AntisymmetricNoise(mean, stdev float64, n int, src rand.Source) [][]float64 {
	normal := distuv.Normal{Mu: mean, Sigma: stdev, Src: src}
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := normal.Rand()
			m[i][j] = v
			m[j][i] = -v
		}
	}
	return m
}

// Add returns the element-wise sum of a and b.
func Add(a, b [][]float64) [][]float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("%d %d", len(a), len(b)))
	}
	m := make([][]float64, len(a))
	for i := range m {
		if len(a[i]) != len(b[i]) {
			panic(fmt.Sprintf("%d %d %d", i, len(a[i]), len(b[i])))
		}
		m[i] = make([]float64, len(a[i]))
		for j := range m[i] {
			m[i][j] = a[i][j] + b[i][j]
		}
	}
	return m
}

// SyncMatrix returns the measurement matrix C[i][j] = exp(i*m[i][j]), where
// m holds pairwise phase differences.
// If deg is true, the differences are in degrees.
func SyncMatrix(m [][]float64, deg bool) *mat.Dense {
	n := len(m)
	c := mat.Zeros(n, n)
	for i := 0; i < n; i++ {
		if len(m[i]) != n {
			panic(fmt.Sprintf("%d %d %d", i, len(m[i]), n))
		}
		for j := 0; j < n; j++ {
			d := m[i][j]
			if deg {
				d *= math.Pi / 180
			}
			c.Set(i, j, cmplx.Exp(complex(0, d)))
		}
	}
	return c
}

// AlignPhases references phases to the phase at index ref, wrapping the
// differences around the period.
// Reconstructed phases are determined up to a global rotation only, so both
// the true and the reconstructed signal must be aligned before comparison.
func AlignPhases(phases []float64, ref int, deg bool) []float64 {
	period := 2 * math.Pi
	if deg {
		period = 360
	}
	aligned := make([]float64, len(phases))
	for i, p := range phases {
		d := p - phases[ref]
		for d <= -period/2 {
			d += period
		}
		for d > period/2 {
			d -= period
		}
		aligned[i] = d
	}
	return aligned
}

type Statistics struct {
	MeanAbsErr float64
	MaxAbsErr  float64
	RMSErr     float64
}

// GetStatistics compares a reconstructed signal against the true signal.
// Both signals must be aligned to the same reference sensor.
func GetStatistics(signal, reconstructed []float64) (Statistics, error) {
	if len(signal) != len(reconstructed) || len(signal) == 0 {
		return Statistics{}, errors.Errorf("%d %d", len(signal), len(reconstructed))
	}
	errs := make([]float64, len(signal))
	for i, s := range signal {
		errs[i] = math.Abs(reconstructed[i] - s)
	}

	var stats Statistics
	stats.MeanAbsErr = stat.Mean(errs, nil)
	stats.MaxAbsErr = floats.Max(errs)
	stats.RMSErr = floats.Norm(errs, 2) / math.Sqrt(float64(len(errs)))
	return stats, nil
}

// Magnitude returns the power of ten n that reduces v to the form x*10^n
// with 1 <= |x| < 10.
func Magnitude(v float64) int {
	return int(math.Floor(math.Log10(math.Abs(v))))
}

// ScaleToMagnitude scales values down by the magnitude of their largest
// element, and returns the scaled values together with the applied power of
// ten for use in plot labels.
func ScaleToMagnitude(values []float64) ([]float64, string) {
	applied := -Magnitude(floats.Max(values))
	scaled := make([]float64, len(values))
	for i, v := range values {
		scaled[i] = v * math.Pow(10, float64(applied))
	}
	return scaled, fmt.Sprintf("1e%d", applied)
}
