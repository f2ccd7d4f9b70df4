// Package reconstruct implements the nonconvex phase synchronization method.
//
// Given noisy measurements of pairwise phase differences collected in the
// Hermitian matrix C[i][j] = exp(i(φi − φj)), the absolute phases φi are
// recovered up to a global offset, either by rounding the leading eigenvector
// of C, or by iterating a generalized power method on a regularized variant
// of C.
//
// References:
//   - Nonconvex phase synchronization, Nicolas Boumal, SIAM Journal on Optimization, 26(4), 2016
package reconstruct

import (
	"fmt"
	"log"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"

	"github.com/fumin/phasesync/mat"
)

const (
	// maxIterations is the hard cap on power method iterations.
	maxIterations = 40000
	// defaultMargin is the default convergence margin.
	defaultMargin = 1e-7

	// Hermitian check tolerances, following numpy allclose.
	hermRtol = 1e-5
	hermAtol = 1e-8
)

// ErrNotHermitian is returned when a measurement matrix does not equal its
// conjugate transpose.
var ErrNotHermitian = errors.New("reconstruct: matrix is not hermitian")

// Options are options for the reconstruction methods.
type Options struct {
	margin        float64
	maxIterations int
	src           rand.Source
}

// NewOptions returns the default reconstruction options.
func NewOptions() Options {
	opt := Options{}
	opt.margin = defaultMargin
	opt.maxIterations = maxIterations
	return opt
}

// Margin sets the convergence margin of the generalized power method.
func (opt Options) Margin(m float64) Options {
	opt.margin = m
	return opt
}

// MaxIterations sets the iteration cap of the generalized power method.
func (opt Options) MaxIterations(i int) Options {
	opt.maxIterations = i
	return opt
}

// Source sets the random source of the zero division fallback.
func (opt Options) Source(src rand.Source) Options {
	opt.src = src
	return opt
}

// A Reconstructor recovers absolute phases from a Hermitian matrix of
// pairwise phase difference measurements.
// A Reconstructor is immutable after construction, and is safe for concurrent
// use.
type Reconstructor struct {
	c     *mat.Dense
	vvs   []mat.ValVec
	alpha float64
	ct    *mat.Dense
}

// New creates a Reconstructor from the N by N measurement matrix
// C[i][j] = exp(i(φi − φj)).
// The matrix must be Hermitian, and its eigendecomposition is computed
// eagerly at construction.
func New(c *mat.Dense) (*Reconstructor, error) {
	if !c.IsHermitian(hermRtol, hermAtol) {
		return nil, errors.Wrap(ErrNotHermitian, fmt.Sprintf("%d %d", c.Rows(), c.Cols()))
	}

	r := &Reconstructor{c: c}
	r.vvs = c.Eigen()
	r.alpha = math.Max(0, r.vvs[0].Val)
	r.ct = c.Clone()
	r.ct.Add(complex(r.alpha, 0), mat.Identity(c.Rows()))
	return r, nil
}

// Matrix returns the measurement matrix.
func (r *Reconstructor) Matrix() *mat.Dense { return r.c }

// Eigen returns the eigendecomposition of the measurement matrix in ascending
// eigenvalue order.
func (r *Reconstructor) Eigen() []mat.ValVec { return r.vvs }

// Alpha is the regularization scalar max(0, λmin), where λmin is the smallest
// eigenvalue of the measurement matrix.
func (r *Reconstructor) Alpha() float64 { return r.alpha }

// ReconstructorMatrix returns C + Alpha*I, the positive semidefinite operator
// iterated by the generalized power method.
func (r *Reconstructor) ReconstructorMatrix() *mat.Dense { return r.ct }

// LeadingEigenvector returns the eigenvector whose eigenvalue has the largest
// absolute value. Ties keep the smallest eigenvalue.
func (r *Reconstructor) LeadingEigenvector() []complex128 {
	leading := r.vvs[0]
	maxAbs := math.Abs(leading.Val)
	for _, vv := range r.vvs[1:] {
		if abs := math.Abs(vv.Val); abs > maxAbs {
			leading, maxAbs = vv, abs
		}
	}
	return leading.Vec
}

// EVM reconstructs phases with the one-shot eigenvector method, which rounds
// the leading eigenvector of the measurement matrix to unit modulus.
func (r *Reconstructor) EVM(options ...Options) []complex128 {
	return EigenvectorEstimator(r.LeadingEigenvector(), options...)
}

// A Result is the outcome of an iterative reconstruction.
type Result struct {
	// Phases is the final phase estimate.
	Phases []complex128
	// Iterations is the number of applications of the reconstructor matrix.
	Iterations int
	// Converged reports whether the convergence test passed before the
	// iteration cap.
	Converged bool
}

// GPM reconstructs phases with the generalized power method.
// Starting from the eigenvector method estimate, the reconstructor matrix is
// applied repeatedly until the convergence test passes or the iteration cap
// is reached. The last estimate is returned in either case, with
// Result.Converged telling the two apart.
//
// After an application, the product is normalized by its overall 2-norm
// instead of being reprojected to unit modulus componentwise. Components that
// become infinite due to zero division keep their previous value.
func (r *Reconstructor) GPM(options ...Options) Result {
	opt := NewOptions()
	if len(options) > 0 {
		opt = options[0]
	}

	x := EigenvectorEstimator(r.LeadingEigenvector(), opt)
	res := Result{Phases: x}
	tt := newSkipThrottler(15 * time.Second)
	for i := 0; i < opt.maxIterations; i++ {
		res.Iterations = i + 1
		y := r.ct.MulVec(x)
		ratio := rayleighRatio(x, y)
		if ratio >= 1-opt.margin {
			res.Converged = true
			break
		}
		if tt.ok() {
			log.Printf("iteration %d, ratio %f", i, ratio)
		}

		norm := complex(mat.Norm2(y), 0)
		next := make([]complex128, len(y))
		for j, yv := range y {
			next[j] = yv / norm
			if cmplx.IsInf(next[j]) {
				next[j] = x[j]
			}
		}
		x = next
		res.Phases = x
	}
	return res
}

// AssessConvergence reports whether estimate is within margin of a fixed
// point of the reconstructor matrix.
func (r *Reconstructor) AssessConvergence(estimate []complex128, margin float64) bool {
	y := r.ct.MulVec(estimate)
	return rayleighRatio(estimate, y) >= 1-margin
}

// rayleighRatio measures how close x is to a fixed point, given y = C̃x.
// The ratio |x*·y| / ‖y‖₁ is at most 1 for unit modulus x, with equality
// exactly when every component of y has the phase of the corresponding
// component of x.
func rayleighRatio(x, y []complex128) float64 {
	return cmplx.Abs(mat.Vdot(x, y)) / mat.Norm1(y)
}

// EigenvectorEstimator projects v onto the set of vectors whose every
// component has unit modulus.
// If any component of v is exactly zero, its projection is undefined. In that
// case the projection of a random standard normal complex vector whose inner
// product with v is nonzero is returned instead.
func EigenvectorEstimator(v []complex128, options ...Options) []complex128 {
	opt := NewOptions()
	if len(options) > 0 {
		opt = options[0]
	}

	degenerate := false
	for _, c := range v {
		if c == 0 {
			degenerate = true
			break
		}
	}
	if !degenerate {
		return project(v)
	}

	normFloat64 := rand.NormFloat64
	if opt.src != nil {
		rng := rand.New(opt.src)
		normFloat64 = rng.NormFloat64
	}
	for {
		w := make([]complex128, len(v))
		nonzero := true
		for i := range w {
			w[i] = complex(normFloat64(), normFloat64())
			if w[i] == 0 {
				nonzero = false
			}
		}
		if !nonzero {
			continue
		}
		w = project(w)
		if mat.Vdot(w, v) != 0 {
			return w
		}
	}
}

func project(v []complex128) []complex128 {
	p := make([]complex128, len(v))
	for i, c := range v {
		p[i] = c / complex(cmplx.Abs(c), 0)
	}
	return p
}

// PhaseValues converts complex phase estimates to their principal arguments.
// Values are in radians, or in degrees if deg is true.
func PhaseValues(z []complex128, deg bool) []float64 {
	vals := make([]float64, len(z))
	for i, c := range z {
		vals[i] = cmplx.Phase(c)
		if deg {
			vals[i] *= 180 / math.Pi
		}
	}
	return vals
}

// A skipThrottler rate limits progress logging in long iterations.
type skipThrottler struct {
	d    time.Duration
	last time.Time
}

func newSkipThrottler(d time.Duration) *skipThrottler {
	return &skipThrottler{d: d, last: time.Now()}
}

func (tt *skipThrottler) ok() bool {
	now := time.Now()
	if now.Before(tt.last.Add(tt.d)) {
		return false
	}

	tt.last = time.Now()
	return true
}
