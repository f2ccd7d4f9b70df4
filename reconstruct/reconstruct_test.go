package reconstruct

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/fumin/phasesync/mat"
)

func TestNew(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		m    *mat.Dense
		ok   bool
	}{
		{
			name: "hermitian",
			m: mat.M([][]complex128{
				{1, 0.5 + 0.25i, -2i},
				{0.5 - 0.25i, -3, 1 + 1i},
				{2i, 1 - 1i, 0},
			}),
			ok: true,
		},
		{
			name: "identity",
			m:    mat.Identity(4),
			ok:   true,
		},
		{
			name: "sum with own conjugate transpose",
			m: sumConjTranspose(mat.M([][]complex128{
				{0.9 - 0.2i, 1.4 + 0.6i, -0.7 + 1.1i},
				{-1.3 + 0.5i, 0.2 + 0.8i, 1.9 - 0.4i},
				{0.6 + 1.2i, -0.5 - 0.9i, 1.1 + 0.3i},
			})),
			ok: true,
		},
		{
			name: "not hermitian",
			m: mat.M([][]complex128{
				{1, 2 + 1i},
				{2 + 1i, 1},
			}),
			ok: false,
		},
		{
			name: "not square",
			m:    mat.Zeros(2, 10),
			ok:   false,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			r, err := New(test.m)
			if !test.ok {
				if !errors.Is(err, ErrNotHermitian) {
					t.Fatalf("%+v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if len(r.Eigen()) != test.m.Rows() {
				t.Fatalf("%d %d", len(r.Eigen()), test.m.Rows())
			}
		})
	}
}

func TestAlpha(t *testing.T) {
	t.Parallel()
	tests := []struct {
		m     *mat.Dense
		alpha float64
	}{
		// All eigenvalues positive.
		{
			m: mat.M([][]complex128{
				{2, 0},
				{0, 5},
			}),
			alpha: 2,
		},
		// Smallest eigenvalue negative.
		{
			m: mat.M([][]complex128{
				{-3, 0, 0},
				{0, 1, 0},
				{0, 0, 4},
			}),
			alpha: 0,
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.m), func(t *testing.T) {
			t.Parallel()
			r, err := New(test.m)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if math.Abs(r.Alpha()-test.alpha) > 1e-12 {
				t.Fatalf("%f, expected %f", r.Alpha(), test.alpha)
			}

			// The reconstructor matrix is C + Alpha*I.
			ct := r.ReconstructorMatrix()
			for i := 0; i < test.m.Rows(); i++ {
				for j := 0; j < test.m.Cols(); j++ {
					want := test.m.At(i, j)
					if i == j {
						want += complex(test.alpha, 0)
					}
					if cmplx.Abs(ct.At(i, j)-want) > 1e-12 {
						t.Fatalf("%d %d %v %v", i, j, ct.At(i, j), want)
					}
				}
			}
		})
	}
}

func TestLeadingEigenvector(t *testing.T) {
	t.Parallel()
	tests := []struct {
		m *mat.Dense
		// leadIdx is the component with unit modulus.
		leadIdx int
	}{
		{
			m: mat.M([][]complex128{
				{-5, 0, 0},
				{0, 1, 0},
				{0, 0, 2},
			}),
			leadIdx: 0,
		},
		{
			m: mat.M([][]complex128{
				{1, 0, 0},
				{0, -2, 0},
				{0, 0, 3},
			}),
			leadIdx: 2,
		},
		// On ties in absolute value, the smallest eigenvalue is kept.
		{
			m: mat.M([][]complex128{
				{-2, 0},
				{0, 2},
			}),
			leadIdx: 0,
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s", test.m), func(t *testing.T) {
			t.Parallel()
			r, err := New(test.m)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			v := r.LeadingEigenvector()
			for i, c := range v {
				want := 0.0
				if i == test.leadIdx {
					want = 1
				}
				if math.Abs(cmplx.Abs(c)-want) > 1e-9 {
					t.Fatalf("%d %v %f", i, c, want)
				}
			}
		})
	}
}

func TestEigenvectorEstimator(t *testing.T) {
	t.Parallel()
	v := []complex128{1 + 1i, -2, 3i, -0.5 - 0.25i}
	est := EigenvectorEstimator(v)
	for i, c := range est {
		if math.Abs(cmplx.Abs(c)-1) > 1e-12 {
			t.Fatalf("%d %v", i, c)
		}
		want := v[i] / complex(cmplx.Abs(v[i]), 0)
		if cmplx.Abs(c-want) > 1e-12 {
			t.Fatalf("%d %v %v", i, c, want)
		}
	}
}

func TestEigenvectorEstimatorZero(t *testing.T) {
	t.Parallel()
	v := []complex128{0, 1 + 1i, 2}

	est := EigenvectorEstimator(v, NewOptions().Source(rand.NewPCG(42, 0)))
	if len(est) != len(v) {
		t.Fatalf("%d %d", len(est), len(v))
	}
	for i, c := range est {
		if math.Abs(cmplx.Abs(c)-1) > 1e-12 {
			t.Fatalf("%d %v", i, c)
		}
	}
	if mat.Vdot(est, v) == 0 {
		t.Fatalf("%v", est)
	}

	// The fallback is reproducible given the same random source.
	est2 := EigenvectorEstimator(v, NewOptions().Source(rand.NewPCG(42, 0)))
	for i, c := range est2 {
		if c != est[i] {
			t.Fatalf("%d %v %v", i, c, est[i])
		}
	}
}

func TestEVMIdempotent(t *testing.T) {
	t.Parallel()
	r, err := New(syncMatrix([]float64{0, 0.7, 1.9}, nil, false))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	a := r.EVM()
	b := r.EVM()
	for i, c := range b {
		if c != a[i] {
			t.Fatalf("%d %v %v", i, c, a[i])
		}
	}
}

func TestEVM(t *testing.T) {
	t.Parallel()
	phis := []float64{0, 0.5, 1.2, 2.0}
	r, err := New(syncMatrix(phis, nil, false))
	if err != nil {
		t.Fatalf("%+v", err)
	}

	angles := alignPhases(PhaseValues(r.EVM(), false), false)
	for i, phi := range phis {
		if math.Abs(angles[i]-phi) > 1e-6 {
			t.Fatalf("%d %f %f", i, angles[i], phi)
		}
	}
}

func TestGPM(t *testing.T) {
	t.Parallel()
	phis := []float64{0, 0.4, 0.9, 1.3, 1.8, 2.2}
	r, err := New(syncMatrix(phis, nil, false))
	if err != nil {
		t.Fatalf("%+v", err)
	}

	res := r.GPM(NewOptions().Margin(1e-9))
	if !res.Converged {
		t.Fatalf("%#v", res)
	}
	// Without noise, the initial estimate already is a fixed point.
	if res.Iterations != 1 {
		t.Fatalf("%d", res.Iterations)
	}
	if !r.AssessConvergence(res.Phases, 1e-9) {
		t.Fatalf("%v", res.Phases)
	}

	angles := alignPhases(PhaseValues(res.Phases, false), false)
	for i, phi := range phis {
		if math.Abs(angles[i]-phi) > 1e-4 {
			t.Fatalf("%d %f %f", i, angles[i], phi)
		}
	}
}

// TestGPMCap feeds in measurements too inconsistent for the fixed point
// test, so that iterations stop at the cap.
func TestGPMCap(t *testing.T) {
	t.Parallel()
	phis := []float64{0, 0.4, 1.1, 2.3}
	noise := [][]float64{
		{0, 0.9, -0.6, 0.35},
		{-0.9, 0, 0.5, -0.8},
		{0.6, -0.5, 0, 0.7},
		{-0.35, 0.8, -0.7, 0},
	}
	r, err := New(syncMatrix(phis, noise, false))
	if err != nil {
		t.Fatalf("%+v", err)
	}

	res := r.GPM(NewOptions().MaxIterations(50))
	if res.Converged {
		t.Fatalf("%#v", res)
	}
	if res.Iterations != 50 {
		t.Fatalf("%d", res.Iterations)
	}
}

// TestNoised reconstructs signals with noised measurements.
func TestNoised(t *testing.T) {
	t.Parallel()
	const n = 16
	phis := make([]float64, n)
	for i := range phis {
		phis[i] = 80 * float64(i) / (n - 1)
	}
	// Antisymmetric measurement noise, at most 0.1 degrees.
	noise := make([][]float64, n)
	for i := range noise {
		noise[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := 0.1 * math.Sin(float64(7*i+13*j)+0.5)
			noise[i][j] = v
			noise[j][i] = -v
		}
	}

	r, err := New(syncMatrix(phis, noise, true))
	if err != nil {
		t.Fatalf("%+v", err)
	}

	angles := alignPhases(PhaseValues(r.EVM(), true), true)
	for i, phi := range phis {
		if math.Abs(angles[i]-phi) > 0.1 {
			t.Fatalf("%d %f %f", i, angles[i], phi)
		}
	}

	// The angles stay within tolerance no matter where the fixed point test
	// stops the iterations.
	res := r.GPM(NewOptions().MaxIterations(2000))
	angles = alignPhases(PhaseValues(res.Phases, true), true)
	for i, phi := range phis {
		if math.Abs(angles[i]-phi) > 0.1 {
			t.Fatalf("%d %f %f", i, angles[i], phi)
		}
	}
}

func TestAssessConvergence(t *testing.T) {
	t.Parallel()
	phis := []float64{0, 0.8, 1.5, 2.4}
	r, err := New(syncMatrix(phis, nil, false))
	if err != nil {
		t.Fatalf("%+v", err)
	}

	truth := make([]complex128, len(phis))
	for i, phi := range phis {
		truth[i] = cmplx.Exp(complex(0, phi))
	}
	if !r.AssessConvergence(truth, 1e-9) {
		t.Fatalf("%v", truth)
	}

	garbage := []complex128{1, -1, 1, -1}
	if r.AssessConvergence(garbage, 1e-9) {
		t.Fatalf("%v", garbage)
	}
}

func TestPhaseValues(t *testing.T) {
	t.Parallel()
	z := []complex128{1i, -1, 1 - 1i, 2}
	rad := PhaseValues(z, false)
	wants := []float64{math.Pi / 2, math.Pi, -math.Pi / 4, 0}
	for i, want := range wants {
		if math.Abs(rad[i]-want) > 1e-12 {
			t.Fatalf("%d %f %f", i, rad[i], want)
		}
	}

	deg := PhaseValues(z, true)
	for i, r := range rad {
		if deg[i] != r*(180/math.Pi) {
			t.Fatalf("%d %f %f", i, deg[i], r*(180/math.Pi))
		}
	}
}

// syncMatrix builds the measurement matrix C[i][j] = exp(i(φi − φj)) with
// optional additive noise on the phase differences.
func syncMatrix(phis []float64, noise [][]float64, deg bool) *mat.Dense {
	n := len(phis)
	c := mat.Zeros(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := phis[i] - phis[j]
			if noise != nil {
				d += noise[i][j]
			}
			if deg {
				d *= math.Pi / 180
			}
			c.Set(i, j, cmplx.Exp(complex(0, d)))
		}
	}
	return c
}

// alignPhases removes the global phase offset by subtracting the first value,
// wrapping the result around the period.
func alignPhases(phases []float64, deg bool) []float64 {
	period := 2 * math.Pi
	if deg {
		period = 360
	}
	aligned := make([]float64, len(phases))
	for i, p := range phases {
		d := p - phases[0]
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

func sumConjTranspose(a *mat.Dense) *mat.Dense {
	m := a.Clone()
	m.Add(1, a.ConjTranspose())
	return m
}

func TestMain(m *testing.M) {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	m.Run()
}
