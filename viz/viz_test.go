package viz

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestComparisonPlots(t *testing.T) {
	t.Parallel()
	signal := []float64{0, 10, 25, 42, 61, 80}
	noised := []float64{0.3, 9.8, 25.4, 41.7, 61.2, 79.6}
	reconstructed := []float64{0.1, 10.1, 24.9, 42.2, 60.8, 80.1}

	tests := []struct {
		name string
		plot func(path string) error
	}{
		{
			name: "noised.png",
			plot: func(path string) error { return NoisedVsTrue(signal, noised, path) },
		},
		{
			name: "reconstructed.png",
			plot: func(path string) error { return ReconstructedVsTrue(signal, reconstructed, path) },
		},
		{
			name: "difference.png",
			plot: func(path string) error { return AbsoluteDifference(signal, reconstructed, 0.5, path) },
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			dir, err := os.MkdirTemp("", "")
			if err != nil {
				t.Fatalf("%+v", err)
			}
			defer os.RemoveAll(dir)

			fpath := filepath.Join(dir, test.name)
			if err := test.plot(fpath); err != nil {
				t.Fatalf("%+v", err)
			}
			info, err := os.Stat(fpath)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if info.Size() == 0 {
				t.Fatalf("%s", fpath)
			}
		})
	}
}

func TestFitHistogram(t *testing.T) {
	t.Parallel()
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(1, 2)}
	data := make([]float64, 1000)
	for i := range data {
		data[i] = normal.Rand()
	}
	xs := make([]float64, 100)
	floats.Span(xs, normal.Quantile(0.01), normal.Quantile(0.99))
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = normal.Prob(x)
	}

	fpath := filepath.Join(dir, "fit.png")
	if err := FitHistogram(data, xs, ys, 50, fpath); err != nil {
		t.Fatalf("%+v", err)
	}
	info, err := os.Stat(fpath)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("%s", fpath)
	}
}
