// Package viz draws comparison figures for reconstructed phase signals.
package viz

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// NoisedVsTrue plots the true signal against its noised measurement.
func NoisedVsTrue(signal, noised []float64, path string) error {
	if len(signal) != len(noised) {
		panic(fmt.Sprintf("%d %d", len(signal), len(noised)))
	}
	p := plot.New()
	p.Title.Text = "True vs noised signal"
	p.X.Label.Text = "Sensor"
	p.Y.Label.Text = "Phase [deg]"

	err := plotutil.AddLines(p, "True signal", indexed(signal), "Noised signal", indexed(noised))
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// ReconstructedVsTrue plots the reconstructed signal against the true one.
func ReconstructedVsTrue(signal, reconstructed []float64, path string) error {
	if len(signal) != len(reconstructed) {
		panic(fmt.Sprintf("%d %d", len(signal), len(reconstructed)))
	}
	p := plot.New()
	p.Title.Text = "True vs reconstructed signal"
	p.X.Label.Text = "Sensor"
	p.Y.Label.Text = "Phase [deg]"

	err := plotutil.AddLines(p,
		"True signal", indexed(signal),
		"Reconstructed signal", indexed(reconstructed))
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// AbsoluteDifference plots the reconstruction error of each sensor, with the
// mean error and a tenth of the noise stdev as reference lines.
func AbsoluteDifference(signal, reconstructed []float64, noiseStdev float64, path string) error {
	if len(signal) != len(reconstructed) {
		panic(fmt.Sprintf("%d %d", len(signal), len(reconstructed)))
	}
	diffs := make([]float64, len(signal))
	for i, s := range signal {
		diffs[i] = math.Abs(reconstructed[i] - s)
	}
	mean := stat.Mean(diffs, nil)

	p := plot.New()
	p.Title.Text = "Absolute difference to true signal"
	p.X.Label.Text = "Sensor"
	p.Y.Label.Text = "Absolute difference [deg]"

	err := plotutil.AddLines(p,
		"Absolute difference", indexed(diffs),
		"10% of noise stdev", hline(0.1*noiseStdev, len(diffs)),
		fmt.Sprintf("Mean (%.2f%% of noise stdev)", 100*mean/noiseStdev), hline(mean, len(diffs)))
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// FitHistogram plots a density histogram of the data with a fitted
// probability density function on top.
func FitHistogram(data []float64, xs, ys []float64, bins int, path string) error {
	if len(xs) != len(ys) {
		panic(fmt.Sprintf("%d %d", len(xs), len(ys)))
	}
	p := plot.New()
	p.Title.Text = "Best distribution fit"
	p.X.Label.Text = "Value"
	p.Y.Label.Text = "Density"

	h, err := plotter.NewHist(plotter.Values(data), bins)
	if err != nil {
		return errors.Wrap(err, "")
	}
	h.Normalize(1)
	p.Add(h)

	pdf := make(plotter.XYs, len(xs))
	for i := range xs {
		pdf[i] = plotter.XY{X: xs[i], Y: ys[i]}
	}
	if err := plotutil.AddLines(p, "Best fit", pdf); err != nil {
		return errors.Wrap(err, "")
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func indexed(values []float64) plotter.XYs {
	xys := make(plotter.XYs, len(values))
	for i, v := range values {
		xys[i] = plotter.XY{X: float64(i), Y: v}
	}
	return xys
}

func hline(y float64, n int) plotter.XYs {
	return plotter.XYs{{X: 0, Y: y}, {X: float64(n - 1), Y: y}}
}
