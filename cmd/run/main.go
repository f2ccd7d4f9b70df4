package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/fumin/phasesync"
	"github.com/fumin/phasesync/mat"
	"github.com/fumin/phasesync/reconstruct"
	"github.com/fumin/phasesync/statsfit"
	"github.com/fumin/phasesync/viz"
)

const (
	fnameDB         = "c.sqlite3"
	fnameDone       = "done.txt"
	fnameStatistics = "statistics.json"
	fnameNoised     = "noised.png"
	fnameRec        = "reconstructed.png"
	fnameDiff       = "difference.png"
	fnameFit        = "fit.png"

	// gpmIterations caps the power iterations of runs whose noised
	// matrices do not reach the fixed point test.
	gpmIterations = 1000
)

var (
	runDir     = flag.String("d", filepath.Join("runs", "phasesync"), "run directory")
	numWorkers = flag.Int("j", runtime.NumCPU(), "number of concurrent runs")
	cooDir     = flag.String("coo", "", "directory holding a measurement matrix in COO CSV format")
)

type Statistics struct {
	sensors    int
	noiseStdev float64

	EVM        phasesync.Statistics
	GPM        phasesync.Statistics
	Converged  bool
	Iterations int
	ErrorDist  string
}

func getStatistics(dir string, signal []float64, noised [][]float64, c *mat.Dense, noiseStdev float64) error {
	r, err := reconstruct.New(c)
	if err != nil {
		return errors.Wrap(err, "")
	}

	var stats Statistics
	evm := phasesync.AlignPhases(reconstruct.PhaseValues(r.EVM(), true), 0, true)
	stats.EVM, err = phasesync.GetStatistics(signal, evm)
	if err != nil {
		return errors.Wrap(err, "")
	}

	res := r.GPM(reconstruct.NewOptions().MaxIterations(gpmIterations))
	gpm := phasesync.AlignPhases(reconstruct.PhaseValues(res.Phases, true), 0, true)
	stats.GPM, err = phasesync.GetStatistics(signal, gpm)
	if err != nil {
		return errors.Wrap(err, "")
	}
	stats.Converged = res.Converged
	stats.Iterations = res.Iterations

	// Identify the distribution of the reconstruction errors.
	errs := make([]float64, len(signal))
	for i, s := range signal {
		errs[i] = evm[i] - s
	}
	fit, err := statsfit.BestFit(errs, statsfit.Candidates(), len(errs)/2)
	if err != nil {
		return errors.Wrap(err, "")
	}
	stats.ErrorDist = fit.Name

	if err := plots(dir, signal, noised, evm, errs, fit, noiseStdev); err != nil {
		return errors.Wrap(err, "")
	}

	b, err := json.Marshal(stats)
	if err != nil {
		return errors.Wrap(err, "")
	}
	if err := os.WriteFile(filepath.Join(dir, fnameStatistics), b, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func plots(dir string, signal []float64, noised [][]float64, reconstructed, errs []float64, fit statsfit.Fit, noiseStdev float64) error {
	// The noised signal is the measurement of each sensor against sensor 0.
	noisedSignal := make([]float64, len(signal))
	for i := range noisedSignal {
		noisedSignal[i] = noised[i][0]
	}
	if err := viz.NoisedVsTrue(signal, noisedSignal, filepath.Join(dir, fnameNoised)); err != nil {
		return errors.Wrap(err, "")
	}
	if err := viz.ReconstructedVsTrue(signal, reconstructed, filepath.Join(dir, fnameRec)); err != nil {
		return errors.Wrap(err, "")
	}
	if err := viz.AbsoluteDifference(signal, reconstructed, noiseStdev, filepath.Join(dir, fnameDiff)); err != nil {
		return errors.Wrap(err, "")
	}

	xs, ys := statsfit.MakePDF(fit.Dist, 1000)
	if err := viz.FitHistogram(errs, xs, ys, len(errs)/2, filepath.Join(dir, fnameFit)); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func solve(dir string, sensors int, noiseStdev float64) error {
	donePath := filepath.Join(dir, fnameDone)
	if _, err := os.Stat(donePath); err == nil {
		return nil
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	signal := phasesync.UniformPhases(0, 80, sensors, nil)
	noise := phasesync.AntisymmetricNoise(0, noiseStdev, sensors, nil)
	noised := phasesync.Add(phasesync.DeltaMatrix(signal), noise)
	c := phasesync.SyncMatrix(noised, true)

	// Archive the measurement matrix.
	if err := c.WriteCSV(dir); err != nil {
		return errors.Wrap(err, "")
	}
	db := mat.DiskM(filepath.Join(dir, fnameDB), c)
	if err := db.Close(); err != nil {
		return errors.Wrap(err, "")
	}

	if err := getStatistics(dir, signal, noised, c, noiseStdev); err != nil {
		return errors.Wrap(err, "")
	}

	if err := os.WriteFile(donePath, nil, 0644); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

func gather(dir string) ([]Statistics, error) {
	stats := make([]Statistics, 0)
	nEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	for _, nent := range nEntries {
		sensors, err := strconv.Atoi(nent.Name())
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%#v", nent))
		}

		ndir := filepath.Join(dir, nent.Name())
		sEntries, err := os.ReadDir(ndir)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("%#v", nent))
		}
		for _, sent := range sEntries {
			stdev, err := strconv.ParseFloat(sent.Name(), 64)
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%#v %#v", nent, sent))
			}

			sdir := filepath.Join(ndir, sent.Name())
			sb, err := os.ReadFile(filepath.Join(sdir, fnameStatistics))
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%#v %#v", nent, sent))
			}
			s := Statistics{sensors: sensors, noiseStdev: stdev}
			if err := json.Unmarshal(sb, &s); err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("%#v %#v", nent, sent))
			}
			stats = append(stats, s)
		}
	}
	return stats, nil
}

// reconstructCOO reconstructs phases from an externally measured matrix.
func reconstructCOO(dir string) error {
	c, err := mat.ReadCSV(dir)
	if err != nil {
		return errors.Wrap(err, "")
	}
	r, err := reconstruct.New(c)
	if err != nil {
		return errors.Wrap(err, "")
	}

	estimate := r.EVM()
	rad := reconstruct.PhaseValues(estimate, false)
	deg := reconstruct.PhaseValues(estimate, true)
	fmt.Printf("sensor,radians,degrees\n")
	for i := range rad {
		fmt.Printf("%d,%f,%f\n", i, rad[i], deg[i])
	}
	return nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds | log.Llongfile | log.LstdFlags)

	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	if *cooDir != "" {
		return reconstructCOO(*cooDir)
	}

	if err := os.MkdirAll(*runDir, os.ModePerm); err != nil {
		return errors.Wrap(err, "")
	}

	type config struct {
		sensors    int
		noiseStdev float64
	}
	configs := make([]config, 0)
	for _, n := range []int{50, 250, 500, 750} {
		for _, stdev := range []float64{0.15, 0.25, 0.35, 0.45, 0.55, 0.65, 0.75, 0.85, 1} {
			configs = append(configs, config{sensors: n, noiseStdev: stdev})
		}
	}

	// Solve the configurations on a bounded worker pool.
	g := &errgroup.Group{}
	g.SetLimit(*numWorkers)
	for _, c := range configs {
		g.Go(func() error {
			dir := filepath.Join(*runDir, strconv.Itoa(c.sensors), fmt.Sprintf("%f", c.noiseStdev))
			if err := solve(dir, c.sensors, c.noiseStdev); err != nil {
				return errors.Wrap(err, fmt.Sprintf("%d %f", c.sensors, c.noiseStdev))
			}
			log.Printf("%d %f", c.sensors, c.noiseStdev)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "")
	}

	// Gather results and print them.
	stats, err := gather(*runDir)
	if err != nil {
		return errors.Wrap(err, "")
	}
	fmt.Printf("sensors,noise,evm_mean,evm_max,evm_rms,gpm_mean,gpm_max,gpm_rms,converged,iterations,error_dist\n")
	for _, s := range stats {
		fmt.Printf("%d,%f,%f,%f,%f,%f,%f,%f,%t,%d,%s\n", s.sensors, s.noiseStdev,
			s.EVM.MeanAbsErr, s.EVM.MaxAbsErr, s.EVM.RMSErr,
			s.GPM.MeanAbsErr, s.GPM.MaxAbsErr, s.GPM.RMSErr,
			s.Converged, s.Iterations, s.ErrorDist)
	}
	return nil
}
