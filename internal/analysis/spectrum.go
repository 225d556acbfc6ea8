package analysis

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

var ErrTooShort = errors.New("analysis: need at least 4 samples")

// Peak is the strongest non-DC component of a signal.
type Peak struct {
	Frequency float64
	Power     float64
}

// PowerSpectrum returns |X_k|^2 / n for k = 0..n/2 of the mean-removed
// signal and the frequency spacing for sample period dt.
func PowerSpectrum(data []float64, dt float64) ([]float64, float64) {
	n := len(data)
	mean := stat.Mean(data, nil)
	centered := make([]float64, n)
	for i, v := range data {
		centered[i] = v - mean
	}

	coeffs := fourier.NewFFT(n).Coefficients(nil, centered)
	power := make([]float64, len(coeffs))
	for k, c := range coeffs {
		power[k] = (real(c)*real(c) + imag(c)*imag(c)) / float64(n)
	}
	return power, 1 / (float64(n) * dt)
}

// DominantOscillation finds the strongest oscillation in samples taken
// at times ts. Sampling is treated as uniform at the median spacing.
func DominantOscillation(ts, data []float64) (Peak, error) {
	if len(data) < 4 || len(ts) != len(data) {
		return Peak{}, ErrTooShort
	}
	dt := medianStep(ts)
	if dt <= 0 || math.IsNaN(dt) {
		return Peak{}, ErrTooShort
	}

	power, df := PowerSpectrum(data, dt)
	var best Peak
	for k := 1; k < len(power); k++ {
		if power[k] > best.Power {
			best = Peak{Frequency: float64(k) * df, Power: power[k]}
		}
	}
	return best, nil
}

func medianStep(ts []float64) float64 {
	steps := make([]float64, 0, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		steps = append(steps, ts[i]-ts[i-1])
	}
	sort.Float64s(steps)
	return stat.Quantile(0.5, stat.Empirical, steps, nil)
}
