package pitch

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Spectrum computes the magnitude spectrum of a frame. The frame is
// zero-padded to the next power of two, the real samples present are
// Hann-windowed, and the magnitudes of the first paddedSize/2 bins are
// returned along with the padded transform size. Phase is discarded; the
// output exists to feed spectral-centroid style features.
func Spectrum(frame []float64) ([]float64, int) {
	if len(frame) == 0 {
		return []float64{}, 0
	}

	padded := nextPowerOfTwo(len(frame))

	windowed := make([]float64, padded)
	for i, s := range frame {
		windowed[i] = s * hann(i, len(frame))
	}

	spectrum := fft.FFTReal(windowed)

	mags := make([]float64, padded/2)
	for i := range mags {
		mags[i] = cmplx.Abs(spectrum[i])
	}

	return mags, padded
}

// SpectralCentroid computes the magnitude-weighted mean frequency of a
// spectrum produced by Spectrum, in Hz. A zero-energy spectrum yields 0.
func SpectralCentroid(mags []float64, paddedSize, sampleRate int) float64 {
	if len(mags) == 0 || paddedSize <= 0 || sampleRate <= 0 {
		return 0
	}

	binHz := float64(sampleRate) / float64(paddedSize)

	numerator := 0.0
	denominator := 0.0
	for i, m := range mags {
		numerator += float64(i) * binHz * m
		denominator += m
	}

	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

func hann(i, n int) float64 {
	if n < 2 {
		return 1
	}
	return 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
