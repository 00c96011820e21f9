package contour

import (
	"math"

	"github.com/versecoach/versecoach/dsp/common"
	"github.com/versecoach/versecoach/dsp/pitch"
)

// LowConfidenceVoicedPct is the voiced fraction below which a contour's
// pitch-derived metrics are flagged unreliable.
const LowConfidenceVoicedPct = 0.25

// Vibrato search band in Hz. Sung vibrato sits between roughly 3 and 9 Hz;
// slower modulation is drift, faster is jitter.
const (
	vibratoMinHz = 3.0
	vibratoMaxHz = 9.0
)

// Metrics reduces a contour to scalar pitch-quality descriptors. All
// score fields are clamped to their documented ranges and never NaN.
type Metrics struct {
	VoicedPct        float64 `json:"voiced_pct"`          // 0-1
	MedianF0Hz       float64 `json:"median_f0_hz"`
	CentsStdDev      float64 `json:"cents_std_dev"`       // population stddev vs median
	CentsIQR         float64 `json:"cents_iqr"`
	DriftCentsPerSec float64 `json:"drift_cents_per_sec"` // signed least-squares slope
	VibratoRateHz    float64 `json:"vibrato_rate_hz"`     // 0 when no vibrato detected
	JitterCentsRMS   float64 `json:"jitter_cents_rms"`    // frame-to-frame wobble
	StabilityScore   float64 `json:"stability_score"`     // 0-100
	LowConfidence    bool    `json:"low_confidence"`
}

// ComputeMetrics reduces a contour to its pitch-quality metrics. A contour
// with no voiced frames yields zeroed metrics flagged low-confidence.
func ComputeMetrics(c Contour) Metrics {
	m := Metrics{
		VoicedPct:     c.VoicedPct(),
		LowConfidence: true,
	}

	var f0s, times []float64
	for _, f := range c.Frames {
		if f.Voiced {
			f0s = append(f0s, f.F0)
			times = append(times, f.T)
		}
	}
	if len(f0s) == 0 {
		return m
	}

	m.LowConfidence = m.VoicedPct < LowConfidenceVoicedPct
	m.MedianF0Hz = common.Median(f0s)

	// Every voiced frame expressed as cents deviation from the median.
	cents := make([]float64, len(f0s))
	for i, f := range f0s {
		cents[i] = pitch.CentsOff(f, m.MedianF0Hz)
	}

	m.CentsStdDev = common.PopStdDev(cents)
	m.CentsIQR = common.Percentile(cents, 0.75) - common.Percentile(cents, 0.25)
	m.DriftCentsPerSec = common.LinearSlope(times, cents)
	m.JitterCentsRMS = common.PopStdDev(common.Diff(cents))
	m.VibratoRateHz = vibratoRate(cents, c.HopSec)

	m.StabilityScore = common.Clamp(
		100-0.9*m.CentsStdDev-0.6*m.JitterCentsRMS-2.5*math.Abs(m.DriftCentsPerSec),
		0, 100)

	return m
}

// vibratoRate autocorrelates the zero-meaned cents series over lags that
// correspond to 3-9 Hz modulation at the contour's hop rate. A positive
// correlation peak in the band converts to a rate; anything else is 0.
func vibratoRate(cents []float64, hopSec float64) float64 {
	if hopSec <= 0 || len(cents) < 4 {
		return 0
	}

	mean := common.Mean(cents)
	centered := make([]float64, len(cents))
	for i, c := range cents {
		centered[i] = c - mean
	}

	minLag := int(math.Round(1 / (vibratoMaxHz * hopSec)))
	maxLag := int(math.Round(1 / (vibratoMinHz * hopSec)))
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(centered) {
		maxLag = len(centered) - 1
	}
	if maxLag < minLag {
		return 0
	}

	bestLag := 0
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		sum := 0.0
		for i := 0; i < len(centered)-lag; i++ {
			sum += centered[i] * centered[i+lag]
		}
		if sum > bestCorr {
			bestCorr = sum
			bestLag = lag
		}
	}

	if bestLag == 0 {
		return 0
	}
	return 1 / (float64(bestLag) * hopSec)
}
