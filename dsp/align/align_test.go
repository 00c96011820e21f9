package align

import (
	"math"
	"testing"
)

// bumpEnvelope samples a smooth energy bump at stepMs resolution,
// delayed by delayMs.
func bumpEnvelope(n int, stepMs, delayMs float64) []float64 {
	env := make([]float64, n)
	for i := range env {
		t := float64(i)*stepMs - delayMs
		// Gaussian bump centered at 1000ms, 300ms wide.
		d := (t - 1000) / 300
		env[i] = math.Exp(-d * d)
	}
	return env
}

func TestEstimateKnownShiftXCorr(t *testing.T) {
	e := NewEstimator()
	step := 50.0

	ref := bumpEnvelope(60, step, 0)
	cand := bumpEnvelope(60, step, 120)

	got := e.Estimate(ref, cand, step)
	if got.Method != MethodXCorr {
		t.Fatalf("Method = %q, want xcorr", got.Method)
	}
	if got.Correlation <= AcceptCorrelation {
		t.Errorf("Correlation = %v, want > %v", got.Correlation, AcceptCorrelation)
	}
	// The true shift is 120ms; the envelope grid quantizes to 50ms steps.
	if math.Abs(got.OffsetMs-120) > step {
		t.Errorf("OffsetMs = %v, want 120 ± %v", got.OffsetMs, step)
	}
}

func TestEstimateExactShift(t *testing.T) {
	e := NewEstimator()
	step := 50.0

	ref := bumpEnvelope(60, step, 0)
	cand := bumpEnvelope(60, step, 150) // exactly 3 steps

	got := e.Estimate(ref, cand, step)
	if got.Method != MethodXCorr {
		t.Fatalf("Method = %q, want xcorr", got.Method)
	}
	if got.OffsetMs != 150 {
		t.Errorf("OffsetMs = %v, want 150", got.OffsetMs)
	}
}

func TestEstimateNegativeShift(t *testing.T) {
	e := NewEstimator()
	step := 50.0

	ref := bumpEnvelope(60, step, 0)
	cand := bumpEnvelope(60, step, -200) // candidate runs early

	got := e.Estimate(ref, cand, step)
	if got.Method != MethodXCorr {
		t.Fatalf("Method = %q, want xcorr", got.Method)
	}
	if got.OffsetMs != -200 {
		t.Errorf("OffsetMs = %v, want -200", got.OffsetMs)
	}
}

func TestEstimateZeroShiftIdenticalEnvelopes(t *testing.T) {
	e := NewEstimator()
	step := 50.0
	env := bumpEnvelope(60, step, 0)

	got := e.Estimate(env, env, step)
	if got.Method != MethodXCorr || got.OffsetMs != 0 {
		t.Errorf("got %+v, want xcorr at 0ms", got)
	}
}

func TestEstimateOnsetFallback(t *testing.T) {
	// Two-sample envelopes are below the minimum correlation overlap, so
	// every lag correlates as 0 and the onset fallback kicks in.
	e := NewEstimator()
	ref := []float64{0.05, 1.0}
	cand := []float64{1.0, 1.0}

	got := e.Estimate(ref, cand, 50)
	if got.Method != MethodOnset {
		t.Fatalf("Method = %q, want onset", got.Method)
	}
	if got.OffsetMs != -50 {
		t.Errorf("OffsetMs = %v, want -50", got.OffsetMs)
	}
}

func TestEstimateNearConstantEnvelopes(t *testing.T) {
	// A steady tone produces an RMS envelope that is flat up to float
	// quantization noise. Pearson correlation on that noise is meaningless
	// and must not be trusted as a confident offset at some extreme lag;
	// the flat envelopes fall through to the onset fallback at 0ms.
	e := NewEstimator()
	step := 50.0

	ref := make([]float64, 60)
	cand := make([]float64, 60)
	for i := range ref {
		ref[i] = 0.5 + 1e-15*float64(i%3)
		cand[i] = 0.5 + 1e-15*float64((i+1)%3)
	}

	got := e.Estimate(ref, cand, step)
	if got.Method == MethodXCorr {
		t.Fatalf("Method = xcorr (corr %v) on quantization noise", got.Correlation)
	}
	if got.OffsetMs != 0 {
		t.Errorf("OffsetMs = %v, want 0 for aligned flat envelopes", got.OffsetMs)
	}
}

func TestEstimateNoSignal(t *testing.T) {
	e := NewEstimator()

	got := e.Estimate(make([]float64, 20), make([]float64, 20), 50)
	if got.Method != MethodNone || got.OffsetMs != 0 {
		t.Errorf("got %+v, want method none at 0ms", got)
	}

	if got := e.Estimate(nil, nil, 50); got.Method != MethodNone {
		t.Errorf("Method = %q, want none for empty input", got.Method)
	}
	if got := e.Estimate([]float64{1}, []float64{1}, 0); got.Method != MethodNone {
		t.Errorf("Method = %q, want none for zero step", got.Method)
	}
}

func TestEstimateClampsToWindow(t *testing.T) {
	e := NewEstimatorWithWindow(200)
	step := 50.0

	ref := bumpEnvelope(60, step, 0)
	cand := bumpEnvelope(60, step, 400) // beyond the ±200ms window

	got := e.Estimate(ref, cand, step)
	if math.Abs(got.OffsetMs) > 200 {
		t.Errorf("OffsetMs = %v, want within ±200", got.OffsetMs)
	}
}
