package contour

import (
	"math"

	"github.com/versecoach/versecoach/dsp/common"
	"github.com/versecoach/versecoach/dsp/pitch"
)

// Default framing parameters, tuned for sung vocals at 44.1 kHz.
const (
	DefaultFrameSize = 2048
	DefaultHopSize   = 512
	DefaultRMSFloor  = 0.01
)

// Extractor slides a fixed-size frame across a signal range and produces
// a pitch contour. Frames quieter than the RMS floor are marked unvoiced
// without invoking the pitch estimator at all, which keeps silence cheap
// and the voiced flag consistent with the estimator's own energy gate.
type Extractor struct {
	frameSize int
	hopSize   int
	rmsFloor  float64
	estimator *pitch.Estimator
}

// NewExtractor creates a contour extractor with default framing
func NewExtractor() *Extractor {
	return &Extractor{
		frameSize: DefaultFrameSize,
		hopSize:   DefaultHopSize,
		rmsFloor:  DefaultRMSFloor,
		estimator: pitch.NewEstimator(),
	}
}

// NewExtractorWithParams creates a contour extractor with custom framing.
// Non-positive values fall back to the defaults.
func NewExtractorWithParams(frameSize, hopSize int, rmsFloor float64) *Extractor {
	e := NewExtractor()
	if frameSize > 0 {
		e.frameSize = frameSize
	}
	if hopSize > 0 {
		e.hopSize = hopSize
	}
	if rmsFloor > 0 {
		e.rmsFloor = rmsFloor
	}
	return e
}

// NewExtractorWithEstimator additionally substitutes a custom-tuned
// pitch estimator.
func NewExtractorWithEstimator(frameSize, hopSize int, rmsFloor float64, est *pitch.Estimator) *Extractor {
	e := NewExtractorWithParams(frameSize, hopSize, rmsFloor)
	if est != nil {
		e.estimator = est
	}
	return e
}

// Extract produces the pitch contour of sig over [startSec, endSec).
// The frame count is floor((range-frameSize)/hop)+1 and may be zero for
// very short ranges.
func (e *Extractor) Extract(sig Signal, startSec, endSec float64) Contour {
	c := Contour{
		Frames:     []Frame{},
		SampleRate: sig.SampleRate,
		HopSec:     float64(e.hopSize) / float64(max(1, sig.SampleRate)),
	}
	if sig.SampleRate <= 0 || len(sig.Samples) == 0 || endSec <= startSec {
		return c
	}

	startIdx := int(math.Round(startSec * float64(sig.SampleRate)))
	endIdx := int(math.Round(endSec * float64(sig.SampleRate)))
	if startIdx < 0 {
		startIdx = 0
	}
	if endIdx > len(sig.Samples) {
		endIdx = len(sig.Samples)
	}
	if endIdx-startIdx < e.frameSize {
		return c
	}

	numFrames := (endIdx-startIdx-e.frameSize)/e.hopSize + 1
	c.Frames = make([]Frame, 0, numFrames)

	for i := 0; i < numFrames; i++ {
		frameStart := startIdx + i*e.hopSize
		frame := sig.Samples[frameStart : frameStart+e.frameSize]

		t := float64(frameStart) / float64(sig.SampleRate)
		rms := common.RMS(frame)

		if rms < e.rmsFloor {
			c.Frames = append(c.Frames, Frame{T: t, RMS: rms})
			continue
		}

		f0 := e.estimator.Estimate(frame, sig.SampleRate)
		c.Frames = append(c.Frames, Frame{
			T:      t,
			F0:     f0,
			Voiced: f0 > 0,
			RMS:    rms,
		})
	}

	return c
}

// EnergyEnvelope computes a fixed-step RMS series over the whole signal,
// used for temporal offset estimation. The last partial step is dropped.
func EnergyEnvelope(sig Signal, stepSec float64) []float64 {
	if sig.SampleRate <= 0 || stepSec <= 0 {
		return []float64{}
	}

	step := int(math.Round(stepSec * float64(sig.SampleRate)))
	if step <= 0 || len(sig.Samples) < step {
		return []float64{}
	}

	numSteps := len(sig.Samples) / step
	envelope := make([]float64, numSteps)
	for i := 0; i < numSteps; i++ {
		envelope[i] = common.RMS(sig.Samples[i*step : (i+1)*step])
	}

	return envelope
}
