package contour

import (
	"math"

	"github.com/versecoach/versecoach/dsp/common"
	"github.com/versecoach/versecoach/dsp/pitch"
)

// Comparison holds the result of aligning a user contour against a
// reference contour. A nil *Comparison means there was no comparison
// basis at all (no overlapping voiced pair); callers must branch on nil
// rather than treat it as a perfect or zero score.
type Comparison struct {
	MedianAbsErrorCents float64 `json:"median_abs_error_cents"`
	BiasCents           float64 `json:"bias_cents"`             // signed; positive = sharp
	PctWithin50Cents    float64 `json:"pct_within_50_cents"`    // 0-1
	PctWithin100Cents   float64 `json:"pct_within_100_cents"`   // 0-1
	PitchAccuracyScore  float64 `json:"pitch_accuracy_score"`   // 0-100
	OverlapPct          float64 `json:"overlap_pct"`            // 0-1
	PairCount           int     `json:"pair_count"`
}

// Compare aligns the user contour to the reference on the reference's hop
// grid and scores the per-frame pitch error in cents. Only frame pairs
// where both sides are voiced contribute.
func Compare(user, ref Contour) *Comparison {
	if len(user.Frames) == 0 || len(ref.Frames) == 0 || ref.HopSec <= 0 {
		return nil
	}

	var errors []float64
	userVoiced := 0

	for _, uf := range user.Frames {
		if !uf.Voiced {
			continue
		}
		userVoiced++

		refIdx := int(math.Round(uf.T / ref.HopSec))
		if refIdx < 0 || refIdx >= len(ref.Frames) {
			continue
		}

		rf := ref.Frames[refIdx]
		if !rf.Voiced {
			continue
		}

		errors = append(errors, pitch.CentsOff(uf.F0, rf.F0))
	}

	if len(errors) == 0 {
		return nil
	}

	absErrors := make([]float64, len(errors))
	within50 := 0
	within100 := 0
	for i, e := range errors {
		absErrors[i] = math.Abs(e)
		if absErrors[i] <= 50 {
			within50++
		}
		if absErrors[i] <= 100 {
			within100++
		}
	}

	c := &Comparison{
		MedianAbsErrorCents: common.Median(absErrors),
		BiasCents:           common.Median(errors),
		PctWithin50Cents:    float64(within50) / float64(len(errors)),
		PctWithin100Cents:   float64(within100) / float64(len(errors)),
		OverlapPct:          float64(len(errors)) / float64(max(1, userVoiced)),
		PairCount:           len(errors),
	}

	c.PitchAccuracyScore = common.Clamp(
		100-1.2*c.MedianAbsErrorCents-30*(1-c.PctWithin50Cents),
		0, 100)

	return c
}
