package coach

import (
	"github.com/versecoach/versecoach/dsp/common"
	"github.com/versecoach/versecoach/dsp/contour"
	"github.com/versecoach/versecoach/dsp/pitch"
)

// Diction feature tuning. Windows are padded around each reference word;
// onset strength compares a short post-onset burst against the energy
// just before the word starts.
const (
	dictionPadSec        = 0.06
	dictionOnsetSpanSec  = 0.05
	dictionCentroidSpan  = 1024 // samples fed to the spectrum estimator
	dictionLowRMSFloor   = 0.008
	dictionMinClarity    = 35.0
	dictionMinClearWords = 0.3 // fraction of words that must reach MinClarity
)

// Per-feature issue thresholds on the normalized [0,1] features.
const (
	softConsonantThreshold = 0.3
	lowEnergyThreshold     = 0.25
	muffledThreshold       = 0.2
	sibilanceThreshold     = 0.15
)

// WordDiction is the clarity assessment for one reference word.
type WordDiction struct {
	Index        int      `json:"index"`
	Word         string   `json:"word"`
	ClarityScore float64  `json:"clarity_score"` // 0-100
	Issues       []string `json:"issues,omitempty"`

	// Normalized features, each in [0, 1].
	Onset    float64 `json:"onset"`
	Energy   float64 `json:"energy"`
	Centroid float64 `json:"centroid"`
	ZCR      float64 `json:"zcr"`
}

// DictionCoach is the attempt-level diction result. When LowConfidence is
// true the recording was too quiet or too unclear to score and the other
// fields hold the fixed low-confidence payload, not computed values.
type DictionCoach struct {
	Words         []WordDiction `json:"words"`
	ClarityScore  float64       `json:"clarity_score"` // 0-100, mean over words
	LowConfidence bool          `json:"low_confidence"`
	Summary       string        `json:"summary"`
}

// DictionScorer computes per-word clarity from onset strength, energy,
// spectral centroid and zero-crossing rate, each normalized across the
// words of one attempt by a 10th/90th percentile min-max clamp so a few
// shouted or swallowed words cannot skew the scale.
type DictionScorer struct{}

// NewDictionScorer creates a diction scorer
func NewDictionScorer() *DictionScorer {
	return &DictionScorer{}
}

type wordFeatures struct {
	energy   float64
	onset    float64
	centroid float64
	zcr      float64
}

// Score assesses diction for every reference word of one attempt.
// feedback may be nil; when present, missed/incorrect words that still
// carry real energy are tagged as pronunciation mismatches.
func (d *DictionScorer) Score(sig contour.Signal, words []ReferenceWord, feedback []WordFeedback) DictionCoach {
	if len(words) == 0 || len(sig.Samples) == 0 || sig.SampleRate <= 0 {
		return lowConfidenceDiction("no words or audio to score")
	}

	statusByIndex := make(map[int]WordStatus, len(feedback))
	for _, fb := range feedback {
		statusByIndex[fb.Index] = fb.Status
	}

	raw := make([]wordFeatures, len(words))
	for i, w := range words {
		raw[i] = d.extractFeatures(sig, w)
	}

	// Attempt-level confidence gate before any normalization.
	energies := make([]float64, len(raw))
	for i, f := range raw {
		energies[i] = f.energy
	}
	if common.Mean(energies) < dictionLowRMSFloor {
		return lowConfidenceDiction("recording too quiet to assess diction")
	}

	onsetN := percentileNormalize(collect(raw, func(f wordFeatures) float64 { return f.onset }))
	energyN := percentileNormalize(energies)
	centroidN := percentileNormalize(collect(raw, func(f wordFeatures) float64 { return f.centroid }))
	zcrN := percentileNormalize(collect(raw, func(f wordFeatures) float64 { return f.zcr }))

	out := make([]WordDiction, len(words))
	clearWords := 0
	claritySum := 0.0
	for i, w := range words {
		clarity := 100 * (0.35*onsetN[i] + 0.25*energyN[i] + 0.2*centroidN[i] + 0.2*zcrN[i])
		clarity = common.Clamp(clarity, 0, 100)
		if clarity >= dictionMinClarity {
			clearWords++
		}
		claritySum += clarity

		var issues []string
		if onsetN[i] < softConsonantThreshold {
			issues = append(issues, "soft consonant")
		}
		if energyN[i] < lowEnergyThreshold {
			issues = append(issues, "low energy")
		}
		if centroidN[i] < muffledThreshold {
			issues = append(issues, "muffled articulation")
		}
		if zcrN[i] < sibilanceThreshold {
			issues = append(issues, "unclear sibilance")
		}
		if st, ok := statusByIndex[w.Index]; ok {
			if (st == WordMissed || st == WordIncorrect) && raw[i].energy >= dictionLowRMSFloor {
				issues = append(issues, "pronunciation mismatch")
			}
		}

		out[i] = WordDiction{
			Index:        w.Index,
			Word:         w.Word,
			ClarityScore: clarity,
			Issues:       issues,
			Onset:        onsetN[i],
			Energy:       energyN[i],
			Centroid:     centroidN[i],
			ZCR:          zcrN[i],
		}
	}

	if float64(clearWords)/float64(len(words)) < dictionMinClearWords {
		return lowConfidenceDiction("too few clearly articulated words to assess diction")
	}

	return DictionCoach{
		Words:        out,
		ClarityScore: common.Clamp(claritySum/float64(len(words)), 0, 100),
		Summary:      "diction scored per word",
	}
}

func lowConfidenceDiction(summary string) DictionCoach {
	return DictionCoach{
		Words:         []WordDiction{},
		LowConfidence: true,
		Summary:       summary,
	}
}

// extractFeatures pulls the four raw diction features from a window
// padded around one word.
func (d *DictionScorer) extractFeatures(sig contour.Signal, w ReferenceWord) wordFeatures {
	sr := float64(sig.SampleRate)
	start := clampIndex(int((w.Start-dictionPadSec)*sr), len(sig.Samples))
	end := clampIndex(int((w.End+dictionPadSec)*sr), len(sig.Samples))
	if end <= start {
		return wordFeatures{}
	}
	window := sig.Samples[start:end]

	// Onset strength: the burst right after the word starts against the
	// energy right before it, floored at zero.
	span := int(dictionOnsetSpanSec * sr)
	onsetAt := clampIndex(int(w.Start*sr), len(sig.Samples))
	preStart := clampIndex(onsetAt-span, len(sig.Samples))
	postEnd := clampIndex(onsetAt+span, len(sig.Samples))
	pre := common.RMS(sig.Samples[preStart:onsetAt])
	post := common.RMS(sig.Samples[onsetAt:postEnd])
	onset := post - pre
	if onset < 0 {
		onset = 0
	}

	centroidSpan := window
	if len(centroidSpan) > dictionCentroidSpan {
		centroidSpan = centroidSpan[:dictionCentroidSpan]
	}
	mags, padded := pitch.Spectrum(centroidSpan)

	return wordFeatures{
		energy:   common.RMS(window),
		onset:    onset,
		centroid: pitch.SpectralCentroid(mags, padded, sig.SampleRate),
		zcr:      zeroCrossingRate(window),
	}
}

// zeroCrossingRate returns the fraction of adjacent sample pairs that
// cross zero, in [0, 1].
func zeroCrossingRate(frame []float64) float64 {
	if len(frame) < 2 {
		return 0
	}

	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0 && frame[i] < 0) || (frame[i-1] < 0 && frame[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame)-1)
}

// percentileNormalize maps values to [0, 1] using a 10th/90th percentile
// min-max clamp. A degenerate spread maps every value to the neutral 0.5
// so one flat feature cannot zero out the clarity of every word.
func percentileNormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	lo := common.Percentile(values, 0.1)
	hi := common.Percentile(values, 0.9)
	if hi-lo < 1e-12 {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}

	for i, v := range values {
		out[i] = common.Clamp((v-lo)/(hi-lo), 0, 1)
	}
	return out
}

func collect(raw []wordFeatures, get func(wordFeatures) float64) []float64 {
	out := make([]float64, len(raw))
	for i, f := range raw {
		out[i] = get(f)
	}
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
