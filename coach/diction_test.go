package coach

import (
	"math"
	"slices"
	"testing"

	"github.com/versecoach/versecoach/dsp/contour"
)

// wordToneSignal synthesizes a recording where each word window holds a
// tone burst at the given amplitude and everything else is silence.
func wordToneSignal(sampleRate int, durSec float64, words []ReferenceWord, amps []float64) contour.Signal {
	samples := make([]float64, int(durSec*float64(sampleRate)))
	for wi, w := range words {
		start := int(w.Start * float64(sampleRate))
		end := int(w.End * float64(sampleRate))
		for i := start; i < end && i < len(samples); i++ {
			samples[i] = amps[wi] * math.Sin(2*math.Pi*1000*float64(i)/float64(sampleRate))
		}
	}
	return contour.Signal{Samples: samples, SampleRate: sampleRate}
}

func TestDictionScoreNoWords(t *testing.T) {
	d := NewDictionScorer()
	sig := wordToneSignal(44100, 1, nil, nil)

	got := d.Score(sig, nil, nil)
	if !got.LowConfidence {
		t.Error("expected low confidence with no words")
	}

	got = d.Score(contour.Signal{}, []ReferenceWord{{Word: "a", Start: 0, End: 0.5}}, nil)
	if !got.LowConfidence {
		t.Error("expected low confidence with no audio")
	}
}

func TestDictionScoreSilentRecording(t *testing.T) {
	d := NewDictionScorer()
	words := []ReferenceWord{
		{Word: "hello", Start: 0.1, End: 0.4, Index: 0},
		{Word: "world", Start: 0.5, End: 0.8, Index: 1},
	}
	sig := contour.Signal{Samples: make([]float64, 44100), SampleRate: 44100}

	got := d.Score(sig, words, nil)
	if !got.LowConfidence {
		t.Error("silent recording must come back low confidence")
	}
	if len(got.Words) != 0 {
		t.Errorf("low confidence payload carried %d word scores", len(got.Words))
	}
}

func TestDictionScoreQuietWordRanksLower(t *testing.T) {
	d := NewDictionScorer()
	words := []ReferenceWord{
		{Word: "loud", Start: 0.2, End: 0.5, Index: 0},
		{Word: "mid", Start: 0.6, End: 0.9, Index: 1},
		{Word: "faint", Start: 1.0, End: 1.3, Index: 2},
	}
	sig := wordToneSignal(44100, 1.5, words, []float64{0.5, 0.4, 0.02})

	got := d.Score(sig, words, nil)
	if got.LowConfidence {
		t.Fatalf("unexpected low confidence: %s", got.Summary)
	}
	if len(got.Words) != 3 {
		t.Fatalf("scored %d words, want 3", len(got.Words))
	}

	if got.Words[2].ClarityScore >= got.Words[0].ClarityScore {
		t.Errorf("faint word clarity %.1f >= loud word clarity %.1f",
			got.Words[2].ClarityScore, got.Words[0].ClarityScore)
	}
	if !slices.Contains(got.Words[2].Issues, "low energy") {
		t.Errorf("faint word issues = %v, want low energy tag", got.Words[2].Issues)
	}
	if got.ClarityScore < 0 || got.ClarityScore > 100 {
		t.Errorf("ClarityScore = %v, out of range", got.ClarityScore)
	}
}

func TestDictionScorePronunciationMismatch(t *testing.T) {
	d := NewDictionScorer()
	words := []ReferenceWord{
		{Word: "one", Start: 0.2, End: 0.5, Index: 0},
		{Word: "two", Start: 0.6, End: 0.9, Index: 1},
		{Word: "three", Start: 1.0, End: 1.3, Index: 2},
	}
	sig := wordToneSignal(44100, 1.5, words, []float64{0.4, 0.4, 0.35})
	feedback := []WordFeedback{
		{Index: 2, Status: WordMissed},
	}

	got := d.Score(sig, words, feedback)
	if got.LowConfidence {
		t.Fatalf("unexpected low confidence: %s", got.Summary)
	}

	// The word was marked missed by alignment but carries real energy, so
	// it reads as a pronunciation problem rather than an omission.
	if !slices.Contains(got.Words[2].Issues, "pronunciation mismatch") {
		t.Errorf("issues = %v, want pronunciation mismatch tag", got.Words[2].Issues)
	}
	if slices.Contains(got.Words[0].Issues, "pronunciation mismatch") {
		t.Errorf("correct word tagged with pronunciation mismatch: %v", got.Words[0].Issues)
	}
}

func TestDictionScoreTooFewClearWords(t *testing.T) {
	d := NewDictionScorer()
	words := []ReferenceWord{
		{Word: "a", Start: 0.2, End: 0.5, Index: 0},
		{Word: "b", Start: 0.6, End: 0.9, Index: 1},
		{Word: "c", Start: 1.0, End: 1.3, Index: 2},
		{Word: "d", Start: 1.4, End: 1.7, Index: 3},
	}
	// One shouted word, three swallowed ones.
	sig := wordToneSignal(44100, 2, words, []float64{0.5, 0, 0, 0})

	got := d.Score(sig, words, nil)
	if !got.LowConfidence {
		t.Error("attempt with one articulate word out of four must be low confidence")
	}
}

func TestPercentileNormalize(t *testing.T) {
	got := percentileNormalize([]float64{10, 20, 30, 40, 50})
	if got[0] != 0 {
		t.Errorf("min normalized to %v, want 0", got[0])
	}
	if got[len(got)-1] != 1 {
		t.Errorf("max normalized to %v, want 1", got[len(got)-1])
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Errorf("normalization not monotone at %d: %v", i, got)
		}
	}

	// Degenerate spread maps everything to the neutral midpoint.
	flat := percentileNormalize([]float64{7, 7, 7})
	for i, v := range flat {
		if v != 0.5 {
			t.Errorf("flat[%d] = %v, want 0.5", i, v)
		}
	}

	if out := percentileNormalize(nil); len(out) != 0 {
		t.Errorf("nil input produced %v", out)
	}
}

func TestZeroCrossingRate(t *testing.T) {
	if got := zeroCrossingRate([]float64{1, -1, 1, -1, 1}); got != 1 {
		t.Errorf("alternating signal zcr = %v, want 1", got)
	}
	if got := zeroCrossingRate([]float64{1, 2, 3, 4}); got != 0 {
		t.Errorf("monotone signal zcr = %v, want 0", got)
	}
	if got := zeroCrossingRate([]float64{1}); got != 0 {
		t.Errorf("single sample zcr = %v, want 0", got)
	}
}
