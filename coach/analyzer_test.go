package coach

import (
	"context"
	"math"
	"testing"

	"github.com/versecoach/versecoach/dsp/align"
	"github.com/versecoach/versecoach/dsp/contour"
)

func toneSignal(freq, amp, durSec float64, sampleRate int) contour.Signal {
	samples := make([]float64, int(durSec*float64(sampleRate)))
	for i := range samples {
		samples[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return contour.Signal{Samples: samples, SampleRate: sampleRate}
}

func analyzerTestConfig() *Config {
	cfg := DefaultConfig()
	cfg.Contour.FrameSize = 1024
	cfg.Contour.HopSize = 512
	return cfg
}

func TestAnalyzeAttemptSlightlySharpUser(t *testing.T) {
	const sampleRate = 44100
	ref := toneSignal(220, 0.4, 1.2, sampleRate)
	// 20 cents sharp of the reference throughout.
	user := toneSignal(220*math.Pow(2, 20.0/1200), 0.4, 1.2, sampleRate)

	words := []ReferenceWord{
		{Word: "la", Start: 0.1, End: 0.5, Index: 0},
		{Word: "da", Start: 0.6, End: 1.0, Index: 1},
	}
	feedback := []WordFeedback{
		{Index: 0, Status: WordCorrect, DeltaMs: 10},
		{Index: 1, Status: WordCorrect, DeltaMs: -15},
	}

	a := NewAnalyzer(analyzerTestConfig())
	res, err := a.AnalyzeAttempt(context.Background(), AttemptInput{
		RefSignal:  ref,
		UserSignal: user,
		Words:      words,
		Feedback:   feedback,
	})
	if err != nil {
		t.Fatal(err)
	}

	if res.Comparison == nil {
		t.Fatal("Comparison = nil for two voiced recordings")
	}
	if math.Abs(res.Comparison.BiasCents-20) > 8 {
		t.Errorf("BiasCents = %.1f, want about +20", res.Comparison.BiasCents)
	}
	if res.UserMetrics.VoicedPct < 0.9 {
		t.Errorf("user VoicedPct = %.2f, want nearly fully voiced", res.UserMetrics.VoicedPct)
	}
	if res.Coach.LowConfidence {
		t.Error("clean synthetic attempt flagged low confidence")
	}
	if math.Abs(res.Offset.OffsetMs) > 100 {
		t.Errorf("OffsetMs = %.0f, want near zero for aligned signals", res.Offset.OffsetMs)
	}
	if res.Coach.Subscores.Word != 100 {
		t.Errorf("Word subscore = %v, want 100", res.Coach.Subscores.Word)
	}
}

func TestAnalyzeAttemptSilentReference(t *testing.T) {
	const sampleRate = 44100
	ref := contour.Signal{Samples: make([]float64, sampleRate), SampleRate: sampleRate}
	user := toneSignal(220, 0.4, 1.0, sampleRate)

	a := NewAnalyzer(analyzerTestConfig())
	res, err := a.AnalyzeAttempt(context.Background(), AttemptInput{
		RefSignal:  ref,
		UserSignal: user,
		Feedback: []WordFeedback{
			{Index: 0, Status: WordCorrect},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	// No voiced reference frames means no comparison basis: the pitch
	// subscore falls back to the user's own stability and no pitch or
	// note issue may fire.
	if res.Comparison != nil {
		t.Errorf("Comparison = %+v, want nil against a silent reference", res.Comparison)
	}
	if !res.NoteScore.NotEnoughData {
		t.Error("NoteScore.NotEnoughData = false against a silent reference")
	}
	for _, issue := range res.Coach.TopIssues {
		if issue.Category == IssuePitchAccuracy || issue.Category == IssueNoteIntonation {
			t.Errorf("issue %v fired without a comparison basis", issue.Category)
		}
	}
}

func TestAnalyzeAttemptCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewAnalyzer(analyzerTestConfig())
	_, err := a.AnalyzeAttempt(ctx, AttemptInput{
		RefSignal:  toneSignal(220, 0.4, 0.5, 44100),
		UserSignal: toneSignal(220, 0.4, 0.5, 44100),
	})
	if err == nil {
		t.Error("expected an error from a cancelled context")
	}
}

func TestNewAnalyzerDefaultsZeroEnvelopeStep(t *testing.T) {
	cfg := analyzerTestConfig()
	cfg.Align.EnvelopeStepMs = 0

	a := NewAnalyzer(cfg)
	if a.cfg.Align.EnvelopeStepMs != 50 {
		t.Fatalf("EnvelopeStepMs = %v, want default 50", a.cfg.Align.EnvelopeStepMs)
	}

	// With the default applied the envelopes are non-empty and offset
	// estimation produces a real method instead of silently degrading.
	res, err := a.AnalyzeAttempt(context.Background(), AttemptInput{
		RefSignal:  toneSignal(220, 0.4, 0.5, 44100),
		UserSignal: toneSignal(220, 0.4, 0.5, 44100),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Offset.Method == align.MethodNone {
		t.Errorf("Offset.Method = %q, want a real estimate", res.Offset.Method)
	}
}

func TestNewAnalyzerNilConfig(t *testing.T) {
	a := NewAnalyzer(nil)
	if a == nil || a.cfg == nil {
		t.Fatal("nil config must fall back to defaults")
	}
	if a.cfg.Contour.FrameSize != 2048 {
		t.Errorf("FrameSize = %d, want default 2048", a.cfg.Contour.FrameSize)
	}
}
