package coach

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/versecoach/versecoach/dsp/align"
	"github.com/versecoach/versecoach/dsp/contour"
	"github.com/versecoach/versecoach/dsp/notes"
	"github.com/versecoach/versecoach/dsp/pitch"
	"github.com/versecoach/versecoach/logging"
)

// AttemptInput is everything the orchestrating collaborator supplies for
// one completed attempt: decoded audio for both recordings plus the
// transcript timing and alignment verdicts. All inputs are read-only.
type AttemptInput struct {
	RefSignal  contour.Signal
	UserSignal contour.Signal
	Words      []ReferenceWord
	Lines      []ReferenceLine
	Feedback   []WordFeedback
	Breath     *BreathResult // optional external sub-result
}

// AttemptResult bundles the coaching feedback with every sub-result so
// the caller can render details or cache contours keyed by its own
// source ids.
type AttemptResult struct {
	Coach CoachResult `json:"coach"`

	RefContour  contour.Contour     `json:"ref_contour"`
	UserContour contour.Contour     `json:"user_contour"`
	RefMetrics  contour.Metrics     `json:"ref_metrics"`
	UserMetrics contour.Metrics     `json:"user_metrics"`
	Comparison  *contour.Comparison `json:"comparison,omitempty"`

	UserNotes []notes.Note     `json:"user_notes"`
	RefNotes  []notes.Note     `json:"ref_notes"`
	NoteScore notes.MatchScore `json:"note_score"`

	Diction DictionCoach `json:"diction"`
	Offset  align.Result `json:"offset"`
}

// Analyzer runs the full batch pipeline for one attempt. Its component
// parts are pure, so an Analyzer is safe to reuse across attempts and
// goroutines.
type Analyzer struct {
	cfg       *Config
	extractor *contour.Extractor
	segmenter *notes.Segmenter
	aligner   *align.Estimator
	diction   *DictionScorer
	logger    logging.Logger
}

// NewAnalyzer creates an analyzer; a nil config uses the defaults.
func NewAnalyzer(cfg *Config) *Analyzer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.withDefaults()

	estimator := pitch.NewEstimatorWithThresholds(cfg.Pitch.VoicedRMSFloor, cfg.Pitch.ClipThreshold)

	return &Analyzer{
		cfg: cfg,
		extractor: contour.NewExtractorWithEstimator(
			cfg.Contour.FrameSize, cfg.Contour.HopSize, cfg.Contour.RMSFloor, estimator),
		segmenter: notes.NewSegmenterWithThresholds(cfg.Segmenter.MaxGapSec, cfg.Segmenter.SplitCents),
		aligner:   align.NewEstimatorWithWindow(cfg.Align.MaxOffsetMs),
		diction:   NewDictionScorer(),
		logger:    logging.WithFields(logging.Fields{"component": "analyzer"}),
	}
}

// AnalyzeAttempt scores one completed attempt against the reference and
// synthesizes coaching feedback. Contour and envelope extraction for the
// two recordings run concurrently; everything downstream is cheap enough
// to stay sequential. The context aborts the work between stages.
func (a *Analyzer) AnalyzeAttempt(ctx context.Context, in AttemptInput) (*AttemptResult, error) {
	res := &AttemptResult{}

	stepSec := a.cfg.Align.EnvelopeStepMs / 1000
	var refEnv, userEnv []float64

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		res.RefContour = a.extractor.Extract(in.RefSignal, 0, in.RefSignal.Duration())
		return nil
	})
	g.Go(func() error {
		res.UserContour = a.extractor.Extract(in.UserSignal, 0, in.UserSignal.Duration())
		return nil
	})
	g.Go(func() error {
		refEnv = contour.EnergyEnvelope(in.RefSignal, stepSec)
		return nil
	})
	g.Go(func() error {
		userEnv = contour.EnergyEnvelope(in.UserSignal, stepSec)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.RefMetrics = contour.ComputeMetrics(res.RefContour)
	res.UserMetrics = contour.ComputeMetrics(res.UserContour)
	res.Comparison = contour.Compare(res.UserContour, res.RefContour)
	res.UserNotes, res.RefNotes, res.NoteScore = a.segmenter.SegmentAndScore(res.UserContour, res.RefContour)
	res.Offset = a.aligner.Estimate(refEnv, userEnv, a.cfg.Align.EnvelopeStepMs)
	res.Diction = a.diction.Score(in.UserSignal, in.Words, in.Feedback)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Coach = Aggregate(AggregateInput{
		Words:       in.Words,
		Lines:       in.Lines,
		Feedback:    in.Feedback,
		UserMetrics: res.UserMetrics,
		Comparison:  res.Comparison,
		NoteScore:   &res.NoteScore,
		Diction:     &res.Diction,
		Breath:      in.Breath,
		OffsetMs:    res.Offset.OffsetMs,
	})

	a.logger.Debug("attempt analyzed", logging.Fields{
		"frames":        len(res.UserContour.Frames),
		"voiced_pct":    res.UserMetrics.VoicedPct,
		"offset_ms":     res.Offset.OffsetMs,
		"offset_method": string(res.Offset.Method),
	})

	return res, nil
}
