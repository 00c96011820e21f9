package coach

import (
	"errors"
	"fmt"
	"math"
)

// DrillFocus selects the weak area a drill session works on. Each focus
// carries a deterministic pass condition.
type DrillFocus string

const (
	FocusWordAccuracy DrillFocus = "word_accuracy_up"
	FocusTiming       DrillFocus = "timing_down"
	FocusPitchError   DrillFocus = "pitch_error_down"
	FocusDiction      DrillFocus = "diction_up"
	FocusBreath       DrillFocus = "breath_up"
	FocusNoteAccuracy DrillFocus = "note_accuracy_up"
)

// DrillStatus is the session state. Sessions are created active and end
// in exactly one terminal state.
type DrillStatus string

const (
	DrillActive DrillStatus = "active"
	DrillPassed DrillStatus = "passed"
	DrillFailed DrillStatus = "failed"
)

// ErrSessionFinished is returned when a rep is appended to a session
// already in a terminal state.
var ErrSessionFinished = errors.New("drill session already finished")

// ErrUnknownFocus is returned when a session is created with a focus that
// has no pass condition.
var ErrUnknownFocus = errors.New("unknown drill focus")

// Session-level guard thresholds, checked before the metric itself.
const (
	guardMinVoicedPct  = 0.25
	guardMinCoverage   = 0.5
	pitchBiasThreshold = 25.0 // cents
	pitchBiasMinGain   = 10.0 // cents of required bias improvement
)

// PassCondition is the numeric rule a rep must satisfy. A rep passes by
// meeting the absolute target, or (from the second rep on) by improving
// over the session's first rep by MinImprovement.
type PassCondition struct {
	Metric         string  `json:"metric"`
	Target         float64 `json:"target"`
	MinImprovement float64 `json:"min_improvement"`
	LowerIsBetter  bool    `json:"lower_is_better"`
}

// RepInput carries the metrics of one repeated attempt. Only the fields
// relevant to the session's focus are read.
type RepInput struct {
	WordScore         float64 // 0-100
	MissedWords       int
	ExtraWords        int
	MeanAbsDeltaMs    float64
	MedianAbsErrCents float64
	BiasCents         float64
	VoicedPct         float64 // 0-1
	Coverage          float64 // 0-1, fraction of the line actually attempted
	DictionScore      float64 // 0-100
	DictionLowConf    bool
	BreathScore       float64 // 0-100
	NoteScore         float64 // 0-100
}

// RepResult records the evaluation of one rep. Guard holds the guard
// that forced a fail, distinct from a metric miss.
type RepResult struct {
	Rep     int     `json:"rep"`
	Metric  float64 `json:"metric"`
	Passed  bool    `json:"passed"`
	Guard   string  `json:"guard,omitempty"`
	Summary string  `json:"summary"`
}

// DrillSession tracks repeated attempts at one drill until the singer
// passes or runs out of reps. It is mutated only by the orchestrating
// caller appending one rep at a time; it owns no timers and does no I/O.
type DrillSession struct {
	Focus           DrillFocus    `json:"focus"`
	Title           string        `json:"title"`
	TargetLineIndex int           `json:"target_line_index"`
	RepeatCount     int           `json:"repeat_count"`
	CurrentRep      int           `json:"current_rep"`
	Pass            PassCondition `json:"pass_condition"`
	Reps            []RepResult   `json:"reps"`
	Status          DrillStatus   `json:"status"`

	first *RepInput // baseline for improvement deltas
}

// NewDrillSession creates an active session for the given focus. The pass
// condition is selected deterministically from the focus category.
func NewDrillSession(focus DrillFocus, title string, targetLineIndex, repeatCount int) (*DrillSession, error) {
	cond, ok := passConditions[focus]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFocus, focus)
	}
	if repeatCount < 1 {
		repeatCount = 3
	}

	return &DrillSession{
		Focus:           focus,
		Title:           title,
		TargetLineIndex: targetLineIndex,
		RepeatCount:     repeatCount,
		Pass:            cond,
		Reps:            []RepResult{},
		Status:          DrillActive,
	}, nil
}

var passConditions = map[DrillFocus]PassCondition{
	FocusWordAccuracy: {Metric: "word_score", Target: 85, MinImprovement: 10},
	FocusTiming:       {Metric: "mean_abs_delta_ms", Target: 120, MinImprovement: 60, LowerIsBetter: true},
	FocusPitchError:   {Metric: "median_abs_err_cents", Target: 35, MinImprovement: 15, LowerIsBetter: true},
	FocusDiction:      {Metric: "diction_score", Target: 70, MinImprovement: 10},
	FocusBreath:       {Metric: "breath_score", Target: 70, MinImprovement: 10},
	FocusNoteAccuracy: {Metric: "note_score", Target: 75, MinImprovement: 10},
}

// AppendRep evaluates one repeated attempt and advances the state
// machine. Guards fail the rep before the metric is considered; the
// first passing rep ends the session as passed; exhausting RepeatCount
// without a pass ends it as failed.
func (s *DrillSession) AppendRep(in RepInput) (RepResult, error) {
	if s.Status != DrillActive {
		return RepResult{}, ErrSessionFinished
	}

	s.CurrentRep++
	metric := s.metricValue(in)

	res := RepResult{Rep: s.CurrentRep, Metric: metric}

	if guard := s.checkGuards(in); guard != "" {
		res.Guard = guard
		res.Summary = fmt.Sprintf("Rep %d not evaluated: %s.", s.CurrentRep, guard)
	} else {
		res.Passed = s.evaluate(metric, in)
		if res.Passed {
			res.Summary = fmt.Sprintf("Rep %d passed (%s %.1f).", s.CurrentRep, s.Pass.Metric, metric)
		} else {
			res.Summary = fmt.Sprintf("Rep %d missed the target (%s %.1f, target %.1f).",
				s.CurrentRep, s.Pass.Metric, metric, s.Pass.Target)
		}
	}

	if s.first == nil {
		snapshot := in
		s.first = &snapshot
	}

	s.Reps = append(s.Reps, res)

	if res.Passed {
		s.Status = DrillPassed
	} else if s.CurrentRep >= s.RepeatCount {
		s.Status = DrillFailed
	}

	return res, nil
}

// ForceFail ends the session as failed, used when the caller switches
// focus before the reps run out. No-op on finished sessions.
func (s *DrillSession) ForceFail(reason string) {
	if s.Status != DrillActive {
		return
	}
	s.Status = DrillFailed
	s.Reps = append(s.Reps, RepResult{
		Rep:     s.CurrentRep,
		Guard:   "forced",
		Summary: reason,
	})
}

func (s *DrillSession) metricValue(in RepInput) float64 {
	switch s.Focus {
	case FocusWordAccuracy:
		return in.WordScore
	case FocusTiming:
		return in.MeanAbsDeltaMs
	case FocusPitchError:
		return in.MedianAbsErrCents
	case FocusDiction:
		return in.DictionScore
	case FocusBreath:
		return in.BreathScore
	case FocusNoteAccuracy:
		return in.NoteScore
	default:
		return 0
	}
}

// checkGuards returns a guard name when the rep cannot be evaluated at
// all. Guards are reported distinctly from metric misses.
func (s *DrillSession) checkGuards(in RepInput) string {
	if in.Coverage > 0 && in.Coverage < guardMinCoverage {
		return "stopped too early to evaluate"
	}
	if s.Focus == FocusPitchError && in.VoicedPct < guardMinVoicedPct {
		return "not enough voiced singing to measure pitch"
	}
	if s.Focus == FocusDiction && in.DictionLowConf {
		return "diction confidence too low"
	}
	return ""
}

func (s *DrillSession) evaluate(metric float64, in RepInput) bool {
	passed := s.meetsTarget(metric) || s.improvedEnough(metric)

	// Word focus also requires the missed/extra counts to shrink against
	// the first rep when a baseline exists.
	if passed && s.Focus == FocusWordAccuracy && s.first != nil {
		baseline := s.first.MissedWords + s.first.ExtraWords
		if baseline > 0 && in.MissedWords+in.ExtraWords >= baseline {
			passed = false
		}
	}

	// Pitch focus re-fails a rep whose bias is still out of bounds unless
	// the bias itself improved by the fixed amount.
	if passed && s.Focus == FocusPitchError && math.Abs(in.BiasCents) > pitchBiasThreshold {
		improved := s.first != nil &&
			math.Abs(s.first.BiasCents)-math.Abs(in.BiasCents) >= pitchBiasMinGain
		if !improved {
			passed = false
		}
	}

	return passed
}

func (s *DrillSession) meetsTarget(metric float64) bool {
	if s.Pass.LowerIsBetter {
		return metric <= s.Pass.Target
	}
	return metric >= s.Pass.Target
}

// improvedEnough compares against the session's first rep; the first rep
// itself can only pass on the absolute target.
func (s *DrillSession) improvedEnough(metric float64) bool {
	if s.first == nil {
		return false
	}

	baseline := s.metricValue(*s.first)
	if s.Pass.LowerIsBetter {
		return baseline-metric >= s.Pass.MinImprovement
	}
	return metric-baseline >= s.Pass.MinImprovement
}
