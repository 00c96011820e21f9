// Package coach turns raw attempt audio plus word-level alignment results
// into structured coaching feedback: subscores, prioritized issues, tips
// and a recommended practice drill. The DSP building blocks live under
// dsp/; this package owns the per-word diction features, the aggregation
// policy, the drill-session state machine and the live feedback loop.
package coach

// ReferenceWord is one word of the reference transcript with its timing,
// supplied by the transcription/alignment collaborator. Read-only input.
type ReferenceWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
	Index int     `json:"index"`
}

// ReferenceLine is one line of the reference transcript. Read-only input.
type ReferenceLine struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Index int     `json:"index"`
}

// WordStatus is the per-word alignment verdict from the transcription
// collaborator.
type WordStatus string

const (
	WordCorrect      WordStatus = "correct"
	WordCorrectEarly WordStatus = "correct_early"
	WordCorrectLate  WordStatus = "correct_late"
	WordIncorrect    WordStatus = "incorrect"
	WordMissed       WordStatus = "missed"
	WordExtraIgnored WordStatus = "extra_ignored"
)

// Correct reports whether the word was sung with recognizable content,
// regardless of timing.
func (s WordStatus) Correct() bool {
	return s == WordCorrect || s == WordCorrectEarly || s == WordCorrectLate
}

// WordFeedback is the alignment result for one reference word index.
// Read-only input.
type WordFeedback struct {
	Index      int        `json:"index"`
	Status     WordStatus `json:"status"`
	DeltaMs    float64    `json:"delta_ms,omitempty"`    // signed; positive = late
	Confidence float64    `json:"confidence,omitempty"`
}

// Subscores are the four headline scores of one attempt, each in [0, 100].
type Subscores struct {
	Word      float64 `json:"word"`
	Timing    float64 `json:"timing"`
	Pitch     float64 `json:"pitch"`
	Stability float64 `json:"stability"`
}

// IssueCategory identifies one coachable weak area.
type IssueCategory string

const (
	IssueRecordingQuality IssueCategory = "recording_quality"
	IssueWordAccuracy     IssueCategory = "word_accuracy"
	IssueDiction          IssueCategory = "diction"
	IssueNoteIntonation   IssueCategory = "note_intonation"
	IssuePitchAccuracy    IssueCategory = "pitch_accuracy"
	IssuePitchStability   IssueCategory = "pitch_stability"
	IssueTiming           IssueCategory = "timing"
	IssuePace             IssueCategory = "pace"
	IssueBreath           IssueCategory = "breath"
)

// Issue is one prioritized finding. TopIssues preserve evaluation order,
// not magnitude order.
type Issue struct {
	Category IssueCategory `json:"category"`
	Summary  string        `json:"summary"`
}

// BreathResult is the optional breath-support sub-result supplied by the
// orchestrating caller.
type BreathResult struct {
	Score         float64 `json:"score"` // 0-100
	LowConfidence bool    `json:"low_confidence"`
}

// Drill is one recommended practice exercise.
type Drill struct {
	Focus           DrillFocus `json:"focus"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	TargetLineIndex int        `json:"target_line_index"`
	RepeatCount     int        `json:"repeat_count"`
}

// CoachResult is the synthesized feedback for one attempt. It is
// constructed fresh per attempt and never merged across attempts.
type CoachResult struct {
	Subscores     Subscores `json:"subscores"`
	TopIssues     []Issue   `json:"top_issues"` // at most 3, evaluation order
	Tips          []string  `json:"tips"`       // at most 8
	Drill         *Drill    `json:"drill,omitempty"`
	LowConfidence bool      `json:"low_confidence"`
}
