package coach

import (
	"fmt"
	"math"

	"github.com/versecoach/versecoach/dsp/common"
	"github.com/versecoach/versecoach/dsp/contour"
	"github.com/versecoach/versecoach/dsp/notes"
)

// Issue thresholds. The evaluation order in Aggregate is part of
// observable behavior: issues are collected by walking a fixed priority
// chain and stopping at three, not by ranking magnitudes. Reordering the
// chain changes which drill users are sent to and needs product sign-off.
const (
	wordIssueThreshold      = 70.0
	dictionIssueThreshold   = 60.0
	noteIssueThreshold      = 70.0
	pitchIssueThreshold     = 70.0
	stabilityIssueThreshold = 65.0
	timingIssueThreshold    = 70.0
	paceIssueDeltaMs        = 250.0
	breathIssueThreshold    = 60.0

	maxTopIssues = 3
	maxTips      = 8
)

// AggregateInput collects the sub-results of one attempt. Comparison is
// nil when there was no pitch comparison basis; NoteScore, Diction and
// Breath are optional.
type AggregateInput struct {
	Words    []ReferenceWord
	Lines    []ReferenceLine
	Feedback []WordFeedback

	UserMetrics contour.Metrics
	Comparison  *contour.Comparison
	NoteScore   *notes.MatchScore
	Diction     *DictionCoach
	Breath      *BreathResult

	OffsetMs float64 // attempt-level temporal offset from dsp/align
}

// Aggregate is a pure function combining the sub-results of one attempt
// into subscores, at most three prioritized issues, tips and one
// recommended drill. When any upstream input signals low confidence it
// short-circuits to a single recording-quality issue and generates no
// other feedback for the attempt. A nil Comparison suppresses every
// pitch-related issue (bias and stability alike): the stability subscore
// is still reported, but without a reference there is no basis to coach
// pitch on.
func Aggregate(in AggregateInput) CoachResult {
	if lowConfidence(in) {
		return CoachResult{
			Subscores: Subscores{},
			TopIssues: []Issue{{
				Category: IssueRecordingQuality,
				Summary:  "The recording was too quiet or unclear to score reliably.",
			}},
			Tips: []string{
				"Move closer to the microphone and sing at full volume, then try again.",
			},
			LowConfidence: true,
		}
	}

	wordScore := wordAccuracyScore(in.Feedback)
	timingScore, meanAbsDeltaMs, medianDeltaMs := timingScores(in.Feedback)
	pitchScore := pitchSubscore(in)
	stabilityScore := common.Clamp(in.UserMetrics.StabilityScore, 0, 100)

	result := CoachResult{
		Subscores: Subscores{
			Word:      wordScore,
			Timing:    timingScore,
			Pitch:     pitchScore,
			Stability: stabilityScore,
		},
	}

	// Fixed priority chain; stop once three issues are collected.
	addIssue := func(cat IssueCategory, summary, tip string) {
		if len(result.TopIssues) < maxTopIssues {
			result.TopIssues = append(result.TopIssues, Issue{Category: cat, Summary: summary})
		}
		if len(result.Tips) < maxTips {
			result.Tips = append(result.Tips, tip)
		}
	}

	if wordScore < wordIssueThreshold {
		addIssue(IssueWordAccuracy,
			fmt.Sprintf("Only %.0f%% of the words came through correctly.", wordScore),
			"Read the lyric out loud a few times before singing it.")
	}
	if in.Diction != nil && !in.Diction.LowConfidence && in.Diction.ClarityScore < dictionIssueThreshold {
		addIssue(IssueDiction,
			fmt.Sprintf("Word clarity averaged %.0f/100.", in.Diction.ClarityScore),
			"Exaggerate consonants at word starts; crisp attacks carry the lyric.")
	}
	if in.NoteScore != nil && !in.NoteScore.NotEnoughData && in.NoteScore.NoteAccuracyScore < noteIssueThreshold {
		addIssue(IssueNoteIntonation,
			fmt.Sprintf("Matched notes averaged %.0f cents off their targets.", in.NoteScore.MedianAbsCentsOff),
			"Slow the phrase down and land each note before moving to the next.")
	}
	if in.Comparison != nil && in.Comparison.PitchAccuracyScore < pitchIssueThreshold {
		direction := "sharp"
		if in.Comparison.BiasCents < 0 {
			direction = "flat"
		}
		addIssue(IssuePitchAccuracy,
			fmt.Sprintf("Pitch ran %.0f cents %s of the reference on average.",
				math.Abs(in.Comparison.BiasCents), direction),
			"Hum along with the reference first to lock in the melody.")
	}
	if in.Comparison != nil && !in.UserMetrics.LowConfidence && stabilityScore < stabilityIssueThreshold {
		addIssue(IssuePitchStability,
			fmt.Sprintf("Held notes wavered (stability %.0f/100).", stabilityScore),
			"Practice sustaining single notes on a steady breath before the verse.")
	}
	if timingScore < timingIssueThreshold {
		addIssue(IssueTiming,
			fmt.Sprintf("Words landed %.0fms off the beat on average.", meanAbsDeltaMs),
			"Clap the rhythm of the line before singing it.")
	}
	if math.Abs(medianDeltaMs) > paceIssueDeltaMs {
		pace := "rushing ahead of"
		if medianDeltaMs > 0 {
			pace = "dragging behind"
		}
		addIssue(IssuePace,
			fmt.Sprintf("You were consistently %s the reference.", pace),
			"Sing with the reference at low volume until the pacing feels automatic.")
	}
	if in.Breath != nil && !in.Breath.LowConfidence && in.Breath.Score < breathIssueThreshold {
		addIssue(IssueBreath,
			fmt.Sprintf("Breath support scored %.0f/100.", in.Breath.Score),
			"Plan breath marks in the lyric and inhale low into the belly.")
	}

	result.Drill = pickDrill(result.TopIssues, in)
	return result
}

func lowConfidence(in AggregateInput) bool {
	if in.UserMetrics.LowConfidence {
		return true
	}
	if in.Diction != nil && in.Diction.LowConfidence {
		return true
	}
	if in.Breath != nil && in.Breath.LowConfidence {
		return true
	}
	return false
}

// wordAccuracyScore is the percentage of reference words sung with
// recognizable content. Extra words are ignored per their status.
func wordAccuracyScore(feedback []WordFeedback) float64 {
	total := 0
	correct := 0
	for _, fb := range feedback {
		if fb.Status == WordExtraIgnored {
			continue
		}
		total++
		if fb.Status.Correct() {
			correct++
		}
	}
	if total == 0 {
		return 0
	}
	return common.Clamp(100*float64(correct)/float64(total), 0, 100)
}

// timingScores reduces per-word deltas to a 0-100 score plus the mean
// absolute and median signed delta in milliseconds. Only words that were
// actually sung contribute.
func timingScores(feedback []WordFeedback) (score, meanAbs, medianSigned float64) {
	var deltas []float64
	for _, fb := range feedback {
		if fb.Status.Correct() {
			deltas = append(deltas, fb.DeltaMs)
		}
	}
	if len(deltas) == 0 {
		return 0, 0, 0
	}

	absDeltas := make([]float64, len(deltas))
	for i, d := range deltas {
		absDeltas[i] = math.Abs(d)
	}

	meanAbs = common.Mean(absDeltas)
	medianSigned = common.Median(deltas)
	score = common.Clamp(100-meanAbs/10, 0, 100)
	return score, meanAbs, medianSigned
}

// pitchSubscore prefers the reference comparison; without a comparison
// basis it falls back to the singer's own stability, which is the
// documented stability-only scoring path.
func pitchSubscore(in AggregateInput) float64 {
	if in.Comparison != nil {
		return common.Clamp(in.Comparison.PitchAccuracyScore, 0, 100)
	}
	return common.Clamp(in.UserMetrics.StabilityScore, 0, 100)
}

// pickDrill maps the first triggered issue to a drill using the same
// priority order as the issue chain. No issues means no drill.
func pickDrill(issues []Issue, in AggregateInput) *Drill {
	if len(issues) == 0 {
		return nil
	}

	line := worstLineIndex(in)
	switch issues[0].Category {
	case IssueWordAccuracy:
		return &Drill{
			Focus:           FocusWordAccuracy,
			Title:           "Lyric lock-in",
			Description:     "Speak the line slowly, then sing it at half tempo until every word lands.",
			TargetLineIndex: line,
			RepeatCount:     3,
		}
	case IssueDiction:
		return &Drill{
			Focus:           FocusDiction,
			Title:           "Consonant pops",
			Description:     "Sing the line overemphasizing every consonant attack.",
			TargetLineIndex: line,
			RepeatCount:     3,
		}
	case IssueNoteIntonation:
		return &Drill{
			Focus:           FocusNoteAccuracy,
			Title:           "Note landings",
			Description:     "Sing the phrase note by note, holding each until it settles in tune.",
			TargetLineIndex: line,
			RepeatCount:     3,
		}
	case IssuePitchAccuracy, IssuePitchStability:
		return &Drill{
			Focus:           FocusPitchError,
			Title:           "Melody trace",
			Description:     "Hum the melody with the reference, then sing it solo and compare.",
			TargetLineIndex: line,
			RepeatCount:     3,
		}
	case IssueTiming, IssuePace:
		return &Drill{
			Focus:           FocusTiming,
			Title:           "Beat anchor",
			Description:     "Clap the rhythm, then sing while tapping the beat.",
			TargetLineIndex: line,
			RepeatCount:     3,
		}
	case IssueBreath:
		return &Drill{
			Focus:           FocusBreath,
			Title:           "Breath mapping",
			Description:     "Mark breath points in the lyric and sing the line on planned breaths only.",
			TargetLineIndex: line,
			RepeatCount:     3,
		}
	default:
		return nil
	}
}

// worstLineIndex picks the line containing the most problem words, so the
// drill targets where the attempt actually broke down.
func worstLineIndex(in AggregateInput) int {
	if len(in.Lines) == 0 {
		return 0
	}

	wordByIndex := make(map[int]ReferenceWord, len(in.Words))
	for _, w := range in.Words {
		wordByIndex[w.Index] = w
	}

	counts := make(map[int]int)
	for _, fb := range in.Feedback {
		if fb.Status.Correct() || fb.Status == WordExtraIgnored {
			continue
		}
		w, ok := wordByIndex[fb.Index]
		if !ok {
			continue
		}
		for _, line := range in.Lines {
			if w.Start >= line.Start && w.Start < line.End {
				counts[line.Index]++
				break
			}
		}
	}

	best := in.Lines[0].Index
	bestCount := -1
	for _, line := range in.Lines {
		if counts[line.Index] > bestCount {
			bestCount = counts[line.Index]
			best = line.Index
		}
	}
	return best
}
