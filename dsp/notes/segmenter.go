package notes

import (
	"math"

	"github.com/versecoach/versecoach/dsp/common"
	"github.com/versecoach/versecoach/dsp/contour"
	"github.com/versecoach/versecoach/dsp/pitch"
)

// Default segmentation thresholds.
const (
	DefaultMaxGapSec   = 0.15 // voiced gap that closes the current note
	DefaultSplitCents  = 80.0 // pitch jump that starts a new note
	MinMatchOverlapSec = 0.08
)

// Note is one discrete sung note derived from a contour. Notes are views
// over the contour that produced them and are never mutated after Close.
type Note struct {
	Start     float64 `json:"start"`     // seconds
	End       float64 `json:"end"`       // seconds
	Midi      float64 `json:"midi"`      // continuous MIDI pitch (median of members)
	Name      string  `json:"note"`      // display name, e.g. "A4"
	Cents     int     `json:"cents"`     // deviation from the nearest semitone
	Stability int     `json:"stability"` // 0-100
}

// Duration returns the note length in seconds
func (n Note) Duration() float64 {
	return n.End - n.Start
}

// Match pairs a user note with the reference note it overlaps most.
type Match struct {
	User       Note    `json:"user"`
	Ref        Note    `json:"ref"`
	OverlapSec float64 `json:"overlap_sec"`
	CentsOff   float64 `json:"cents_off"` // signed, user minus reference
}

// MatchScore aggregates note-level intonation over the matched notes.
// NotEnoughData is true when there was no basis to score at all (zero
// user notes, zero reference notes, or no overlapping pair); its other
// fields are zero and must not be read as a real score.
type MatchScore struct {
	NoteAccuracyScore float64 `json:"note_accuracy_score"` // 0-100
	MedianAbsCentsOff float64 `json:"median_abs_cents_off"`
	PctWithin50Cents  float64 `json:"pct_within_50_cents"` // 0-1
	MatchedCount      int     `json:"matched_count"`
	NotEnoughData     bool    `json:"not_enough_data"`
}

// Segmenter groups contiguous voiced frames of a contour into notes.
type Segmenter struct {
	maxGapSec  float64
	splitCents float64
}

// NewSegmenter creates a segmenter with default thresholds
func NewSegmenter() *Segmenter {
	return &Segmenter{
		maxGapSec:  DefaultMaxGapSec,
		splitCents: DefaultSplitCents,
	}
}

// NewSegmenterWithThresholds creates a segmenter with custom thresholds.
// Non-positive values fall back to the defaults.
func NewSegmenterWithThresholds(maxGapSec, splitCents float64) *Segmenter {
	s := NewSegmenter()
	if maxGapSec > 0 {
		s.maxGapSec = maxGapSec
	}
	if splitCents > 0 {
		s.splitCents = splitCents
	}
	return s
}

// Segment walks the contour in time order and produces discrete notes.
// A new note starts when the voiced gap exceeds the gap threshold or the
// pitch jumps by more than the split threshold.
func (s *Segmenter) Segment(c contour.Contour) []Note {
	notes := []Note{}

	var memberMidis []float64
	var memberTimes []float64
	lastT := 0.0
	lastMidi := 0.0

	flush := func() {
		if len(memberMidis) == 0 {
			return
		}
		notes = append(notes, closeNote(memberMidis, memberTimes, c.HopSec))
		memberMidis = nil
		memberTimes = nil
	}

	for _, f := range c.Frames {
		if !f.Voiced {
			continue
		}

		midi := pitch.MidiFromHz(f.F0)
		if len(memberMidis) > 0 {
			gap := f.T - lastT
			jumpCents := math.Abs(midi-lastMidi) * 100
			if gap > s.maxGapSec || jumpCents > s.splitCents {
				flush()
			}
		}

		memberMidis = append(memberMidis, midi)
		memberTimes = append(memberTimes, f.T)
		lastT = f.T
		lastMidi = midi
	}
	flush()

	return notes
}

// closeNote reduces member frames to one note: the pitch is the median of
// member pitches, the displayed cents is the median's deviation from the
// nearest semitone, and stability reflects how tightly members cluster
// around that median.
func closeNote(midis, times []float64, hopSec float64) Note {
	median := common.Median(midis)

	devCents := make([]float64, len(midis))
	for i, m := range midis {
		devCents[i] = (m - median) * 100
	}

	return Note{
		Start:     times[0],
		End:       times[len(times)-1] + hopSec,
		Midi:      median,
		Name:      pitch.NoteName(median),
		Cents:     int(math.Round((median - math.Round(median)) * 100)),
		Stability: int(common.Clamp(100-1.2*common.PopStdDev(devCents), 0, 100)),
	}
}

// MatchNotes pairs each user note with the reference note it overlaps
// most in time, discarding pairs overlapping less than minOverlapSec.
// Pass 0 to use the default minimum.
func MatchNotes(user, ref []Note, minOverlapSec float64) []Match {
	if minOverlapSec <= 0 {
		minOverlapSec = MinMatchOverlapSec
	}

	matches := []Match{}
	for _, u := range user {
		bestIdx := -1
		bestOverlap := 0.0
		for i, r := range ref {
			overlap := math.Min(u.End, r.End) - math.Max(u.Start, r.Start)
			if overlap > bestOverlap {
				bestOverlap = overlap
				bestIdx = i
			}
		}
		if bestIdx < 0 || bestOverlap < minOverlapSec {
			continue
		}

		r := ref[bestIdx]
		matches = append(matches, Match{
			User:       u,
			Ref:        r,
			OverlapSec: bestOverlap,
			CentsOff:   (u.Midi - r.Midi) * 100,
		})
	}

	return matches
}

// ScoreMatches reduces matched note pairs to a single intonation score.
func ScoreMatches(matches []Match) MatchScore {
	if len(matches) == 0 {
		return MatchScore{NotEnoughData: true}
	}

	absOff := make([]float64, len(matches))
	within50 := 0
	for i, m := range matches {
		absOff[i] = math.Abs(m.CentsOff)
		if absOff[i] <= 50 {
			within50++
		}
	}

	medAbs := common.Median(absOff)
	pct50 := float64(within50) / float64(len(matches))

	return MatchScore{
		NoteAccuracyScore: common.Clamp(100-0.9*medAbs-25*(1-pct50), 0, 100),
		MedianAbsCentsOff: medAbs,
		PctWithin50Cents:  pct50,
		MatchedCount:      len(matches),
	}
}

// SegmentAndScore is the full note pipeline: segment both contours, match
// and score. Zero user or reference notes yield a not-enough-data score.
func (s *Segmenter) SegmentAndScore(user, ref contour.Contour) ([]Note, []Note, MatchScore) {
	userNotes := s.Segment(user)
	refNotes := s.Segment(ref)

	if len(userNotes) == 0 || len(refNotes) == 0 {
		return userNotes, refNotes, MatchScore{NotEnoughData: true}
	}

	return userNotes, refNotes, ScoreMatches(MatchNotes(userNotes, refNotes, 0))
}
