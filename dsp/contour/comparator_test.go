package contour

import (
	"math"
	"testing"
)

func TestCompareSharpBias(t *testing.T) {
	hop := 0.01
	ref := make([]float64, 100)
	user := make([]float64, 100)
	for i := range ref {
		ref[i] = 220
		user[i] = 220 * math.Pow(2, 20.0/1200) // consistently 20 cents sharp
	}

	c := Compare(makeContour(user, hop), makeContour(ref, hop))
	if c == nil {
		t.Fatal("expected a comparison result")
	}

	if math.Abs(c.BiasCents-20) > 0.1 {
		t.Errorf("BiasCents = %v, want ~20", c.BiasCents)
	}
	if math.Abs(c.MedianAbsErrorCents-20) > 0.1 {
		t.Errorf("MedianAbsErrorCents = %v, want ~20", c.MedianAbsErrorCents)
	}
	if c.PctWithin50Cents != 1 || c.PctWithin100Cents != 1 {
		t.Errorf("pct within = %v / %v, want 1 / 1", c.PctWithin50Cents, c.PctWithin100Cents)
	}
	// 100 - 1.2*20 - 30*0 = 76
	if math.Abs(c.PitchAccuracyScore-76) > 0.2 {
		t.Errorf("PitchAccuracyScore = %v, want ~76", c.PitchAccuracyScore)
	}
	if c.OverlapPct != 1 {
		t.Errorf("OverlapPct = %v, want 1", c.OverlapPct)
	}
}

func TestCompareFlatBiasIsNegative(t *testing.T) {
	hop := 0.01
	ref := make([]float64, 50)
	user := make([]float64, 50)
	for i := range ref {
		ref[i] = 330
		user[i] = 330 * math.Pow(2, -35.0/1200)
	}

	c := Compare(makeContour(user, hop), makeContour(ref, hop))
	if c == nil {
		t.Fatal("expected a comparison result")
	}
	if math.Abs(c.BiasCents+35) > 0.1 {
		t.Errorf("BiasCents = %v, want ~-35", c.BiasCents)
	}
}

func TestCompareNoVoicedOverlap(t *testing.T) {
	hop := 0.01

	// Reference is entirely unvoiced; user is 80% voiced.
	ref := make([]float64, 100)
	user := make([]float64, 100)
	for i := 0; i < 80; i++ {
		user[i] = 220
	}

	if c := Compare(makeContour(user, hop), makeContour(ref, hop)); c != nil {
		t.Errorf("expected nil comparison against silent reference, got %+v", c)
	}

	// Empty contours likewise.
	if c := Compare(Contour{}, makeContour(ref, hop)); c != nil {
		t.Error("expected nil comparison for empty user contour")
	}
	if c := Compare(makeContour(user, hop), Contour{}); c != nil {
		t.Error("expected nil comparison for empty reference contour")
	}
}

func TestCompareDisjointVoicing(t *testing.T) {
	hop := 0.01
	// User voiced only where reference is unvoiced.
	ref := make([]float64, 100)
	user := make([]float64, 100)
	for i := range ref {
		if i < 50 {
			ref[i] = 220
		} else {
			user[i] = 220
		}
	}

	if c := Compare(makeContour(user, hop), makeContour(ref, hop)); c != nil {
		t.Errorf("expected nil comparison for disjoint voicing, got %+v", c)
	}
}

func TestCompareScoreClamped(t *testing.T) {
	hop := 0.01
	ref := make([]float64, 50)
	user := make([]float64, 50)
	for i := range ref {
		ref[i] = 220
		user[i] = 440 // a full octave off
	}

	c := Compare(makeContour(user, hop), makeContour(ref, hop))
	if c == nil {
		t.Fatal("expected a comparison result")
	}
	if c.PitchAccuracyScore != 0 {
		t.Errorf("PitchAccuracyScore = %v, want clamped to 0", c.PitchAccuracyScore)
	}
	if math.IsNaN(c.BiasCents) || math.IsInf(c.BiasCents, 0) {
		t.Errorf("BiasCents = %v", c.BiasCents)
	}
}

func TestCompareIdempotent(t *testing.T) {
	hop := 0.01
	ref := make([]float64, 60)
	user := make([]float64, 60)
	for i := range ref {
		ref[i] = 220 + float64(i%5)
		user[i] = 222 + float64(i%3)
	}

	a := Compare(makeContour(user, hop), makeContour(ref, hop))
	b := Compare(makeContour(user, hop), makeContour(ref, hop))
	if a == nil || b == nil {
		t.Fatal("expected comparison results")
	}
	if *a != *b {
		t.Errorf("Compare not deterministic: %+v vs %+v", *a, *b)
	}
}
