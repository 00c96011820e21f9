package pitch

import (
	"fmt"
	"math"
)

// All note names in chromatic order
var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// CentsOff returns the signed pitch difference from ref to f in cents
// (100 cents = one semitone). Non-positive frequencies yield 0.
func CentsOff(f, ref float64) float64 {
	if f <= 0 || ref <= 0 {
		return 0
	}
	return 1200 * math.Log2(f/ref)
}

// MidiFromHz converts a frequency to a continuous MIDI pitch number
// (A4 = 440 Hz = 69). Non-positive frequencies yield 0.
func MidiFromHz(f float64) float64 {
	if f <= 0 {
		return 0
	}
	return 69 + 12*math.Log2(f/440)
}

// HzFromMidi converts a MIDI pitch number to a frequency in Hz
func HzFromMidi(midi float64) float64 {
	return 440 * math.Pow(2, (midi-69)/12)
}

// NoteName returns the display name for a continuous MIDI pitch, e.g.
// "A4" or "F#3", rounding to the nearest semitone.
func NoteName(midi float64) string {
	rounded := int(math.Round(midi))
	idx := ((rounded % 12) + 12) % 12
	octave := rounded/12 - 1
	return fmt.Sprintf("%s%d", noteNames[idx], octave)
}
