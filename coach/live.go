package coach

import (
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/versecoach/versecoach/dsp/common"
	"github.com/versecoach/versecoach/dsp/pitch"
	"github.com/versecoach/versecoach/logging"
)

// ErrLoopStarted is returned when Start is called twice.
var ErrLoopStarted = errors.New("live feedback loop already started")

// FrameSource supplies short audio frames during live capture. ReadFrame
// returns the next frame; io.EOF ends the loop cleanly. The live-capture
// collaborator owns the underlying device.
type FrameSource interface {
	ReadFrame() ([]float64, error)
	SampleRate() int
}

// LiveMetrics is one per-tick feedback sample.
type LiveMetrics struct {
	TimeSec  float64 `json:"time_sec"`
	F0       float64 `json:"f0"`        // 0 when unvoiced
	CentsOff float64 `json:"cents_off"` // vs the reference median, 0 when unvoiced
	Level    float64 `json:"level"`     // frame RMS
	Label    string  `json:"label"`     // "on pitch", "sharp", "flat", "quiet", "unvoiced"
	Tip      string  `json:"tip"`       // debounced, may be empty
}

// LiveListener receives per-tick metrics. Called from the loop goroutine;
// a tick does not begin until the previous listener call returned.
type LiveListener func(LiveMetrics)

// LiveConfig tunes the live feedback loop.
type LiveConfig struct {
	TickHz         float64 `json:"tick_hz" yaml:"tick_hz"`
	RefMedianF0    float64 `json:"ref_median_f0" yaml:"ref_median_f0"`
	PitchWindowSec float64 `json:"pitch_window_sec" yaml:"pitch_window_sec"`
	OnsetWindowSec float64 `json:"onset_window_sec" yaml:"onset_window_sec"`
	TipDebounceMs  float64 `json:"tip_debounce_ms" yaml:"tip_debounce_ms"`
	QuietRMSFloor  float64 `json:"quiet_rms_floor" yaml:"quiet_rms_floor"`

	Words []ReferenceWord `json:"-" yaml:"-"`
	Lines []ReferenceLine `json:"-" yaml:"-"`
}

// DefaultLiveConfig returns the default live loop tuning
func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		TickHz:         15,
		PitchWindowSec: 1.4,
		OnsetWindowSec: 2.5,
		TipDebounceMs:  500,
		QuietRMSFloor:  0.01,
	}
}

// Pitch label band: within this many cents of the reference counts as on
// pitch.
const liveOnPitchCents = 25.0

// Maximum distance from a word start for an energy onset to count as that
// word's attack.
const liveOnsetMatchSec = 0.4

type timedSample struct {
	t float64
	v float64
}

// LiveFeedbackLoop emits low-latency pitch/timing/energy feedback during
// capture. It is a single-goroutine cooperative loop pumped by a fixed
// rate ticker: one frame is read per tick, rolling windows smooth the
// labels, and tips are debounced so the display does not flap. The loop
// is not re-entrant; a tick runs only after the previous tick's listener
// callback returned.
type LiveFeedbackLoop struct {
	cfg       LiveConfig
	source    FrameSource
	listener  LiveListener
	estimator *pitch.Estimator
	logger    logging.Logger

	pitchErrs    []timedSample // cents error, time-bounded
	onsetOffsets []timedSample // onset offset in ms, time-bounded
	wasQuiet     bool

	committedTip string
	pendingTip   string
	pendingSince float64
	hasPending   bool

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewLiveFeedbackLoop creates a live loop. Zero-valued config fields fall
// back to the defaults.
func NewLiveFeedbackLoop(cfg LiveConfig, source FrameSource, listener LiveListener) *LiveFeedbackLoop {
	def := DefaultLiveConfig()
	if cfg.TickHz <= 0 {
		cfg.TickHz = def.TickHz
	}
	if cfg.PitchWindowSec <= 0 {
		cfg.PitchWindowSec = def.PitchWindowSec
	}
	if cfg.OnsetWindowSec <= 0 {
		cfg.OnsetWindowSec = def.OnsetWindowSec
	}
	if cfg.TipDebounceMs <= 0 {
		cfg.TipDebounceMs = def.TipDebounceMs
	}
	if cfg.QuietRMSFloor <= 0 {
		cfg.QuietRMSFloor = def.QuietRMSFloor
	}

	return &LiveFeedbackLoop{
		cfg:       cfg,
		source:    source,
		listener:  listener,
		estimator: pitch.NewEstimator(),
		logger:    logging.WithFields(logging.Fields{"component": "live_feedback_loop"}),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
		wasQuiet:  true,
	}
}

// Start launches the loop goroutine. The loop runs until Stop is called
// or the source returns io.EOF.
func (l *LiveFeedbackLoop) Start() error {
	if l.started {
		return ErrLoopStarted
	}
	l.started = true

	interval := time.Duration(float64(time.Second) / l.cfg.TickHz)
	go func() {
		defer close(l.doneCh)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		tickSec := 1 / l.cfg.TickHz
		now := 0.0
		for {
			select {
			case <-l.stopCh:
				return
			case <-ticker.C:
				if !l.tick(now) {
					return
				}
				now += tickSec
			}
		}
	}()

	return nil
}

// Stop cancels the pending tick and detaches the loop. It is idempotent
// and safe to call before Start; after Stop returns, no further listener
// callbacks fire.
func (l *LiveFeedbackLoop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
	if l.started {
		<-l.doneCh
	}
}

// tick processes one frame. Returns false when the source is exhausted.
func (l *LiveFeedbackLoop) tick(now float64) bool {
	frame, err := l.source.ReadFrame()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			l.logger.Error(err, "frame source failed")
		}
		return false
	}

	level := common.RMS(frame)
	f0 := l.estimator.Estimate(frame, l.source.SampleRate())

	centsOff := 0.0
	if f0 > 0 && l.cfg.RefMedianF0 > 0 {
		centsOff = pitch.CentsOff(f0, l.cfg.RefMedianF0)
		l.pitchErrs = append(l.pitchErrs, timedSample{t: now, v: centsOff})
	}
	l.trimWindows(now)
	l.trackOnset(now, level)

	label := l.label(level, f0)
	tip := l.debounceTip(now, l.tipFor(label, now))

	l.listener(LiveMetrics{
		TimeSec:  now,
		F0:       f0,
		CentsOff: centsOff,
		Level:    level,
		Label:    label,
		Tip:      tip,
	})

	return true
}

// trimWindows pops entries older than each window's age bound.
func (l *LiveFeedbackLoop) trimWindows(now float64) {
	for len(l.pitchErrs) > 0 && now-l.pitchErrs[0].t > l.cfg.PitchWindowSec {
		l.pitchErrs = l.pitchErrs[1:]
	}
	for len(l.onsetOffsets) > 0 && now-l.onsetOffsets[0].t > l.cfg.OnsetWindowSec {
		l.onsetOffsets = l.onsetOffsets[1:]
	}
}

// trackOnset records the offset to the nearest reference word start when
// the level rises out of silence.
func (l *LiveFeedbackLoop) trackOnset(now float64, level float64) {
	quiet := level < l.cfg.QuietRMSFloor
	defer func() { l.wasQuiet = quiet }()

	if quiet || !l.wasQuiet {
		return
	}

	// Tick timestamps accumulate float error, so the match bound carries a
	// small tolerance rather than a strict comparison.
	bestDelta := math.Inf(1)
	found := false
	for _, w := range l.cfg.Words {
		delta := now - w.Start
		if math.Abs(delta) <= liveOnsetMatchSec+1e-9 && math.Abs(delta) < math.Abs(bestDelta) {
			bestDelta = delta
			found = true
		}
	}
	if found {
		l.onsetOffsets = append(l.onsetOffsets, timedSample{t: now, v: bestDelta * 1000})
	}
}

// label classifies the current tick from the smoothed pitch error.
func (l *LiveFeedbackLoop) label(level, f0 float64) string {
	if level < l.cfg.QuietRMSFloor {
		return "quiet"
	}
	if f0 <= 0 || l.cfg.RefMedianF0 <= 0 {
		return "unvoiced"
	}

	errs := make([]float64, len(l.pitchErrs))
	for i, s := range l.pitchErrs {
		errs[i] = s.v
	}
	mean := common.Mean(errs)

	switch {
	case mean > liveOnPitchCents:
		return "sharp"
	case mean < -liveOnPitchCents:
		return "flat"
	default:
		return "on pitch"
	}
}

// tipFor picks the candidate tip for this tick. Timing tips take over
// when the smoothed onset offset drifts far from the reference.
func (l *LiveFeedbackLoop) tipFor(label string, now float64) string {
	if len(l.onsetOffsets) >= 2 {
		offsets := make([]float64, len(l.onsetOffsets))
		for i, s := range l.onsetOffsets {
			offsets[i] = s.v
		}
		median := common.Median(offsets)
		if median > 150 {
			return "You're running behind - come in sooner."
		}
		if median < -150 {
			return "You're rushing - wait for the beat."
		}
	}

	switch label {
	case "quiet":
		return "Sing louder."
	case "sharp":
		return "Ease down, you're sharp."
	case "flat":
		return "Lift the pitch, you're flat."
	default:
		return ""
	}
}

// debounceTip is a two-slot state machine: a candidate must persist for
// the debounce interval before it replaces the committed tip. The empty
// candidate (clearing the tip) goes through the same debounce, so the
// pending slot is tracked explicitly rather than by sentinel value.
func (l *LiveFeedbackLoop) debounceTip(now float64, candidate string) string {
	if candidate == l.committedTip {
		l.hasPending = false
		return l.committedTip
	}

	if !l.hasPending || candidate != l.pendingTip {
		l.pendingTip = candidate
		l.pendingSince = now
		l.hasPending = true
		return l.committedTip
	}

	if (now-l.pendingSince)*1000 >= l.cfg.TipDebounceMs {
		l.committedTip = candidate
		l.hasPending = false
	}
	return l.committedTip
}
