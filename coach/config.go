package coach

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every config validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// ContourConfig tunes contour extraction framing.
type ContourConfig struct {
	FrameSize int     `json:"frame_size" yaml:"frame_size"`
	HopSize   int     `json:"hop_size" yaml:"hop_size"`
	RMSFloor  float64 `json:"rms_floor" yaml:"rms_floor"`
}

// PitchConfig tunes the frame-level pitch estimator gates.
type PitchConfig struct {
	VoicedRMSFloor float64 `json:"voiced_rms_floor" yaml:"voiced_rms_floor"`
	ClipThreshold  float64 `json:"clip_threshold" yaml:"clip_threshold"`
}

// SegmenterConfig tunes note segmentation.
type SegmenterConfig struct {
	MaxGapSec  float64 `json:"max_gap_sec" yaml:"max_gap_sec"`
	SplitCents float64 `json:"split_cents" yaml:"split_cents"`
}

// AlignConfig tunes temporal offset estimation.
type AlignConfig struct {
	MaxOffsetMs    float64 `json:"max_offset_ms" yaml:"max_offset_ms"`
	EnvelopeStepMs float64 `json:"envelope_step_ms" yaml:"envelope_step_ms"`
}

// Config collects every tunable of the analysis pipeline. Zero-valued
// fields fall back to their defaults when the config is applied.
type Config struct {
	Contour   ContourConfig   `json:"contour" yaml:"contour"`
	Pitch     PitchConfig     `json:"pitch" yaml:"pitch"`
	Segmenter SegmenterConfig `json:"segmenter" yaml:"segmenter"`
	Align     AlignConfig     `json:"align" yaml:"align"`
	Live      LiveConfig      `json:"live" yaml:"live"`
}

// DefaultConfig returns the default pipeline tuning
func DefaultConfig() *Config {
	return &Config{
		Contour: ContourConfig{
			FrameSize: 2048,
			HopSize:   512,
			RMSFloor:  0.01,
		},
		Pitch: PitchConfig{
			VoicedRMSFloor: 0.01,
			ClipThreshold:  0.01,
		},
		Segmenter: SegmenterConfig{
			MaxGapSec:  0.15,
			SplitCents: 80,
		},
		Align: AlignConfig{
			MaxOffsetMs:    1500,
			EnvelopeStepMs: 50,
		},
		Live: DefaultLiveConfig(),
	}
}

// withDefaults returns a copy with zero-valued tunables replaced by their
// defaults. Component constructors already fall back on non-positive
// framing and threshold values; the envelope step is consumed directly by
// the analyzer and is normalized here.
func (c *Config) withDefaults() *Config {
	out := *c
	def := DefaultConfig()
	if out.Align.EnvelopeStepMs <= 0 {
		out.Align.EnvelopeStepMs = def.Align.EnvelopeStepMs
	}
	if out.Align.MaxOffsetMs <= 0 {
		out.Align.MaxOffsetMs = def.Align.MaxOffsetMs
	}
	return &out
}

// LoadConfig reads a YAML config file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configs the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Contour.FrameSize < 0 || c.Contour.HopSize < 0 {
		return fmt.Errorf("%w: negative contour framing", ErrInvalidConfig)
	}
	if c.Contour.HopSize > 0 && c.Contour.FrameSize > 0 && c.Contour.HopSize > c.Contour.FrameSize {
		return fmt.Errorf("%w: hop %d exceeds frame %d", ErrInvalidConfig, c.Contour.HopSize, c.Contour.FrameSize)
	}
	if c.Align.MaxOffsetMs < 0 || c.Align.EnvelopeStepMs < 0 {
		return fmt.Errorf("%w: negative alignment window", ErrInvalidConfig)
	}
	if c.Live.TickHz < 0 || c.Live.TickHz > 120 {
		return fmt.Errorf("%w: live tick rate %v out of range", ErrInvalidConfig, c.Live.TickHz)
	}
	return nil
}
