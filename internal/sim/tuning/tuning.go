package tuning

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz      int     `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	RenderRateHz    int     `yaml:"render_rate_hz" json:"render_rate_hz"`
	MaxFrameSeconds float64 `yaml:"max_frame_seconds" json:"max_frame_seconds"`

	// Units per second. Bodies faster than this are integrated in sub-steps.
	MaxSafeVelocity float64 `yaml:"max_safe_velocity" json:"max_safe_velocity"`

	Player Body `yaml:"player" json:"player"`
	Ball   Body `yaml:"ball" json:"ball"`

	PlayerAccel         float64 `yaml:"player_accel" json:"player_accel"`
	PlayerChargingAccel float64 `yaml:"player_charging_accel" json:"player_charging_accel"`

	KickMargin        float64 `yaml:"kick_margin" json:"kick_margin"`
	KickStrength      float64 `yaml:"kick_strength" json:"kick_strength"`
	KickMinFactor     float64 `yaml:"kick_min_factor" json:"kick_min_factor"`
	KickFeedbackTicks int     `yaml:"kick_feedback_ticks" json:"kick_feedback_ticks"`

	BodyRestitution float64 `yaml:"body_restitution" json:"body_restitution"`

	GoalWarmupSeconds float64 `yaml:"goal_warmup_seconds" json:"goal_warmup_seconds"`
	SuccessDelayMs    int     `yaml:"success_delay_ms" json:"success_delay_ms"`
	FailDelayMs       int     `yaml:"fail_delay_ms" json:"fail_delay_ms"`
}

type Body struct {
	Radius  float64 `yaml:"radius" json:"radius"`
	Mass    float64 `yaml:"mass" json:"mass"`
	Damping float64 `yaml:"damping" json:"damping"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:      60,
		RenderRateHz:    60,
		MaxFrameSeconds: 0.1,
		MaxSafeVelocity: 480,

		Player: Body{Radius: 15, Mass: 2, Damping: 0.96},
		Ball:   Body{Radius: 10, Mass: 1, Damping: 0.99},

		PlayerAccel:         720,
		PlayerChargingAccel: 420,

		KickMargin:        4,
		KickStrength:      600,
		KickMinFactor:     0.5,
		KickFeedbackTicks: 9,

		BodyRestitution: 0.5,

		GoalWarmupSeconds: 0.25,
		SuccessDelayMs:    1500,
		FailDelayMs:       1000,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz)
	}
	if t.RenderRateHz <= 0 {
		return fmt.Errorf("render_rate_hz must be positive: %d", t.RenderRateHz)
	}
	if !(t.MaxFrameSeconds > 0) {
		return fmt.Errorf("max_frame_seconds must be positive")
	}
	if !(t.MaxSafeVelocity > 0) || math.IsInf(t.MaxSafeVelocity, 0) {
		return fmt.Errorf("max_safe_velocity must be positive and finite")
	}
	for name, b := range map[string]Body{"player": t.Player, "ball": t.Ball} {
		if !(b.Radius > 0) {
			return fmt.Errorf("%s.radius must be positive", name)
		}
		if b.Mass < 0 {
			return fmt.Errorf("%s.mass must not be negative", name)
		}
		if !(b.Damping > 0 && b.Damping <= 1) {
			return fmt.Errorf("%s.damping must be in (0,1]", name)
		}
	}
	if t.KickMinFactor < 0 || t.KickMinFactor > 1 {
		return fmt.Errorf("kick_min_factor must be in [0,1]")
	}
	if t.BodyRestitution < 0 || t.BodyRestitution > 1 {
		return fmt.Errorf("body_restitution must be in [0,1]")
	}
	if t.SuccessDelayMs < 0 || t.FailDelayMs < 0 {
		return fmt.Errorf("transition delays must not be negative")
	}
	return nil
}

func (t Tuning) FixedDt() float64 { return 1 / float64(t.TickRateHz) }

func (t Tuning) SuccessDelay() time.Duration {
	return time.Duration(t.SuccessDelayMs) * time.Millisecond
}

func (t Tuning) FailDelay() time.Duration {
	return time.Duration(t.FailDelayMs) * time.Millisecond
}
