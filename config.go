package linefollow

import (
	"errors"
	"time"

	"go.viam.com/utils"
)

const (
	defaultWidthMM     = 150.0
	defaultMaxSpeedMMS = 500.0
	defaultLoopHz      = 50.0
	defaultBaud        = 115200
)

// Config wires the base to its two drive motors and the line sensor.
// The sensor publishes err_m, len_pct, lk_norm and valid readings.
type Config struct {
	LeftMotor     string  `json:"left_motor"`
	RightMotor    string  `json:"right_motor"`
	LineSensor    string  `json:"line_sensor"`
	WidthMM       float64 `json:"width_mm,omitempty"`
	MaxSpeedMMS   float64 `json:"max_speed_mms,omitempty"`
	LoopHz        float64 `json:"loop_hz,omitempty"`
	TelemetryPort string  `json:"telemetry_port,omitempty"`
	TelemetryBaud int     `json:"telemetry_baud,omitempty"`
}

// Validate checks the attributes and returns the implicit dependencies.
func (cfg *Config) Validate(path string) ([]string, error) {
	if cfg.LeftMotor == "" {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "left_motor")
	}
	if cfg.RightMotor == "" {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "right_motor")
	}
	if cfg.LineSensor == "" {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "line_sensor")
	}
	if cfg.LeftMotor == cfg.RightMotor {
		return nil, utils.NewConfigValidationError(path, errors.New("left_motor and right_motor must differ"))
	}
	if cfg.WidthMM < 0 {
		return nil, utils.NewConfigValidationError(path, errors.New("width_mm cannot be negative"))
	}
	if cfg.MaxSpeedMMS < 0 {
		return nil, utils.NewConfigValidationError(path, errors.New("max_speed_mms cannot be negative"))
	}
	if cfg.LoopHz < 0 {
		return nil, utils.NewConfigValidationError(path, errors.New("loop_hz cannot be negative"))
	}
	if cfg.TelemetryBaud < 0 {
		return nil, utils.NewConfigValidationError(path, errors.New("telemetry_baud cannot be negative"))
	}
	return []string{cfg.LeftMotor, cfg.RightMotor, cfg.LineSensor}, nil
}

func (cfg *Config) width() float64 {
	if cfg.WidthMM == 0 {
		return defaultWidthMM
	}
	return cfg.WidthMM
}

func (cfg *Config) maxSpeed() float64 {
	if cfg.MaxSpeedMMS == 0 {
		return defaultMaxSpeedMMS
	}
	return cfg.MaxSpeedMMS
}

// loopPeriod is the follow loop tick, 50 Hz unless configured.
func (cfg *Config) loopPeriod() time.Duration {
	hz := cfg.LoopHz
	if hz == 0 {
		hz = defaultLoopHz
	}
	return time.Duration(float64(time.Second) / hz)
}

func (cfg *Config) baud() int {
	if cfg.TelemetryBaud == 0 {
		return defaultBaud
	}
	return cfg.TelemetryBaud
}
