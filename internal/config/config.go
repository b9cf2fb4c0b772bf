// Package config defines mudra's configuration and how it is loaded.
//
// Keys are flat snake_case. Durations are integers in milliseconds so the
// same key works unchanged in YAML and in MUDRA_* environment variables.
package config

import (
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/lifecycle"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogJSON switches to production JSON logs.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`
	// StaticDir is served at / when set.
	StaticDir string `koanf:"static_dir"`

	CameraID     int `koanf:"camera_id"`
	CameraWidth  int `koanf:"camera_width"`
	CameraHeight int `koanf:"camera_height"`

	// InitTimeoutMS bounds camera acquisition plus both model loads.
	InitTimeoutMS int `koanf:"init_timeout_ms"`
	// FrameIntervalMS paces the frame loop; 16 is roughly 60 Hz.
	FrameIntervalMS int `koanf:"frame_interval_ms"`

	FaceTracking bool `koanf:"face_tracking"`
	HandTracking bool `koanf:"hand_tracking"`

	// SmoothingAlpha in (0,1) enables exponential smoothing of the gesture
	// transform. 0 leaves it raw.
	SmoothingAlpha float64 `koanf:"smoothing_alpha"`

	MaxHands         int    `koanf:"max_hands"`
	FaceSolutionPath string `koanf:"face_solution_path"`
	HandSolutionPath string `koanf:"hand_solution_path"`
	HandModelType    string `koanf:"hand_model_type"`
	RefineLandmarks  bool   `koanf:"refine_landmarks"`
	// ModelScript overrides the landmark service script location.
	ModelScript string `koanf:"model_script"`

	// Tray shows the system tray menu.
	Tray bool `koanf:"tray"`
	// WSRateHz caps websocket transform pushes per client.
	WSRateHz float64 `koanf:"ws_rate_hz"`
}

// New returns a Config holding the defaults.
func New() *Config {
	face := detector.DefaultFaceConfig()
	hand := detector.DefaultHandConfig()

	return &Config{
		LogLevel:         "info",
		Addr:             ":8080",
		CameraID:         0,
		CameraWidth:      capture.DefaultWidth,
		CameraHeight:     capture.DefaultHeight,
		InitTimeoutMS:    int(lifecycle.DefaultTimeout / time.Millisecond),
		FrameIntervalMS:  16,
		FaceTracking:     true,
		HandTracking:     true,
		MaxHands:         hand.MaxHands,
		FaceSolutionPath: face.SolutionPath,
		HandSolutionPath: hand.SolutionPath,
		HandModelType:    hand.ModelType,
		RefineLandmarks:  face.RefineLandmarks,
		Tray:             true,
		WSRateHz:         30,
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.CameraID < 0:
		return invalid("camera_id must not be negative")
	case c.CameraWidth < 0 || c.CameraHeight < 0:
		return invalid("camera size must not be negative")
	case c.InitTimeoutMS <= 0:
		return invalid("init_timeout_ms must be positive")
	case c.FrameIntervalMS <= 0:
		return invalid("frame_interval_ms must be positive")
	case c.SmoothingAlpha < 0 || c.SmoothingAlpha >= 1:
		return invalid("smoothing_alpha must be in [0, 1)")
	case c.MaxHands < 1:
		return invalid("max_hands must be at least 1")
	case c.HandModelType != "full" && c.HandModelType != "lite":
		return invalid("hand_model_type must be full or lite")
	case c.WSRateHz <= 0:
		return invalid("ws_rate_hz must be positive")
	}
	return nil
}

func (c *Config) InitTimeout() time.Duration {
	return time.Duration(c.InitTimeoutMS) * time.Millisecond
}

func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMS) * time.Millisecond
}

// Lifecycle derives the camera and model settings.
func (c *Config) Lifecycle() lifecycle.Config {
	cfg := lifecycle.DefaultConfig()
	cfg.Timeout = c.InitTimeout()

	cfg.Camera.DeviceID = c.CameraID
	cfg.Camera.Width = c.CameraWidth
	cfg.Camera.Height = c.CameraHeight

	cfg.FaceModel.SolutionPath = c.FaceSolutionPath
	cfg.FaceModel.RefineLandmarks = c.RefineLandmarks

	cfg.HandModel.SolutionPath = c.HandSolutionPath
	cfg.HandModel.ModelType = c.HandModelType
	cfg.HandModel.MaxHands = c.MaxHands

	return cfg
}
