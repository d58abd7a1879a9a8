// Package config loads the application settings from a JSON file. Every
// field is optional; the Get* methods supply the defaults.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Config is the root of the JSON settings file.
type Config struct {
	// Window
	Title      *string     `json:"title,omitempty"`
	Width      *int        `json:"width,omitempty"`
	Height     *int        `json:"height,omitempty"`
	VSync      *bool       `json:"vsync,omitempty"`
	ClearColor *[4]float32 `json:"clear_color,omitempty"`

	// Placement
	MaxAnchors                *int     `json:"max_anchors,omitempty"`
	ApproximateDistanceMeters *float32 `json:"approximate_distance_meters,omitempty"`
	InstantPlacement          *bool    `json:"instant_placement,omitempty"`

	// Depth
	DepthVisualization *bool `json:"depth_visualization,omitempty"`
	DepthOcclusion     *bool `json:"depth_occlusion,omitempty"`

	// Augmented images
	ImageDatabase  *string  `json:"image_database,omitempty"`
	UseSingleImage *bool    `json:"use_single_image,omitempty"`
	SingleImage    *string  `json:"single_image,omitempty"`
	TintIntensity  *float32 `json:"tint_intensity,omitempty"`

	// Camera clip planes in meters
	Near *float32 `json:"near,omitempty"`
	Far  *float32 `json:"far,omitempty"`

	FaceTracking *bool `json:"face_tracking,omitempty"`

	// Desktop host
	AssetsDir    *string `json:"assets_dir,omitempty"`
	ReplayScript *string `json:"replay_script,omitempty"`
}

// Load reads a Config from a JSON file. Omitted fields keep their defaults,
// so partial files are fine.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, errors.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "stat config file")
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, errors.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}
	return Parse(data)
}

// Parse decodes and validates JSON config data.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config JSON")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *Config) Validate() error {
	if c.Width != nil && *c.Width <= 0 {
		return errors.Errorf("width must be positive, got %d", *c.Width)
	}
	if c.Height != nil && *c.Height <= 0 {
		return errors.Errorf("height must be positive, got %d", *c.Height)
	}
	if c.MaxAnchors != nil && *c.MaxAnchors <= 0 {
		return errors.Errorf("max_anchors must be positive, got %d", *c.MaxAnchors)
	}
	// The engine only accepts approximate distances in this range.
	if d := c.ApproximateDistanceMeters; d != nil && (*d < 0.2 || *d > 2.0) {
		return errors.Errorf("approximate_distance_meters must be between 0.2 and 2.0, got %g", *d)
	}
	if t := c.TintIntensity; t != nil && (*t < 0 || *t > 1) {
		return errors.Errorf("tint_intensity must be between 0 and 1, got %g", *t)
	}
	if c.Near != nil && *c.Near <= 0 {
		return errors.Errorf("near must be positive, got %g", *c.Near)
	}
	if near, far := c.GetNear(), c.GetFar(); far <= near {
		return errors.Errorf("far (%g) must be greater than near (%g)", far, near)
	}
	if c.GetUseSingleImage() && c.GetSingleImage() == "" {
		return errors.New("use_single_image requires single_image")
	}
	return nil
}

func (c *Config) GetTitle() string {
	if c.Title == nil {
		return "grove-ar"
	}
	return *c.Title
}

func (c *Config) GetWidth() int {
	if c.Width == nil {
		return 1280
	}
	return *c.Width
}

func (c *Config) GetHeight() int {
	if c.Height == nil {
		return 720
	}
	return *c.Height
}

func (c *Config) GetVSync() bool {
	if c.VSync == nil {
		return true
	}
	return *c.VSync
}

func (c *Config) GetClearColor() [4]float32 {
	if c.ClearColor == nil {
		return [4]float32{0.1, 0.1, 0.1, 1}
	}
	return *c.ClearColor
}

// GetMaxAnchors returns max_anchors or the default of 20.
func (c *Config) GetMaxAnchors() int {
	if c.MaxAnchors == nil {
		return 20
	}
	return *c.MaxAnchors
}

func (c *Config) GetApproximateDistanceMeters() float32 {
	if c.ApproximateDistanceMeters == nil {
		return 1.0
	}
	return *c.ApproximateDistanceMeters
}

func (c *Config) GetInstantPlacement() bool {
	return c.InstantPlacement != nil && *c.InstantPlacement
}

func (c *Config) GetDepthVisualization() bool {
	return c.DepthVisualization != nil && *c.DepthVisualization
}

func (c *Config) GetDepthOcclusion() bool {
	return c.DepthOcclusion != nil && *c.DepthOcclusion
}

func (c *Config) GetImageDatabase() string {
	if c.ImageDatabase == nil {
		return "sample_database.imgdb"
	}
	return *c.ImageDatabase
}

func (c *Config) GetUseSingleImage() bool {
	return c.UseSingleImage != nil && *c.UseSingleImage
}

func (c *Config) GetSingleImage() string {
	if c.SingleImage == nil {
		return "default.jpg"
	}
	return *c.SingleImage
}

func (c *Config) GetTintIntensity() float32 {
	if c.TintIntensity == nil {
		return 0.1
	}
	return *c.TintIntensity
}

func (c *Config) GetNear() float32 {
	if c.Near == nil {
		return 0.1
	}
	return *c.Near
}

func (c *Config) GetFar() float32 {
	if c.Far == nil {
		return 100
	}
	return *c.Far
}

func (c *Config) GetFaceTracking() bool {
	return c.FaceTracking != nil && *c.FaceTracking
}

func (c *Config) GetAssetsDir() string {
	if c.AssetsDir == nil {
		return "assets"
	}
	return *c.AssetsDir
}

// GetReplayScript returns the replay script path, empty for none.
func (c *Config) GetReplayScript() string {
	if c.ReplayScript == nil {
		return ""
	}
	return *c.ReplayScript
}
