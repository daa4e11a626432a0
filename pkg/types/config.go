package types

import "errors"

// Config holds backend selection and parameters for Backend.Attach.
type Config struct {
	Backend     string `json:"backend" yaml:"backend"`
	DataDir     string `json:"data_dir" yaml:"data_dir"`
	ImageDir    string `json:"image_dir" yaml:"image_dir"`
	JPEGQuality int    `json:"jpeg_quality" yaml:"jpeg_quality"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// DefaultJPEGQuality is the fixed compression quality for captured photos.
const DefaultJPEGQuality = 90

// Config validation errors.
var (
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
	ErrQualityInvalid = errors.New("jpeg quality must be between 1 and 100")
)

var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed. A zero JPEGQuality means
// DefaultJPEGQuality.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.JPEGQuality < 0 || c.JPEGQuality > 100 {
		return ErrQualityInvalid
	}
	return nil
}

// Quality returns the effective JPEG quality.
func (c Config) Quality() int {
	if c.JPEGQuality == 0 {
		return DefaultJPEGQuality
	}
	return c.JPEGQuality
}
