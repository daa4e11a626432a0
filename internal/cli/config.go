package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/larder/internal/paths"
	"github.com/mesh-intelligence/larder/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend          = "backend"
	cfgKeyDataDir          = "data_dir"
	cfgKeyImageDir         = "image_dir"
	cfgKeyJPEGQuality      = "jpeg_quality"
	cfgKeyLogLevel         = "log_level"
	cfgKeyLogFormat        = "log_format"
	cfgKeyCameraPermission = "camera_permission"

	envPrefix = "LARDER"
)

// Camera permission policies.
const (
	permissionGranted = "granted"
	permissionDenied  = "denied"
	permissionPrompt  = "prompt"
)

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# larder configuration

# Storage backend
backend: sqlite

# Data directory (optional; overridable by --data-dir)
# data_dir:

# Where captured photos are kept (default: <data_dir>/food_images)
# image_dir:

jpeg_quality: 90

# debug, info, warn, error
log_level: warn
# json or console
log_format: console

# granted, denied or prompt
camera_permission: prompt
`

// settings is the resolved content of config.yaml.
type settings struct {
	Backend          string
	DataDir          string
	ImageDir         string
	JPEGQuality      int
	LogLevel         string
	LogFormat        string
	CameraPermission string
}

// catalogConfig returns the Backend.Attach configuration.
func (s settings) catalogConfig() types.Config {
	return types.Config{
		Backend:     s.Backend,
		DataDir:     s.DataDir,
		ImageDir:    s.ImageDir,
		JPEGQuality: s.JPEGQuality,
	}
}

// loadSettings reads config.yaml from configDir using Viper, creating the
// directory and a default file on first run. LARDER_LOG_LEVEL and
// LARDER_CAMERA_PERMISSION override the file.
func loadSettings(configDir string) (settings, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return settings{}, fmt.Errorf("create config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return settings{}, err
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyJPEGQuality, types.DefaultJPEGQuality)
	v.SetDefault(cfgKeyLogLevel, "warn")
	v.SetDefault(cfgKeyLogFormat, "console")
	v.SetDefault(cfgKeyCameraPermission, permissionPrompt)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	for _, key := range []string{cfgKeyLogLevel, cfgKeyCameraPermission} {
		if err := v.BindEnv(key); err != nil {
			return settings{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	s := settings{
		Backend:          v.GetString(cfgKeyBackend),
		DataDir:          v.GetString(cfgKeyDataDir),
		ImageDir:         v.GetString(cfgKeyImageDir),
		JPEGQuality:      v.GetInt(cfgKeyJPEGQuality),
		LogLevel:         v.GetString(cfgKeyLogLevel),
		LogFormat:        v.GetString(cfgKeyLogFormat),
		CameraPermission: v.GetString(cfgKeyCameraPermission),
	}
	switch s.CameraPermission {
	case permissionGranted, permissionDenied, permissionPrompt:
	default:
		return settings{}, fmt.Errorf("config %s: unknown value %q (valid: granted, denied, prompt)",
			cfgKeyCameraPermission, s.CameraPermission)
	}
	return s, nil
}

// ensureDefaultConfigFile creates config.yaml if it does not exist.
func ensureDefaultConfigFile(configDir string) error {
	path := paths.ConfigFile(configDir)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}
