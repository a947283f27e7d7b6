package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const appName = "iotray"

// Config is read at startup and never written back: device state and
// the camera preference live only in memory.
type Config struct {
	LogLevel         string  `mapstructure:"log_level"`
	ShowInput        bool    `mapstructure:"show_input"`
	ShowCamera       bool    `mapstructure:"show_camera"`
	VolumeStep       float64 `mapstructure:"volume_step"` // spacing of the tray's volume presets
	MuteHotkey       string  `mapstructure:"mute_hotkey"`
	MuteHotkeyDarwin string  `mapstructure:"mute_hotkey_darwin"`
	Simulate         bool    `mapstructure:"simulate"` // run on simulated hardware
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("show_input", true)
	v.SetDefault("show_camera", true)
	v.SetDefault("volume_step", 0.25)
	v.SetDefault("mute_hotkey", "Ctrl+Alt+M")
	v.SetDefault("mute_hotkey_darwin", "Ctrl+Alt+M")
	v.SetDefault("simulate", false)
}

// Load reads path, or the default config file when path is empty.
// A missing file yields the defaults. IOTRAY_* environment variables
// override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(appName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = Path()
	}
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.VolumeStep <= 0 || cfg.VolumeStep > 1 {
		cfg.VolumeStep = 0.25
	}
	return cfg, nil
}

// PlatformMuteHotkey returns the hotkey for the current platform.
func (c *Config) PlatformMuteHotkey() string {
	if runtime.GOOS == "darwin" && c.MuteHotkeyDarwin != "" {
		return c.MuteHotkeyDarwin
	}
	return c.MuteHotkey
}

// VolumePresets returns the volume levels offered in the tray, from 0 to 1.
func (c *Config) VolumePresets() []float32 {
	step := c.VolumeStep
	if step <= 0 || step > 1 {
		step = 0.25
	}
	n := int(math.Ceil(1/step - 1e-9))
	presets := make([]float32, 0, n+1)
	for i := 0; i < n; i++ {
		presets = append(presets, float32(float64(i)*step))
	}
	return append(presets, 1)
}

// Path returns the default config file location under the XDG config dir
// (Application Support on macOS, AppData on Windows).
func Path() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.json")
}
