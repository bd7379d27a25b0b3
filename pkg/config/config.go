// Package config handles configuration for shoplist-e2e.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
)

// Config represents the suite configuration (config.yaml).
type Config struct {
	// Automation server
	AppiumServer string `yaml:"appiumServer"`

	App    AppConfig    `yaml:"app"`
	Device DeviceConfig `yaml:"device"`

	// Session policy
	NoReset              bool `yaml:"noReset"`
	FullReset            bool `yaml:"fullReset"`
	AutoGrantPermissions bool `yaml:"autoGrantPermissions"`
	NewCommandTimeout    int  `yaml:"newCommandTimeout"` // seconds

	Timeouts Timeouts `yaml:"timeouts"`

	// Scenario selection
	IncludeTags []string `yaml:"includeTags"`
	ExcludeTags []string `yaml:"excludeTags"`
}

// AppConfig identifies the application under test.
type AppConfig struct {
	Package  string `yaml:"package"`
	Activity string `yaml:"activity"`
	Path     string `yaml:"path"` // APK; relative paths resolve against GetHome()
}

// DeviceConfig identifies the target device.
type DeviceConfig struct {
	Name            string `yaml:"name"`
	Platform        string `yaml:"platform"`
	PlatformVersion string `yaml:"platformVersion"`
	AutomationName  string `yaml:"automationName"`
}

// Timeouts holds wait durations. YAML values use Go duration syntax ("10s").
type Timeouts struct {
	ImplicitWait   time.Duration `yaml:"implicitWait"`   // server-side element find wait; 0 leaves waiting to explicit polls
	ExplicitWait   time.Duration `yaml:"explicitWait"`   // default resolve timeout
	SessionStartup time.Duration `yaml:"sessionStartup"` // wait for app in foreground after session create
	Settle         time.Duration `yaml:"settle"`         // ceiling for post-action condition polling
	Poll           time.Duration `yaml:"poll"`           // polling interval
}

// Default returns the configuration for the Flutter demo app on a local emulator.
func Default() *Config {
	return &Config{
		AppiumServer: "http://localhost:4723",
		App: AppConfig{
			Package:  "com.example.my_app",
			Activity: ".MainActivity",
			Path:     filepath.Join("flutter", "my_app", "build", "app", "outputs", "flutter-apk", "app-debug.apk"),
		},
		Device: DeviceConfig{
			Name:            "emulator-5554",
			Platform:        "Android",
			PlatformVersion: "16",
			AutomationName:  "UiAutomator2",
		},
		AutoGrantPermissions: true,
		NewCommandTimeout:    300,
		Timeouts: Timeouts{
			ImplicitWait:   0,
			ExplicitWait:   20 * time.Second,
			SessionStartup: 30 * time.Second,
			Settle:         5 * time.Second,
			Poll:           200 * time.Millisecond,
		},
	}
}

// Load loads configuration from a file. Missing values take defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	return cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	return Default(), nil
}

// applyDefaults fills zero values that an explicit YAML null or 0 left behind.
func applyDefaults(cfg *Config) {
	d := Default()

	if cfg.AppiumServer == "" {
		cfg.AppiumServer = d.AppiumServer
	}
	if cfg.Device.Platform == "" {
		cfg.Device.Platform = d.Device.Platform
	}
	if cfg.Device.AutomationName == "" {
		cfg.Device.AutomationName = d.Device.AutomationName
	}
	if cfg.NewCommandTimeout <= 0 {
		cfg.NewCommandTimeout = d.NewCommandTimeout
	}
	if cfg.Timeouts.ImplicitWait < 0 {
		cfg.Timeouts.ImplicitWait = 0
	}
	if cfg.Timeouts.ExplicitWait <= 0 {
		cfg.Timeouts.ExplicitWait = d.Timeouts.ExplicitWait
	}
	if cfg.Timeouts.SessionStartup <= 0 {
		cfg.Timeouts.SessionStartup = d.Timeouts.SessionStartup
	}
	if cfg.Timeouts.Settle <= 0 {
		cfg.Timeouts.Settle = d.Timeouts.Settle
	}
	if cfg.Timeouts.Poll <= 0 {
		cfg.Timeouts.Poll = d.Timeouts.Poll
	}
}

// Validate checks that the fields needed to open a session are present.
func (c *Config) Validate() error {
	var missing []string
	if c.AppiumServer == "" {
		missing = append(missing, "appiumServer")
	}
	if c.App.Package == "" {
		missing = append(missing, "app.package")
	}
	if c.Device.Name == "" {
		missing = append(missing, "device.name")
	}
	if len(missing) > 0 {
		return core.ErrInvalidConfig.WithMessagef("missing required field(s): %s", strings.Join(missing, ", "))
	}
	if c.FullReset && c.NoReset {
		return core.ErrInvalidConfig.WithMessage("noReset and fullReset are mutually exclusive")
	}
	if c.Timeouts.Poll > c.Timeouts.Settle {
		return core.ErrInvalidConfig.WithMessagef("poll interval %s exceeds settle ceiling %s", c.Timeouts.Poll, c.Timeouts.Settle)
	}
	return nil
}

// AppPath returns the APK path, resolved against the home directory when relative.
func (c *Config) AppPath() string {
	if c.App.Path == "" || filepath.IsAbs(c.App.Path) {
		return c.App.Path
	}
	return filepath.Join(GetHome(), c.App.Path)
}

// Capabilities builds the W3C alwaysMatch capabilities for a new session.
func (c *Config) Capabilities() map[string]interface{} {
	caps := map[string]interface{}{
		"platformName":                c.Device.Platform,
		"appium:platformVersion":      c.Device.PlatformVersion,
		"appium:deviceName":           c.Device.Name,
		"appium:udid":                 c.Device.Name,
		"appium:automationName":       c.Device.AutomationName,
		"appium:appPackage":           c.App.Package,
		"appium:noReset":              c.NoReset,
		"appium:fullReset":            c.FullReset,
		"appium:newCommandTimeout":    c.NewCommandTimeout,
		"appium:autoGrantPermissions": c.AutoGrantPermissions,
	}
	if c.App.Activity != "" {
		caps["appium:appActivity"] = c.App.Activity
	}
	if p := c.AppPath(); p != "" {
		caps["appium:app"] = p
	}
	return caps
}
