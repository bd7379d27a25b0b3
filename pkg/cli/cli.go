// Package cli provides the command-line interface for shoplist-e2e.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/shoplist-e2e/pkg/config"
	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// Driver names accepted by --driver.
const (
	DriverAppium = "appium"
	DriverMock   = "mock"
)

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to config.yaml (default: ./config.yaml if present)",
		EnvVars: []string{"SHOPLIST_E2E_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "appium-url",
		Usage:   "Appium server URL (overrides appiumServer in config)",
		EnvVars: []string{"APPIUM_URL"},
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"udid"},
		Usage:   "Device ID to run on (can be comma-separated)",
		EnvVars: []string{"SHOPLIST_E2E_DEVICE"},
	},
	&cli.StringFlag{
		Name:    "driver",
		Aliases: []string{"d"},
		Usage:   "Driver to use (appium, mock)",
		Value:   DriverAppium,
		EnvVars: []string{"SHOPLIST_E2E_DRIVER"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"SHOPLIST_E2E_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the command tree.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "shoplist-e2e",
		Usage:   "End-to-end UI tests for the shopping list app",
		Version: Version,
		Description: `shoplist-e2e drives the Flutter shopping list app through Appium
and checks the home screen, the external app launches and the shopping list.

Examples:
  shoplist-e2e test
  shoplist-e2e test --include-tags smoke
  shoplist-e2e --driver mock test --allure
  shoplist-e2e --device emulator-5554,emulator-5556 test
  shoplist-e2e list
  shoplist-e2e devices
  shoplist-e2e inspect --screen shopping_list`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				color.NoColor = true
			}
			logger.SetVerbose(c.Bool("verbose"))
			switch d := c.String("driver"); d {
			case DriverAppium, DriverMock:
				return nil
			default:
				return fmt.Errorf("unknown driver %q (want %s or %s)", d, DriverAppium, DriverMock)
			}
		},
		Commands: []*cli.Command{
			testCommand,
			listCommand,
			inspectCommand,
			devicesCommand,
		},
	}
}

// Execute runs the CLI.
func Execute() {
	if err := NewApp().Run(os.Args); err != nil {
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			if msg := err.Error(); msg != "" {
				fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
			}
			os.Exit(exit.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseDevices splits the --device flag into device IDs.
func parseDevices(deviceFlag string) []string {
	var devices []string
	for _, d := range strings.Split(deviceFlag, ",") {
		if d = strings.TrimSpace(d); d != "" {
			devices = append(devices, d)
		}
	}
	return devices
}

// loadConfig reads the config file (or ./config.yaml, or defaults) and
// applies the global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if c.IsSet("appium-url") {
		cfg.AppiumServer = c.String("appium-url")
	}
	if devices := parseDevices(c.String("device")); len(devices) > 0 && devices[0] != allDevices {
		cfg.Device.Name = devices[0]
	}
	return cfg, nil
}
