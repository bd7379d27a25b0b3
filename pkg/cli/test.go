package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/shoplist-e2e/pkg/config"
	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
	"github.com/devicelab-dev/shoplist-e2e/pkg/driver/mock"
	"github.com/devicelab-dev/shoplist-e2e/pkg/executor"
	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
	"github.com/devicelab-dev/shoplist-e2e/pkg/report"
	"github.com/devicelab-dev/shoplist-e2e/pkg/scenario"
)

var testCommand = &cli.Command{
	Name:  "test",
	Usage: "Run the UI scenarios on a device",
	Description: `Run the scenario catalog, or the part of it selected by tags and names.
Every scenario gets a fresh session.

Reports are generated in the output directory:
  - Default: ./reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  shoplist-e2e test
  shoplist-e2e test --include-tags smoke
  shoplist-e2e test --run shopping_list --exclude-tags regression
  shoplist-e2e test --run shopping_list/delete_item --artifacts always
  shoplist-e2e --driver mock test --allure
  shoplist-e2e --device emulator-5554,emulator-5556 test --output ./my-reports --flatten
  shoplist-e2e --device all test --include-tags smoke`,
	Flags: []cli.Flag{
		// Selection
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only run scenarios with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Skip scenarios with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "run",
			Usage: "Only run these scenarios (name, suite/name or suite)",
		},

		// Output directory
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: ./reports)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
		&cli.BoolFlag{
			Name:  "allure",
			Usage: "Also write allure-results/ into the output directory",
		},
		&cli.StringFlag{
			Name:  "artifacts",
			Usage: "When to capture screenshot and hierarchy (on-failure, always, never)",
			Value: "on-failure",
		},

		// Execution
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip the remaining scenarios after the first failure",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Log the elements on screen while waiting for the home page",
		},
	},
	Action: runTest,
}

// RunConfig holds everything a test run needs after flag parsing.
type RunConfig struct {
	Config     *config.Config
	Driver     string
	Devices    []string
	Names      []string
	OutputDir  string
	StopOnFail bool
	Artifacts  executor.ArtifactMode
	Allure     bool
	Debug      bool
}

func runTest(c *cli.Context) error {
	printBanner()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("include-tags") {
		cfg.IncludeTags = c.StringSlice("include-tags")
	}
	if c.IsSet("exclude-tags") {
		cfg.ExcludeTags = c.StringSlice("exclude-tags")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	outputDir, err := resolveOutputDir(c.String("output"), c.Bool("flatten"))
	if err != nil {
		return err
	}
	artifacts, err := parseArtifactMode(c.String("artifacts"))
	if err != nil {
		return err
	}

	driver := c.String("driver")
	devices := parseDevices(c.String("device"))
	if len(devices) == 0 {
		devices = []string{cfg.Device.Name}
	}
	if driver == DriverMock && len(devices) == 1 && devices[0] == allDevices {
		return fmt.Errorf("--device %s needs the %s driver", allDevices, DriverAppium)
	}
	if devices, err = expandDevices(c.Context, devices); err != nil {
		return err
	}

	rc := &RunConfig{
		Config:     cfg,
		Driver:     driver,
		Devices:    devices,
		Names:      c.StringSlice("run"),
		OutputDir:  outputDir,
		StopOnFail: c.Bool("stop-on-fail"),
		Artifacts:  artifacts,
		Allure:     c.Bool("allure"),
		Debug:      c.Bool("debug"),
	}
	return executeTest(c.Context, rc)
}

func parseArtifactMode(s string) (executor.ArtifactMode, error) {
	switch strings.ToLower(s) {
	case "", "on-failure":
		return executor.ArtifactOnFailure, nil
	case "always":
		return executor.ArtifactAlways, nil
	case "never":
		return executor.ArtifactNever, nil
	default:
		return 0, fmt.Errorf("invalid --artifacts %q (want on-failure, always or never)", s)
	}
}

// resolveOutputDir determines the output directory based on flags.
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = "./reports"
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	// Create timestamp-based subfolder
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

func executeTest(ctx context.Context, rc *RunConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Create output directory
	if err := os.MkdirAll(rc.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// 2. Initialize logging
	start := time.Now()
	if err := logger.Init(logger.RunLogPath(rc.OutputDir, start)); err != nil {
		fmt.Fprintf(stdout, "Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()

	logger.Info("=== Test session started ===")
	logger.Info("Output directory: %s", rc.OutputDir)
	logger.Info("Driver: %s", rc.Driver)
	logger.Info("App: %s (%s)", rc.Config.App.Package, rc.Config.App.Activity)
	logger.Info("Devices: %s", strings.Join(rc.Devices, ", "))
	defer func() {
		logger.Info("=== Test session finished in %s ===", time.Since(start).Round(time.Millisecond))
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Select scenarios
	scenarios := scenario.Filter(scenario.Catalog(), rc.Config.IncludeTags, rc.Config.ExcludeTags, rc.Names)
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenarios match the given tags and names")
	}
	logger.Info("Selected %d scenario(s)", len(scenarios))

	// 4. One worker per device
	workers, err := createDeviceWorkers(rc)
	if err != nil {
		logger.Error("Device setup failed: %v", err)
		return err
	}

	// 5. Execute
	result, err := executeScenarios(ctx, rc, workers, scenarios, runID(start))
	if err != nil {
		logger.Error("Scenario execution failed: %v", err)
		return err
	}
	logger.Info("Execution completed: %d passed, %d failed, %d skipped",
		result.Passed, result.Failed, result.Skipped)

	// 6. Summaries
	printSummary(result)
	if len(workers) > 1 {
		if idx, err := report.ReadReport(rc.OutputDir); err == nil {
			printDeviceSummary(idx)
		}
	}

	// 7. Reports
	if rc.Allure {
		if err := report.GenerateAllure(rc.OutputDir); err != nil {
			fmt.Fprintf(stdout, "  %s Warning: failed to generate Allure results: %v\n", yellow("⚠"), err)
			rc.Allure = false
		}
	}
	printFooter(rc.OutputDir, rc.Allure)

	if !result.Success() {
		return cli.Exit("", 1)
	}
	return nil
}

// createDeviceWorkers builds one worker per device. With the mock driver
// every device is a simulated app on its own loopback port.
func createDeviceWorkers(rc *RunConfig) ([]executor.DeviceWorker, error) {
	workers := make([]executor.DeviceWorker, 0, len(rc.Devices))
	cleanupAll := func() {
		for _, w := range workers {
			if w.Cleanup != nil {
				w.Cleanup()
			}
		}
	}

	for i, id := range rc.Devices {
		cfg := *rc.Config
		cfg.Device.Name = id

		var cleanup func()
		if rc.Driver == DriverMock {
			srv := mock.NewServer(mock.Options{AppPackage: cfg.App.Package})
			url, err := srv.Start()
			if err != nil {
				cleanupAll()
				return nil, fmt.Errorf("start simulated device %s: %w", id, err)
			}
			cfg.AppiumServer = url
			cleanup = func() {
				if err := srv.Close(); err != nil {
					logger.Warn("stop simulated device %s: %v", id, err)
				}
			}
		}

		workers = append(workers, executor.DeviceWorker{
			ID:       i,
			Device:   deviceReport(&cfg),
			Sessions: executor.AppiumSessions(&cfg),
			Cleanup:  cleanup,
		})
	}
	return workers, nil
}

func deviceReport(cfg *config.Config) report.Device {
	return report.Device{
		ID:        cfg.Device.Name,
		Name:      cfg.Device.Name,
		Platform:  cfg.Device.Platform,
		OSVersion: cfg.Device.PlatformVersion,
	}
}

func executeScenarios(ctx context.Context, rc *RunConfig, workers []executor.DeviceWorker, scenarios []scenario.Scenario, id string) (*core.SuiteResult, error) {
	out := &progress{parallel: len(workers) > 1}
	runnerCfg := executor.RunnerConfig{
		OutputDir:       rc.OutputDir,
		StopOnFail:      rc.StopOnFail,
		Artifacts:       rc.Artifacts,
		Debug:           rc.Debug,
		Device:          workers[0].Device,
		App:             report.App{ID: rc.Config.App.Package, Activity: rc.Config.App.Activity},
		RunID:           id,
		RunnerVersion:   Version,
		DriverName:      rc.Driver,
		OnScenarioStart: out.onScenarioStart,
		OnStep:          out.onStep,
		OnScenarioEnd:   out.onScenarioEnd,
	}

	if len(workers) > 1 {
		logger.Info("Parallel execution on %d devices", len(workers))
		return executor.NewParallelRunner(workers, runnerCfg).Run(ctx, scenarios)
	}

	w := workers[0]
	if w.Cleanup != nil {
		defer w.Cleanup()
	}
	return executor.New(w.Sessions, runnerCfg).Run(ctx, scenarios)
}
