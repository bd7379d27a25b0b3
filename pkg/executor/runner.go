// Package executor runs scenarios, each on its own automation session, and
// feeds the results to the report.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/shoplist-e2e/pkg/config"
	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
	"github.com/devicelab-dev/shoplist-e2e/pkg/driver/appium"
	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
	"github.com/devicelab-dev/shoplist-e2e/pkg/pages"
	"github.com/devicelab-dev/shoplist-e2e/pkg/report"
	"github.com/devicelab-dev/shoplist-e2e/pkg/scenario"
)

// ArtifactMode determines when to capture screenshots/hierarchy.
type ArtifactMode int

const (
	// ArtifactOnFailure captures artifacts only when a scenario fails.
	ArtifactOnFailure ArtifactMode = iota
	// ArtifactAlways captures artifacts at the end of every scenario.
	ArtifactAlways
	// ArtifactNever disables artifact capture.
	ArtifactNever
)

// artifactPrefix names the files captured at the end of a scenario.
const artifactPrefix = "final"

// Session is one automation session bound to the app under test.
type Session interface {
	Device() pages.Device
	AppID() string
	Timeouts() config.Timeouts
	PlatformInfo() *core.PlatformInfo
	CaptureArtifacts(prefix string) []core.Attachment
	Close() error
}

// SessionFactory opens a new session. It is called once per scenario.
type SessionFactory func(ctx context.Context) (Session, error)

type appiumSession struct {
	*appium.Driver
}

func (s appiumSession) Device() pages.Device {
	return s.Client()
}

// AppiumSessions opens a fresh Appium session from cfg for every scenario.
func AppiumSessions(cfg *config.Config) SessionFactory {
	return func(ctx context.Context) (Session, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := appium.NewDriver(cfg)
		if err != nil {
			return nil, err
		}
		return appiumSession{d}, nil
	}
}

// RunnerConfig configures the test runner.
type RunnerConfig struct {
	OutputDir  string       // Report output directory
	StopOnFail bool         // Skip remaining scenarios after the first failure
	Artifacts  ArtifactMode // When to capture artifacts
	Debug      bool         // Dump on-screen elements while waiting for pages

	// Device/App info for reports
	Device report.Device
	App    report.App

	// Runner metadata
	RunID         string
	RunnerVersion string
	DriverName    string

	// Live progress callbacks
	OnScenarioStart func(idx, total int, sc scenario.Scenario)
	OnStep          func(sc scenario.Scenario, step core.StepResult)
	OnScenarioEnd   func(sc scenario.Scenario, res *core.ScenarioResult)
}

// Runner executes scenarios one after another on one device.
type Runner struct {
	config   RunnerConfig
	sessions SessionFactory
	device   *report.Device
}

// New creates a new Runner.
func New(sessions SessionFactory, cfg RunnerConfig) *Runner {
	dev := cfg.Device
	return &Runner{
		config:   cfg,
		sessions: sessions,
		device:   &dev,
	}
}

// Run executes all scenarios and writes report.json.
func (r *Runner) Run(ctx context.Context, scenarios []scenario.Scenario) (*core.SuiteResult, error) {
	w, err := newIndexWriter(r.config, scenarios)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	w.Start()
	start := time.Now()

	results := make([]core.ScenarioResult, len(scenarios))
	stopped := false
	for i, sc := range scenarios {
		if reason := skipReason(ctx, stopped); reason != "" {
			results[i] = skip(w, sc, reason)
			continue
		}
		results[i] = r.executeScenario(ctx, sc, w, i, len(scenarios))
		if r.config.StopOnFail && results[i].Status != core.StatusPassed {
			stopped = true
		}
	}

	w.End()
	return buildSuiteResult(r.config.RunID, start, results), nil
}

func newIndexWriter(cfg RunnerConfig, scenarios []scenario.Scenario) (*report.IndexWriter, error) {
	planned := make([]report.Planned, len(scenarios))
	for i, sc := range scenarios {
		planned[i] = report.Planned{
			ID:          sc.ID(),
			Name:        sc.Name,
			Suite:       sc.Suite,
			Tags:        sc.Tags,
			Description: sc.Description,
		}
	}
	index := report.NewIndex(report.Config{
		RunID:  cfg.RunID,
		Device: cfg.Device,
		App:    cfg.App,
		Runner: report.RunnerInfo{Version: cfg.RunnerVersion, Driver: cfg.DriverName},
	}, planned)
	return report.NewIndexWriter(cfg.OutputDir, index)
}

func skipReason(ctx context.Context, stopped bool) string {
	if ctx.Err() != nil {
		return "run cancelled"
	}
	if stopped {
		return "run stopped"
	}
	return ""
}

func skip(w *report.IndexWriter, sc scenario.Scenario, reason string) core.ScenarioResult {
	logger.Info("scenario %s skipped: %s", sc.ID(), reason)
	w.Skip(sc.ID(), reason)
	return core.ScenarioResult{
		Name:   sc.Name,
		Suite:  sc.Suite,
		Tags:   sc.Tags,
		Status: core.StatusSkipped,
		Error:  reason,
		Steps:  []core.StepResult{},
	}
}

// executeScenario runs one scenario on a session of its own. The session is
// closed on every path.
func (r *Runner) executeScenario(ctx context.Context, sc scenario.Scenario, w *report.IndexWriter, idx, total int) core.ScenarioResult {
	log := logger.WithFields(map[string]interface{}{"scenario": sc.ID(), "device": r.device.ID})
	log.Infof("starting scenario (%d/%d)", idx+1, total)

	res := core.ScenarioResult{
		Name:      sc.Name,
		Suite:     sc.Suite,
		Tags:      sc.Tags,
		Status:    core.StatusRunning,
		StartTime: time.Now(),
	}
	if r.config.OnScenarioStart != nil {
		r.config.OnScenarioStart(idx, total, sc)
	}
	w.ScenarioStart(sc.ID(), r.device)

	err := r.runOnSession(ctx, sc, w, &res)
	res.Finish(err)

	if err != nil {
		log.WithError(err).Errorf("scenario %s", res.Status)
	} else {
		log.Info("scenario passed")
	}
	w.ScenarioEnd(sc.ID(), &res)
	if r.config.OnScenarioEnd != nil {
		r.config.OnScenarioEnd(sc, &res)
	}
	return res
}

func (r *Runner) runOnSession(ctx context.Context, sc scenario.Scenario, w *report.IndexWriter, res *core.ScenarioResult) (err error) {
	sess, err := r.sessions(ctx)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Warn("close session for %s: %v", sc.ID(), cerr)
		}
	}()
	res.PlatformInfo = sess.PlatformInfo()

	app := pages.New(sess.Device(), sess.AppID(), sess.Timeouts())
	t := scenario.NewT(app, sc, func(step core.StepResult) {
		w.StepDone(sc.ID(), step)
		if r.config.OnStep != nil {
			r.config.OnStep(sc, step)
		}
	})
	t.Debug = r.config.Debug

	err = runGuarded(sc, t)
	res.Steps = t.Steps()

	if r.wantArtifacts(err) {
		res.Attachments = sess.CaptureArtifacts(artifactPrefix)
	}
	return err
}

// runGuarded turns a panicking scenario into an error so the session still
// gets closed and the run goes on.
func runGuarded(sc scenario.Scenario, t *scenario.T) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("scenario %s panicked: %v", sc.ID(), p)
		}
	}()
	return sc.Run(t)
}

func (r *Runner) wantArtifacts(err error) bool {
	switch r.config.Artifacts {
	case ArtifactAlways:
		return true
	case ArtifactNever:
		return false
	default:
		return err != nil
	}
}

// buildSuiteResult aggregates scenario results. Duration is wall clock.
func buildSuiteResult(runID string, start time.Time, results []core.ScenarioResult) *core.SuiteResult {
	suite := &core.SuiteResult{
		RunID:     runID,
		StartTime: start,
		Duration:  time.Since(start),
		Scenarios: results,
	}
	suite.ComputeSummary()
	return suite
}
