package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
	"github.com/devicelab-dev/shoplist-e2e/pkg/report"
	"github.com/devicelab-dev/shoplist-e2e/pkg/scenario"
)

// DeviceWorker is one device pulling scenarios from the shared queue.
type DeviceWorker struct {
	ID       int
	Device   report.Device
	Sessions SessionFactory
	Cleanup  func()
}

// workItem is a scenario and its index in the original list.
type workItem struct {
	scenario scenario.Scenario
	index    int
}

// ParallelRunner distributes scenarios over several devices. Each device
// runs one scenario at a time, and every scenario still gets its own session.
type ParallelRunner struct {
	workers []DeviceWorker
	config  RunnerConfig
}

// NewParallelRunner creates a parallel runner with multiple device workers.
func NewParallelRunner(workers []DeviceWorker, config RunnerConfig) *ParallelRunner {
	return &ParallelRunner{
		workers: workers,
		config:  config,
	}
}

// Run executes scenarios using a work queue. All workers pull from the same
// queue until it is drained.
func (pr *ParallelRunner) Run(ctx context.Context, scenarios []scenario.Scenario) (*core.SuiteResult, error) {
	if len(pr.workers) == 0 {
		return nil, fmt.Errorf("no workers available")
	}

	w, err := newIndexWriter(pr.config, scenarios)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	w.Start()
	start := time.Now()

	queue := make(chan workItem, len(scenarios))
	for i, sc := range scenarios {
		queue <- workItem{scenario: sc, index: i}
	}
	close(queue)

	results := make([]core.ScenarioResult, len(scenarios))
	var resultsMu sync.Mutex
	var stopped atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	for i := range pr.workers {
		worker := pr.workers[i]
		dev := worker.Device
		runner := &Runner{config: pr.config, sessions: worker.Sessions, device: &dev}

		g.Go(func() error {
			if worker.Cleanup != nil {
				defer worker.Cleanup()
			}
			logger.Info("worker %d started on %s", worker.ID, dev.ID)

			for item := range queue {
				var res core.ScenarioResult
				if reason := skipReason(gctx, stopped.Load()); reason != "" {
					res = skip(w, item.scenario, reason)
				} else {
					res = runner.executeScenario(gctx, item.scenario, w, item.index, len(scenarios))
					if pr.config.StopOnFail && res.Status != core.StatusPassed {
						stopped.Store(true)
					}
				}

				resultsMu.Lock()
				results[item.index] = res
				resultsMu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	w.End()
	return buildSuiteResult(pr.config.RunID, start, results), nil
}
