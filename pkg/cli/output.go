package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
	"github.com/devicelab-dev/shoplist-e2e/pkg/report"
	"github.com/devicelab-dev/shoplist-e2e/pkg/scenario"
)

// stdout is where progress and summaries go. Tests swap it for a buffer.
var stdout io.Writer = os.Stdout

var (
	cyan   = color.New(color.FgCyan).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// Slow step threshold in milliseconds (5 seconds)
const slowThresholdMs = 5000

func printBanner() {
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "╔══════════════════════════════════════════════════════════╗")
	fmt.Fprintf(stdout, "║  %s %-40s║\n", cyan("shoplist-e2e"), Version)
	fmt.Fprintln(stdout, "║  End-to-end UI tests for the shopping list app           ║")
	fmt.Fprintln(stdout, "╚══════════════════════════════════════════════════════════╝")
	fmt.Fprintln(stdout)
}

func printFooter(outputDir string, allure bool) {
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "  Reports:")
	fmt.Fprintf(stdout, "    JSON:   %s\n", filepath.Join(outputDir, report.IndexFile))
	if allure {
		fmt.Fprintf(stdout, "    Allure: %s\n", filepath.Join(outputDir, report.AllureDir))
	}
	fmt.Fprintln(stdout)
}

// progress prints live scenario and step lines. Parallel workers share one
// printer, so every write holds the lock.
type progress struct {
	mu       sync.Mutex
	parallel bool
}

func (p *progress) onScenarioStart(idx, total int, sc scenario.Scenario) {
	if p.parallel {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(stdout, "\n  %s %s (%s)\n", cyan(fmt.Sprintf("[%d/%d]", idx+1, total)), bold(sc.Name), sc.Suite)
	fmt.Fprintln(stdout, strings.Repeat("─", 60))
}

func (p *progress) onStep(_ scenario.Scenario, step core.StepResult) {
	if p.parallel {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	printStep(step)
}

func printStep(step core.StepResult) {
	ms := step.Duration.Milliseconds()
	dur := formatDuration(ms)

	if step.Status == core.StatusPassed {
		if ms >= slowThresholdMs {
			fmt.Fprintf(stdout, "    %s %s %s\n", yellow("⚠"), step.Name, yellow("("+dur+")"))
			return
		}
		fmt.Fprintf(stdout, "    %s %s (%s)\n", green("✓"), step.Name, dur)
		return
	}
	fmt.Fprintf(stdout, "    %s %s (%s)\n", red("✗"), step.Name, dur)
	if step.Error != "" {
		fmt.Fprintf(stdout, "      %s %s\n", gray("╰─"), step.Error)
	}
}

func (p *progress) onScenarioEnd(sc scenario.Scenario, res *core.ScenarioResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	label := sc.ID()
	if p.parallel && res.PlatformInfo != nil {
		label = fmt.Sprintf("%s %s", label, gray("["+res.PlatformInfo.DeviceID+"]"))
	}
	dur := gray(formatDuration(res.Duration.Milliseconds()))
	if res.Status == core.StatusPassed {
		fmt.Fprintf(stdout, "%s %s %s\n", green("✓"), label, dur)
		return
	}
	fmt.Fprintf(stdout, "%s %s %s\n", red("✗"), label, dur)
	if res.Error != "" {
		fmt.Fprintf(stdout, "  %s %s\n", gray("╰─"), res.Error)
	}
}

func statusLabel(s core.StepStatus) string {
	switch s {
	case core.StatusPassed:
		return green("✓ PASS")
	case core.StatusFailed:
		return red("✗ FAIL")
	case core.StatusErrored:
		return red("! ERR ")
	case core.StatusSkipped:
		return cyan("- SKIP")
	default:
		return yellow("? " + strings.ToUpper(string(s)))
	}
}

func printSummary(result *core.SuiteResult) {
	totalSteps, passedSteps, failedSteps := 0, 0, 0
	for _, sr := range result.Scenarios {
		totalSteps += sr.TotalSteps
		passedSteps += sr.PassedSteps
		failedSteps += sr.FailedSteps
	}

	fmt.Fprintln(stdout)
	if passedSteps > 0 {
		fmt.Fprintf(stdout, "  %s (%s)\n", green(fmt.Sprintf("%d steps passing", passedSteps)), formatDuration(result.Duration.Milliseconds()))
	}
	if failedSteps > 0 {
		fmt.Fprintf(stdout, "  %s\n", red(fmt.Sprintf("%d steps failing", failedSteps)))
	}
	fmt.Fprintln(stdout)

	tableWidth := 84
	fmt.Fprintln(stdout, strings.Repeat("═", tableWidth))
	fmt.Fprintf(stdout, "  %-42s %6s %7s %6s %6s %10s\n", "Scenario", "Status", "Steps", "Pass", "Fail", "Duration")
	fmt.Fprintln(stdout, strings.Repeat("─", tableWidth))

	for _, sr := range result.Scenarios {
		name := sr.Suite + "/" + sr.Name
		if len(name) > 42 {
			name = name[:39] + "..."
		}
		fmt.Fprintf(stdout, "  %-42s %s %7d %6d %6d %10s\n",
			name, statusLabel(sr.Status),
			sr.TotalSteps, sr.PassedSteps, sr.FailedSteps,
			formatDuration(sr.Duration.Milliseconds()))
	}

	fmt.Fprintln(stdout, strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", result.Passed, result.Total)
	if result.Failed > 0 {
		statusStr = red(fmt.Sprintf("%6s", statusStr))
	} else {
		statusStr = green(fmt.Sprintf("%6s", statusStr))
	}
	fmt.Fprintf(stdout, "  %s %s %7d %6d %6d %10s\n",
		bold(fmt.Sprintf("%-42s", "TOTAL")), statusStr,
		totalSteps, passedSteps, failedSteps,
		formatDuration(result.Duration.Milliseconds()))
	fmt.Fprintln(stdout, strings.Repeat("═", tableWidth))
}

// printDeviceSummary groups the report entries by the device that ran them.
func printDeviceSummary(idx *report.Index) {
	byDevice := map[string][]report.ScenarioEntry{}
	for _, e := range idx.Scenarios {
		id := "unassigned"
		if e.Device != nil {
			id = e.Device.ID
		}
		byDevice[id] = append(byDevice[id], e)
	}
	ids := make([]string, 0, len(byDevice))
	for id := range byDevice {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "  Devices:")
	for _, id := range ids {
		var passed, failed, skipped int
		for _, e := range byDevice[id] {
			switch {
			case e.Status == report.StatusPassed:
				passed++
			case e.Status.IsFailure():
				failed++
			case e.Status == report.StatusSkipped:
				skipped++
			}
		}
		fmt.Fprintf(stdout, "    %-24s %s %s %s\n", id,
			green(fmt.Sprintf("%d passed", passed)),
			red(fmt.Sprintf("%d failed", failed)),
			cyan(fmt.Sprintf("%d skipped", skipped)))
	}
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}

// runID names a run after its start time.
func runID(t time.Time) string {
	return t.Format("20060102-150405")
}
