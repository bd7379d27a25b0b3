package report

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
)

// AllureDir is the Allure results directory inside the report directory.
const AllureDir = "allure-results"

// Allure result schema types.

// AllureResult represents a single test result in Allure format.
type AllureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	FullName      string              `json:"fullName"`
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []AllureLabel       `json:"labels"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureStep represents a step within a test result.
type AllureStep struct {
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureAttachment represents a file attachment.
type AllureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// AllureLabel represents a label on a test result.
type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureStatusDetails holds failure message and trace.
type AllureStatusDetails struct {
	Message string `json:"message"`
	Trace   string `json:"trace"`
}

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	MessageRegex    string   `json:"messageRegex"`
}

// AllureExecutor holds executor info.
type AllureExecutor struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	BuildName  string `json:"buildName,omitempty"`
	ReportName string `json:"reportName"`
}

// GenerateAllure generates Allure-compatible files in <reportDir>/allure-results/
// from report.json.
func GenerateAllure(reportDir string) error {
	index, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	allureDir := filepath.Join(reportDir, AllureDir)
	if err := os.MkdirAll(allureDir, 0o755); err != nil {
		return fmt.Errorf("create allure-results dir: %w", err)
	}

	for i := range index.Scenarios {
		entry := &index.Scenarios[i]
		if entry.Status == StatusPending {
			continue
		}
		result := buildAllureResult(entry, index)
		copyAttachments(reportDir, allureDir, entry.Attachments, result.Attachments)

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal allure result for %s: %w", entry.ID, err)
		}
		resultPath := filepath.Join(allureDir, result.UUID+"-result.json")
		if err := os.WriteFile(resultPath, data, 0o644); err != nil {
			return fmt.Errorf("write allure result %s: %w", entry.ID, err)
		}
	}

	if err := writeAllureCategories(allureDir); err != nil {
		return err
	}
	if err := writeAllureEnvironment(allureDir, index); err != nil {
		return err
	}
	return writeAllureExecutor(allureDir, index)
}

func buildAllureResult(entry *ScenarioEntry, index *Index) AllureResult {
	var startMs, stopMs int64
	if entry.StartTime != nil {
		startMs = entry.StartTime.UnixMilli()
	}
	if entry.EndTime != nil {
		stopMs = entry.EndTime.UnixMilli()
	} else if entry.StartTime != nil && entry.Duration != nil {
		stopMs = startMs + *entry.Duration
	}

	labels := []AllureLabel{
		{Name: "suite", Value: entry.Suite},
		{Name: "parentSuite", Value: index.App.ID},
		{Name: "testClass", Value: entry.Suite},
		{Name: "testMethod", Value: entry.Name},
		{Name: "framework", Value: "shoplist-e2e"},
		{Name: "language", Value: "go"},
		{Name: "severity", Value: severity(entry.Tags)},
	}
	dev := entry.Device
	if dev == nil {
		dev = &index.Device
	}
	if dev.Name != "" {
		labels = append(labels, AllureLabel{Name: "host", Value: dev.Name})
	}
	if dev.ID != "" {
		labels = append(labels, AllureLabel{Name: "thread", Value: dev.ID})
	}
	for _, tag := range entry.Tags {
		labels = append(labels, AllureLabel{Name: "tag", Value: tag})
	}

	var details AllureStatusDetails
	if entry.Error != nil {
		details.Message = entry.Error.Message
		details.Trace = entry.Error.Type
		if entry.Error.Code != "" {
			details.Trace += ": " + entry.Error.Code
		}
	}

	id := uuid.New().String()
	attachments := make([]AllureAttachment, 0, len(entry.Attachments))
	for _, a := range entry.Attachments {
		attachments = append(attachments, AllureAttachment{
			Name:   a.Name,
			Source: id + "-" + filepath.Base(a.Path),
			Type:   a.Type,
		})
	}

	return AllureResult{
		UUID:          id,
		HistoryID:     fnv32aHash(entry.ID),
		FullName:      entry.ID,
		Name:          entry.Name,
		Description:   entry.Description,
		Status:        mapAllureStatus(entry.Status),
		Stage:         "finished",
		Start:         startMs,
		Stop:          stopMs,
		Labels:        labels,
		StatusDetails: details,
		Steps:         buildAllureSteps(entry.Steps),
		Attachments:   attachments,
	}
}

func buildAllureSteps(steps []Step) []AllureStep {
	out := make([]AllureStep, 0, len(steps))
	for _, s := range steps {
		start := s.StartTime.UnixMilli()
		step := AllureStep{
			Name:        s.Name,
			Status:      mapAllureStatus(s.Status),
			Stage:       "finished",
			Start:       start,
			Stop:        start + s.Duration,
			Steps:       []AllureStep{},
			Attachments: []AllureAttachment{},
		}
		if s.Error != nil {
			step.StatusDetails.Message = s.Error.Message
		}
		out = append(out, step)
	}
	return out
}

// severity ranks smoke scenarios above the rest.
func severity(tags []string) string {
	for _, t := range tags {
		if strings.EqualFold(t, "smoke") {
			return "critical"
		}
	}
	return "normal"
}

// copyAttachments copies artifact files flat into allure-results/ under the
// names the result refers to.
func copyAttachments(reportDir, allureDir string, src []Attachment, dst []AllureAttachment) {
	for i := range src {
		if i >= len(dst) {
			return
		}
		copyFile(filepath.Join(reportDir, filepath.FromSlash(src[i].Path)), filepath.Join(allureDir, dst[i].Source))
	}
}

// copyFile copies src to dst. A missing source is skipped.
func copyFile(src, dst string) {
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		logger.Warn("failed to copy %s to %s: %v", src, dst, err)
	}
}

// mapAllureStatus maps report Status to Allure status string.
func mapAllureStatus(s Status) string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "broken"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// writeAllureCategories writes categories.json for failure categorization.
func writeAllureCategories(allureDir string) error {
	categories := []AllureCategory{
		{Name: "Element Not Found", MatchedStatuses: []string{"failed", "broken"}, MessageRegex: "(?i).*not found.*"},
		{Name: "Item Not In List", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*(still exists|not found in shopping list).*"},
		{Name: "Post-Action Verification", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*(not observed|did not decrease|verification).*"},
		{Name: "Control Misalignment", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*(aligned|out of range|controls).*"},
		{Name: "Timeout", MatchedStatuses: []string{"failed", "broken"}, MessageRegex: "(?i).*(timeout|timed out|within).*"},
		{Name: "App Not In Foreground", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*foreground.*"},
		{Name: "Connection Error", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*(connection|session|refused).*"},
	}

	data, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	path := filepath.Join(allureDir, "categories.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}
	return nil
}

// writeAllureEnvironment writes environment.properties with device and app metadata.
func writeAllureEnvironment(allureDir string, index *Index) error {
	var b strings.Builder
	b.WriteString("framework=shoplist-e2e\n")

	props := []struct{ key, value string }{
		{"device.name", index.Device.Name},
		{"device.platform", index.Device.Platform},
		{"device.osVersion", index.Device.OSVersion},
		{"runner.version", index.Runner.Version},
		{"runner.driver", index.Runner.Driver},
		{"app.id", index.App.ID},
	}
	for _, p := range props {
		if p.value != "" {
			fmt.Fprintf(&b, "%s=%s\n", p.key, p.value)
		}
	}

	path := filepath.Join(allureDir, "environment.properties")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}
	return nil
}

// writeAllureExecutor writes executor.json.
func writeAllureExecutor(allureDir string, index *Index) error {
	executor := AllureExecutor{
		Name:       "shoplist-e2e",
		Type:       "local",
		BuildName:  index.RunID,
		ReportName: "Shopping List E2E",
	}

	data, err := json.MarshalIndent(executor, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal executor: %w", err)
	}
	path := filepath.Join(allureDir, "executor.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write executor.json: %w", err)
	}
	return nil
}
