// Package report provides JSON-based test reporting with live updates.
//
// Layout:
//   - report.json: run index with one entry per scenario (mutex-protected, rewritten atomically)
//   - assets/<scenario-id>/: failure artifacts (screenshot, hierarchy)
//   - allure-results/: optional Allure export generated from report.json
package report

import (
	"time"

	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusErrored || s == StatusSkipped
}

// IsFailure returns true for failed and errored.
func (s Status) IsFailure() bool {
	return s == StatusFailed || s == StatusErrored
}

// FromCore converts an execution status.
func FromCore(s core.StepStatus) Status {
	switch s {
	case core.StatusRunning:
		return StatusRunning
	case core.StatusPassed:
		return StatusPassed
	case core.StatusFailed:
		return StatusFailed
	case core.StatusErrored:
		return StatusErrored
	case core.StatusSkipped:
		return StatusSkipped
	default:
		return StatusPending
	}
}

// Index is the report.json document.
type Index struct {
	Version     string          `json:"version"`
	RunID       string          `json:"runId"`
	UpdateSeq   uint64          `json:"updateSeq"`
	Status      Status          `json:"status"`
	StartTime   time.Time       `json:"startTime"`
	EndTime     *time.Time      `json:"endTime,omitempty"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Device      Device          `json:"device"`
	App         App             `json:"app"`
	Runner      RunnerInfo      `json:"runner"`
	Summary     Summary         `json:"summary"`
	Scenarios   []ScenarioEntry `json:"scenarios"`
}

// Device contains device information.
type Device struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Platform  string `json:"platform"`
	OSVersion string `json:"osVersion"`
}

// App contains application information.
type App struct {
	ID       string `json:"id"` // package name
	Activity string `json:"activity,omitempty"`
}

// RunnerInfo describes the tool that produced the report.
type RunnerInfo struct {
	Version string `json:"version"`
	Driver  string `json:"driver"` // appium, mock
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
}

// ScenarioEntry is one scenario in the index.
type ScenarioEntry struct {
	Index       int          `json:"index"`
	ID          string       `json:"id"` // suite/name
	Name        string       `json:"name"`
	Suite       string       `json:"suite"`
	Tags        []string     `json:"tags,omitempty"`
	Description string       `json:"description,omitempty"`
	Status      Status       `json:"status"`
	UpdateSeq   uint64       `json:"updateSeq"`
	Device      *Device      `json:"device,omitempty"` // device that ran it, for multi-device runs
	StartTime   *time.Time   `json:"startTime,omitempty"`
	EndTime     *time.Time   `json:"endTime,omitempty"`
	Duration    *int64       `json:"duration,omitempty"` // milliseconds
	Steps       []Step       `json:"steps"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Error       *Error       `json:"error,omitempty"`
}

// Step is one recorded step of a scenario.
type Step struct {
	Index     int       `json:"index"`
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	StartTime time.Time `json:"startTime"`
	Duration  int64     `json:"duration"` // milliseconds
	Error     *Error    `json:"error,omitempty"`
}

// Error contains error details.
type Error struct {
	Type    string `json:"type"` // error category: assertion, timeout, structure, ...
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Attachment is an artifact file, path relative to the report directory.
type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
}
