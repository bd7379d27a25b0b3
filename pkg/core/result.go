package core

import (
	"time"
)

// StepResult captures the outcome of one named step within a scenario
type StepResult struct {
	Index     int           `json:"index"`
	Name      string        `json:"name"`
	Status    StepStatus    `json:"status"`
	Category  ErrorCategory `json:"errorCategory,omitempty"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Code      string        `json:"code,omitempty"`
	Data      interface{}   `json:"data,omitempty"`
}

// ScenarioResult captures the complete outcome of executing a scenario
type ScenarioResult struct {
	// Identity
	Name  string   `json:"name"`
	Suite string   `json:"suite"`
	Tags  []string `json:"tags,omitempty"`

	// Platform info (captured once per scenario)
	PlatformInfo *PlatformInfo `json:"platformInfo,omitempty"`

	Status    StepStatus    `json:"status"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Steps       []StepResult `json:"steps"`
	Attachments []Attachment `json:"attachments,omitempty"`

	// Summary (computed)
	TotalSteps  int `json:"totalSteps"`
	PassedSteps int `json:"passedSteps"`
	FailedSteps int `json:"failedSteps"`

	Error    string        `json:"error,omitempty"`
	Category ErrorCategory `json:"errorCategory,omitempty"`
}

// PlatformInfo contains device and app details for a session
type PlatformInfo struct {
	Platform     string `json:"platform"`
	OSVersion    string `json:"osVersion"`
	DeviceName   string `json:"deviceName"`
	DeviceID     string `json:"deviceId"`
	ScreenWidth  int    `json:"screenWidth,omitempty"`
	ScreenHeight int    `json:"screenHeight,omitempty"`
	AppID        string `json:"appId,omitempty"`
}

// ComputeSummary calculates step counts from the Steps slice
func (r *ScenarioResult) ComputeSummary() {
	r.TotalSteps = len(r.Steps)
	r.PassedSteps = 0
	r.FailedSteps = 0

	for _, step := range r.Steps {
		switch step.Status {
		case StatusPassed:
			r.PassedSteps++
		case StatusFailed, StatusErrored:
			r.FailedSteps++
		}
	}
}

// Finish records the terminal status from the scenario's returned error.
func (r *ScenarioResult) Finish(err error) {
	r.Duration = time.Since(r.StartTime)
	r.ComputeSummary()
	if err != nil {
		r.Status = StatusForError(err)
		r.Error = err.Error()
		r.Category = CategoryOf(err)
		return
	}
	if r.FailedSteps > 0 {
		r.Status = StatusFailed
		return
	}
	r.Status = StatusPassed
}

// SuiteResult captures the outcome of a whole run
type SuiteResult struct {
	RunID     string           `json:"runId"`
	StartTime time.Time        `json:"startTime"`
	Duration  time.Duration    `json:"duration"`
	Scenarios []ScenarioResult `json:"scenarios"`

	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// ComputeSummary calculates scenario counts from the Scenarios slice
func (s *SuiteResult) ComputeSummary() {
	s.Total = len(s.Scenarios)
	s.Passed = 0
	s.Failed = 0
	s.Skipped = 0

	for _, sc := range s.Scenarios {
		switch sc.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed, StatusErrored:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
}

// Success returns true if at least one scenario ran and none failed
func (s *SuiteResult) Success() bool {
	return s.Failed == 0 && s.Passed > 0
}
