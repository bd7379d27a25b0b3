package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
)

// IndexFile is the name of the run index inside the output directory.
const IndexFile = "report.json"

// progressDelay debounces step updates.
const progressDelay = 100 * time.Millisecond

// Config carries the run-level fields of a new index.
type Config struct {
	RunID  string
	Device Device
	App    App
	Runner RunnerInfo
}

// Planned is a scenario selected for the run.
type Planned struct {
	ID          string
	Name        string
	Suite       string
	Tags        []string
	Description string
}

// NewIndex builds the pending index for a run.
func NewIndex(cfg Config, planned []Planned) *Index {
	idx := &Index{
		Version:   Version,
		RunID:     cfg.RunID,
		Status:    StatusPending,
		Device:    cfg.Device,
		App:       cfg.App,
		Runner:    cfg.Runner,
		Scenarios: make([]ScenarioEntry, len(planned)),
	}
	for i, p := range planned {
		idx.Scenarios[i] = ScenarioEntry{
			Index:       i,
			ID:          p.ID,
			Name:        p.Name,
			Suite:       p.Suite,
			Tags:        p.Tags,
			Description: p.Description,
			Status:      StatusPending,
			Steps:       []Step{},
		}
	}
	idx.Summary = summarize(idx.Scenarios)
	return idx
}

// IndexWriter provides thread-safe updates to report.json. Scenarios running
// on different devices update it concurrently.
type IndexWriter struct {
	mu        sync.Mutex
	outputDir string
	path      string
	index     *Index
	timer     *time.Timer
}

// NewIndexWriter creates the output directory and writes the initial index.
func NewIndexWriter(outputDir string, index *Index) (*IndexWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	w := &IndexWriter{
		outputDir: outputDir,
		path:      filepath.Join(outputDir, IndexFile),
		index:     index,
	}
	if err := atomicWriteJSON(w.path, index); err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}
	return w, nil
}

// Path returns the location of report.json.
func (w *IndexWriter) Path() string {
	return w.path
}

// Start marks the run as started.
func (w *IndexWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.Status = StatusRunning
	w.index.StartTime = now
	w.flushLocked()
}

// ScenarioStart marks a scenario as running on dev.
func (w *IndexWriter) ScenarioStart(id string, dev *Device) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := w.entry(id)
	if e == nil {
		return
	}
	now := time.Now()
	e.Status = StatusRunning
	e.StartTime = &now
	e.Device = dev
	e.Steps = []Step{}
	w.flushLocked()
}

// StepDone appends a finished step. Writes are debounced.
func (w *IndexWriter) StepDone(id string, step core.StepResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := w.entry(id)
	if e == nil {
		return
	}
	e.Steps = append(e.Steps, stepFrom(step))
	e.UpdateSeq++

	if w.timer == nil {
		w.timer = time.AfterFunc(progressDelay, w.flush)
	}
}

// ScenarioEnd records the final result of a scenario and saves its
// attachments under assets/. Flushes immediately.
func (w *IndexWriter) ScenarioEnd(id string, res *core.ScenarioResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := w.entry(id)
	if e == nil {
		return
	}
	end := res.StartTime.Add(res.Duration)
	ms := res.Duration.Milliseconds()
	start := res.StartTime
	e.Status = FromCore(res.Status)
	e.StartTime = &start
	e.EndTime = &end
	e.Duration = &ms
	e.Steps = make([]Step, len(res.Steps))
	for i, s := range res.Steps {
		e.Steps[i] = stepFrom(s)
	}
	e.Error = nil
	if res.Error != "" {
		e.Error = &Error{Type: res.Category.String(), Message: res.Error}
		if n := len(res.Steps); n > 0 && res.Steps[n-1].Code != "" {
			e.Error.Code = res.Steps[n-1].Code
		}
	}
	e.Attachments = w.saveAttachments(e.ID, res.Attachments)
	w.flushLocked()
}

// Skip marks a scenario as skipped with reason.
func (w *IndexWriter) Skip(id, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e := w.entry(id)
	if e == nil {
		return
	}
	e.Status = StatusSkipped
	if reason != "" {
		e.Error = &Error{Type: "skipped", Message: reason}
	}
	w.flushLocked()
}

// End marks the run as complete.
func (w *IndexWriter) End() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.EndTime = &now
	w.index.Status = runStatus(w.index.Scenarios)
	w.flushLocked()
}

// Close flushes any pending update.
func (w *IndexWriter) Close() {
	w.flush()
}

// Snapshot returns a copy of the current index.
func (w *IndexWriter) Snapshot() Index {
	w.mu.Lock()
	defer w.mu.Unlock()

	cp := *w.index
	cp.Scenarios = append([]ScenarioEntry(nil), w.index.Scenarios...)
	return cp
}

func (w *IndexWriter) entry(id string) *ScenarioEntry {
	for i := range w.index.Scenarios {
		if w.index.Scenarios[i].ID == id {
			return &w.index.Scenarios[i]
		}
	}
	logger.Warn("report: unknown scenario %s", id)
	return nil
}

func (w *IndexWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLocked()
}

func (w *IndexWriter) flushLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = summarize(w.index.Scenarios)

	if err := atomicWriteJSON(w.path, w.index); err != nil {
		logger.Error("write %s: %v", w.path, err)
	}
}

func (w *IndexWriter) saveAttachments(id string, atts []core.Attachment) []Attachment {
	if len(atts) == 0 {
		return nil
	}
	dir := filepath.Join("assets", AssetDir(id))
	if err := os.MkdirAll(filepath.Join(w.outputDir, dir), 0o755); err != nil {
		logger.Error("create assets dir: %v", err)
		return nil
	}
	var out []Attachment
	for _, a := range atts {
		rel := filepath.Join(dir, filepath.Base(a.Path))
		if err := os.WriteFile(filepath.Join(w.outputDir, rel), a.Body, 0o644); err != nil {
			logger.Error("write attachment %s: %v", rel, err)
			continue
		}
		out = append(out, Attachment{Name: a.Name, Type: a.ContentType, Path: filepath.ToSlash(rel)})
	}
	return out
}

// AssetDir turns a scenario ID into a directory name.
func AssetDir(id string) string {
	return strings.NewReplacer("/", "-", "\\", "-", " ", "_").Replace(id)
}

func stepFrom(s core.StepResult) Step {
	st := Step{
		Index:     s.Index,
		Name:      s.Name,
		Status:    FromCore(s.Status),
		StartTime: s.StartTime,
		Duration:  s.Duration.Milliseconds(),
	}
	if s.Error != "" {
		st.Error = &Error{Type: s.Category.String(), Code: s.Code, Message: s.Error}
	}
	return st
}

func summarize(entries []ScenarioEntry) Summary {
	var s Summary
	for _, e := range entries {
		s.Total++
		switch e.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusErrored:
			s.Errored++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// runStatus determines overall run status from scenarios.
func runStatus(entries []ScenarioEntry) Status {
	hasFailure := false
	for _, e := range entries {
		if !e.Status.IsTerminal() {
			return StatusRunning
		}
		if e.Status.IsFailure() {
			hasFailure = true
		}
	}
	if hasFailure {
		return StatusFailed
	}
	return StatusPassed
}

// ReadReport loads report.json from dir.
func ReadReport(dir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", IndexFile, err)
	}
	return &idx, nil
}

// atomicWriteJSON writes v to a temp file next to path and renames it, so
// readers polling the file never see a partial document.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
