package report

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
)

func planned() []Planned {
	return []Planned{
		{ID: "home/all_buttons_visible", Name: "all_buttons_visible", Suite: "home", Tags: []string{"smoke"}},
		{ID: "shopping_list/add_single_item", Name: "add_single_item", Suite: "shopping_list", Tags: []string{"regression"}},
		{ID: "shopping_list/delete_item", Name: "delete_item", Suite: "shopping_list", Tags: []string{"regression"}},
	}
}

func newWriter(t *testing.T) (*IndexWriter, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "reports")
	idx := NewIndex(Config{
		RunID:  "run-1",
		Device: Device{ID: "emulator-5554", Name: "emulator-5554", Platform: "Android", OSVersion: "16"},
		App:    App{ID: "com.example.my_app"},
		Runner: RunnerInfo{Version: "dev", Driver: "mock"},
	}, planned())
	w, err := NewIndexWriter(dir, idx)
	if err != nil {
		t.Fatalf("NewIndexWriter: %v", err)
	}
	t.Cleanup(w.Close)
	return w, dir
}

func passed(name string, steps ...string) *core.ScenarioResult {
	res := &core.ScenarioResult{Name: name, StartTime: time.Now()}
	for i, s := range steps {
		res.Steps = append(res.Steps, core.StepResult{Index: i, Name: s, Status: core.StatusPassed, StartTime: time.Now()})
	}
	res.Finish(nil)
	return res
}

func TestNewIndex(t *testing.T) {
	idx := NewIndex(Config{RunID: "r"}, planned())
	if idx.Version != Version {
		t.Errorf("Version = %q", idx.Version)
	}
	if idx.Status != StatusPending {
		t.Errorf("Status = %q, want pending", idx.Status)
	}
	if idx.Summary.Total != 3 || idx.Summary.Pending != 3 {
		t.Errorf("Summary = %+v", idx.Summary)
	}
	if idx.Scenarios[2].Index != 2 || idx.Scenarios[2].ID != "shopping_list/delete_item" {
		t.Errorf("Scenarios[2] = %+v", idx.Scenarios[2])
	}
}

func TestIndexWriter_WritesInitialIndex(t *testing.T) {
	_, dir := newWriter(t)
	idx, err := ReadReport(dir)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if idx.RunID != "run-1" || len(idx.Scenarios) != 3 {
		t.Errorf("index = %+v", idx)
	}
}

func TestIndexWriter_Lifecycle(t *testing.T) {
	w, dir := newWriter(t)
	w.Start()

	dev := &Device{ID: "emulator-5554"}
	w.ScenarioStart("home/all_buttons_visible", dev)
	w.StepDone("home/all_buttons_visible", core.StepResult{Name: "wait for home page", Status: core.StatusPassed})
	w.ScenarioEnd("home/all_buttons_visible", passed("all_buttons_visible", "wait for home page", "Web Search visible"))

	fail := &core.ScenarioResult{Name: "add_single_item", StartTime: time.Now()}
	fail.Steps = []core.StepResult{{
		Name: "Milk x2 in list", Status: core.StatusFailed,
		Error: "Milk not found in shopping list", Category: core.ErrCategoryAssertion, Code: "assertion_failed",
	}}
	fail.Attachments = []core.Attachment{core.NewScreenshotAttachment("failure.png", []byte{0x89, 'P', 'N', 'G'})}
	fail.Finish(core.ErrAssertion.WithMessage("Milk not found in shopping list"))
	w.ScenarioEnd("shopping_list/add_single_item", fail)

	w.Skip("shopping_list/delete_item", "run stopped")
	w.End()

	idx, err := ReadReport(dir)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if idx.Status != StatusFailed {
		t.Errorf("run Status = %q, want failed", idx.Status)
	}
	if idx.EndTime == nil {
		t.Error("EndTime not set")
	}
	want := Summary{Total: 3, Passed: 1, Failed: 1, Skipped: 1}
	if idx.Summary != want {
		t.Errorf("Summary = %+v, want %+v", idx.Summary, want)
	}

	ok := idx.Scenarios[0]
	if ok.Status != StatusPassed || len(ok.Steps) != 2 || ok.Duration == nil {
		t.Errorf("passed entry = %+v", ok)
	}
	if ok.Device == nil || ok.Device.ID != "emulator-5554" {
		t.Errorf("Device = %+v", ok.Device)
	}

	bad := idx.Scenarios[1]
	if bad.Error == nil || bad.Error.Type != "assertion" || bad.Error.Code != "assertion_failed" {
		t.Errorf("Error = %+v", bad.Error)
	}
	if len(bad.Attachments) != 1 {
		t.Fatalf("Attachments = %+v", bad.Attachments)
	}
	if bad.Attachments[0].Path != "assets/shopping_list-add_single_item/failure.png" {
		t.Errorf("attachment path = %q", bad.Attachments[0].Path)
	}
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(bad.Attachments[0].Path))); err != nil {
		t.Errorf("attachment not written: %v", err)
	}

	if idx.Scenarios[2].Status != StatusSkipped || idx.Scenarios[2].Error.Message != "run stopped" {
		t.Errorf("skipped entry = %+v", idx.Scenarios[2])
	}
}

func TestIndexWriter_StepDoneIsDebounced(t *testing.T) {
	w, dir := newWriter(t)
	w.ScenarioStart("home/all_buttons_visible", nil)
	w.StepDone("home/all_buttons_visible", core.StepResult{Name: "one", Status: core.StatusPassed})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		idx, err := ReadReport(dir)
		if err == nil && len(idx.Scenarios[0].Steps) == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("step update never flushed")
}

func TestIndexWriter_UnknownScenarioIgnored(t *testing.T) {
	w, _ := newWriter(t)
	w.ScenarioStart("nope", nil)
	w.ScenarioEnd("nope", passed("nope"))
	if s := w.Snapshot(); s.Summary.Pending != 3 {
		t.Errorf("Summary = %+v", s.Summary)
	}
}

func TestIndexWriter_Concurrent(t *testing.T) {
	w, dir := newWriter(t)
	w.Start()

	var wg sync.WaitGroup
	for _, p := range planned() {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			w.ScenarioStart(id, nil)
			for i := 0; i < 5; i++ {
				w.StepDone(id, core.StepResult{Index: i, Status: core.StatusPassed})
			}
			w.ScenarioEnd(id, passed(id, "a"))
		}(p.ID)
	}
	wg.Wait()
	w.End()

	idx, err := ReadReport(dir)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if idx.Status != StatusPassed || idx.Summary.Passed != 3 {
		t.Errorf("Status = %q Summary = %+v", idx.Status, idx.Summary)
	}
}

func TestRunStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"all passed", []Status{StatusPassed, StatusPassed}, StatusPassed},
		{"passed and skipped", []Status{StatusPassed, StatusSkipped}, StatusPassed},
		{"errored fails run", []Status{StatusPassed, StatusErrored}, StatusFailed},
		{"still running", []Status{StatusPassed, StatusRunning}, StatusRunning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entries []ScenarioEntry
			for _, s := range tt.statuses {
				entries = append(entries, ScenarioEntry{Status: s})
			}
			if got := runStatus(entries); got != tt.want {
				t.Errorf("runStatus = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromCore(t *testing.T) {
	if FromCore(core.StatusErrored) != StatusErrored || FromCore(core.StatusPending) != StatusPending {
		t.Error("status mapping")
	}
}

func TestReadReport_Missing(t *testing.T) {
	_, err := ReadReport(t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not exist", err)
	}
}

func TestAssetDir(t *testing.T) {
	if got := AssetDir("shopping_list/add item"); got != "shopping_list-add_item" {
		t.Errorf("AssetDir = %q", got)
	}
}
