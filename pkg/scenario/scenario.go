// Package scenario holds the end-to-end scenarios and the context they run in.
package scenario

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
	"github.com/devicelab-dev/shoplist-e2e/pkg/pages"
)

// Tags
const (
	TagSmoke      = "smoke"
	TagRegression = "regression"
)

// Suites
const (
	SuiteHome         = "home"
	SuiteGmail        = "gmail"
	SuiteShoppingList = "shopping_list"
)

// Func is the body of a scenario. A non-nil error fails it.
type Func func(t *T) error

// Scenario is one end-to-end test case.
type Scenario struct {
	Name        string
	Suite       string
	Tags        []string
	Description string
	Run         Func
}

// ID is suite/name, unique within the catalog.
func (s Scenario) ID() string {
	return s.Suite + "/" + s.Name
}

// HasTag reports whether the scenario carries tag.
func (s Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func (s Scenario) hasAny(tags []string) bool {
	for _, t := range tags {
		if s.HasTag(t) {
			return true
		}
	}
	return false
}

// matches reports whether sel names this scenario: its name, its ID, or its suite.
func (s Scenario) matches(sel string) bool {
	return sel == s.Name || sel == s.ID() || sel == s.Suite
}

// Filter selects scenarios in catalog order. A scenario is kept when it has
// at least one include tag (or include is empty), no exclude tag, and is
// named by names (or names is empty).
func Filter(all []Scenario, include, exclude, names []string) []Scenario {
	var out []Scenario
	for _, s := range all {
		if len(include) > 0 && !s.hasAny(include) {
			continue
		}
		if s.hasAny(exclude) {
			continue
		}
		if len(names) > 0 {
			found := false
			for _, n := range names {
				if s.matches(n) {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// Find returns the scenario with the given name or ID.
func Find(all []Scenario, name string) (Scenario, bool) {
	for _, s := range all {
		if s.Name == name || s.ID() == name {
			return s, true
		}
	}
	return Scenario{}, false
}

// T is handed to a running scenario. It records steps and carries the page
// context of the scenario's own session.
type T struct {
	App   *pages.App
	Debug bool

	scenario Scenario
	steps    []core.StepResult
	onStep   func(core.StepResult)
	log      *logrus.Entry
}

// NewT creates the context for one run of sc. onStep may be nil.
func NewT(app *pages.App, sc Scenario, onStep func(core.StepResult)) *T {
	return &T{
		App:      app,
		scenario: sc,
		onStep:   onStep,
		log:      logger.WithFields(map[string]interface{}{"scenario": sc.Name, "suite": sc.Suite}),
	}
}

// Scenario returns the scenario being run.
func (t *T) Scenario() Scenario {
	return t.scenario
}

// Step runs fn as a named step and records its outcome. The returned error
// is fn's error prefixed with the step name.
func (t *T) Step(name string, fn func() error) error {
	start := time.Now()
	t.log.WithField("step", name).Debug("step started")

	err := fn()
	res := core.StepResult{
		Index:     len(t.steps),
		Name:      name,
		Status:    core.StatusForError(err),
		StartTime: start,
		Duration:  time.Since(start),
	}
	if err != nil {
		res.Error = err.Error()
		res.Category = core.CategoryOf(err)
		res.Code = core.CodeOf(err)
		t.log.WithField("step", name).WithError(err).Error("[FAIL]")
	} else {
		t.log.WithField("step", name).Info("[PASS]")
	}

	t.steps = append(t.steps, res)
	if t.onStep != nil {
		t.onStep(res)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Assertf returns an assertion failure with the formatted message unless cond holds.
func (t *T) Assertf(cond bool, format string, args ...interface{}) error {
	if cond {
		return nil
	}
	return core.ErrAssertion.WithMessagef(format, args...)
}

// Logf writes an info event tagged with the scenario.
func (t *T) Logf(format string, args ...interface{}) {
	t.log.Infof(format, args...)
}

// Steps returns the steps recorded so far.
func (t *T) Steps() []core.StepResult {
	return t.steps
}
