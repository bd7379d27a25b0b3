// Package locator resolves logical element keys to live element handles.
//
// Handles are scoped to the screen as it was when they were found. Polling
// loops look elements up again on every iteration and never reuse a handle
// from an earlier one.
package locator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
	"github.com/devicelab-dev/shoplist-e2e/pkg/driver/appium"
	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
	"github.com/devicelab-dev/shoplist-e2e/pkg/wait"
)

// DefaultTimeout applies when a resolver is asked to wait with a zero timeout
// and was not given its own default.
var DefaultTimeout = 20 * time.Second

// Session is the slice of the automation transport the resolver uses.
// *appium.Client implements it.
type Session interface {
	FindElement(strategy, value string) (string, error)
	FindElements(strategy, value string) ([]string, error)
	GetElementAttribute(elementID, name string) (string, error)
	GetElementText(elementID string) (string, error)
	IsElementDisplayed(elementID string) (bool, error)
	ClickElement(elementID string) error
	ClearElement(elementID string) error
	SetElementValue(elementID, text string) error
}

// Strategy is a lookup strategy understood by the automation server.
type Strategy string

// Supported strategies.
const (
	AccessibilityID Strategy = appium.StrategyAccessibilityID
	ClassName       Strategy = appium.StrategyClassName
	UiSelector      Strategy = appium.StrategyUiAutomator
)

// By is a strategy plus the key to look up.
type By struct {
	Strategy Strategy
	Value    string
}

func (b By) String() string {
	return fmt.Sprintf("%s=%q", b.Strategy, b.Value)
}

// ByAccessibilityID matches the exact accessibility label.
func ByAccessibilityID(label string) By {
	return By{Strategy: AccessibilityID, Value: label}
}

// ByClassName matches the exact widget class.
func ByClassName(class string) By {
	return By{Strategy: ClassName, Value: class}
}

// BySelector matches a UiSelector expression.
func BySelector(s Selector) By {
	return By{Strategy: UiSelector, Value: s.String()}
}

// Selector builds UiSelector expressions. The zero value matches everything.
// Methods return a new Selector, so partial selectors can be shared.
type Selector struct {
	calls []string
}

// NewSelector returns an empty selector.
func NewSelector() Selector {
	return Selector{}
}

func (s Selector) with(method, arg string) Selector {
	calls := make([]string, len(s.calls), len(s.calls)+1)
	copy(calls, s.calls)
	calls = append(calls, fmt.Sprintf(`.%s("%s")`, method, escapeUiAutomatorString(arg)))
	return Selector{calls: calls}
}

// ClassName requires the widget class to equal v.
func (s Selector) ClassName(v string) Selector { return s.with("className", v) }

// Description requires the content description to equal v.
func (s Selector) Description(v string) Selector { return s.with("description", v) }

// DescriptionContains requires the content description to contain v.
func (s Selector) DescriptionContains(v string) Selector { return s.with("descriptionContains", v) }

// Text requires the text to equal v.
func (s Selector) Text(v string) Selector { return s.with("text", v) }

// TextContains requires the text to contain v.
func (s Selector) TextContains(v string) Selector { return s.with("textContains", v) }

func (s Selector) String() string {
	return "new UiSelector()" + strings.Join(s.calls, "")
}

// escapeUiAutomatorString escapes quotes for UiAutomator string
func escapeUiAutomatorString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// Element is a handle to a live UI node.
type Element struct {
	id      string
	by      By
	session Session
}

// NewElement wraps an element ID returned by the server.
func NewElement(s Session, id string, by By) *Element {
	return &Element{id: id, by: by, session: s}
}

// ID returns the server-side element reference.
func (e *Element) ID() string { return e.id }

// By returns the key the element was found with.
func (e *Element) By() By { return e.by }

// Description returns the accessibility description ("" when absent).
func (e *Element) Description() (string, error) {
	return e.session.GetElementAttribute(e.id, "content-desc")
}

// Attribute returns a named attribute.
func (e *Element) Attribute(name string) (string, error) {
	return e.session.GetElementAttribute(e.id, name)
}

// Text returns the element text.
func (e *Element) Text() (string, error) {
	return e.session.GetElementText(e.id)
}

// Displayed reports whether the element is visible.
func (e *Element) Displayed() (bool, error) {
	return e.session.IsElementDisplayed(e.id)
}

// Click taps the element.
func (e *Element) Click() error {
	if err := e.session.ClickElement(e.id); err != nil {
		return fmt.Errorf("click %s: %w", e.by, err)
	}
	return nil
}

// Clear empties an input field.
func (e *Element) Clear() error {
	if err := e.session.ClearElement(e.id); err != nil {
		return fmt.Errorf("clear %s: %w", e.by, err)
	}
	return nil
}

// SendKeys types text into an input field.
func (e *Element) SendKeys(text string) error {
	if err := e.session.SetElementValue(e.id, text); err != nil {
		return fmt.Errorf("type into %s: %w", e.by, err)
	}
	return nil
}

// Resolver finds elements with explicit waits.
type Resolver struct {
	session Session
	timeout time.Duration
	poll    time.Duration
}

// NewResolver creates a resolver. timeout is the default used when a call
// passes zero; poll is the interval between lookups.
func NewResolver(s Session, timeout, poll time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if poll <= 0 {
		poll = wait.DefaultInterval
	}
	return &Resolver{session: s, timeout: timeout, poll: poll}
}

// Session returns the underlying transport.
func (r *Resolver) Session() Session { return r.session }

// Timeout returns the default wait.
func (r *Resolver) Timeout() time.Duration { return r.timeout }

// Poll returns the polling interval.
func (r *Resolver) Poll() time.Duration { return r.poll }

// Resolve waits up to timeout for an element matching by. A zero timeout uses
// the resolver default. Fails with core.ErrElementNotFound.
func (r *Resolver) Resolve(by By, timeout time.Duration) (*Element, error) {
	if timeout <= 0 {
		timeout = r.timeout
	}

	var found string
	err := wait.Until(func() (bool, error) {
		id, err := r.session.FindElement(string(by.Strategy), by.Value)
		if err != nil {
			return false, err
		}
		found = id
		return id != "", nil
	}, timeout, r.poll)
	if err != nil {
		logger.Debug("resolve %s: not found within %s", by, timeout)
		nf := core.ErrElementNotFound.WithMessagef("%s not found within %s", by, timeout)
		if cause := errors.Unwrap(err); cause != nil && !errors.Is(cause, core.ErrElementNotFound) {
			// Something other than a plain miss, e.g. the server went away.
			return nil, nf.WithCause(cause)
		}
		return nil, nf
	}
	return NewElement(r.session, found, by), nil
}

// ResolveAll returns whatever matches now, without waiting. No match is an
// empty slice.
func (r *Resolver) ResolveAll(by By) ([]*Element, error) {
	ids, err := r.session.FindElements(string(by.Strategy), by.Value)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", by, err)
	}
	out := make([]*Element, 0, len(ids))
	for _, id := range ids {
		out = append(out, NewElement(r.session, id, by))
	}
	return out, nil
}

// Exists reports whether by resolves within timeout. It never fails.
func (r *Resolver) Exists(by By, timeout time.Duration) bool {
	_, err := r.Resolve(by, timeout)
	return err == nil
}

// Count returns the number of current matches, 0 on any lookup failure.
func (r *Resolver) Count(by By) int {
	elems, err := r.ResolveAll(by)
	if err != nil {
		return 0
	}
	return len(elems)
}

// WaitUntil polls cond at the resolver interval until it holds or timeout
// elapses. A zero timeout uses the resolver default.
func (r *Resolver) WaitUntil(cond wait.Condition, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = r.timeout
	}
	return wait.Until(cond, timeout, r.poll)
}

// WaitGone waits until by no longer resolves.
func (r *Resolver) WaitGone(by By, timeout time.Duration) error {
	return r.WaitUntil(func() (bool, error) {
		return r.Count(by) == 0, nil
	}, timeout)
}
