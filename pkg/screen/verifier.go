// Package screen confirms which screen is active and moves between screens.
package screen

import (
	"time"

	"github.com/devicelab-dev/shoplist-e2e/pkg/locator"
	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
)

// MaxMarkerTimeout caps how long a marker lookup may wait.
const MaxMarkerTimeout = 3 * time.Second

// Screen names.
const (
	Home         = "home"
	ShoppingList = "shopping_list"
)

// Widget classes used for the count checks.
const (
	ClassView     = "android.view.View"
	ClassButton   = "android.widget.Button"
	ClassEditText = "android.widget.EditText"
)

// Check identifies which verification check succeeded.
type Check int

// Checks in evaluation order.
const (
	CheckNone Check = iota
	CheckIdentity
	CheckMarker
	CheckCount
)

func (c Check) String() string {
	switch c {
	case CheckIdentity:
		return "identity"
	case CheckMarker:
		return "marker"
	case CheckCount:
		return "count"
	default:
		return "none"
	}
}

// Definition describes how to recognise a screen.
type Definition struct {
	Name string

	// AppID is compared with the foreground package. Empty skips the check;
	// screens inside the same app cannot be told apart by identity.
	AppID string

	// Markers are known descriptors; any one resolving is enough.
	Markers []locator.By

	// At least MinCount elements must match CountBy. Zero MinCount skips it.
	CountBy  locator.By
	MinCount int
}

// Foreground reports the package of the app in front.
type Foreground interface {
	CurrentPackage() (string, error)
}

// Verifier evaluates screen definitions against the live device.
type Verifier struct {
	resolver      *locator.Resolver
	device        Foreground
	screens       map[string]Definition
	markerTimeout time.Duration
}

// NewVerifier creates a verifier with no screens registered.
func NewVerifier(r *locator.Resolver, device Foreground, markerTimeout time.Duration) *Verifier {
	if markerTimeout <= 0 || markerTimeout > MaxMarkerTimeout {
		markerTimeout = MaxMarkerTimeout
	}
	return &Verifier{
		resolver:      r,
		device:        device,
		screens:       make(map[string]Definition),
		markerTimeout: markerTimeout,
	}
}

// Register adds or replaces a screen definition.
func (v *Verifier) Register(d Definition) {
	v.screens[d.Name] = d
}

// Definition returns a registered screen.
func (v *Verifier) Definition(name string) (Definition, bool) {
	d, ok := v.screens[name]
	return d, ok
}

// Verify reports whether the named screen is active.
func (v *Verifier) Verify(name string) bool {
	return v.Which(name) != CheckNone
}

// Which evaluates the checks in priority order and returns the first that
// succeeded, or CheckNone. Lookup failures count as a failed check.
func (v *Verifier) Which(name string) Check {
	d, ok := v.screens[name]
	if !ok {
		logger.Warn("verify: unknown screen %q", name)
		return CheckNone
	}

	if d.AppID != "" {
		pkg, err := v.device.CurrentPackage()
		if err != nil {
			logger.Debug("verify %s: current package: %v", name, err)
		} else if pkg == d.AppID {
			logger.Info("%s verified by package name", name)
			return CheckIdentity
		}
	}

	for _, m := range d.Markers {
		if v.resolver.Exists(m, v.markerTimeout) {
			logger.Info("%s verified by marker %s", name, m)
			return CheckMarker
		}
	}

	if d.MinCount > 0 {
		if n := v.resolver.Count(d.CountBy); n >= d.MinCount {
			logger.Info("%s verified by element count (%d >= %d)", name, n, d.MinCount)
			return CheckCount
		}
	}

	logger.Warn("%s verification failed", name)
	return CheckNone
}

// AppScreens returns the definitions for the shopping app's two screens.
func AppScreens(appID string) []Definition {
	return []Definition{
		{
			Name:     Home,
			AppID:    appID,
			CountBy:  locator.ByClassName(ClassButton),
			MinCount: 3,
		},
		{
			Name: ShoppingList,
			Markers: []locator.By{
				locator.ByAccessibilityID("Add items to your shopping list"),
				locator.ByAccessibilityID("No items yet"),
			},
			CountBy:  locator.ByClassName(ClassEditText),
			MinCount: 2,
		},
	}
}
