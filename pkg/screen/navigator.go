package screen

import (
	"time"

	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
	"github.com/devicelab-dev/shoplist-e2e/pkg/locator"
	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
)

// returnSettle bounds the wait for a back press to change the foreground app.
const returnSettle = time.Second

// Device is the app-level control surface the navigator needs.
type Device interface {
	Foreground
	ActivateApp(appID string) error
	Back() error
}

// Navigator moves between screens and recovers when the app loses the
// foreground.
type Navigator struct {
	device   Device
	resolver *locator.Resolver
	verifier *Verifier
	appID    string
	settle   time.Duration
}

// NewNavigator creates a navigator for appID. settle bounds every
// post-navigation wait.
func NewNavigator(d Device, r *locator.Resolver, v *Verifier, appID string, settle time.Duration) *Navigator {
	if settle <= 0 {
		settle = r.Timeout()
	}
	return &Navigator{device: d, resolver: r, verifier: v, appID: appID, settle: settle}
}

// Foreground returns the package in front.
func (n *Navigator) Foreground() (string, error) {
	return n.device.CurrentPackage()
}

// InApp reports whether the app under test is in front.
func (n *Navigator) InApp() bool {
	pkg, err := n.device.CurrentPackage()
	return err == nil && pkg == n.appID
}

// WaitForApp waits until the app is in the foreground.
func (n *Navigator) WaitForApp(timeout time.Duration) error {
	if err := n.resolver.WaitUntil(func() (bool, error) { return n.InApp(), nil }, timeout); err != nil {
		return core.ErrAppNotForeground.WithMessagef("%s not in foreground", n.appID).WithCause(err)
	}
	return nil
}

// WaitForOtherApp waits until some other app is in front and returns its package.
func (n *Navigator) WaitForOtherApp(timeout time.Duration) (string, error) {
	var pkg string
	err := n.resolver.WaitUntil(func() (bool, error) {
		p, err := n.device.CurrentPackage()
		if err != nil {
			return false, err
		}
		pkg = p
		return p != n.appID, nil
	}, timeout)
	if err != nil {
		return pkg, core.ErrAssertion.WithMessagef("%s stayed in foreground", n.appID).WithCause(err)
	}
	return pkg, nil
}

// WaitForScreen polls the verifier until the screen is active.
func (n *Navigator) WaitForScreen(name string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = n.settle
	}
	err := n.resolver.WaitUntil(func() (bool, error) {
		return n.verifier.Verify(name), nil
	}, timeout)
	if err != nil {
		return core.ErrScreenNotVerified.WithMessagef("%s not shown within %s", name, timeout).WithCause(err)
	}
	return nil
}

// Back presses system back.
func (n *Navigator) Back() error {
	logger.Debug("pressing back")
	return n.device.Back()
}

// BackTo presses back and waits for the named screen.
func (n *Navigator) BackTo(name string) error {
	if err := n.Back(); err != nil {
		return err
	}
	return n.WaitForScreen(name, n.settle)
}

// ReturnToApp brings the app back after an external app (browser, mail) was
// opened from it. Back usually returns to the app, but may land on the
// launcher instead; then the app is re-activated. If the app is in front but
// anchor is not showing (an in-app web page), back is pressed once more.
// Finally anchor must become resolvable within the settle time.
func (n *Navigator) ReturnToApp(anchor locator.By) error {
	logger.Info("returning to app from external view")
	if err := n.device.Back(); err != nil {
		return err
	}

	if err := n.resolver.WaitUntil(func() (bool, error) { return n.InApp(), nil }, returnSettle); err != nil {
		logger.Info("app exited to launcher, reactivating %s", n.appID)
		if err := n.device.ActivateApp(n.appID); err != nil {
			return core.ErrAppNotForeground.WithMessagef("activate %s", n.appID).WithCause(err)
		}
	} else if n.resolver.Exists(anchor, returnSettle) {
		logger.Info("already back in app")
		return nil
	} else {
		logger.Info("still in web view, pressing back again")
		if err := n.device.Back(); err != nil {
			return err
		}
	}

	if _, err := n.resolver.Resolve(anchor, n.settle); err != nil {
		return core.ErrScreenNotVerified.WithMessagef("%s not shown after returning to app", anchor).WithCause(err)
	}
	return nil
}
