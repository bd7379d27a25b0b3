package appium

import (
	"time"

	"github.com/devicelab-dev/shoplist-e2e/pkg/config"
	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
	"github.com/devicelab-dev/shoplist-e2e/pkg/wait"
)

// Driver is one automation session bound to the app under test. Every
// scenario gets its own Driver and closes it on exit, pass or fail.
type Driver struct {
	client  *Client
	appID   string
	timeout config.Timeouts
	info    *core.PlatformInfo
}

// NewDriver creates a session from cfg and waits until the app under test is
// in the foreground. The session is closed again if the app never shows up.
func NewDriver(cfg *config.Config) (*Driver, error) {
	return newDriver(NewClient(cfg.AppiumServer), cfg)
}

func newDriver(client *Client, cfg *config.Config) (*Driver, error) {
	if err := client.Connect(cfg.Capabilities()); err != nil {
		return nil, err
	}

	d := &Driver{
		client:  client,
		appID:   cfg.App.Package,
		timeout: cfg.Timeouts,
	}

	if err := client.SetImplicitWait(cfg.Timeouts.ImplicitWait); err != nil {
		logger.Debug("set implicit wait: %v", err)
	}

	if err := d.WaitForApp(cfg.Timeouts.SessionStartup); err != nil {
		_ = client.Disconnect()
		return nil, err
	}

	w, h := client.ScreenSize()
	d.info = &core.PlatformInfo{
		Platform:     cfg.Device.Platform,
		OSVersion:    cfg.Device.PlatformVersion,
		DeviceName:   cfg.Device.Name,
		DeviceID:     cfg.Device.Name,
		ScreenWidth:  w,
		ScreenHeight: h,
		AppID:        cfg.App.Package,
	}
	return d, nil
}

// WaitForApp polls the foreground package until it is the app under test.
func (d *Driver) WaitForApp(timeout time.Duration) error {
	var last string
	err := wait.Until(func() (bool, error) {
		pkg, err := d.client.CurrentPackage()
		if err != nil {
			return false, err
		}
		last = pkg
		return pkg == d.appID, nil
	}, timeout, d.timeout.Poll)
	if err != nil {
		return core.ErrAppNotForeground.
			WithMessagef("app %s not in foreground after %s (current: %q)", d.appID, timeout, last).
			WithCause(err)
	}
	return nil
}

// Client exposes the underlying WebDriver client.
func (d *Driver) Client() *Client {
	return d.client
}

// AppID returns the package of the app under test.
func (d *Driver) AppID() string {
	return d.appID
}

// Timeouts returns the wait durations the session was created with.
func (d *Driver) Timeouts() config.Timeouts {
	return d.timeout
}

// PlatformInfo describes the device the session runs on.
func (d *Driver) PlatformInfo() *core.PlatformInfo {
	return d.info
}

// CaptureArtifacts grabs a screenshot and the hierarchy XML. Failures are
// logged and skipped; a broken session must not mask the original error.
func (d *Driver) CaptureArtifacts(prefix string) []core.Attachment {
	var out []core.Attachment
	if png, err := d.client.Screenshot(); err == nil {
		out = append(out, core.NewScreenshotAttachment(prefix+".png", png))
	} else {
		logger.Warn("screenshot failed: %v", err)
	}
	if src, err := d.client.Source(); err == nil {
		out = append(out, core.NewHierarchyAttachment(prefix+".xml", []byte(src)))
	} else {
		logger.Warn("page source failed: %v", err)
	}
	return out
}

// Close ends the session.
func (d *Driver) Close() error {
	return d.client.Disconnect()
}
