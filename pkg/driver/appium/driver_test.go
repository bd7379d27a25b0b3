package appium

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devicelab-dev/shoplist-e2e/pkg/config"
	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
)

// fakeServer answers the handful of endpoints a session fixture needs.
type fakeServer struct {
	foregroundAfter int32 // current_package calls before the app is reported
	calls           int32
	deleted         int32
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session":
			writeJSON(w, map[string]interface{}{
				"value": map[string]interface{}{
					"sessionId":    "s1",
					"capabilities": map[string]interface{}{"platformName": "Android"},
				},
			})
		case "/session/s1":
			atomic.AddInt32(&f.deleted, 1)
			writeJSON(w, map[string]interface{}{"value": nil})
		case "/session/s1/window/rect":
			writeJSON(w, map[string]interface{}{"value": map[string]interface{}{"width": 720.0, "height": 1600.0}})
		case "/session/s1/appium/device/current_package":
			n := atomic.AddInt32(&f.calls, 1)
			pkg := "com.google.android.apps.nexuslauncher"
			if n > f.foregroundAfter {
				pkg = "com.example.my_app"
			}
			writeJSON(w, map[string]interface{}{"value": pkg})
		case "/session/s1/screenshot":
			writeJSON(w, map[string]interface{}{"value": "iVBORw=="})
		case "/session/s1/source":
			writeError(w, http.StatusInternalServerError, "unknown error", "instrumentation crashed")
		default:
			writeJSON(w, map[string]interface{}{"value": nil})
		}
	})
}

func testConfig(url string) *config.Config {
	cfg := config.Default()
	cfg.AppiumServer = url
	cfg.Timeouts.SessionStartup = 300 * time.Millisecond
	cfg.Timeouts.Poll = 10 * time.Millisecond
	return cfg
}

func TestNewDriver_WaitsForApp(t *testing.T) {
	fake := &fakeServer{foregroundAfter: 2}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	d, err := NewDriver(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	defer d.Close()

	if got := atomic.LoadInt32(&fake.calls); got < 3 {
		t.Errorf("current_package polled %d times, want >= 3", got)
	}
	if d.AppID() != "com.example.my_app" {
		t.Errorf("AppID = %q", d.AppID())
	}
	info := d.PlatformInfo()
	if info.ScreenWidth != 720 || info.ScreenHeight != 1600 {
		t.Errorf("screen = %dx%d, want 720x1600", info.ScreenWidth, info.ScreenHeight)
	}
	if info.DeviceName != "emulator-5554" {
		t.Errorf("DeviceName = %q", info.DeviceName)
	}
}

func TestNewDriver_AppNeverForeground(t *testing.T) {
	fake := &fakeServer{foregroundAfter: 1 << 30}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	_, err := NewDriver(testConfig(server.URL))
	if !errors.Is(err, core.ErrAppNotForeground) {
		t.Fatalf("expected ErrAppNotForeground, got %v", err)
	}
	if atomic.LoadInt32(&fake.deleted) != 1 {
		t.Error("session should be deleted when startup fails")
	}
}

func TestDriver_CaptureArtifacts(t *testing.T) {
	fake := &fakeServer{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	d, err := NewDriver(testConfig(server.URL))
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	defer d.Close()

	// Source fails on this server; the screenshot must still come back.
	atts := d.CaptureArtifacts("delete_item")
	if len(atts) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(atts))
	}
	if atts[0].Name != core.AttachmentScreenshot || atts[0].Path != "delete_item.png" {
		t.Errorf("unexpected attachment %+v", atts[0])
	}
}
