package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

const devicesOutput = `* daemon not running; starting now at tcp:5037
* daemon started successfully
List of devices attached
emulator-5554          device product:sdk_gphone64_x86_64 model:sdk_gphone64_x86_64 device:emu64xa transport_id:1
R58M123ABC             unauthorized usb:1-1 transport_id:2
emulator-5556	offline

`

// fakeADB answers adb invocations from a table keyed by the joined args.
func fakeADB(responses map[string]string) *ADB {
	return &ADB{
		path: "adb",
		run: func(_ context.Context, _ string, args ...string) (string, error) {
			key := strings.Join(args, " ")
			if out, ok := responses[key]; ok {
				return out, nil
			}
			return "", errors.New("unexpected: " + key)
		},
	}
}

func TestParseDevices(t *testing.T) {
	devices := parseDevices(devicesOutput)
	if len(devices) != 3 {
		t.Fatalf("got %d devices, want 3: %+v", len(devices), devices)
	}
	if devices[0].Serial != "emulator-5554" || !devices[0].Online() || devices[0].Model != "sdk_gphone64_x86_64" {
		t.Errorf("devices[0] = %+v", devices[0])
	}
	if !devices[0].IsEmulator() || devices[1].IsEmulator() {
		t.Error("IsEmulator")
	}
	if devices[1].State != "unauthorized" || devices[1].Online() {
		t.Errorf("devices[1] = %+v", devices[1])
	}
	if devices[2].State != "offline" {
		t.Errorf("devices[2] = %+v", devices[2])
	}
}

func TestParseDevices_Empty(t *testing.T) {
	if got := parseDevices("List of devices attached\n\n"); len(got) != 0 {
		t.Errorf("got %+v", got)
	}
}

func TestOnlineSerials(t *testing.T) {
	a := fakeADB(map[string]string{"devices -l": devicesOutput})
	serials, err := a.OnlineSerials(context.Background())
	if err != nil {
		t.Fatalf("OnlineSerials: %v", err)
	}
	if len(serials) != 1 || serials[0] != "emulator-5554" {
		t.Errorf("serials = %v", serials)
	}
}

func TestOnlineSerials_NoDevices(t *testing.T) {
	a := fakeADB(map[string]string{"devices -l": "List of devices attached\nemulator-5556\toffline\n"})
	_, err := a.OnlineSerials(context.Background())

	var noDev *NoDevicesError
	if !errors.As(err, &noDev) {
		t.Fatalf("err = %v, want NoDevicesError", err)
	}
	if noDev.Listed != 1 || !strings.Contains(err.Error(), "1 listed") {
		t.Errorf("err = %v", err)
	}
	if (&NoDevicesError{}).Error() != "no connected devices found" {
		t.Error("empty NoDevicesError message")
	}
}

func TestInfo(t *testing.T) {
	a := fakeADB(map[string]string{
		"-s emulator-5554 shell true":                             "",
		"-s emulator-5554 shell getprop ro.product.model":         "sdk_gphone64_x86_64\n",
		"-s emulator-5554 shell getprop ro.product.brand":         "google\n",
		"-s emulator-5554 shell getprop ro.build.version.sdk":     "36\n",
		"-s emulator-5554 shell getprop ro.build.version.release": "16\n",
		"-s emulator-5554 shell getprop ro.kernel.qemu":           "1\n",
	})
	info, err := a.Info(context.Background(), "emulator-5554")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	want := Info{Serial: "emulator-5554", Model: "sdk_gphone64_x86_64", Brand: "google", SDK: "36", Release: "16", IsEmulator: true}
	if info != want {
		t.Errorf("Info = %+v, want %+v", info, want)
	}
}

func TestInfo_Unreachable(t *testing.T) {
	a := fakeADB(nil)
	if _, err := a.Info(context.Background(), "gone"); err == nil {
		t.Error("expected error for unreachable device")
	}
}

func TestIsInstalled(t *testing.T) {
	a := fakeADB(map[string]string{
		"-s emulator-5554 shell pm list packages com.example.my_app": "package:com.example.my_app_debug\npackage:com.example.my_app\n",
		"-s emulator-5554 shell pm list packages com.example.other":  "",
	})
	if !a.IsInstalled(context.Background(), "emulator-5554", "com.example.my_app") {
		t.Error("expected installed")
	}
	if a.IsInstalled(context.Background(), "emulator-5554", "com.example.other") {
		t.Error("expected not installed")
	}
	if a.IsInstalled(context.Background(), "gone", "com.example.my_app") {
		t.Error("expected false on adb error")
	}
}

func TestFindADB_AndroidHome(t *testing.T) {
	home := t.TempDir()
	bin := "adb"
	if runtime.GOOS == "windows" {
		bin = "adb.exe"
	}
	tools := filepath.Join(home, "platform-tools")
	if err := os.MkdirAll(tools, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tools, bin), []byte{}, 0o755); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PATH", t.TempDir())
	t.Setenv("ANDROID_SDK_ROOT", "")
	t.Setenv("ANDROID_HOME", home)

	path, err := FindADB()
	if err != nil {
		t.Fatalf("FindADB: %v", err)
	}
	if path != filepath.Join(tools, bin) {
		t.Errorf("path = %q", path)
	}
}

func TestFindADB_NotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv("ANDROID_HOME", "")
	t.Setenv("ANDROID_SDK_ROOT", "")
	if _, err := FindADB(); err == nil {
		t.Error("expected error when adb is missing")
	}
}
