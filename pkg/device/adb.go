// Package device talks to attached Android devices through adb.
package device

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Device is one line of `adb devices -l`.
type Device struct {
	Serial string `json:"serial"`
	State  string `json:"state"` // device, offline, unauthorized
	Model  string `json:"model,omitempty"`
}

// Online reports whether the device accepts commands.
func (d Device) Online() bool {
	return d.State == "device"
}

// IsEmulator reports whether the serial names a local emulator.
func (d Device) IsEmulator() bool {
	return strings.HasPrefix(d.Serial, "emulator-")
}

// Info contains the properties reported in device listings and reports.
type Info struct {
	Serial     string `json:"serial"`
	Model      string `json:"model"`
	Brand      string `json:"brand"`
	SDK        string `json:"sdk"`
	Release    string `json:"release"` // Android version, e.g. "16"
	IsEmulator bool   `json:"isEmulator"`
}

// NoDevicesError is returned when adb lists no usable device.
type NoDevicesError struct {
	Listed int // devices listed in any state
}

func (e *NoDevicesError) Error() string {
	if e.Listed > 0 {
		return fmt.Sprintf("no online devices (%d listed offline or unauthorized)", e.Listed)
	}
	return "no connected devices found"
}

// runFunc runs a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) (string, error)

// ADB runs adb commands.
type ADB struct {
	path string
	run  runFunc
}

// NewADB locates adb and returns a client for it.
func NewADB() (*ADB, error) {
	path, err := FindADB()
	if err != nil {
		return nil, err
	}
	return &ADB{path: path, run: runCommand}, nil
}

// Path returns the adb binary in use.
func (a *ADB) Path() string {
	return a.path
}

// List returns every attached device in any state.
func (a *ADB) List(ctx context.Context) ([]Device, error) {
	out, err := a.run(ctx, a.path, "devices", "-l")
	if err != nil {
		return nil, err
	}
	return parseDevices(out), nil
}

// OnlineSerials returns the serials of devices that accept commands.
func (a *ADB) OnlineSerials(ctx context.Context) ([]string, error) {
	devices, err := a.List(ctx)
	if err != nil {
		return nil, err
	}
	var serials []string
	for _, d := range devices {
		if d.Online() {
			serials = append(serials, d.Serial)
		}
	}
	if len(serials) == 0 {
		return nil, &NoDevicesError{Listed: len(devices)}
	}
	return serials, nil
}

// Shell executes a shell command on the device.
func (a *ADB) Shell(ctx context.Context, serial, cmd string) (string, error) {
	return a.run(ctx, a.path, "-s", serial, "shell", cmd)
}

// Info reads model and version properties. Properties that fail to read
// are left empty.
func (a *ADB) Info(ctx context.Context, serial string) (Info, error) {
	info := Info{Serial: serial}
	if _, err := a.Shell(ctx, serial, "true"); err != nil {
		return info, err
	}

	for prop, into := range map[string]*string{
		"ro.product.model":         &info.Model,
		"ro.product.brand":         &info.Brand,
		"ro.build.version.sdk":     &info.SDK,
		"ro.build.version.release": &info.Release,
	} {
		if v, err := a.Shell(ctx, serial, "getprop "+prop); err == nil {
			*into = strings.TrimSpace(v)
		}
	}
	qemu, _ := a.Shell(ctx, serial, "getprop ro.kernel.qemu")
	info.IsEmulator = strings.TrimSpace(qemu) == "1"
	return info, nil
}

// IsInstalled checks if a package is installed.
func (a *ADB) IsInstalled(ctx context.Context, serial, pkg string) bool {
	out, err := a.Shell(ctx, serial, "pm list packages "+pkg)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "package:"+pkg {
			return true
		}
	}
	return false
}

// parseDevices reads `adb devices -l` output.
func parseDevices(out string) []Device {
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		d := Device{Serial: parts[0], State: parts[1]}
		for _, kv := range parts[2:] {
			if v, ok := strings.CutPrefix(kv, "model:"); ok {
				d.Model = v
			}
		}
		devices = append(devices, d)
	}
	return devices
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = stdout.String()
		}
		return "", fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(errMsg))
	}
	return stdout.String(), nil
}

// FindADB locates the adb binary: PATH first, then the platform-tools of
// $ANDROID_HOME or $ANDROID_SDK_ROOT.
func FindADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}

	bin := "adb"
	if runtime.GOOS == "windows" {
		bin = "adb.exe"
	}
	for _, env := range []string{"ANDROID_HOME", "ANDROID_SDK_ROOT"} {
		root := os.Getenv(env)
		if root == "" {
			continue
		}
		path := filepath.Join(root, "platform-tools", bin)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("adb not found in PATH or $ANDROID_HOME/platform-tools; ensure Android SDK is installed")
}
