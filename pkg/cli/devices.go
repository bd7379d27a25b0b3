package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/shoplist-e2e/pkg/device"
	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
)

// allDevices is the --device value that selects every online adb device.
const allDevices = "all"

var devicesCommand = &cli.Command{
	Name:  "devices",
	Usage: "List attached Android devices",
	Description: `List the devices adb can see, with model, Android version and whether
the app under test is installed. Use a serial with --device, or --device all
to run on every online device in parallel.

Examples:
  shoplist-e2e devices
  shoplist-e2e --device all test`,
	Action: runDevices,
}

// adbClient is replaced in tests.
var adbClient = func() (deviceLister, error) {
	return device.NewADB()
}

type deviceLister interface {
	List(ctx context.Context) ([]device.Device, error)
	OnlineSerials(ctx context.Context) ([]string, error)
	Info(ctx context.Context, serial string) (device.Info, error)
	IsInstalled(ctx context.Context, serial, pkg string) bool
}

func runDevices(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	adb, err := adbClient()
	if err != nil {
		return err
	}
	devices, err := adb.List(c.Context)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return &device.NoDevicesError{}
	}

	fmt.Fprintf(stdout, "  %-24s %-13s %-24s %-8s %s\n", "Serial", "State", "Model", "Android", cfg.App.Package)
	for _, d := range devices {
		model, release, installed := d.Model, "", "-"
		if d.Online() {
			if info, err := adb.Info(c.Context, d.Serial); err == nil {
				model, release = info.Model, info.Release
			} else {
				logger.Warn("device info %s: %v", d.Serial, err)
			}
			installed = red("missing")
			if adb.IsInstalled(c.Context, d.Serial, cfg.App.Package) {
				installed = green("installed")
			}
		}
		state := d.State
		if d.Online() {
			state = green(fmt.Sprintf("%-13s", state))
		} else {
			state = yellow(fmt.Sprintf("%-13s", state))
		}
		fmt.Fprintf(stdout, "  %-24s %s %-24s %-8s %s\n", d.Serial, state, model, release, installed)
	}
	return nil
}

// expandDevices resolves --device all to the online adb serials.
func expandDevices(ctx context.Context, devices []string) ([]string, error) {
	if len(devices) != 1 || devices[0] != allDevices {
		return devices, nil
	}
	adb, err := adbClient()
	if err != nil {
		return nil, err
	}
	serials, err := adb.OnlineSerials(ctx)
	if err != nil {
		return nil, fmt.Errorf("--device %s: %w", allDevices, err)
	}
	logger.Info("Detected %d online device(s): %v", len(serials), serials)
	return serials, nil
}
