package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/shoplist-e2e/pkg/driver/appium"
	"github.com/devicelab-dev/shoplist-e2e/pkg/driver/mock"
	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
	"github.com/devicelab-dev/shoplist-e2e/pkg/pages"
	"github.com/devicelab-dev/shoplist-e2e/pkg/screen"
)

var inspectCommand = &cli.Command{
	Name:  "inspect",
	Usage: "Print the View, Button and EditText elements on screen",
	Description: `Open a session, optionally move to a screen, and print the elements a
locator can target, in JSON (default) or CSV format.

Examples:
  shoplist-e2e inspect
  shoplist-e2e inspect --screen shopping_list
  shoplist-e2e inspect --compact --limit 10
  shoplist-e2e --driver mock inspect --source`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "screen",
			Usage: "Screen to inspect (home, shopping_list)",
			Value: screen.Home,
		},
		&cli.BoolFlag{
			Name:  "compact",
			Usage: "Output in CSV format",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum elements per class (0 = all)",
		},
		&cli.BoolFlag{
			Name:  "source",
			Usage: "Also print the parsed page source",
		},
	},
	Action: runInspect,
}

// inspection is what inspect prints.
type inspection struct {
	Screen      string           `json:"screen"`
	Inventory   *pages.Inventory `json:"inventory"`
	Descriptors []string         `json:"descriptors,omitempty"`
}

func runInspect(c *cli.Context) error {
	target := c.String("screen")
	if target != screen.Home && target != screen.ShoppingList {
		return fmt.Errorf("unknown screen %q (want %s or %s)", target, screen.Home, screen.ShoppingList)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.String("driver") == DriverMock {
		srv := mock.NewServer(mock.Options{AppPackage: cfg.App.Package})
		url, err := srv.Start()
		if err != nil {
			return err
		}
		defer srv.Close()
		cfg.AppiumServer = url
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	d, err := appium.NewDriver(cfg)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("close session: %v", err)
		}
	}()

	app := pages.New(d.Client(), d.AppID(), d.Timeouts())
	if err := app.Home().WaitForLoad(false); err != nil {
		return err
	}

	ins := inspection{Screen: target}
	if target == screen.ShoppingList {
		if err := app.Home().ClickShoppingList(); err != nil {
			return err
		}
		list := app.ShoppingList()
		if err := list.WaitForLoad(); err != nil {
			return err
		}
		ins.Descriptors = list.Descriptors()
	}

	ins.Inventory, err = pages.TakeInventory(app.Resolver, c.Int("limit"))
	if err != nil {
		return err
	}
	ins.Inventory.Log()

	if c.Bool("compact") {
		err = writeInventoryCSV(stdout, ins.Inventory)
	} else {
		err = writeJSON(stdout, ins)
	}
	if err != nil {
		return err
	}

	if c.Bool("source") {
		src, err := d.Client().Source()
		if err != nil {
			return fmt.Errorf("page source: %w", err)
		}
		elems, err := appium.ParsePageSource(src)
		if err != nil {
			return err
		}
		printHierarchy(stdout, elems)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeInventoryCSV(w io.Writer, inv *pages.Inventory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"class", "index", "description", "text"}); err != nil {
		return err
	}
	for _, group := range [][]pages.ElementInfo{inv.Views, inv.Buttons, inv.EditTexts} {
		for _, e := range group {
			if err := cw.Write([]string{e.Class, strconv.Itoa(e.Index), e.Description, e.Text}); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func printHierarchy(w io.Writer, elems []*appium.ParsedElement) {
	fmt.Fprintln(w)
	for _, e := range elems {
		label := e.Label()
		if label != "" {
			label = strconv.Quote(label)
		}
		b := e.Bounds
		fmt.Fprintf(w, "%s%s %s [%d,%d][%d,%d]\n",
			strings.Repeat("  ", e.Depth), e.ClassName, label,
			b.X, b.Y, b.X+b.Width, b.Y+b.Height)
	}
}
