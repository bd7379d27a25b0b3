package pages

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/shoplist-e2e/pkg/locator"
	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
	"github.com/devicelab-dev/shoplist-e2e/pkg/screen"
)

// ElementInfo is what a person debugging a locator wants to see.
type ElementInfo struct {
	Index       int    `json:"index"`
	Class       string `json:"class"`
	Description string `json:"description"`
	Text        string `json:"text"`
}

func (e ElementInfo) String() string {
	return fmt.Sprintf("%d: content-desc=%q text=%q", e.Index, e.Description, e.Text)
}

// Inventory lists the view, button and input elements on screen.
type Inventory struct {
	Views     []ElementInfo `json:"views"`
	Buttons   []ElementInfo `json:"buttons"`
	EditTexts []ElementInfo `json:"editTexts"`
}

// TakeInventory reads up to limit elements of each class (0 = all).
// Elements that fail to read are skipped.
func TakeInventory(r *locator.Resolver, limit int) (*Inventory, error) {
	inv := &Inventory{}
	for _, c := range []struct {
		class string
		into  *[]ElementInfo
	}{
		{screen.ClassView, &inv.Views},
		{screen.ClassButton, &inv.Buttons},
		{screen.ClassEditText, &inv.EditTexts},
	} {
		elems, err := r.ResolveAll(locator.ByClassName(c.class))
		if err != nil {
			return nil, err
		}
		for i, el := range elems {
			if limit > 0 && i >= limit {
				break
			}
			desc, err := el.Description()
			if err != nil {
				continue
			}
			text, _ := el.Text()
			*c.into = append(*c.into, ElementInfo{Index: i, Class: c.class, Description: desc, Text: text})
		}
	}
	return inv, nil
}

// Log writes the inventory to the event log.
func (inv *Inventory) Log() {
	logger.Info("=== Discovering elements on screen ===")
	for _, group := range []struct {
		name  string
		elems []ElementInfo
	}{{"View", inv.Views}, {"Button", inv.Buttons}, {"EditText", inv.EditTexts}} {
		logger.Info("Found %d %s elements", len(group.elems), group.name)
		for _, e := range group.elems {
			if e.Description == "" && e.Text == "" {
				continue
			}
			logger.Info("  %s %s", group.name, e)
		}
	}
	logger.Info(strings.Repeat("=", 36))
}
