package shoplist

import (
	"fmt"
	"strconv"
	"time"

	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
	"github.com/devicelab-dev/shoplist-e2e/pkg/locator"
	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
)

// Result describes a dispatched mutation.
type Result struct {
	Action       string   `json:"action"` // add, delete
	Item         string   `json:"item"`
	Quantity     int      `json:"quantity,omitempty"`
	ItemIndex    int      `json:"itemIndex"`    // position in Before; -1 for add
	ControlIndex int      `json:"controlIndex"` // position in the control set
	Before       ItemList `json:"before"`
	After        ItemList `json:"after"`
	Observed     bool     `json:"observed"` // postcondition seen within the settle time
	Duration     time.Duration
}

// ControlSet is the list screen's tappable controls with the back control
// removed: [add, delete_0, delete_1, ...].
//
// Delete controls carry no label, so delete_i is assumed to belong to the
// item at position i of a scan taken at the same time. Nothing on screen
// links a control to its row; CheckAlignment is the only guard.
type ControlSet []*locator.Element

// Add returns the add control.
func (c ControlSet) Add() (*locator.Element, bool) {
	if len(c) == 0 {
		return nil, false
	}
	return c[0], true
}

// DeleteIndex is the control position for the item at itemIndex.
func DeleteIndex(itemIndex int) int {
	return itemIndex + 1
}

// Delete returns the delete control for itemIndex, failing with
// core.ErrIndexOutOfRange when the set has too few controls.
func (c ControlSet) Delete(itemIndex int) (*locator.Element, int, error) {
	idx := DeleteIndex(itemIndex)
	if itemIndex < 0 || idx >= len(c) {
		return nil, idx, core.ErrIndexOutOfRange.
			WithMessagef("delete control %d out of range (%d controls)", idx, len(c)).
			WithDetails(map[string]interface{}{"itemIndex": itemIndex, "controls": len(c)})
	}
	return c[idx], idx, nil
}

// CheckAlignment verifies the set has exactly one add control plus one
// delete control per item.
func (c ControlSet) CheckAlignment(items int) error {
	if len(c) != items+1 {
		return core.ErrControlMisaligned.
			WithMessagef("%d controls for %d items, want %d", len(c), items, items+1).
			WithDetails(map[string]interface{}{"items": items, "controls": len(c)})
	}
	return nil
}

// Dispatcher performs add and delete on the list screen.
type Dispatcher struct {
	resolver  *locator.Resolver
	extractor *Extractor
	layout    Layout
	settle    time.Duration
}

// NewDispatcher creates a dispatcher. settle bounds the post-action poll.
func NewDispatcher(r *locator.Resolver, x *Extractor, settle time.Duration) *Dispatcher {
	if settle <= 0 {
		settle = r.Timeout()
	}
	return &Dispatcher{resolver: r, extractor: x, layout: x.Layout(), settle: settle}
}

// Controls enumerates the control set now.
func (d *Dispatcher) Controls() (ControlSet, error) {
	sel := locator.NewSelector().ClassName(d.layout.ControlClass)
	all, err := d.resolver.ResolveAll(locator.BySelector(sel))
	if err != nil {
		return nil, fmt.Errorf("enumerate controls: %w", err)
	}

	set := make(ControlSet, 0, len(all))
	for _, el := range all {
		desc, err := el.Description()
		if err != nil {
			return nil, fmt.Errorf("read control %s: %w", el.ID(), err)
		}
		if desc == d.layout.BackLabel {
			continue
		}
		set = append(set, el)
	}
	return set, nil
}

// snapshot scans the list and fails unless every row could be read.
func (d *Dispatcher) snapshot() (ItemList, error) {
	res, err := d.extractor.Scan()
	if err != nil {
		return nil, err
	}
	if err := res.Complete(); err != nil {
		return nil, err
	}
	return res.Items, nil
}

// InvokeAdd types name and quantity into the first two input fields and taps
// the add control, then waits for the new row to appear. Fewer than two
// fields is core.ErrPrecondition; extra fields are left untouched.
func (d *Dispatcher) InvokeAdd(name string, quantity int) (*Result, error) {
	start := time.Now()
	log := logger.WithFields(map[string]interface{}{"action": "add", "item": name, "quantity": quantity})

	fields, err := d.resolver.ResolveAll(locator.ByClassName(d.layout.InputClass))
	if err != nil {
		return nil, err
	}
	if len(fields) < 2 {
		return nil, core.ErrPrecondition.WithMessagef("expected 2 input fields, found %d", len(fields))
	}

	before, err := d.snapshot()
	if err != nil {
		return nil, err
	}
	res := &Result{Action: "add", Item: name, Quantity: quantity, ItemIndex: -1, Before: before}

	for i, value := range []string{name, strconv.Itoa(quantity)} {
		f := fields[i]
		if err := f.Click(); err != nil {
			return res, err
		}
		if err := f.Clear(); err != nil {
			return res, err
		}
		if err := f.SendKeys(value); err != nil {
			return res, err
		}
	}

	controls, err := d.Controls()
	if err != nil {
		return res, err
	}
	add, ok := controls.Add()
	if !ok {
		return res, core.ErrActionNotFound.WithMessage("no add control on screen")
	}
	log.Info("tapping add control")
	if err := add.Click(); err != nil {
		return res, err
	}

	err = d.resolver.WaitUntil(func() (bool, error) {
		after, err := d.snapshot()
		if err != nil {
			return false, err
		}
		res.After = after
		return after.Len() > before.Len() && after.Contains(name), nil
	}, d.settle)
	res.Duration = time.Since(start)
	if err != nil {
		return res, core.ErrVerification.WithMessagef("%q not listed after add", name).WithCause(err)
	}
	res.Observed = true
	log.Info("item added")
	return res, nil
}

// InvokeDelete taps the delete control of the first item whose descriptor
// contains itemName and waits for the row to go away.
//
// The control is chosen by position (item index + 1). This relies on the
// control set being aligned with the scan; a misaligned set fails with
// core.ErrControlMisaligned before anything is tapped.
func (d *Dispatcher) InvokeDelete(itemName string) (*Result, error) {
	start := time.Now()
	log := logger.WithFields(map[string]interface{}{"action": "delete", "item": itemName})

	before, err := d.snapshot()
	if err != nil {
		return nil, err
	}
	idx := before.Index(itemName)
	if idx < 0 {
		return nil, core.ErrItemNotFound.
			WithMessagef("%q not in list", itemName).
			WithDetails(map[string]interface{}{"items": before.Names()})
	}
	res := &Result{Action: "delete", Item: itemName, ItemIndex: idx, Before: before}

	controls, err := d.Controls()
	if err != nil {
		return res, err
	}
	target, ctl, err := controls.Delete(idx)
	res.ControlIndex = ctl
	if err != nil {
		return res, err
	}
	if err := controls.CheckAlignment(before.Len()); err != nil {
		return res, err
	}

	log.WithField("index", ctl).Info("tapping delete control")
	if err := target.Click(); err != nil {
		return res, err
	}

	// Only a complete scan can confirm the row is gone; a failed or partial
	// one keeps polling and never counts as a shorter list.
	err = d.resolver.WaitUntil(func() (bool, error) {
		after, err := d.snapshot()
		if err != nil {
			return false, err
		}
		res.After = after
		return after.Len() < before.Len(), nil
	}, d.settle)
	res.Duration = time.Since(start)
	switch {
	case res.After == nil:
		return res, core.ErrVerification.
			WithMessagef("could not rescan the list after deleting %q", itemName).
			WithCause(err)
	case res.After.Index(itemName) >= 0:
		return res, core.ErrVerification.
			WithMessagef("%q still present after delete", itemName).
			WithDetails(map[string]interface{}{"items": res.After.Names()}).
			WithCause(err)
	case err != nil:
		return res, core.ErrVerification.
			WithMessagef("delete of %q not confirmed", itemName).
			WithDetails(map[string]interface{}{"items": res.After.Names()}).
			WithCause(err)
	}
	res.Observed = true
	log.Info("item deleted")
	return res, nil
}
