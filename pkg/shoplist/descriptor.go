// Package shoplist infers the shopping list's state from the accessibility
// tree and dispatches list mutations.
//
// The app exposes no stable identifiers. Items are read from descriptors of
// the form "<name>\nx<quantity>" and delete controls are found by position,
// so everything here is re-derived from a fresh scan before each use.
package shoplist

import (
	"strconv"
	"strings"

	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
)

// Layout names the widgets and UI copy the list screen is recognised by.
// The reserved strings are matched literally; a copy change in the app
// silently breaks extraction.
type Layout struct {
	ItemClass    string // class enumerated for items
	ControlClass string // class of tappable controls
	InputClass   string // class of text fields

	Title        string
	Header       string
	EmptyMessage string
	BackLabel    string

	// Descriptors containing any of these are summary rows, not items.
	AggregateMarkers []string
}

// DefaultLayout describes the Flutter demo app.
func DefaultLayout() Layout {
	return Layout{
		ItemClass:        "android.view.View",
		ControlClass:     "android.widget.Button",
		InputClass:       "android.widget.EditText",
		Title:            "Shopping List",
		Header:           "Add items to your shopping list",
		EmptyMessage:     "No items yet",
		BackLabel:        "Back",
		AggregateMarkers: []string{"Total:", "Completed:"},
	}
}

// Reserved reports whether desc is one of the screen's fixed strings (or
// the empty/null descriptor) and therefore never an item.
func (l Layout) Reserved(desc string) bool {
	switch desc {
	case "", "null", l.Title, l.Header, l.EmptyMessage, l.BackLabel:
		return true
	}
	return false
}

// Aggregate reports whether desc is a summary row.
func (l Layout) Aggregate(desc string) bool {
	for _, m := range l.AggregateMarkers {
		if strings.Contains(desc, m) {
			return true
		}
	}
	return false
}

// Item is one parsed list entry.
type Item struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	Descriptor string `json:"descriptor"`
}

// IsCandidate reports whether desc has the item shape: a newline followed by
// a line starting with the quantity marker "x".
func IsCandidate(desc string) bool {
	_, qty, ok := strings.Cut(desc, "\n")
	if !ok {
		return false
	}
	qty = strings.TrimSpace(qty)
	return strings.HasPrefix(qty, "x") || strings.HasPrefix(qty, "X")
}

// ParseDescriptor parses "<name>\nx<quantity>". The name is everything before
// the first newline. Errors are core.ErrParse.
func ParseDescriptor(desc string) (Item, error) {
	name, rest, ok := strings.Cut(desc, "\n")
	if !ok {
		return Item{}, core.ErrParse.WithMessagef("descriptor %q: no newline separator", desc)
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "x") && !strings.HasPrefix(rest, "X") {
		return Item{}, core.ErrParse.WithMessagef("descriptor %q: no quantity marker", desc)
	}
	qty, err := strconv.Atoi(rest[1:])
	if err != nil || qty < 0 {
		return Item{}, core.ErrParse.WithMessagef("descriptor %q: malformed quantity %q", desc, rest[1:]).
			WithDetails(map[string]interface{}{"descriptor": desc})
	}
	if strings.TrimSpace(name) == "" {
		return Item{}, core.ErrParse.WithMessagef("descriptor %q: empty name", desc)
	}
	return Item{Name: name, Quantity: qty, Descriptor: desc}, nil
}

// ItemList is the list in on-screen order at scan time. Names may repeat.
type ItemList []Item

// Len returns the number of items.
func (l ItemList) Len() int { return len(l) }

// Names returns the item names in order.
func (l ItemList) Names() []string {
	out := make([]string, len(l))
	for i, it := range l {
		out[i] = it.Name
	}
	return out
}

// Index returns the position of the first item whose descriptor contains
// substr, or -1. First match wins: "apple" also matches "Pineapple" if that
// comes first.
func (l ItemList) Index(substr string) int {
	for i, it := range l {
		if strings.Contains(it.Descriptor, substr) {
			return i
		}
	}
	return -1
}

// Find returns the first item whose descriptor contains substr.
func (l ItemList) Find(substr string) (Item, bool) {
	if i := l.Index(substr); i >= 0 {
		return l[i], true
	}
	return Item{}, false
}

// Contains reports whether any item name contains name, ignoring case.
func (l ItemList) Contains(name string) bool {
	want := strings.ToLower(name)
	for _, it := range l {
		if strings.Contains(strings.ToLower(it.Name), want) {
			return true
		}
	}
	return false
}
