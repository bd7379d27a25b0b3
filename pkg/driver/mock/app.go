// Package mock is a simulated device: an Appium-compatible HTTP server in
// front of an in-memory model of the Flutter shopping-list app. It lets the
// page objects and scenarios run without an emulator.
package mock

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Packages the simulated device knows about.
const (
	DefaultAppPackage = "com.example.my_app"
	BrowserPackage    = "com.android.chrome"
	GmailPackage      = "com.google.android.gm"
	LauncherPackage   = "com.google.android.apps.nexuslauncher"
)

// Widget classes as reported by UiAutomator2 for Flutter semantics nodes.
const (
	ClassView     = "android.view.View"
	ClassButton   = "android.widget.Button"
	ClassEditText = "android.widget.EditText"
	ClassFrame    = "android.widget.FrameLayout"
	ClassWebView  = "android.webkit.WebView"
)

// Screen identifies what the device is showing.
type Screen string

// Screens.
const (
	ScreenHome     Screen = "home"
	ScreenList     Screen = "shopping_list"
	ScreenWebView  Screen = "webview" // in-app browser page
	ScreenBrowser  Screen = "browser"
	ScreenGmail    Screen = "gmail"
	ScreenLauncher Screen = "launcher"
)

// Item is one shopping list entry.
type Item struct {
	Name     string
	Quantity int
}

// Descriptor renders the item the way the app labels it for accessibility.
func (i Item) Descriptor() string {
	return fmt.Sprintf("%s\nx%d", i.Name, i.Quantity)
}

// Options tunes the simulated app.
type Options struct {
	AppPackage string

	// Items present whenever the app is (re)launched.
	SeedItems []Item

	// RenderDelay postpones the effect of every click so callers must poll.
	RenderDelay time.Duration

	// ExitToLauncherOnBack makes system back from an external app land on
	// the launcher instead of returning to the app.
	ExitToLauncherOnBack bool

	// InAppBrowser opens Web Search inside the app (same package) with
	// BrowserPages pages of history.
	InAppBrowser bool
	BrowserPages int

	// ExtraButton adds a non-back button between Add and the delete buttons.
	ExtraButton string

	// ExtraViews are additional raw descriptors rendered after the items.
	ExtraViews []string
}

type element struct {
	id        string
	class     string
	desc      string
	text      string
	hint      string
	displayed bool
	clickable bool
	focused   bool
	bounds    [4]int
	onClick   func()
	field     *string // backing text for EditText
}

// app is the device model. All methods expect a.mu to be held.
type app struct {
	mu   sync.Mutex
	opts Options

	foreground string
	stack      []Screen // app navigation stack; bottom is home
	external   Screen

	items     []Item
	nameField string
	qtyField  string
	focus     *string

	gen      int
	rendered []*element
	pending  []staged
}

type staged struct {
	at    time.Time
	apply func()
}

func newApp(opts Options) *app {
	if opts.AppPackage == "" {
		opts.AppPackage = DefaultAppPackage
	}
	if opts.BrowserPages <= 0 {
		opts.BrowserPages = 1
	}
	a := &app{opts: opts, foreground: LauncherPackage}
	a.reset()
	return a
}

// reset is a cold start of the app.
func (a *app) reset() {
	a.stack = []Screen{ScreenHome}
	a.items = append([]Item(nil), a.opts.SeedItems...)
	a.nameField = ""
	a.qtyField = "1"
	a.focus = nil
	a.pending = nil
	a.invalidate()
}

func (a *app) launch() {
	a.reset()
	a.foreground = a.opts.AppPackage
	a.invalidate()
}

// invalidate starts a new render generation; element IDs of older
// generations go stale.
func (a *app) invalidate() {
	a.gen++
	a.rendered = nil
}

// settle applies staged changes whose time has come.
func (a *app) settle() {
	if len(a.pending) == 0 {
		return
	}
	now := time.Now()
	rest := a.pending[:0]
	for _, p := range a.pending {
		if !now.Before(p.at) {
			p.apply()
			a.invalidate()
		} else {
			rest = append(rest, p)
		}
	}
	a.pending = rest
}

// stage runs fn after the configured render delay.
func (a *app) stage(fn func()) {
	if a.opts.RenderDelay <= 0 {
		fn()
		a.invalidate()
		return
	}
	a.pending = append(a.pending, staged{at: time.Now().Add(a.opts.RenderDelay), apply: fn})
}

func (a *app) screen() Screen {
	switch a.foreground {
	case a.opts.AppPackage:
		return a.stack[len(a.stack)-1]
	case LauncherPackage:
		return ScreenLauncher
	default:
		return a.external
	}
}

func (a *app) push(s Screen) {
	a.stack = append(a.stack, s)
}

func (a *app) openExternal(pkg string, s Screen) {
	a.foreground = pkg
	a.external = s
}

// back is the system back key.
func (a *app) back() {
	switch a.foreground {
	case a.opts.AppPackage:
		a.focus = nil
		if len(a.stack) > 1 {
			a.stack = a.stack[:len(a.stack)-1]
		} else {
			a.foreground = LauncherPackage
		}
	case LauncherPackage:
	default:
		if a.opts.ExitToLauncherOnBack {
			a.foreground = LauncherPackage
		} else {
			a.foreground = a.opts.AppPackage
		}
	}
	a.invalidate()
}

func (a *app) activate(pkg string) {
	switch pkg {
	case a.opts.AppPackage:
		if a.foreground != pkg {
			a.foreground = pkg
		}
	case BrowserPackage:
		a.openExternal(pkg, ScreenBrowser)
	case GmailPackage:
		a.openExternal(pkg, ScreenGmail)
	default:
		a.foreground = LauncherPackage
	}
	a.invalidate()
}

func (a *app) terminate(pkg string) bool {
	if pkg != a.opts.AppPackage {
		if a.foreground == pkg {
			a.foreground = LauncherPackage
			a.invalidate()
			return true
		}
		return false
	}
	a.reset()
	if a.foreground == pkg {
		a.foreground = LauncherPackage
	}
	a.invalidate()
	return true
}

func (a *app) addItem() {
	name := strings.TrimSpace(a.nameField)
	if name == "" {
		return
	}
	qty, err := strconv.Atoi(strings.TrimSpace(a.qtyField))
	if err != nil || qty < 1 {
		qty = 1
	}
	a.items = append(a.items, Item{Name: name, Quantity: qty})
	a.nameField = ""
	a.qtyField = "1"
}

func (a *app) deleteItem(i int) {
	if i < 0 || i >= len(a.items) {
		return
	}
	a.items = append(a.items[:i], a.items[i+1:]...)
}

// elements renders the current screen, reusing the render for the current
// generation so element IDs stay valid until the next change.
func (a *app) elements() []*element {
	a.settle()
	if a.rendered != nil {
		return a.rendered
	}

	var out []*element
	add := func(e *element) {
		e.id = fmt.Sprintf("%d.%d", a.gen, len(out)+1)
		e.displayed = true
		e.bounds = [4]int{0, 100 * len(out), 1080, 100*len(out) + 90}
		out = append(out, e)
	}

	add(&element{class: ClassFrame})

	switch a.screen() {
	case ScreenHome:
		add(&element{class: ClassView, desc: "Flutter Demo Home Page"})
		add(&element{class: ClassButton, desc: "Web Search", clickable: true, onClick: func() {
			a.stage(func() {
				if a.opts.InAppBrowser {
					for i := 0; i < a.opts.BrowserPages; i++ {
						a.push(ScreenWebView)
					}
					return
				}
				a.openExternal(BrowserPackage, ScreenBrowser)
			})
		}})
		add(&element{class: ClassButton, desc: "Open Gmail", clickable: true, onClick: func() {
			a.stage(func() { a.openExternal(GmailPackage, ScreenGmail) })
		}})
		add(&element{class: ClassButton, desc: "Shopping List", clickable: true, onClick: func() {
			a.stage(func() { a.push(ScreenList) })
		}})

	case ScreenList:
		add(&element{class: ClassView, desc: "Shopping List"})
		add(&element{class: ClassButton, desc: "Back", clickable: true, onClick: func() {
			a.stage(func() {
				if len(a.stack) > 1 {
					a.stack = a.stack[:len(a.stack)-1]
				}
			})
		}})
		add(&element{class: ClassView, desc: "Add items to your shopping list"})
		add(&element{class: ClassEditText, hint: "Item name", field: &a.nameField, clickable: true})
		add(&element{class: ClassEditText, hint: "Quantity", field: &a.qtyField, clickable: true})
		add(&element{class: ClassButton, desc: "Add", clickable: true, onClick: func() {
			a.stage(a.addItem)
		}})
		if a.opts.ExtraButton != "" {
			add(&element{class: ClassButton, desc: a.opts.ExtraButton, clickable: true, onClick: func() {}})
		}
		if len(a.items) == 0 {
			add(&element{class: ClassView, desc: "No items yet"})
		}
		for i, item := range a.items {
			idx := i
			add(&element{class: ClassView, desc: item.Descriptor()})
			add(&element{class: ClassButton, clickable: true, onClick: func() {
				a.stage(func() { a.deleteItem(idx) })
			}})
		}
		for _, raw := range a.opts.ExtraViews {
			add(&element{class: ClassView, desc: raw})
		}
		if len(a.items) > 0 {
			add(&element{class: ClassView, desc: fmt.Sprintf("Total: %d items", len(a.items))})
			add(&element{class: ClassView, desc: "Completed: 0"})
		}

	case ScreenWebView:
		add(&element{class: ClassWebView, text: "Google"})
		add(&element{class: ClassView, text: "Search"})

	case ScreenBrowser:
		add(&element{class: ClassWebView, text: "Google"})
		add(&element{class: ClassEditText, hint: "Search or type URL", clickable: true, field: new(string)})

	case ScreenGmail:
		add(&element{class: ClassView, text: "Gmail"})
		add(&element{class: ClassButton, desc: "Compose", clickable: true, onClick: func() {}})

	case ScreenLauncher:
		add(&element{class: ClassView, desc: "Home"})
	}

	for _, e := range out {
		if e.field != nil {
			e.text = *e.field
			e.focused = a.focus == e.field
		}
	}

	a.rendered = out
	return out
}

// lookup returns the element with the given ID in the current render.
// stale is true when the ID belongs to an earlier generation.
func (a *app) lookup(id string) (e *element, stale bool) {
	elems := a.elements()
	for _, e := range elems {
		if e.id == id {
			return e, false
		}
	}
	if g, _, ok := strings.Cut(id, "."); ok {
		if n, err := strconv.Atoi(g); err == nil && n < a.gen {
			return nil, true
		}
	}
	return nil, false
}

func (a *app) click(e *element) {
	if e.field != nil {
		a.focus = e.field
		e.focused = true
		return
	}
	if e.onClick != nil {
		e.onClick()
	}
}

func (a *app) clear(e *element) {
	if e.field != nil {
		*e.field = ""
		e.text = ""
	}
}

func (a *app) sendKeys(e *element, text string) bool {
	if e.field == nil {
		return false
	}
	*e.field += text
	e.text = *e.field
	return true
}

func (e *element) attribute(name string) (string, bool) {
	switch name {
	case "content-desc", "contentDescription":
		return e.desc, e.desc != ""
	case "text":
		return e.text, true
	case "class", "className":
		return e.class, true
	case "hint":
		return e.hint, e.hint != ""
	case "displayed":
		return strconv.FormatBool(e.displayed), true
	case "clickable":
		return strconv.FormatBool(e.clickable), true
	case "enabled":
		return "true", true
	case "focused":
		return strconv.FormatBool(e.focused), true
	case "bounds":
		return fmt.Sprintf("[%d,%d][%d,%d]", e.bounds[0], e.bounds[1], e.bounds[2], e.bounds[3]), true
	}
	return "", false
}
