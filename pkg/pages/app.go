// Package pages holds the page objects scenarios are written against.
package pages

import (
	"time"

	"github.com/devicelab-dev/shoplist-e2e/pkg/config"
	"github.com/devicelab-dev/shoplist-e2e/pkg/locator"
	"github.com/devicelab-dev/shoplist-e2e/pkg/screen"
	"github.com/devicelab-dev/shoplist-e2e/pkg/shoplist"
)

// Device is everything the page objects need from a session.
// *appium.Client implements it.
type Device interface {
	locator.Session
	screen.Device
	Contexts() ([]string, error)
}

// App wires the resolver, screen verifier and list components for one
// session. Build a new App per session; nothing here outlives it.
type App struct {
	Device    Device
	AppID     string
	Timeouts  config.Timeouts
	Resolver  *locator.Resolver
	Verifier  *screen.Verifier
	Navigator *screen.Navigator
	Extractor *shoplist.Extractor
	Dispatch  *shoplist.Dispatcher
}

// New builds the page context for appID on dev.
func New(dev Device, appID string, t config.Timeouts) *App {
	r := locator.NewResolver(dev, t.ExplicitWait, t.Poll)
	v := screen.NewVerifier(r, dev, screen.MaxMarkerTimeout)
	for _, d := range screen.AppScreens(appID) {
		v.Register(d)
	}
	x := shoplist.NewExtractor(r, shoplist.DefaultLayout())
	return &App{
		Device:    dev,
		AppID:     appID,
		Timeouts:  t,
		Resolver:  r,
		Verifier:  v,
		Navigator: screen.NewNavigator(dev, r, v, appID, t.Settle),
		Extractor: x,
		Dispatch:  shoplist.NewDispatcher(r, x, t.Settle),
	}
}

// Home returns the home page object.
func (a *App) Home() *HomePage {
	return &HomePage{app: a}
}

// ShoppingList returns the shopping list page object.
func (a *App) ShoppingList() *ShoppingListPage {
	return &ShoppingListPage{app: a}
}

func (a *App) settle() time.Duration {
	if a.Timeouts.Settle > 0 {
		return a.Timeouts.Settle
	}
	return a.Resolver.Timeout()
}
