package pages

import (
	"fmt"

	"github.com/devicelab-dev/shoplist-e2e/pkg/locator"
	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
	"github.com/devicelab-dev/shoplist-e2e/pkg/screen"
)

// Home screen labels.
const (
	WebSearchButton    = "Web Search"
	OpenGmailButton    = "Open Gmail"
	ShoppingListButton = "Shopping List"
)

// HomePage is the landing screen with its three action buttons.
type HomePage struct {
	app *App
}

// WaitForLoad waits until the home screen verifies. With debug set the
// elements on screen are written to the log.
func (p *HomePage) WaitForLoad(debug bool) error {
	logger.Debug("waiting for home page to load")
	if err := p.app.Navigator.WaitForScreen(screen.Home, p.app.Resolver.Timeout()); err != nil {
		return err
	}
	// Identity alone passes before Flutter has drawn anything.
	if _, err := p.app.Resolver.Resolve(locator.ByAccessibilityID(WebSearchButton), 0); err != nil {
		return fmt.Errorf("home page buttons: %w", err)
	}
	if debug {
		inv, err := TakeInventory(p.app.Resolver, 10)
		if err != nil {
			logger.Error("debug logging error: %v", err)
		} else {
			inv.Log()
		}
	}
	return nil
}

// VerifyLoaded reports whether the home screen is active.
func (p *HomePage) VerifyLoaded() bool {
	return p.app.Verifier.Verify(screen.Home)
}

func (p *HomePage) click(label string) error {
	logger.Debug("attempting to find %s button", label)
	el, err := p.app.Resolver.Resolve(locator.ByAccessibilityID(label), 0)
	if err != nil {
		logger.Error("error clicking %s button: %v", label, err)
		return err
	}
	if err := el.Click(); err != nil {
		logger.Error("error clicking %s button: %v", label, err)
		return err
	}
	logger.Info("%s button clicked successfully", label)
	return nil
}

// ClickWebSearch opens the browser.
func (p *HomePage) ClickWebSearch() error { return p.click(WebSearchButton) }

// ClickGmail opens Gmail.
func (p *HomePage) ClickGmail() error { return p.click(OpenGmailButton) }

// ClickShoppingList opens the shopping list screen.
func (p *HomePage) ClickShoppingList() error { return p.click(ShoppingListButton) }

func (p *HomePage) visible(label string) bool {
	el, err := p.app.Resolver.Resolve(locator.ByAccessibilityID(label), 0)
	if err != nil {
		return false
	}
	shown, err := el.Displayed()
	return err == nil && shown
}

// IsWebSearchVisible reports whether the Web Search button is showing.
func (p *HomePage) IsWebSearchVisible() bool { return p.visible(WebSearchButton) }

// IsGmailVisible reports whether the Open Gmail button is showing.
func (p *HomePage) IsGmailVisible() bool { return p.visible(OpenGmailButton) }

// IsShoppingListVisible reports whether the Shopping List button is showing.
func (p *HomePage) IsShoppingListVisible() bool { return p.visible(ShoppingListButton) }

// ReturnFromWebView comes back from the browser or Gmail and waits for the
// home screen.
func (p *HomePage) ReturnFromWebView() error {
	return p.app.Navigator.ReturnToApp(locator.ByAccessibilityID(WebSearchButton))
}
