package pages

import (
	"github.com/devicelab-dev/shoplist-e2e/pkg/locator"
	"github.com/devicelab-dev/shoplist-e2e/pkg/screen"
	"github.com/devicelab-dev/shoplist-e2e/pkg/shoplist"
)

// DefaultQuantity is used by AddItemDefault.
const DefaultQuantity = 1

// ShoppingListPage is the list screen: two input fields, an add button and
// one row with a delete button per item.
type ShoppingListPage struct {
	app *App
}

// WaitForLoad waits until the list screen verifies.
func (p *ShoppingListPage) WaitForLoad() error {
	return p.app.Navigator.WaitForScreen(screen.ShoppingList, p.app.settle())
}

// VerifyLoaded reports whether the list screen is active.
func (p *ShoppingListPage) VerifyLoaded() bool {
	return p.app.Verifier.Verify(screen.ShoppingList)
}

// AddItem adds name with quantity and waits for the row.
func (p *ShoppingListPage) AddItem(name string, quantity int) (*shoplist.Result, error) {
	return p.app.Dispatch.InvokeAdd(name, quantity)
}

// AddItemDefault adds name with the default quantity.
func (p *ShoppingListPage) AddItemDefault(name string) (*shoplist.Result, error) {
	return p.AddItem(name, DefaultQuantity)
}

// DeleteItem deletes the first row whose descriptor contains name.
func (p *ShoppingListPage) DeleteItem(name string) (*shoplist.Result, error) {
	return p.app.Dispatch.InvokeDelete(name)
}

// Scan reads the list, including rejected rows.
func (p *ShoppingListPage) Scan() (*shoplist.ScanResult, error) {
	return p.app.Extractor.Scan()
}

// Items returns the parsed items.
func (p *ShoppingListPage) Items() shoplist.ItemList {
	return p.app.Extractor.Items()
}

// Descriptors returns the raw descriptors of the items.
func (p *ShoppingListPage) Descriptors() []string {
	items := p.Items()
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Descriptor
	}
	return out
}

// ItemCount returns the number of items.
func (p *ShoppingListPage) ItemCount() int {
	return p.Items().Len()
}

// HasItem reports whether an item name contains name, ignoring case.
func (p *ShoppingListPage) HasItem(name string) bool {
	return p.Items().Contains(name)
}

// IsEmpty reports whether the empty-list message is showing.
func (p *ShoppingListPage) IsEmpty() bool {
	return p.app.Extractor.IsEmpty()
}

// Back returns to the home screen with system back.
func (p *ShoppingListPage) Back() error {
	if err := p.app.Navigator.Back(); err != nil {
		return err
	}
	_, err := p.app.Resolver.Resolve(locator.ByAccessibilityID(WebSearchButton), p.app.settle())
	return err
}
