package scenario

import (
	"github.com/devicelab-dev/shoplist-e2e/pkg/pages"
)

var (
	smoke      = []string{TagSmoke}
	regression = []string{TagRegression}
)

// Catalog returns every scenario in run order.
func Catalog() []Scenario {
	return []Scenario{
		// home
		{Name: "all_buttons_visible", Suite: SuiteHome, Tags: smoke,
			Description: "all three home buttons are visible", Run: allButtonsVisible},
		{Name: "web_search_opens_browser", Suite: SuiteHome, Tags: smoke,
			Description: "Web Search leaves the app for the browser", Run: webSearchOpensBrowser},
		{Name: "open_gmail", Suite: SuiteHome, Tags: smoke,
			Description: "Open Gmail leaves the app", Run: openGmail},
		{Name: "shopping_list_navigation", Suite: SuiteHome, Tags: smoke,
			Description: "Shopping List opens the list screen", Run: navigateToShoppingList},
		{Name: "all_buttons_clickable", Suite: SuiteHome, Tags: regression,
			Description: "each home button works in sequence", Run: allButtonsClickable},

		// gmail
		{Name: "gmail_button_visible", Suite: SuiteGmail, Tags: smoke,
			Description: "home page loads with the Gmail button", Run: gmailButtonVisible},
		{Name: "click_gmail_button", Suite: SuiteGmail, Tags: smoke,
			Description: "Gmail opens and the app can be reactivated", Run: clickGmailButton},

		// shopping list
		{Name: "navigate_to_shopping_list", Suite: SuiteShoppingList, Tags: smoke,
			Description: "list screen loads and back returns home", Run: navigateToShoppingList},
		{Name: "empty_state", Suite: SuiteShoppingList, Tags: smoke,
			Description: "reports the empty state or existing items", Run: emptyState},
		{Name: "add_single_item", Suite: SuiteShoppingList, Tags: regression,
			Description: "Milk x2 shows up in the list", Run: addSingleItem},
		{Name: "add_multiple_items", Suite: SuiteShoppingList, Tags: regression,
			Description: "Bread, Eggs and Butter all show up", Run: addMultipleItems},
		{Name: "add_item_default_quantity", Suite: SuiteShoppingList, Tags: regression,
			Description: "an item added without quantity gets 1", Run: addItemDefaultQuantity},
		{Name: "delete_item", Suite: SuiteShoppingList, Tags: regression,
			Description: "deleting Orange removes exactly one row", Run: deleteItem},
		{Name: "add_and_delete_multiple_items", Suite: SuiteShoppingList, Tags: regression,
			Description: "deleting one of three items keeps the others", Run: addAndDeleteMultipleItems},
		{Name: "fresh_list_is_empty", Suite: SuiteShoppingList, Tags: regression,
			Description: "a fresh launch shows the empty message and no items", Run: freshListIsEmpty},
	}
}

// Tags returns the distinct tags in the catalog, in first-seen order.
func Tags(all []Scenario) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range all {
		for _, t := range s.Tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

func homeLoaded(t *T) (*pages.HomePage, error) {
	home := t.App.Home()
	err := t.Step("wait for home page", func() error { return home.WaitForLoad(t.Debug) })
	return home, err
}

func openShoppingList(t *T) (*pages.ShoppingListPage, error) {
	home, err := homeLoaded(t)
	if err != nil {
		return nil, err
	}
	if err := t.Step("click Shopping List", home.ClickShoppingList); err != nil {
		return nil, err
	}
	list := t.App.ShoppingList()
	if err := t.Step("shopping list loaded", list.WaitForLoad); err != nil {
		return nil, err
	}
	return list, nil
}

func backHome(t *T, list *pages.ShoppingListPage) error {
	return t.Step("back to home", list.Back)
}

// leaveAndReturn clicks a button that opens another app, checks the app
// left the foreground, and comes back to the home screen.
func leaveAndReturn(t *T, home *pages.HomePage, label string, click func() error) error {
	if err := t.Step("click "+label, click); err != nil {
		return err
	}
	if err := t.Step("other app in foreground", func() error {
		pkg, err := t.App.Navigator.WaitForOtherApp(t.App.Timeouts.Settle)
		if err != nil {
			return err
		}
		t.Logf("current package: %s", pkg)
		return nil
	}); err != nil {
		return err
	}
	return t.Step("return to app", home.ReturnFromWebView)
}

type item struct {
	name     string
	quantity int
}

func addAll(t *T, list *pages.ShoppingListPage, items []item) error {
	for _, it := range items {
		it := it
		if err := t.Step("add "+it.name, func() error {
			_, err := list.AddItem(it.name, it.quantity)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

func allButtonsVisible(t *T) error {
	home, err := homeLoaded(t)
	if err != nil {
		return err
	}
	checks := []struct {
		label   string
		visible func() bool
	}{
		{pages.WebSearchButton, home.IsWebSearchVisible},
		{pages.OpenGmailButton, home.IsGmailVisible},
		{pages.ShoppingListButton, home.IsShoppingListVisible},
	}
	for _, c := range checks {
		c := c
		if err := t.Step(c.label+" visible", func() error {
			return t.Assertf(c.visible(), "%s button not visible", c.label)
		}); err != nil {
			return err
		}
	}
	return nil
}

func webSearchOpensBrowser(t *T) error {
	home, err := homeLoaded(t)
	if err != nil {
		return err
	}
	return leaveAndReturn(t, home, pages.WebSearchButton, home.ClickWebSearch)
}

func openGmail(t *T) error {
	home, err := homeLoaded(t)
	if err != nil {
		return err
	}
	return leaveAndReturn(t, home, pages.OpenGmailButton, home.ClickGmail)
}

func navigateToShoppingList(t *T) error {
	list, err := openShoppingList(t)
	if err != nil {
		return err
	}
	return backHome(t, list)
}

func allButtonsClickable(t *T) error {
	home, err := homeLoaded(t)
	if err != nil {
		return err
	}
	for _, b := range []struct {
		label string
		click func() error
	}{
		{pages.WebSearchButton, home.ClickWebSearch},
		{pages.OpenGmailButton, home.ClickGmail},
	} {
		if err := leaveAndReturn(t, home, b.label, b.click); err != nil {
			return err
		}
		if _, err := homeLoaded(t); err != nil {
			return err
		}
	}
	return navigateToShoppingList(t)
}

func gmailButtonVisible(t *T) error {
	home, err := homeLoaded(t)
	if err != nil {
		return err
	}
	if err := t.Step("home page verified", func() error {
		return t.Assertf(home.VerifyLoaded(), "home page did not load")
	}); err != nil {
		return err
	}
	return t.Step("Open Gmail visible", func() error {
		return t.Assertf(home.IsGmailVisible(), "Open Gmail button not visible")
	})
}

func clickGmailButton(t *T) error {
	home, err := homeLoaded(t)
	if err != nil {
		return err
	}
	if err := t.Step("click "+pages.OpenGmailButton, home.ClickGmail); err != nil {
		return err
	}
	if err := t.Step("other app in foreground", func() error {
		_, err := t.App.Navigator.WaitForOtherApp(t.App.Timeouts.Settle)
		return err
	}); err != nil {
		return err
	}
	if err := t.Step("list contexts", func() error {
		ctxs, err := t.App.Device.Contexts()
		if err != nil {
			return err
		}
		t.Logf("available contexts: %v", ctxs)
		return nil
	}); err != nil {
		return err
	}
	return t.Step("activate app", func() error {
		if err := t.App.Device.ActivateApp(t.App.AppID); err != nil {
			return err
		}
		return t.App.Navigator.WaitForApp(t.App.Timeouts.Settle)
	})
}

func emptyState(t *T) error {
	list, err := openShoppingList(t)
	if err != nil {
		return err
	}
	if err := t.Step("read items", func() error {
		items := list.Items()
		t.Logf("current items in shopping list: %d", items.Len())
		if items.Len() == 0 {
			t.Logf("empty state shown: %v", list.IsEmpty())
		}
		return nil
	}); err != nil {
		return err
	}
	return backHome(t, list)
}

func addSingleItem(t *T) error {
	list, err := openShoppingList(t)
	if err != nil {
		return err
	}
	if err := addAll(t, list, []item{{"Milk", 2}}); err != nil {
		return err
	}
	if err := t.Step("Milk x2 in list", func() error {
		got, ok := list.Items().Find("Milk")
		if err := t.Assertf(ok, "Milk not found in shopping list"); err != nil {
			return err
		}
		return t.Assertf(got.Quantity == 2, "Milk quantity = %d, want 2", got.Quantity)
	}); err != nil {
		return err
	}
	return backHome(t, list)
}

func addMultipleItems(t *T) error {
	list, err := openShoppingList(t)
	if err != nil {
		return err
	}
	before := list.ItemCount()
	want := []item{{"Bread", 1}, {"Eggs", 12}, {"Butter", 2}}
	if err := addAll(t, list, want); err != nil {
		return err
	}
	if err := t.Step("all items in list", func() error {
		items := list.Items()
		t.Logf("shopping list now has %d items", items.Len())
		if err := t.Assertf(items.Len() == before+len(want), "item count = %d, want %d", items.Len(), before+len(want)); err != nil {
			return err
		}
		for _, it := range want {
			if err := t.Assertf(items.Contains(it.name), "%s not found in shopping list", it.name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}
	return backHome(t, list)
}

func addItemDefaultQuantity(t *T) error {
	list, err := openShoppingList(t)
	if err != nil {
		return err
	}
	if err := t.Step("add Apple", func() error {
		_, err := list.AddItemDefault("Apple")
		return err
	}); err != nil {
		return err
	}
	if err := t.Step("Apple x1 in list", func() error {
		got, ok := list.Items().Find("Apple")
		if err := t.Assertf(ok, "Apple not found in shopping list"); err != nil {
			return err
		}
		return t.Assertf(got.Quantity == pages.DefaultQuantity, "Apple quantity = %d, want %d", got.Quantity, pages.DefaultQuantity)
	}); err != nil {
		return err
	}
	return backHome(t, list)
}

func deleteItem(t *T) error {
	list, err := openShoppingList(t)
	if err != nil {
		return err
	}
	if err := addAll(t, list, []item{{"Orange", 3}}); err != nil {
		return err
	}
	initial := list.ItemCount()
	t.Logf("initial item count: %d", initial)
	if err := t.Step("delete Orange", func() error {
		_, err := list.DeleteItem("Orange")
		return err
	}); err != nil {
		return err
	}
	if err := t.Step("Orange removed", func() error {
		items := list.Items()
		if err := t.Assertf(!items.Contains("Orange"), "Orange still exists after deletion"); err != nil {
			return err
		}
		return t.Assertf(items.Len() == initial-1, "item count = %d, want %d", items.Len(), initial-1)
	}); err != nil {
		return err
	}
	return backHome(t, list)
}

func addAndDeleteMultipleItems(t *T) error {
	list, err := openShoppingList(t)
	if err != nil {
		return err
	}
	added := []item{{"Banana", 6}, {"Tomato", 4}, {"Onion", 2}}
	if err := addAll(t, list, added); err != nil {
		return err
	}
	t.Logf("added %d items, total count: %d", len(added), list.ItemCount())
	if err := t.Step("delete Tomato", func() error {
		_, err := list.DeleteItem("Tomato")
		return err
	}); err != nil {
		return err
	}
	if err := t.Step("only Tomato removed", func() error {
		items := list.Items()
		if err := t.Assertf(!items.Contains("Tomato"), "Tomato still exists"); err != nil {
			return err
		}
		for _, it := range added {
			if it.name == "Tomato" {
				continue
			}
			if err := t.Assertf(items.Contains(it.name), "%s should still exist but was not found", it.name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}
	return backHome(t, list)
}

func freshListIsEmpty(t *T) error {
	list, err := openShoppingList(t)
	if err != nil {
		return err
	}
	if err := t.Step("empty message shown", func() error {
		return t.Assertf(list.IsEmpty(), "empty list message not shown")
	}); err != nil {
		return err
	}
	if err := t.Step("scan finds no items", func() error {
		res, err := list.Scan()
		if err != nil {
			return err
		}
		return t.Assertf(len(res.Items) == 0, "scan found %d items on a fresh list", len(res.Items))
	}); err != nil {
		return err
	}
	return backHome(t, list)
}
