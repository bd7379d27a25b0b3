package pages

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/shoplist-e2e/pkg/config"
	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
	"github.com/devicelab-dev/shoplist-e2e/pkg/driver/appium"
	"github.com/devicelab-dev/shoplist-e2e/pkg/driver/mock"
)

var testTimeouts = config.Timeouts{
	ExplicitWait: 500 * time.Millisecond,
	Settle:       500 * time.Millisecond,
	Poll:         5 * time.Millisecond,
}

func launch(t *testing.T, opts mock.Options) (*mock.Server, *App) {
	t.Helper()
	dev := mock.NewServer(opts)
	ts := httptest.NewServer(dev)
	t.Cleanup(ts.Close)

	c := appium.NewClient(ts.URL)
	require.NoError(t, c.Connect(map[string]interface{}{}))
	t.Cleanup(func() { _ = c.Disconnect() })
	return dev, New(c, mock.DefaultAppPackage, testTimeouts)
}

func TestHomePage(t *testing.T) {
	_, app := launch(t, mock.Options{})
	home := app.Home()

	require.NoError(t, home.WaitForLoad(true))
	assert.True(t, home.VerifyLoaded())
	assert.True(t, home.IsWebSearchVisible())
	assert.True(t, home.IsGmailVisible())
	assert.True(t, home.IsShoppingListVisible())
}

func TestHomePage_ExternalApps(t *testing.T) {
	for _, exitToLauncher := range []bool{false, true} {
		dev, app := launch(t, mock.Options{ExitToLauncherOnBack: exitToLauncher})
		home := app.Home()
		require.NoError(t, home.WaitForLoad(false))

		require.NoError(t, home.ClickWebSearch())
		pkg, err := app.Navigator.WaitForOtherApp(time.Second)
		require.NoError(t, err)
		assert.Equal(t, mock.BrowserPackage, pkg)
		require.NoError(t, home.ReturnFromWebView())

		require.NoError(t, home.ClickGmail())
		pkg, err = app.Navigator.WaitForOtherApp(time.Second)
		require.NoError(t, err)
		assert.Equal(t, mock.GmailPackage, pkg)
		require.NoError(t, home.ReturnFromWebView())

		assert.Equal(t, mock.ScreenHome, dev.Screen())
	}
}

func TestHomePage_ClickMissingButton(t *testing.T) {
	_, app := launch(t, mock.Options{})
	require.NoError(t, app.Home().ClickShoppingList())
	require.NoError(t, app.ShoppingList().WaitForLoad())

	err := app.Home().ClickGmail()
	assert.True(t, errors.Is(err, core.ErrElementNotFound))
	assert.False(t, app.Home().IsGmailVisible())
}

func TestShoppingListPage(t *testing.T) {
	dev, app := launch(t, mock.Options{})
	require.NoError(t, app.Home().ClickShoppingList())

	list := app.ShoppingList()
	require.NoError(t, list.WaitForLoad())
	assert.True(t, list.VerifyLoaded())
	assert.True(t, list.IsEmpty())
	assert.Equal(t, 0, list.ItemCount())

	_, err := list.AddItem("Milk", 2)
	require.NoError(t, err)
	_, err = list.AddItemDefault("Bread")
	require.NoError(t, err)

	assert.Equal(t, []string{"Milk\nx2", "Bread\nx1"}, list.Descriptors())
	assert.True(t, list.HasItem("bread"))
	assert.False(t, list.IsEmpty())

	res, err := list.Scan()
	require.NoError(t, err)
	assert.Equal(t, 2, res.Items.Len())

	_, err = list.DeleteItem("Milk")
	require.NoError(t, err)
	assert.Equal(t, 1, list.ItemCount())
	assert.Equal(t, []mock.Item{{Name: "Bread", Quantity: 1}}, dev.Items())

	require.NoError(t, list.Back())
	assert.Equal(t, mock.ScreenHome, dev.Screen())
}

func TestTakeInventory(t *testing.T) {
	_, app := launch(t, mock.Options{SeedItems: []mock.Item{{Name: "Milk", Quantity: 2}}})
	require.NoError(t, app.Home().ClickShoppingList())
	require.NoError(t, app.ShoppingList().WaitForLoad())

	inv, err := TakeInventory(app.Resolver, 0)
	require.NoError(t, err)
	assert.Len(t, inv.EditTexts, 2)
	assert.Len(t, inv.Buttons, 3)

	var descs []string
	for _, v := range inv.Views {
		descs = append(descs, v.Description)
	}
	assert.Contains(t, descs, "Milk\nx2")
	assert.Contains(t, inv.Buttons[0].String(), `content-desc="Back"`)

	limited, err := TakeInventory(app.Resolver, 1)
	require.NoError(t, err)
	assert.Len(t, limited.Views, 1)
	limited.Log()
}
