package shoplist

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
)

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		desc    string
		want    Item
		wantErr bool
	}{
		{desc: "Milk\nx2", want: Item{Name: "Milk", Quantity: 2}},
		{desc: "Eggs\nx12", want: Item{Name: "Eggs", Quantity: 12}},
		{desc: "Green Apples\nX0", want: Item{Name: "Green Apples", Quantity: 0}},
		{desc: "Bread\n x1 ", want: Item{Name: "Bread", Quantity: 1}},
		{desc: "a\nb\nx3", wantErr: true},
		{desc: "Cheese\nxabc", wantErr: true},
		{desc: "Cheese\nx", wantErr: true},
		{desc: "Cheese\nx-1", wantErr: true},
		{desc: "\nx4", wantErr: true},
		{desc: "  \nx4", wantErr: true},
		{desc: "Milk x2", wantErr: true},
		{desc: "Milk\n2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, err := ParseDescriptor(tt.desc)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, core.ErrParse))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Name, got.Name)
			assert.Equal(t, tt.want.Quantity, got.Quantity)
			assert.Equal(t, tt.desc, got.Descriptor)
		})
	}
}

func TestIsCandidate(t *testing.T) {
	tests := []struct {
		desc string
		want bool
	}{
		{"Milk\nx2", true},
		{"Cheese\nxabc", true},
		{"Milk\n X2", true},
		{"Milk", false},
		{"Line one\nLine two", false},
		{"Total: 3 items", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsCandidate(tt.desc), "%q", tt.desc)
	}
}

func TestLayoutReserved(t *testing.T) {
	l := DefaultLayout()
	for _, d := range []string{"Shopping List", "Add items to your shopping list", "No items yet", "Back", "null", ""} {
		assert.True(t, l.Reserved(d), "%q", d)
	}
	assert.False(t, l.Reserved("Milk\nx2"))
	assert.False(t, l.Reserved("shopping list"), "matching is literal")

	assert.True(t, l.Aggregate("Total: 3 items"))
	assert.True(t, l.Aggregate("Completed: 1"))
	assert.False(t, l.Aggregate("Milk\nx2"))
}

func TestItemList(t *testing.T) {
	list := ItemList{
		{Name: "Pineapple", Quantity: 1, Descriptor: "Pineapple\nx1"},
		{Name: "Apple", Quantity: 3, Descriptor: "Apple\nx3"},
		{Name: "Milk", Quantity: 2, Descriptor: "Milk\nx2"},
	}

	assert.Equal(t, 3, list.Len())
	assert.Equal(t, []string{"Pineapple", "Apple", "Milk"}, list.Names())

	// First match wins, so "pple" resolves to Pineapple.
	assert.Equal(t, 0, list.Index("pple"))
	assert.Equal(t, 1, list.Index("Apple"))
	assert.Equal(t, 2, list.Index("Milk"))
	assert.Equal(t, -1, list.Index("milk"), "descriptor match is case-sensitive")
	assert.Equal(t, 2, list.Index("x2"), "descriptor match covers the quantity line")

	it, ok := list.Find("Milk")
	require.True(t, ok)
	assert.Equal(t, 2, it.Quantity)
	_, ok = list.Find("Bread")
	assert.False(t, ok)

	assert.True(t, list.Contains("milk"))
	assert.True(t, list.Contains("APPLE"))
	assert.False(t, list.Contains("x2"), "name match ignores the quantity line")
	assert.False(t, ItemList{}.Contains("Milk"))
}

func TestControlSet(t *testing.T) {
	var set ControlSet
	_, ok := set.Add()
	assert.False(t, ok)

	set = make(ControlSet, 3) // add + two deletes
	assert.Equal(t, 1, DeleteIndex(0))

	_, idx, err := set.Delete(1)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, idx, err = set.Delete(2)
	assert.True(t, errors.Is(err, core.ErrIndexOutOfRange))
	assert.Equal(t, 3, idx)

	_, _, err = set.Delete(-1)
	assert.True(t, errors.Is(err, core.ErrIndexOutOfRange))

	assert.NoError(t, set.CheckAlignment(2))
	assert.True(t, errors.Is(set.CheckAlignment(1), core.ErrControlMisaligned))
	assert.True(t, errors.Is(set.CheckAlignment(3), core.ErrControlMisaligned))
}
