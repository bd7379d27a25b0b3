package appium

import "testing"

const listSource = `<?xml version="1.0" encoding="UTF-8"?>
<hierarchy index="0" rotation="0">
  <android.widget.FrameLayout class="android.widget.FrameLayout" bounds="[0,0][1080,2400]" displayed="true">
    <android.view.View class="android.view.View" content-desc="Shopping List" bounds="[0,100][1080,200]"/>
    <android.widget.Button class="android.widget.Button" content-desc="Back" clickable="true" bounds="[0,100][100,200]"/>
    <android.widget.EditText class="android.widget.EditText" hint="Item name" text="" bounds="[40,300][700,400]" focused="true"/>
    <android.widget.EditText class="android.widget.EditText" hint="Qty" text="1" bounds="[720,300][900,400]"/>
    <android.widget.Button class="android.widget.Button" content-desc="Add" clickable="true" bounds="[920,300][1040,400]"/>
    <android.view.View class="android.view.View" content-desc="Milk&#10;x2" bounds="[0,500][1080,600]" displayed="false"/>
  </android.widget.FrameLayout>
</hierarchy>`

func TestParsePageSource(t *testing.T) {
	elems, err := ParsePageSource(listSource)
	if err != nil {
		t.Fatalf("ParsePageSource failed: %v", err)
	}
	if len(elems) != 7 {
		t.Fatalf("expected 7 elements, got %d", len(elems))
	}

	root := elems[0]
	if root.Depth != 0 || len(root.Children) != 6 {
		t.Errorf("root depth=%d children=%d", root.Depth, len(root.Children))
	}

	buttons := FilterByClass(elems, "android.widget.Button")
	if len(buttons) != 2 {
		t.Fatalf("expected 2 buttons, got %d", len(buttons))
	}
	if buttons[0].Label() != "Back" || !buttons[0].Clickable {
		t.Errorf("unexpected first button %+v", buttons[0])
	}
	if buttons[1].Parent != root {
		t.Error("parent not set")
	}

	edits := FilterByClass(elems, "android.widget.EditText")
	if len(edits) != 2 || edits[0].HintText != "Item name" || !edits[0].Focused {
		t.Errorf("unexpected edit texts %+v", edits)
	}
	if edits[1].Label() != "1" {
		t.Errorf("Label falls back to text, got %q", edits[1].Label())
	}

	item := elems[6]
	if item.ContentDesc != "Milk\nx2" {
		t.Errorf("ContentDesc = %q, want newline preserved", item.ContentDesc)
	}
	if item.Displayed {
		t.Error("displayed=false not honored")
	}
	if x, y := item.Bounds.Center(); x != 540 || y != 550 {
		t.Errorf("center = (%d,%d)", x, y)
	}
}

func TestParsePageSource_NoHierarchy(t *testing.T) {
	if _, err := ParsePageSource(`<root><node/></root>`); err == nil {
		t.Error("expected error for source without hierarchy")
	}
}

func TestParseBounds(t *testing.T) {
	tests := []struct {
		in   string
		want Bounds
	}{
		{"[0,0][100,50]", Bounds{0, 0, 100, 50}},
		{"[10,20][30,60]", Bounds{10, 20, 20, 40}},
		{"garbage", Bounds{}},
	}
	for _, tt := range tests {
		if got := parseBounds(tt.in); got != tt.want {
			t.Errorf("parseBounds(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
