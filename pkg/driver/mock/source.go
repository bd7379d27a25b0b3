package mock

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// renderSource serialises the rendered elements as a UiAutomator2 hierarchy.
// The first element is the root container; the rest are its children.
func renderSource(elems []*element) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<hierarchy index="0" class="hierarchy" rotation="0" width="1080" height="2400">` + "\n")
	for i, e := range elems {
		b.WriteString("  ")
		if i > 0 {
			b.WriteString("  ")
		}
		fmt.Fprintf(&b, "<%s", e.class)
		attr := func(name, value string) {
			b.WriteString(" " + name + `="`)
			_ = xml.EscapeText(&b, []byte(value))
			b.WriteString(`"`)
		}
		attr("class", e.class)
		attr("text", e.text)
		attr("content-desc", e.desc)
		attr("hint", e.hint)
		attr("clickable", fmt.Sprint(e.clickable))
		attr("focused", fmt.Sprint(e.focused))
		attr("displayed", fmt.Sprint(e.displayed))
		attr("enabled", "true")
		attr("bounds", fmt.Sprintf("[%d,%d][%d,%d]", e.bounds[0], e.bounds[1], e.bounds[2], e.bounds[3]))
		if i == 0 {
			b.WriteString(">\n")
			continue
		}
		b.WriteString("/>\n")
	}
	if len(elems) > 0 {
		fmt.Fprintf(&b, "  </%s>\n", elems[0].class)
	}
	b.WriteString("</hierarchy>\n")
	return b.String()
}
