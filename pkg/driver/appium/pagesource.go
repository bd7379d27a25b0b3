package appium

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Bounds is an element's on-screen rectangle.
type Bounds struct {
	X, Y, Width, Height int
}

// Center returns the rectangle's midpoint.
func (b Bounds) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// ParsedElement represents an element from the UiAutomator2 page source XML.
type ParsedElement struct {
	ClassName   string
	Text        string
	ContentDesc string
	ResourceID  string
	HintText    string
	Bounds      Bounds
	Enabled     bool
	Displayed   bool
	Clickable   bool
	Focused     bool
	Depth       int
	Children    []*ParsedElement
	Parent      *ParsedElement
}

// Label returns the text a person would read for the element: the
// accessibility description, else the text.
func (e *ParsedElement) Label() string {
	if e.ContentDesc != "" {
		return e.ContentDesc
	}
	return e.Text
}

// ParsePageSource parses the hierarchy XML returned by GET /source into a
// flat, depth-first list of elements. Nodes outside <hierarchy> are ignored.
func ParsePageSource(xmlData string) ([]*ParsedElement, error) {
	dec := xml.NewDecoder(strings.NewReader(xmlData))

	var (
		out    []*ParsedElement
		stack  []*ParsedElement
		inside bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if len(out) > 0 {
				break
			}
			return nil, fmt.Errorf("parse page source: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "hierarchy" {
				inside = true
				continue
			}
			if !inside {
				continue
			}
			elem := newParsedElement(t)
			elem.Depth = len(stack)
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				elem.Parent = parent
				parent.Children = append(parent.Children, elem)
			}
			out = append(out, elem)
			stack = append(stack, elem)

		case xml.EndElement:
			if t.Name.Local == "hierarchy" {
				inside = false
				continue
			}
			if inside && len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if out == nil && !strings.Contains(xmlData, "<hierarchy") {
		return nil, fmt.Errorf("invalid page source: no hierarchy element found")
	}
	return out, nil
}

func newParsedElement(t xml.StartElement) *ParsedElement {
	e := &ParsedElement{ClassName: t.Name.Local, Displayed: true}
	for _, a := range t.Attr {
		v := a.Value
		switch a.Name.Local {
		case "class":
			e.ClassName = v
		case "text":
			e.Text = v
		case "content-desc":
			e.ContentDesc = v
		case "resource-id":
			e.ResourceID = v
		case "hint":
			e.HintText = v
		case "bounds":
			e.Bounds = parseBounds(v)
		case "enabled":
			e.Enabled = v == "true"
		case "displayed":
			e.Displayed = v != "false"
		case "clickable":
			e.Clickable = v == "true"
		case "focused":
			e.Focused = v == "true"
		}
	}
	return e
}

// FilterByClass returns the elements of the given widget class, in document order.
func FilterByClass(elements []*ParsedElement, className string) []*ParsedElement {
	var out []*ParsedElement
	for _, e := range elements {
		if e.ClassName == className {
			out = append(out, e)
		}
	}
	return out
}

// parseBounds reads the "[x1,y1][x2,y2]" form UiAutomator2 reports.
func parseBounds(s string) Bounds {
	var x1, y1, x2, y2 int
	if n, err := fmt.Sscanf(s, "[%d,%d][%d,%d]", &x1, &y1, &x2, &y2); err != nil || n != 4 {
		return Bounds{}
	}
	return Bounds{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}
