package mock

import (
	"fmt"
	"regexp"
	"strings"
)

// selectorCall matches one chained UiSelector method with a string argument,
// e.g. .className("android.widget.Button").
var selectorCall = regexp.MustCompile(`\.(\w+)\("((?:[^"\\]|\\.)*)"\)`)

type predicate func(e *element) bool

// parseUiSelector compiles the subset of UiSelector the suite uses into a
// predicate. Every chained call must hold.
func parseUiSelector(expr string) (predicate, error) {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "new UiSelector()") {
		return nil, fmt.Errorf("unsupported selector %q", expr)
	}
	rest := strings.TrimPrefix(expr, "new UiSelector()")
	matches := selectorCall.FindAllStringSubmatchIndex(rest, -1)
	if len(matches) == 0 && strings.TrimSpace(rest) != "" {
		return nil, fmt.Errorf("unsupported selector %q", expr)
	}

	var preds []predicate
	consumed := 0
	for _, m := range matches {
		if strings.TrimSpace(rest[consumed:m[0]]) != "" {
			return nil, fmt.Errorf("unsupported selector %q", expr)
		}
		consumed = m[1]
		method := rest[m[2]:m[3]]
		arg := unescape(rest[m[4]:m[5]])

		p, err := selectorPredicate(method, arg)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	if tail := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest[consumed:]), ";")); tail != "" {
		return nil, fmt.Errorf("unsupported selector %q", expr)
	}

	return func(e *element) bool {
		for _, p := range preds {
			if !p(e) {
				return false
			}
		}
		return true
	}, nil
}

func selectorPredicate(method, arg string) (predicate, error) {
	switch method {
	case "className":
		return func(e *element) bool { return e.class == arg }, nil
	case "description":
		return func(e *element) bool { return e.desc == arg }, nil
	case "descriptionContains":
		return func(e *element) bool { return strings.Contains(e.desc, arg) }, nil
	case "descriptionStartsWith":
		return func(e *element) bool { return strings.HasPrefix(e.desc, arg) }, nil
	case "text":
		return func(e *element) bool { return e.text == arg }, nil
	case "textContains":
		return func(e *element) bool { return strings.Contains(e.text, arg) }, nil
	case "textStartsWith":
		return func(e *element) bool { return strings.HasPrefix(e.text, arg) }, nil
	}
	return nil, fmt.Errorf("unsupported UiSelector method %q", method)
}

func unescape(s string) string {
	var b strings.Builder
	escaped := false
	for _, r := range s {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
