package shoplist

import (
	"errors"
	"fmt"
	"time"

	"github.com/devicelab-dev/shoplist-e2e/pkg/core"
	"github.com/devicelab-dev/shoplist-e2e/pkg/locator"
	"github.com/devicelab-dev/shoplist-e2e/pkg/logger"
)

// emptyTimeout bounds the empty-message lookup.
const emptyTimeout = 3 * time.Second

// ScanResult is one pass over the list screen.
type ScanResult struct {
	Items ItemList

	// Rejected holds the parse and read failures of skipped elements.
	Rejected []error

	// Seen is the number of elements enumerated.
	Seen int
}

// Complete returns the first rejection that was not a parse failure. Such a
// row could not be read at all, so Items may be missing an entry.
func (r *ScanResult) Complete() error {
	for _, err := range r.Rejected {
		if !errors.Is(err, core.ErrParse) {
			return fmt.Errorf("incomplete scan: %w", err)
		}
	}
	return nil
}

// Extractor reads the item list from the current screen.
type Extractor struct {
	resolver     *locator.Resolver
	layout       Layout
	emptyTimeout time.Duration
}

// NewExtractor creates an extractor for layout.
func NewExtractor(r *locator.Resolver, layout Layout) *Extractor {
	return &Extractor{resolver: r, layout: layout, emptyTimeout: emptyTimeout}
}

// SetEmptyTimeout changes how long IsEmpty waits for the empty message.
func (x *Extractor) SetEmptyTimeout(d time.Duration) {
	if d > 0 && d <= emptyTimeout {
		x.emptyTimeout = d
	}
}

// Layout returns the layout in use.
func (x *Extractor) Layout() Layout {
	return x.layout
}

// Scan enumerates item-class elements and parses those shaped like items.
// A malformed element is recorded in Rejected and skipped; only a failed
// enumeration fails the scan.
func (x *Extractor) Scan() (*ScanResult, error) {
	elems, err := x.resolver.ResolveAll(locator.ByClassName(x.layout.ItemClass))
	if err != nil {
		return nil, fmt.Errorf("scan list: %w", err)
	}

	res := &ScanResult{Items: ItemList{}, Seen: len(elems)}
	for _, el := range elems {
		desc, err := el.Description()
		if err != nil {
			res.Rejected = append(res.Rejected, fmt.Errorf("read descriptor of %s: %w", el.ID(), err))
			continue
		}
		if x.layout.Reserved(desc) || x.layout.Aggregate(desc) || !IsCandidate(desc) {
			continue
		}
		item, err := ParseDescriptor(desc)
		if err != nil {
			logger.Warn("skipping list row: %v", err)
			res.Rejected = append(res.Rejected, err)
			continue
		}
		if x.layout.Reserved(item.Name) {
			res.Rejected = append(res.Rejected, core.ErrParse.WithMessagef("descriptor %q: reserved name", desc))
			continue
		}
		res.Items = append(res.Items, item)
	}

	logger.WithFields(map[string]interface{}{
		"seen":     res.Seen,
		"items":    len(res.Items),
		"rejected": len(res.Rejected),
	}).Debug("list scanned")
	return res, nil
}

// Items scans and returns only the items. A failed scan is an empty list,
// so callers that must tell "no items" from "could not read" use Scan.
func (x *Extractor) Items() ItemList {
	res, err := x.Scan()
	if err != nil {
		logger.Error("%v", err)
		return ItemList{}
	}
	return res.Items
}

// IsEmpty reports whether the empty-list message is showing. It is a
// separate signal from an empty Scan and the two can disagree, e.g. while
// the list is re-rendering.
func (x *Extractor) IsEmpty() bool {
	return x.resolver.Exists(locator.ByAccessibilityID(x.layout.EmptyMessage), x.emptyTimeout)
}
