// Package cart implements the shopper's pending selection: a set of line
// items owned by a guest or authenticated identity, persisted per-identity
// and merged when a guest signs in.
package cart

import "github.com/shopspring/decimal"

// Line is one product entry in a cart. Name, UnitPrice and Image are
// snapshots taken when the product was added. The cart holds at most one
// Line per ProductID.
type Line struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
}

// Cart is an ordered collection of Lines. The zero value is an empty cart.
type Cart struct {
	Lines []Line `json:"lines"`
}

// IsEmpty reports whether the cart has no lines.
func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// find returns a pointer to the line for productID, or nil.
func (c *Cart) find(productID string) *Line {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i]
		}
	}
	return nil
}

// Quantity returns the current quantity of productID, or 0 when absent.
func (c Cart) Quantity(productID string) int {
	if l := c.find(productID); l != nil {
		return l.Quantity
	}
	return 0
}

// remove drops all lines matching any of the given ids.
func (c *Cart) remove(ids ...string) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if _, ok := drop[l.ProductID]; !ok {
			kept = append(kept, l)
		}
	}
	c.Lines = kept
}

// clone returns a deep copy of the cart.
func (c *Cart) clone() Cart {
	out := Cart{Lines: make([]Line, len(c.Lines))}
	copy(out.Lines, c.Lines)
	return out
}

// Merge combines two carts: quantities are summed for lines sharing a
// ProductID, lines unique to either side are kept as-is. Quantities are
// order-insensitive; for shared lines the snapshot fields (name, price,
// image) of a win, which only matters when the catalog changed between the
// two adds.
func Merge(a, b Cart) Cart {
	merged := a.clone()
	for _, l := range b.Lines {
		if existing := merged.find(l.ProductID); existing != nil {
			existing.Quantity += l.Quantity
			continue
		}
		merged.Lines = append(merged.Lines, l)
	}
	return merged
}
