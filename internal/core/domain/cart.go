// internal/core/domain/cart.go
package domain

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// ProductID identifies a commodity in the catalog
type ProductID int64

// String returns the decimal form of the id
func (p ProductID) String() string {
	return strconv.FormatInt(int64(p), 10)
}

// LineID identifies a cart line. Server-issued in server mode, derived from
// the product id in local mode.
type LineID string

// LineStatus mirrors the listing status the server reports for a cart line
type LineStatus int

const (
	LineStatusDelisted LineStatus = 0
	LineStatusListed   LineStatus = 1
)

// CartLine is a single entry in the shopping cart
type CartLine struct {
	LineID         LineID          `json:"lineId"`
	ProductID      ProductID       `json:"productId"`
	Name           string          `json:"name,omitempty"`
	Avatar         string          `json:"avatar,omitempty"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	AddedPrice     decimal.Decimal `json:"addedPrice"`
	PriceChangeTip string          `json:"priceChangeTip,omitempty"`
	Quantity       int             `json:"quantity"`
	Selected       bool            `json:"selected"`
	StockLimit     *int            `json:"stockLimit,omitempty"`
	Status         LineStatus      `json:"status"`
}

// Subtotal returns unit price times quantity
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ClampQuantity bounds q to [1, stockLimit]. A nil limit means no upper bound;
// a limit below one still yields one.
func ClampQuantity(q int, stockLimit *int) int {
	if stockLimit != nil && q > *stockLimit {
		q = *stockLimit
	}
	if q < 1 {
		q = 1
	}
	return q
}

// ProductRef carries what a local cart needs to know about a product when it
// is added. The server resolves everything except the id on its own.
type ProductRef struct {
	ProductID  ProductID       `json:"productId"`
	Name       string          `json:"name,omitempty"`
	Avatar     string          `json:"avatar,omitempty"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	StockLimit *int            `json:"stockLimit,omitempty"`
}

// Snapshot is the aggregate view of a cart. All totals are derived from Lines
// except the server-supplied amounts in server mode.
type Snapshot struct {
	Lines          []CartLine      `json:"lines"`
	TotalQuantity  int             `json:"totalQuantity"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalAmount    decimal.Decimal `json:"finalAmount"`
	SelectedCount  int             `json:"selectedCount"`
	SelectedAmount decimal.Decimal `json:"selectedAmount"`
}

// ComputeSnapshot derives every aggregate from lines. Used in local mode,
// where there is no discount concept and the final amount equals the total.
func ComputeSnapshot(lines []CartLine) Snapshot {
	s := Snapshot{
		Lines:          cloneLines(lines),
		TotalAmount:    decimal.Zero,
		DiscountAmount: decimal.Zero,
		SelectedAmount: decimal.Zero,
	}
	for _, l := range s.Lines {
		s.TotalQuantity += l.Quantity
		s.TotalAmount = s.TotalAmount.Add(l.Subtotal())
		if l.Selected {
			s.SelectedCount += l.Quantity
			s.SelectedAmount = s.SelectedAmount.Add(l.Subtotal())
		}
	}
	s.FinalAmount = s.TotalAmount
	return s
}

// ServerSnapshot builds a snapshot from a server cart. Amounts are taken
// verbatim; quantities and the selected partition are still derived.
func ServerSnapshot(cart ServerCart) Snapshot {
	s := ComputeSnapshot(cart.Lines)
	s.TotalAmount = cart.TotalAmount
	s.DiscountAmount = cart.DiscountAmount
	s.FinalAmount = cart.FinalAmount
	return s
}

// Clone returns a deep copy of the snapshot
func (s Snapshot) Clone() Snapshot {
	s.Lines = cloneLines(s.Lines)
	return s
}

// SelectedLineIDs returns the ids of all selected lines in order
func (s Snapshot) SelectedLineIDs() []LineID {
	var ids []LineID
	for _, l := range s.Lines {
		if l.Selected {
			ids = append(ids, l.LineID)
		}
	}
	return ids
}

// Line looks up a line by id
func (s Snapshot) Line(id LineID) (CartLine, bool) {
	for _, l := range s.Lines {
		if l.LineID == id {
			return l, true
		}
	}
	return CartLine{}, false
}

// AllSelected reports whether the cart is non-empty and every line is selected
func (s Snapshot) AllSelected() bool {
	if len(s.Lines) == 0 {
		return false
	}
	for _, l := range s.Lines {
		if !l.Selected {
			return false
		}
	}
	return true
}

// ServerCart is the authoritative cart as returned by the backend
type ServerCart struct {
	Lines          []CartLine
	TotalQuantity  int
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

// CartUpdate is a partial update of one server cart line
type CartUpdate struct {
	LineID   LineID
	Quantity *int
	Selected *bool
}

// MergeItem is one guest-cart line pushed into the server cart on login
type MergeItem struct {
	ProductID ProductID `json:"commodityId"`
	Quantity  int       `json:"quantity"`
}

func cloneLines(lines []CartLine) []CartLine {
	out := make([]CartLine, len(lines))
	for i, l := range lines {
		if l.StockLimit != nil {
			limit := *l.StockLimit
			l.StockLimit = &limit
		}
		out[i] = l
	}
	return out
}
