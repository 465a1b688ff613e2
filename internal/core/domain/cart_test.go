package domain_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/uniswap-edge/internal/core/domain"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func line(id string, price string, qty int, selected bool) domain.CartLine {
	return domain.CartLine{
		LineID:    domain.LineID(id),
		UnitPrice: decimal.RequireFromString(price),
		Quantity:  qty,
		Selected:  selected,
	}
}

func TestClampQuantity(t *testing.T) {
	three := 3
	zero := 0

	tests := []struct {
		name  string
		q     int
		limit *int
		want  int
	}{
		{name: "within_range", q: 2, limit: &three, want: 2},
		{name: "above_limit", q: 9, limit: &three, want: 3},
		{name: "below_one", q: 0, limit: &three, want: 1},
		{name: "negative", q: -4, limit: nil, want: 1},
		{name: "no_limit", q: 1000, limit: nil, want: 1000},
		{name: "zero_limit_still_one", q: 5, limit: &zero, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.ClampQuantity(tt.q, tt.limit))
		})
	}
}

func TestComputeSnapshot(t *testing.T) {
	tests := []struct {
		name          string
		lines         []domain.CartLine
		wantQty       int
		wantTotal     string
		wantSelQty    int
		wantSelAmount string
		wantAll       bool
	}{
		{
			name:          "empty_cart",
			wantTotal:     "0",
			wantSelAmount: "0",
		},
		{
			name:          "single_line_twice",
			lines:         []domain.CartLine{line("42", "10.00", 2, true)},
			wantQty:       2,
			wantTotal:     "20.00",
			wantSelQty:    2,
			wantSelAmount: "20.00",
			wantAll:       true,
		},
		{
			name: "mixed_selection",
			lines: []domain.CartLine{
				line("a", "0.10", 3, true),
				line("b", "0.20", 1, false),
				line("c", "99.99", 1, true),
			},
			wantQty:       5,
			wantTotal:     "100.49",
			wantSelQty:    4,
			wantSelAmount: "100.29",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := domain.ComputeSnapshot(tt.lines)

			assert.Equal(t, tt.wantQty, s.TotalQuantity)
			assert.True(t, decimal.RequireFromString(tt.wantTotal).Equal(s.TotalAmount), "total %s", s.TotalAmount)
			assert.Equal(t, tt.wantSelQty, s.SelectedCount)
			assert.True(t, decimal.RequireFromString(tt.wantSelAmount).Equal(s.SelectedAmount), "selected %s", s.SelectedAmount)
			assert.True(t, s.DiscountAmount.IsZero())
			assert.True(t, s.FinalAmount.Equal(s.TotalAmount))
			assert.Equal(t, tt.wantAll, s.AllSelected())
		})
	}
}

func TestServerSnapshot_TakesAmountsVerbatim(t *testing.T) {
	cart := domain.ServerCart{
		Lines:          []domain.CartLine{line("a", "10.00", 2, true), line("b", "5.00", 1, false)},
		TotalAmount:    decimal.RequireFromString("25.00"),
		DiscountAmount: decimal.RequireFromString("5.00"),
		FinalAmount:    decimal.RequireFromString("20.00"),
	}

	s := domain.ServerSnapshot(cart)

	assert.Equal(t, 3, s.TotalQuantity)
	assert.Equal(t, 2, s.SelectedCount)
	assert.True(t, decimal.RequireFromString("20.00").Equal(s.SelectedAmount))
	assert.True(t, decimal.RequireFromString("5.00").Equal(s.DiscountAmount))
	assert.True(t, decimal.RequireFromString("20.00").Equal(s.FinalAmount))
	assert.Equal(t, []domain.LineID{"a"}, s.SelectedLineIDs())
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	limit := 4
	l := line("a", "1.00", 1, true)
	l.StockLimit = &limit
	orig := domain.ComputeSnapshot([]domain.CartLine{l})

	c := orig.Clone()
	if diff := cmp.Diff(orig, c, decimalEqual); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}

	c.Lines[0].Quantity = 9
	*c.Lines[0].StockLimit = 1

	assert.Equal(t, 1, orig.Lines[0].Quantity)
	assert.Equal(t, 4, *orig.Lines[0].StockLimit)
}

func TestSnapshot_Line(t *testing.T) {
	s := domain.ComputeSnapshot([]domain.CartLine{line("a", "1.00", 1, true)})

	got, ok := s.Line("a")
	require.True(t, ok)
	assert.Equal(t, 1, got.Quantity)

	_, ok = s.Line("zz")
	assert.False(t, ok)
}
