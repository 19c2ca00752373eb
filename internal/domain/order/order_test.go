package order

import (
	"errors"
	"testing"

	"github.com/minimart/storefront/internal/domain/cart"
)

func TestNewFromCart_FreezesLinesAndTotal(t *testing.T) {
	c := cart.New("user-1")
	_ = c.AddLine("p1", 2, 1000, "Widget")
	_ = c.AddLine("p2", 3, 500, "Gadget")

	o, err := NewFromCart("order-1", c, "")
	if err != nil {
		t.Fatalf("new from cart: %v", err)
	}

	if o.Status != StatusPending {
		t.Errorf("expected pending, got %s", o.Status)
	}
	if o.TotalAmount != 3500 {
		t.Errorf("expected total 3500, got %d", o.TotalAmount)
	}
	if len(o.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(o.Lines))
	}

	// Mutating the cart afterwards must not touch the order snapshot.
	_ = c.SetQuantity("p1", 99)
	if o.Lines[0].Quantity != 2 {
		t.Errorf("order line mutated through cart, quantity now %d", o.Lines[0].Quantity)
	}

	var sum int64
	for _, l := range o.Lines {
		sum += int64(l.Quantity) * l.UnitPrice
	}
	if sum != o.TotalAmount {
		t.Errorf("total %d does not match line sum %d", o.TotalAmount, sum)
	}
}

func TestNewFromCart_EmptyCart(t *testing.T) {
	c := cart.New("user-1")
	if _, err := NewFromCart("order-1", c, ""); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got %v", err)
	}
	if _, err := NewFromCart("order-1", nil, ""); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart for nil cart, got %v", err)
	}
}

func TestStatus_Terminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Error("pending must not be terminal")
	}
	if !StatusCompleted.Terminal() || !StatusCancelled.Terminal() {
		t.Error("completed and cancelled are terminal")
	}
}
