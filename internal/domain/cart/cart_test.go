package cart

import (
	"errors"
	"testing"
)

func TestAddLine_AccumulatesQuantity(t *testing.T) {
	c := New("user-1")

	if err := c.AddLine("p1", 2, 1000, "Widget"); err != nil {
		t.Fatalf("add line: %v", err)
	}
	if err := c.AddLine("p1", 3, 1200, "Widget"); err != nil {
		t.Fatalf("add line again: %v", err)
	}

	if len(c.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(c.Lines))
	}
	if c.Lines[0].Quantity != 5 {
		t.Errorf("expected quantity 5, got %d", c.Lines[0].Quantity)
	}
	// The first snapshot wins; a later add never reprices the line.
	if c.Lines[0].UnitPrice != 1000 {
		t.Errorf("expected unit price 1000, got %d", c.Lines[0].UnitPrice)
	}
}

func TestAddLine_RejectsNonPositiveQuantity(t *testing.T) {
	c := New("user-1")

	for _, qty := range []int{0, -1} {
		if err := c.AddLine("p1", qty, 1000, ""); !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("quantity %d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}
	if !c.IsEmpty() {
		t.Error("cart should remain empty after rejected adds")
	}
}

func TestTotal_SumsLines(t *testing.T) {
	c := New("user-1")
	_ = c.AddLine("p1", 2, 1000, "")
	_ = c.AddLine("p2", 1, 2500, "")

	if got := c.Total(); got != 4500 {
		t.Errorf("expected total 4500, got %d", got)
	}

	_ = c.RemoveLine("p2")
	if got := c.Total(); got != 2000 {
		t.Errorf("expected total 2000 after removal, got %d", got)
	}
}

func TestSetQuantity_ZeroRemovesLine(t *testing.T) {
	c := New("user-1")
	_ = c.AddLine("p1", 2, 1000, "")
	_ = c.AddLine("p2", 1, 500, "")

	if err := c.SetQuantity("p1", 0); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if len(c.Lines) != 1 || c.Lines[0].ProductID != "p2" {
		t.Errorf("expected only p2 to remain, got %+v", c.Lines)
	}

	if err := c.SetQuantity("p2", 7); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if c.Lines[0].Quantity != 7 {
		t.Errorf("expected quantity 7, got %d", c.Lines[0].Quantity)
	}
}

func TestSetQuantity_UnknownLine(t *testing.T) {
	c := New("user-1")
	if err := c.SetQuantity("ghost", 1); !errors.Is(err, ErrLineNotFound) {
		t.Errorf("expected ErrLineNotFound, got %v", err)
	}
}

func TestRemoveLine_UnknownLine(t *testing.T) {
	c := New("user-1")
	if err := c.RemoveLine("ghost"); !errors.Is(err, ErrLineNotFound) {
		t.Errorf("expected ErrLineNotFound, got %v", err)
	}
}

func TestClear_KeepsCartUsable(t *testing.T) {
	c := New("user-1")
	_ = c.AddLine("p1", 2, 1000, "")
	c.Clear()

	if !c.IsEmpty() {
		t.Error("expected empty cart after clear")
	}
	if err := c.AddLine("p1", 1, 900, ""); err != nil {
		t.Fatalf("add after clear: %v", err)
	}
	if c.Total() != 900 {
		t.Errorf("expected total 900, got %d", c.Total())
	}
}
