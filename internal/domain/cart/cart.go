package cart

import (
	"errors"
	"time"
)

var (
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
	ErrLineNotFound    = errors.New("cart: product not in cart")
)

// Line is a single cart entry. UnitPrice is the catalog price captured
// when the line was added; it is never refreshed on later reads.
type Line struct {
	ProductID   string `bson:"product_id"`
	Quantity    int    `bson:"quantity"`
	UnitPrice   int64  `bson:"unit_price"`
	DisplayName string `bson:"display_name"`
}

type Cart struct {
	UserID    string    `bson:"user_id"`
	Lines     []Line    `bson:"lines"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func New(userID string) *Cart {
	return &Cart{
		UserID:    userID,
		UpdatedAt: time.Now().UTC(),
	}
}

// AddLine appends a line, or accumulates quantity when the product is
// already present. The first price snapshot wins for an existing line.
func (c *Cart) AddLine(productID string, quantity int, unitPrice int64, displayName string) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines[i].Quantity += quantity
			c.touch()
			return nil
		}
	}
	c.Lines = append(c.Lines, Line{
		ProductID:   productID,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		DisplayName: displayName,
	})
	c.touch()
	return nil
}

// SetQuantity replaces a line's quantity. A quantity of zero or less
// removes the line: lines never carry a non-positive quantity.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			if quantity <= 0 {
				c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			} else {
				c.Lines[i].Quantity = quantity
			}
			c.touch()
			return nil
		}
	}
	return ErrLineNotFound
}

func (c *Cart) RemoveLine(productID string) error {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			c.touch()
			return nil
		}
	}
	return ErrLineNotFound
}

func (c *Cart) IsEmpty() bool { return len(c.Lines) == 0 }

// Total is always recomputed from the current lines.
func (c *Cart) Total() int64 {
	var total int64
	for _, l := range c.Lines {
		total += int64(l.Quantity) * l.UnitPrice
	}
	return total
}

func (c *Cart) Clear() {
	c.Lines = nil
	c.touch()
}

func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Lines = append([]Line(nil), c.Lines...)
	return &clone
}

func (c *Cart) touch() {
	c.UpdatedAt = time.Now().UTC()
}
