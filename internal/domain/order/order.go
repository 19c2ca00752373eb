package order

import (
	"errors"
	"time"

	"github.com/minimart/storefront/internal/domain/cart"
)

var (
	ErrNotFound     = errors.New("order: not found")
	ErrConflict     = errors.New("order: conflict")
	ErrInvalidState = errors.New("order: operation not allowed in current status")
	ErrEmptyCart    = errors.New("order: cart is empty")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition may leave the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Line is a frozen order item. Quantity and UnitPrice are copied from
// the cart at order time and never change afterwards.
type Line struct {
	ProductID   string
	Quantity    int
	UnitPrice   int64
	DisplayName string
}

type Order struct {
	ID             string
	UserID         string
	IdempotencyKey string
	Lines          []Line
	TotalAmount    int64
	Status         Status
	PaymentID      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewFromCart freezes the cart's lines and total into a pending order.
// Later catalog price changes never affect the snapshot.
func NewFromCart(id string, c *cart.Cart, idempotencyKey string) (*Order, error) {
	if c == nil || c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	lines := make([]Line, 0, len(c.Lines))
	var total int64
	for _, l := range c.Lines {
		lines = append(lines, Line{
			ProductID:   l.ProductID,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			DisplayName: l.DisplayName,
		})
		total += int64(l.Quantity) * l.UnitPrice
	}

	now := time.Now().UTC()
	return &Order{
		ID:             id,
		UserID:         c.UserID,
		IdempotencyKey: idempotencyKey,
		Lines:          lines,
		TotalAmount:    total,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Lines = append([]Line(nil), o.Lines...)
	return &clone
}
