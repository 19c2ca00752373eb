package payment

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("payment: not found")
	ErrConflict      = errors.New("payment: order already has a payment")
	ErrInvalidMethod = errors.New("payment: unsupported payment method")
)

type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Method string

const (
	MethodCreditCard Method = "credit_card"
	MethodDebitCard  Method = "debit_card"
	MethodPayPal     Method = "paypal"
)

func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodCreditCard, MethodDebitCard, MethodPayPal:
		return Method(s), nil
	default:
		return "", ErrInvalidMethod
	}
}

// Payment is the settlement record for an order. At most one exists per
// order and it is immutable once written.
type Payment struct {
	ID            string
	OrderID       string
	UserID        string
	Amount        int64
	Method        Method
	Status        Status
	TransactionID string
	ProcessedAt   time.Time
	CreatedAt     time.Time
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}
