package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	domorder "github.com/minimart/storefront/internal/domain/order"
	dompayment "github.com/minimart/storefront/internal/domain/payment"
	"github.com/minimart/storefront/internal/pkg/logging"
	"github.com/minimart/storefront/internal/pkg/metrics"
)

const (
	useCaseProcess = "payment.process"

	// DefaultSuccessRate is the simulated settlement success
	// probability when the deployment does not override it.
	DefaultSuccessRate = 0.9

	triggerPaymentFailed = "payment_failed"
)

var tracer trace.Tracer = otel.Tracer("storefront/payment")

type IDGenerator interface {
	NewID() string
}

// StockReleaser returns an order's reserved inventory; a failed
// settlement mirrors cancellation's compensation.
type StockReleaser interface {
	ReturnStockFor(ctx context.Context, o *domorder.Order, trigger string)
}

// Service settles pending orders against a simulated payment network.
// The outcome is a weighted random draw, not a gateway integration.
type Service struct {
	orders      domorder.Repository
	payments    dompayment.Repository
	releaser    StockReleaser
	idGenerator IDGenerator
	metrics     *metrics.Store

	mu          sync.Mutex
	random      *rand.Rand
	successRate float64
}

func NewService(
	orders domorder.Repository,
	payments dompayment.Repository,
	releaser StockReleaser,
	idGen IDGenerator,
	successRate float64,
	m *metrics.Store,
) *Service {
	if successRate < 0 {
		successRate = 0
	}
	if successRate > 1 {
		successRate = 1
	}
	return &Service{
		orders:      orders,
		payments:    payments,
		releaser:    releaser,
		idGenerator: idGen,
		metrics:     m,
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
		successRate: successRate,
	}
}

// Process settles a pending order owned by the caller. A declined draw
// is a successful call returning a failed Payment; errors cover only
// structural failures (unknown order, wrong state, duplicate payment).
func (s *Service) Process(ctx context.Context, userID, orderID string, method string, details map[string]any) (_ *dompayment.Payment, err error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "payment_service"),
		zap.String("use_case", useCaseProcess),
		zap.String("order_id", orderID),
	)

	ctx, span := tracer.Start(ctx, "UC.ProcessPayment")
	span.SetAttributes(attribute.String("order.id", orderID))
	if sc := span.SpanContext(); sc.IsValid() {
		logger = logger.With(
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	start := time.Now()
	outcome := "success"
	defer func() {
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		s.metrics.IncRequest(useCaseProcess, outcome)
		s.metrics.ObserveDuration(useCaseProcess, time.Since(start).Seconds())
	}()

	parsedMethod, err := dompayment.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	_ = details // opaque card details; the simulation never inspects them

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domorder.ErrNotFound
	}
	if o.Status != domorder.StatusPending {
		return nil, domorder.ErrInvalidState
	}

	if existing, lookupErr := s.payments.GetByOrder(ctx, orderID); lookupErr == nil && existing != nil {
		return nil, dompayment.ErrConflict
	} else if lookupErr != nil && !errors.Is(lookupErr, dompayment.ErrNotFound) {
		return nil, fmt.Errorf("payment: lookup: %w", lookupErr)
	}

	status := dompayment.StatusFailed
	if s.draw() {
		status = dompayment.StatusCompleted
	}

	now := time.Now().UTC()
	record := &dompayment.Payment{
		ID:            s.idGenerator.NewID(),
		OrderID:       orderID,
		UserID:        userID,
		Amount:        o.TotalAmount,
		Method:        parsedMethod,
		Status:        status,
		TransactionID: s.idGenerator.NewID(),
		ProcessedAt:   now,
		CreatedAt:     now,
	}

	// The unique order_id constraint is the real duplicate guard; the
	// pre-check above only gives the common case a cleaner path.
	if err := s.payments.Insert(ctx, record); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("payment.status", string(status)))

	switch status {
	case dompayment.StatusCompleted:
		if terr := s.orders.Transition(ctx, orderID, domorder.StatusPending, domorder.StatusCompleted, record.ID); terr != nil {
			// Settled against an order that left pending underneath us
			// (a racing cancel). The charge is recorded but the order
			// will not complete; flag it for reconciliation.
			s.metrics.IncReconciliation()
			logger.Error("order_complete_transition_failed", zap.Error(terr))
			return nil, terr
		}
		logger.Info("payment_completed",
			zap.String("payment_id", record.ID),
			zap.Int64("amount", record.Amount),
		)
	default:
		if terr := s.orders.Transition(ctx, orderID, domorder.StatusPending, domorder.StatusCancelled, record.ID); terr != nil {
			s.metrics.IncReconciliation()
			logger.Error("order_cancel_transition_failed", zap.Error(terr))
			return nil, terr
		}
		// A failed settlement releases the reserved inventory.
		s.releaser.ReturnStockFor(ctx, o, triggerPaymentFailed)
		logger.Info("payment_declined",
			zap.String("payment_id", record.ID),
			zap.Int64("amount", record.Amount),
		)
	}

	return record, nil
}

func (s *Service) GetByOrder(ctx context.Context, userID, orderID string) (*dompayment.Payment, error) {
	p, err := s.payments.GetByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, dompayment.ErrNotFound
	}
	return p, nil
}

func (s *Service) draw() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.random.Float64() < s.successRate
}
