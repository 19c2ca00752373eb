package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/minimart/storefront/internal/application/saga"
	domcart "github.com/minimart/storefront/internal/domain/cart"
	domcatalog "github.com/minimart/storefront/internal/domain/catalog"
	domorder "github.com/minimart/storefront/internal/domain/order"
	"github.com/minimart/storefront/internal/pkg/logging"
	"github.com/minimart/storefront/internal/pkg/metrics"
)

const (
	useCaseCreate = "order.create"
	useCaseCancel = "order.cancel"

	catalogTimeout = 2 * time.Second

	triggerCreateFailed = "create_failed"
	triggerCancel       = "cancel"
)

var tracer trace.Tracer = otel.Tracer("storefront/order")

type IDGenerator interface {
	NewID() string
}

// Service converts carts into orders and owns order state transitions.
// Stock is decremented eagerly at creation; every path that fails after
// a confirmed decrement owes a compensating increment, because the
// catalog store shares no transaction with the order store.
type Service struct {
	orders      domorder.Repository
	carts       domcart.Repository
	catalog     domcatalog.Reader
	idGenerator IDGenerator
	compensator *saga.Compensator
	metrics     *metrics.Store
}

func NewService(
	orders domorder.Repository,
	carts domcart.Repository,
	catalog domcatalog.Reader,
	idGen IDGenerator,
	m *metrics.Store,
) *Service {
	return &Service{
		orders:      orders,
		carts:       carts,
		catalog:     catalog,
		idGenerator: idGen,
		compensator: saga.NewCompensator(catalog, m),
		metrics:     m,
	}
}

// Create turns the user's cart into a pending order. The cart's price
// snapshots are trusted; availability is re-checked against the live
// catalog and then reserved with atomic conditional decrements. On a
// mid-flight failure every confirmed decrement is compensated before
// the error is surfaced, so a failed creation leaves net stock
// unchanged.
func (s *Service) Create(ctx context.Context, userID, idempotencyKey string) (_ *domorder.Order, err error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "order_service"),
		zap.String("use_case", useCaseCreate),
		zap.String("user_id", userID),
	)

	ctx, span := tracer.Start(ctx, "UC.CreateOrder")
	span.SetAttributes(attribute.String("order.user_id", userID))
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
		s.metrics.IncRequest(useCaseCreate, outcome)
		s.metrics.ObserveDuration(useCaseCreate, time.Since(start).Seconds())
	}()

	if userID == "" {
		return nil, fmt.Errorf("order: user id is required")
	}

	if idempotencyKey != "" {
		existing, lookupErr := s.orders.FindByIdempotency(ctx, userID, idempotencyKey)
		switch {
		case lookupErr == nil:
			logger.Info("order_idempotent_replay", zap.String("order_id", existing.ID))
			return existing, nil
		case errors.Is(lookupErr, domorder.ErrNotFound):
			// first attempt
		default:
			return nil, fmt.Errorf("order: idempotency lookup: %w", lookupErr)
		}
	}

	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("order: load cart: %w", err)
	}
	if c.IsEmpty() {
		return nil, domorder.ErrEmptyCart
	}

	// Availability pre-check. Price stays the cart-time snapshot; only
	// existence and stock are taken from the live catalog.
	for _, line := range c.Lines {
		product, perr := s.getProduct(ctx, line.ProductID)
		if perr != nil {
			if errors.Is(perr, domcatalog.ErrNotFound) {
				return nil, fmt.Errorf("%w: product %s", domcatalog.ErrInsufficientStock, line.ProductID)
			}
			logger.Error("catalog_precheck_failed",
				zap.String("product_id", line.ProductID),
				zap.Error(perr),
			)
			return nil, perr
		}
		if product.Stock < line.Quantity {
			return nil, fmt.Errorf("%w: product %s", domcatalog.ErrInsufficientStock, line.ProductID)
		}
	}

	confirmed, err := s.reserveStock(ctx, logger, c.Lines)
	if err != nil {
		s.compensator.ReturnStock(ctx, triggerCreateFailed, confirmed)
		return nil, err
	}

	orderID := s.idGenerator.NewID()
	entity, err := domorder.NewFromCart(orderID, c, idempotencyKey)
	if err != nil {
		s.compensator.ReturnStock(ctx, triggerCreateFailed, confirmed)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("order.id", orderID),
		attribute.Int64("order.total_amount", entity.TotalAmount),
	)

	if err := s.orders.Insert(ctx, entity); err != nil {
		if errors.Is(err, domorder.ErrConflict) && idempotencyKey != "" {
			// Lost a race against a concurrent retry carrying the same
			// key. That attempt owns its own reservation, so ours is
			// returned before replaying its order.
			s.compensator.ReturnStock(ctx, triggerCreateFailed, confirmed)
			if existing, lookupErr := s.orders.FindByIdempotency(ctx, userID, idempotencyKey); lookupErr == nil {
				logger.Info("order_idempotent_replay", zap.String("order_id", existing.ID))
				return existing, nil
			}
		} else {
			s.compensator.ReturnStock(ctx, triggerCreateFailed, confirmed)
		}
		return nil, fmt.Errorf("order: insert: %w", err)
	}

	if err := s.carts.Clear(ctx, userID); err != nil {
		// The order exists; a lingering cart is an annoyance, not a
		// consistency break.
		logger.Warn("cart_clear_failed", zap.String("order_id", orderID), zap.Error(err))
	}

	logger.Info("order_created",
		zap.String("order_id", orderID),
		zap.Int64("total_amount", entity.TotalAmount),
		zap.Int("line_count", len(entity.Lines)),
	)
	return entity, nil
}

// reserveStock decrements stock line by line and reports which
// decrements are confirmed. On a definitive rejection it returns
// ErrInsufficientStock; on an ambiguous failure (timeout or transport
// error) the affected line is excluded from the confirmed set, flagged
// for reconciliation, and ErrUnavailable is returned.
func (s *Service) reserveStock(ctx context.Context, logger *zap.Logger, lines []domcart.Line) ([]saga.StockItem, error) {
	confirmed := make([]saga.StockItem, 0, len(lines))
	for _, line := range lines {
		err := s.adjustStock(ctx, line.ProductID, -line.Quantity)
		if err == nil {
			confirmed = append(confirmed, saga.StockItem{ProductID: line.ProductID, Quantity: line.Quantity})
			continue
		}
		if errors.Is(err, domcatalog.ErrInsufficientStock) || errors.Is(err, domcatalog.ErrNotFound) {
			return confirmed, fmt.Errorf("%w: product %s", domcatalog.ErrInsufficientStock, line.ProductID)
		}
		// The decrement may or may not have been applied remotely.
		// Assume it was not confirmed, leave it out of the undo set and
		// record it for reconciliation instead of risking a double
		// increment.
		s.metrics.IncReconciliation()
		logger.Error("stock_decrement_unconfirmed",
			zap.String("product_id", line.ProductID),
			zap.Int("quantity", line.Quantity),
			zap.Error(err),
		)
		return confirmed, fmt.Errorf("%w: stock decrement for product %s unconfirmed: %w", domcatalog.ErrUnavailable, line.ProductID, err)
	}
	return confirmed, nil
}

func (s *Service) Get(ctx context.Context, userID, orderID string) (*domorder.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domorder.ErrNotFound
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]*domorder.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// Cancel transitions a pending order to cancelled and returns its
// reserved stock. The conditional transition is the serialization
// point: of two racing cancel/settle attempts only one passes, so the
// stock is returned exactly once.
func (s *Service) Cancel(ctx context.Context, userID, orderID string) (_ *domorder.Order, err error) {
	logger := logging.FromContext(ctx).With(
		zap.String("component", "order_service"),
		zap.String("use_case", useCaseCancel),
		zap.String("order_id", orderID),
	)

	ctx, span := tracer.Start(ctx, "UC.CancelOrder")
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
		s.metrics.IncRequest(useCaseCancel, outcome)
		s.metrics.ObserveDuration(useCaseCancel, time.Since(start).Seconds())
	}()

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domorder.ErrNotFound
	}

	if err := s.orders.Transition(ctx, orderID, domorder.StatusPending, domorder.StatusCancelled, ""); err != nil {
		return nil, err
	}

	items := make([]saga.StockItem, 0, len(o.Lines))
	for _, line := range o.Lines {
		items = append(items, saga.StockItem{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	s.compensator.ReturnStock(ctx, triggerCancel, items)

	logger.Info("order_cancelled", zap.String("user_id", userID))

	o.Status = domorder.StatusCancelled
	o.UpdatedAt = time.Now().UTC()
	return o, nil
}

// ReturnStockFor mirrors cancellation's compensation for callers that
// settle payments: a failed settlement releases the order's inventory.
func (s *Service) ReturnStockFor(ctx context.Context, o *domorder.Order, trigger string) {
	items := make([]saga.StockItem, 0, len(o.Lines))
	for _, line := range o.Lines {
		items = append(items, saga.StockItem{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	s.compensator.ReturnStock(ctx, trigger, items)
}

func (s *Service) getProduct(ctx context.Context, productID string) (*domcatalog.Product, error) {
	callCtx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()
	p, err := s.catalog.GetProduct(callCtx, productID)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %w", domcatalog.ErrUnavailable, err)
	}
	return p, err
}

func (s *Service) adjustStock(ctx context.Context, productID string, delta int) error {
	callCtx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()
	return s.catalog.AdjustStock(callCtx, productID, delta)
}
