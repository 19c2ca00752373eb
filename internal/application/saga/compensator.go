package saga

import (
	"context"
	"time"

	"go.uber.org/zap"

	domcatalog "github.com/minimart/storefront/internal/domain/catalog"
	"github.com/minimart/storefront/internal/pkg/logging"
)

const adjustTimeout = 2 * time.Second

// StockItem identifies a confirmed stock decrement that may need to be
// undone.
type StockItem struct {
	ProductID string
	Quantity  int
}

// Recorder is the subset of the metrics store the compensator reports to.
type Recorder interface {
	IncCompensation(trigger string)
	IncReconciliation()
}

// Compensator issues compensating stock increments. There is no shared
// transaction with the catalog store, so an undo is a separate call
// that can itself fail; such failures are logged and counted as
// reconciliation work, never surfaced in place of the original error.
type Compensator struct {
	catalog domcatalog.Reader
	rec     Recorder
}

func NewCompensator(catalog domcatalog.Reader, rec Recorder) *Compensator {
	return &Compensator{
		catalog: catalog,
		rec:     rec,
	}
}

// ReturnStock increments stock for every item. It keeps going past
// individual failures so one broken product does not strand the rest,
// and it detaches from the caller's cancellation: once compensation is
// owed it must be attempted in full.
func (c *Compensator) ReturnStock(ctx context.Context, trigger string, items []StockItem) {
	if len(items) == 0 {
		return
	}
	logger := logging.FromContext(ctx).With(
		zap.String("component", "saga_compensator"),
		zap.String("trigger", trigger),
	)
	base := context.WithoutCancel(ctx)

	for _, item := range items {
		adjustCtx, cancel := context.WithTimeout(base, adjustTimeout)
		err := c.catalog.AdjustStock(adjustCtx, item.ProductID, item.Quantity)
		cancel()
		if err != nil {
			if c.rec != nil {
				c.rec.IncReconciliation()
			}
			logger.Error("stock_compensation_failed",
				zap.String("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
			continue
		}
		if c.rec != nil {
			c.rec.IncCompensation(trigger)
		}
		logger.Info("stock_compensated",
			zap.String("product_id", item.ProductID),
			zap.Int("quantity", item.Quantity),
		)
	}
}
