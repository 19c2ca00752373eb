package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	domcart "github.com/minimart/storefront/internal/domain/cart"
	domcatalog "github.com/minimart/storefront/internal/domain/catalog"
	"github.com/minimart/storefront/internal/pkg/logging"
)

const catalogTimeout = 2 * time.Second

// Service owns the per-user cart. Prices are snapshotted from the
// catalog when a line is added and never refreshed on later reads.
type Service struct {
	carts   domcart.Repository
	catalog domcatalog.Reader
}

func NewService(carts domcart.Repository, catalog domcatalog.Reader) *Service {
	return &Service{
		carts:   carts,
		catalog: catalog,
	}
}

func (s *Service) Get(ctx context.Context, userID string) (*domcart.Cart, error) {
	return s.carts.Get(ctx, userID)
}

func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*domcart.Cart, error) {
	logger := logging.FromContext(ctx).With(zap.String("component", "cart_service"))

	if quantity <= 0 {
		return nil, domcart.ErrInvalidQuantity
	}

	lookupCtx, cancel := context.WithTimeout(ctx, catalogTimeout)
	defer cancel()
	product, err := s.catalog.GetProduct(lookupCtx, productID)
	if err != nil {
		if errors.Is(err, domcatalog.ErrNotFound) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", domcatalog.ErrUnavailable, err)
		}
		logger.Error("catalog_lookup_failed",
			zap.String("product_id", productID),
			zap.Error(err),
		)
		return nil, err
	}

	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cart: load: %w", err)
	}
	if err := c.AddLine(productID, quantity, product.Price, product.Name); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("cart: save: %w", err)
	}

	logger.Info("cart_item_added",
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.Int("quantity", quantity),
		zap.Int64("unit_price", product.Price),
	)
	return c, nil
}

func (s *Service) UpdateItem(ctx context.Context, userID, productID string, quantity int) (*domcart.Cart, error) {
	if quantity <= 0 {
		return nil, domcart.ErrInvalidQuantity
	}

	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cart: load: %w", err)
	}
	if err := c.SetQuantity(productID, quantity); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("cart: save: %w", err)
	}
	return c, nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (*domcart.Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("cart: load: %w", err)
	}
	if err := c.RemoveLine(productID); err != nil {
		return nil, err
	}
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("cart: save: %w", err)
	}
	return c, nil
}
