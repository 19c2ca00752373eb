package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	domain "github.com/minimart/storefront/internal/domain/catalog"
)

const productKeyPrefix = "product:"

// decrementStockScript checks and decrements the stock field in one
// atomic script, which is what keeps concurrent order creation from
// overselling. Returns 1 on success, 0 on insufficient stock, -1 when
// the product hash does not exist.
var decrementStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local stock = redis.call('HGET', key, 'stock')
if not stock then
	return -1
end

stock = tonumber(stock)
if stock >= quantity then
	redis.call('HINCRBY', key, 'stock', -quantity)
	return 1
end

return 0
`)

// RedisReader reads products from Redis hashes. One hash per product
// with name, price (cents) and stock fields.
type RedisReader struct {
	client *redis.Client
}

func NewRedisReader(client *redis.Client) *RedisReader {
	return &RedisReader{client: client}
}

func (r *RedisReader) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	fields, err := r.client.HGetAll(ctx, productKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}

	price, err := strconv.ParseInt(fields["price"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse price for %s: %w", id, err)
	}
	stock, err := strconv.Atoi(fields["stock"])
	if err != nil {
		return nil, fmt.Errorf("catalog: parse stock for %s: %w", id, err)
	}

	return &domain.Product{
		ID:    id,
		Name:  fields["name"],
		Price: price,
		Stock: stock,
	}, nil
}

func (r *RedisReader) AdjustStock(ctx context.Context, id string, delta int) error {
	key := productKeyPrefix + id

	if delta < 0 {
		result, err := decrementStockScript.Run(ctx, r.client, []string{key}, -delta).Int()
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
		}
		switch result {
		case 1:
			return nil
		case -1:
			return domain.ErrNotFound
		default:
			return domain.ErrInsufficientStock
		}
	}

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}
	if exists == 0 {
		return domain.ErrNotFound
	}
	if err := r.client.HIncrBy(ctx, key, "stock", int64(delta)).Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
	}
	return nil
}

// SeedProduct writes the full product hash, mainly for bootstrap and tests.
func (r *RedisReader) SeedProduct(ctx context.Context, p domain.Product) error {
	return r.client.HSet(ctx, productKeyPrefix+p.ID,
		"name", p.Name,
		"price", p.Price,
		"stock", p.Stock,
	).Err()
}
