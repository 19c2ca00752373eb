package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/minimart/storefront/internal/domain/cart"
)

// CartRepository keeps one document per user in the carts collection.
type CartRepository struct {
	collection *mongo.Collection
}

func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{collection: db.Collection("carts")}
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	var c domain.Cart
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.New(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return &c, nil
}

func (r *CartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	if cart == nil || cart.UserID == "" {
		return nil
	}
	cart.UpdatedAt = time.Now().UTC()

	filter := bson.M{"user_id": cart.UserID}
	update := bson.M{"$set": cart}
	opts := options.Update().SetUpsert(true)

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("upsert cart: %w", err)
	}
	return nil
}

// Clear empties the lines but keeps the document, so the user's cart
// identity survives order creation.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	update := bson.M{"$set": bson.M{
		"lines":      []domain.Line{},
		"updated_at": time.Now().UTC(),
	}}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (r *CartRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create cart indexes: %w", err)
	}
	return nil
}
