package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Abu-doc/Cart/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const cartItemsCollection = "cart_items"

type lineItemDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	CartID    string             `bson:"cart_id"`
	ProductID string             `bson:"product_id"`
	Qty       int64              `bson:"qty"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (d lineItemDocument) toDomain() domain.LineItem {
	return domain.LineItem{
		ID:        d.ID.Hex(),
		CartID:    d.CartID,
		ProductID: d.ProductID,
		Qty:       d.Qty,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

type mongoRepository struct {
	collection *mongo.Collection
}

// NewMongoRepository stores one document per line item and ensures the
// (cart_id, product_id) unique index that keeps one line per product.
func NewMongoRepository(ctx context.Context, db *mongo.Database) (CartRepository, error) {
	repo := &mongoRepository{
		collection: db.Collection(cartItemsCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// Increment guards the limit inside the filter. When an existing line is too
// full to take delta, the upsert tries to insert a second line for the same
// product and the unique index rejects it; that duplicate key is the limit signal.
func (m *mongoRepository) Increment(ctx context.Context, cartID, productID string, delta int64) (domain.LineItem, error) {
	if delta > domain.MaxQty {
		return domain.LineItem{}, domain.ErrQtyLimit
	}

	filter := bson.M{
		"cart_id":    cartID,
		"product_id": productID,
		"qty":        bson.M{"$lte": domain.MaxQty - delta},
	}
	update := bson.M{
		"$inc":         bson.M{"qty": delta},
		"$setOnInsert": bson.M{"created_at": time.Now().UTC()},
	}

	doc, err := m.findAndIncrement(ctx, filter, update, delta > 0)
	if mongo.IsDuplicateKeyError(err) {
		// A concurrent first add may have raced our insert; retry against the stored line.
		doc, err = m.findAndIncrement(ctx, filter, update, false)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.LineItem{}, domain.ErrQtyLimit
		}
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.LineItem{}, domain.ErrItemNotFound
		}
		return domain.LineItem{}, domain.NewStoreError("increment", err)
	}

	return doc.toDomain(), nil
}

func (m *mongoRepository) findAndIncrement(ctx context.Context, filter, update bson.M, upsert bool) (lineItemDocument, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(upsert).
		SetReturnDocument(options.After)

	var doc lineItemDocument
	err := m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	return doc, err
}

func (m *mongoRepository) DeleteIfNonPositive(ctx context.Context, cartID, itemID string) (bool, error) {
	return m.deleteOne(ctx, cartID, itemID, bson.M{"qty": bson.M{"$lte": 0}})
}

func (m *mongoRepository) Delete(ctx context.Context, cartID, itemID string) (bool, error) {
	return m.deleteOne(ctx, cartID, itemID, nil)
}

func (m *mongoRepository) deleteOne(ctx context.Context, cartID, itemID string, extra bson.M) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(itemID)
	if err != nil {
		// not an id this store could have issued
		return false, nil
	}

	filter := bson.M{"_id": oid, "cart_id": cartID}
	for k, v := range extra {
		filter[k] = v
	}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return false, domain.NewStoreError("delete", err)
	}
	return result.DeletedCount > 0, nil
}

func (m *mongoRepository) FindByProduct(ctx context.Context, cartID, productID string) (domain.LineItem, error) {
	var doc lineItemDocument
	err := m.collection.FindOne(ctx, bson.M{"cart_id": cartID, "product_id": productID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.LineItem{}, domain.ErrItemNotFound
		}
		return domain.LineItem{}, domain.NewStoreError("find", err)
	}
	return doc.toDomain(), nil
}

func (m *mongoRepository) List(ctx context.Context, cartID string) ([]domain.LineItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := m.collection.Find(ctx, bson.M{"cart_id": cartID}, opts)
	if err != nil {
		return nil, domain.NewStoreError("list", err)
	}
	defer cursor.Close(ctx)

	var docs []lineItemDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, domain.NewStoreError("list", err)
	}

	items := make([]domain.LineItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.toDomain())
	}
	return items, nil
}

func (m *mongoRepository) Clear(ctx context.Context, cartID string) (int64, error) {
	result, err := m.collection.DeleteMany(ctx, bson.M{"cart_id": cartID})
	if err != nil {
		return 0, domain.NewStoreError("clear", err)
	}
	return result.DeletedCount, nil
}

func (m *mongoRepository) createIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "cart_id", Value: 1}, {Key: "product_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "cart_id", Value: 1}, {Key: "created_at", Value: 1}},
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
