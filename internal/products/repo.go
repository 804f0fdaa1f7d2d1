package products

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound     = errors.New("product not found")
	ErrDuplicateSKU = errors.New("sku already exists")
)

type Repo struct {
	Coll *mongo.Collection
}

func NewRepo(db *mongo.Database) *Repo {
	return &Repo{Coll: db.Collection("products")}
}

func (r *Repo) EnsureIndexes(ctx context.Context) error {
	_, err := r.Coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sku", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *Repo) Create(ctx context.Context, p *Product) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	res, err := r.Coll.InsertOne(ctx, p)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateSKU
		}
		return fmt.Errorf("insert product: %w", err)
	}
	p.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// List returns one catalog page. Page numbers start at 1; the page size is
// clamped to [1, 50] with a default of 5, matching the storefront UI.
func (r *Repo) List(ctx context.Context, page, limit int) (*Page, error) {
	page, limit = clampPage(page, limit)

	total, err := r.Coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	skip := int64((page - 1) * limit)
	cur, err := r.Coll.Find(ctx, bson.M{}, options.Find().SetSkip(skip).SetLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer cur.Close(ctx)

	items := make([]Product, 0, limit)
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	totalPages := (total + int64(limit) - 1) / int64(limit)
	return &Page{Items: items, Page: page, PageSize: limit, Total: total, TotalPages: totalPages}, nil
}

func (r *Repo) FindByID(ctx context.Context, id primitive.ObjectID) (*Product, error) {
	var p Product
	err := r.Coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find product: %w", err)
	}
	return &p, nil
}

// FindByIDs batch-loads products for reference expansion on order reads.
func (r *Repo) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*Product, error) {
	out := make(map[primitive.ObjectID]*Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := r.Coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var p Product
		if err := cur.Decode(&p); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
		out[p.ID] = &p
	}
	return out, cur.Err()
}

func (r *Repo) Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*Product, error) {
	set["updatedAt"] = time.Now().UTC()
	var p Product
	err := r.Coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return &p, nil
}

func (r *Repo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.Coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
