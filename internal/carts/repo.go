package carts

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
	ErrNotFound      = errors.New("cart not found")
	ErrAlreadyExists = errors.New("cart already exists for user")
)

type Repo struct {
	Coll *mongo.Collection
}

func NewRepo(db *mongo.Database) *Repo {
	return &Repo{Coll: db.Collection("carts")}
}

func (r *Repo) EnsureIndexes(ctx context.Context) error {
	_, err := r.Coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *Repo) Create(ctx context.Context, c *Cart) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Items == nil {
		c.Items = []CartItem{}
	}
	res, err := r.Coll.InsertOne(ctx, c)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert cart: %w", err)
	}
	c.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *Repo) All(ctx context.Context) ([]Cart, error) {
	cur, err := r.Coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list carts: %w", err)
	}
	defer cur.Close(ctx)
	out := []Cart{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode carts: %w", err)
	}
	return out, nil
}

func (r *Repo) FindByID(ctx context.Context, id primitive.ObjectID) (*Cart, error) {
	var c Cart
	err := r.Coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find cart: %w", err)
	}
	return &c, nil
}

func (r *Repo) FindByUser(ctx context.Context, user primitive.ObjectID) (*Cart, error) {
	var c Cart
	err := r.Coll.FindOne(ctx, bson.M{"user": user}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find cart by user: %w", err)
	}
	return &c, nil
}

// ReplaceItems overwrites the cart's line items wholesale, which is how the
// storefront client syncs local cart state.
func (r *Repo) ReplaceItems(ctx context.Context, id primitive.ObjectID, items []CartItem) (*Cart, error) {
	if items == nil {
		items = []CartItem{}
	}
	var c Cart
	err := r.Coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"items": items, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update cart: %w", err)
	}
	return &c, nil
}

func (r *Repo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.Coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
