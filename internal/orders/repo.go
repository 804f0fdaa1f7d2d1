package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ptshop/ptshop/internal/products"
	"github.com/ptshop/ptshop/internal/users"
)

var (
	ErrNotFound = errors.New("order not found")

	// ErrDuplicateTransaction fires when a second order is submitted with a
	// gateway transaction id that already backs a persisted order, typically
	// a browser retry of the same checkout.
	ErrDuplicateTransaction = errors.New("transaction id already used by another order")

	// ErrStatusConflict means the order's status changed between the guard
	// check and the write, or the requested transition is not allowed from
	// the stored status.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

type Repo struct {
	Coll     *mongo.Collection
	Users    *users.Repo
	Products *products.Repo
}

func NewRepo(db *mongo.Database, ur *users.Repo, pr *products.Repo) *Repo {
	return &Repo{Coll: db.Collection("orders"), Users: ur, Products: pr}
}

// EnsureIndexes installs the uniqueness guard on payment.transactionId. This
// is what makes a double-submit of the same gateway payment fail closed
// instead of producing two orders.
func (r *Repo) EnsureIndexes(ctx context.Context) error {
	_, err := r.Coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "payment.transactionId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	})
	return err
}

// Create inserts a fully verified order. Callers must have run the validator,
// the reconciler and the gateway verifier first; nothing here re-checks
// amounts.
func (r *Repo) Create(ctx context.Context, o *Order) error {
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now
	if o.Status == "" {
		o.Status = StatusPending
	}
	res, err := r.Coll.InsertOne(ctx, o)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateTransaction
		}
		return fmt.Errorf("insert order: %w", err)
	}
	o.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *Repo) FindByID(ctx context.Context, id primitive.ObjectID) (*Order, error) {
	var o Order
	err := r.Coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &o, nil
}

func (r *Repo) All(ctx context.Context) ([]Order, error) {
	return r.find(ctx, bson.M{})
}

func (r *Repo) ByUser(ctx context.Context, user primitive.ObjectID) ([]Order, error) {
	return r.find(ctx, bson.M{"user": user})
}

func (r *Repo) find(ctx context.Context, filter bson.M) ([]Order, error) {
	cur, err := r.Coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer cur.Close(ctx)
	out := []Order{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return out, nil
}

// ApplyUpdate writes a partial update. When expectStatus is non-nil the write
// is guarded on the stored status still matching it, so a transition decided
// against a stale read cannot slip through.
func (r *Repo) ApplyUpdate(ctx context.Context, id primitive.ObjectID, expectStatus *Status, set bson.M) (*Order, error) {
	filter := bson.M{"_id": id}
	if expectStatus != nil {
		filter["status"] = *expectStatus
	}
	set["updatedAt"] = time.Now().UTC()

	var o Order
	err := r.Coll.FindOneAndUpdate(ctx,
		filter,
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&o)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			if expectStatus == nil {
				return nil, ErrNotFound
			}
			// Distinguish a vanished order from a lost status race.
			if _, ferr := r.FindByID(ctx, id); ferr != nil {
				return nil, ErrNotFound
			}
			return nil, ErrStatusConflict
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateTransaction
		}
		return nil, fmt.Errorf("update order: %w", err)
	}
	return &o, nil
}

func (r *Repo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.Coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
