package orders

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ptshop/ptshop/internal/products"
	"github.com/ptshop/ptshop/internal/users"
)

// ItemView is an order item with its product reference expanded.
type ItemView struct {
	Product         *products.Product `json:"product"`
	ProductSnapshot Snapshot          `json:"productSnapshot"`
	Quantity        int               `json:"quantity"`
	LineTotal       int64             `json:"lineTotal"`
}

// View is the API shape of an order: user and items[].product are expanded
// documents, everything else comes straight from the stored order. A product
// deleted from the catalog after purchase expands to null; the snapshot still
// carries everything the client needs to render the line.
type View struct {
	ID             primitive.ObjectID `json:"_id"`
	User           *users.User        `json:"user"`
	CustomerName   string             `json:"customerName"`
	CustomerPhone  string             `json:"customerPhone"`
	Items          []ItemView         `json:"items"`
	TotalAmount    int64              `json:"totalAmount"`
	Status         Status             `json:"status"`
	Payment        Payment            `json:"payment"`
	Note           string             `json:"note,omitempty"`
	RefundRequired bool               `json:"refundRequired,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// Populate expands user and product references for a batch of orders with one
// lookup per collection.
func (r *Repo) Populate(ctx context.Context, list []Order) ([]View, error) {
	userIDs := make([]primitive.ObjectID, 0, len(list))
	productIDs := make([]primitive.ObjectID, 0)
	seenUser := map[primitive.ObjectID]bool{}
	seenProduct := map[primitive.ObjectID]bool{}
	for _, o := range list {
		if !seenUser[o.User] {
			seenUser[o.User] = true
			userIDs = append(userIDs, o.User)
		}
		for _, it := range o.Items {
			if !seenProduct[it.Product] {
				seenProduct[it.Product] = true
				productIDs = append(productIDs, it.Product)
			}
		}
	}

	usersByID, err := r.Users.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	productsByID, err := r.Products.FindByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(list))
	for _, o := range list {
		items := make([]ItemView, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, ItemView{
				Product:         productsByID[it.Product],
				ProductSnapshot: it.ProductSnapshot,
				Quantity:        it.Quantity,
				LineTotal:       it.LineTotal,
			})
		}
		views = append(views, View{
			ID:             o.ID,
			User:           usersByID[o.User],
			CustomerName:   o.CustomerName,
			CustomerPhone:  o.CustomerPhone,
			Items:          items,
			TotalAmount:    o.TotalAmount,
			Status:         o.Status,
			Payment:        o.Payment,
			Note:           o.Note,
			RefundRequired: o.RefundRequired,
			CreatedAt:      o.CreatedAt,
			UpdatedAt:      o.UpdatedAt,
		})
	}
	return views, nil
}
