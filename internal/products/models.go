package products

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	SKU            string             `bson:"sku" json:"sku"`
	Name           string             `bson:"name" json:"name"`
	Price          int64              `bson:"price" json:"price"`
	Category       string             `bson:"category" json:"category"`
	Image          string             `bson:"image" json:"image"`
	InstructorName string             `bson:"instructorName,omitempty" json:"instructorName,omitempty"`
	Description    string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Page is the paginated list shape returned by GET /api/products.
type Page struct {
	Items      []Product `json:"items"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	Total      int64     `json:"total"`
	TotalPages int64     `json:"totalPages"`
}
