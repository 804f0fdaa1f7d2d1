package orders

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Snapshot is the product state captured at order time. It is written once
// and never refreshed from the live catalog, even if the product changes.
type Snapshot struct {
	SKU            string `bson:"sku" json:"sku"`
	Name           string `bson:"name" json:"name"`
	Price          int64  `bson:"price" json:"price"`
	Category       string `bson:"category" json:"category"`
	Image          string `bson:"image" json:"image"`
	InstructorName string `bson:"instructorName,omitempty" json:"instructorName,omitempty"`
}

type OrderItem struct {
	Product         primitive.ObjectID `bson:"product" json:"product"`
	ProductSnapshot Snapshot           `bson:"productSnapshot" json:"productSnapshot"`
	Quantity        int                `bson:"quantity" json:"quantity"`
	LineTotal       int64              `bson:"lineTotal" json:"lineTotal"`
}

type Payment struct {
	Provider      string     `bson:"provider,omitempty" json:"provider,omitempty"`
	Method        string     `bson:"method" json:"method"`
	MerchantUID   string     `bson:"merchantUid,omitempty" json:"merchantUid,omitempty"`
	TransactionID string     `bson:"transactionId" json:"transactionId"`
	PaidAt        *time.Time `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
}

type Order struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	User           primitive.ObjectID `bson:"user" json:"user"`
	CustomerName   string             `bson:"customerName" json:"customerName"`
	CustomerPhone  string             `bson:"customerPhone" json:"customerPhone"`
	Items          []OrderItem        `bson:"items" json:"items"`
	TotalAmount    int64              `bson:"totalAmount" json:"totalAmount"`
	Status         Status             `bson:"status" json:"status"`
	Payment        Payment            `bson:"payment" json:"payment"`
	Note           string             `bson:"note,omitempty" json:"note,omitempty"`
	RefundRequired bool               `bson:"refundRequired,omitempty" json:"refundRequired,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ---- submission types (wire format of POST/PUT /api/orders) ----

// SnapshotInput mirrors Snapshot but keeps price as a pointer so a missing
// field can be told apart from an explicit zero.
type SnapshotInput struct {
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Price          *int64 `json:"price"`
	Category       string `json:"category"`
	Image          string `json:"image"`
	InstructorName string `json:"instructorName"`
}

type ItemInput struct {
	Product         ProductRef     `json:"product"`
	ProductSnapshot *SnapshotInput `json:"productSnapshot"`
	Quantity        *int           `json:"quantity"`
}

type PaymentInput struct {
	Provider      string `json:"provider"`
	Method        string `json:"method"`
	MerchantUID   string `json:"merchantUid"`
	TransactionID string `json:"transactionId"`
}

type CreateRequest struct {
	User          string        `json:"user"`
	CustomerName  string        `json:"customerName"`
	CustomerPhone string        `json:"customerPhone"`
	Payment       *PaymentInput `json:"payment"`
	Items         []ItemInput   `json:"items"`
	Note          string        `json:"note"`
	Status        string        `json:"status"`
}
