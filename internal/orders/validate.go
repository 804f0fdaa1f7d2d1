package orders

import (
	"fmt"
	"strings"
)

// AllowedMethods is the fixed set of payment channels the storefront sells
// through. The Korean labels are the literal wire values.
var AllowedMethods = map[string]bool{
	"카드결제":  true, // card
	"계좌이체":  true, // bank transfer
	"카카오페이": true, // KakaoPay
	"네이버페이": true, // NaverPay
}

// ValidateCreate checks a raw order submission structurally, in a fixed
// order, and returns the first failure found. It is a pure check: nothing is
// normalized or written. The returned message is what the client sees in the
// 400 body.
func ValidateCreate(req *CreateRequest) error {
	if strings.TrimSpace(req.User) == "" {
		return fmt.Errorf("user is required")
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return fmt.Errorf("customerName is required")
	}
	if strings.TrimSpace(req.CustomerPhone) == "" {
		return fmt.Errorf("customerPhone is required")
	}
	if err := ValidatePayment(req.Payment); err != nil {
		return err
	}
	return ValidateItems(req.Items)
}

func ValidatePayment(p *PaymentInput) error {
	if p == nil {
		return fmt.Errorf("payment is required")
	}
	method := strings.TrimSpace(p.Method)
	if method == "" {
		return fmt.Errorf("payment.method is required")
	}
	if !AllowedMethods[method] {
		return fmt.Errorf("unsupported payment method: %s", method)
	}
	if strings.TrimSpace(p.TransactionID) == "" {
		return fmt.Errorf("payment.transactionId is required")
	}
	return nil
}

func ValidateItems(items []ItemInput) error {
	if len(items) == 0 {
		return fmt.Errorf("at least one order item is required")
	}
	for i, item := range items {
		if item.Product.IsZero() {
			return fmt.Errorf("items[%d].product is required", i)
		}
		if item.ProductSnapshot == nil {
			return fmt.Errorf("items[%d].productSnapshot is required", i)
		}
		if err := validateSnapshot(i, item.ProductSnapshot); err != nil {
			return err
		}
		if item.Quantity == nil {
			return fmt.Errorf("items[%d].quantity is required", i)
		}
		if *item.Quantity < 1 {
			return fmt.Errorf("items[%d].quantity must be at least 1", i)
		}
	}
	return nil
}

func validateSnapshot(i int, s *SnapshotInput) error {
	if s.SKU == "" {
		return fmt.Errorf("items[%d].productSnapshot.sku is required", i)
	}
	if s.Name == "" {
		return fmt.Errorf("items[%d].productSnapshot.name is required", i)
	}
	if s.Price == nil {
		return fmt.Errorf("items[%d].productSnapshot.price is required", i)
	}
	if s.Category == "" {
		return fmt.Errorf("items[%d].productSnapshot.category is required", i)
	}
	if s.Image == "" {
		return fmt.Errorf("items[%d].productSnapshot.image is required", i)
	}
	return nil
}
