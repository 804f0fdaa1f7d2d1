package orders

import "strings"

// Reconcile turns validated item inputs into persisted order items, computing
// every lineTotal and the grand total server-side. Client-supplied totals are
// never consulted: the snapshot price and quantity are the only inputs, so a
// tampered or stale client total can never reach the store.
func Reconcile(items []ItemInput) ([]OrderItem, int64) {
	out := make([]OrderItem, 0, len(items))
	var total int64
	for _, in := range items {
		qty := *in.Quantity
		price := *in.ProductSnapshot.Price
		lineTotal := price * int64(qty)
		out = append(out, OrderItem{
			Product: in.Product.ObjectID(),
			ProductSnapshot: Snapshot{
				SKU:            strings.TrimSpace(in.ProductSnapshot.SKU),
				Name:           strings.TrimSpace(in.ProductSnapshot.Name),
				Price:          price,
				Category:       strings.TrimSpace(in.ProductSnapshot.Category),
				Image:          strings.TrimSpace(in.ProductSnapshot.Image),
				InstructorName: strings.TrimSpace(in.ProductSnapshot.InstructorName),
			},
			Quantity:  qty,
			LineTotal: lineTotal,
		})
		total += lineTotal
	}
	return out, total
}
