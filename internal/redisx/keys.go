package redisx

import "time"

const (
	// Reservation of a gateway transaction id during order creation:
	// idem:order:txn:{transaction_id} -> order_id (or "pending" while in flight)
	KeyIdemOrderTxn = "idem:order:txn:%s"

	// Cache of a populated order document: order:{order_id} -> JSON
	KeyOrderCache = "order:%s"

	// Dedup for event consumers: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
