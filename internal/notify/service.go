// Package notify consumes order lifecycle events and emits customer-facing
// notifications. The current sink is the log; the consumer, dedup and
// decoding are the real shape a mail/SMS integration would plug into.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ptshop/ptshop/internal/kafka"
	"github.com/ptshop/ptshop/internal/orders"
	"github.com/ptshop/ptshop/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleEvent is installed as the consumer handler for both order topics.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// Redis dedup on event id: redeliveries after a crashed commit are
	// expected and must not notify twice.
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}
	if err := s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err(); err != nil {
		return err
	}

	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		log.Printf("notify: order %s confirmed for user %s, %d KRW via %s",
			p.OrderID, p.UserID, p.TotalAmount, p.Method)
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		if p.RefundRequired {
			log.Printf("notify: order %s cancelled after payment, refund required", p.OrderID)
			return nil
		}
		log.Printf("notify: order %s moved %s -> %s", p.OrderID, p.From, p.To)
	default:
		// other event types are not ours to handle
	}
	return nil
}
