package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	kafkax "github.com/ptshop/ptshop/internal/kafka"
	"github.com/ptshop/ptshop/internal/orders"
	"github.com/ptshop/ptshop/internal/portone"
	"github.com/ptshop/ptshop/internal/redisx"
)

// OrderStore is the slice of the order repository the handler needs; the
// Mongo-backed orders.Repo satisfies it.
type OrderStore interface {
	Create(ctx context.Context, o *orders.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*orders.Order, error)
	All(ctx context.Context) ([]orders.Order, error)
	ByUser(ctx context.Context, user primitive.ObjectID) ([]orders.Order, error)
	ApplyUpdate(ctx context.Context, id primitive.ObjectID, expectStatus *orders.Status, set bson.M) (*orders.Order, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	Populate(ctx context.Context, list []orders.Order) ([]orders.View, error)
}

// PaymentVerifier is the gateway check; portone.Client satisfies it.
type PaymentVerifier interface {
	Verify(ctx context.Context, impUID string, expectedAmount int64) (*portone.Payment, error)
}

// Publisher is the event sink; kafkax.Producer satisfies it.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type OrdersHandler struct {
	Repo          OrderStore
	Verifier      PaymentVerifier
	CreatedEvents Publisher     // optional; order.created producer
	StatusEvents  Publisher     // optional; order.status.changed producer
	Redis         *redis.Client // optional
	Auth          *Auth         // optional; admin guard on update/delete
	Service       string
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/api/orders", h.createOrder)
	r.Get("/api/orders", h.listOrders)
	r.Get("/api/orders/user/{userId}", h.listOrdersByUser)
	r.Get("/api/orders/{id}", h.getOrder)
	if h.Auth != nil {
		r.With(h.Auth.RequireAdmin).Put("/api/orders/{id}", h.updateOrder)
		r.With(h.Auth.RequireAdmin).Delete("/api/orders/{id}", h.deleteOrder)
	} else {
		r.Put("/api/orders/{id}", h.updateOrder)
		r.Delete("/api/orders/{id}", h.deleteOrder)
	}
}

// createOrder runs the full pipeline: structural validation, server-side
// price reconciliation, gateway verification, then the insert. Any failure
// before the insert leaves nothing persisted.
func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := orders.ValidateCreate(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.User))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "user is not a valid id")
		return
	}
	status := orders.StatusPending
	if req.Status != "" {
		status = orders.Status(req.Status)
		if !status.Valid() {
			writeMessage(w, http.StatusBadRequest, "unsupported order status: "+req.Status)
			return
		}
	}

	items, total := orders.Reconcile(req.Items)
	txnID := strings.TrimSpace(req.Payment.TransactionID)

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	// Reserve the transaction id before touching the gateway so a concurrent
	// double-submit of the same payment short-circuits here. The unique Mongo
	// index backstops this when Redis is unavailable.
	idemKey := fmt.Sprintf(redisx.KeyIdemOrderTxn, txnID)
	if h.Redis != nil {
		ok, err := h.Redis.SetNX(ctx, idemKey, "pending", redisx.TTLIdempotency).Result()
		if err == nil && !ok {
			writeMessage(w, http.StatusConflict, "this payment was already submitted")
			return
		}
	}
	release := func() {
		if h.Redis != nil {
			_ = h.Redis.Del(context.Background(), idemKey).Err()
		}
	}

	gw, err := h.Verifier.Verify(ctx, txnID, total)
	if err != nil {
		release()
		code, msg := verificationError(err)
		writeMessage(w, code, msg)
		return
	}

	order := &orders.Order{
		User:          userID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Items:         items,
		TotalAmount:   total,
		Status:        status,
		Payment: orders.Payment{
			Provider:      strings.TrimSpace(req.Payment.Provider),
			Method:        strings.TrimSpace(req.Payment.Method),
			MerchantUID:   merchantUID(req.Payment.MerchantUID, gw.MerchantUID),
			TransactionID: txnID,
			PaidAt:        paidAt(gw.PaidAt),
		},
		Note: strings.TrimSpace(req.Note),
	}

	if err := h.Repo.Create(ctx, order); err != nil {
		if errors.Is(err, orders.ErrDuplicateTransaction) {
			writeMessage(w, http.StatusConflict, "this payment was already submitted")
			return
		}
		release()
		log.Printf("create order: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to create order")
		return
	}
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, idemKey, order.ID.Hex(), redisx.TTLIdempotency).Err()
	}

	h.publish(h.CreatedEvents, orders.EventOrderCreated, order.ID.Hex(), r,
		orders.OrderCreatedPayload{
			OrderID:       order.ID.Hex(),
			UserID:        order.User.Hex(),
			TotalAmount:   order.TotalAmount,
			Method:        order.Payment.Method,
			TransactionID: order.Payment.TransactionID,
		})

	views, err := h.Repo.Populate(ctx, []orders.Order{*order})
	if err != nil {
		log.Printf("populate order %s: %v", order.ID.Hex(), err)
		writeJSON(w, http.StatusCreated, order)
		return
	}
	writeJSON(w, http.StatusCreated, views[0])
}

// verificationError maps the gateway error taxonomy onto distinct client
// messages; only missing credentials is the operator's problem.
func verificationError(err error) (int, string) {
	switch {
	case errors.Is(err, portone.ErrCredentialsMissing):
		return http.StatusInternalServerError, "payment verification is not configured"
	case errors.Is(err, portone.ErrAmountMismatch):
		return http.StatusBadRequest, "paid amount does not match the order total"
	case errors.Is(err, portone.ErrNotPaid):
		return http.StatusBadRequest, "payment is not completed"
	case errors.Is(err, portone.ErrTokenExchange):
		return http.StatusBadRequest, "payment gateway authentication failed"
	default:
		return http.StatusBadRequest, "payment verification failed"
	}
}

func merchantUID(submitted, fromGateway string) string {
	if s := strings.TrimSpace(submitted); s != "" {
		return s
	}
	if fromGateway != "" {
		return fromGateway
	}
	return "merchant_" + uuid.NewString()
}

func paidAt(unix int64) *time.Time {
	if unix == 0 {
		return nil
	}
	t := time.Unix(unix, 0).UTC()
	return &t
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Repo.All(ctx)
	if err != nil {
		log.Printf("list orders: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	h.respondPopulated(w, ctx, list)
}

func (h *OrdersHandler) listOrdersByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userId"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Repo.ByUser(ctx, userID)
	if err != nil {
		log.Printf("list orders by user: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	h.respondPopulated(w, ctx, list)
}

func (h *OrdersHandler) respondPopulated(w http.ResponseWriter, ctx context.Context, list []orders.Order) {
	views, err := h.Repo.Populate(ctx, list)
	if err != nil {
		log.Printf("populate orders: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	cacheKey := fmt.Sprintf(redisx.KeyOrderCache, id.Hex())
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, cacheKey).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	order, err := h.Repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("get order: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	views, err := h.Repo.Populate(ctx, []orders.Order{*order})
	if err != nil {
		log.Printf("populate order: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to load order")
		return
	}

	if h.Redis != nil {
		if b, err := json.Marshal(views[0]); err == nil {
			_ = h.Redis.Set(ctx, cacheKey, b, redisx.TTLOrderCache).Err()
		}
	}
	writeJSON(w, http.StatusOK, views[0])
}

// UpdateOrderRequest is a partial update; nil fields are left untouched.
type UpdateOrderRequest struct {
	CustomerName  *string              `json:"customerName"`
	CustomerPhone *string              `json:"customerPhone"`
	Items         []orders.ItemInput   `json:"items"`
	Status        *string              `json:"status"`
	Payment       *orders.PaymentInput `json:"payment"`
	Note          *string              `json:"note"`
}

// updateOrder amends an order. Items changes re-run validation and
// reconciliation, but never the payment verifier: the gateway was consulted
// once at creation and amendments are an administrative action.
func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	set := bson.M{}

	if req.CustomerName != nil {
		name := strings.TrimSpace(*req.CustomerName)
		if name == "" {
			writeMessage(w, http.StatusBadRequest, "customerName is required")
			return
		}
		set["customerName"] = name
	}
	if req.CustomerPhone != nil {
		phone := strings.TrimSpace(*req.CustomerPhone)
		if phone == "" {
			writeMessage(w, http.StatusBadRequest, "customerPhone is required")
			return
		}
		set["customerPhone"] = phone
	}
	if req.Items != nil {
		if err := orders.ValidateItems(req.Items); err != nil {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		items, total := orders.Reconcile(req.Items)
		set["items"] = items
		set["totalAmount"] = total
	}
	if req.Payment != nil {
		if err := orders.ValidatePayment(req.Payment); err != nil {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		set["payment.provider"] = strings.TrimSpace(req.Payment.Provider)
		set["payment.method"] = strings.TrimSpace(req.Payment.Method)
		set["payment.merchantUid"] = strings.TrimSpace(req.Payment.MerchantUID)
		set["payment.transactionId"] = strings.TrimSpace(req.Payment.TransactionID)
	}
	if req.Note != nil {
		set["note"] = strings.TrimSpace(*req.Note)
	}

	// Status transitions are guarded by the state machine: pending may become
	// paid or cancelled, paid may only be cancelled (flagging a refund), and
	// cancelled is terminal.
	var expectStatus *orders.Status
	var statusChange *orders.OrderStatusChangedPayload
	if req.Status != nil {
		to := orders.Status(*req.Status)
		if !to.Valid() {
			writeMessage(w, http.StatusBadRequest, "unsupported order status: "+*req.Status)
			return
		}
		current, err := h.Repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, orders.ErrNotFound) {
				writeMessage(w, http.StatusNotFound, "order not found")
				return
			}
			log.Printf("load order for update: %v", err)
			writeMessage(w, http.StatusInternalServerError, "failed to update order")
			return
		}
		if !orders.CanTransition(current.Status, to) {
			writeMessage(w, http.StatusBadRequest,
				fmt.Sprintf("cannot change order status from %s to %s", current.Status, to))
			return
		}
		if current.Status != to {
			expectStatus = &current.Status
			set["status"] = to
			if orders.RequiresRefund(current.Status, to) {
				set["refundRequired"] = true
			}
			statusChange = &orders.OrderStatusChangedPayload{
				OrderID:        id.Hex(),
				From:           string(current.Status),
				To:             string(to),
				RefundRequired: orders.RequiresRefund(current.Status, to),
			}
		}
	}

	if len(set) == 0 {
		writeMessage(w, http.StatusBadRequest, "no updatable fields in request")
		return
	}

	updated, err := h.Repo.ApplyUpdate(ctx, id, expectStatus, set)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrNotFound):
			writeMessage(w, http.StatusNotFound, "order not found")
		case errors.Is(err, orders.ErrStatusConflict):
			writeMessage(w, http.StatusConflict, "order status changed concurrently, retry")
		case errors.Is(err, orders.ErrDuplicateTransaction):
			writeMessage(w, http.StatusConflict, "this payment is already linked to another order")
		default:
			log.Printf("update order: %v", err)
			writeMessage(w, http.StatusInternalServerError, "failed to update order")
		}
		return
	}
	h.invalidateCache(id)

	if statusChange != nil {
		h.publish(h.StatusEvents, orders.EventOrderStatusChanged, id.Hex(), r, *statusChange)
	}

	views, err := h.Repo.Populate(ctx, []orders.Order{*updated})
	if err != nil {
		log.Printf("populate order: %v", err)
		writeJSON(w, http.StatusOK, updated)
		return
	}
	writeJSON(w, http.StatusOK, views[0])
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid order id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Repo.Delete(ctx, id); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "order not found")
			return
		}
		log.Printf("delete order: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to delete order")
		return
	}
	h.invalidateCache(id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "order deleted"})
}

func (h *OrdersHandler) invalidateCache(id primitive.ObjectID) {
	if h.Redis == nil {
		return
	}
	_ = h.Redis.Del(context.Background(), fmt.Sprintf(redisx.KeyOrderCache, id.Hex())).Err()
}

func (h *OrdersHandler) publish(p Publisher, eventType, orderID string, r *http.Request, payload any) {
	if p == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: orderID,
	}
	ev.Payload = kafkax.MustMarshal(payload)
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
