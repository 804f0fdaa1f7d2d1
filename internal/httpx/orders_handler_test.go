package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ptshop/ptshop/internal/orders"
	"github.com/ptshop/ptshop/internal/portone"
)

// --- fakes ---

type fakeStore struct {
	docs      map[primitive.ObjectID]*orders.Order
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[primitive.ObjectID]*orders.Order{}}
}

func (s *fakeStore) Create(_ context.Context, o *orders.Order) error {
	if s.createErr != nil {
		return s.createErr
	}
	o.ID = primitive.NewObjectID()
	if o.Status == "" {
		o.Status = orders.StatusPending
	}
	cp := *o
	s.docs[o.ID] = &cp
	return nil
}

func (s *fakeStore) FindByID(_ context.Context, id primitive.ObjectID) (*orders.Order, error) {
	o, ok := s.docs[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *fakeStore) All(_ context.Context) ([]orders.Order, error) {
	out := []orders.Order{}
	for _, o := range s.docs {
		out = append(out, *o)
	}
	return out, nil
}

func (s *fakeStore) ByUser(_ context.Context, user primitive.ObjectID) ([]orders.Order, error) {
	out := []orders.Order{}
	for _, o := range s.docs {
		if o.User == user {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *fakeStore) ApplyUpdate(_ context.Context, id primitive.ObjectID, expectStatus *orders.Status, set bson.M) (*orders.Order, error) {
	o, ok := s.docs[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	if expectStatus != nil && o.Status != *expectStatus {
		return nil, orders.ErrStatusConflict
	}
	if v, ok := set["customerName"]; ok {
		o.CustomerName = v.(string)
	}
	if v, ok := set["customerPhone"]; ok {
		o.CustomerPhone = v.(string)
	}
	if v, ok := set["items"]; ok {
		o.Items = v.([]orders.OrderItem)
	}
	if v, ok := set["totalAmount"]; ok {
		o.TotalAmount = v.(int64)
	}
	if v, ok := set["status"]; ok {
		o.Status = v.(orders.Status)
	}
	if v, ok := set["refundRequired"]; ok {
		o.RefundRequired = v.(bool)
	}
	if v, ok := set["note"]; ok {
		o.Note = v.(string)
	}
	cp := *o
	return &cp, nil
}

func (s *fakeStore) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := s.docs[id]; !ok {
		return orders.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

func (s *fakeStore) Populate(_ context.Context, list []orders.Order) ([]orders.View, error) {
	views := make([]orders.View, 0, len(list))
	for _, o := range list {
		items := make([]orders.ItemView, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, orders.ItemView{
				ProductSnapshot: it.ProductSnapshot,
				Quantity:        it.Quantity,
				LineTotal:       it.LineTotal,
			})
		}
		views = append(views, orders.View{
			ID: o.ID, CustomerName: o.CustomerName, CustomerPhone: o.CustomerPhone,
			Items: items, TotalAmount: o.TotalAmount, Status: o.Status,
			Payment: o.Payment, Note: o.Note, RefundRequired: o.RefundRequired,
			CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt,
		})
	}
	return views, nil
}

type fakeVerifier struct {
	payment *portone.Payment
	err     error
	calls   int
	gotUID  string
	gotAmt  int64
}

func (v *fakeVerifier) Verify(_ context.Context, impUID string, amount int64) (*portone.Payment, error) {
	v.calls++
	v.gotUID = impUID
	v.gotAmt = amount
	if v.err != nil {
		return nil, v.err
	}
	p := *v.payment
	return &p, nil
}

func paidPayment(amount int64) *portone.Payment {
	return &portone.Payment{ImpUID: "imp_1", MerchantUID: "merchant_1", Status: "paid", Amount: amount, PaidAt: 1756300000}
}

func newHandler(store *fakeStore, verifier *fakeVerifier) (*OrdersHandler, *chi.Mux) {
	h := &OrdersHandler{Repo: store, Verifier: verifier, Service: "test-api"}
	r := chi.NewRouter()
	h.Register(r)
	return h, r
}

func orderBody(mutate func(map[string]any)) []byte {
	body := map[string]any{
		"user":          primitive.NewObjectID().Hex(),
		"customerName":  "김민수",
		"customerPhone": "010-1234-5678",
		"payment": map[string]any{
			"method":        "카드결제",
			"transactionId": "imp_1",
			"merchantUid":   "merchant_1",
		},
		"items": []map[string]any{
			{
				"product":  primitive.NewObjectID().Hex(),
				"quantity": 2,
				"productSnapshot": map[string]any{
					"sku": "PT-10", "name": "PT 10회권", "price": 100000,
					"category": "pt", "image": "a.jpg",
				},
			},
		},
	}
	if mutate != nil {
		mutate(body)
	}
	b, _ := json.Marshal(body)
	return b
}

func post(r http.Handler, path string, body []byte) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	r.ServeHTTP(rec, req)
	return rec
}

// --- create ---

func TestCreateOrder_Success(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{payment: paidPayment(200000)}
	_, r := newHandler(store, verifier)

	rec := post(r, "/api/orders", orderBody(nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var view orders.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, orders.StatusPending, view.Status)
	assert.Equal(t, int64(200000), view.TotalAmount)
	assert.Equal(t, int64(200000), view.Items[0].LineTotal)
	require.NotNil(t, view.Payment.PaidAt)

	assert.Equal(t, 1, verifier.calls)
	assert.Equal(t, "imp_1", verifier.gotUID)
	assert.Equal(t, int64(200000), verifier.gotAmt)
	assert.Len(t, store.docs, 1)
}

func TestCreateOrder_IgnoresClientTotal(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{payment: paidPayment(200000)}
	_, r := newHandler(store, verifier)

	rec := post(r, "/api/orders", orderBody(func(b map[string]any) {
		b["totalAmount"] = 1 // tampered client total must be ignored
	}))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(200000), verifier.gotAmt)
}

func TestCreateOrder_AmountMismatch_NothingPersisted(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{err: portone.ErrAmountMismatch}
	_, r := newHandler(store, verifier)

	rec := post(r, "/api/orders", orderBody(nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "paid amount does not match the order total")
	assert.Empty(t, store.docs)
}

func TestCreateOrder_NotPaid(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{err: portone.ErrNotPaid}
	_, r := newHandler(store, verifier)

	rec := post(r, "/api/orders", orderBody(nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment is not completed")
	assert.Empty(t, store.docs)
}

func TestCreateOrder_MissingCredentialsIs500(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{err: portone.ErrCredentialsMissing}
	_, r := newHandler(store, verifier)

	rec := post(r, "/api/orders", orderBody(nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment verification is not configured")
	assert.Empty(t, store.docs)
}

func TestCreateOrder_UnknownMethod_NeverVerifies(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{payment: paidPayment(200000)}
	_, r := newHandler(store, verifier)

	rec := post(r, "/api/orders", orderBody(func(b map[string]any) {
		b["payment"].(map[string]any)["method"] = "paypal"
	}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported payment method")
	assert.Equal(t, 0, verifier.calls)
	assert.Empty(t, store.docs)
}

func TestCreateOrder_ZeroQuantityNamesTheItem(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{payment: paidPayment(200000)}
	_, r := newHandler(store, verifier)

	rec := post(r, "/api/orders", orderBody(func(b map[string]any) {
		b["items"].([]map[string]any)[0]["quantity"] = 0
	}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "items[0].quantity")
	assert.Equal(t, 0, verifier.calls)
}

func TestCreateOrder_DuplicateTransaction(t *testing.T) {
	store := newFakeStore()
	store.createErr = orders.ErrDuplicateTransaction
	verifier := &fakeVerifier{payment: paidPayment(200000)}
	_, r := newHandler(store, verifier)

	rec := post(r, "/api/orders", orderBody(nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already submitted")
}

func TestCreateOrder_ExpandedProductReference(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{payment: paidPayment(200000)}
	_, r := newHandler(store, verifier)

	rec := post(r, "/api/orders", orderBody(func(b map[string]any) {
		b["items"].([]map[string]any)[0]["product"] = map[string]any{
			"_id": primitive.NewObjectID().Hex(), "sku": "PT-10", "price": 100000,
		}
	}))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCreateOrder_ExplicitStatusOverride(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{payment: paidPayment(200000)}
	_, r := newHandler(store, verifier)

	rec := post(r, "/api/orders", orderBody(func(b map[string]any) {
		b["status"] = "paid"
	}))

	require.Equal(t, http.StatusCreated, rec.Code)
	var view orders.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, orders.StatusPaid, view.Status)
}

// --- read ---

func TestGetOrder_NotFound(t *testing.T) {
	_, r := newHandler(newFakeStore(), &fakeVerifier{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/"+primitive.NewObjectID().Hex(), nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrder_ReturnsStoredSnapshot(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{payment: paidPayment(200000)}
	_, r := newHandler(store, verifier)

	rec := post(r, "/api/orders", orderBody(nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var created orders.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	for range 2 {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/"+created.ID.Hex(), nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var got orders.View
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.Equal(t, created.TotalAmount, got.TotalAmount)
		assert.Equal(t, created.Items, got.Items)
		assert.Equal(t, created.Payment.TransactionID, got.Payment.TransactionID)
	}
}

// --- update ---

func createPending(t *testing.T, r http.Handler, store *fakeStore) primitive.ObjectID {
	t.Helper()
	rec := post(r, "/api/orders", orderBody(nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	var view orders.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	return view.ID
}

func put(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, path, bytes.NewReader(b))
	r.ServeHTTP(rec, req)
	return rec
}

func TestUpdateOrder_ItemsRecomputeTotal_NoReverification(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{payment: paidPayment(200000)}
	_, r := newHandler(store, verifier)
	id := createPending(t, r, store)
	require.Equal(t, 1, verifier.calls)

	rec := put(r, "/api/orders/"+id.Hex(), map[string]any{
		"items": []map[string]any{
			{
				"product":  primitive.NewObjectID().Hex(),
				"quantity": 3,
				"productSnapshot": map[string]any{
					"sku": "PT-1", "name": "PT 1회권", "price": 15000,
					"category": "pt", "image": "b.jpg",
				},
			},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view orders.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, int64(45000), view.TotalAmount)
	// amendment is administrative; the gateway is consulted only at creation
	assert.Equal(t, 1, verifier.calls)
}

func TestUpdateOrder_StatusTransitions(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{payment: paidPayment(200000)}
	_, r := newHandler(store, verifier)
	id := createPending(t, r, store)

	rec := put(r, "/api/orders/"+id.Hex(), map[string]any{"status": "paid"})
	require.Equal(t, http.StatusOK, rec.Code)

	// paid -> pending is a regression and must be refused
	rec = put(r, "/api/orders/"+id.Hex(), map[string]any{"status": "pending"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cannot change order status from paid to pending")

	// paid -> cancelled flags the refund
	rec = put(r, "/api/orders/"+id.Hex(), map[string]any{"status": "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code)
	var view orders.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.True(t, view.RefundRequired)

	// cancelled is terminal
	rec = put(r, "/api/orders/"+id.Hex(), map[string]any{"status": "paid"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateOrder_UnknownID(t *testing.T) {
	store := newFakeStore()
	_, r := newHandler(store, &fakeVerifier{})

	rec := put(r, "/api/orders/"+primitive.NewObjectID().Hex(), map[string]any{"note": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateOrder_BlankCustomerNameRejected(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{payment: paidPayment(200000)}
	_, r := newHandler(store, verifier)
	id := createPending(t, r, store)

	rec := put(r, "/api/orders/"+id.Hex(), map[string]any{"customerName": "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "customerName is required")
}

// --- delete ---

func TestDeleteOrder(t *testing.T) {
	store := newFakeStore()
	verifier := &fakeVerifier{payment: paidPayment(200000)}
	_, r := newHandler(store, verifier)
	id := createPending(t, r, store)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/orders/"+id.Hex(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, store.docs)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/orders/"+id.Hex(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
