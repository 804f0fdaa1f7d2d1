package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ptshop/ptshop/internal/carts"
)

type CartStore interface {
	Create(ctx context.Context, c *carts.Cart) error
	All(ctx context.Context) ([]carts.Cart, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*carts.Cart, error)
	FindByUser(ctx context.Context, user primitive.ObjectID) (*carts.Cart, error)
	ReplaceItems(ctx context.Context, id primitive.ObjectID, items []carts.CartItem) (*carts.Cart, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type CartsHandler struct {
	Repo CartStore
}

func (h *CartsHandler) Register(r chi.Router) {
	r.Post("/api/carts", h.createCart)
	r.Get("/api/carts", h.listCarts)
	r.Get("/api/carts/user/{userId}", h.getCartByUser)
	r.Get("/api/carts/{id}", h.getCart)
	r.Put("/api/carts/{id}", h.updateCart)
	r.Delete("/api/carts/{id}", h.deleteCart)
}

type cartReq struct {
	User  string           `json:"user"`
	Items []carts.CartItem `json:"items"`
}

func (h *CartsHandler) createCart(w http.ResponseWriter, r *http.Request) {
	var req cartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	userID, err := primitive.ObjectIDFromHex(req.User)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "user is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c := &carts.Cart{User: userID, Items: req.Items}
	if err := h.Repo.Create(ctx, c); err != nil {
		if errors.Is(err, carts.ErrAlreadyExists) {
			writeMessage(w, http.StatusConflict, "cart already exists for this user")
			return
		}
		log.Printf("create cart: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to create cart")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CartsHandler) listCarts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Repo.All(ctx)
	if err != nil {
		log.Printf("list carts: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to list carts")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *CartsHandler) getCart(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid cart id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, carts.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "cart not found")
			return
		}
		log.Printf("get cart: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to load cart")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartsHandler) getCartByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userId"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, carts.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "cart not found")
			return
		}
		log.Printf("get cart by user: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to load cart")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartsHandler) updateCart(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid cart id")
		return
	}

	var req cartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := h.Repo.ReplaceItems(ctx, id, req.Items)
	if err != nil {
		if errors.Is(err, carts.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "cart not found")
			return
		}
		log.Printf("update cart: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to update cart")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartsHandler) deleteCart(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid cart id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Repo.Delete(ctx, id); err != nil {
		if errors.Is(err, carts.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "cart not found")
			return
		}
		log.Printf("delete cart: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to delete cart")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cart deleted"})
}
