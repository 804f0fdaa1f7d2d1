package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ptshop/ptshop/internal/products"
)

type ProductStore interface {
	Create(ctx context.Context, p *products.Product) error
	List(ctx context.Context, page, limit int) (*products.Page, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*products.Product, error)
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) (*products.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type ProductsHandler struct {
	Repo ProductStore
	Auth *Auth // optional; admin guard on catalog writes
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/api/products", h.listProducts)
	r.Get("/api/products/{id}", h.getProduct)
	if h.Auth != nil {
		r.With(h.Auth.RequireAdmin).Post("/api/products", h.createProduct)
		r.With(h.Auth.RequireAdmin).Put("/api/products/{id}", h.updateProduct)
		r.With(h.Auth.RequireAdmin).Delete("/api/products/{id}", h.deleteProduct)
	} else {
		r.Post("/api/products", h.createProduct)
		r.Put("/api/products/{id}", h.updateProduct)
		r.Delete("/api/products/{id}", h.deleteProduct)
	}
}

type productReq struct {
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Price          *int64 `json:"price"`
	Category       string `json:"category"`
	Image          string `json:"image"`
	InstructorName string `json:"instructorName"`
	Description    string `json:"description"`
}

func (h *ProductsHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.SKU == "" || req.Name == "" || req.Price == nil || req.Category == "" || req.Image == "" {
		writeMessage(w, http.StatusBadRequest, "sku, name, price, category and image are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p := &products.Product{
		SKU:            strings.TrimSpace(req.SKU),
		Name:           strings.TrimSpace(req.Name),
		Price:          *req.Price,
		Category:       strings.TrimSpace(req.Category),
		Image:          strings.TrimSpace(req.Image),
		InstructorName: strings.TrimSpace(req.InstructorName),
		Description:    strings.TrimSpace(req.Description),
	}
	if err := h.Repo.Create(ctx, p); err != nil {
		if errors.Is(err, products.ErrDuplicateSKU) {
			writeMessage(w, http.StatusConflict, "sku already exists")
			return
		}
		log.Printf("create product: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to create product")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Repo.List(ctx, page, limit)
	if err != nil {
		log.Printf("list products: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid product id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "product not found")
			return
		}
		log.Printf("get product: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to load product")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}

	set := bson.M{}
	if req.SKU != "" {
		set["sku"] = strings.TrimSpace(req.SKU)
	}
	if req.Name != "" {
		set["name"] = strings.TrimSpace(req.Name)
	}
	if req.Price != nil {
		set["price"] = *req.Price
	}
	if req.Category != "" {
		set["category"] = strings.TrimSpace(req.Category)
	}
	if req.Image != "" {
		set["image"] = strings.TrimSpace(req.Image)
	}
	if req.InstructorName != "" {
		set["instructorName"] = strings.TrimSpace(req.InstructorName)
	}
	if req.Description != "" {
		set["description"] = strings.TrimSpace(req.Description)
	}
	if len(set) == 0 {
		writeMessage(w, http.StatusBadRequest, "no updatable fields in request")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Repo.Update(ctx, id, set)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "product not found")
			return
		}
		log.Printf("update product: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to update product")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid product id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Repo.Delete(ctx, id); err != nil {
		if errors.Is(err, products.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "product not found")
			return
		}
		log.Printf("delete product: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to delete product")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}
