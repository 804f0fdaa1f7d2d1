package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/ptshop/ptshop/internal/users"
)

type UserStore interface {
	Create(ctx context.Context, u *users.User) error
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*users.User, error)
}

type UsersHandler struct {
	Repo UserStore
	Auth *Auth
}

func (h *UsersHandler) Register(r chi.Router) {
	r.Post("/api/users", h.createUser)
	r.Post("/api/users/login", h.login)
	r.With(h.Auth.RequireUser).Get("/api/users/me", h.me)
}

type createUserReq struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	UserType string `json:"user_type"`
	Address  string `json:"address"`
}

func (h *UsersHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Email == "" || req.Name == "" || req.Password == "" || req.UserType == "" {
		writeMessage(w, http.StatusBadRequest, "email, name, password and user_type are required")
		return
	}
	if req.UserType != users.TypeCustomer && req.UserType != users.TypeAdmin {
		writeMessage(w, http.StatusBadRequest, "unsupported user_type: "+req.UserType)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("hash password: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u := &users.User{
		Email:    strings.TrimSpace(req.Email),
		Name:     strings.TrimSpace(req.Name),
		Password: string(hash),
		UserType: req.UserType,
		Address:  strings.TrimSpace(req.Address),
	}
	if err := h.Repo.Create(ctx, u); err != nil {
		log.Printf("create user: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *UsersHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.Repo.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			writeMessage(w, http.StatusUnauthorized, "email or password is incorrect")
			return
		}
		log.Printf("login lookup: %v", err)
		writeMessage(w, http.StatusInternalServerError, "login failed")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)) != nil {
		writeMessage(w, http.StatusUnauthorized, "email or password is incorrect")
		return
	}

	token, err := h.Auth.Sign(u)
	if err != nil {
		log.Printf("sign token: %v", err)
		writeMessage(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": u})
}

func (h *UsersHandler) me(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "a valid token is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.Repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("load user: %v", err)
		writeMessage(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}
