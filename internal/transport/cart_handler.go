package transport

import (
	"net/http"

	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddToCartRequest names the product to add
type AddToCartRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

// CartHandler serves the buyer's cart
type CartHandler struct {
	cartService service.CartService
	logger      *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{cartService: cartService, logger: logger}
}

// RegisterRoutes registers cart routes
func (h *CartHandler) RegisterRoutes(r chi.Router, guards Guards) {
	g := guards.withDefaults()

	r.Route("/api/cart", func(r chi.Router) {
		r.Use(g.Auth, g.Client)
		r.Get("/", h.Get)
		r.Post("/items", h.Add)
		r.Delete("/items/{productID}", h.Remove)
	})
}

// Get returns the cart lines and total
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := currentUser(w, r)
	if !ok {
		return
	}

	cart, err := h.cartService.Get(r.Context(), buyerID)
	if err != nil {
		respondError(w, h.logger, err, "load cart")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// Add snapshots a product into the cart
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req AddToCartRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product_id")
		return
	}

	line, err := h.cartService.Add(r.Context(), buyerID, productID)
	if err != nil {
		respondError(w, h.logger, err, "add to cart")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, line)
}

// Remove deletes one cart line
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	if err := h.cartService.Remove(r.Context(), buyerID, productID); err != nil {
		respondError(w, h.logger, err, "remove from cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
