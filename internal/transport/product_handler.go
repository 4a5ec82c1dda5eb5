package transport

import (
	"net/http"
	"strings"

	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest is the payload for creating or editing a product. Price
// accepts a JSON string or number.
type ProductRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description" validate:"max=2000"`
	Price       decimal.Decimal `json:"price" validate:"decimal_gt0"`
	Category    string          `json:"category" validate:"max=100"`
	Image       string          `json:"image" validate:"omitempty,max=2048"`
}

func (req ProductRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Image:       req.Image,
	}
}

// ProductHandler serves the catalog and seller product management
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{productService: productService, logger: logger}
}

// RegisterRoutes registers catalog routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, guards Guards) {
	g := guards.withDefaults()

	r.With(g.Public).Get("/api/categories", h.Categories)

	r.Route("/api/products", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(g.Auth, g.Business)
			r.Get("/mine", h.ListMine)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})

		r.Group(func(r chi.Router) {
			r.Use(g.Public)
			r.Get("/", h.List)
			r.Get("/{id}", h.Get)
		})
	})
}

// Categories lists the category picker
func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.productService.Categories(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "list categories")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string][]string{"categories": categories})
}

// List pages through the catalog. A non-empty q switches to text search.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, pageSize := queryInt(r, "page"), queryInt(r, "page_size")

	var (
		result *service.ProductPage
		err    error
	)
	if text := strings.TrimSpace(query.Get("q")); text != "" {
		result, err = h.productService.Search(r.Context(), text, page, pageSize)
	} else {
		result, err = h.productService.List(r.Context(), service.ProductQuery{
			Category:  query.Get("category"),
			Page:      page,
			PageSize:  pageSize,
			SortBy:    query.Get("sort_by"),
			SortOrder: query.Get("sort_order"),
		})
	}
	if err != nil {
		respondError(w, h.logger, err, "list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// Get returns one product
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	product, err := h.productService.Get(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err, "get product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// ListMine returns the seller's own products
func (h *ProductHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.productService.ListMine(r.Context(), sellerID, queryInt(r, "page"), queryInt(r, "page_size"))
	if err != nil {
		respondError(w, h.logger, err, "list products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// Create posts a product owned by the caller
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req ProductRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	product, err := h.productService.Create(r.Context(), sellerID, req.input())
	if err != nil {
		respondError(w, h.logger, err, "create product")
		return
	}

	h.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("seller_id", sellerID.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update edits a product the caller owns
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req ProductRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	product, err := h.productService.Update(r.Context(), sellerID, id, req.input())
	if err != nil {
		respondError(w, h.logger, err, "update product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete removes a product the caller owns
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), sellerID, id); err != nil {
		respondError(w, h.logger, err, "delete product")
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}
