package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/middleware"
	"marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutRequest is the checkout form
type CheckoutRequest struct {
	Address            string `json:"address" validate:"required,max=500"`
	Phone              string `json:"phone" validate:"required,phone"`
	AcknowledgePayment bool   `json:"acknowledge_payment" validate:"eq=true"`
}

// CheckoutResponse summarises a placed order
type CheckoutResponse struct {
	OrderID       uuid.UUID          `json:"order_id"`
	Total         decimal.Decimal    `json:"total"`
	Address       string             `json:"address"`
	Phone         string             `json:"phone"`
	PaymentMethod string             `json:"payment_method"`
	Order         *domain.BuyerOrder `json:"order"`
}

// OrderHandler serves checkout, order lists and seller transitions
type OrderHandler struct {
	orderService service.OrderService
	subscriber   Subscriber
	heartbeat    time.Duration
	logger       *zap.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

// NewOrderHandler creates a new OrderHandler. A zero heartbeat uses
// DefaultHeartbeat.
func NewOrderHandler(orderService service.OrderService, subscriber Subscriber, heartbeat time.Duration, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		subscriber:   subscriber,
		heartbeat:    heartbeat,
		logger:       logger,
		closing:      make(chan struct{}),
	}
}

// CloseStreams ends every open order stream. http.Server.Shutdown never sees
// a stream go idle, so the server calls this from RegisterOnShutdown.
func (h *OrderHandler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// RegisterRoutes registers buyer and seller order routes
func (h *OrderHandler) RegisterRoutes(r chi.Router, guards Guards) {
	g := guards.withDefaults()

	r.Route("/api/orders", func(r chi.Router) {
		r.Use(g.Auth, g.Client)
		r.Post("/checkout", h.Checkout)
		r.Get("/", h.BuyerOrders)
		r.Get("/stream", h.BuyerStream)
	})

	r.Route("/api/business/orders", func(r chi.Router) {
		r.Use(g.Auth, g.Business)
		r.Get("/", h.SellerOrders)
		r.Get("/stream", h.SellerStream)
		r.Post("/{id}/confirm", h.Confirm)
		r.Post("/{id}/cancel", h.Cancel)
	})
}

// Checkout places the caller's cart
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req CheckoutRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	order, err := h.orderService.Checkout(r.Context(), buyerID, service.CheckoutInput{
		Address:            req.Address,
		Phone:              req.Phone,
		AcknowledgePayment: req.AcknowledgePayment,
	})
	if err != nil {
		respondError(w, h.logger, err, "place order")
		return
	}

	h.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("buyer_id", buyerID.String()),
		zap.String("total", order.Total.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, CheckoutResponse{
		OrderID:       order.ID,
		Total:         order.Total,
		Address:       order.Address,
		Phone:         order.Phone,
		PaymentMethod: order.PaymentMethod,
		Order:         order,
	})
}

// BuyerOrders returns the caller's ongoing and past orders
func (h *OrderHandler) BuyerOrders(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := currentUser(w, r)
	if !ok {
		return
	}

	view, err := h.orderService.BuyerOrders(r.Context(), buyerID)
	if err != nil {
		respondError(w, h.logger, err, "list orders")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// BuyerStream pushes the buyer projection on every change
func (h *OrderHandler) BuyerStream(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := currentUser(w, r)
	if !ok {
		return
	}

	serveOrderStream(w, r, h.closing, h.subscriber, h.heartbeat, h.logger, buyerID, func(ctx context.Context) (interface{}, error) {
		return h.orderService.BuyerOrders(ctx, buyerID)
	})
}

// SellerOrders returns the seller's ongoing and past orders
func (h *OrderHandler) SellerOrders(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := currentUser(w, r)
	if !ok {
		return
	}

	view, err := h.orderService.SellerOrders(r.Context(), sellerID)
	if err != nil {
		respondError(w, h.logger, err, "list orders")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// SellerStream pushes the seller projection on every change
func (h *OrderHandler) SellerStream(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := currentUser(w, r)
	if !ok {
		return
	}

	serveOrderStream(w, r, h.closing, h.subscriber, h.heartbeat, h.logger, sellerID, func(ctx context.Context) (interface{}, error) {
		return h.orderService.SellerOrders(ctx, sellerID)
	})
}

// Confirm completes a seller order
func (h *OrderHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orderService.Confirm, "confirm order")
}

// Cancel cancels a seller order
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.orderService.Cancel, "cancel order")
}

func (h *OrderHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, sellerID, sellerOrderID uuid.UUID) (*domain.SellerOrder, error),
	action string,
) {
	sellerID, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	order, err := apply(r.Context(), sellerID, orderID)
	if err != nil {
		respondError(w, h.logger, err, action)
		return
	}

	h.logger.Info("Seller order updated",
		zap.String("seller_order_id", order.ID.String()),
		zap.String("status", string(order.Status)),
	)
	middleware.RespondWithJSON(w, http.StatusOK, order)
}
