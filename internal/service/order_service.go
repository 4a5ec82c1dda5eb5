package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/repository"
	"marketplace/internal/telemetry"

	"github.com/google/uuid"
)

var (
	// ErrEmptyCart blocks a checkout with nothing to order.
	ErrEmptyCart = invalid("cart", "Your cart is empty")
)

// CheckoutInput is what the buyer supplies on the checkout form
type CheckoutInput struct {
	Address            string
	Phone              string
	AcknowledgePayment bool
}

// Notifier tells connected users that their order lists changed
type Notifier interface {
	OrdersChanged(ctx context.Context, userIDs ...uuid.UUID)
}

// OrderService defines checkout, projections and seller transitions
type OrderService interface {
	Checkout(ctx context.Context, buyerID uuid.UUID, in CheckoutInput) (*domain.BuyerOrder, error)
	BuyerOrders(ctx context.Context, buyerID uuid.UUID) (domain.OrderView[*domain.BuyerOrder], error)
	SellerOrders(ctx context.Context, sellerID uuid.UUID) (domain.OrderView[*domain.SellerOrder], error)
	Confirm(ctx context.Context, sellerID, sellerOrderID uuid.UUID) (*domain.SellerOrder, error)
	Cancel(ctx context.Context, sellerID, sellerOrderID uuid.UUID) (*domain.SellerOrder, error)
}

type orderService struct {
	orderRepo repository.OrderRepository
	cartRepo  repository.CartRepository
	userRepo  repository.UserRepository
	notifier  Notifier
	metrics   *telemetry.OrderMetrics
	now       func() time.Time
}

// OrderServiceOption tunes an OrderService
type OrderServiceOption func(*orderService)

// WithNotifier publishes change notifications after each commit
func WithNotifier(n Notifier) OrderServiceOption {
	return func(s *orderService) { s.notifier = n }
}

// WithOrderMetrics records checkout and transition counters
func WithOrderMetrics(m *telemetry.OrderMetrics) OrderServiceOption {
	return func(s *orderService) { s.metrics = m }
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	userRepo repository.UserRepository,
	opts ...OrderServiceOption,
) OrderService {
	s := &orderService{
		orderRepo: orderRepo,
		cartRepo:  cartRepo,
		userRepo:  userRepo,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout turns the buyer's cart into one buyer order and one seller order
// per distinct seller. Every precondition is checked before anything is
// written; the writes themselves happen in a single transaction.
func (s *orderService) Checkout(ctx context.Context, buyerID uuid.UUID, in CheckoutInput) (*domain.BuyerOrder, error) {
	address := strings.TrimSpace(in.Address)
	if address == "" {
		return nil, invalid("address", "Please enter a delivery address")
	}
	if !domain.ValidPhone(in.Phone) {
		return nil, invalid("phone", fmt.Sprintf("Phone number must contain at least %d digits", domain.MinPhoneDigits))
	}
	if !in.AcknowledgePayment {
		return nil, invalid("acknowledge_payment", "Please confirm you will pay on delivery")
	}

	lines, err := s.cartRepo.List(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	buyer, err := s.userRepo.FindByID(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load buyer: %w", err)
	}

	now := s.now()
	orderLines := domain.SnapshotLines(lines)
	order := &domain.BuyerOrder{
		ID:            uuid.New(),
		BuyerID:       buyer.ID,
		BuyerEmail:    buyer.Email,
		Lines:         orderLines,
		Total:         domain.LinesTotal(orderLines),
		Address:       address,
		Phone:         strings.TrimSpace(in.Phone),
		PaymentMethod: domain.PaymentMethodCOD,
		Status:        domain.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	sellers := domain.SplitBySeller(order, uuid.New)

	events, err := placedEvents(order, sellers, now)
	if err != nil {
		return nil, fmt.Errorf("failed to build order events: %w", err)
	}

	if err := s.orderRepo.PlaceOrder(ctx, order, sellers, events); err != nil {
		if errors.Is(err, repository.ErrCartChanged) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	s.metrics.OrderPlaced(ctx, len(sellers))
	s.notify(ctx, buyer.ID, sellerIDs(sellers)...)

	return order, nil
}

func (s *orderService) BuyerOrders(ctx context.Context, buyerID uuid.UUID) (domain.OrderView[*domain.BuyerOrder], error) {
	orders, err := s.orderRepo.ListBuyerOrders(ctx, buyerID)
	if err != nil {
		return domain.OrderView[*domain.BuyerOrder]{}, fmt.Errorf("failed to list buyer orders: %w", err)
	}
	return domain.ProjectBuyerOrders(orders), nil
}

func (s *orderService) SellerOrders(ctx context.Context, sellerID uuid.UUID) (domain.OrderView[*domain.SellerOrder], error) {
	orders, err := s.orderRepo.ListSellerOrders(ctx, sellerID)
	if err != nil {
		return domain.OrderView[*domain.SellerOrder]{}, fmt.Errorf("failed to list seller orders: %w", err)
	}
	return domain.ProjectSellerOrders(orders), nil
}

// Confirm completes the seller's part of an order
func (s *orderService) Confirm(ctx context.Context, sellerID, sellerOrderID uuid.UUID) (*domain.SellerOrder, error) {
	return s.transition(ctx, sellerID, sellerOrderID, domain.OrderStatusCompleted)
}

// Cancel cancels the seller's part of an order
func (s *orderService) Cancel(ctx context.Context, sellerID, sellerOrderID uuid.UUID) (*domain.SellerOrder, error) {
	return s.transition(ctx, sellerID, sellerOrderID, domain.OrderStatusCancelled)
}

func (s *orderService) transition(ctx context.Context, sellerID, sellerOrderID uuid.UUID, to domain.OrderStatus) (*domain.SellerOrder, error) {
	now := s.now()

	seller, buyer, err := s.orderRepo.TransitionSellerOrder(ctx, repository.Transition{
		SellerOrderID: sellerOrderID,
		SellerID:      sellerID,
		To:            to,
		At:            now,
		Events: func(seller *domain.SellerOrder, buyer *domain.BuyerOrder) ([]*domain.OutboxEvent, error) {
			ev, err := domain.NewOutboxEvent(seller.ID, domain.EventOrderStatusChanged, seller.BuyerOrderID.String(), domain.OrderStatusChangedPayload{
				SellerOrderID: seller.ID.String(),
				BuyerOrderID:  seller.BuyerOrderID.String(),
				SellerID:      seller.SellerID.String(),
				BuyerID:       seller.BuyerID.String(),
				Status:        seller.Status,
				BuyerStatus:   buyer.Status,
			}, now)
			if err != nil {
				return nil, err
			}
			return []*domain.OutboxEvent{ev}, nil
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrOrderNotFound),
			errors.Is(err, repository.ErrInvalidTransition):
			return nil, err
		case errors.Is(err, repository.ErrNotOrderSeller):
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	s.metrics.Transition(ctx, string(to))
	s.notify(ctx, buyer.BuyerID, seller.SellerID)

	return seller, nil
}

func (s *orderService) notify(ctx context.Context, first uuid.UUID, rest ...uuid.UUID) {
	if s.notifier == nil {
		return
	}
	s.notifier.OrdersChanged(ctx, append([]uuid.UUID{first}, rest...)...)
}

func sellerIDs(orders []*domain.SellerOrder) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.SellerID)
	}
	return ids
}

// placedEvents builds one order.placed event for the buyer and one per seller.
func placedEvents(order *domain.BuyerOrder, sellers []*domain.SellerOrder, now time.Time) ([]*domain.OutboxEvent, error) {
	events := make([]*domain.OutboxEvent, 0, len(sellers)+1)

	ev, err := domain.NewOutboxEvent(order.ID, domain.EventOrderPlaced, order.BuyerID.String(), domain.OrderPlacedPayload{
		OrderID:      order.ID.String(),
		BuyerOrderID: order.ID.String(),
		Audience:     "buyer",
		RecipientID:  order.BuyerID.String(),
		Total:        order.Total.StringFixed(2),
		Lines:        order.Lines,
	}, now)
	if err != nil {
		return nil, err
	}
	events = append(events, ev)

	for _, so := range sellers {
		ev, err := domain.NewOutboxEvent(so.ID, domain.EventOrderPlaced, so.SellerID.String(), domain.OrderPlacedPayload{
			OrderID:      so.ID.String(),
			BuyerOrderID: order.ID.String(),
			Audience:     "seller",
			RecipientID:  so.SellerID.String(),
			Total:        so.Subtotal.StringFixed(2),
			Lines:        so.Lines,
		}, now)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	return events, nil
}
