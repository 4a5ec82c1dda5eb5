package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/middleware"
	"marketplace/internal/notify"
	"marketplace/internal/repository"
	"marketplace/internal/service"

	"github.com/google/uuid"
)

// Mock repositories for the user handler, which runs against the real service
type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{tokens: make(map[string]*domain.RefreshToken)}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

func (m *mockRefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	for k, t := range m.tokens {
		if t.ExpiresAt.Before(before) {
			delete(m.tokens, k)
			n++
		}
	}
	return n, nil
}

func newTestUserService() service.UserService {
	return service.NewUserService(newMockUserRepository(), newMockRefreshTokenRepository(), "test-secret")
}

// stubProductService answers from a map and records the last input
type stubProductService struct {
	products  map[uuid.UUID]*domain.Product
	lastQuery service.ProductQuery
	lastText  string
	err       error
}

func newStubProductService() *stubProductService {
	return &stubProductService{products: make(map[uuid.UUID]*domain.Product)}
}

func (s *stubProductService) Create(ctx context.Context, ownerID uuid.UUID, in service.ProductInput) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	p := &domain.Product{ID: uuid.New(), Name: in.Name, Price: in.Price, Category: in.Category, OwnerID: ownerID}
	s.products[p.ID] = p
	return p, nil
}

func (s *stubProductService) owned(ownerID, productID uuid.UUID) (*domain.Product, error) {
	p, ok := s.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	if p.OwnerID != ownerID {
		return nil, service.ErrNotProductOwner
	}
	return p, nil
}

func (s *stubProductService) Update(ctx context.Context, ownerID, productID uuid.UUID, in service.ProductInput) (*domain.Product, error) {
	p, err := s.owned(ownerID, productID)
	if err != nil {
		return nil, err
	}
	p.Name, p.Price = in.Name, in.Price
	return p, nil
}

func (s *stubProductService) Delete(ctx context.Context, ownerID, productID uuid.UUID) error {
	if _, err := s.owned(ownerID, productID); err != nil {
		return err
	}
	delete(s.products, productID)
	return nil
}

func (s *stubProductService) Get(ctx context.Context, productID uuid.UUID) (*domain.Product, error) {
	p, ok := s.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (s *stubProductService) List(ctx context.Context, q service.ProductQuery) (*service.ProductPage, error) {
	s.lastQuery = q
	return &service.ProductPage{Products: []*domain.Product{}, Page: 1, PageSize: service.DefaultPageSize}, s.err
}

func (s *stubProductService) Search(ctx context.Context, text string, page, pageSize int) (*service.ProductPage, error) {
	s.lastText = text
	return &service.ProductPage{Products: []*domain.Product{}, Page: 1, PageSize: service.DefaultPageSize}, s.err
}

func (s *stubProductService) ListMine(ctx context.Context, ownerID uuid.UUID, page, pageSize int) (*service.ProductPage, error) {
	var mine []*domain.Product
	for _, p := range s.products {
		if p.OwnerID == ownerID {
			mine = append(mine, p)
		}
	}
	return &service.ProductPage{Products: mine, Total: len(mine), Page: 1, PageSize: service.DefaultPageSize}, nil
}

func (s *stubProductService) Categories(ctx context.Context) ([]string, error) {
	return append([]string(nil), domain.KnownCategories...), s.err
}

// stubCartService keeps one cart per buyer
type stubCartService struct {
	products map[uuid.UUID]*domain.Product
	carts    map[uuid.UUID][]*domain.CartLine
}

func newStubCartService(products ...*domain.Product) *stubCartService {
	s := &stubCartService{
		products: make(map[uuid.UUID]*domain.Product),
		carts:    make(map[uuid.UUID][]*domain.CartLine),
	}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *stubCartService) Add(ctx context.Context, buyerID, productID uuid.UUID) (*domain.CartLine, error) {
	p, ok := s.products[productID]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	line := domain.NewCartLine(buyerID, p, time.Now())
	s.carts[buyerID] = append(s.carts[buyerID], line)
	return line, nil
}

func (s *stubCartService) Remove(ctx context.Context, buyerID, productID uuid.UUID) error {
	lines := s.carts[buyerID]
	for i, l := range lines {
		if l.ID == productID {
			s.carts[buyerID] = append(lines[:i], lines[i+1:]...)
			return nil
		}
	}
	return repository.ErrCartLineNotFound
}

func (s *stubCartService) Get(ctx context.Context, buyerID uuid.UUID) (*service.Cart, error) {
	lines := s.carts[buyerID]
	if lines == nil {
		lines = []*domain.CartLine{}
	}
	return &service.Cart{Lines: lines, Total: domain.CartTotal(lines)}, nil
}

// stubOrderService returns canned results and counts projection loads
type stubOrderService struct {
	mu          sync.Mutex
	checkout    func(in service.CheckoutInput) (*domain.BuyerOrder, error)
	transition  func(sellerID, id uuid.UUID, to domain.OrderStatus) (*domain.SellerOrder, error)
	buyerView   domain.OrderView[*domain.BuyerOrder]
	sellerView  domain.OrderView[*domain.SellerOrder]
	buyerLoads  int
	sellerLoads int
}

func (s *stubOrderService) Checkout(ctx context.Context, buyerID uuid.UUID, in service.CheckoutInput) (*domain.BuyerOrder, error) {
	return s.checkout(in)
}

func (s *stubOrderService) BuyerOrders(ctx context.Context, buyerID uuid.UUID) (domain.OrderView[*domain.BuyerOrder], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buyerLoads++
	return s.buyerView, nil
}

func (s *stubOrderService) SellerOrders(ctx context.Context, sellerID uuid.UUID) (domain.OrderView[*domain.SellerOrder], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sellerLoads++
	return s.sellerView, nil
}

func (s *stubOrderService) Confirm(ctx context.Context, sellerID, id uuid.UUID) (*domain.SellerOrder, error) {
	return s.transition(sellerID, id, domain.OrderStatusCompleted)
}

func (s *stubOrderService) Cancel(ctx context.Context, sellerID, id uuid.UUID) (*domain.SellerOrder, error) {
	return s.transition(sellerID, id, domain.OrderStatusCancelled)
}

func (s *stubOrderService) loads() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buyerLoads, s.sellerLoads
}

// chanSubscriber hands out a test-controlled channel
type chanSubscriber struct {
	ch         chan notify.Message
	err        error
	subscribed chan uuid.UUID
}

func newChanSubscriber() *chanSubscriber {
	return &chanSubscriber{ch: make(chan notify.Message, 4), subscribed: make(chan uuid.UUID, 1)}
}

func (s *chanSubscriber) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan notify.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.subscribed <- userID
	return s.ch, nil
}

// asUser attaches the identity the auth middleware would set
func asUser(r *http.Request, id uuid.UUID, role domain.Role) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserIDKey, id)
	ctx = context.WithValue(ctx, middleware.UserRoleKey, role)
	return r.WithContext(ctx)
}
