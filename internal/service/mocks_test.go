package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/repository"

	"github.com/google/uuid"
)

// Mock repositories for testing

type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{
		users: make(map[string]*domain.User),
	}
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

// add stores a user directly and returns it.
func (m *mockUserRepository) add(email, name string, role domain.Role) *domain.User {
	u := &domain.User{ID: uuid.New(), Email: email, DisplayName: name, Role: role, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.users[email] = u
	return u
}

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{
		tokens: make(map[string]*domain.RefreshToken),
	}
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
	for k, tok := range m.tokens {
		if tok.ExpiresAt.Before(before) {
			delete(m.tokens, k)
			n++
		}
	}
	return n, nil
}

type mockProductRepository struct {
	products map[uuid.UUID]*domain.Product
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[uuid.UUID]*domain.Product)}
}

func (m *mockProductRepository) Create(ctx context.Context, p *domain.Product) error {
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, p *domain.Product) error {
	existing, ok := m.products[p.ID]
	if !ok {
		return repository.ErrProductNotFound
	}
	existing.Name = p.Name
	existing.Description = p.Description
	existing.Price = p.Price
	existing.Category = p.Category
	existing.Image = p.Image
	existing.UpdatedAt = p.UpdatedAt
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	var out []*domain.Product
	for _, p := range m.products {
		if filter.Category != "" && filter.Category != "All" && p.Category != filter.Category {
			continue
		}
		if filter.OwnerID != nil && p.OwnerID != *filter.OwnerID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page, pageSize), len(out), nil
}

func (m *mockProductRepository) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	var out []*domain.Product
	q := strings.ToLower(query)
	for _, p := range m.products {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
			out = append(out, p)
		}
	}
	return paginate(out, page, pageSize), len(out), nil
}

func paginate(items []*domain.Product, page, pageSize int) []*domain.Product {
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []*domain.Product{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

type mockCategoryRepository struct {
	products *mockProductRepository
}

func (m *mockCategoryRepository) ListInUse(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, p := range m.products.products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

type cartKey struct {
	buyer, product uuid.UUID
}

type mockCartRepository struct {
	mu    sync.Mutex
	lines map[cartKey]*domain.CartLine
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{lines: make(map[cartKey]*domain.CartLine)}
}

func (m *mockCartRepository) Upsert(ctx context.Context, line *domain.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *line
	key := cartKey{line.BuyerID, line.ID}
	if existing, ok := m.lines[key]; ok {
		cp.CreatedAt = existing.CreatedAt
		line.CreatedAt = existing.CreatedAt
	}
	m.lines[key] = &cp
	return nil
}

func (m *mockCartRepository) List(ctx context.Context, buyerID uuid.UUID) ([]*domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.CartLine{}
	for k, l := range m.lines {
		if k.buyer == buyerID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockCartRepository) Delete(ctx context.Context, buyerID, productID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cartKey{buyerID, productID}
	if _, ok := m.lines[key]; !ok {
		return repository.ErrCartLineNotFound
	}
	delete(m.lines, key)
	return nil
}

// mockOrderRepository mimics the transactional behavior of the real store:
// a failing step leaves every map untouched.
type mockOrderRepository struct {
	mu      sync.Mutex
	carts   *mockCartRepository
	buyers  map[uuid.UUID]*domain.BuyerOrder
	sellers map[uuid.UUID]*domain.SellerOrder
	events  []*domain.OutboxEvent
	writes  int
	failPut error
}

func newMockOrderRepository(carts *mockCartRepository) *mockOrderRepository {
	return &mockOrderRepository{
		carts:   carts,
		buyers:  make(map[uuid.UUID]*domain.BuyerOrder),
		sellers: make(map[uuid.UUID]*domain.SellerOrder),
	}
}

func (m *mockOrderRepository) PlaceOrder(ctx context.Context, order *domain.BuyerOrder, sellers []*domain.SellerOrder, events []*domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return m.failPut
	}

	m.carts.mu.Lock()
	defer m.carts.mu.Unlock()
	for _, l := range order.Lines {
		if _, ok := m.carts.lines[cartKey{order.BuyerID, l.ProductID}]; !ok {
			return repository.ErrCartChanged
		}
	}

	cp := *order
	m.buyers[order.ID] = &cp
	for _, so := range sellers {
		sc := *so
		m.sellers[so.ID] = &sc
	}
	m.events = append(m.events, events...)
	for _, l := range order.Lines {
		delete(m.carts.lines, cartKey{order.BuyerID, l.ProductID})
	}
	m.writes += 1 + len(sellers) + len(events) + len(order.Lines)
	return nil
}

func (m *mockOrderRepository) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID) ([]*domain.BuyerOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.BuyerOrder{}
	for _, o := range m.buyers {
		if o.BuyerID == buyerID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) ListSellerOrders(ctx context.Context, sellerID uuid.UUID) ([]*domain.SellerOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.SellerOrder{}
	for _, o := range m.sellers {
		if o.SellerID == sellerID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) TransitionSellerOrder(ctx context.Context, t repository.Transition) (*domain.SellerOrder, *domain.BuyerOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sellers[t.SellerOrderID]
	if !ok {
		return nil, nil, repository.ErrOrderNotFound
	}
	if stored.SellerID != t.SellerID {
		return nil, nil, repository.ErrNotOrderSeller
	}
	if !domain.CanTransition(stored.Status, t.To) {
		return nil, nil, repository.ErrInvalidTransition
	}
	storedBuyer, ok := m.buyers[stored.BuyerOrderID]
	if !ok {
		return nil, nil, repository.ErrBuyerOrderNotFound
	}

	seller := *stored
	buyer := *storedBuyer
	seller.Status, seller.UpdatedAt = t.To, t.At
	if buyer.Status == domain.OrderStatusPending {
		buyer.Status, buyer.UpdatedAt = t.To, t.At
	}

	var events []*domain.OutboxEvent
	if t.Events != nil {
		var err error
		if events, err = t.Events(&seller, &buyer); err != nil {
			return nil, nil, err
		}
	}

	*stored = seller
	*storedBuyer = buyer
	m.events = append(m.events, events...)
	return &seller, &buyer, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls [][]uuid.UUID
}

func (n *recordingNotifier) OrdersChanged(ctx context.Context, userIDs ...uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, userIDs)
}

var errStorage = errors.New("connection reset")
