// Package memory holds in-process implementations of the repositories, used by tests
// and by local runs without a database.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/switq/fast-food-api/services/order/internal/domain"
	"github.com/switq/fast-food-api/services/order/internal/repository"
)

var (
	_ repository.OrderRepository    = (*OrderStore)(nil)
	_ repository.ProductRepository  = (*ProductStore)(nil)
	_ repository.CustomerRepository = (*CustomerStore)(nil)
)

type OrderStore struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]domain.OrderSnapshot
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[uuid.UUID]domain.OrderSnapshot)}
}

func (s *OrderStore) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID()]; ok {
		return fmt.Errorf("order %s already exists", order.ID())
	}

	s.orders[order.ID()] = order.Snapshot()
	return nil
}

func (s *OrderStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}

	return domain.RestoreOrder(snap), nil
}

func (s *OrderStore) FindByCustomerID(_ context.Context, customerID uuid.UUID) ([]*domain.Order, error) {
	return s.filter(func(snap domain.OrderSnapshot) bool {
		return snap.CustomerID != nil && *snap.CustomerID == customerID
	}), nil
}

func (s *OrderStore) FindAll(_ context.Context) ([]*domain.Order, error) {
	return s.filter(func(domain.OrderSnapshot) bool { return true }), nil
}

func (s *OrderStore) FindByStatus(_ context.Context, statuses ...domain.OrderStatus) ([]*domain.Order, error) {
	return s.filter(func(snap domain.OrderSnapshot) bool {
		return slices.Contains(statuses, snap.Status)
	}), nil
}

func (s *OrderStore) FindByPaymentProviderID(_ context.Context, providerID string) (*domain.Order, error) {
	orders := s.filter(func(snap domain.OrderSnapshot) bool {
		return snap.PaymentProviderID != nil && *snap.PaymentProviderID == providerID
	})
	if len(orders) == 0 {
		return nil, fmt.Errorf("%w: no order for payment %s", domain.ErrOrderNotFound, providerID)
	}

	return orders[0], nil
}

func (s *OrderStore) Update(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID()]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, order.ID())
	}

	s.orders[order.ID()] = order.Snapshot()
	return nil
}

func (s *OrderStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}

	delete(s.orders, id)
	return nil
}

func (s *OrderStore) filter(keep func(domain.OrderSnapshot) bool) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Order, 0, len(s.orders))
	for _, snap := range s.orders {
		if keep(snap) {
			result = append(result, domain.RestoreOrder(snap))
		}
	}

	slices.SortFunc(result, func(a, b *domain.Order) int {
		return a.CreatedAt().Compare(b.CreatedAt())
	})

	return result
}

type ProductStore struct {
	mu       sync.Mutex
	products map[uuid.UUID]domain.Product
}

func NewProductStore(products ...domain.Product) *ProductStore {
	s := &ProductStore{products: make(map[uuid.UUID]domain.Product, len(products))}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *ProductStore) Create(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if strings.EqualFold(existing.Name, product.Name) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateProduct, product.Name)
		}
	}

	s.products[product.ID] = *product
	return nil
}

func (s *ProductStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}

	return &p, nil
}

func (s *ProductStore) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[uuid.UUID]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			result[id] = &p
		}
	}

	return result, nil
}

func (s *ProductStore) List(_ context.Context, category string) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if category == "" || p.Category == category {
			result = append(result, p)
		}
	}

	slices.SortFunc(result, func(a, b domain.Product) int {
		if c := strings.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})

	return result, nil
}

func (s *ProductStore) Update(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[product.ID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, product.ID)
	}

	updated := *product
	updated.Stock = current.Stock
	s.products[product.ID] = updated

	return nil
}

func (s *ProductStore) UpdateStock(_ context.Context, id uuid.UUID, stock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", domain.ErrValidation)
	}

	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}

	p.Stock = stock
	s.products[id] = p

	return nil
}

// ReserveStock checks every reservation before touching any stock, under one lock.
func (s *ProductStore) ReserveStock(_ context.Context, reservations []domain.StockReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := domain.MergeReservations(reservations)

	for _, r := range merged {
		p, ok := s.products[r.ProductID]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, r.ProductID)
		}
		if p.Stock < r.Quantity {
			return fmt.Errorf("%w for product %s", domain.ErrInsufficientStock, p.Name)
		}
	}

	for _, r := range merged {
		p := s.products[r.ProductID]
		p.Stock -= r.Quantity
		s.products[r.ProductID] = p
	}

	return nil
}

func (s *ProductStore) ReleaseStock(_ context.Context, reservations []domain.StockReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range domain.MergeReservations(reservations) {
		p, ok := s.products[r.ProductID]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, r.ProductID)
		}
		p.Stock += r.Quantity
		s.products[r.ProductID] = p
	}

	return nil
}

func (s *ProductStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}

	delete(s.products, id)
	return nil
}

type CustomerStore struct {
	mu        sync.RWMutex
	customers map[uuid.UUID]domain.Customer
}

func NewCustomerStore(customers ...domain.Customer) *CustomerStore {
	s := &CustomerStore{customers: make(map[uuid.UUID]domain.Customer, len(customers))}
	for _, c := range customers {
		s.customers[c.ID] = c
	}
	return s
}

func (s *CustomerStore) Create(_ context.Context, customer *domain.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.customers {
		if existing.Email == customer.Email {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateCustomer, customer.Email)
		}
		if existing.CPF != nil && customer.CPF != nil && *existing.CPF == *customer.CPF {
			return fmt.Errorf("%w: cpf already registered", domain.ErrDuplicateCustomer)
		}
	}

	s.customers[customer.ID] = *customer
	return nil
}

func (s *CustomerStore) FindByID(_ context.Context, id uuid.UUID) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, id)
	}

	return &c, nil
}

func (s *CustomerStore) FindByEmail(_ context.Context, email string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, c := range s.customers {
		if c.Email == email {
			return &c, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", domain.ErrCustomerNotFound, email)
}

func (s *CustomerStore) List(_ context.Context) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		result = append(result, c)
	}

	slices.SortFunc(result, func(a, b domain.Customer) int {
		return strings.Compare(a.Name, b.Name)
	})

	return result, nil
}

// OrderNumbers is a per-day counter kept in memory.
type OrderNumbers struct {
	mu       sync.Mutex
	counters map[string]int
}

func NewOrderNumbers() *OrderNumbers {
	return &OrderNumbers{counters: make(map[string]int)}
}

func (n *OrderNumbers) Next(_ context.Context, dateKey string) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.counters[dateKey]++
	return n.counters[dateKey], nil
}
