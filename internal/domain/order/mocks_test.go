package order

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xenking/greencart/internal/domain/address"
	"github.com/xenking/greencart/internal/domain/payment"
	"github.com/xenking/greencart/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]product.Product
	getErr error
	calls  int
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	m.calls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []product.Product
	seen := make(map[string]bool)
	for _, id := range ids {
		if p, ok := m.byID[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, p)
		}
	}
	return out, nil
}

type mockAddressRepo struct {
	byID map[string]address.Address
}

func (m *mockAddressRepo) Add(_ context.Context, a *address.Address) error {
	m.byID[a.ID] = *a
	return nil
}

func (m *mockAddressRepo) ListByUser(_ context.Context, userID string) ([]address.Address, error) {
	var out []address.Address
	for _, a := range m.byID {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAddressRepo) GetByIDs(_ context.Context, ids []string) ([]address.Address, error) {
	var out []address.Address
	for _, id := range ids {
		if a, ok := m.byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// mockOrderRepo is an in-memory Repository with the same conditional
// transition semantics as the real stores.
type mockOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*Order
	seq       int
	createErr error
	applyErr  error
}

func newOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]*Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	o.ID = fmt.Sprintf("order-%d", m.seq)
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) Apply(_ context.Context, id string, t Transition) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applyErr != nil {
		return false, m.applyErr
	}
	o, ok := m.orders[id]
	if !ok {
		return false, ErrNotFound
	}
	if !t.Allows(o.Status) {
		return false, nil
	}
	o.Status = t.To
	if t.PaymentIntentID != "" {
		o.PaymentIntentID = t.PaymentIntentID
	}
	return true, nil
}

func (m *mockOrderRepo) list(keep func(*Order) bool) []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID string) ([]Order, error) {
	return m.list(func(o *Order) bool { return o.UserID == userID && o.Status != StatusCancelled }), nil
}

func (m *mockOrderRepo) ListForSeller(_ context.Context) ([]Order, error) {
	return m.list(func(o *Order) bool { return o.VisibleToSeller() }), nil
}

type mockGateway struct {
	createErr error
	lastReq   payment.CheckoutRequest
	// sessions maps payment intent ids to sessions.
	sessions map[string]*payment.Session
	getErr   error
}

func (m *mockGateway) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	m.lastReq = req
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &payment.Session{
		ID:  "cs_test_1",
		URL: "https://checkout.example.com/cs_test_1",
		Metadata: map[string]string{
			payment.MetadataOrderID: req.OrderID,
			payment.MetadataUserID:  req.UserID,
		},
	}, nil
}

func (m *mockGateway) SessionByPaymentIntent(_ context.Context, id string) (*payment.Session, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	return s, nil
}

type mockRecorder struct {
	events []Event
	err    error
}

func (m *mockRecorder) Record(_ context.Context, e Event) error {
	m.events = append(m.events, e)
	return m.err
}

func (m *mockRecorder) types() []EventType {
	out := make([]EventType, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

type mockCartClearer struct {
	cleared []string
	err     error
}

func (m *mockCartClearer) ClearCart(_ context.Context, userID string) error {
	if m.err != nil {
		return m.err
	}
	m.cleared = append(m.cleared, userID)
	return nil
}
