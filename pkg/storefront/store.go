// Package storefront is the client side of the GreenCart API: a session
// Store holding the cart, the signed-in user and a catalog snapshot, which
// mirrors cart changes to the server.
package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/greencart/internal/oas"
	"github.com/xenking/greencart/pkg/cart"
)

// CartSyncer persists a cart snapshot on the server.
type CartSyncer interface {
	UpdateCart(ctx context.Context, userID string, items cart.Cart) error
}

// Notifier surfaces cart feedback to the user.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

// Success implements Notifier.
func (NopNotifier) Success(string) {}

// Error implements Notifier.
func (NopNotifier) Error(string) {}

// Options configures a Store.
type Options struct {
	Syncer   CartSyncer
	Notifier Notifier
	Logger   *zap.Logger
	// BackOff creates the retry policy of one background push. Defaults to
	// exponential backoff.
	BackOff func() backoff.BackOff
	// MaxTries bounds attempts of one background push. Defaults to 5.
	MaxTries uint
}

// Store is the single mutation surface of a storefront session. It is safe
// for concurrent use; readers get copies.
type Store struct {
	syncer   CartSyncer
	notifier Notifier
	lg       *zap.Logger
	queue    *syncQueue

	mu      sync.Mutex
	cart    cart.Cart
	gen     uint64
	user    *oas.User
	catalog catalog
}

// NewStore creates a Store. Close must be called to stop its background
// sync.
func NewStore(opts Options) *Store {
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.BackOff == nil {
		opts.BackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		}
	}
	if opts.MaxTries == 0 {
		opts.MaxTries = 5
	}
	s := &Store{
		syncer:   opts.Syncer,
		notifier: opts.Notifier,
		lg:       opts.Logger,
		cart:     cart.New(),
		catalog:  catalog{},
	}
	s.queue = newSyncQueue(s.push, opts.BackOff, opts.MaxTries, func(err error) {
		s.notifier.Error(failureMessage(err))
	}, s.lg.Named("sync"))
	return s
}

// Close stops background sync. Pending snapshots are dropped; call Flush
// first to deliver them.
func (s *Store) Close() {
	s.queue.close()
}

// Flush waits for queued cart snapshots to be pushed or given up.
func (s *Store) Flush(ctx context.Context) error {
	return s.queue.flush(ctx)
}

// SignIn sets the current user and adopts the server copy of their cart.
func (s *Store) SignIn(u *oas.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	cp.CartItems = u.CartItems.Clone().Normalize()
	s.user = &cp
	s.cart = cp.CartItems.Clone()
}

// SignOut forgets the user and empties the cart without syncing.
func (s *Store) SignOut() {
	s.mu.Lock()
	s.user = nil
	s.cart = cart.New()
	s.mu.Unlock()
	s.queue.discard()
}

// User returns the signed-in user, or nil.
func (s *Store) User() *oas.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	cp := *s.user
	cp.CartItems = s.cart.Clone()
	return &cp
}

// SetCatalog replaces the catalog snapshot used for pricing.
func (s *Store) SetCatalog(products []oas.Product) {
	c := make(catalog, len(products))
	for _, p := range products {
		c[p.ID] = p
	}
	s.mu.Lock()
	s.catalog = c
	s.mu.Unlock()
}

// Product returns a product from the catalog snapshot.
func (s *Store) Product(id string) (oas.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.catalog[id]
	return p, ok
}

// Cart returns a copy of the cart.
func (s *Store) Cart() cart.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

// Count returns the number of units in the cart.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Count()
}

// Amount prices the cart against the catalog snapshot, floored to cents.
// Items missing from the snapshot are skipped and returned.
func (s *Store) Amount() (decimal.Decimal, []string) {
	s.mu.Lock()
	total, missing := s.cart.Amount(s.catalog)
	s.mu.Unlock()
	if len(missing) > 0 {
		s.lg.Warn("Cart items missing from catalog", zap.Strings("product_ids", missing))
	}
	return total, missing
}

// Add puts one more unit of productID in the cart.
func (s *Store) Add(productID string) {
	s.mutate(func(c cart.Cart) error {
		c.Add(productID)
		return nil
	})
	s.notifier.Success("Added to Cart")
}

// SetQuantity sets the quantity of productID. Quantities below one are
// rejected with cart.ErrInvalidQuantity.
func (s *Store) SetQuantity(productID string, quantity int) error {
	if err := s.mutate(func(c cart.Cart) error {
		return c.SetQuantity(productID, quantity)
	}); err != nil {
		return err
	}
	s.notifier.Success("Cart Updated")
	return nil
}

// mutate applies fn and queues the resulting snapshot when signed in.
func (s *Store) mutate(fn func(c cart.Cart) error) error {
	s.mu.Lock()
	if err := fn(s.cart); err != nil {
		s.mu.Unlock()
		return err
	}
	snap, signedIn := s.snapshotLocked()
	s.mu.Unlock()

	if signedIn {
		s.queue.enqueue(snap)
	}
	return nil
}

// Remove takes productID out of the cart, one unit at a time unless force
// is set. The change is applied immediately and pushed synchronously, ahead
// of queued changes. When the push fails the cart is restored and the error
// returned.
func (s *Store) Remove(ctx context.Context, productID string, force bool) error {
	s.mu.Lock()
	prev := s.cart.Clone()
	s.cart.Remove(productID, force)
	snap, signedIn := s.snapshotLocked()
	s.mu.Unlock()

	if !signedIn {
		s.notifier.Success("Removed from Cart")
		return nil
	}

	dropped, err := s.queue.pushNow(ctx, snap)
	if err != nil {
		s.revert(snap, prev, dropped)
		s.lg.Warn("Cart remove reverted", zap.String("product_id", productID), zap.Error(err))
		s.notifier.Error(failureMessage(err))
		return errors.Wrap(err, "sync cart")
	}
	s.notifier.Success("Removed from Cart")
	return nil
}

// revert restores prev after the push of snap failed. Changes dropped in
// favor of snap are queued again.
func (s *Store) revert(snap snapshot, prev cart.Cart, dropped bool) {
	s.mu.Lock()
	if s.gen != snap.gen {
		// A later change is queued and carries the cart to the server.
		s.mu.Unlock()
		return
	}
	s.cart = prev
	resync, signedIn := s.snapshotLocked()
	s.mu.Unlock()

	if dropped && signedIn {
		s.queue.enqueue(resync)
	}
}

func (s *Store) snapshotLocked() (snapshot, bool) {
	if s.user == nil {
		return snapshot{}, false
	}
	s.gen++
	return snapshot{userID: s.user.ID, items: s.cart.Clone(), gen: s.gen}, true
}

func (s *Store) push(ctx context.Context, snap snapshot) error {
	if s.syncer == nil {
		return nil
	}
	return s.syncer.UpdateCart(ctx, snap.userID, snap.items)
}

func failureMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Failed to update cart"
}

// catalog implements cart.PriceLookup over a product snapshot.
type catalog map[string]oas.Product

func (c catalog) OfferPrice(id string) (decimal.Decimal, bool) {
	p, ok := c[id]
	if !ok {
		return decimal.Zero, false
	}
	return p.OfferPrice, true
}
