package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/greencart/pkg/cart"
)

var errSuperseded = errors.New("snapshot superseded")

// snapshot is the cart of a user at generation gen. Generations grow with
// every cart change, so a higher one always reflects a later cart.
type snapshot struct {
	userID string
	items  cart.Cart
	gen    uint64
}

// syncQueue pushes cart snapshots to the server one at a time. Only the
// latest queued snapshot is kept, and a push whose snapshot is older than
// the latest known generation is abandoned.
type syncQueue struct {
	push       func(ctx context.Context, s snapshot) error
	newBackOff func() backoff.BackOff
	maxTries   uint
	onFailure  func(err error)
	lg         *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	signal chan struct{}
	done   chan struct{}

	// sendMu serializes every request reaching the server.
	sendMu sync.Mutex

	mu      sync.Mutex
	latest  uint64
	pending *snapshot
	current *snapshot
	abort   context.CancelCauseFunc
	waiters []chan struct{}
}

func newSyncQueue(
	push func(ctx context.Context, s snapshot) error,
	newBackOff func() backoff.BackOff,
	maxTries uint,
	onFailure func(err error),
	lg *zap.Logger,
) *syncQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &syncQueue{
		push:       push,
		newBackOff: newBackOff,
		maxTries:   maxTries,
		onFailure:  onFailure,
		lg:         lg,
		ctx:        ctx,
		cancel:     cancel,
		signal:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go q.run()
	return q
}

// enqueue replaces any pending snapshot with s unless a later generation
// is already known.
func (q *syncQueue) enqueue(s snapshot) {
	q.mu.Lock()
	if s.gen < q.latest {
		q.mu.Unlock()
		return
	}
	q.latest = s.gen
	q.pending = &s
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// pushNow pushes s in the caller's goroutine, ahead of anything queued.
// Older pending or in flight snapshots are abandoned, and dropped reports
// whether there were any.
func (q *syncQueue) pushNow(ctx context.Context, s snapshot) (dropped bool, err error) {
	q.mu.Lock()
	if s.gen > q.latest {
		q.latest = s.gen
	}
	if q.pending != nil && q.pending.gen < s.gen {
		q.pending = nil
		dropped = true
	}
	if q.current != nil && q.current.gen < s.gen {
		q.abort(errSuperseded)
		dropped = true
	}
	q.wakeLocked()
	q.mu.Unlock()

	q.sendMu.Lock()
	defer q.sendMu.Unlock()
	if q.stale(s) {
		// A later snapshot carries this change.
		return dropped, nil
	}
	return dropped, q.push(ctx, s)
}

// discard drops the pending snapshot, if any.
func (q *syncQueue) discard() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.wakeLocked()
}

func (q *syncQueue) stale(s snapshot) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return s.gen < q.latest
}

// flush waits until nothing is pending or in flight.
func (q *syncQueue) flush(ctx context.Context) error {
	q.mu.Lock()
	if q.idleLocked() {
		q.mu.Unlock()
		return nil
	}
	wait := make(chan struct{})
	q.waiters = append(q.waiters, wait)
	q.mu.Unlock()

	select {
	case <-wait:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return nil
	}
}

func (q *syncQueue) close() {
	q.cancel()
	<-q.done
}

func (q *syncQueue) idleLocked() bool {
	return q.pending == nil && q.current == nil
}

func (q *syncQueue) wakeLocked() {
	if !q.idleLocked() {
		return
	}
	for _, w := range q.waiters {
		close(w)
	}
	q.waiters = nil
}

func (q *syncQueue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-q.signal:
		}
		for {
			q.mu.Lock()
			s := q.pending
			if s == nil {
				q.wakeLocked()
				q.mu.Unlock()
				break
			}
			ctx, abort := context.WithCancelCause(q.ctx)
			q.pending = nil
			q.current = s
			q.abort = abort
			q.mu.Unlock()

			q.send(ctx, *s)
			abort(nil)

			q.mu.Lock()
			q.current = nil
			q.abort = nil
			q.mu.Unlock()
		}
	}
}

func (q *syncQueue) send(ctx context.Context, s snapshot) {
	lg := q.lg.With(zap.String("user_id", s.userID), zap.Int("count", s.items.Count()))
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		q.sendMu.Lock()
		defer q.sendMu.Unlock()
		if q.stale(s) {
			return struct{}{}, backoff.Permanent(errSuperseded)
		}
		err := q.push(ctx, s)
		if err != nil && !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(q.newBackOff()),
		backoff.WithMaxTries(q.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			lg.Debug("Retry cart sync", zap.Error(err), zap.Duration("next", next))
		}),
	)
	switch {
	case err == nil:
		lg.Debug("Cart synced")
	case errors.Is(err, errSuperseded) || q.stale(s):
		lg.Debug("Cart sync superseded")
	case q.ctx.Err() != nil:
		lg.Debug("Cart sync stopped", zap.Error(err))
	default:
		lg.Warn("Cart sync failed", zap.Error(err))
		q.onFailure(err)
	}
}

// retryable reports whether a failed push may succeed when repeated.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) || errors.Is(err, ErrUnauthorized) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}
