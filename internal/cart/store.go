package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("RocketShoes/internal/cart")

type Deps struct {
	Stock    StockOracle
	Catalog  ProductCatalog
	Persist  Persister
	Notifier Notifier

	Log     *zap.Logger
	Metrics *Metrics

	// Key overrides StorageKey.
	Key string
}

// Store owns the shopper's cart. Every mutation runs validate, build, commit
// under one writer lock; readers only ever see committed snapshots. Observers
// and the Notifier are called after the lock is released.
type Store struct {
	stock    StockOracle
	catalog  ProductCatalog
	persist  Persister
	notifier Notifier
	log      *zap.Logger
	metrics  *Metrics
	key      string

	writeMu sync.Mutex

	mu      sync.RWMutex
	cart    Cart
	version uint64

	obsMu     sync.Mutex
	nextObsID int
	observers map[int]Observer
}

// Open builds a Store from the persisted snapshot. An absent or undecodable
// snapshot yields an empty cart; a read error from the Persister is returned.
func Open(ctx context.Context, deps Deps) (*Store, error) {
	if deps.Stock == nil || deps.Catalog == nil || deps.Persist == nil {
		return nil, errors.New("cart: stock, catalog and persister are required")
	}

	s := &Store{
		stock:     deps.Stock,
		catalog:   deps.Catalog,
		persist:   deps.Persist,
		notifier:  deps.Notifier,
		log:       deps.Log,
		metrics:   deps.Metrics,
		key:       deps.Key,
		cart:      Cart{},
		observers: make(map[int]Observer),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.notifier == nil {
		s.notifier = NotifierFunc(func(context.Context, Notification) {})
	}
	if s.key == "" {
		s.key = StorageKey
	}

	raw, ok, err := s.persist.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("cart: load snapshot: %w", err)
	}
	if ok {
		c, err := Decode(raw)
		if err != nil {
			s.log.Warn("discarding stored cart", zap.String("key", s.key), zap.Error(err))
		} else {
			s.cart = c
		}
	}

	s.metrics.setLines(len(s.cart))
	s.log.Info("cart loaded", zap.Int("lines", len(s.cart)), zap.Int("quantity", s.cart.Quantity()))
	return s, nil
}

// Cart returns a copy of the last committed cart.
func (s *Store) Cart() Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

func (s *Store) current() Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart
}

// Subscribe registers o for commit events. The returned func unregisters it.
func (s *Store) Subscribe(o Observer) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = o

	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

// outcome is what a mutation leaves to deliver once writeMu is released:
// either a committed cart for observers or a notification kind.
type outcome struct {
	committed Cart
	version   uint64
	kind      Kind
}

func (s *Store) AddProduct(ctx context.Context, productID int) {
	ctx, span := startSpan(ctx, "cart.AddProduct", productID)
	defer span.End()

	s.deliver(ctx, productID, s.add(ctx, span, productID))
}

func (s *Store) add(ctx context.Context, span trace.Span, productID int) outcome {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current()
	i := cur.index(productID)

	currentAmount := 0
	if i >= 0 {
		currentAmount = cur[i].Amount
	}

	stock, err := s.stock.GetStock(ctx, productID)
	if err != nil {
		return s.fail(span, opAdd, KindAddProductFailed, productID, fmt.Errorf("stock lookup: %w", err))
	}

	nextAmount := currentAmount + 1
	if nextAmount > stock.Amount {
		return s.reject(span, opAdd, KindOutOfStock, productID,
			zap.Int("requested", nextAmount), zap.Int("stock", stock.Amount))
	}

	var next Cart
	if i >= 0 {
		next = cur.withAmount(i, nextAmount)
	} else {
		p, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			return s.fail(span, opAdd, KindAddProductFailed, productID, fmt.Errorf("product lookup: %w", err))
		}
		p.ID = productID
		next = cur.withAppended(newItem(p, 1))
	}

	v, err := s.commit(ctx, cur, next)
	if err != nil {
		return s.fail(span, opAdd, KindAddProductFailed, productID, err)
	}
	s.metrics.observe(opAdd, outcomeOK)
	return outcome{committed: next, version: v}
}

func (s *Store) RemoveProduct(ctx context.Context, productID int) {
	ctx, span := startSpan(ctx, "cart.RemoveProduct", productID)
	defer span.End()

	s.deliver(ctx, productID, s.remove(ctx, span, productID))
}

func (s *Store) remove(ctx context.Context, span trace.Span, productID int) outcome {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current()
	i := cur.index(productID)
	if i < 0 {
		return s.reject(span, opRemove, KindProductNotInCart, productID)
	}

	next := cur.without(i)
	v, err := s.commit(ctx, cur, next)
	if err != nil {
		return s.fail(span, opRemove, KindRemoveProductFailed, productID, err)
	}
	s.metrics.observe(opRemove, outcomeOK)
	return outcome{committed: next, version: v}
}

// UpdateProductAmount sets the amount of an entry already in the cart.
// Non-positive amounts are ignored without notification.
func (s *Store) UpdateProductAmount(ctx context.Context, productID, amount int) {
	if amount <= 0 {
		s.metrics.observe(opUpdate, outcomeNoop)
		return
	}

	ctx, span := startSpan(ctx, "cart.UpdateProductAmount", productID)
	span.SetAttributes(attribute.Int("cart.amount", amount))
	defer span.End()

	s.deliver(ctx, productID, s.update(ctx, span, productID, amount))
}

func (s *Store) update(ctx context.Context, span trace.Span, productID, amount int) outcome {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	stock, err := s.stock.GetStock(ctx, productID)
	if err != nil {
		return s.fail(span, opUpdate, KindUpdateProductFailed, productID, fmt.Errorf("stock lookup: %w", err))
	}
	if amount > stock.Amount {
		return s.reject(span, opUpdate, KindOutOfStock, productID,
			zap.Int("requested", amount), zap.Int("stock", stock.Amount))
	}

	cur := s.current()
	i := cur.index(productID)
	if i < 0 {
		return s.reject(span, opUpdate, KindProductNotInCart, productID)
	}

	next := cur.withAmount(i, amount)
	v, err := s.commit(ctx, cur, next)
	if err != nil {
		return s.fail(span, opUpdate, KindUpdateProductFailed, productID, err)
	}
	s.metrics.observe(opUpdate, outcomeOK)
	return outcome{committed: next, version: v}
}

// commit persists next and only then swaps it in. Caller holds writeMu.
// The write is detached from ctx cancellation; if it still fails, prev is
// written back in case the store applied next before reporting the error.
func (s *Store) commit(ctx context.Context, prev, next Cart) (uint64, error) {
	raw, err := Encode(next)
	if err != nil {
		return 0, fmt.Errorf("encode cart: %w", err)
	}

	ctx = context.WithoutCancel(ctx)
	if err := s.persist.Set(ctx, s.key, raw); err != nil {
		if old, encErr := Encode(prev); encErr == nil {
			if rerr := s.persist.Set(ctx, s.key, old); rerr != nil {
				s.log.Warn("restore previous cart snapshot failed", zap.Error(rerr))
			}
		}
		return 0, fmt.Errorf("persist cart: %w", err)
	}

	s.mu.Lock()
	s.cart = next
	s.version++
	v := s.version
	s.mu.Unlock()

	s.metrics.setLines(len(next))
	return v, nil
}

// deliver runs after writeMu is released, so observers and sinks may call
// back into the Store.
func (s *Store) deliver(ctx context.Context, productID int, o outcome) {
	if o.kind != "" {
		s.notifier.Notify(ctx, NewNotification(o.kind, productID))
		return
	}
	if o.version != 0 {
		s.publish(o.committed, o.version)
	}
}

// publish hands c to every observer unless a newer commit already landed;
// that commit's own publish supersedes this one.
func (s *Store) publish(c Cart, version uint64) {
	s.mu.RLock()
	stale := version < s.version
	s.mu.RUnlock()
	if stale {
		return
	}

	s.obsMu.Lock()
	obs := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		obs = append(obs, o)
	}
	s.obsMu.Unlock()

	for _, o := range obs {
		o.CartChanged(c.Clone())
	}
}

func (s *Store) reject(span trace.Span, op string, kind Kind, productID int, fields ...zap.Field) outcome {
	span.SetAttributes(attribute.String("cart.outcome", string(kind)))
	s.log.Info("cart operation rejected",
		append([]zap.Field{zap.String("op", op), zap.String("kind", string(kind)), zap.Int("product_id", productID)}, fields...)...)
	s.metrics.observe(op, string(kind))
	return outcome{kind: kind}
}

func (s *Store) fail(span trace.Span, op string, kind Kind, productID int, err error) outcome {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))
	s.log.Warn("cart operation failed",
		zap.String("op", op), zap.String("kind", string(kind)), zap.Int("product_id", productID), zap.Error(err))
	s.metrics.observe(op, string(kind))
	return outcome{kind: kind}
}

func startSpan(ctx context.Context, name string, productID int) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.Int("cart.product_id", productID)))
}
