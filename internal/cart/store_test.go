package cart_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"RocketShoes/internal/cart"
	"RocketShoes/internal/kv"
	"RocketShoes/internal/notify"
)

var errLookup = errors.New("lookup failed")

type fakeStock struct {
	mu     sync.Mutex
	amount map[int]int
	err    error
	calls  int
}

func (f *fakeStock) GetStock(_ context.Context, id int) (cart.StockInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return cart.StockInfo{}, f.err
	}
	return cart.StockInfo{Amount: f.amount[id]}, nil
}

type fakeCatalog struct {
	err   error
	calls int
}

func (f *fakeCatalog) GetProduct(_ context.Context, id int) (cart.Product, error) {
	f.calls++
	if f.err != nil {
		return cart.Product{}, f.err
	}
	return cart.Product{ID: id, Title: "Sneaker", Price: 179.9, Image: "tenis1.jpg"}, nil
}

// flakyPersister fails every Set while failSet is true. With applyThenFail
// the value is written before the error is reported, like a write that
// lands after the client gave up waiting.
type flakyPersister struct {
	*kv.MemStore
	failSet       bool
	applyThenFail bool
	failGet       bool
}

func (p *flakyPersister) Get(ctx context.Context, key string) (string, bool, error) {
	if p.failGet {
		return "", false, errors.New("store unreachable")
	}
	return p.MemStore.Get(ctx, key)
}

func (p *flakyPersister) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.failSet {
		return errors.New("quota exceeded")
	}
	if p.applyThenFail {
		if err := p.MemStore.Set(ctx, key, value); err != nil {
			return err
		}
		return errors.New("write timed out")
	}
	return p.MemStore.Set(ctx, key, value)
}

type harness struct {
	store   *cart.Store
	stock   *fakeStock
	catalog *fakeCatalog
	persist *flakyPersister
	notes   *notify.Recorder
}

func item(id, amount int) cart.CartItem {
	return cart.CartItem{ID: id, Title: "Sneaker", Price: 179.9, Image: "tenis1.jpg", Amount: amount}
}

func newHarness(t *testing.T, stock map[int]int, initial cart.Cart) *harness {
	t.Helper()

	h := &harness{
		stock:   &fakeStock{amount: stock},
		catalog: &fakeCatalog{},
		persist: &flakyPersister{MemStore: kv.NewMemStore()},
		notes:   notify.NewRecorder(64),
	}

	if initial != nil {
		raw, err := cart.Encode(initial)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if err := h.persist.Set(context.Background(), cart.StorageKey, raw); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	s, err := cart.Open(context.Background(), cart.Deps{
		Stock:    h.stock,
		Catalog:  h.catalog,
		Persist:  h.persist,
		Notifier: h.notes,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h.store = s
	return h
}

func (h *harness) persisted(t *testing.T) string {
	t.Helper()
	raw, ok, err := h.persist.MemStore.Get(context.Background(), cart.StorageKey)
	if err != nil {
		t.Fatalf("persisted: %v", err)
	}
	if !ok {
		return ""
	}
	return raw
}

func (h *harness) requireKinds(t *testing.T, want ...cart.Kind) {
	t.Helper()
	got := h.notes.Recent(100)
	if len(got) != len(want) {
		t.Fatalf("notifications=%+v want kinds=%v", got, want)
	}
	// Recent is newest first
	for i, k := range want {
		if got[len(got)-1-i].Kind != k {
			t.Fatalf("notification[%d]=%s want=%s", i, got[len(got)-1-i].Kind, k)
		}
	}
}

// requireConsistent checks the persisted snapshot decodes to the in-memory cart.
func (h *harness) requireConsistent(t *testing.T) {
	t.Helper()
	raw := h.persisted(t)
	if raw == "" {
		if len(h.store.Cart()) != 0 {
			t.Fatalf("nothing persisted but cart=%+v", h.store.Cart())
		}
		return
	}
	got, err := cart.Decode(raw)
	if err != nil {
		t.Fatalf("decode persisted: %v", err)
	}
	if !reflect.DeepEqual(got, h.store.Cart()) {
		t.Fatalf("persisted=%+v memory=%+v", got, h.store.Cart())
	}
}

func TestAddProduct_NewItem(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5}, nil)

	h.store.AddProduct(context.Background(), 1)

	got := h.store.Cart()
	if len(got) != 1 || got[0].ID != 1 || got[0].Amount != 1 || got[0].Title != "Sneaker" {
		t.Fatalf("cart=%+v", got)
	}
	h.requireKinds(t)
	h.requireConsistent(t)
}

func TestAddProduct_AtStockLimit(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5}, cart.Cart{item(1, 5)})
	before := h.persisted(t)

	h.store.AddProduct(context.Background(), 1)

	if got := h.store.Cart(); !reflect.DeepEqual(got, cart.Cart{item(1, 5)}) {
		t.Fatalf("cart=%+v", got)
	}
	if after := h.persisted(t); after != before {
		t.Fatalf("snapshot changed: %s -> %s", before, after)
	}
	if h.catalog.calls != 0 {
		t.Fatalf("catalog called %d times", h.catalog.calls)
	}
	h.requireKinds(t, cart.KindOutOfStock)
}

func TestAddProduct_TwiceSequentially(t *testing.T) {
	h := newHarness(t, map[int]int{7: 2}, nil)
	ctx := context.Background()

	h.store.AddProduct(ctx, 7)
	h.store.AddProduct(ctx, 7)

	got := h.store.Cart()
	if len(got) != 1 || got[0].Amount != 2 {
		t.Fatalf("cart=%+v", got)
	}
	if h.catalog.calls != 1 {
		t.Fatalf("catalog calls=%d want=1", h.catalog.calls)
	}

	h.store.AddProduct(ctx, 7)
	if got := h.store.Cart(); got[0].Amount != 2 {
		t.Fatalf("amount=%d want=2", got[0].Amount)
	}
	h.requireKinds(t, cart.KindOutOfStock)
	h.requireConsistent(t)
}

func TestAddProduct_KeepsInsertionOrder(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5, 2: 5, 3: 5}, nil)
	ctx := context.Background()

	for _, id := range []int{3, 1, 2, 1} {
		h.store.AddProduct(ctx, id)
	}

	got := h.store.Cart()
	ids := []int{got[0].ID, got[1].ID, got[2].ID}
	if !reflect.DeepEqual(ids, []int{3, 1, 2}) {
		t.Fatalf("order=%v", ids)
	}
	if got[1].Amount != 2 {
		t.Fatalf("amount=%d", got[1].Amount)
	}
}

func TestAddProduct_LookupFailures(t *testing.T) {
	t.Run("stock", func(t *testing.T) {
		h := newHarness(t, map[int]int{1: 5}, nil)
		h.stock.err = errLookup

		h.store.AddProduct(context.Background(), 1)

		if len(h.store.Cart()) != 0 {
			t.Fatalf("cart=%+v", h.store.Cart())
		}
		h.requireKinds(t, cart.KindAddProductFailed)
	})

	t.Run("catalog", func(t *testing.T) {
		h := newHarness(t, map[int]int{1: 5}, nil)
		h.catalog.err = errLookup

		h.store.AddProduct(context.Background(), 1)

		if len(h.store.Cart()) != 0 {
			t.Fatalf("cart=%+v", h.store.Cart())
		}
		if h.persisted(t) != "" {
			t.Fatalf("snapshot written: %s", h.persisted(t))
		}
		h.requireKinds(t, cart.KindAddProductFailed)
	})
}

func TestAddProduct_ZeroStockForNewItem(t *testing.T) {
	h := newHarness(t, map[int]int{}, nil)

	h.store.AddProduct(context.Background(), 4)

	if len(h.store.Cart()) != 0 {
		t.Fatalf("cart=%+v", h.store.Cart())
	}
	h.requireKinds(t, cart.KindOutOfStock)
}

func TestRemoveProduct(t *testing.T) {
	h := newHarness(t, nil, cart.Cart{item(1, 1), item(2, 3), item(3, 1)})

	h.store.RemoveProduct(context.Background(), 2)

	want := cart.Cart{item(1, 1), item(3, 1)}
	if got := h.store.Cart(); !reflect.DeepEqual(got, want) {
		t.Fatalf("cart=%+v want=%+v", got, want)
	}
	h.requireKinds(t)
	h.requireConsistent(t)
}

func TestRemoveProduct_NotInCart(t *testing.T) {
	h := newHarness(t, nil, cart.Cart{item(2, 3)})

	h.store.RemoveProduct(context.Background(), 5)

	if got := h.store.Cart(); !reflect.DeepEqual(got, cart.Cart{item(2, 3)}) {
		t.Fatalf("cart=%+v", got)
	}
	h.requireKinds(t, cart.KindProductNotInCart)
}

func TestRemoveProduct_LastItemLeavesEmptyArray(t *testing.T) {
	h := newHarness(t, nil, cart.Cart{item(2, 3)})

	h.store.RemoveProduct(context.Background(), 2)

	if got := h.persisted(t); got != "[]" {
		t.Fatalf("snapshot=%s want=[]", got)
	}
	h.requireConsistent(t)
}

func TestUpdateProductAmount(t *testing.T) {
	h := newHarness(t, map[int]int{2: 4}, cart.Cart{item(2, 3)})

	h.store.UpdateProductAmount(context.Background(), 2, 4)

	if got := h.store.Cart(); got[0].Amount != 4 {
		t.Fatalf("amount=%d want=4", got[0].Amount)
	}
	h.requireKinds(t)
	h.requireConsistent(t)
}

func TestUpdateProductAmount_NonPositiveIsNoop(t *testing.T) {
	h := newHarness(t, map[int]int{2: 4}, cart.Cart{item(2, 3)})
	before := h.persisted(t)

	for _, amount := range []int{0, -1, -100} {
		h.store.UpdateProductAmount(context.Background(), 2, amount)
	}

	if got := h.store.Cart(); !reflect.DeepEqual(got, cart.Cart{item(2, 3)}) {
		t.Fatalf("cart=%+v", got)
	}
	if h.persisted(t) != before {
		t.Fatalf("snapshot changed")
	}
	if h.stock.calls != 0 {
		t.Fatalf("stock queried %d times", h.stock.calls)
	}
	h.requireKinds(t)
}

func TestUpdateProductAmount_OutOfStock(t *testing.T) {
	h := newHarness(t, map[int]int{2: 4}, cart.Cart{item(2, 3)})
	before := h.persisted(t)

	h.store.UpdateProductAmount(context.Background(), 2, 10)

	if got := h.store.Cart(); got[0].Amount != 3 {
		t.Fatalf("amount=%d want=3", got[0].Amount)
	}
	if h.persisted(t) != before {
		t.Fatalf("snapshot changed")
	}
	h.requireKinds(t, cart.KindOutOfStock)
}

func TestUpdateProductAmount_NotInCart(t *testing.T) {
	h := newHarness(t, map[int]int{9: 4}, cart.Cart{item(2, 3)})

	h.store.UpdateProductAmount(context.Background(), 9, 1)

	if got := h.store.Cart(); !reflect.DeepEqual(got, cart.Cart{item(2, 3)}) {
		t.Fatalf("cart=%+v", got)
	}
	h.requireKinds(t, cart.KindProductNotInCart)
}

func TestUpdateProductAmount_StockLookupFails(t *testing.T) {
	h := newHarness(t, map[int]int{2: 4}, cart.Cart{item(2, 3)})
	h.stock.err = errLookup

	h.store.UpdateProductAmount(context.Background(), 2, 1)

	if got := h.store.Cart(); got[0].Amount != 3 {
		t.Fatalf("amount=%d", got[0].Amount)
	}
	h.requireKinds(t, cart.KindUpdateProductFailed)
}

func TestPersistenceFailure_LeavesCartUntouched(t *testing.T) {
	initial := cart.Cart{item(1, 1), item(2, 2)}
	ctx := context.Background()

	cases := []struct {
		name string
		op   func(s *cart.Store)
		kind cart.Kind
	}{
		{"add existing", func(s *cart.Store) { s.AddProduct(ctx, 1) }, cart.KindAddProductFailed},
		{"add new", func(s *cart.Store) { s.AddProduct(ctx, 3) }, cart.KindAddProductFailed},
		{"remove", func(s *cart.Store) { s.RemoveProduct(ctx, 2) }, cart.KindRemoveProductFailed},
		{"update", func(s *cart.Store) { s.UpdateProductAmount(ctx, 2, 3) }, cart.KindUpdateProductFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, map[int]int{1: 5, 2: 5, 3: 5}, initial)
			before := h.persisted(t)
			h.persist.failSet = true

			tc.op(h.store)

			if got := h.store.Cart(); !reflect.DeepEqual(got, initial) {
				t.Fatalf("cart=%+v want=%+v", got, initial)
			}
			if h.persisted(t) != before {
				t.Fatalf("snapshot changed")
			}
			h.requireKinds(t, tc.kind)
		})
	}
}

func TestPersistenceFailure_AppliedWriteIsRolledBack(t *testing.T) {
	initial := cart.Cart{item(1, 1)}
	h := newHarness(t, map[int]int{1: 5}, initial)
	before := h.persisted(t)
	h.persist.applyThenFail = true

	h.store.AddProduct(context.Background(), 1)

	if got := h.store.Cart(); !reflect.DeepEqual(got, initial) {
		t.Fatalf("cart=%+v want=%+v", got, initial)
	}
	if h.persisted(t) != before {
		t.Fatalf("snapshot=%s want=%s", h.persisted(t), before)
	}
	h.requireKinds(t, cart.KindAddProductFailed)
}

func TestCommit_IgnoresCallerCancellation(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.store.AddProduct(ctx, 1)

	if got := h.store.Cart(); len(got) != 1 || got[0].Amount != 1 {
		t.Fatalf("cart=%+v", got)
	}
	h.requireConsistent(t)
	h.requireKinds(t)
}

func TestCart_ReturnsCopy(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5}, cart.Cart{item(1, 1)})

	c := h.store.Cart()
	c[0].Amount = 99

	if got := h.store.Cart(); got[0].Amount != 1 {
		t.Fatalf("store mutated through copy: %+v", got)
	}
}

func TestCommit_DoesNotMutatePreviousSnapshot(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5}, cart.Cart{item(1, 1)})

	var seen []cart.Cart
	unsubscribe := h.store.Subscribe(cart.ObserverFunc(func(c cart.Cart) { seen = append(seen, c) }))

	h.store.AddProduct(context.Background(), 1)
	h.store.AddProduct(context.Background(), 1)
	unsubscribe()
	h.store.AddProduct(context.Background(), 1)

	if len(seen) != 2 {
		t.Fatalf("observer calls=%d want=2", len(seen))
	}
	if seen[0][0].Amount != 2 || seen[1][0].Amount != 3 {
		t.Fatalf("observed amounts %d,%d", seen[0][0].Amount, seen[1][0].Amount)
	}
	if got := h.store.Cart(); got[0].Amount != 4 {
		t.Fatalf("amount=%d want=4", got[0].Amount)
	}
}

func TestObserver_CanCallBackIntoStore(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5, 2: 5}, nil)
	ctx := context.Background()

	// the nested commit publishes again on the same goroutine
	reacted := false
	h.store.Subscribe(cart.ObserverFunc(func(c cart.Cart) {
		if reacted {
			return
		}
		reacted = true
		h.store.AddProduct(ctx, 2)
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.store.AddProduct(ctx, 1)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("AddProduct called from an observer did not return")
	}

	got := h.store.Cart()
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 2 {
		t.Fatalf("cart=%+v", got)
	}
	h.requireConsistent(t)
}

func TestNotifier_CanCallBackIntoStore(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5}, cart.Cart{item(1, 1)})
	ctx := context.Background()

	reacted := false
	h.store = reopenWithNotifier(t, h, cart.NotifierFunc(func(ctx context.Context, n cart.Notification) {
		if reacted {
			return
		}
		reacted = true
		h.store.RemoveProduct(ctx, 1)
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.store.RemoveProduct(ctx, 9)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("RemoveProduct called from the notifier did not return")
	}

	if got := h.store.Cart(); len(got) != 0 {
		t.Fatalf("cart=%+v", got)
	}
}

func reopenWithNotifier(t *testing.T, h *harness, n cart.Notifier) *cart.Store {
	t.Helper()
	s, err := cart.Open(context.Background(), cart.Deps{
		Stock:    h.stock,
		Catalog:  h.catalog,
		Persist:  h.persist,
		Notifier: n,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestOpen_Snapshots(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want cart.Cart
	}{
		{"valid", `[{"id":1,"title":"Sneaker","price":179.9,"image":"tenis1.jpg","amount":2}]`, cart.Cart{item(1, 2)}},
		{"garbage", `{not json`, cart.Cart{}},
		{"null", `null`, cart.Cart{}},
		{"duplicate ids", `[{"id":1,"amount":1},{"id":1,"amount":2}]`, cart.Cart{}},
		{"zero amount", `[{"id":1,"amount":0}]`, cart.Cart{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := kv.NewMemStore()
			if err := p.Set(context.Background(), cart.StorageKey, tc.raw); err != nil {
				t.Fatalf("seed: %v", err)
			}

			s, err := cart.Open(context.Background(), cart.Deps{
				Stock:   &fakeStock{},
				Catalog: &fakeCatalog{},
				Persist: p,
			})
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if got := s.Cart(); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("cart=%+v want=%+v", got, tc.want)
			}
		})
	}
}

func TestOpen_ReadErrorIsReturned(t *testing.T) {
	_, err := cart.Open(context.Background(), cart.Deps{
		Stock:   &fakeStock{},
		Catalog: &fakeCatalog{},
		Persist: &flakyPersister{MemStore: kv.NewMemStore(), failGet: true},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpen_RequiresCollaborators(t *testing.T) {
	if _, err := cart.Open(context.Background(), cart.Deps{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpen_SurvivesRestart(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5, 2: 5}, nil)
	ctx := context.Background()

	h.store.AddProduct(ctx, 1)
	h.store.AddProduct(ctx, 2)
	h.store.UpdateProductAmount(ctx, 2, 4)

	reopened, err := cart.Open(ctx, cart.Deps{
		Stock:   h.stock,
		Catalog: h.catalog,
		Persist: h.persist,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !reflect.DeepEqual(reopened.Cart(), h.store.Cart()) {
		t.Fatalf("reopened=%+v original=%+v", reopened.Cart(), h.store.Cart())
	}
}

func TestConcurrentAdds_NeverExceedStock(t *testing.T) {
	h := newHarness(t, map[int]int{1: 5, 2: 3}, nil)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 40; i++ {
		id := 1 + i%2
		g.Go(func() error {
			h.store.AddProduct(ctx, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	got := h.store.Cart()
	if len(got) != 2 {
		t.Fatalf("cart=%+v", got)
	}
	for _, it := range got {
		if it.Amount != h.stock.amount[it.ID] {
			t.Fatalf("product %d amount=%d want=%d", it.ID, it.Amount, h.stock.amount[it.ID])
		}
	}
	// 20 attempts per id against stock 5 and 3
	if n := h.notes.Len(); n != 32 {
		t.Fatalf("notifications=%d want=32", n)
	}
	h.requireConsistent(t)
}
