package cart

import "context"

// StockOracle reports how many units of a product are available.
type StockOracle interface {
	GetStock(ctx context.Context, productID int) (StockInfo, error)
}

// ProductCatalog reports product metadata.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID int) (Product, error)
}

// Persister is a durable string key-value store. Get reports ok=false for an absent key.
type Persister interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Notifier surfaces user-facing outcome messages. It must not block for long.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Observer receives every committed cart.
type Observer interface {
	CartChanged(c Cart)
}

type ObserverFunc func(c Cart)

func (f ObserverFunc) CartChanged(c Cart) { f(c) }
