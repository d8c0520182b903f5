package notify

import (
	"context"

	"RocketShoes/internal/cart"
)

// Fanout delivers each notification to every sink in order.
type Fanout []cart.Notifier

func (f Fanout) Notify(ctx context.Context, n cart.Notification) {
	for _, s := range f {
		if s != nil {
			s.Notify(ctx, n)
		}
	}
}
