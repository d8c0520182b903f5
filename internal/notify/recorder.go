package notify

import (
	"context"
	"sync"

	"RocketShoes/internal/cart"
)

const DefaultRecorderSize = 100

// Recorder keeps the most recent notifications in a fixed-size ring.
type Recorder struct {
	mu   sync.Mutex
	buf  []cart.Notification
	next int
	full bool
}

func NewRecorder(size int) *Recorder {
	if size <= 0 {
		size = DefaultRecorderSize
	}
	return &Recorder{buf: make([]cart.Notification, size)}
}

func (r *Recorder) Notify(_ context.Context, n cart.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = n
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Recent returns up to n notifications, newest first.
func (r *Recorder) Recent(n int) []cart.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.buf)
	}
	n = min(max(n, 0), size)

	out := make([]cart.Notification, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}
