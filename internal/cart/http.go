package cart

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"RocketShoes/pkg/kit"
)

const (
	maxBodyBytes        = 1 << 16
	defaultNotifyLimit  = 20
	maxNotifyLimit      = 200
	readyPersistTimeout = 1 * time.Second
)

// NotificationLog lists recently emitted notifications, newest first.
type NotificationLog interface {
	Recent(n int) []Notification
}

// Pinger is implemented by Persisters that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	Store         *Store
	Notifications NotificationLog
	Log           *zap.Logger
}

type addReq struct {
	ProductID *int `json:"product_id"`
}

type updateReq struct {
	Amount *int `json:"amount"`
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.ready)

	r.Route("/cart", func(cr chi.Router) {
		cr.Get("/", s.get)
		cr.Post("/items", s.add)
		cr.Put("/items/{id}", s.update)
		cr.Delete("/items/{id}", s.remove)
	})

	r.Get("/notifications", s.notifications)

	return r
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	p, ok := s.Store.persist.(Pinger)
	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyPersistTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		if s.Log != nil {
			s.Log.Warn("readyz failed", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.Store.Cart())
}

func (s *Server) add(w http.ResponseWriter, r *http.Request) {
	var req addReq
	if err := kit.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if req.ProductID == nil {
		kit.WriteError(w, r, http.StatusBadRequest, "product_id required", nil)
		return
	}

	s.Store.AddProduct(r.Context(), *req.ProductID)
	kit.WriteJSON(w, http.StatusOK, s.Store.Cart())
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req updateReq
	if err := kit.DecodeJSON(w, r, maxBodyBytes, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if req.Amount == nil {
		kit.WriteError(w, r, http.StatusBadRequest, "amount required", nil)
		return
	}

	s.Store.UpdateProductAmount(r.Context(), id, *req.Amount)
	kit.WriteJSON(w, http.StatusOK, s.Store.Cart())
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := productIDParam(w, r)
	if !ok {
		return
	}

	s.Store.RemoveProduct(r.Context(), id)
	kit.WriteJSON(w, http.StatusOK, s.Store.Cart())
}

func (s *Server) notifications(w http.ResponseWriter, r *http.Request) {
	if s.Notifications == nil {
		kit.WriteJSON(w, http.StatusOK, []Notification{})
		return
	}

	limit := defaultNotifyLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			kit.WriteError(w, r, http.StatusBadRequest, "bad limit", map[string]any{"limit": v})
			return
		}
		limit = min(n, maxNotifyLimit)
	}

	kit.WriteJSON(w, http.StatusOK, s.Notifications.Recent(limit))
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad product id", map[string]any{"id": raw})
		return 0, false
	}
	return id, true
}
