// Package storefront talks to the catalog API: live stock checks and product
// metadata lookups for the cart.
package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"RocketShoes/internal/cart"
)

var (
	ErrNotFound    = errors.New("storefront: not found")
	ErrBadStatus   = errors.New("storefront: bad status")
	ErrUnavailable = errors.New("storefront: unavailable")
	ErrMalformed   = errors.New("storefront: malformed response")
)

const (
	defaultTimeout = 3 * time.Second
	maxBody        = 1 << 20
)

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: defaultTimeout},
	}
}

type stockResp struct {
	ID     *int `json:"id"`
	Amount *int `json:"amount"`
}

func (c *Client) GetStock(ctx context.Context, productID int) (cart.StockInfo, error) {
	var s stockResp
	if err := c.getJSON(ctx, "/stock/"+strconv.Itoa(productID), &s); err != nil {
		return cart.StockInfo{}, err
	}
	if s.Amount == nil || *s.Amount < 0 {
		return cart.StockInfo{}, fmt.Errorf("%w: stock amount for product %d", ErrMalformed, productID)
	}
	if s.ID != nil && *s.ID != productID {
		return cart.StockInfo{}, fmt.Errorf("%w: stock for product %d answered for %d", ErrMalformed, productID, *s.ID)
	}
	return cart.StockInfo{Amount: *s.Amount}, nil
}

func (c *Client) GetProduct(ctx context.Context, productID int) (cart.Product, error) {
	var p cart.Product
	if err := c.getJSON(ctx, "/products/"+strconv.Itoa(productID), &p); err != nil {
		return cart.Product{}, err
	}
	if p.ID != productID {
		return cart.Product{}, fmt.Errorf("%w: product %d answered for %d", ErrMalformed, productID, p.ID)
	}
	return p, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status=%d", ErrBadStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
