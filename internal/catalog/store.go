package catalog

import (
	"context"
	"errors"
)

type Product struct {
	ID    int     `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

type Stock struct {
	ID     int `json:"id"`
	Amount int `json:"amount"`
}

var ErrNegativeStock = errors.New("stock amount must be >= 0")

type Store interface {
	Ping(ctx context.Context) error
	ListSortedByID(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int) (Product, bool, error)
	GetStock(ctx context.Context, id int) (Stock, bool, error)
	// SetStock reports false when the product has no stock row.
	SetStock(ctx context.Context, id, amount int) (bool, error)
}

const imageBase = "https://rocketseat-cdn.s3-sa-east-1.amazonaws.com/modulo-redux/"

func seedProducts() []Product {
	return []Product{
		{ID: 1, Title: "Lightweight Comfortable Walking Sneaker", Price: 179.9, Image: imageBase + "tenis1.jpg"},
		{ID: 2, Title: "VR Walking Sneaker Leather Details", Price: 139.9, Image: imageBase + "tenis2.jpg"},
		{ID: 3, Title: "Adidas Duramo Lite 2.0 Sneaker", Price: 219.9, Image: imageBase + "tenis3.jpg"},
		{ID: 5, Title: "VR Walking Sneaker Mesh", Price: 139.9, Image: imageBase + "tenis2.jpg"},
		{ID: 6, Title: "Adidas Duramo Lite 2.0 Sneaker Black", Price: 219.9, Image: imageBase + "tenis3.jpg"},
		{ID: 4, Title: "Lightweight Running Sneaker", Price: 179.9, Image: imageBase + "tenis1.jpg"},
	}
}

func seedStock() map[int]int {
	return map[int]int{1: 3, 2: 5, 3: 2, 4: 1, 5: 5, 6: 10}
}
