package cart

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindOutOfStock          Kind = "OutOfStock"
	KindAddProductFailed    Kind = "AddProductFailed"
	KindProductNotInCart    Kind = "ProductNotInCart"
	KindRemoveProductFailed Kind = "RemoveProductFailed"
	KindUpdateProductFailed Kind = "UpdateProductFailed"
)

var messages = map[Kind]string{
	KindOutOfStock:          "Requested quantity is out of stock",
	KindAddProductFailed:    "Could not add the product",
	KindProductNotInCart:    "Product is not in the cart",
	KindRemoveProductFailed: "Could not remove the product",
	KindUpdateProductFailed: "Could not change the product amount",
}

func (k Kind) Message() string {
	if m, ok := messages[k]; ok {
		return m
	}
	return string(k)
}

type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	ProductID int       `json:"product_id"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
}

func NewNotification(kind Kind, productID int) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		ProductID: productID,
		Message:   kind.Message(),
		At:        time.Now().UTC(),
	}
}
