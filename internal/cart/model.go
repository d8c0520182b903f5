package cart

type Product struct {
	ID    int     `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

type CartItem struct {
	ID     int     `json:"id"`
	Title  string  `json:"title"`
	Price  float64 `json:"price"`
	Image  string  `json:"image"`
	Amount int     `json:"amount"`
}

// Cart is ordered by first insertion. Ids are unique.
type Cart []CartItem

type StockInfo struct {
	Amount int `json:"amount"`
}

func newItem(p Product, amount int) CartItem {
	return CartItem{
		ID:     p.ID,
		Title:  p.Title,
		Price:  p.Price,
		Image:  p.Image,
		Amount: amount,
	}
}

func (c Cart) index(productID int) int {
	for i, it := range c {
		if it.ID == productID {
			return i
		}
	}
	return -1
}

// Find returns the entry for productID, if any.
func (c Cart) Find(productID int) (CartItem, bool) {
	if i := c.index(productID); i >= 0 {
		return c[i], true
	}
	return CartItem{}, false
}

// Clone returns a copy with its own backing array.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

func (c Cart) withAmount(i, amount int) Cart {
	next := c.Clone()
	next[i].Amount = amount
	return next
}

func (c Cart) withAppended(it CartItem) Cart {
	next := make(Cart, 0, len(c)+1)
	next = append(next, c...)
	return append(next, it)
}

func (c Cart) without(i int) Cart {
	next := make(Cart, 0, len(c)-1)
	next = append(next, c[:i]...)
	return append(next, c[i+1:]...)
}

// Quantity is the sum of all amounts.
func (c Cart) Quantity() int {
	n := 0
	for _, it := range c {
		n += it.Amount
	}
	return n
}
