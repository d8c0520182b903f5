package cart

import (
	"encoding/json"
	"errors"
	"fmt"
)

// StorageKey is the Persistent Store key holding the serialized cart.
const StorageKey = "@RocketShoes:cart"

var ErrInvalidSnapshot = errors.New("invalid cart snapshot")

func Encode(c Cart) (string, error) {
	if c == nil {
		c = Cart{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func Decode(s string) (Cart, error) {
	var c Cart
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: not an array", ErrInvalidSnapshot)
	}

	seen := make(map[int]struct{}, len(c))
	for _, it := range c {
		if it.Amount < 1 {
			return nil, fmt.Errorf("%w: product %d has amount %d", ErrInvalidSnapshot, it.ID, it.Amount)
		}
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product %d", ErrInvalidSnapshot, it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	return c, nil
}
