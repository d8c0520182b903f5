// Package kv holds the durable key-value stores the cart snapshot is saved in.
// Every store reports an absent key as ok=false rather than an error.
package kv

import "errors"

var ErrEmptyKey = errors.New("kv: empty key")
