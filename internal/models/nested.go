package models

import (
	"bytes"
	"encoding/json"
)

// Nested is a child collection inside an update payload. The zero value
// leaves the persisted collection untouched; any decoded JSON array,
// including an empty one, replaces it.
type Nested[T any] struct {
	items []T
	set   bool
}

// NoChange returns a Nested that leaves the collection untouched.
func NoChange[T any]() Nested[T] {
	return Nested[T]{}
}

// ReplaceWith returns a Nested that replaces the collection with items.
func ReplaceWith[T any](items ...T) Nested[T] {
	if items == nil {
		items = []T{}
	}
	return Nested[T]{items: items, set: true}
}

func (n Nested[T]) IsSet() bool {
	return n.set
}

func (n Nested[T]) Items() []T {
	return n.items
}

func (n *Nested[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = Nested[T]{}
		return nil
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*n = ReplaceWith(items...)
	return nil
}

func (n Nested[T]) MarshalJSON() ([]byte, error) {
	if !n.set {
		return []byte("null"), nil
	}
	return json.Marshal(n.items)
}
