package domain

import (
	"bytes"
	"encoding/json"
)

// Optional models a three-way setting: unset (fall back to the next
// layer), explicitly empty, or an explicit value. A bare pointer cannot
// distinguish the first two for slice-typed settings, so overrides carry
// this wrapper instead.
type Optional[T any] struct {
	value T
	set   bool
}

// Some wraps an explicit value, including explicit zero values.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// None is the unset state.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// IsSet reports whether a value was explicitly configured.
func (o Optional[T]) IsSet() bool {
	return o.set
}

// Value returns the configured value, or the zero value when unset.
func (o Optional[T]) Value() T {
	return o.value
}

// Or returns the configured value when set, otherwise fallback.
func (o Optional[T]) Or(fallback T) T {
	if o.set {
		return o.value
	}
	return fallback
}

// MarshalJSON encodes unset as null so stored documents round-trip the
// unset/empty distinction.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON treats null (and absent keys, which never reach here) as
// unset.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Optional[T]{value: v, set: true}
	return nil
}
