package model

import (
	"bytes"
	"encoding/json"
)

// Optional marks a field whose absence is meaningful. Set is false when the
// producer did not supply the key at all, which is distinct from a supplied
// zero value such as "" or false.
type Optional[T any] struct {
	Value T
	Set   bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Set
}

func (o Optional[T]) OrElse(def T) T {
	if !o.Set {
		return def
	}
	return o.Value
}

// IsZero lets encoding/json drop unset fields under the omitzero option.
func (o Optional[T]) IsZero() bool {
	return !o.Set
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	// A supplied list stays a list even when it holds no elements.
	if s, ok := any(o.Value).([]string); ok && s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON treats an explicit null as "not provided".
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
