package deploy

import (
	"encoding/json"
	"maps"
	"slices"
)

// Patch is a keyed update. Keys in Set are written as given and keys in
// Remove are deleted; on the wire a removed key is sent as null.
type Patch[V any] struct {
	Set    map[string]V
	Remove []string
}

// Diff builds the patch that turns remote into local: every local entry is
// set and every key only the remote has is removed.
func Diff[V, R any](local map[string]V, remote map[string]R) Patch[V] {
	p := Patch[V]{Set: make(map[string]V, len(local))}
	maps.Copy(p.Set, local)
	for _, k := range slices.Sorted(maps.Keys(remote)) {
		if _, ok := local[k]; !ok {
			p.Remove = append(p.Remove, k)
		}
	}
	return p
}

func (p Patch[V]) IsZero() bool {
	return len(p.Set) == 0 && len(p.Remove) == 0
}

func (p Patch[V]) MarshalJSON() ([]byte, error) {
	wire := make(map[string]any, len(p.Set)+len(p.Remove))
	for k, v := range p.Set {
		wire[k] = v
	}
	for _, k := range p.Remove {
		wire[k] = nil
	}
	return json.Marshal(wire)
}

func mapPatch[V, W any](p Patch[V], fn func(key string, v V) W) Patch[W] {
	out := Patch[W]{Set: make(map[string]W, len(p.Set)), Remove: p.Remove}
	for k, v := range p.Set {
		out.Set[k] = fn(k, v)
	}
	return out
}

type presence uint8

const (
	absent presence = iota
	null
	present
)

// Optional is a field that can be left out, sent as null or sent with a value.
type Optional[T any] struct {
	value T
	state presence
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, state: present}
}

func Null[T any]() Optional[T] {
	return Optional[T]{state: null}
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.state == present
}

func (o Optional[T]) IsNull() bool {
	return o.state == null
}

func (o Optional[T]) IsZero() bool {
	return o.state == absent
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.state != present {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}
