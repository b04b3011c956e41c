package cognitive

import (
	"context"
	"sync"
)

// Interceptor transforms a value on its way through the client.
type Interceptor[T any] func(ctx context.Context, v T) (T, error)

type interceptorEntry[T any] struct {
	id int
	fn Interceptor[T]
}

// InterceptorManager runs registered interceptors in registration order.
type InterceptorManager[T any] struct {
	mu      sync.RWMutex
	nextID  int
	entries []interceptorEntry[T]
}

// Use registers fn and returns an id for Eject.
func (m *InterceptorManager[T]) Use(fn Interceptor[T]) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.entries = append(m.entries, interceptorEntry[T]{id: m.nextID, fn: fn})
	return m.nextID
}

// Eject removes the interceptor registered under id. Unknown ids are ignored.
func (m *InterceptorManager[T]) Eject(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.entries {
		if e.id == id {
			m.entries = append(m.entries[:i:i], m.entries[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered interceptors.
func (m *InterceptorManager[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Run threads v through every interceptor, stopping at the first error or
// when ctx is done.
func (m *InterceptorManager[T]) Run(ctx context.Context, v T) (T, error) {
	m.mu.RLock()
	entries := append([]interceptorEntry[T](nil), m.entries...)
	m.mu.RUnlock()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return v, err
		}
		next, err := e.fn(ctx, v)
		if err != nil {
			return v, err
		}
		v = next
	}
	return v, nil
}

// Interceptors groups the request and response chains of a client. Clones
// share the same managers.
type Interceptors struct {
	Request  *InterceptorManager[*Request]
	Response *InterceptorManager[*Response]
}

func newInterceptors() Interceptors {
	return Interceptors{
		Request:  &InterceptorManager[*Request]{},
		Response: &InterceptorManager[*Response]{},
	}
}
