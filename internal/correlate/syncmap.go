package correlate

import (
	"sync"
	"sync/atomic"
)

// syncMap is a typed sync.Map that also tracks its entry count.
type syncMap[K comparable, V comparable] struct {
	m sync.Map
	n atomic.Int64
}

func (s *syncMap[K, V]) Load(k K) (V, bool) {
	v, ok := s.m.Load(k)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Store sets k to v and returns the previous value, if any.
func (s *syncMap[K, V]) Store(k K, v V) (V, bool) {
	prev, loaded := s.m.Swap(k, v)
	if !loaded {
		s.n.Add(1)
		var zero V
		return zero, false
	}
	return prev.(V), true
}

func (s *syncMap[K, V]) LoadOrStore(k K, v V) (V, bool) {
	actual, loaded := s.m.LoadOrStore(k, v)
	if !loaded {
		s.n.Add(1)
	}
	return actual.(V), loaded
}

func (s *syncMap[K, V]) LoadAndDelete(k K) (V, bool) {
	v, loaded := s.m.LoadAndDelete(k)
	if !loaded {
		var zero V
		return zero, false
	}
	s.n.Add(-1)
	return v.(V), true
}

func (s *syncMap[K, V]) Delete(k K) bool {
	_, loaded := s.LoadAndDelete(k)
	return loaded
}

// CompareAndDelete deletes k only while it still maps to v.
func (s *syncMap[K, V]) CompareAndDelete(k K, v V) bool {
	if s.m.CompareAndDelete(k, v) {
		s.n.Add(-1)
		return true
	}
	return false
}

func (s *syncMap[K, V]) Range(fn func(K, V) bool) {
	s.m.Range(func(k, v any) bool {
		return fn(k.(K), v.(V))
	})
}

func (s *syncMap[K, V]) Len() int {
	return int(s.n.Load())
}
