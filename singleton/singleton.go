package singleton

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Builder constructs the single instance of U. Implementations are usually
// empty structs; the builder type is the singleton's key.
type Builder[U any] interface {
	Build() U
}

type entry struct {
	build    func() any
	instance any
	// built is set after instance is stored; readers outside once must check it first
	built atomic.Bool
	once  sync.Once
}

func (e *entry) get() (any, bool) {
	if !e.built.Load() {
		return nil, false
	}
	return e.instance, true
}

var singletons sync.Map

func keyOf[B any]() reflect.Type {
	return reflect.TypeOf((*B)(nil)).Elem()
}

// Inject returns the instance for B, building it on first use.
func Inject[B Builder[T], T any]() T {
	var builder B
	value, _ := singletons.LoadOrStore(keyOf[B](), &entry{
		build: func() any { return builder.Build() },
	})
	e := value.(*entry)
	e.once.Do(func() {
		e.instance = e.build()
		e.built.Store(true)
	})
	return e.instance.(T)
}

// GetInstance returns the instance for B if Inject already built it.
func GetInstance[B Builder[T], T any]() (T, bool) {
	var zero T
	value, ok := singletons.Load(keyOf[B]())
	if !ok {
		return zero, false
	}
	instance, ok := value.(*entry).get()
	if !ok {
		return zero, false
	}
	return instance.(T), true
}

// Reset forgets the instance for B so the next Inject builds a fresh one.
// The previous instance is returned for cleanup.
func Reset[B Builder[T], T any]() (T, bool) {
	var zero T
	value, ok := singletons.LoadAndDelete(keyOf[B]())
	if !ok {
		return zero, false
	}
	instance, ok := value.(*entry).get()
	if !ok {
		return zero, false
	}
	return instance.(T), true
}
