package midi

type cacheState uint8

const (
	notFetched cacheState = iota
	fetchedAbsent
	fetchedPresent
)

// CachedProperty caches one property value of a device-graph object.
//
// The cache distinguishes "never fetched", "fetched but absent" and "fetched
// with a value", so an absent property is not fetched again until the cache
// is invalidated. It is owned by a single goroutine and is not safe for
// concurrent use.
type CachedProperty[T comparable] struct {
	getter func() (T, bool)
	setter func(T)

	state cacheState
	value T
}

// NewCachedProperty returns an empty cache reading through getter and writing through setter.
func NewCachedProperty[T comparable](getter func() (T, bool), setter func(T)) CachedProperty[T] {
	return CachedProperty[T]{getter: getter, setter: setter}
}

// Value returns the cached value, fetching it first if needed.
// The boolean is false when the property has no value.
func (p *CachedProperty[T]) Value() (T, bool) {
	if p.state == notFetched {
		if v, ok := p.getter(); ok {
			p.value, p.state = v, fetchedPresent
		} else {
			var zero T
			p.value, p.state = zero, fetchedAbsent
		}
	}
	return p.value, p.state == fetchedPresent
}

// Set writes v unless it equals the cached value. After a write the cache
// is left empty, because the subsystem may store something other than v.
func (p *CachedProperty[T]) Set(v T) {
	if current, ok := p.Value(); ok && current == v {
		return
	}
	p.setter(v)
	p.Invalidate()
}

// Invalidate forgets the cached value without touching the subsystem.
func (p *CachedProperty[T]) Invalidate() {
	var zero T
	p.value, p.state = zero, notFetched
}

// IsCached reports whether a fetch result, present or absent, is held.
func (p *CachedProperty[T]) IsCached() bool {
	return p.state != notFetched
}
