// Package observable provides the push primitives shared by the client:
// Value, a container that replays its latest value to new subscribers, and
// Feed, a plain fan-out of events.
//
// Deliveries to one subscriber never overlap and arrive in the order the
// values were stored. A subscriber may call back into the container that is
// delivering to it; such calls are queued behind the current delivery. A
// subscriber blocked in its callback delays only its own deliveries.
package observable

// Value holds a single current value and notifies subscribers when it changes.
type Value[T any] struct {
	d     dispatcher[T]
	value T
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{value: initial}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.d.lock.Lock()
	defer v.d.lock.Unlock()
	return v.value
}

// Store replaces the current value and queues a notification without
// delivering it. Callers that need to update the value while holding their
// own locks call Store under the lock and Flush after releasing it.
func (v *Value[T]) Store(value T) {
	v.d.lock.Lock()
	defer v.d.lock.Unlock()
	v.value = value
	v.d.publishLocked(value)
}

// Flush delivers queued notifications.
func (v *Value[T]) Flush() {
	v.d.flush()
}

// Set replaces the current value and notifies subscribers.
func (v *Value[T]) Set(value T) {
	v.Store(value)
	v.Flush()
}

// Update replaces the current value with fn applied to it.
func (v *Value[T]) Update(fn func(T) T) {
	v.d.lock.Lock()
	v.value = fn(v.value)
	v.d.publishLocked(v.value)
	v.d.lock.Unlock()
	v.Flush()
}

// Subscribe registers fn and delivers the current value to it on the calling
// goroutine before returning, even while other subscribers are still being
// delivered to. Every later value is delivered until the returned function
// is called.
func (v *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	v.d.lock.Lock()
	s := v.d.addLocked(fn, v.value)
	v.d.lock.Unlock()
	s.run()
	return v.d.unsubscribeFunc(s)
}
