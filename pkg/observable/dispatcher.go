package observable

import (
	"sync"
	"sync/atomic"
)

// subscriber owns an inbox of values not yet delivered to fn. Whichever
// goroutine finds the subscriber idle delivers the whole inbox; anyone
// pushing while a delivery runs (including fn calling back in) returns
// immediately and the running goroutine picks the value up.
type subscriber[T any] struct {
	fn     func(T)
	active atomic.Bool

	lock    sync.Mutex
	inbox   []T
	running bool
}

func (s *subscriber[T]) push(value T) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.inbox = append(s.inbox, value)
}

// deliver empties the inbox unless another goroutine is already doing so.
func (s *subscriber[T]) deliver() {
	s.lock.Lock()
	if s.running {
		s.lock.Unlock()
		return
	}
	s.running = true
	s.lock.Unlock()
	s.run()
}

// run delivers until the inbox is empty. The caller must have set running.
func (s *subscriber[T]) run() {
	defer func() {
		if r := recover(); r != nil {
			s.lock.Lock()
			s.running = false
			s.lock.Unlock()
			panic(r)
		}
	}()

	var zero T
	for {
		s.lock.Lock()
		if len(s.inbox) == 0 {
			s.running = false
			s.lock.Unlock()
			return
		}
		value := s.inbox[0]
		s.inbox[0] = zero
		s.inbox = s.inbox[1:]
		s.lock.Unlock()

		if s.active.Load() {
			s.fn(value)
		}
	}
}

type dispatcher[T any] struct {
	lock sync.Mutex
	subs []*subscriber[T]
}

// addLocked registers fn. With replay, the subscriber starts out owned by the
// calling goroutine holding replay in its inbox, so no other goroutine can
// deliver to it before the caller runs it. The caller must hold d.lock.
func (d *dispatcher[T]) addLocked(fn func(T), replay ...T) *subscriber[T] {
	s := &subscriber[T]{fn: fn}
	if len(replay) > 0 {
		s.inbox = append(s.inbox, replay...)
		s.running = true
	}
	s.active.Store(true)
	d.subs = append(d.subs, s)
	return s
}

// publishLocked queues value for every current subscriber. Holding d.lock
// keeps inboxes in the same order across subscribers.
func (d *dispatcher[T]) publishLocked(value T) {
	for _, s := range d.subs {
		s.push(value)
	}
}

// flush delivers queued values to every subscriber that is not already
// being delivered to.
func (d *dispatcher[T]) flush() {
	d.lock.Lock()
	subs := make([]*subscriber[T], len(d.subs))
	copy(subs, d.subs)
	d.lock.Unlock()

	for _, s := range subs {
		s.deliver()
	}
}

func (d *dispatcher[T]) remove(s *subscriber[T]) {
	s.active.Store(false)
	d.lock.Lock()
	defer d.lock.Unlock()
	for i, sub := range d.subs {
		if sub == s {
			d.subs = append(d.subs[:i], d.subs[i+1:]...)
			return
		}
	}
}

func (d *dispatcher[T]) unsubscribeFunc(s *subscriber[T]) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			d.remove(s)
		})
	}
}
