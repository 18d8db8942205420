package observable

// Feed fans events out to its subscribers. Unlike Value it keeps no state, so
// a new subscriber only sees events sent after it subscribed.
type Feed[T any] struct {
	d dispatcher[T]
}

func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{}
}

// Send delivers event to every current subscriber.
func (f *Feed[T]) Send(event T) {
	f.d.lock.Lock()
	f.d.publishLocked(event)
	f.d.lock.Unlock()
	f.d.flush()
}

func (f *Feed[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	f.d.lock.Lock()
	s := f.d.addLocked(fn)
	f.d.lock.Unlock()
	return f.d.unsubscribeFunc(s)
}
