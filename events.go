package gany

// Signal is a notification channel. Listeners are called synchronously in
// subscription order on the goroutine that publishes.
type Signal[T any] struct {
	subs []subscriber[T]
	next uint64
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns a function that unregisters it. Calling
// the returned function more than once is a no-op.
func (s *Signal[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	if fn == nil {
		panic("nil listener")
	}
	s.next++
	id := s.next
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
	return func() {
		for i := range s.subs {
			if s.subs[i].id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish calls every listener with v. Listeners subscribed during Publish are not called
// and listeners unsubscribed during Publish are not called if not yet reached.
func (s *Signal[T]) Publish(v T) {
	// Unsubscribing shifts s.subs in place.
	subs := append([]subscriber[T](nil), s.subs...)
	for i := range subs {
		if !s.subscribed(subs[i].id) {
			continue
		}
		subs[i].fn(v)
	}
}

func (s *Signal[T]) subscribed(id uint64) bool {
	for i := range s.subs {
		if s.subs[i].id == id {
			return true
		}
	}
	return false
}

// Listeners returns the number of subscribed listeners.
func (s *Signal[T]) Listeners() int { return len(s.subs) }
