package application

import "sync"

type subscription struct {
	id uint64
	fn func()
}

// Observers fans out "the cart changed" to every subscribed surface.
type Observers struct {
	mu   sync.Mutex
	next uint64
	subs []subscription
}

// Subscribe registers fn and returns the function that removes it again.
// Surfaces must call it on teardown.
func (o *Observers) Subscribe(fn func()) (unsubscribe func()) {
	o.mu.Lock()
	o.next++
	id := o.next
	o.subs = append(o.subs, subscription{id: id, fn: fn})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { o.remove(id) })
	}
}

func (o *Observers) remove(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, s := range o.subs {
		if s.id == id {
			o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
			return
		}
	}
}

// Notify calls every subscriber once, in subscription order, on the caller's goroutine.
func (o *Observers) Notify() {
	o.mu.Lock()
	subs := make([]subscription, len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()

	for _, s := range subs {
		s.fn()
	}
}

func (o *Observers) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}
