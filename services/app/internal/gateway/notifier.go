package gateway

import "sync"

// AuthEvent names an auth-state change.
type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated    AuthEvent = "USER_UPDATED"
)

// Listener receives auth-state changes. session is nil when signed out.
type Listener func(event AuthEvent, session *Session)

// Subscription is a registered listener.
type Subscription interface {
	// Unsubscribe removes the listener. It is safe to call more than once.
	Unsubscribe()
}

// Notifier fans auth-state changes out to listeners in registration order.
// The zero value is ready to use.
type Notifier struct {
	mu        sync.Mutex
	next      uint64
	ids       []uint64
	listeners map[uint64]Listener
}

// Subscribe registers fn.
func (n *Notifier) Subscribe(fn Listener) Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.listeners == nil {
		n.listeners = make(map[uint64]Listener)
	}
	n.next++
	id := n.next
	n.ids = append(n.ids, id)
	n.listeners[id] = fn

	return &listenerSub{cancel: func() { n.remove(id) }}
}

// Emit calls every listener synchronously with its own copy of session.
func (n *Notifier) Emit(event AuthEvent, session *Session) {
	n.mu.Lock()
	fns := make([]Listener, 0, len(n.ids))
	for _, id := range n.ids {
		fns = append(fns, n.listeners[id])
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(event, session.Clone())
	}
}

// Len returns the number of registered listeners.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.ids)
}

func (n *Notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.listeners, id)
	for i, v := range n.ids {
		if v == id {
			n.ids = append(n.ids[:i], n.ids[i+1:]...)
			break
		}
	}
}

type listenerSub struct {
	once   sync.Once
	cancel func()
}

func (s *listenerSub) Unsubscribe() {
	s.once.Do(s.cancel)
}
