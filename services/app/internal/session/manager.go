package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	apperrors "github.com/bookineo/bookineo/pkg/errors"
	"github.com/bookineo/bookineo/services/app/internal/gateway"
)

// Gateway is the part of the Remote Data Gateway the Manager uses.
type Gateway interface {
	GetPersistedSession(ctx context.Context) (*gateway.Session, error)
	OnAuthStateChange(fn gateway.Listener) gateway.Subscription
	FindIdentityByPrincipal(ctx context.Context, principalID string) (*gateway.Identity, error)
	SignOut(ctx context.Context) error
}

// eventQueueSize bounds auth changes waiting for the dispatcher.
const eventQueueSize = 64

type authChange struct {
	event   gateway.AuthEvent
	session *gateway.Session
}

// Manager keeps the Store in line with the gateway's auth state. It is the
// only writer of the Store.
//
// Auth changes are handled one at a time in emission order by a single
// dispatcher goroutine. A change that carries a session starts a Resolve in
// its own goroutine, so Resolves for different changes can finish out of
// order; each one writes unconditionally and the last to complete wins.
type Manager struct {
	gw     Gateway
	store  *Store
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	listening  *listening
	dispatcher sync.WaitGroup
	resolves   sync.WaitGroup
	closed     bool
}

// NewManager creates a manager writing to store.
func NewManager(gw Gateway, store *Store, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		gw:     gw,
		store:  store,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Store returns the store the manager writes to.
func (m *Manager) Store() *Store {
	return m.store
}

// Current returns the current Identity, or nil.
func (m *Manager) Current() *gateway.Identity {
	return m.store.Current()
}

// Bootstrap loads the persisted session once at startup and resolves its
// principal. With no session the Identity stays none and no lookup is made.
// Failures leave the Identity none and are only logged.
func (m *Manager) Bootstrap(ctx context.Context) {
	sess, err := m.gw.GetPersistedSession(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "failed to load persisted session", slog.String("error", err.Error()))
		return
	}
	if sess == nil {
		m.logger.DebugContext(ctx, "no persisted session")
		return
	}
	m.Resolve(ctx, sess.PrincipalID)
}

// Subscribe starts listening for auth-state changes. Calling it again
// returns the existing subscription. Close unsubscribes.
func (m *Manager) Subscribe() gateway.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listening != nil {
		return m.listening
	}

	l := &listening{
		manager: m,
		events:  make(chan authChange, eventQueueSize),
		stop:    make(chan struct{}),
	}
	if m.closed {
		close(l.stop)
		return l
	}

	m.dispatcher.Add(1)
	go m.dispatch(l.events, l.stop)

	l.sub = m.gw.OnAuthStateChange(func(event gateway.AuthEvent, sess *gateway.Session) {
		select {
		case l.events <- authChange{event: event, session: sess}:
		case <-l.stop:
		}
	})
	m.listening = l
	return l
}

// listening is one active subscription of the Manager.
type listening struct {
	manager *Manager
	sub     gateway.Subscription
	events  chan authChange
	stop    chan struct{}
	once    sync.Once
}

func (l *listening) Unsubscribe() {
	l.once.Do(func() {
		m := l.manager
		m.mu.Lock()
		if m.listening == l {
			m.listening = nil
		}
		m.mu.Unlock()

		if l.sub != nil {
			l.sub.Unsubscribe()
		}
		close(l.stop)
	})
}

func (m *Manager) dispatch(events <-chan authChange, stop <-chan struct{}) {
	defer m.dispatcher.Done()

	for {
		var change authChange
		select {
		case <-stop:
			return
		case change = <-events:
		}

		m.logger.DebugContext(m.ctx, "auth state changed", slog.String("event", string(change.event)))

		if change.session == nil {
			m.store.Set(nil)
			continue
		}

		principalID := change.session.PrincipalID
		m.resolves.Add(1)
		go func() {
			defer m.resolves.Done()
			m.Resolve(m.ctx, principalID)
		}()
	}
}

// Resolve looks up the Identity of principalID and makes it current. A
// missing row or any lookup error makes the Identity none. Errors are
// logged, never returned.
func (m *Manager) Resolve(ctx context.Context, principalID string) {
	identity, err := m.gw.FindIdentityByPrincipal(ctx, principalID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			m.logger.WarnContext(ctx, "no profile for principal", slog.String("principal_id", principalID))
		} else {
			m.logger.WarnContext(ctx, "identity lookup failed",
				slog.String("principal_id", principalID),
				slog.String("error", err.Error()),
			)
		}
		m.store.Set(nil)
		return
	}
	if identity == nil {
		m.store.Set(nil)
		return
	}

	snap := m.store.Set(identity)
	m.logger.DebugContext(ctx, "identity resolved",
		slog.String("principal_id", principalID),
		slog.Uint64("version", snap.Version),
	)
}

// SetIdentity makes identity current without a lookup. nil clears it.
func (m *Manager) SetIdentity(identity *gateway.Identity) {
	m.store.Set(identity)
}

// SignOut signs out at the gateway and clears the Identity. The Identity is
// cleared even when the gateway call fails. A Resolve still in flight for
// the old principal may land afterwards.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.gw.SignOut(ctx)
	m.store.Set(nil)
	return err
}

// Close unsubscribes, stops the dispatcher and waits for running Resolves.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	l := m.listening
	m.mu.Unlock()

	if l != nil {
		l.Unsubscribe()
	}
	m.cancel()
	m.dispatcher.Wait()
	m.resolves.Wait()
}
