package session

import (
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/checkout"
)

const (
	// DefaultIdleTTL is how long a session lives without requests.
	DefaultIdleTTL = 30 * time.Minute

	// SweepInterval is how often idle sessions are looked for.
	SweepInterval = time.Minute
)

var ErrNotFound = errors.New("session not found")

// Session is one browsing session: a cart and the checkout built on it.
type Session struct {
	ID       string
	Cart     *cart.Store
	Checkout *checkout.Orchestrator

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// CheckoutFactory wires a new orchestrator around a session's cart.
type CheckoutFactory func(id string, c *cart.Store) *checkout.Orchestrator

// Registry keeps live sessions in memory. Nothing is persisted: a restart
// drops every cart.
type Registry struct {
	newCheckout CheckoutFactory
	idleTTL     time.Duration
	logger      *log.Logger
	now         func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session

	stopSweep chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewRegistry(newCheckout CheckoutFactory, idleTTL time.Duration, logger *log.Logger) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Registry{
		newCheckout: newCheckout,
		idleTTL:     idleTTL,
		logger:      logger,
		now:         time.Now,
		sessions:    make(map[string]*Session),
		stopSweep:   make(chan struct{}),
	}
}

func (r *Registry) Create() *Session {
	id := uuid.NewString()
	c := cart.NewStore()
	s := &Session{ID: id, Cart: c, Checkout: r.newCheckout(id, c), lastSeen: r.now()}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()
	return s
}

// Get returns the session and marks it as active.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.touch(r.now())
	return s, nil
}

// Delete closes the session's checkout and forgets its cart.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Checkout.Close()
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StartSweeper expires idle sessions in the background until Close.
func (r *Registry) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = SweepInterval
	}
	r.wg.Add(1)
	go r.sweepLoop(interval)
}

func (r *Registry) sweepLoop(interval time.Duration) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Printf("expired %d idle sessions", n)
			}
		case <-r.stopSweep:
			return
		}
	}
}

// Sweep removes sessions idle for longer than the TTL. Sessions still
// polling a payment are kept so the outcome is not lost.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.idleSince(now) < r.idleTTL || s.Checkout.State() == checkout.StatePollingPayment {
			continue
		}
		delete(r.sessions, id)
		expired = append(expired, s)
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Checkout.Close()
	}
	return len(expired)
}

// Close stops the sweeper and every session's checkout.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stopSweep) })
	r.wg.Wait()

	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Checkout.Close()
	}
}
