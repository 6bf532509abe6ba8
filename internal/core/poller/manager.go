package poller

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/engine"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/metrics"
)

// ErrSubscriptionNotFound is returned for unknown subscription IDs.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// Defaults fill in zero-valued fields of every Config passed to Subscribe.
type Defaults struct {
	Interval     time.Duration
	LiveInterval time.Duration
	RetryDelay   time.Duration
	MaxRetries   int
	Clock        Clock
	Logger       *zap.Logger
}

// Manager owns the subscriptions of a running process.
type Manager struct {
	fetcher  engine.Fetcher
	defaults Defaults

	mu   sync.RWMutex
	subs map[string]*Subscription
}

// NewManager creates an empty registry backed by fetcher.
func NewManager(fetcher engine.Fetcher, defaults Defaults) *Manager {
	if defaults.Logger == nil {
		defaults.Logger = zap.NewNop()
	}
	return &Manager{
		fetcher:  fetcher,
		defaults: defaults,
		subs:     make(map[string]*Subscription),
	}
}

// Subscribe registers and starts a subscription. An empty ID is replaced
// with a generated one.
func (m *Manager) Subscribe(cfg Config) *Subscription {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = m.defaults.Interval
	}
	if cfg.LiveInterval <= 0 {
		cfg.LiveInterval = m.defaults.LiveInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = m.defaults.RetryDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = m.defaults.MaxRetries
	}
	if cfg.Clock == nil {
		cfg.Clock = m.defaults.Clock
	}
	if cfg.Logger == nil {
		cfg.Logger = m.defaults.Logger
	}

	sub := NewSubscription(m.fetcher, cfg)

	m.mu.Lock()
	previous := m.subs[cfg.ID]
	m.subs[cfg.ID] = sub
	count := len(m.subs)
	m.mu.Unlock()

	if previous != nil {
		previous.Stop()
	}
	metrics.SetActiveSubscriptions(count)
	m.defaults.Logger.Info("Subscription registered",
		zap.String("subscription_id", cfg.ID),
		zap.String("user_id", cfg.UserID),
		zap.String("cache_key", cfg.Request.CacheKey))

	sub.Start()
	return sub
}

// Get returns the subscription with id.
func (m *Manager) Get(id string) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

// View renders one subscription.
func (m *Manager) View(id string) (View, error) {
	sub, err := m.Get(id)
	if err != nil {
		return View{}, err
	}
	return sub.View(), nil
}

// List renders every subscription, optionally filtered by user.
func (m *Manager) List(userID string) []View {
	m.mu.RLock()
	subs := make([]*Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		if userID == "" || sub.cfg.UserID == userID {
			subs = append(subs, sub)
		}
	}
	m.mu.RUnlock()

	views := make([]View, 0, len(subs))
	for _, sub := range subs {
		views = append(views, sub.View())
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

// Refresh forces an immediate fetch for id.
func (m *Manager) Refresh(ctx context.Context, id string) (View, error) {
	sub, err := m.Get(id)
	if err != nil {
		return View{}, err
	}
	if _, err := sub.ForceUpdate(ctx); err != nil {
		return sub.View(), err
	}
	return sub.View(), nil
}

// SetVisible forwards a visibility change to one subscription.
func (m *Manager) SetVisible(id string, visible bool) (View, error) {
	sub, err := m.Get(id)
	if err != nil {
		return View{}, err
	}
	sub.SetVisible(visible)
	return sub.View(), nil
}

// SetAllVisible forwards a visibility change to every subscription.
func (m *Manager) SetAllVisible(visible bool) {
	for _, sub := range m.snapshot() {
		sub.SetVisible(visible)
	}
}

// Remove stops and forgets a subscription.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	sub, ok := m.subs[id]
	if ok {
		delete(m.subs, id)
	}
	count := len(m.subs)
	m.mu.Unlock()

	if !ok {
		return ErrSubscriptionNotFound
	}
	sub.Stop()
	metrics.SetActiveSubscriptions(count)
	m.defaults.Logger.Info("Subscription removed", zap.String("subscription_id", id))
	return nil
}

// StopAll stops and forgets every subscription.
func (m *Manager) StopAll() {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[string]*Subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Stop()
	}
	metrics.SetActiveSubscriptions(0)
	if len(subs) > 0 {
		m.defaults.Logger.Info("Stopped all subscriptions", zap.Int("count", len(subs)))
	}
}

// Len returns the number of registered subscriptions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

func (m *Manager) snapshot() []*Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		out = append(out, sub)
	}
	return out
}
