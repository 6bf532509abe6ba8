package poller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/engine"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/live"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/metrics"
)

const (
	// DefaultInterval is the recurring poll cadence.
	DefaultInterval = 5 * time.Minute
	// LiveInterval is used while a match subscription has live matches.
	LiveInterval = 2 * time.Minute
	// DefaultRetryDelay is the first backoff delay after a hard error.
	DefaultRetryDelay = 30 * time.Second
	// MaxRetries consecutive hard errors stop a subscription.
	MaxRetries = 3
)

// ErrSubscriptionInactive is returned by ForceUpdate when the subscription
// is not running.
var ErrSubscriptionInactive = errors.New("subscription is not active")

// Config describes one polled resource.
type Config struct {
	ID       string
	UserID   string
	Request  core.FetchRequest
	Interval time.Duration
	// LiveInterval replaces Interval while live matches are present. Only
	// used when Adaptive is set.
	LiveInterval time.Duration
	Adaptive     bool
	RetryDelay   time.Duration
	MaxRetries   int
	// Immediate fetches once synchronously when Start is called.
	Immediate bool

	// OnSuccess receives every successful result.
	OnSuccess func(core.Result)
	// OnError receives every hard error. final is true when the error
	// stopped the subscription.
	OnError func(result core.Result, final bool)
	// OnRateLimit receives quota denials. The subscription resumes on its own.
	OnRateLimit func(core.Result)

	Clock  Clock
	Logger *zap.Logger
}

type timerKind int

const (
	kindRecurring timerKind = iota
	kindResume
	kindRetry
)

func (k timerKind) String() string {
	switch k {
	case kindRecurring:
		return "recurring"
	case kindResume:
		return "resume"
	default:
		return "retry"
	}
}

// timerToken carries the liveness captured when the timer was armed.
type timerToken struct {
	timer Timer
	kind  timerKind
	epoch uint64
	due   time.Time
	alive atomic.Bool
}

func (t *timerToken) cancel() {
	if t == nil {
		return
	}
	t.alive.Store(false)
	if t.timer != nil {
		t.timer.Stop()
	}
}

// Subscription polls one resource through the fetch orchestrator.
//
// At most one recurring timer and one one-shot timer exist at any time.
// Fetches never overlap. Every timer and fetch continuation checks the
// epoch it was scheduled under, so Stop guarantees no later transitions.
// Callbacks run on the goroutine that completed the fetch and must not
// call ForceUpdate synchronously.
type Subscription struct {
	cfg     Config
	fetcher engine.Fetcher
	clock   Clock
	logger  *zap.Logger

	// fetchMu serializes fetches and their callbacks.
	fetchMu sync.Mutex
	// cbMu is held while a callback is checked and run. Stop takes it so
	// that no callback starts after Stop returns.
	cbMu sync.Mutex
	// beforeNotify runs between the state transition and the callback.
	beforeNotify func()

	mu           sync.Mutex
	state        State
	epoch        uint64
	ctx          context.Context
	cancelCtx    context.CancelFunc
	recurring    *timerToken
	oneShot      *timerToken
	retryCount   int
	lastUpdateAt time.Time
	interval     time.Duration
	loading      bool
	visible      bool
	inCallback   bool
	lastResult   *core.Result
	data         json.RawMessage
	fromCache    bool
	matches      *core.CategorizedMatches
}

// NewSubscription builds an idle subscription. Call Start to begin polling.
func NewSubscription(fetcher engine.Fetcher, cfg Config) *Subscription {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.LiveInterval <= 0 {
		cfg.LiveInterval = LiveInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = MaxRetries
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscription{
		cfg:     cfg,
		fetcher: fetcher,
		clock:   clock,
		logger: logger.With(
			zap.String("subscription_id", cfg.ID),
			zap.String("endpoint", cfg.Request.Endpoint)),
		state:    StateIdle,
		interval: cfg.Interval,
		visible:  true,
	}
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string {
	return s.cfg.ID
}

// Config returns the configuration the subscription was built with.
func (s *Subscription) Config() Config {
	return s.cfg
}

// Start cancels any pending timers, resets the retry count and arms the
// recurring timer. With Immediate set it fetches once before returning.
// A hidden subscription is parked as suspended until it becomes visible.
func (s *Subscription) Start() {
	s.mu.Lock()
	if !s.visible {
		s.haltLocked(StateSuspended)
		s.mu.Unlock()
		return
	}
	epoch := s.startLocked()
	s.mu.Unlock()

	if s.cfg.Immediate {
		s.runFetch(epoch)
	}
}

func (s *Subscription) startLocked() uint64 {
	s.resetLocked()
	s.ctx, s.cancelCtx = context.WithCancel(context.Background())
	s.retryCount = 0
	s.transitionLocked(StatePolling)
	s.recurring = s.armLocked(kindRecurring, s.interval)
	return s.epoch
}

// Stop cancels every timer and abandons any in-flight fetch. It is
// idempotent and safe to call from callbacks. Once Stop returns no callback
// will be invoked until the next Start.
func (s *Subscription) Stop() {
	s.mu.Lock()
	if s.inCallback {
		if s.state != StateStopped {
			s.haltLocked(StateStopped)
		}
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		// The final error callback of a failed subscription may still be pending.
		s.epoch++
		return
	}
	s.haltLocked(StateStopped)
}

// SetVisible suspends polling while the view is hidden. Becoming visible
// again restarts a suspended subscription from scratch with an immediate
// fetch. A stopped subscription stays stopped.
func (s *Subscription) SetVisible(visible bool) {
	s.mu.Lock()
	s.visible = visible
	if !visible {
		if s.state.Active() {
			s.haltLocked(StateSuspended)
		}
		s.mu.Unlock()
		return
	}
	if s.state != StateSuspended {
		s.mu.Unlock()
		return
	}
	epoch := s.startLocked()
	s.mu.Unlock()

	s.runFetch(epoch)
}

// SetInterval changes the recurring cadence. A running recurring timer is
// re-armed with the new interval.
func (s *Subscription) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setIntervalLocked(d)
}

func (s *Subscription) setIntervalLocked(d time.Duration) {
	if d == s.interval {
		return
	}
	s.interval = d
	if s.state == StatePolling && s.recurring != nil {
		s.recurring.cancel()
		s.recurring = s.armLocked(kindRecurring, d)
	}
	s.logger.Debug("Poll interval changed", zap.Duration("interval", d))
}

// ForceUpdate fetches now, outside the timer schedule. The result goes
// through the same quota checks and state transitions as a timed fetch.
func (s *Subscription) ForceUpdate(ctx context.Context) (core.Result, error) {
	s.mu.Lock()
	if !s.state.Active() {
		s.mu.Unlock()
		return core.Result{}, ErrSubscriptionInactive
	}
	epoch := s.epoch
	subCtx := s.ctx
	s.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := mergeCancel(ctx, subCtx)
	defer cancel()

	return s.fetch(ctx, epoch)
}

// Status returns a snapshot of the poll state.
func (s *Subscription) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := Status{
		State:          s.state,
		LastUpdateAt:   s.lastUpdateAt,
		RetryCount:     s.retryCount,
		Interval:       s.interval,
		Loading:        s.loading,
		RecurringArmed: s.recurring != nil,
		OneShotArmed:   s.oneShot != nil,
		Data:           s.data,
		FromCache:      s.fromCache,
		Matches:        s.matches,
		Visible:        s.visible,
	}
	if s.lastResult != nil {
		result := *s.lastResult
		status.LastResult = &result
	}
	if s.recurring != nil {
		due := s.recurring.due
		status.NextRecurringAt = &due
	}
	if s.oneShot != nil {
		due := s.oneShot.due
		status.NextOneShotAt = &due
	}
	return status
}

// View renders the subscription for a consuming view.
func (s *Subscription) View() View {
	status := s.Status()
	view := View{
		ID:         s.cfg.ID,
		UserID:     s.cfg.UserID,
		Resource:   s.cfg.Request.Resource,
		CacheKey:   s.cfg.Request.CacheKey,
		State:      status.State,
		Data:       status.Data,
		FromCache:  status.FromCache,
		Matches:    status.Matches,
		Loading:    status.Loading,
		RetryCount: status.RetryCount,
		Interval:   status.Interval.String(),
		Visible:    status.Visible,
	}
	if !status.LastUpdateAt.IsZero() {
		at := status.LastUpdateAt
		view.LastUpdateAt = &at
	}
	if last := status.LastResult; last != nil && !last.Success {
		if last.IsRateLimited() {
			view.RateLimitInfo = &RateLimitInfo{
				Reason:        last.Error,
				Message:       last.Message,
				NextAllowedAt: last.NextAllowedAt,
			}
		} else {
			view.Error = &ViewError{Code: last.Error, Message: last.Message}
		}
	}
	return view
}

func (s *Subscription) armLocked(kind timerKind, d time.Duration) *timerToken {
	token := &timerToken{kind: kind, epoch: s.epoch, due: s.clock.Now().Add(d)}
	token.alive.Store(true)
	token.timer = s.clock.AfterFunc(d, func() { s.fire(token) })
	return token
}

func (s *Subscription) fire(token *timerToken) {
	s.mu.Lock()
	if !token.alive.Load() || token.epoch != s.epoch || !s.state.Active() {
		s.mu.Unlock()
		return
	}
	token.alive.Store(false)

	switch token.kind {
	case kindRecurring:
		if s.recurring != token {
			s.mu.Unlock()
			return
		}
		s.recurring = s.armLocked(kindRecurring, s.interval)
	case kindResume:
		if s.oneShot != token {
			s.mu.Unlock()
			return
		}
		s.oneShot = nil
		s.transitionLocked(StatePolling)
		s.recurring.cancel()
		s.recurring = s.armLocked(kindRecurring, s.interval)
	case kindRetry:
		if s.oneShot != token {
			s.mu.Unlock()
			return
		}
		s.oneShot = nil
	}
	epoch := s.epoch
	s.mu.Unlock()

	s.runFetch(epoch)
}

func (s *Subscription) runFetch(epoch uint64) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	_, _ = s.fetch(ctx, epoch)
}

func (s *Subscription) fetch(ctx context.Context, epoch uint64) (core.Result, error) {
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return core.Result{}, ErrSubscriptionInactive
	}
	s.loading = true
	s.mu.Unlock()

	result := s.fetcher.Fetch(ctx, s.cfg.UserID, s.cfg.Request)

	var categorized *core.CategorizedMatches
	if result.Success && s.cfg.Request.Resource == core.ResourceMatches {
		if matches, err := core.DecodeMatches(result.Data); err == nil {
			c := live.Categorize(matches, s.clock.Now())
			categorized = &c
		} else {
			s.logger.Debug("Match payload not categorized", zap.Error(err))
		}
	}

	notify, notifyEpoch := s.applyResult(epoch, result, categorized)
	if notify != nil {
		if s.beforeNotify != nil {
			s.beforeNotify()
		}
		s.invoke(notifyEpoch, notify)
	}
	return result, nil
}

// invoke runs callback unless the subscription moved past epoch in the
// meantime.
func (s *Subscription) invoke(epoch uint64, callback func()) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		s.logger.Debug("Dropping callback for cancelled subscription")
		return
	}
	s.inCallback = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inCallback = false
		s.mu.Unlock()
	}()
	callback()
}

// applyResult performs the state transition for a completed fetch and
// returns the callback to invoke, if any, with the epoch it belongs to.
func (s *Subscription) applyResult(epoch uint64, result core.Result, categorized *core.CategorizedMatches) (func(), uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	callback := s.transitionForResult(epoch, result, categorized)
	return callback, s.epoch
}

func (s *Subscription) transitionForResult(epoch uint64, result core.Result, categorized *core.CategorizedMatches) func() {
	if epoch != s.epoch {
		s.logger.Debug("Discarding result for cancelled subscription")
		return nil
	}
	s.loading = false
	last := result
	s.lastResult = &last

	switch {
	case result.Success:
		now := s.clock.Now()
		if now.After(s.lastUpdateAt) {
			s.lastUpdateAt = now
		}
		s.retryCount = 0
		s.data = result.Data
		s.fromCache = result.FromCache
		if categorized != nil {
			s.matches = categorized
		}

		s.oneShot.cancel()
		s.oneShot = nil
		s.transitionLocked(StatePolling)
		if s.cfg.Adaptive && categorized != nil {
			if categorized.LiveCount > 0 {
				s.setIntervalLocked(s.cfg.LiveInterval)
			} else {
				s.setIntervalLocked(s.cfg.Interval)
			}
		}
		if s.recurring == nil {
			s.recurring = s.armLocked(kindRecurring, s.interval)
		}

		if s.cfg.OnSuccess == nil {
			return nil
		}
		onSuccess := s.cfg.OnSuccess
		return func() { onSuccess(result) }

	case result.IsRateLimited():
		wait := s.interval
		if result.NextAllowedAt != nil {
			if until := result.NextAllowedAt.Sub(s.clock.Now()); until > wait {
				wait = until
			}
		}
		s.recurring.cancel()
		s.recurring = nil
		s.oneShot.cancel()
		s.transitionLocked(StatePausedRateLimit)
		s.oneShot = s.armLocked(kindResume, wait)
		s.logger.Info("Polling paused by request quota",
			zap.String("reason", result.Error),
			zap.Duration("resume_in", wait))

		if s.cfg.OnRateLimit == nil {
			return nil
		}
		onRateLimit := s.cfg.OnRateLimit
		return func() { onRateLimit(result) }

	default:
		s.retryCount++
		final := s.retryCount >= s.cfg.MaxRetries
		if final {
			s.logger.Warn("Polling stopped after repeated failures",
				zap.Int("retry_count", s.retryCount),
				zap.String("error", result.Error),
				zap.String("message", result.Message))
			s.haltLocked(StateStopped)
		} else {
			delay := s.cfg.RetryDelay << (s.retryCount - 1)
			s.recurring.cancel()
			s.recurring = nil
			s.oneShot.cancel()
			s.transitionLocked(StateBackingOff)
			s.oneShot = s.armLocked(kindRetry, delay)
			s.logger.Info("Polling backing off",
				zap.Int("retry_count", s.retryCount),
				zap.Duration("retry_in", delay),
				zap.String("error", result.Error))
		}

		if s.cfg.OnError == nil {
			return nil
		}
		onError := s.cfg.OnError
		return func() { onError(result, final) }
	}
}

// haltLocked cancels everything and bumps the epoch so pending timers and
// in-flight fetches become no-ops.
func (s *Subscription) haltLocked(state State) {
	s.resetLocked()
	s.loading = false
	s.transitionLocked(state)
}

func (s *Subscription) resetLocked() {
	s.recurring.cancel()
	s.recurring = nil
	s.oneShot.cancel()
	s.oneShot = nil
	if s.cancelCtx != nil {
		s.cancelCtx()
		s.cancelCtx = nil
	}
	s.epoch++
}

func (s *Subscription) transitionLocked(next State) {
	if s.state == next {
		return
	}
	metrics.RecordPollTransition(string(s.state), string(next))
	s.logger.Debug("Poll state changed",
		zap.String("from", string(s.state)),
		zap.String("to", string(next)))
	s.state = next
}

// mergeCancel returns a context cancelled when either parent is.
func mergeCancel(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(primary)
	if secondary == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(secondary, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
