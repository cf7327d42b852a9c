package draft

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// SaveFunc is the external server-side persistence callback. Any error triggers
// the retry policy; the in-memory session is never rolled back.
type SaveFunc func(ctx context.Context, sessionID string, step int, payload []byte) error

// Config tunes debounce and retry behaviour.
type Config struct {
	BaseDelay     time.Duration         // retry backoff base; delay = BaseDelay * attempt
	MaxAttempts   int                   // total callback attempts per save, including the first
	Windows       map[int]time.Duration // per-step debounce windows
	DefaultWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseDelay <= 0 {
		c.BaseDelay = 2 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.DefaultWindow <= 0 {
		c.DefaultWindow = time.Second
	}
	return c
}

// Status is the observable save state exposed for display and tests.
type Status struct {
	Saving      bool       `json:"saving"`
	LastSavedAt *time.Time `json:"lastSavedAt"`
	Error       string     `json:"error,omitempty"`
}

// Controller debounces session mutations into draft saves. Each save writes the
// local Store first, then invokes the server callback with bounded retries.
// At most one save per step is ever in flight; repeated notifications within the
// debounce window replace the pending payload (last write wins).
type Controller struct {
	sessionID string
	store     Store
	saveFn    SaveFunc
	cfg       Config
	log       *zap.Logger

	mu          sync.Mutex
	timers      map[int]*time.Timer
	pending     map[int][]byte
	inFlight    map[int]bool
	dirty       map[int]bool // payload arrived while a save for the step was in flight
	saving      int
	lastSavedAt *time.Time
	errMsg      string
	closed      bool
}

func NewController(sessionID string, store Store, saveFn SaveFunc, cfg Config, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		sessionID: sessionID,
		store:     store,
		saveFn:    saveFn,
		cfg:       cfg.withDefaults(),
		log:       log,
		timers:    make(map[int]*time.Timer),
		pending:   make(map[int][]byte),
		inFlight:  make(map[int]bool),
		dirty:     make(map[int]bool),
	}
}

func (c *Controller) windowFor(step int) time.Duration {
	if w, ok := c.cfg.Windows[step]; ok && w > 0 {
		return w
	}
	return c.cfg.DefaultWindow
}

// NotifyChange schedules a save of the given payload after the step's debounce
// window. A call within the window cancels and replaces the previous timer, so
// only the latest payload is ever saved.
func (c *Controller) NotifyChange(step int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Error("draft payload marshal failed", zap.Int("step", step), zap.Error(err))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pending[step] = data
	if t := c.timers[step]; t != nil {
		t.Stop()
	}
	c.timers[step] = time.AfterFunc(c.windowFor(step), func() { c.trySave(step) })
}

// FlushNow bypasses the debounce window and saves the step's pending payload
// synchronously. Used before finalization and explicit navigation away. A save
// already in flight is left to complete; the fresher payload is saved right
// after it settles.
func (c *Controller) FlushNow(step int) error {
	c.mu.Lock()
	if t := c.timers[step]; t != nil {
		t.Stop()
		delete(c.timers, step)
	}
	data, ok := c.pending[step]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	if c.inFlight[step] {
		c.dirty[step] = true
		c.mu.Unlock()
		return nil
	}
	c.beginSaveLocked(step)
	c.mu.Unlock()
	return c.doSave(step, data)
}

// FlushAll flushes every step with a pending payload.
func (c *Controller) FlushAll() error {
	c.mu.Lock()
	steps := make([]int, 0, len(c.pending))
	for step := range c.pending {
		steps = append(steps, step)
	}
	c.mu.Unlock()
	var firstErr error
	for _, step := range steps {
		if err := c.FlushNow(step); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Controller) trySave(step int) {
	c.mu.Lock()
	data, ok := c.pending[step]
	if !ok || c.closed {
		c.mu.Unlock()
		return
	}
	if c.inFlight[step] {
		c.dirty[step] = true
		c.mu.Unlock()
		return
	}
	c.beginSaveLocked(step)
	c.mu.Unlock()
	_ = c.doSave(step, data)
}

// beginSaveLocked marks the step in flight and clears the sticky error: a new
// save attempt is the only thing that resets it.
func (c *Controller) beginSaveLocked(step int) {
	delete(c.pending, step)
	c.inFlight[step] = true
	c.saving++
	c.errMsg = ""
}

func (c *Controller) doSave(step int, data []byte) error {
	d := Draft{SessionID: c.sessionID, Step: step, Payload: data, Timestamp: time.Now()}
	if err := c.store.Put(Key(c.sessionID, step), d); err != nil {
		// Local storage is expected to be durable; a failure here is fatal to
		// this write but never blocks the session, which stays authoritative.
		c.log.Error("draft store write failed", zap.String("session", c.sessionID), zap.Int("step", step), zap.Error(err))
	}

	var err error
	if c.saveFn != nil {
		attempt := 0
		op := func() error {
			attempt++
			return c.saveFn(context.Background(), c.sessionID, step, data)
		}
		bo := backoff.WithMaxRetries(&linearBackOff{base: c.cfg.BaseDelay}, uint64(c.cfg.MaxAttempts-1))
		err = backoff.Retry(op, bo)
		if err != nil {
			c.log.Warn("server draft save failed after retries",
				zap.String("session", c.sessionID), zap.Int("step", step),
				zap.Int("attempts", attempt), zap.Error(err))
		}
	}

	now := time.Now()
	c.mu.Lock()
	c.inFlight[step] = false
	c.saving--
	if err != nil {
		c.errMsg = err.Error()
	} else {
		c.lastSavedAt = &now
	}
	redo := c.dirty[step]
	delete(c.dirty, step)
	c.mu.Unlock()

	if redo {
		c.trySave(step)
	}
	return err
}

// Status reports the aggregate save state across steps.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Saving:      c.saving > 0,
		LastSavedAt: c.lastSavedAt,
		Error:       c.errMsg,
	}
}

// Close stops all pending timers. In-flight saves are left to complete.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for step, t := range c.timers {
		t.Stop()
		delete(c.timers, step)
	}
}

// linearBackOff waits base*1, base*2, base*3... between attempts.
type linearBackOff struct {
	base time.Duration
	n    int64
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.base
}

func (b *linearBackOff) Reset() { b.n = 0 }

var _ backoff.BackOff = (*linearBackOff)(nil)
