package draft

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingSaver struct {
	mu       sync.Mutex
	calls    int
	failures int // fail this many leading calls
	payloads [][]byte
	block    chan struct{} // when set, calls wait here
}

func (c *countingSaver) save(_ context.Context, _ string, _ int, payload []byte) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.payloads = append(c.payloads, payload)
	if c.calls <= c.failures {
		return errors.New("server unavailable")
	}
	return nil
}

func (c *countingSaver) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *countingSaver) lastPayload() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.payloads) == 0 {
		return nil
	}
	return c.payloads[len(c.payloads)-1]
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func fastConfig() Config {
	return Config{
		BaseDelay:     3 * time.Millisecond,
		MaxAttempts:   3,
		DefaultWindow: 10 * time.Millisecond,
	}
}

type payload struct {
	Rev int `json:"rev"`
}

func TestDebounceCoalescesRapidChanges(t *testing.T) {
	store := NewMemStore()
	saver := &countingSaver{}
	c := NewController("s1", store, saver.save, fastConfig(), nil)
	defer c.Close()

	for i := 1; i <= 5; i++ {
		c.NotifyChange(1, payload{Rev: i})
	}
	waitFor(t, time.Second, func() bool { return saver.callCount() > 0 })
	time.Sleep(30 * time.Millisecond) // no trailing extra saves

	if got := saver.callCount(); got != 1 {
		t.Fatalf("expected exactly 1 save, got %d", got)
	}
	if string(saver.lastPayload()) != `{"rev":5}` {
		t.Fatalf("expected last payload, got %s", saver.lastPayload())
	}
	if _, ok, _ := store.Get(Key("s1", 1)); !ok {
		t.Fatalf("draft missing from local store")
	}
}

func TestRetryFailTwiceThenSucceed(t *testing.T) {
	store := NewMemStore()
	saver := &countingSaver{failures: 2}
	c := NewController("s1", store, saver.save, fastConfig(), nil)
	defer c.Close()

	c.NotifyChange(2, payload{Rev: 1})
	waitFor(t, time.Second, func() bool {
		st := c.Status()
		return !st.Saving && st.LastSavedAt != nil
	})

	if got := saver.callCount(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	st := c.Status()
	if st.Error != "" {
		t.Fatalf("expected no error after recovery, got %q", st.Error)
	}
}

func TestRetryExhaustionSurfacesStickyError(t *testing.T) {
	store := NewMemStore()
	saver := &countingSaver{failures: 10}
	c := NewController("s1", store, saver.save, fastConfig(), nil)
	defer c.Close()

	c.NotifyChange(1, payload{Rev: 1})
	waitFor(t, time.Second, func() bool { return c.Status().Error != "" })

	if got := saver.callCount(); got != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", got)
	}
	// The error is sticky: it stays until the next save attempt...
	time.Sleep(30 * time.Millisecond)
	if c.Status().Error == "" {
		t.Fatalf("error cleared without a new save attempt")
	}
	// ...and the local draft was still written despite the callback failing.
	if _, ok, _ := store.Get(Key("s1", 1)); !ok {
		t.Fatalf("local draft missing after callback failure")
	}

	// A later successful save clears it.
	saver.mu.Lock()
	saver.failures = 0
	saver.calls = 0
	saver.mu.Unlock()
	c.NotifyChange(1, payload{Rev: 2})
	waitFor(t, time.Second, func() bool {
		st := c.Status()
		return st.Error == "" && st.LastSavedAt != nil && !st.Saving
	})
}

func TestFlushNowBypassesDebounce(t *testing.T) {
	store := NewMemStore()
	saver := &countingSaver{}
	cfg := fastConfig()
	cfg.DefaultWindow = time.Minute
	c := NewController("s1", store, saver.save, cfg, nil)
	defer c.Close()

	c.NotifyChange(3, payload{Rev: 7})
	if err := c.FlushNow(3); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if got := saver.callCount(); got != 1 {
		t.Fatalf("expected immediate save, got %d calls", got)
	}
	time.Sleep(20 * time.Millisecond)
	if got := saver.callCount(); got != 1 {
		t.Fatalf("debounce timer fired after flush, %d calls", got)
	}
}

func TestFlushNowWithoutPendingIsNoop(t *testing.T) {
	c := NewController("s1", NewMemStore(), nil, fastConfig(), nil)
	defer c.Close()
	if err := c.FlushNow(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestChangeDuringInFlightSaveIsSavedAfter(t *testing.T) {
	store := NewMemStore()
	saver := &countingSaver{block: make(chan struct{})}
	c := NewController("s1", store, saver.save, fastConfig(), nil)
	defer c.Close()

	c.NotifyChange(1, payload{Rev: 1})
	time.Sleep(15 * time.Millisecond) // first save is now blocked in flight

	c.NotifyChange(1, payload{Rev: 2})
	time.Sleep(15 * time.Millisecond) // debounce fires while still in flight
	close(saver.block)

	waitFor(t, time.Second, func() bool { return saver.callCount() == 2 })
	if string(saver.lastPayload()) != `{"rev":2}` {
		t.Fatalf("stale payload won: %s", saver.lastPayload())
	}
}

func TestSaveWithoutCallbackStillWritesStore(t *testing.T) {
	store := NewMemStore()
	c := NewController("s1", store, nil, fastConfig(), nil)
	defer c.Close()

	c.NotifyChange(4, payload{Rev: 1})
	waitFor(t, time.Second, func() bool {
		_, ok, _ := store.Get(Key("s1", 4))
		return ok
	})
	st := c.Status()
	if st.LastSavedAt == nil || st.Error != "" {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestPerStepWindows(t *testing.T) {
	cfg := fastConfig()
	cfg.Windows = map[int]time.Duration{3: 50 * time.Millisecond}
	store := NewMemStore()
	saver := &countingSaver{}
	c := NewController("s1", store, saver.save, cfg, nil)
	defer c.Close()

	c.NotifyChange(3, payload{Rev: 1}) // slow window
	c.NotifyChange(1, payload{Rev: 1}) // default 10ms window

	waitFor(t, time.Second, func() bool { return saver.callCount() == 1 })
	if _, ok, _ := store.Get(Key("s1", 3)); ok {
		t.Fatalf("heavy step saved before its window elapsed")
	}
	waitFor(t, time.Second, func() bool { return saver.callCount() == 2 })
}
