package extraction

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alchemorsel/cookcard/internal/infrastructure/persistence/memory"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// 30 seconds before the top of the hour
var testNow = time.Date(2024, 3, 14, 12, 59, 30, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: testNow} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(clock *testClock) *memory.CounterStore {
	return memory.NewCounterStore().WithClock(clock.Now)
}

func testConfig() PipelineConfig {
	cfg := DefaultPipelineConfig()
	cfg.Costs = CostRates{
		TextInputPer1K:    0.08,
		TextOutputPer1K:   0.4,
		VisionInputPer1K:  0.3,
		VisionOutputPer1K: 1.5,
		VisionPerMinute:   2,
	}
	return cfg
}

var errStoreDown = errors.New("connection refused")

// failingStore fails every call
type failingStore struct{}

func (failingStore) IncrementWithin(context.Context, ...outbound.CounterIncrement) (outbound.CounterResult, error) {
	return outbound.CounterResult{}, errStoreDown
}
func (failingStore) IncrementBy(context.Context, string, int64, time.Duration) (int64, error) {
	return 0, errStoreDown
}
func (failingStore) Counter(context.Context, string) (int64, error) { return 0, errStoreDown }
func (failingStore) Get(context.Context, string) ([]byte, error)    { return nil, errStoreDown }
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errStoreDown
}
func (failingStore) Ping(context.Context) error { return errStoreDown }
