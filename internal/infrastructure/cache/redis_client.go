// Package cache provides the Redis connection shared by the counter store and card cache
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/infrastructure/config"
	"github.com/alchemorsel/cookcard/pkg/healthcheck"
)

// Common errors
var (
	ErrKeyNotFound = errors.New("key not found in cache")
	ErrCircuitOpen = errors.New("redis circuit breaker is open")
)

// incrementWithinScript checks every key against its limit before touching any of them.
// KEYS are the counters; ARGV holds delta, limit and ttl in milliseconds per key.
// A negative limit is unlimited. Expiry is set only on keys that have none.
// Returns {allowed, value1, value2, ...}.
var incrementWithinScript = redis.NewScript(`
local n = #KEYS
local current = {}
for i = 1, n do
  current[i] = tonumber(redis.call('GET', KEYS[i]) or '0')
  local delta = tonumber(ARGV[(i - 1) * 3 + 1])
  local limit = tonumber(ARGV[(i - 1) * 3 + 2])
  if limit >= 0 and current[i] + delta > limit then
    local out = {0}
    for j = 1, n do
      out[j + 1] = tonumber(redis.call('GET', KEYS[j]) or '0')
    end
    return out
  end
end
local out = {1}
for i = 1, n do
  local delta = tonumber(ARGV[(i - 1) * 3 + 1])
  local ttl = tonumber(ARGV[(i - 1) * 3 + 3])
  out[i + 1] = redis.call('INCRBY', KEYS[i], delta)
  if ttl > 0 and redis.call('PTTL', KEYS[i]) < 0 then
    redis.call('PEXPIRE', KEYS[i], ttl)
  end
end
return out
`)

// incrementByScript adds ARGV[1] and sets expiry ARGV[2] (ms) only when none exists.
var incrementByScript = redis.NewScript(`
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
local ttl = tonumber(ARGV[2])
if ttl > 0 and redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
end
return v
`)

// Increment is one leg of a conditional multi-key increment
type Increment struct {
	Key   string
	Delta int64
	Limit int64
	TTL   time.Duration
}

// RedisClient provides Redis connection management with cluster support
type RedisClient struct {
	client         redis.UniversalClient
	logger         *zap.Logger
	metrics        *RedisMetrics
	healthCheck    *HealthCheck
	circuitBreaker *CircuitBreaker
}

// RedisMetrics tracks Redis performance and health
type RedisMetrics struct {
	TotalCommands    int64         `json:"total_commands"`
	SuccessfulOps    int64         `json:"successful_ops"`
	FailedOps        int64         `json:"failed_ops"`
	AvgResponseTime  time.Duration `json:"avg_response_time"`
	ConnectionErrors int64         `json:"connection_errors"`
	LastUpdate       time.Time     `json:"last_update"`
	mu               sync.RWMutex
}

// HealthCheck monitors Redis connection health
type HealthCheck struct {
	IsHealthy     bool      `json:"is_healthy"`
	LastCheck     time.Time `json:"last_check"`
	LastError     string    `json:"last_error,omitempty"`
	CheckInterval time.Duration
	timeout       time.Duration
	checkTicker   *time.Ticker
	stopChan      chan struct{}
	stopOnce      sync.Once
	mu            sync.RWMutex
}

// CircuitBreaker implements circuit breaker pattern for Redis
type CircuitBreaker struct {
	maxFailures     int
	timeout         time.Duration
	failures        int
	lastFailureTime time.Time
	state           CircuitState
	mu              sync.Mutex
}

// CircuitState represents circuit breaker states
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// NewRedisClient connects and starts background health checks
func NewRedisClient(cfg config.RedisConfig, logger *zap.Logger) (*RedisClient, error) {
	opts := &redis.UniversalOptions{
		Addrs:           []string{cfg.Addr()},
		Password:        cfg.Password,
		DB:              cfg.Database,
		MaxRetries:      cfg.MaxRetries,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: time.Minute * 5,
		PoolTimeout:     time.Second * 10,
	}

	if cfg.EnableCluster && len(cfg.ClusterNodes) > 0 {
		opts.Addrs = cfg.ClusterNodes
		logger.Info("Redis cluster mode enabled", zap.Strings("nodes", cfg.ClusterNodes))
	}

	redisClient := NewRedisClientFrom(redis.NewUniversalClient(opts), logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	if err := redisClient.Ping(ctx); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	redisClient.recordHealth(nil)
	redisClient.startHealthCheck()

	logger.Info("Redis client initialized successfully",
		zap.Strings("addrs", opts.Addrs),
		zap.Int("database", cfg.Database),
		zap.Bool("cluster_enabled", cfg.EnableCluster))

	return redisClient, nil
}

// NewRedisClientFrom wraps an existing client without health checks
func NewRedisClientFrom(client redis.UniversalClient, logger *zap.Logger) *RedisClient {
	return &RedisClient{
		client:  client,
		logger:  logger.Named("redis"),
		metrics: &RedisMetrics{LastUpdate: time.Now()},
		healthCheck: &HealthCheck{
			CheckInterval: time.Second * 30,
			timeout:       time.Second * 5,
			stopChan:      make(chan struct{}),
		},
		circuitBreaker: &CircuitBreaker{
			maxFailures: 5,
			timeout:     time.Second * 30,
			state:       CircuitClosed,
		},
	}
}

// do runs op behind the circuit breaker and records metrics
func (r *RedisClient) do(op string, fn func() error) error {
	if !r.circuitBreaker.AllowRequest() {
		return ErrCircuitOpen
	}

	start := time.Now()
	err := fn()
	r.updateMetrics(err, time.Since(start))

	if err != nil && !errors.Is(err, redis.Nil) {
		r.circuitBreaker.RecordFailure()
		r.logger.Error("Redis command failed", zap.String("op", op), zap.Error(err))
		return eris.Wrapf(err, "redis %s", op)
	}
	r.circuitBreaker.RecordSuccess()
	return err
}

// Ping tests Redis connection
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.do("PING", func() error {
		return r.client.Ping(ctx).Err()
	})
}

// Get retrieves a value from Redis with circuit breaker protection
func (r *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte
	err := r.do("GET", func() error {
		var err error
		result, err = r.client.Get(ctx, key).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	return result, err
}

// Set stores a value in Redis with TTL
func (r *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.do("SET", func() error {
		return r.client.Set(ctx, key, value, ttl).Err()
	})
}

// Counter reads an integer counter, zero when missing
func (r *RedisClient) Counter(ctx context.Context, key string) (int64, error) {
	data, err := r.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "key %q does not hold a counter", key)
	}
	return v, nil
}

// IncrementWithin increments every key iff each stays within its limit, in one script call
func (r *RedisClient) IncrementWithin(ctx context.Context, incs ...Increment) (bool, []int64, error) {
	if len(incs) == 0 {
		return true, nil, nil
	}
	keys := make([]string, len(incs))
	args := make([]interface{}, 0, len(incs)*3)
	for i, inc := range incs {
		keys[i] = inc.Key
		args = append(args, inc.Delta, inc.Limit, inc.TTL.Milliseconds())
	}

	var reply []int64
	err := r.do("EVALSHA increment_within", func() error {
		var err error
		reply, err = incrementWithinScript.Run(ctx, r.client, keys, args...).Int64Slice()
		return err
	})
	if err != nil {
		return false, nil, err
	}
	if len(reply) != len(incs)+1 {
		return false, nil, eris.Errorf("increment script returned %d values for %d keys", len(reply), len(incs))
	}
	return reply[0] == 1, reply[1:], nil
}

// IncrementBy adds delta unconditionally
func (r *RedisClient) IncrementBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	var v int64
	err := r.do("EVALSHA increment_by", func() error {
		var err error
		v, err = incrementByScript.Run(ctx, r.client, []string{key}, delta, ttl.Milliseconds()).Int64()
		return err
	})
	return v, err
}

// GetMetrics returns current Redis metrics
func (r *RedisClient) GetMetrics() *RedisMetrics {
	r.metrics.mu.RLock()
	defer r.metrics.mu.RUnlock()

	return &RedisMetrics{
		TotalCommands:    r.metrics.TotalCommands,
		SuccessfulOps:    r.metrics.SuccessfulOps,
		FailedOps:        r.metrics.FailedOps,
		AvgResponseTime:  r.metrics.AvgResponseTime,
		ConnectionErrors: r.metrics.ConnectionErrors,
		LastUpdate:       r.metrics.LastUpdate,
	}
}

// GetHealthStatus returns health check status
func (r *RedisClient) GetHealthStatus() *HealthCheck {
	r.healthCheck.mu.RLock()
	defer r.healthCheck.mu.RUnlock()

	return &HealthCheck{
		IsHealthy: r.healthCheck.IsHealthy,
		LastCheck: r.healthCheck.LastCheck,
		LastError: r.healthCheck.LastError,
	}
}

// CircuitState reports the breaker guarding every command
func (r *RedisClient) CircuitState() CircuitState {
	return r.circuitBreaker.State()
}

// HealthStatus is a healthcheck.CustomChecker func. It reports degraded while the breaker is open
// or the last background ping failed; command counters go in the metadata.
func (r *RedisClient) HealthStatus(context.Context) (healthcheck.Status, string, interface{}) {
	m := r.GetMetrics()
	h := r.GetHealthStatus()
	state := r.CircuitState()

	metadata := map[string]interface{}{
		"circuit":         state.String(),
		"total_commands":  m.TotalCommands,
		"failed_ops":      m.FailedOps,
		"avg_response_ms": m.AvgResponseTime.Milliseconds(),
	}
	if !h.LastCheck.IsZero() {
		metadata["last_check"] = h.LastCheck
	}

	switch {
	case state == CircuitOpen:
		return healthcheck.StatusDegraded, "redis circuit breaker open", metadata
	case !h.LastCheck.IsZero() && !h.IsHealthy:
		return healthcheck.StatusDegraded, "last background ping failed: " + h.LastError, metadata
	}
	return healthcheck.StatusHealthy, "", metadata
}

// Close stops health checks and closes the connection
func (r *RedisClient) Close() error {
	r.healthCheck.stopOnce.Do(func() {
		close(r.healthCheck.stopChan)
		if r.healthCheck.checkTicker != nil {
			r.healthCheck.checkTicker.Stop()
		}
	})
	return r.client.Close()
}

func (r *RedisClient) updateMetrics(err error, duration time.Duration) {
	r.metrics.mu.Lock()
	defer r.metrics.mu.Unlock()

	r.metrics.TotalCommands++
	if err != nil && !errors.Is(err, redis.Nil) {
		r.metrics.FailedOps++
		r.metrics.ConnectionErrors++
	} else {
		r.metrics.SuccessfulOps++
	}

	// Exponential moving average, alpha 0.1
	if r.metrics.TotalCommands == 1 {
		r.metrics.AvgResponseTime = duration
	} else {
		alpha := 0.1
		r.metrics.AvgResponseTime = time.Duration(float64(r.metrics.AvgResponseTime)*(1-alpha) + float64(duration)*alpha)
	}

	r.metrics.LastUpdate = time.Now()
}

func (r *RedisClient) startHealthCheck() {
	r.healthCheck.checkTicker = time.NewTicker(r.healthCheck.CheckInterval)

	go func() {
		for {
			select {
			case <-r.healthCheck.checkTicker.C:
				r.performHealthCheck()
			case <-r.healthCheck.stopChan:
				return
			}
		}
	}()
}

func (r *RedisClient) performHealthCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), r.healthCheck.timeout)
	defer cancel()

	r.recordHealth(r.Ping(ctx))
}

func (r *RedisClient) recordHealth(err error) {
	r.healthCheck.mu.Lock()
	r.healthCheck.LastCheck = time.Now()
	r.healthCheck.IsHealthy = err == nil
	if err != nil {
		r.healthCheck.LastError = err.Error()
	} else {
		r.healthCheck.LastError = ""
	}
	r.healthCheck.mu.Unlock()
}

// AllowRequest checks if requests are allowed based on circuit state
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return true
	case CircuitOpen:
		if time.Since(cb.lastFailureTime) > cb.timeout {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful operation
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = CircuitClosed
}

// RecordFailure records a failed operation
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	if cb.failures >= cb.maxFailures || cb.state == CircuitHalfOpen {
		cb.state = CircuitOpen
	}
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
