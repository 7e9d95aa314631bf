// Package limiter provides a cooldown breaker for flaky external engines.
// When an engine fails, callers skip it for an exponentially growing period.
package limiter

import (
    "context"
    "fmt"
    "strings"
    "sync"
    "time"

    redis "github.com/redis/go-redis/v9"
)

// Breaker tracks cooldowns per engine name. Close reports whether there was
// any failure state to clear.
type Breaker interface {
    IsOpen(ctx context.Context, engine string) bool
    Open(ctx context.Context, engine string) time.Duration
    Close(ctx context.Context, engine string) bool
}

// Options configure backoff and, optionally, shared Redis state.
type Options struct {
    RedisURL    string
    BaseBackoff time.Duration
    MaxBackoff  time.Duration
}

func (o *Options) defaults() {
    if o.BaseBackoff <= 0 { o.BaseBackoff = 30 * time.Second }
    if o.MaxBackoff <= 0 { o.MaxBackoff = 5 * time.Minute }
}

// New returns a Redis breaker when RedisURL is set, otherwise an in-process one.
func New(opts Options) (Breaker, error) {
    opts.defaults()
    if opts.RedisURL == "" {
        return NewMemory(opts), nil
    }
    return NewRedis(opts)
}

func backoff(base, maxD time.Duration, attempts int64) time.Duration {
    if attempts < 1 { attempts = 1 }
    if attempts > 20 { return maxD }
    d := base * (1 << (attempts - 1))
    if d > maxD || d <= 0 { d = maxD }
    return d
}

// Redis shares breaker state between instances.
type Redis struct {
    rdb         *redis.Client
    baseBackoff time.Duration
    maxBackoff  time.Duration
}

// NewRedis connects and pings before returning.
func NewRedis(opts Options) (*Redis, error) {
    opts.defaults()
    ro, err := redis.ParseURL(opts.RedisURL)
    if err != nil { return nil, fmt.Errorf("parse redis url: %w", err) }
    c := redis.NewClient(ro)
    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    if err := c.Ping(ctx).Err(); err != nil {
        _ = c.Close()
        return nil, fmt.Errorf("redis ping: %w", err)
    }
    return &Redis{rdb: c, baseBackoff: opts.BaseBackoff, maxBackoff: opts.MaxBackoff}, nil
}

func (r *Redis) key(engine string) string {
    return "tealpdf:cb:" + strings.ToLower(engine)
}

// IsOpen returns true while the cooldown is active. Redis errors fail closed
// so that an outage never blocks conversions.
func (r *Redis) IsOpen(ctx context.Context, engine string) bool {
    ts, err := r.rdb.Get(ctx, r.key(engine)).Int64()
    if err != nil { return false }
    return time.Now().Unix() < ts
}

// Open sets or extends the cooldown and returns its length.
func (r *Redis) Open(ctx context.Context, engine string) time.Duration {
    k := r.key(engine)
    attempts, _ := r.rdb.Incr(ctx, k+":attempts").Result()
    d := backoff(r.baseBackoff, r.maxBackoff, attempts)
    _ = r.rdb.Expire(ctx, k+":attempts", 2*r.maxBackoff).Err()
    _ = r.rdb.Set(ctx, k, time.Now().Add(d).Unix(), d).Err()
    return d
}

// Close resets the breaker.
func (r *Redis) Close(ctx context.Context, engine string) bool {
    k := r.key(engine)
    n, err := r.rdb.Del(ctx, k, k+":attempts").Result()
    return err == nil && n > 0
}

// Ping lets health checks probe the connection.
func (r *Redis) Ping(ctx context.Context) error { return r.rdb.Ping(ctx).Err() }

// CloseClient releases the Redis connection pool.
func (r *Redis) CloseClient() error { return r.rdb.Close() }

// Memory keeps breaker state in this process.
type Memory struct {
    mu          sync.Mutex
    baseBackoff time.Duration
    maxBackoff  time.Duration
    state       map[string]*memState
    now         func() time.Time
}

type memState struct {
    attempts int64
    until    time.Time
}

// NewMemory builds an in-process breaker.
func NewMemory(opts Options) *Memory {
    opts.defaults()
    return &Memory{baseBackoff: opts.BaseBackoff, maxBackoff: opts.MaxBackoff, state: map[string]*memState{}, now: time.Now}
}

func (m *Memory) IsOpen(_ context.Context, engine string) bool {
    m.mu.Lock()
    defer m.mu.Unlock()
    st, ok := m.state[strings.ToLower(engine)]
    return ok && m.now().Before(st.until)
}

func (m *Memory) Open(_ context.Context, engine string) time.Duration {
    m.mu.Lock()
    defer m.mu.Unlock()
    k := strings.ToLower(engine)
    st, ok := m.state[k]
    if !ok {
        st = &memState{}
        m.state[k] = st
    }
    st.attempts++
    d := backoff(m.baseBackoff, m.maxBackoff, st.attempts)
    st.until = m.now().Add(d)
    return d
}

func (m *Memory) Close(_ context.Context, engine string) bool {
    m.mu.Lock()
    defer m.mu.Unlock()
    k := strings.ToLower(engine)
    _, ok := m.state[k]
    delete(m.state, k)
    return ok
}
