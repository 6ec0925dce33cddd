package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// claimScript leases due members by pushing their score to the lease deadline.
// A member whose handler never acknowledges becomes due again after the lease.
var claimScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, m in ipairs(due) do
  redis.call('ZADD', KEYS[1], ARGV[3], m)
end
return due
`)

// ackScript removes a member only while it still carries our lease; a
// reschedule in the meantime wins.
var ackScript = redis.NewScript(`
local s = redis.call('ZSCORE', KEYS[1], ARGV[1])
if s and tonumber(s) == tonumber(ARGV[2]) then
  return redis.call('ZREM', KEYS[1], ARGV[1])
end
return 0
`)

// RedisConfig configures the Redis scheduler.
type RedisConfig struct {
	Key          string
	PollInterval time.Duration
	Lease        time.Duration
	Batch        int
	Logger       *slog.Logger
}

// Redis keeps jobs in a sorted set scored by due time, so pending jobs
// survive restarts and any node in the cluster may execute them.
type Redis struct {
	client   redis.UniversalClient
	key      string
	interval time.Duration
	lease    time.Duration
	batch    int
	logger   *slog.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRedis builds a Redis scheduler on top of an existing client.
func NewRedis(client redis.UniversalClient, cfg RedisConfig) *Redis {
	if cfg.Key == "" {
		cfg.Key = "notification:jobs"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = time.Minute
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Redis{
		client:   client,
		key:      cfg.Key,
		interval: cfg.PollInterval,
		lease:    cfg.Lease,
		batch:    cfg.Batch,
		logger:   cfg.Logger.With("component", "scheduler", "backend", "redis"),
		handlers: make(map[string]HandlerFunc),
	}
}

func (s *Redis) Schedule(ctx context.Context, kind string, id int, runAt time.Time) error {
	err := s.client.ZAdd(ctx, s.key, redis.Z{Score: float64(runAt.UnixMilli()), Member: member(kind, id)}).Err()
	if err != nil {
		return fmt.Errorf("zadd job: %w", err)
	}
	return nil
}

func (s *Redis) Cancel(ctx context.Context, kind string, id int) error {
	return s.client.ZRem(ctx, s.key, member(kind, id)).Err()
}

func (s *Redis) Handle(kind string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[kind] = fn
}

// RunDue claims and executes the jobs due at now.
func (s *Redis) RunDue(ctx context.Context, now time.Time) (int, error) {
	leaseUntil := now.Add(s.lease).UnixMilli()
	members, err := claimScript.Run(ctx, s.client, []string{s.key}, now.UnixMilli(), s.batch, leaseUntil).StringSlice()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("claim jobs: %w", err)
	}

	for _, m := range members {
		kind, id, err := parseMember(m)
		if err != nil {
			s.logger.Error("dropping malformed job", "member", m, "error", err)
			_ = s.client.ZRem(ctx, s.key, m).Err()
			continue
		}
		s.mu.RLock()
		fn, ok := s.handlers[kind]
		s.mu.RUnlock()
		if !ok {
			// Another node may own this kind; let the lease expire.
			s.logger.Warn("no handler for job", "kind", kind, "id", id)
			continue
		}
		if err := fn(ctx, id); err != nil {
			s.logger.Error("job failed, will retry after lease", "kind", kind, "id", id, "error", err)
			continue
		}
		if err := ackScript.Run(ctx, s.client, []string{s.key}, m, strconv.FormatInt(leaseUntil, 10)).Err(); err != nil && err != redis.Nil {
			s.logger.Warn("job ack failed", "kind", kind, "id", id, "error", err)
		}
	}
	return len(members), nil
}

// Run polls for due jobs until ctx is cancelled.
func (s *Redis) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if _, err := s.RunDue(ctx, now); err != nil {
				s.logger.Error("scheduler poll failed", "error", err)
			}
		}
	}
}
