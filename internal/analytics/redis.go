// Package analytics records intake volume counters in Redis. Counting is a
// best-effort side effect: errors are logged inside the sink and never
// affect request handling.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRetention is the TTL on hourly counter keys.
const DefaultRetention = 7 * 24 * time.Hour

type RedisSink struct {
	client    *redis.Client
	retention time.Duration
	clock     func() time.Time
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{
		client:    client,
		retention: DefaultRetention,
		clock:     time.Now,
	}
}

// WithRetention overrides the counter TTL.
func (s *RedisSink) WithRetention(retention time.Duration) *RedisSink {
	if retention > 0 {
		s.retention = retention
	}
	return s
}

// WithClock overrides the time source. For tests.
func (s *RedisSink) WithClock(clock func() time.Time) *RedisSink {
	s.clock = clock
	return s
}

// Record increments the hourly counter for sourceTag ("vapi-tool",
// "vapi-call", "intake", "sms").
func (s *RedisSink) Record(ctx context.Context, sourceTag string) {
	key := buildKey(sourceTag, s.clock())

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("analytics: redis pipeline: %v", err)
	}
}

func buildKey(sourceTag string, t time.Time) string {
	return fmt.Sprintf("intake:s:%s:%s", sourceTag, t.UTC().Format("2006010215"))
}
