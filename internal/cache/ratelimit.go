package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimitResult is the outcome of one token bucket check.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// tokenBucketScript refills and consumes one token atomically.
// Returns {allowed, retry_after_seconds, remaining_tokens}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local data = redis.call('HMGET', key, 'tokens', 'last_update')
	local tokens = tonumber(data[1]) or burst
	local last_update = tonumber(data[2]) or now

	tokens = math.min(burst, tokens + ((now - last_update) * rate))

	local allowed = 0
	local retry_after = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
	redis.call('EXPIRE', key, ttl)

	return {allowed, retry_after, math.floor(tokens)}
`)

// Allow consumes one token from subject's bucket.
// rate is tokens per second and burst the bucket capacity.
// Redis failures fail open and are reported alongside an allowed result.
func (c *Cache) Allow(ctx context.Context, subject string, rate float64, burst int) (*RateLimitResult, error) {
	now := time.Now()
	open := &RateLimitResult{
		Allowed:   true,
		Limit:     burst,
		Remaining: int64(burst),
		ResetAt:   now.Add(time.Second),
	}
	if rate <= 0 || burst <= 0 {
		return open, nil
	}

	res, err := tokenBucketScript.Run(ctx, c.client,
		[]string{rateLimitKeyPrefix + hashSubject(subject)},
		rate, burst, now.Unix(), bucketTTL(rate, burst),
	).Int64Slice()
	if err != nil {
		return open, err
	}

	return &RateLimitResult{
		Allowed:    res[0] == 1,
		Limit:      burst,
		Remaining:  res[2],
		ResetAt:    now.Add(time.Duration(float64(time.Second) / rate)),
		RetryAfter: time.Duration(res[1]) * time.Second,
	}, nil
}

// bucketTTL keeps a bucket until it would have refilled completely.
func bucketTTL(rate float64, burst int) int {
	ttl := int(math.Ceil(float64(burst)/rate)) + 1
	if ttl < 10 {
		return 10
	}
	return ttl
}

// hashSubject avoids storing raw IPs and user IDs in Redis keys.
func hashSubject(subject string) string {
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:8])
}
