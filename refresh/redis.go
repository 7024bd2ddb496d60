package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

// KEYS[1] record key
// ARGV[1] presented hash, ARGV[2] now (unix ms), ARGV[3] next hash,
// ARGV[4] next issued (unix ms), ARGV[5] next expiry (unix ms),
// ARGV[6] next ttl (ms), ARGV[7] "1" to revoke on mismatch
const rotateRefreshScript = `
local data = redis.call("HMGET", KEYS[1], "h", "e")
if not data[1] then
  return 0
end

local expires_at = tonumber(data[2])
local now_ms = tonumber(ARGV[2])
if not expires_at or expires_at <= now_ms then
  redis.call("DEL", KEYS[1])
  return 1
end

if data[1] ~= ARGV[1] then
  if ARGV[7] == "1" then
    redis.call("DEL", KEYS[1])
  end
  return 2
end

redis.call("HSET", KEYS[1], "h", ARGV[3], "i", ARGV[4], "e", ARGV[5])
redis.call("PEXPIRE", KEYS[1], ARGV[6])
return 3
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// RedisStore keeps one hash per owner under "<prefix>:<ownerID>" with
// fields h (token hash), i (issued, unix ms) and e (expiry, unix ms).
// Rotation runs as a Lua script, so Redis serializes concurrent rotations.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	opts   Options
}

// NewRedisStore creates a RedisStore. An empty prefix defaults to "wr".
func NewRedisStore(client redis.UniversalClient, prefix string, opts Options) *RedisStore {
	if prefix == "" {
		prefix = "wr"
	}
	return &RedisStore{redis: client, prefix: prefix, opts: opts}
}

func (s *RedisStore) key(ownerID string) string {
	return s.prefix + ":" + ownerID
}

func (s *RedisStore) Replace(ctx context.Context, rec Record) error {
	ttl := rec.TTL()
	if ttl <= 0 {
		return fmt.Errorf("refresh record for %s has non-positive lifetime", rec.OwnerID)
	}
	key := s.key(rec.OwnerID)
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key,
			"h", rec.TokenHash[:],
			"i", strconv.FormatInt(rec.IssuedAt.UnixMilli(), 10),
			"e", strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10),
		)
		p.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Rotate(ctx context.Context, presented [32]byte, next Record, now time.Time) error {
	ttl := next.TTL()
	if ttl <= 0 {
		return fmt.Errorf("refresh record for %s has non-positive lifetime", next.OwnerID)
	}
	revoke := "0"
	if s.opts.RevokeOnReuse {
		revoke = "1"
	}

	code, err := rotateRefreshLua.Run(
		ctx,
		s.redis,
		[]string{s.key(next.OwnerID)},
		presented[:],
		now.UnixMilli(),
		next.TokenHash[:],
		next.IssuedAt.UnixMilli(),
		next.ExpiresAt.UnixMilli(),
		ttl.Milliseconds(),
		revoke,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch code {
	case rotateStatusNotFound:
		return ErrNotFound
	case rotateStatusExpired:
		return ErrExpired
	case rotateStatusMismatch:
		return ErrMismatch
	case rotateStatusRotated:
		return nil
	default:
		return fmt.Errorf("%w: unknown refresh script status %d", ErrUnavailable, code)
	}
}

func (s *RedisStore) Get(ctx context.Context, ownerID string) (Record, error) {
	vals, err := s.redis.HMGet(ctx, s.key(ownerID), "h", "i", "e").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(vals) != 3 || vals[0] == nil {
		return Record{}, ErrNotFound
	}

	hash, _ := vals[0].(string)
	if len(hash) != 32 {
		return Record{}, fmt.Errorf("%w: corrupt refresh record", ErrUnavailable)
	}
	issued, err := parseMillis(vals[1])
	if err != nil {
		return Record{}, err
	}
	expires, err := parseMillis(vals[2])
	if err != nil {
		return Record{}, err
	}

	rec := Record{OwnerID: ownerID, IssuedAt: issued, ExpiresAt: expires}
	copy(rec.TokenHash[:], hash)
	return rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, ownerID string) error {
	if err := s.redis.Del(ctx, s.key(ownerID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func parseMillis(v interface{}) (time.Time, error) {
	str, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: corrupt refresh record", ErrUnavailable)
	}
	ms, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: corrupt refresh record", ErrUnavailable)
	}
	return time.UnixMilli(ms), nil
}
