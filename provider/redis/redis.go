// Package redis implements provider.KeyedStore and provider.SetStore on Redis.
//
// Each data kind is a hash. The conditional write is a Lua script that
// compares and sets one field atomically, so writes to other fields of the
// same hash never make it fail.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/flagstore/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

// KEYS[1] hash, ARGV[1] field, ARGV[2] "1" when ARGV[3] holds the expected
// value (otherwise the field must be absent), ARGV[4] new value.
var conditionalPut = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if ARGV[2] == '1' then
  if cur ~= ARGV[3] then return 0 end
elseif cur then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[4])
return 1
`)

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var (
	_ pr.KeyedStore = (*Redis)(nil)
	_ pr.SetStore   = (*Redis)(nil)
)

type Config struct {
	// Client is used as is. When nil, URL is parsed with redis.ParseURL and
	// the resulting client is owned by the provider.
	Client goredis.UniversalClient
	URL    string

	// Applied on top of URL when non-zero; ignored when Client is set.
	// The URL form works too: redis://host:6379/2?dial_timeout=3s&read_timeout=1s
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	CheckOnStartup bool // PING in New and fail fast
	CloseClient    bool // set true only if this provider exclusively owns Client
}

func New(ctx context.Context, cfg Config) (*Redis, error) {
	rdb, owned := cfg.Client, cfg.CloseClient
	if rdb == nil {
		if cfg.URL == "" {
			return nil, ErrNilClient
		}
		opts, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redis provider: %w", err)
		}
		if cfg.DB != 0 {
			opts.DB = cfg.DB
		}
		opts.DialTimeout = coalesce(cfg.DialTimeout, opts.DialTimeout)
		opts.ReadTimeout = coalesce(cfg.ReadTimeout, opts.ReadTimeout)
		opts.WriteTimeout = coalesce(cfg.WriteTimeout, opts.WriteTimeout)
		rdb, owned = goredis.NewClient(opts), true
	}
	p := &Redis{rdb: rdb, closeClient: owned}
	if cfg.CheckOnStartup {
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = p.Close(ctx)
			return nil, fmt.Errorf("redis provider: ping: %w", err)
		}
	}
	return p, nil
}

func (p *Redis) Get(ctx context.Context, hashKey, field string) ([]byte, bool, error) {
	b, err := p.rdb.HGet(ctx, hashKey, field).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) GetAll(ctx context.Context, hashKey string) (map[string][]byte, error) {
	res, err := p.rdb.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(res))
	for k, v := range res {
		out[k] = []byte(v)
	}
	return out, nil
}

// ConditionalPut reports false when the field did not hold old. A nil old
// means the field must be absent.
func (p *Redis) ConditionalPut(ctx context.Context, hashKey, field string, old, value []byte) (bool, error) {
	hasOld := "0"
	if old != nil {
		hasOld = "1"
	}
	n, err := conditionalPut.Run(ctx, p.rdb, []string{hashKey}, field, hasOld, old, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReplaceAll runs as a single MULTI/EXEC so readers never see a half
// written kind.
func (p *Redis) ReplaceAll(ctx context.Context, collections map[string]map[string][]byte, markerKey string) error {
	hashKeys := make([]string, 0, len(collections))
	for k := range collections {
		hashKeys = append(hashKeys, k)
	}
	sort.Strings(hashKeys)

	_, err := p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, hk := range hashKeys {
			items := collections[hk]
			pipe.Del(ctx, hk)
			if len(items) == 0 {
				continue
			}
			args := make([]any, 0, 2*len(items))
			for field, v := range items {
				args = append(args, field, v)
			}
			pipe.HSet(ctx, hk, args...)
		}
		pipe.Set(ctx, markerKey, "", 0)
		return nil
	})
	return err
}

func (p *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Redis) Members(ctx context.Context, key string) ([]string, error) {
	return p.rdb.SMembers(ctx, key).Result()
}

func (p *Redis) GetString(ctx context.Context, key string) (string, bool, error) {
	s, err := p.rdb.Get(ctx, key).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func coalesce(v, def time.Duration) time.Duration {
	if v != 0 {
		return v
	}
	return def
}
