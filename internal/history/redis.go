package history

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces snapshot keys in redis.
const KeyPrefix = "dumpx:history:"

// RedisStore keeps snapshots in redis with an optional expiry.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to addr and pings it.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis history backend needs an address")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck,gosec // ping error wins
		return nil, errors.Wrapf(err, "connect to redis at %s", addr)
	}
	return NewRedisStoreFromClient(client, ttl), nil
}

// NewRedisStoreFromClient wraps an existing client. Close closes it.
func NewRedisStoreFromClient(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Snapshot, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	data, err := s.client.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}
	return Decode(data)
}

func (s *RedisStore) Put(ctx context.Context, snap *Snapshot) error {
	if snap.Key == "" {
		return ErrEmptyKey
	}
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	return errors.Wrap(s.client.Set(ctx, KeyPrefix+snap.Key, data, s.ttl).Err(), "redis set")
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return errors.Wrap(s.client.Del(ctx, KeyPrefix+key).Err(), "redis del")
}

func (s *RedisStore) Close() error { return s.client.Close() }
