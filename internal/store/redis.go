package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/darmiel/linkgate/internal/core"
)

const DefaultRedisPrefix = "linkgate:"

var _ core.TokenStore = (*RedisTokenStore)(nil)

// saveScript replaces the record of a source and evicts the oldest sources
// beyond capacity in one step.
// KEYS[1] = order list, KEYS[2] = record key
// ARGV[1] = source, ARGV[2] = record JSON, ARGV[3] = capacity, ARGV[4] = record key prefix
var saveScript = redis.NewScript(`
redis.call('LREM', KEYS[1], 0, ARGV[1])
redis.call('RPUSH', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
local cap = tonumber(ARGV[3])
local evicted = {}
while redis.call('LLEN', KEYS[1]) > cap do
	local old = redis.call('LPOP', KEYS[1])
	redis.call('DEL', ARGV[4] .. old)
	table.insert(evicted, old)
end
return evicted
`)

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// RedisTokenStore is a durable TokenStore with the same replace-per-source
// and FIFO eviction semantics as InMemoryTokenStore.
//
// Layout:
//
//	{prefix}order           list of sources, oldest first
//	{prefix}record:{source} JSON encoded core.TokenRecord
type RedisTokenStore struct {
	client   *redis.Client
	prefix   string
	capacity int
}

// NewRedisTokenStore connects to redis and verifies the connection.
func NewRedisTokenStore(ctx context.Context, cfg RedisConfig, capacity int) (*RedisTokenStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisTokenStoreWithClient(client, cfg.Prefix, capacity), nil
}

func NewRedisTokenStoreWithClient(client *redis.Client, prefix string, capacity int) *RedisTokenStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RedisTokenStore{
		client:   client,
		prefix:   prefix,
		capacity: capacity,
	}
}

func (s *RedisTokenStore) orderKey() string {
	return s.prefix + "order"
}

func (s *RedisTokenStore) recordPrefix() string {
	return s.prefix + "record:"
}

func (s *RedisTokenStore) recordKey(source core.Source) string {
	return s.recordPrefix() + string(source)
}

func (s *RedisTokenStore) Save(ctx context.Context, rec core.TokenRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding token record: %w", err)
	}
	keys := []string{s.orderKey(), s.recordKey(rec.Source)}
	if err := saveScript.Run(ctx, s.client, keys,
		string(rec.Source), data, s.capacity, s.recordPrefix()).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("saving token record: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Get(ctx context.Context, source core.Source) (*core.TokenRecord, error) {
	raw, err := s.client.Get(ctx, s.recordKey(source)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &core.NotFoundError{Source: source}
		}
		return nil, fmt.Errorf("loading token record: %w", err)
	}
	var rec core.TokenRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding token record: %w", err)
	}
	return &rec, nil
}

func (s *RedisTokenStore) FindByToken(ctx context.Context, token string) (*core.TokenRecord, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range list {
		if rec.Token == token {
			return &rec, nil
		}
	}
	return nil, &core.NotFoundError{}
}

func (s *RedisTokenStore) List(ctx context.Context) ([]core.TokenRecord, error) {
	sources, err := s.client.LRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	if len(sources) == 0 {
		return []core.TokenRecord{}, nil
	}

	keys := make([]string, len(sources))
	for i, src := range sources {
		keys[i] = s.recordKey(core.Source(src))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("loading token records: %w", err)
	}

	list := make([]core.TokenRecord, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		raw, ok := values[i].(string)
		if !ok {
			// record vanished between LRANGE and MGET
			continue
		}
		var rec core.TokenRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decoding token record '%s': %w", sources[i], err)
		}
		list = append(list, rec)
	}
	return list, nil
}

func (s *RedisTokenStore) Close() error {
	return s.client.Close()
}
