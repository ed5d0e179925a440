package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps records in one hash: field = cluster id, value = JSON record.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(addr, password, key string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{
		client: client,
		key:    key,
	}, nil
}

func (s *RedisStore) Load(ctx context.Context) (map[int]Record, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err == redis.Nil {
		return map[int]Record{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make(map[int]Record, len(fields))
	for field, value := range fields {
		id, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid cluster id %q in %s", field, s.key)
		}
		var r Record
		if err := json.Unmarshal([]byte(value), &r); err != nil {
			return nil, fmt.Errorf("decoding record %d: %w", id, err)
		}
		r.ClusterID = id
		out[id] = r
	}
	return out, nil
}

// Save writes each record with HSETNX so stored records are never replaced.
func (s *RedisStore) Save(ctx context.Context, records map[int]Record) error {
	pipe := s.client.Pipeline()
	for id, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding record %d: %w", id, err)
		}
		pipe.HSetNX(ctx, s.key, strconv.Itoa(id), data)
	}
	if pipe.Len() == 0 {
		return nil
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
