package session

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStorage is a Storage backed by redis, for clients that live in more
// than one process (a CLI and a daemon, several workers) and still need to
// share one session. Change notification rides on a pub/sub channel so a
// write in one process wakes the reconcilers in all the others.
type RedisStorage struct {
	client  *redis.Client
	channel string
}

// NewRedisStorage wraps an existing redis client. channel names the pub/sub
// channel used for change notifications; every RedisStorage sharing the same
// session keys must use the same channel.
func NewRedisStorage(client *redis.Client, channel string) (*RedisStorage, error) {
	if client == nil {
		return nil, errors.New("[session.NewRedisStorage] redis client is required")
	}
	if channel == "" {
		channel = "lomasi_session:changes"
	}
	return &RedisStorage{client: client, channel: channel}, nil
}

// Get implements Storage.
func (r *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "redis get")
	}
	return value, true, nil
}

// Set implements Storage.
func (r *RedisStorage) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	if err := r.client.Publish(ctx, r.channel, key).Err(); err != nil {
		return errors.Wrap(err, "redis publish")
	}
	return nil
}

// Del implements Storage.
func (r *RedisStorage) Del(ctx context.Context, key string) error {
	deleted, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return errors.Wrap(err, "redis del")
	}
	if deleted > 0 {
		if err := r.client.Publish(ctx, r.channel, key).Err(); err != nil {
			return errors.Wrap(err, "redis publish")
		}
	}
	return nil
}

// Watch implements Storage. It subscribes to the change channel and forwards
// every published key to fn until stop is called.
func (r *RedisStorage) Watch(fn func(key string)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, r.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, errors.Wrap(err, "redis subscribe")
	}

	go func() {
		for msg := range pubsub.Channel() {
			fn(msg.Payload)
		}
	}()

	return func() {
		cancel()
		_ = pubsub.Close()
	}, nil
}
