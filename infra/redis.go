package infra

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tnqbao/gau-review-orchestrator/config"
)

// CancelChannel carries ids of jobs whose owners asked to stop them.
const CancelChannel = "review:cancel"

var ErrCacheMiss = errors.New("key not found in cache")

type RedisClient struct {
	Client *redis.Client
}

func InitRedisClient(cfg *config.EnvConfig) *RedisClient {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.RedisHost + ":" + cfg.Redis.RedisPort,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.Database,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis connection failed: %v", err)
	}

	log.Println("Connected to Redis:", cfg.Redis.RedisPort+" on "+cfg.Redis.RedisHost)

	return &RedisClient{Client: client}
}

func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	return r.Client.Del(ctx, keys...).Err()
}

// NotifyCancel tells whichever worker is executing the job that a stop was requested.
func (r *RedisClient) NotifyCancel(ctx context.Context, jobID uint64) error {
	return r.Client.Publish(ctx, CancelChannel, strconv.FormatUint(jobID, 10)).Err()
}

// SubscribeCancel invokes handle for every cancel notification until ctx is done.
func (r *RedisClient) SubscribeCancel(ctx context.Context, handle func(jobID uint64)) error {
	pubsub := r.Client.Subscribe(ctx, CancelChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				jobID, err := strconv.ParseUint(msg.Payload, 10, 64)
				if err != nil {
					continue
				}
				handle(jobID)
			}
		}
	}()

	return nil
}

func (r *RedisClient) Close() error {
	return r.Client.Close()
}
