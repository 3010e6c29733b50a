package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "doclayout:predict:"

var ErrCacheMiss = errors.New("cache miss")

type IRedis interface {
	GetPrediction(ctx context.Context, key string) ([]byte, error)
	SetPrediction(ctx context.Context, key string, value []byte, expiration time.Duration) error
	DeletePrediction(ctx context.Context, key string) error
	Close() error
}

type redisClient struct {
	client *redis.Client
}

// New returns nil when REDIS_ADDRESS is unset so the cache stays optional.
func New() IRedis {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		logrus.Info("REDIS_ADDRESS not set, prediction cache disabled")
		return nil
	}

	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))

	return NewWithOptions(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	})
}

func NewWithOptions(opts *redis.Options) IRedis {
	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", opts.Addr))

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

func (r *redisClient) GetPrediction(ctx context.Context, key string) ([]byte, error) {
	logrus.Debug(fmt.Sprintf("Getting cached prediction for key %s", key))
	val, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		logrus.Debug(fmt.Sprintf("Prediction not cached for key %s", key))
		return nil, ErrCacheMiss
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting prediction for key %s: %v", key, err))
		return nil, err
	}
	return val, nil
}

func (r *redisClient) SetPrediction(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	logrus.Debug(fmt.Sprintf("Caching prediction for key %s with expiration %v", key, expiration))
	if err := r.client.Set(ctx, keyPrefix+key, value, expiration).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error caching prediction for key %s: %v", key, err))
		return err
	}
	return nil
}

func (r *redisClient) DeletePrediction(ctx context.Context, key string) error {
	result, err := r.client.Del(ctx, keyPrefix+key).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error deleting prediction for key %s: %v", key, err))
		return err
	}

	if result == 0 {
		logrus.Debug(fmt.Sprintf("Prediction key %s not found for deletion", key))
	}
	return nil
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
