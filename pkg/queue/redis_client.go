package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"go-edge/pkg/common"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// RedisClient records per-image progress of a batch run in Redis.
type RedisClient struct {
	client *redis.Client
	ctx    context.Context
	prefix string
}

func NewRedisClient(addr string) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newRedisClient(ctx, client), nil
}

func newRedisClient(ctx context.Context, client *redis.Client) *RedisClient {
	return &RedisClient{
		client: client,
		ctx:    ctx,
		prefix: "ed",
	}
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) resultsStream() string {
	return r.prefix + ":results"
}

func (r *RedisClient) totalElapsedKey() string {
	return r.prefix + ":total_elapsed"
}

func (r *RedisClient) imageInfoKey(imageID int) string {
	return fmt.Sprintf("%s:image:%d:info", r.prefix, imageID)
}

func (r *RedisClient) imageStatusKey(imageID int) string {
	return fmt.Sprintf("%s:image:%d:status", r.prefix, imageID)
}

// ImageStarted stores the image metadata and marks it as processing.
func (r *RedisClient) ImageStarted(info *common.ImageInfo) error {
	if err := r.StoreImageInfo(info); err != nil {
		return fmt.Errorf("failed to store image info: %w", err)
	}
	return r.client.Set(r.ctx, r.imageStatusKey(info.ID), StatusProcessing, 24*time.Hour).Err()
}

// ImageFinished sets the final status and appends one results stream entry.
// Only successful images add their filter time to the running total.
func (r *RedisClient) ImageFinished(info *common.ImageInfo, elapsed time.Duration, procErr error) error {
	status := StatusCompleted
	values := map[string]interface{}{
		"image_id": info.ID,
		"input":    info.InputPath,
		"output":   info.OutputPath,
		"elapsed":  strconv.FormatFloat(elapsed.Seconds(), 'f', -1, 64),
	}
	if procErr != nil {
		status = StatusFailed
		values["error"] = procErr.Error()
	}

	pipe := r.client.TxPipeline()
	pipe.Set(r.ctx, r.imageStatusKey(info.ID), status, 24*time.Hour)
	pipe.XAdd(r.ctx, &redis.XAddArgs{
		Stream: r.resultsStream(),
		Values: values,
	})
	if procErr == nil {
		pipe.IncrByFloat(r.ctx, r.totalElapsedKey(), elapsed.Seconds())
	}
	_, err := pipe.Exec(r.ctx)
	return err
}

func (r *RedisClient) StoreImageInfo(info *common.ImageInfo) error {
	b, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return r.client.Set(r.ctx, r.imageInfoKey(info.ID), b, 24*time.Hour).Err()
}

func (r *RedisClient) GetImageInfo(imageID int) (*common.ImageInfo, error) {
	data, err := r.client.Get(r.ctx, r.imageInfoKey(imageID)).Result()
	if err != nil {
		return nil, err
	}

	var info common.ImageInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return nil, err
	}

	return &info, nil
}

// ImageStatus returns "" when nothing was recorded for the image.
func (r *RedisClient) ImageStatus(imageID int) (string, error) {
	status, err := r.client.Get(r.ctx, r.imageStatusKey(imageID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return status, err
}

func (r *RedisClient) TotalElapsed() (float64, error) {
	total, err := r.client.Get(r.ctx, r.totalElapsedKey()).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	return total, err
}
