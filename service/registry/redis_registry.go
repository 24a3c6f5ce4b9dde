/*
 * @module service/registry/redis_registry
 * @description Redis 模型仓库，每个模型一个字符串键
 * @architecture 仓储实现 - go-redis
 * @documentReference DESIGN.md
 * @stateFlow Save: SET 覆盖；Load: GET -> 校验 -> 还原；List: SCAN 前缀
 * @rules 键格式 {prefix}{filename}；单条 SET 保证覆盖的原子性
 * @dependencies github.com/go-redis/redis/v8
 * @refs registry.go, client/connectors/redis_connector.go
 */

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"forecast-service/logger"
	"forecast-service/service/forecast"

	"github.com/go-redis/redis/v8"
)

// RedisKV 仓库用到的 Redis 命令
type RedisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// RedisRegistry Redis 模型仓库
type RedisRegistry struct {
	client RedisKV
	prefix string
	logger *slog.Logger
}

// NewRedisRegistry 创建 Redis 模型仓库
func NewRedisRegistry(client RedisKV, prefix string, l *slog.Logger) *RedisRegistry {
	return &RedisRegistry{client: client, prefix: prefix, logger: logger.OrDefault(l)}
}

// Type 仓库类型
func (r *RedisRegistry) Type() string {
	return "redis"
}

func (r *RedisRegistry) redisKey(key ModelKey) string {
	return r.prefix + key.Filename()
}

// Save 保存模型
func (r *RedisRegistry) Save(ctx context.Context, m forecast.Model) error {
	key := KeyOf(m)
	if err := key.Validate(); err != nil {
		return err
	}
	data, _, err := encodeArtifact(m)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.redisKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("写入Redis失败: %w", err)
	}

	r.logger.Info("模型已保存",
		"model_kind", key.Kind,
		"location_key", key.LocationKey,
		"item_key", key.ItemKey,
		"registry", r.Type())
	return nil
}

// Load 加载模型
func (r *RedisRegistry) Load(ctx context.Context, key ModelKey) (forecast.Model, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	data, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, key)
		}
		return nil, fmt.Errorf("读取Redis失败: %w", err)
	}
	return decodeArtifact(data, key)
}

// List 扫描前缀下的全部模型
func (r *RedisRegistry) List(ctx context.Context) (ListResult, error) {
	var (
		cursor uint64
		names  []string
	)
	// SCAN 可能多次返回同一个键
	seen := make(map[string]struct{})
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", 100).Result()
		if err != nil {
			return ListResult{}, fmt.Errorf("扫描Redis失败: %w", err)
		}
		for _, k := range keys {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			names = append(names, strings.TrimPrefix(k, r.prefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return newListResult(names, fmt.Sprintf("前缀 %s 下没有模型", r.prefix)), nil
}
