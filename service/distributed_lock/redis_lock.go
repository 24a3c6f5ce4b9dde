/*
 * @module service/distributed_lock/redis_lock
 * @description Redis分布式锁实现，用于多实例部署下定时任务防重
 * @architecture 工具层 - 提供分布式锁能力
 * @documentReference DESIGN.md
 * @stateFlow 获取锁 -> 执行任务 -> 释放锁/自动过期
 * @rules 使用Redis SET NX实现，只有持有者可以释放或续期，支持自动过期
 * @dependencies github.com/go-redis/redis/v8
 * @refs service/scheduler, service/init.go
 */

package distributed_lock

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"forecast-service/logger"

	"github.com/go-redis/redis/v8"
)

// DefaultKeyPrefix 锁键前缀
const DefaultKeyPrefix = "forecast_scheduler:lock:"

const (
	unlockScript = `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	refreshScript = `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("expire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
)

// DistributedLock 分布式锁接口
type DistributedLock interface {
	// TryLock 尝试获取锁
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Unlock 释放锁
	Unlock(ctx context.Context, key string) error
	// Refresh 刷新锁的过期时间
	Refresh(ctx context.Context, key string, ttl time.Duration) error
	// IsLocked 检查锁是否存在
	IsLocked(ctx context.Context, key string) (bool, error)
}

// LockClient 锁使用的 Redis 命令子集，*redis.Client 满足该接口
type LockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisLock Redis分布式锁实现
type RedisLock struct {
	client     LockClient
	prefix     string
	instanceID string // 实例ID，用于标识锁的持有者
	logger     *slog.Logger
}

// NewRedisLock 创建Redis分布式锁
func NewRedisLock(client LockClient, prefix string, l *slog.Logger) *RedisLock {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	// 实例ID 使用主机名+进程ID
	hostname, _ := os.Hostname()
	return &RedisLock{
		client:     client,
		prefix:     prefix,
		instanceID: fmt.Sprintf("%s:%d", hostname, os.Getpid()),
		logger:     logger.OrDefault(l),
	}
}

// InstanceID 锁持有者标识
func (r *RedisLock) InstanceID() string {
	return r.instanceID
}

func (r *RedisLock) lockKey(key string) string {
	return r.prefix + key
}

// TryLock 尝试获取锁
// 使用SET NX命令，只有当key不存在时才会设置成功
func (r *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := r.client.SetNX(ctx, r.lockKey(key), r.instanceID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("获取锁失败: %w", err)
	}

	if result {
		r.logger.Debug("分布式锁: 成功获取锁",
			"key", key,
			"ttl", ttl,
			"instance", r.instanceID)
	}
	return result, nil
}

// Unlock 释放锁
// 使用Lua脚本确保只有锁的持有者才能释放锁
func (r *RedisLock) Unlock(ctx context.Context, key string) error {
	released, err := r.client.Eval(ctx, unlockScript, []string{r.lockKey(key)}, r.instanceID).Int64()
	if err != nil {
		return fmt.Errorf("释放锁失败: %w", err)
	}

	if released == 1 {
		r.logger.Debug("分布式锁: 成功释放锁", "key", key, "instance", r.instanceID)
	} else {
		r.logger.Warn("分布式锁: 锁不存在或已被其他实例持有", "key", key, "instance", r.instanceID)
	}
	return nil
}

// Refresh 刷新锁的过期时间
// 用于长时间运行的训练任务，防止锁过期
func (r *RedisLock) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	refreshed, err := r.client.Eval(ctx, refreshScript, []string{r.lockKey(key)}, r.instanceID, int(ttl.Seconds())).Int64()
	if err != nil {
		return fmt.Errorf("刷新锁失败: %w", err)
	}

	if refreshed == 1 {
		r.logger.Debug("分布式锁: 成功刷新锁", "key", key, "ttl", ttl, "instance", r.instanceID)
		return nil
	}
	return fmt.Errorf("锁不存在或已被其他实例持有")
}

// IsLocked 检查锁是否存在
func (r *RedisLock) IsLocked(ctx context.Context, key string) (bool, error) {
	exists, err := r.client.Exists(ctx, r.lockKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("检查锁状态失败: %w", err)
	}
	return exists > 0, nil
}

// LockExecutor 带锁执行器，用于简化锁的使用
type LockExecutor struct {
	lock   DistributedLock
	logger *slog.Logger
}

// NewLockExecutor 创建带锁执行器
func NewLockExecutor(lock DistributedLock, l *slog.Logger) *LockExecutor {
	return &LockExecutor{lock: lock, logger: logger.OrDefault(l)}
}

// ExecuteWithLock 在锁保护下执行函数，返回是否实际执行
func (e *LockExecutor) ExecuteWithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) (bool, error) {
	locked, err := e.lock.TryLock(ctx, key, ttl)
	if err != nil {
		return false, fmt.Errorf("获取锁失败: %w", err)
	}

	if !locked {
		// 不是错误，只是被其他实例执行了
		e.logger.Debug("分布式锁: 锁已被其他实例持有，跳过执行", "key", key)
		return false, nil
	}

	defer func() {
		if unlockErr := e.lock.Unlock(ctx, key); unlockErr != nil {
			e.logger.Error("分布式锁: 释放锁失败", "key", key, "error", unlockErr)
		}
	}()

	return true, fn()
}

// ExecuteWithLockAndRefresh 在锁保护下执行函数，并自动续期
func (e *LockExecutor) ExecuteWithLockAndRefresh(ctx context.Context, key string, ttl time.Duration, refreshInterval time.Duration, fn func() error) (bool, error) {
	locked, err := e.lock.TryLock(ctx, key, ttl)
	if err != nil {
		return false, fmt.Errorf("获取锁失败: %w", err)
	}

	if !locked {
		e.logger.Debug("分布式锁: 锁已被其他实例持有，跳过执行", "key", key)
		return false, nil
	}

	refreshCtx, cancelRefresh := context.WithCancel(ctx)
	refreshDone := make(chan struct{})
	go func() {
		defer close(refreshDone)
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()

		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-ticker.C:
				if refreshErr := e.lock.Refresh(ctx, key, ttl); refreshErr != nil {
					e.logger.Error("分布式锁: 续期失败", "key", key, "error", refreshErr)
				}
			}
		}
	}()

	// 先停止续期，再释放锁
	defer func() {
		cancelRefresh()
		<-refreshDone
		if unlockErr := e.lock.Unlock(ctx, key); unlockErr != nil {
			e.logger.Error("分布式锁: 释放锁失败", "key", key, "error", unlockErr)
		}
	}()

	return true, fn()
}
