/*
 * @module client/connectors/redis_connector
 * @description Redis连接器，创建并校验 go-redis 客户端，供模型仓库和分布式锁共用
 * @architecture 适配器模式 - 封装第三方Redis客户端
 * @documentReference DESIGN.md
 * @stateFlow 创建客户端 -> Ping 校验 -> 共享使用 -> 关闭
 * @rules 连接失败时返回错误，不做静默降级
 * @dependencies github.com/go-redis/redis/v8
 * @refs service/registry/redis_registry.go, service/distributed_lock
 */

package connectors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"forecast-service/logger"

	"github.com/go-redis/redis/v8"
)

// RedisConfig Redis配置信息
type RedisConfig struct {
	Address      string        `json:"address"`
	Password     string        `json:"password"`
	Database     int           `json:"database"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// RedisConnector Redis连接器
type RedisConnector struct {
	config RedisConfig
	client *redis.Client
	logger *slog.Logger
}

// NewRedisConnector 创建新的Redis连接器，未设置的超时和连接池参数取默认值
func NewRedisConnector(config RedisConfig, l *slog.Logger) *RedisConnector {
	if config.PoolSize <= 0 {
		config.PoolSize = 10
	}
	if config.MinIdleConns <= 0 {
		config.MinIdleConns = 2
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 3 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 3 * time.Second
	}

	return &RedisConnector{
		config: config,
		logger: logger.OrDefault(l),
		client: redis.NewClient(&redis.Options{
			Addr:         config.Address,
			Password:     config.Password,
			DB:           config.Database,
			PoolSize:     config.PoolSize,
			MinIdleConns: config.MinIdleConns,
			DialTimeout:  config.DialTimeout,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
		}),
	}
}

// Connect 校验Redis连接
func (rc *RedisConnector) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, rc.config.DialTimeout)
	defer cancel()

	if err := rc.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis连接失败: %w", err)
	}
	rc.logger.Info("Redis连接器已连接", "address", rc.config.Address, "db", rc.config.Database)
	return nil
}

// Client 返回底层客户端
func (rc *RedisConnector) Client() *redis.Client {
	return rc.client
}

// Close 关闭客户端
func (rc *RedisConnector) Close() error {
	return rc.client.Close()
}

// GetPoolStats 获取连接池统计信息
func (rc *RedisConnector) GetPoolStats() map[string]interface{} {
	stats := rc.client.PoolStats()
	return map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}
