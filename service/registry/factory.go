/*
 * @module service/registry/factory
 * @description 模型仓库工厂，按 REGISTRY_TYPE 创建文件、数据库或 Redis 仓库
 * @architecture 工厂模式
 * @documentReference DESIGN.md
 * @stateFlow 读取仓库配置 -> 校验依赖 -> 创建仓库
 * @rules gorm 仓库需要数据库连接，redis 仓库需要 Redis 连接
 * @dependencies gorm.io/gorm, service/config
 * @refs service/init.go
 */

package registry

import (
	"fmt"
	"log/slog"

	"forecast-service/service/config"

	"gorm.io/gorm"
)

// New 按配置创建模型仓库
func New(cfg config.RegistryConfig, db *gorm.DB, redisClient RedisKV, l *slog.Logger) (Registry, error) {
	switch cfg.Type {
	case config.RegistryFile, "":
		return NewFileRegistry(cfg.ModelDir, l), nil
	case config.RegistryGorm:
		if db == nil {
			return nil, fmt.Errorf("gorm 模型仓库需要数据库连接")
		}
		return NewGormRegistry(db, l), nil
	case config.RegistryRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis 模型仓库需要Redis连接")
		}
		return NewRedisRegistry(redisClient, cfg.KeyPrefix, l), nil
	default:
		return nil, fmt.Errorf("不支持的模型仓库类型: %s", cfg.Type)
	}
}
