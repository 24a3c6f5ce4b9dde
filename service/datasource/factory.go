/*
 * @module service/datasource/factory
 * @description 数据源工厂，按配置的数据源类型创建 SalesSource
 * @architecture 工厂模式 - 类型到构造函数的注册表
 * @documentReference DESIGN.md
 * @stateFlow 读取 DATA_SOURCE_TYPE -> 查找构造函数 -> 创建数据源
 * @rules 未注册的类型返回错误
 * @dependencies gorm.io/gorm, service/config
 * @refs source.go, service/init.go
 */

package datasource

import (
	"context"
	"fmt"
	"sort"

	"forecast-service/service/config"

	"gorm.io/gorm"
)

// Deps 创建数据源所需的依赖
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
}

// Creator 数据源构造函数
type Creator func(ctx context.Context, deps Deps) (SalesSource, error)

var creators = map[string]Creator{
	config.DataSourceSimulated: func(ctx context.Context, deps Deps) (SalesSource, error) {
		return NewSimulatedSource(42), nil
	},
	config.DataSourceGorm: func(ctx context.Context, deps Deps) (SalesSource, error) {
		if deps.DB == nil {
			return nil, fmt.Errorf("gorm 数据源需要数据库连接")
		}
		return NewGormSource(deps.DB), nil
	},
	config.DataSourcePostgreSQL: func(ctx context.Context, deps Deps) (SalesSource, error) {
		return OpenSQLSource(ctx, deps.Config.Database.DSN(), deps.Config.DataSource.SalesTable)
	},
}

// NewSource 按配置创建数据源
func NewSource(ctx context.Context, deps Deps) (SalesSource, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	creator, ok := creators[deps.Config.DataSource.Type]
	if !ok {
		return nil, fmt.Errorf("不支持的数据源类型: %s，支持的类型: %v", deps.Config.DataSource.Type, SupportedTypes())
	}
	src, err := creator(ctx, deps)
	if err != nil {
		return nil, err
	}
	if limiter, ok := src.(WindowLimiter); ok {
		limiter.SetMaxWindowDays(deps.Config.DataSource.MaxWindowDays)
	}
	return src, nil
}

// SupportedTypes 已注册的数据源类型
func SupportedTypes() []string {
	types := make([]string, 0, len(creators))
	for t := range creators {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
