/*
 * @module service/datasource/source
 * @description 历史销量数据源统一接口，按日期区间提供销量记录
 * @architecture 接口隔离原则 - 预测管道只依赖 SalesSource 接口
 * @documentReference DESIGN.md
 * @stateFlow 调用方指定区间 -> 数据源查询 -> 返回销量记录
 * @rules 区间为闭区间 [from, to]，按日粒度；超过最大天数返回 ErrWindowTooLarge；数据源不可用时返回 ErrDataUnavailable
 * @dependencies context, service/models
 * @refs simulated_source.go, gorm_source.go, sql_source.go, factory.go
 */

package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forecast-service/service/models"
)

var (
	// ErrDataUnavailable 数据源不可用
	ErrDataUnavailable = errors.New("数据源不可用")
	// ErrWindowTooLarge 查询区间超过允许的最大天数
	ErrWindowTooLarge = errors.New("查询区间过大")
)

// DefaultMaxWindowDays 单次查询默认允许的最大天数
const DefaultMaxWindowDays = 3660

// SalesSource 历史销量数据源
type SalesSource interface {
	// FetchSales 获取 [from, to] 区间内(含两端)的日销量记录
	FetchSales(ctx context.Context, from, to time.Time) ([]models.SalesRecord, error)

	// Type 数据源类型
	Type() string
}

// SalesWriter 可写入销量记录的数据源，供消息接入使用
type SalesWriter interface {
	AppendSales(ctx context.Context, records []models.SalesRecord) error
}

// WindowLimiter 可配置最大查询区间的数据源
type WindowLimiter interface {
	SetMaxWindowDays(days int)
}

// windowLimit 嵌入各数据源，0 表示使用 DefaultMaxWindowDays
type windowLimit struct {
	maxDays int
}

// SetMaxWindowDays 设置单次查询允许的最大天数
func (w *windowLimit) SetMaxWindowDays(days int) {
	w.maxDays = days
}

// normalizeRange 截断到日并校验区间
func (w *windowLimit) normalizeRange(from, to time.Time) (time.Time, time.Time, error) {
	from, to = models.TruncateDay(from), models.TruncateDay(to)
	if err := CheckWindow(from, to, w.maxDays); err != nil {
		return from, to, err
	}
	return from, to, nil
}

// CheckWindow 校验闭区间 [from, to] 的顺序和天数，maxDays<=0 时使用 DefaultMaxWindowDays
func CheckWindow(from, to time.Time, maxDays int) error {
	from, to = models.TruncateDay(from), models.TruncateDay(to)
	if to.Before(from) {
		return fmt.Errorf("结束日期 %s 早于开始日期 %s",
			to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	if maxDays <= 0 {
		maxDays = DefaultMaxWindowDays
	}
	// 超过约292年时 Sub 饱和为最大时长，仍大于任何合理上限
	if days := int64(to.Sub(from).Hours()/24) + 1; days > int64(maxDays) {
		return fmt.Errorf("%w: %s 至 %s 共 %d 天，最多 %d 天", ErrWindowTooLarge,
			from.Format(time.DateOnly), to.Format(time.DateOnly), days, maxDays)
	}
	return nil
}
