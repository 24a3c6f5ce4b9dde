/*
 * @module service/datasource/gorm_source
 * @description 基于 gorm 的销量数据源，读写 sales_records 表
 * @architecture 数据源实现 - 数据访问层
 * @documentReference DESIGN.md
 * @stateFlow 区间查询 -> sales_records -> 销量记录；消息接入 -> 批量写入
 * @rules 支持 sqlite 和 postgres，表结构由 models.SalesRecord 定义
 * @dependencies gorm.io/gorm
 * @refs service/models/series.go, service/ingest
 */

package datasource

import (
	"context"
	"fmt"
	"time"

	"forecast-service/service/models"

	"gorm.io/gorm"
)

// GormSource gorm 数据源
type GormSource struct {
	windowLimit
	db        *gorm.DB
	batchSize int
}

// NewGormSource 创建 gorm 数据源
func NewGormSource(db *gorm.DB) *GormSource {
	return &GormSource{db: db, batchSize: 500}
}

// Type 数据源类型
func (s *GormSource) Type() string {
	return "gorm"
}

// FetchSales 查询区间内的销量记录
func (s *GormSource) FetchSales(ctx context.Context, from, to time.Time) ([]models.SalesRecord, error) {
	from, to, err := s.normalizeRange(from, to)
	if err != nil {
		return nil, err
	}

	var records []models.SalesRecord
	err = s.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Order("date ASC, id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("%w: 查询销量记录失败: %v", ErrDataUnavailable, err)
	}
	return records, nil
}

// AppendSales 批量写入销量记录
func (s *GormSource) AppendSales(ctx context.Context, records []models.SalesRecord) error {
	if len(records) == 0 {
		return nil
	}
	for i := range records {
		records[i].Date = models.TruncateDay(records[i].Date)
	}
	if err := s.db.WithContext(ctx).CreateInBatches(records, s.batchSize).Error; err != nil {
		return fmt.Errorf("写入销量记录失败: %w", err)
	}
	return nil
}
