/*
 * @module service/registry/gorm_registry
 * @description 数据库模型仓库，模型制品存放在 model_artifacts 表
 * @architecture 仓储实现 - gorm
 * @documentReference DESIGN.md
 * @stateFlow Save: upsert 单行；Load: 按文件名查询 -> 校验 -> 还原
 * @rules 文件名为主键，单条 upsert 保证覆盖的原子性
 * @dependencies gorm.io/gorm, gorm.io/gorm/clause
 * @refs registry.go, service/models/model_artifact.go
 */

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"forecast-service/logger"
	"forecast-service/service/forecast"
	"forecast-service/service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRegistry 数据库模型仓库
type GormRegistry struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewGormRegistry 创建数据库模型仓库
func NewGormRegistry(db *gorm.DB, l *slog.Logger) *GormRegistry {
	return &GormRegistry{db: db, logger: logger.OrDefault(l)}
}

// Type 仓库类型
func (r *GormRegistry) Type() string {
	return "gorm"
}

// Save 保存模型
func (r *GormRegistry) Save(ctx context.Context, m forecast.Model) error {
	key := KeyOf(m)
	if err := key.Validate(); err != nil {
		return err
	}
	data, sum, err := encodeArtifact(m)
	if err != nil {
		return err
	}

	row := models.ModelArtifact{
		Filename:    key.Filename(),
		Kind:        string(key.Kind),
		LocationKey: key.LocationKey,
		ItemKey:     key.ItemKey,
		Payload:     data,
		Checksum:    sum,
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "filename"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "location_key", "item_key", "payload", "checksum", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("保存模型制品失败: %w", err)
	}

	r.logger.Info("模型已保存",
		"model_kind", key.Kind,
		"location_key", key.LocationKey,
		"item_key", key.ItemKey,
		"registry", r.Type())
	return nil
}

// Load 加载模型
func (r *GormRegistry) Load(ctx context.Context, key ModelKey) (forecast.Model, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	var row models.ModelArtifact
	err := r.db.WithContext(ctx).Where("filename = ?", key.Filename()).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, key)
		}
		return nil, fmt.Errorf("查询模型制品失败: %w", err)
	}
	return decodeArtifact(row.Payload, key)
}

// List 列出全部模型
func (r *GormRegistry) List(ctx context.Context) (ListResult, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&models.ModelArtifact{}).Order("filename").Pluck("filename", &names).Error
	if err != nil {
		return ListResult{}, fmt.Errorf("查询模型列表失败: %w", err)
	}
	return newListResult(names, "模型库中没有模型"), nil
}
