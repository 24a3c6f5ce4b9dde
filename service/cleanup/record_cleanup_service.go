/*
 * @module service/cleanup/record_cleanup_service
 * @description 记录清理服务，定期删除过期的预测、评估和训练批次记录
 * @architecture 分层架构 - 业务服务层
 * @documentReference DESIGN.md
 * @stateFlow 定时触发 -> 计算截止时间 -> 逐表删除 -> 记录结果
 * @rules 只按 created_at 删除，单表失败不影响其他表；模型制品和销量数据不清理
 * @dependencies gorm.io/gorm
 * @refs service/scheduler
 */

package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"forecast-service/logger"
	"forecast-service/service/models"

	"gorm.io/gorm"
)

// DefaultRetentionDays 默认保留天数
const DefaultRetentionDays = 30

// CleanupResult 单次清理结果
type CleanupResult struct {
	Cutoff      time.Time        `json:"cutoff"`
	Deleted     map[string]int64 `json:"deleted"`
	TotalDelete int64            `json:"total_deleted"`
	Errors      []string         `json:"errors,omitempty"`
}

// RecordCleanupService 记录清理服务
type RecordCleanupService struct {
	db            *gorm.DB
	retentionDays int
	clock         func() time.Time
	logger        *slog.Logger
}

// NewRecordCleanupService 创建记录清理服务实例
func NewRecordCleanupService(db *gorm.DB, retentionDays int, l *slog.Logger) *RecordCleanupService {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &RecordCleanupService{
		db:            db,
		retentionDays: retentionDays,
		clock:         time.Now,
		logger:        logger.OrDefault(l),
	}
}

// CleanupExpiredRecords 清理所有过期记录
func (s *RecordCleanupService) CleanupExpiredRecords(ctx context.Context) (CleanupResult, error) {
	startTime := time.Now()
	cutoff := s.clock().AddDate(0, 0, -s.retentionDays)
	result := CleanupResult{Cutoff: cutoff, Deleted: map[string]int64{}}

	s.logger.Info("开始清理过期记录",
		"cutoff_date", cutoff.Format("2006-01-02 15:04:05"),
		"retention_days", s.retentionDays)

	tables := []struct {
		name  string
		model interface{}
	}{
		{"prediction_records", &models.PredictionRecord{}},
		{"evaluation_records", &models.EvaluationRecord{}},
		{"training_runs", &models.TrainingRun{}},
	}

	for _, t := range tables {
		deleted, err := s.deleteBefore(ctx, t.model, cutoff)
		if err != nil {
			s.logger.Error("清理记录失败", "table", t.name, "error", err)
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Deleted[t.name] = deleted
		result.TotalDelete += deleted
	}

	s.logger.Info("记录清理完成",
		"deleted", result.Deleted,
		"total_deleted", result.TotalDelete,
		"duration_ms", time.Since(startTime).Milliseconds())

	if len(result.Errors) > 0 {
		return result, fmt.Errorf("部分记录清理失败: %v", result.Errors)
	}
	return result, nil
}

func (s *RecordCleanupService) deleteBefore(ctx context.Context, model interface{}, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(model)
	if res.Error != nil {
		return 0, fmt.Errorf("删除过期记录失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}
