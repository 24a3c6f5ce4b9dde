/*
 * @module service/scheduler/daily_prediction
 * @description 每日预测任务：对最近7天出现过的所有区域商品组合预测明天需求
 * @architecture 批处理任务 - 由调度器触发，结果落库并可推送到 Kafka
 * @documentReference DESIGN.md
 * @stateFlow 拉取近7天销量 -> 去重组合 -> 逐个预测 -> 写入 prediction_records -> 推送补货建议
 * @rules 单个组合预测失败不影响其他组合；数据源失败返回错误且不产生记录；只推送预测成功的记录
 * @dependencies gorm.io/gorm, github.com/google/uuid, service/datasource
 * @refs service/prediction, publisher.go
 */

package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"forecast-service/logger"
	"forecast-service/service/datasource"
	"forecast-service/service/forecast"
	"forecast-service/service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultActiveDays 识别活跃组合的回看天数
const DefaultActiveDays = 7

// Predictor 次日需求预测
type Predictor interface {
	Predict(ctx context.Context, locationKey, itemKey, modelKind string) models.PredictionResult
}

// RecommendationPublisher 补货建议推送
type RecommendationPublisher interface {
	PublishRecommendations(ctx context.Context, records []models.PredictionRecord) error
}

// DailyPredictionReport 每日预测结果
type DailyPredictionReport struct {
	RunID     string                    `json:"run_id"`
	ModelKind string                    `json:"model_kind"`
	Total     int                       `json:"total"`
	Succeeded int                       `json:"succeeded"`
	Results   []models.PredictionResult `json:"results"`
}

// DailyPredictionOptions 每日预测选项
type DailyPredictionOptions struct {
	Kind       forecast.Kind
	ActiveDays int
	// DB 非空时写入 prediction_records
	DB        *gorm.DB
	Publisher RecommendationPublisher
	Clock     func() time.Time
	Logger    *slog.Logger
}

// DailyPredictionJob 每日预测任务
type DailyPredictionJob struct {
	source     datasource.SalesSource
	predictor  Predictor
	kind       forecast.Kind
	activeDays int
	db         *gorm.DB
	publisher  RecommendationPublisher
	clock      func() time.Time
	logger     *slog.Logger
}

// NewDailyPredictionJob 创建每日预测任务
func NewDailyPredictionJob(src datasource.SalesSource, predictor Predictor, opts DailyPredictionOptions) *DailyPredictionJob {
	j := &DailyPredictionJob{
		source:     src,
		predictor:  predictor,
		kind:       opts.Kind,
		activeDays: opts.ActiveDays,
		db:         opts.DB,
		publisher:  opts.Publisher,
		clock:      opts.Clock,
		logger:     logger.OrDefault(opts.Logger),
	}
	if j.kind == "" {
		j.kind = forecast.DefaultKind
	}
	if j.activeDays <= 0 {
		j.activeDays = DefaultActiveDays
	}
	if j.clock == nil {
		j.clock = time.Now
	}
	return j
}

// Run 执行每日预测
func (j *DailyPredictionJob) Run(ctx context.Context) (DailyPredictionReport, error) {
	runID := uuid.New().String()
	report := DailyPredictionReport{RunID: runID, ModelKind: string(j.kind), Results: []models.PredictionResult{}}
	log := j.logger.With("run_id", runID, "model_kind", j.kind)

	today := models.TruncateDay(j.clock())
	keys, err := j.activeKeys(ctx, today.AddDate(0, 0, -j.activeDays), today)
	if err != nil {
		log.Error("识别活跃组合失败", "error", err)
		return report, err
	}
	if len(keys) == 0 {
		log.Warn("没有需要预测的区域商品组合")
		return report, nil
	}
	log.Info("开始每日预测", "combinations", len(keys))

	records := make([]models.PredictionRecord, 0, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			log.Warn("每日预测被取消", "error", err)
			break
		}
		result := j.predictor.Predict(ctx, key.LocationKey, key.ItemKey, string(j.kind))
		report.Results = append(report.Results, result)
		if result.Succeeded() {
			report.Succeeded++
		}
		log.Info("组合预测完成",
			"location_key", key.LocationKey,
			"item_key", key.ItemKey,
			"status", result.Status,
			"predicted_demand", result.PredictedDemand,
			"restock_quantity", result.RestockQuantity)
		records = append(records, toRecord(runID, today.AddDate(0, 0, 1), result))
	}
	report.Total = len(report.Results)

	if j.db != nil && len(records) > 0 {
		if err := j.db.WithContext(ctx).CreateInBatches(&records, 200).Error; err != nil {
			log.Error("保存预测记录失败", "error", err)
			return report, fmt.Errorf("保存预测记录失败: %w", err)
		}
	}

	if j.publisher != nil {
		succeeded := make([]models.PredictionRecord, 0, report.Succeeded)
		for _, r := range records {
			if r.Status == string(models.PredictionStatusSuccess) {
				succeeded = append(succeeded, r)
			}
		}
		if len(succeeded) > 0 {
			if err := j.publisher.PublishRecommendations(ctx, succeeded); err != nil {
				log.Error("推送补货建议失败", "error", err)
			}
		}
	}

	log.Info("每日预测完成", "total", report.Total, "succeeded", report.Succeeded)
	return report, nil
}

// activeKeys 区间内出现过的组合，保持首次出现顺序
func (j *DailyPredictionJob) activeKeys(ctx context.Context, from, to time.Time) ([]models.SeriesKey, error) {
	sales, err := j.source.FetchSales(ctx, from, to)
	if err != nil {
		return nil, err
	}
	seen := make(map[models.SeriesKey]struct{})
	keys := make([]models.SeriesKey, 0)
	for _, r := range sales {
		key := r.Key()
		if key.IsEmpty() {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys, nil
}

func toRecord(runID string, tomorrow time.Time, result models.PredictionResult) models.PredictionRecord {
	predictedFor := tomorrow
	if result.PredictedFor != nil {
		predictedFor = *result.PredictedFor
	}
	return models.PredictionRecord{
		RunID:           runID,
		LocationKey:     result.LocationKey,
		ItemKey:         result.ItemKey,
		ModelKind:       result.ModelKind,
		PredictedFor:    predictedFor,
		PredictedDemand: result.PredictedDemand,
		RestockQuantity: result.RestockQuantity,
		Status:          string(result.Status),
		Message:         result.Message,
	}
}
