/*
 * @module service/training/orchestrator
 * @description 训练编排：逐序列训练并持久化模型，汇总批次报告
 * @architecture 批处理服务 - 可选信号量工作池
 * @documentReference DESIGN.md
 * @stateFlow 数据集 -> 每个序列: 构造模型 -> Fit -> Save -> 结果汇总 -> 报告/运行记录
 * @rules 单个序列失败不影响其他序列；数据不足计为跳过；每个序列键只由一个工作协程处理
 * @dependencies gorm.io/gorm, github.com/google/uuid, service/forecast, service/registry
 * @refs service/scheduler, api/controllers/training_controller.go
 */

package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"forecast-service/logger"
	"forecast-service/service/datasource"
	"forecast-service/service/forecast"
	"forecast-service/service/metrics"
	"forecast-service/service/models"
	"forecast-service/service/preprocess"
	"forecast-service/service/registry"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// KeyError 训练失败的序列
type KeyError struct {
	Key   models.SeriesKey `json:"key"`
	Error string           `json:"error"`
}

// TrainingReport 训练批次报告
type TrainingReport struct {
	RunID       string             `json:"run_id"`
	Kind        forecast.Kind      `json:"model_kind"`
	Total       int                `json:"total"`
	Trained     int                `json:"trained"`
	Skipped     int                `json:"skipped"`
	Failed      int                `json:"failed"`
	TrainedKeys []models.SeriesKey `json:"trained_keys"`
	SkippedKeys []models.SeriesKey `json:"skipped_keys"`
	FailedKeys  []KeyError         `json:"failed_keys"`
	StartedAt   time.Time          `json:"started_at"`
	Duration    time.Duration      `json:"duration"`
}

// Options 编排器选项
type Options struct {
	// Workers 并发训练的序列数，<=1 时严格顺序执行
	Workers     int
	ModelConfig forecast.Config
	// DB 非空时记录训练批次
	DB     *gorm.DB
	Logger *slog.Logger
}

// Orchestrator 训练编排器
type Orchestrator struct {
	registry     registry.Registry
	source       datasource.SalesSource
	preprocessor *preprocess.Preprocessor
	opts         Options
	logger       *slog.Logger
}

// NewOrchestrator 创建训练编排器
func NewOrchestrator(reg registry.Registry, src datasource.SalesSource, opts Options) *Orchestrator {
	l := logger.OrDefault(opts.Logger)
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Orchestrator{
		registry:     reg,
		source:       src,
		preprocessor: preprocess.NewPreprocessor(l),
		opts:         opts,
		logger:       l,
	}
}

type outcome int

const (
	outcomeTrained outcome = iota
	outcomeSkipped
	outcomeFailed
)

type keyResult struct {
	key     models.SeriesKey
	outcome outcome
	err     error
}

// Train 为数据集中的每个序列训练并保存一个模型
func (o *Orchestrator) Train(ctx context.Context, dataset []models.Series, kind forecast.Kind) TrainingReport {
	return o.train(ctx, dataset, kind, nil, nil)
}

// TrainWindow 拉取区间数据、预处理后训练
func (o *Orchestrator) TrainWindow(ctx context.Context, from, to time.Time, kind forecast.Kind) (TrainingReport, error) {
	records, err := o.source.FetchSales(ctx, from, to)
	if err != nil {
		o.logger.Error("获取训练数据失败",
			"model_kind", kind,
			"from", from.Format(time.DateOnly),
			"to", to.Format(time.DateOnly),
			"error", err)
		return TrainingReport{Kind: kind, StartedAt: time.Now()}, fmt.Errorf("获取训练数据失败: %w", err)
	}
	dataset := o.preprocessor.Process(records)
	return o.train(ctx, dataset, kind, &from, &to), nil
}

func (o *Orchestrator) train(ctx context.Context, dataset []models.Series, kind forecast.Kind, from, to *time.Time) TrainingReport {
	started := time.Now()
	report := TrainingReport{
		RunID:       uuid.New().String(),
		Kind:        kind,
		Total:       len(dataset),
		TrainedKeys: []models.SeriesKey{},
		SkippedKeys: []models.SeriesKey{},
		FailedKeys:  []KeyError{},
		StartedAt:   started,
	}

	o.logger.Info("开始训练批次",
		"run_id", report.RunID,
		"model_kind", kind,
		"series", len(dataset),
		"workers", o.opts.Workers)

	results := make([]keyResult, len(dataset))
	if o.opts.Workers == 1 {
		for i, series := range dataset {
			results[i] = o.trainOne(ctx, series, kind)
		}
	} else {
		sem := make(chan struct{}, o.opts.Workers)
		var wg sync.WaitGroup
		for i, series := range dataset {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int, series models.Series) {
				defer wg.Done()
				defer func() { <-sem }()
				results[i] = o.trainOne(ctx, series, kind)
			}(i, series)
		}
		wg.Wait()
	}

	for _, r := range results {
		switch r.outcome {
		case outcomeTrained:
			report.Trained++
			report.TrainedKeys = append(report.TrainedKeys, r.key)
		case outcomeSkipped:
			report.Skipped++
			report.SkippedKeys = append(report.SkippedKeys, r.key)
		default:
			report.Failed++
			report.FailedKeys = append(report.FailedKeys, KeyError{Key: r.key, Error: r.err.Error()})
		}
	}
	report.Duration = time.Since(started)

	metrics.TrainingOutcomes.WithLabelValues(string(kind), "trained").Add(float64(report.Trained))
	metrics.TrainingOutcomes.WithLabelValues(string(kind), "skipped").Add(float64(report.Skipped))
	metrics.TrainingOutcomes.WithLabelValues(string(kind), "failed").Add(float64(report.Failed))
	metrics.TrainingDuration.WithLabelValues(string(kind)).Observe(report.Duration.Seconds())

	o.logger.Info("训练批次完成",
		"run_id", report.RunID,
		"model_kind", kind,
		"total", report.Total,
		"trained", report.Trained,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", report.Duration)

	o.recordRun(ctx, report, from, to)
	return report
}

// trainOne 训练单个序列，panic 按失败处理
func (o *Orchestrator) trainOne(ctx context.Context, series models.Series, kind forecast.Kind) (result keyResult) {
	result.key = series.Key
	log := o.logger.With(
		"location_key", series.Key.LocationKey,
		"item_key", series.Key.ItemKey,
		"model_kind", kind)

	defer func() {
		if r := recover(); r != nil {
			result.outcome = outcomeFailed
			result.err = fmt.Errorf("训练过程异常: %v", r)
			log.Error("训练过程异常", "error", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return keyResult{key: series.Key, outcome: outcomeFailed, err: err}
	}

	model, err := forecast.New(kind, series.Key, o.opts.ModelConfig)
	if err != nil {
		log.Error("创建模型失败", "error", err)
		return keyResult{key: series.Key, outcome: outcomeFailed, err: err}
	}

	if err := model.Fit(series.Points); err != nil {
		if errors.Is(err, forecast.ErrInsufficientData) {
			log.Warn("历史数据不足，跳过训练", "points", series.Len(), "error", err)
			return keyResult{key: series.Key, outcome: outcomeSkipped, err: err}
		}
		log.Error("模型训练失败", "error", err)
		return keyResult{key: series.Key, outcome: outcomeFailed, err: err}
	}

	if err := o.registry.Save(ctx, model); err != nil {
		log.Error("模型保存失败", "error", err)
		return keyResult{key: series.Key, outcome: outcomeFailed, err: err}
	}

	log.Debug("模型训练完成", "points", series.Len())
	return keyResult{key: series.Key, outcome: outcomeTrained}
}

// recordRun 写入训练批次记录，失败只记录日志
func (o *Orchestrator) recordRun(ctx context.Context, report TrainingReport, from, to *time.Time) {
	if o.opts.DB == nil {
		return
	}
	run := models.TrainingRun{
		ID:          report.RunID,
		ModelKind:   string(report.Kind),
		WindowStart: from,
		WindowEnd:   to,
		Total:       report.Total,
		Trained:     report.Trained,
		Skipped:     report.Skipped,
		Failed:      report.Failed,
		DurationMs:  report.Duration.Milliseconds(),
		StartedAt:   report.StartedAt,
		FinishedAt:  report.StartedAt.Add(report.Duration),
	}
	if err := o.opts.DB.WithContext(ctx).Create(&run).Error; err != nil {
		o.logger.Error("保存训练批次记录失败", "run_id", report.RunID, "error", err)
	}
}
