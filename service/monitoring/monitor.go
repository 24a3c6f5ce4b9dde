/*
 * @module service/monitoring/monitor
 * @description 每日模型监控：用最近30天实际销量回测所有已训练模型
 * @architecture 批处理服务 - 由调度器或 HTTP 接口触发
 * @documentReference DESIGN.md
 * @stateFlow 计算窗口 -> 拉取销量 -> 预处理 -> 逐键逐模型评估 -> 持久化 -> 更新指标 -> 推送钩子
 * @rules 窗口为 [昨天-30天, 昨天]；数据源失败记录日志并返回空结果；单个评估失败不影响其他组合
 * @dependencies gorm.io/gorm, github.com/google/uuid, service/evaluation, service/datasource
 * @refs service/scheduler, api/controllers/monitoring_controller.go
 */

package monitoring

import (
	"context"
	"log/slog"
	"math"
	"time"

	"forecast-service/logger"
	"forecast-service/service/datasource"
	"forecast-service/service/evaluation"
	"forecast-service/service/forecast"
	"forecast-service/service/metrics"
	"forecast-service/service/models"
	"forecast-service/service/preprocess"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LookbackDays 监控回看天数
const LookbackDays = 30

// Options 监控服务选项
type Options struct {
	// Kinds 需要评估的模型类型，为空时评估全部类型
	Kinds []forecast.Kind
	// DB 非空时持久化评估记录
	DB     *gorm.DB
	Alert  AlertHook
	Clock  func() time.Time
	Logger *slog.Logger
}

// Monitor 模型监控服务
type Monitor struct {
	source       datasource.SalesSource
	preprocessor *preprocess.Preprocessor
	engine       *evaluation.Engine
	kinds        []forecast.Kind
	db           *gorm.DB
	alert        AlertHook
	clock        func() time.Time
	logger       *slog.Logger
}

// NewMonitor 创建监控服务
func NewMonitor(src datasource.SalesSource, engine *evaluation.Engine, opts Options) *Monitor {
	l := logger.OrDefault(opts.Logger)
	m := &Monitor{
		source:       src,
		preprocessor: preprocess.NewPreprocessor(l),
		engine:       engine,
		kinds:        opts.Kinds,
		db:           opts.DB,
		alert:        opts.Alert,
		clock:        opts.Clock,
		logger:       l,
	}
	if len(m.kinds) == 0 {
		m.kinds = forecast.Kinds()
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	return m
}

// Window 返回当前时钟下的监控窗口
func (m *Monitor) Window() (from, to time.Time) {
	to = models.TruncateDay(m.clock()).AddDate(0, 0, -1)
	from = to.AddDate(0, 0, -LookbackDays)
	return from, to
}

// RunDaily 执行一次每日监控
func (m *Monitor) RunDaily(ctx context.Context) []models.MetricBundle {
	from, to := m.Window()
	runID := uuid.New().String()
	log := m.logger.With("run_id", runID,
		"window_start", from.Format(time.DateOnly),
		"window_end", to.Format(time.DateOnly))
	log.Info("开始每日模型监控")

	records, err := m.source.FetchSales(ctx, from, to)
	if err != nil {
		log.Error("获取监控数据失败", "error", err)
		return []models.MetricBundle{}
	}
	if len(records) == 0 {
		log.Warn("监控窗口内没有实际销量数据")
		return []models.MetricBundle{}
	}

	dataset := m.preprocessor.Process(records)
	keys := preprocess.Keys(dataset)
	log.Info("待评估的序列", "count", len(keys), "model_kinds", m.kinds)

	bundles := make([]models.MetricBundle, 0, len(keys)*len(m.kinds))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			log.Warn("监控被取消", "error", err)
			break
		}
		for _, kind := range m.kinds {
			result := m.engine.Evaluate(ctx, key.LocationKey, key.ItemKey, string(kind), dataset)
			bundles = append(bundles, models.MetricBundle{
				LocationKey: key.LocationKey,
				ItemKey:     key.ItemKey,
				ModelKind:   string(kind),
				Metrics:     result,
			})
			if result.Completed() {
				setGauges(key, kind, result)
			}
		}
	}

	m.persist(ctx, runID, from, to, bundles)

	if m.alert != nil {
		report := Report{RunID: runID, WindowStart: from, WindowEnd: to, Bundles: bundles}
		if err := m.alert.Notify(ctx, report); err != nil {
			log.Error("推送监控结果失败", "error", err)
		}
	}

	log.Info("每日模型监控完成", "bundles", len(bundles), "completed", countCompleted(bundles))
	return bundles
}

// persist 写入评估记录
func (m *Monitor) persist(ctx context.Context, runID string, from, to time.Time, bundles []models.MetricBundle) {
	if m.db == nil || len(bundles) == 0 {
		return
	}
	rows := make([]models.EvaluationRecord, 0, len(bundles))
	for _, b := range bundles {
		row := models.EvaluationRecord{
			RunID:       runID,
			LocationKey: b.LocationKey,
			ItemKey:     b.ItemKey,
			ModelKind:   b.ModelKind,
			WindowStart: from,
			WindowEnd:   to,
			MAE:         b.Metrics.MAE,
			RMSE:        b.Metrics.RMSE,
			MAPE:        b.Metrics.MAPE,
			Points:      b.Metrics.Points,
			Status:      string(b.Metrics.Status),
			Message:     b.Metrics.Message,
		}
		if math.IsInf(row.MAPE, 0) || math.IsNaN(row.MAPE) {
			row.MAPE = 0
			row.MAPEInfinite = true
		}
		rows = append(rows, row)
	}
	if err := m.db.WithContext(ctx).CreateInBatches(&rows, 200).Error; err != nil {
		m.logger.Error("保存评估记录失败", "run_id", runID, "error", err)
	}
}

func setGauges(key models.SeriesKey, kind forecast.Kind, result models.EvaluationMetrics) {
	values := map[string]float64{"mae": result.MAE, "rmse": result.RMSE, "mape": result.MAPE}
	for metric, v := range values {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		metrics.ModelError.WithLabelValues(string(kind), key.LocationKey, key.ItemKey, metric).Set(v)
	}
}

func countCompleted(bundles []models.MetricBundle) int {
	n := 0
	for _, b := range bundles {
		if b.Metrics.Completed() {
			n++
		}
	}
	return n
}
