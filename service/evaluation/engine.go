/*
 * @module service/evaluation/engine
 * @description 评估引擎：用已训练模型回测历史窗口，计算误差指标
 * @architecture 服务层 - 只读，可并发调用
 * @documentReference DESIGN.md
 * @stateFlow 前置校验 -> 过滤子序列 -> 排序 -> 加载模型 -> 批量预测 -> 截断对齐 -> 指标
 * @rules 每个前置条件对应独立状态；预测错误或异常返回 PredictionFailed；实际值全0时 MAPE 为 +Inf
 * @dependencies service/registry, service/forecast, github.com/shopspring/decimal
 * @refs service/monitoring, api/controllers/evaluate_controller.go
 */

package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"forecast-service/logger"
	"forecast-service/service/forecast"
	"forecast-service/service/metrics"
	"forecast-service/service/models"
	"forecast-service/service/registry"
)

// Engine 评估引擎
type Engine struct {
	registry registry.Registry
	logger   *slog.Logger
}

// NewEngine 创建评估引擎
func NewEngine(reg registry.Registry, l *slog.Logger) *Engine {
	return &Engine{
		registry: reg,
		logger:   logger.OrDefault(l),
	}
}

// Evaluate 评估指定区域、商品、模型类型在评估序列上的误差
func (e *Engine) Evaluate(ctx context.Context, locationKey, itemKey, modelKind string, evaluationSeries []models.Series) (result models.EvaluationMetrics) {
	kind, kindErr := forecast.ParseKind(modelKind)
	kindLabel := metrics.InvalidModelKind
	if kindErr == nil {
		kindLabel = string(kind)
	}
	defer func() {
		metrics.Evaluations.WithLabelValues(kindLabel, string(result.Status)).Inc()
	}()

	key := models.NewSeriesKey(locationKey, itemKey)
	if key.IsEmpty() {
		return status(models.EvaluationStatusInvalidInput, "区域和商品不能为空")
	}
	if kindErr != nil {
		return status(models.EvaluationStatusUnsupportedModelKind,
			fmt.Sprintf("不支持的模型类型 %q，可选: %v", modelKind, forecast.Kinds()))
	}

	if len(evaluationSeries) == 0 {
		return status(models.EvaluationStatusNoEvaluationData, "未提供评估数据")
	}
	if err := checkFields(evaluationSeries); err != nil {
		return status(models.EvaluationStatusMissingFields, err.Error())
	}

	points := collectPoints(evaluationSeries, key)
	if len(points) == 0 {
		return status(models.EvaluationStatusNoSeriesData,
			fmt.Sprintf("评估数据中没有 %s 的序列", key))
	}

	log := e.logger.With("location_key", key.LocationKey, "item_key", key.ItemKey, "model_kind", kind)

	modelKey := registry.NewModelKey(kind, key.LocationKey, key.ItemKey)
	model, err := e.registry.Load(ctx, modelKey)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrModelNotFound), errors.Is(err, registry.ErrInvalidKey):
			log.Warn("评估跳过，模型不存在", "error", err)
			return status(models.EvaluationStatusModelNotFound,
				fmt.Sprintf("未找到 %s 的 %s 模型", key, kind))
		case errors.Is(err, registry.ErrModelCorrupted):
			log.Error("评估跳过，模型已损坏", "error", err)
			return status(models.EvaluationStatusModelCorrupted, err.Error())
		default:
			log.Error("加载模型失败", "error", err)
			return status(models.EvaluationStatusPredictionFailed, err.Error())
		}
	}

	actual := make([]float64, len(points))
	stamps := make([]time.Time, len(points))
	for i, p := range points {
		actual[i] = p.Value
		stamps[i] = p.Timestamp
	}

	predicted, err := predictBatch(model, stamps)
	if err != nil {
		log.Error("评估预测失败", "error", err)
		return status(models.EvaluationStatusPredictionFailed, fmt.Sprintf("评估预测失败: %v", err))
	}

	n := min(len(actual), len(predicted))
	if n == 0 {
		return status(models.EvaluationStatusNoAlignedData, "对齐后没有可比较的数据")
	}

	m := ComputeMetrics(actual[:n], predicted[:n])
	result = models.EvaluationMetrics{
		MAE:     m.MAE,
		RMSE:    m.RMSE,
		MAPE:    m.MAPE,
		Points:  n,
		Status:  models.EvaluationStatusComplete,
		Message: "评估完成",
	}
	log.Info("模型评估完成", "mae", result.MAE, "rmse", result.RMSE, "mape", result.MAPE, "points", n)
	return result
}

func status(s models.EvaluationStatus, msg string) models.EvaluationMetrics {
	return models.EvaluationMetrics{Status: s, Message: msg}
}

// checkFields 每个子序列必须有完整的键，每个点必须有日期
func checkFields(dataset []models.Series) error {
	for i, s := range dataset {
		if s.Key.IsEmpty() {
			return fmt.Errorf("第 %d 个序列缺少区域或商品字段", i)
		}
		for j, p := range s.Points {
			if p.Timestamp.IsZero() {
				return fmt.Errorf("序列 %s 第 %d 个点缺少日期字段", s.Key, j)
			}
		}
	}
	return nil
}

// collectPoints 汇总指定键的所有点并按时间排序
func collectPoints(dataset []models.Series, key models.SeriesKey) []models.SeriesPoint {
	var points []models.SeriesPoint
	for _, s := range dataset {
		if models.NewSeriesKey(s.Key.LocationKey, s.Key.ItemKey) == key {
			points = append(points, s.Points...)
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

// predictBatch 批量预测，panic 转为错误
func predictBatch(model forecast.Model, stamps []time.Time) (out []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("预测过程异常: %v", r)
		}
	}()
	return model.Predict(stamps)
}
