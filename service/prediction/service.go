/*
 * @module service/prediction/service
 * @description 预测服务：加载模型，预测次日需求并计算补货量
 * @architecture 服务层 - 只读，可并发调用
 * @documentReference DESIGN.md
 * @stateFlow 输入校验 -> 加载模型 -> 预测明天 -> 取整截断 -> 补货策略 -> PredictionResult
 * @rules 输入非法时不访问模型仓库；任何失败都返回带状态的完整结果且数量为0
 * @dependencies service/registry, service/forecast
 * @refs api/controllers/forecast_controller.go, service/scheduler
 */

package prediction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"forecast-service/logger"
	"forecast-service/service/forecast"
	"forecast-service/service/metrics"
	"forecast-service/service/models"
	"forecast-service/service/registry"
)

// Options 预测服务选项
type Options struct {
	Policy RestockPolicy
	// Clock 当前时间，预测日期为其所在日期的次日
	Clock  func() time.Time
	Logger *slog.Logger
}

// Service 预测服务
type Service struct {
	registry registry.Registry
	policy   RestockPolicy
	clock    func() time.Time
	logger   *slog.Logger
}

// NewService 创建预测服务
func NewService(reg registry.Registry, opts Options) *Service {
	s := &Service{
		registry: reg,
		policy:   opts.Policy,
		clock:    opts.Clock,
		logger:   logger.OrDefault(opts.Logger),
	}
	if s.policy == nil {
		s.policy = FixedBuffer{Buffer: DefaultRestockBuffer}
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

// Predict 预测指定区域、商品的次日需求
func (s *Service) Predict(ctx context.Context, locationKey, itemKey, modelKind string) (result models.PredictionResult) {
	key := models.NewSeriesKey(locationKey, itemKey)
	result = models.PredictionResult{
		LocationKey: key.LocationKey,
		ItemKey:     key.ItemKey,
		ModelKind:   modelKind,
	}
	kind, kindErr := forecast.ParseKind(modelKind)
	kindLabel := metrics.InvalidModelKind
	if kindErr == nil {
		kindLabel = string(kind)
	}
	defer func() {
		metrics.Predictions.WithLabelValues(kindLabel, string(result.Status)).Inc()
	}()

	if key.IsEmpty() {
		return s.fail(result, models.PredictionStatusInvalidInput, "区域和商品不能为空")
	}
	if kindErr != nil {
		return s.fail(result, models.PredictionStatusInvalidInput, kindErr.Error())
	}
	result.ModelKind = string(kind)

	modelKey := registry.NewModelKey(kind, key.LocationKey, key.ItemKey)
	if err := modelKey.Validate(); err != nil {
		return s.fail(result, models.PredictionStatusInvalidInput, err.Error())
	}

	log := s.logger.With("location_key", key.LocationKey, "item_key", key.ItemKey, "model_kind", kind)

	model, err := s.registry.Load(ctx, modelKey)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrModelNotFound):
			log.Warn("模型不存在")
			return s.fail(result, models.PredictionStatusModelNotFound,
				fmt.Sprintf("未找到 %s/%s 的 %s 模型，请先训练", key.LocationKey, key.ItemKey, kind))
		case errors.Is(err, registry.ErrModelCorrupted):
			log.Error("模型已损坏", "error", err)
			return s.fail(result, models.PredictionStatusModelCorrupted, err.Error())
		default:
			log.Error("加载模型失败", "error", err)
			return s.fail(result, models.PredictionStatusPredictionFailed, err.Error())
		}
	}

	tomorrow := models.TruncateDay(s.clock()).AddDate(0, 0, 1)
	yhat, err := predictOne(model, tomorrow)
	if err != nil {
		log.Error("预测失败", "error", err)
		return s.fail(result, models.PredictionStatusPredictionFailed, err.Error())
	}

	predicted := int(math.Max(0, math.Round(yhat)))
	restock := s.policy.RestockQuantity(ctx, RestockInput{
		Key:             key,
		ModelKind:       string(kind),
		PredictedDemand: predicted,
	})

	result.PredictedDemand = predicted
	result.RestockQuantity = restock
	result.Status = models.PredictionStatusSuccess
	result.Message = "预测成功"
	result.PredictedFor = &tomorrow

	log.Info("需求预测完成",
		"predicted_for", tomorrow.Format(time.DateOnly),
		"predicted_demand", predicted,
		"restock_quantity", restock,
		"policy", s.policy.Name())
	return result
}

// predictOne 预测单日，panic 转为错误
func predictOne(model forecast.Model, day time.Time) (yhat float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("预测过程异常: %v", r)
		}
	}()

	out, err := model.Predict([]time.Time{day})
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("模型返回 %d 个预测值，期望 1 个", len(out))
	}
	if math.IsNaN(out[0]) || math.IsInf(out[0], 0) {
		return 0, fmt.Errorf("预测值非法: %v", out[0])
	}
	return out[0], nil
}

func (s *Service) fail(result models.PredictionResult, status models.PredictionStatus, msg string) models.PredictionResult {
	result.PredictedDemand = 0
	result.RestockQuantity = 0
	result.Status = status
	result.Message = msg
	return result
}
