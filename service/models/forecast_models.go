/*
 * @module service/models/forecast_models
 * @description 预测与评估结果模型，定义状态枚举、预测结果和评估指标
 * @architecture 数据模型层
 * @documentReference DESIGN.md
 * @stateFlow 预测请求 -> PredictionResult; 评估请求 -> EvaluationMetrics
 * @rules 结果对象始终完整返回，错误通过状态字段表达而不是抛出
 * @dependencies encoding/json, math
 * @refs service/prediction, service/evaluation, service/monitoring
 */

package models

import (
	"encoding/json"
	"math"
	"time"
)

// PredictionStatus 预测状态
type PredictionStatus string

const (
	PredictionStatusSuccess          PredictionStatus = "Success"
	PredictionStatusModelNotFound    PredictionStatus = "ModelNotFound"
	PredictionStatusModelCorrupted   PredictionStatus = "ModelCorrupted"
	PredictionStatusInvalidInput     PredictionStatus = "InvalidInput"
	PredictionStatusPredictionFailed PredictionStatus = "PredictionFailed"
)

// PredictionResult 次日需求预测结果
type PredictionResult struct {
	LocationKey     string           `json:"location_key"`
	ItemKey         string           `json:"item_key"`
	ModelKind       string           `json:"model_kind"`
	PredictedDemand int              `json:"predicted_demand"`
	RestockQuantity int              `json:"restock_quantity"`
	Status          PredictionStatus `json:"status"`
	Message         string           `json:"message,omitempty"`
	PredictedFor    *time.Time       `json:"predicted_for,omitempty"`
}

// Succeeded 是否预测成功
func (r PredictionResult) Succeeded() bool {
	return r.Status == PredictionStatusSuccess
}

// EvaluationStatus 评估状态
type EvaluationStatus string

const (
	EvaluationStatusComplete             EvaluationStatus = "Complete"
	EvaluationStatusInvalidInput         EvaluationStatus = "InvalidInput"
	EvaluationStatusUnsupportedModelKind EvaluationStatus = "UnsupportedModelKind"
	EvaluationStatusNoEvaluationData     EvaluationStatus = "NoEvaluationData"
	EvaluationStatusMissingFields        EvaluationStatus = "MissingFields"
	EvaluationStatusNoSeriesData         EvaluationStatus = "NoSeriesData"
	EvaluationStatusModelNotFound        EvaluationStatus = "ModelNotFound"
	EvaluationStatusModelCorrupted       EvaluationStatus = "ModelCorrupted"
	EvaluationStatusPredictionFailed     EvaluationStatus = "PredictionFailed"
	EvaluationStatusNoAlignedData        EvaluationStatus = "NoAlignedData"
)

// EvaluationMetrics 评估指标
// MAPE 在窗口内实际值全部为0时为 +Inf
type EvaluationMetrics struct {
	MAE     float64          `json:"mae"`
	RMSE    float64          `json:"rmse"`
	MAPE    float64          `json:"mape"`
	Points  int              `json:"points"`
	Status  EvaluationStatus `json:"status"`
	Message string           `json:"message,omitempty"`
}

// Completed 评估是否完成
func (m EvaluationMetrics) Completed() bool {
	return m.Status == EvaluationStatusComplete
}

// MarshalJSON encoding/json 不支持 Inf/NaN，这里把非有限值编码为字符串
func (m EvaluationMetrics) MarshalJSON() ([]byte, error) {
	type alias EvaluationMetrics
	return json.Marshal(struct {
		alias
		MAE  interface{} `json:"mae"`
		RMSE interface{} `json:"rmse"`
		MAPE interface{} `json:"mape"`
	}{
		alias: alias(m),
		MAE:   jsonFloat(m.MAE),
		RMSE:  jsonFloat(m.RMSE),
		MAPE:  jsonFloat(m.MAPE),
	})
}

func jsonFloat(v float64) interface{} {
	switch {
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case math.IsNaN(v):
		return "NaN"
	}
	return v
}

// MetricBundle 监控任务对单个序列、单个模型类型的评估结果
type MetricBundle struct {
	LocationKey string            `json:"location_key"`
	ItemKey     string            `json:"item_key"`
	ModelKind   string            `json:"model_kind"`
	Metrics     EvaluationMetrics `json:"metrics"`
}
