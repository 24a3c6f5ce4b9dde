/*
 * @module service/evaluation/metrics
 * @description 误差指标计算：MAE、RMSE、MAPE
 * @architecture 纯函数
 * @documentReference DESIGN.md
 * @stateFlow (actual, predicted) -> 误差指标
 * @rules MAPE 分母加 epsilon；实际值全为0时 MAPE 为 +Inf；有限值保留两位小数
 * @dependencies github.com/shopspring/decimal
 * @refs engine.go
 */

package evaluation

import (
	"math"

	"github.com/shopspring/decimal"
)

// Epsilon MAPE 分母平滑项
const Epsilon = 1e-8

// metricPlaces 指标保留的小数位数
const metricPlaces = 2

// ErrorMetrics 对齐后的误差指标
type ErrorMetrics struct {
	MAE  float64
	RMSE float64
	MAPE float64
}

// ComputeMetrics 计算误差指标，调用方保证两个切片等长且非空
func ComputeMetrics(actual, predicted []float64) ErrorMetrics {
	n := float64(len(actual))
	var absSum, sqSum, pctSum float64
	allZero := true
	for i := range actual {
		diff := actual[i] - predicted[i]
		absSum += math.Abs(diff)
		sqSum += diff * diff
		pctSum += math.Abs(diff / (actual[i] + Epsilon))
		if actual[i] != 0 {
			allZero = false
		}
	}

	m := ErrorMetrics{
		MAE:  round(absSum / n),
		RMSE: round(math.Sqrt(sqSum / n)),
		MAPE: math.Inf(1),
	}
	if !allZero {
		m.MAPE = round(pctSum / n * 100)
	}
	return m
}

// round 保留两位小数，非有限值原样返回
func round(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(metricPlaces).Float64()
	return f
}
