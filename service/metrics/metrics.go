/*
 * @module service/metrics/metrics
 * @description Prometheus 指标定义：训练、预测、评估、接入与定时任务
 * @architecture 基础设施层 - 通过 /metrics 暴露
 * @documentReference DESIGN.md
 * @stateFlow 业务组件更新指标 -> promhttp 抓取
 * @rules 指标在包初始化时注册到默认注册表
 * @dependencies github.com/prometheus/client_golang
 * @refs main.go
 */

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "forecast"

// InvalidModelKind 模型类型无法识别时使用的固定标签值
const InvalidModelKind = "invalid"

var (
	// TrainingOutcomes 训练结果计数，outcome 取 trained/skipped/failed
	TrainingOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "training",
		Name:      "series_total",
		Help:      "按结果统计的序列训练次数",
	}, []string{"model_kind", "outcome"})

	// TrainingDuration 训练批次耗时
	TrainingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "training",
		Name:      "run_duration_seconds",
		Help:      "训练批次耗时",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"model_kind"})

	// Predictions 预测请求计数
	Predictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "prediction",
		Name:      "requests_total",
		Help:      "按状态统计的预测次数",
	}, []string{"model_kind", "status"})

	// Evaluations 评估计数
	Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "evaluation",
		Name:      "runs_total",
		Help:      "按状态统计的评估次数",
	}, []string{"model_kind", "status"})

	// ModelError 最近一次监控评估的误差指标，metric 取 mae/rmse/mape
	ModelError = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "monitoring",
		Name:      "model_error",
		Help:      "最近一次监控评估的模型误差",
	}, []string{"model_kind", "location_key", "item_key", "metric"})

	// SalesIngested 消息接入的销量记录数
	SalesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "records_total",
		Help:      "按来源和结果统计的接入记录数",
	}, []string{"source", "result"})

	// JobRuns 定时任务执行计数
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "job_runs_total",
		Help:      "按任务和结果统计的定时任务执行次数",
	}, []string{"job", "result"})
)
