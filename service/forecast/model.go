/*
 * @module service/forecast/model
 * @description 预测模型抽象、构造工厂与序列化信封
 * @architecture 策略模式 - 按模型类型多态
 * @documentReference DESIGN.md
 * @stateFlow New -> Fit -> Marshal -> (registry) -> Unmarshal -> Predict
 * @rules 模型绑定唯一序列键和模型类型；持久化后视为不可变
 * @dependencies encoding/json, service/models
 * @refs seasonal_trend.go, autoregressive.go, service/registry
 */

package forecast

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"forecast-service/service/models"
)

// Model 单序列预测模型
type Model interface {
	Kind() Kind
	Key() models.SeriesKey
	TrainedAt() time.Time
	// Fit 使用按日递增的序列点训练模型，只使用时间戳和数值
	Fit(points []models.SeriesPoint) error
	// Predict 对每个时间戳返回一个非负预测值
	Predict(stamps []time.Time) ([]float64, error)
}

// paramCodec 模型参数的序列化
type paramCodec interface {
	marshalParams() (json.RawMessage, error)
	unmarshalParams(raw json.RawMessage) error
	setMeta(key models.SeriesKey, trainedAt time.Time)
}

// Config 模型超参数
type Config struct {
	SeasonalityMode       string  `json:"seasonality_mode"`
	ChangepointPriorScale float64 `json:"changepoint_prior_scale"`
	SeasonalityPriorScale float64 `json:"seasonality_prior_scale"`
	NChangepoints         int     `json:"n_changepoints"`
	ChangepointRange      float64 `json:"changepoint_range"`
	WeeklySeasonality     bool    `json:"weekly_seasonality"`
	YearlySeasonality     bool    `json:"yearly_seasonality"`
	DailySeasonality      bool    `json:"daily_seasonality"`
	MaxLag                int     `json:"max_lag"`
}

// 季节模式
const (
	SeasonalityMultiplicative = "multiplicative"
	SeasonalityAdditive       = "additive"
)

// DefaultConfig 默认超参数
func DefaultConfig() Config {
	return Config{
		SeasonalityMode:       SeasonalityMultiplicative,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10,
		NChangepoints:         25,
		ChangepointRange:      0.8,
		WeeklySeasonality:     true,
		YearlySeasonality:     true,
		DailySeasonality:      false,
		MaxLag:                7,
	}
}

type constructor func(key models.SeriesKey, cfg Config) Model

var constructors = map[Kind]constructor{
	KindSeasonalTrend: func(key models.SeriesKey, cfg Config) Model {
		return NewSeasonalTrend(key, cfg)
	},
	KindAutoRegressive: func(key models.SeriesKey, cfg Config) Model {
		return NewAutoRegressive(key, cfg)
	},
}

// New 按模型类型创建未训练的模型
func New(kind Kind, key models.SeriesKey, cfg Config) (Model, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return ctor(key, cfg), nil
}

// nowFunc 训练时间戳来源
var nowFunc = func() time.Time { return time.Now().UTC() }

// envelope 模型序列化信封
type envelope struct {
	Kind        Kind            `json:"kind"`
	LocationKey string          `json:"location_key"`
	ItemKey     string          `json:"item_key"`
	TrainedAt   time.Time       `json:"trained_at"`
	Params      json.RawMessage `json:"params"`
}

// Marshal 序列化已训练的模型
func Marshal(m Model) ([]byte, error) {
	codec, ok := m.(paramCodec)
	if !ok {
		return nil, fmt.Errorf("模型类型 %s 不支持序列化", m.Kind())
	}
	params, err := codec.marshalParams()
	if err != nil {
		return nil, fmt.Errorf("序列化模型参数失败: %w", err)
	}
	return json.Marshal(envelope{
		Kind:        m.Kind(),
		LocationKey: m.Key().LocationKey,
		ItemKey:     m.Key().ItemKey,
		TrainedAt:   m.TrainedAt(),
		Params:      params,
	})
}

// Unmarshal 从序列化数据恢复模型
func Unmarshal(data []byte) (Model, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	key := models.NewSeriesKey(env.LocationKey, env.ItemKey)
	m, err := New(env.Kind, key, DefaultConfig())
	if err != nil {
		return nil, err
	}
	codec := m.(paramCodec)
	if err := codec.unmarshalParams(env.Params); err != nil {
		return nil, err
	}
	codec.setMeta(key, env.TrainedAt)
	return m, nil
}

// baseModel 公共元数据
type baseModel struct {
	key       models.SeriesKey
	trainedAt time.Time
	fitted    bool
}

func (b *baseModel) Key() models.SeriesKey {
	return b.key
}

func (b *baseModel) TrainedAt() time.Time {
	return b.trainedAt
}

func (b *baseModel) setMeta(key models.SeriesKey, trainedAt time.Time) {
	b.key = key
	b.trainedAt = trainedAt
	b.fitted = true
}

// validatePoints 校验训练序列
func validatePoints(points []models.SeriesPoint) error {
	if len(points) < MinTrainingPoints {
		return fmt.Errorf("%w: 需要至少 %d 个点，实际 %d 个", ErrInsufficientData, MinTrainingPoints, len(points))
	}
	for i, p := range points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return fmt.Errorf("%w: 第 %d 个点数值非法", ErrInvalidSeries, i)
		}
		if p.Timestamp.IsZero() {
			return fmt.Errorf("%w: 第 %d 个点缺少时间戳", ErrInvalidSeries, i)
		}
		if i > 0 && !p.Timestamp.After(points[i-1].Timestamp) {
			return fmt.Errorf("%w: 时间戳未严格递增 (第 %d 个点)", ErrInvalidSeries, i)
		}
	}
	return nil
}

// daysBetween 两个日期相差的天数
func daysBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

// absMaxScale 数值缩放因子，全零时为1
func absMaxScale(values []float64) float64 {
	scale := 0.0
	for _, v := range values {
		scale = math.Max(scale, math.Abs(v))
	}
	if scale == 0 {
		return 1
	}
	return scale
}
