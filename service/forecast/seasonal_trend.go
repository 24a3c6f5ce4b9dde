/*
 * @module service/forecast/seasonal_trend
 * @description 季节趋势模型：分段线性趋势 + 周/年傅里叶季节项，惩罚最小二乘拟合
 * @architecture 策略实现 - Model 接口的 prophet 类型
 * @documentReference DESIGN.md
 * @stateFlow 校验 -> 时间与数值归一化 -> 变点放置 -> 交替求解趋势/季节 -> 参数固化
 * @rules 乘法模式迭代轮数固定，结果确定；预测值截断为非负；历史短于一年时年季节项降阶并强收缩
 * @dependencies gonum.org/v1/gonum/mat
 * @refs model.go, features.go, linalg.go
 */

package forecast

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"forecast-service/service/models"

	"gonum.org/v1/gonum/mat"
)

const (
	// 归一化数据上的噪声尺度
	noiseScale = 0.5
	// 趋势截距与斜率的先验尺度
	trendPriorScale = 5.0
	// 乘法模式交替求解轮数
	multiplicativeRounds = 3
)

// SeasonalTrend 季节趋势模型
type SeasonalTrend struct {
	baseModel
	cfg    Config
	params seasonalTrendParams
}

type seasonalTrendParams struct {
	Mode         string        `json:"mode"`
	Start        time.Time     `json:"start"`
	SpanDays     float64       `json:"span_days"`
	YScale       float64       `json:"y_scale"`
	Changepoints []float64     `json:"changepoints"`
	Trend        []float64     `json:"trend"`
	Seasonal     []float64     `json:"seasonal"`
	Components   []seasonality `json:"components"`
}

// NewSeasonalTrend 创建季节趋势模型
func NewSeasonalTrend(key models.SeriesKey, cfg Config) *SeasonalTrend {
	return &SeasonalTrend{baseModel: baseModel{key: key}, cfg: cfg}
}

// Kind 模型类型
func (m *SeasonalTrend) Kind() Kind {
	return KindSeasonalTrend
}

// Fit 训练模型
func (m *SeasonalTrend) Fit(points []models.SeriesPoint) error {
	if err := validatePoints(points); err != nil {
		return err
	}

	mode := m.cfg.SeasonalityMode
	if mode != SeasonalityAdditive {
		mode = SeasonalityMultiplicative
	}

	n := len(points)
	start := points[0].Timestamp
	span := daysBetween(start, points[n-1].Timestamp)

	stamps := make([]time.Time, n)
	values := make([]float64, n)
	t := make([]float64, n)
	for i, p := range points {
		stamps[i] = p.Timestamp
		values[i] = p.Value
		t[i] = daysBetween(start, p.Timestamp) / span
	}
	yScale := absMaxScale(values)
	ys := make([]float64, n)
	for i, v := range values {
		ys[i] = v / yScale
	}

	changepoints := changepointPositions(t, m.cfg.NChangepoints, m.cfg.ChangepointRange)
	components := fitToHistory(seasonalitiesFor(m.cfg), span)
	a := trendMatrix(t, changepoints)
	x := seasonalMatrix(stamps, components)

	trendPenalty := m.trendPenalty(len(changepoints))
	seasonalPenalty := m.seasonalPenalty(components, span, n)

	var (
		theta []float64
		beta  []float64
		err   error
	)
	if mode == SeasonalityAdditive {
		theta, beta, err = fitAdditive(a, x, ys, trendPenalty, seasonalPenalty)
	} else {
		theta, beta, err = fitMultiplicative(a, x, ys, trendPenalty, seasonalPenalty)
	}
	if err != nil {
		return fmt.Errorf("拟合季节趋势模型失败: %w", err)
	}

	m.params = seasonalTrendParams{
		Mode:         mode,
		Start:        start,
		SpanDays:     span,
		YScale:       yScale,
		Changepoints: changepoints,
		Trend:        theta,
		Seasonal:     beta,
		Components:   components,
	}
	m.trainedAt = nowFunc()
	m.fitted = true
	return nil
}

// trendPenalty 截距、斜率与变点增量的惩罚
func (m *SeasonalTrend) trendPenalty(nChangepoints int) []float64 {
	base := math.Pow(noiseScale/trendPriorScale, 2)
	deltaScale := m.cfg.ChangepointPriorScale
	if deltaScale <= 0 {
		deltaScale = DefaultConfig().ChangepointPriorScale
	}
	penalty := []float64{base, base}
	for i := 0; i < nChangepoints; i++ {
		penalty = append(penalty, math.Pow(noiseScale/deltaScale, 2))
	}
	return penalty
}

// seasonalPenalty 季节系数的惩罚
// 历史不足一个周期的分量无法与趋势区分，惩罚随样本数和缺口 (1/覆盖比例 - 1)² 增大，系数收缩到接近0
func (m *SeasonalTrend) seasonalPenalty(components []seasonality, spanDays float64, n int) []float64 {
	scale := m.cfg.SeasonalityPriorScale
	if scale <= 0 {
		scale = DefaultConfig().SeasonalityPriorScale
	}
	base := math.Pow(noiseScale/scale, 2)

	penalty := make([]float64, 0, seasonalWidth(components))
	for _, c := range components {
		p := base
		if coverage := coverageFor(c, spanDays); coverage < 1 {
			gap := 1/coverage - 1
			p += float64(n) * gap * gap
		}
		for k := 0; k < 2*c.Order; k++ {
			penalty = append(penalty, p)
		}
	}
	return penalty
}

// fitAdditive y = g(t) + X β，一次联合求解
func fitAdditive(a, x *mat.Dense, y, trendPenalty, seasonalPenalty []float64) ([]float64, []float64, error) {
	if x == nil {
		theta, err := ridgeSolve(a, y, trendPenalty)
		return theta, nil, err
	}
	r, ca := a.Dims()
	_, cx := x.Dims()
	joint := mat.NewDense(r, ca+cx, nil)
	joint.Augment(a, x)

	coef, err := ridgeSolve(joint, y, append(append([]float64(nil), trendPenalty...), seasonalPenalty...))
	if err != nil {
		return nil, nil, err
	}
	return coef[:ca], coef[ca:], nil
}

// fitMultiplicative y = g(t) * (1 + X β)，趋势与季节交替求解
func fitMultiplicative(a, x *mat.Dense, y, trendPenalty, seasonalPenalty []float64) ([]float64, []float64, error) {
	theta, err := ridgeSolve(a, y, trendPenalty)
	if err != nil {
		return nil, nil, err
	}
	if x == nil {
		return theta, nil, nil
	}

	n := len(y)
	g := make([]float64, n)
	s := make([]float64, n)
	resid := make([]float64, n)
	var beta []float64

	for round := 0; round < multiplicativeRounds; round++ {
		for i := 0; i < n; i++ {
			g[i] = rowDot(a, i, theta)
			resid[i] = y[i] - g[i]
		}
		beta, err = ridgeSolve(scaleRows(x, g), resid, seasonalPenalty)
		if err != nil {
			return nil, nil, err
		}

		for i := 0; i < n; i++ {
			s[i] = 1 + rowDot(x, i, beta)
		}
		theta, err = ridgeSolve(scaleRows(a, s), y, trendPenalty)
		if err != nil {
			return nil, nil, err
		}
	}
	return theta, beta, nil
}

// Predict 预测
func (m *SeasonalTrend) Predict(stamps []time.Time) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if len(stamps) == 0 {
		return []float64{}, nil
	}

	p := m.params
	days := make([]time.Time, len(stamps))
	t := make([]float64, len(stamps))
	for i, ts := range stamps {
		days[i] = models.TruncateDay(ts)
		t[i] = daysBetween(p.Start, days[i]) / p.SpanDays
	}

	a := trendMatrix(t, p.Changepoints)
	x := seasonalMatrix(days, p.Components)

	out := make([]float64, len(stamps))
	for i := range stamps {
		trend := rowDot(a, i, p.Trend)
		seasonal := 0.0
		if x != nil {
			seasonal = rowDot(x, i, p.Seasonal)
		}

		var yhat float64
		if p.Mode == SeasonalityAdditive {
			yhat = trend + seasonal
		} else {
			yhat = trend * (1 + seasonal)
		}
		yhat *= p.YScale

		if math.IsNaN(yhat) || math.IsInf(yhat, 0) {
			return nil, fmt.Errorf("预测值非法: %s", days[i].Format(time.DateOnly))
		}
		out[i] = math.Max(0, yhat)
	}
	return out, nil
}

func (m *SeasonalTrend) marshalParams() (json.RawMessage, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	return json.Marshal(m.params)
}

func (m *SeasonalTrend) unmarshalParams(raw json.RawMessage) error {
	var p seasonalTrendParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if p.SpanDays <= 0 || p.YScale <= 0 || len(p.Trend) != 2+len(p.Changepoints) ||
		len(p.Seasonal) != seasonalWidth(p.Components) {
		return fmt.Errorf("%w: 季节趋势模型参数不完整", ErrInvalidArtifact)
	}
	m.params = p
	m.cfg.SeasonalityMode = p.Mode
	return nil
}
