/*
 * @module service/forecast/autoregressive
 * @description 自回归模型 AR(p)：带截距，岭回归拟合，按日期递推预测
 * @architecture 策略实现 - Model 接口的 arima 类型
 * @documentReference DESIGN.md
 * @stateFlow 校验 -> 确定阶数 -> 构造滞后矩阵 -> 求解 -> 保存训练序列
 * @rules p = min(MaxLag, n/2)；训练窗口内的日期返回一步拟合值，窗口外递推
 * @dependencies gonum.org/v1/gonum/mat
 * @refs model.go, linalg.go
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
	arInterceptPenalty = 1e-6
	arLagPenalty       = 1e-2
)

// AutoRegressive 自回归模型
type AutoRegressive struct {
	baseModel
	cfg    Config
	params autoRegressiveParams
}

type autoRegressiveParams struct {
	Lags   int       `json:"lags"`
	Coef   []float64 `json:"coef"`
	Start  time.Time `json:"start"`
	YScale float64   `json:"y_scale"`
	Values []float64 `json:"values"`
}

// NewAutoRegressive 创建自回归模型
func NewAutoRegressive(key models.SeriesKey, cfg Config) *AutoRegressive {
	return &AutoRegressive{baseModel: baseModel{key: key}, cfg: cfg}
}

// Kind 模型类型
func (m *AutoRegressive) Kind() Kind {
	return KindAutoRegressive
}

// Fit 训练模型
// 序列按日连续，第 i 个点对应 start + i 天
func (m *AutoRegressive) Fit(points []models.SeriesPoint) error {
	if err := validatePoints(points); err != nil {
		return err
	}

	n := len(points)
	start := points[0].Timestamp
	if int(math.Round(daysBetween(start, points[n-1].Timestamp)))+1 != n {
		return fmt.Errorf("%w: 自回归模型要求按日连续的序列", ErrInvalidSeries)
	}

	maxLag := m.cfg.MaxLag
	if maxLag <= 0 {
		maxLag = DefaultConfig().MaxLag
	}
	p := min(maxLag, n/2)

	values := make([]float64, n)
	for i, pt := range points {
		values[i] = pt.Value
	}
	yScale := absMaxScale(values)
	ys := make([]float64, n)
	for i, v := range values {
		ys[i] = v / yScale
	}

	rows := n - p
	a := mat.NewDense(rows, p+1, nil)
	target := make([]float64, rows)
	for r := 0; r < rows; r++ {
		i := r + p
		a.Set(r, 0, 1)
		for j := 1; j <= p; j++ {
			a.Set(r, j, ys[i-j])
		}
		target[r] = ys[i]
	}

	penalty := make([]float64, p+1)
	penalty[0] = arInterceptPenalty
	for j := 1; j <= p; j++ {
		penalty[j] = arLagPenalty
	}

	coef, err := ridgeSolve(a, target, penalty)
	if err != nil {
		return fmt.Errorf("拟合自回归模型失败: %w", err)
	}

	m.params = autoRegressiveParams{
		Lags:   p,
		Coef:   coef,
		Start:  start,
		YScale: yScale,
		Values: ys,
	}
	m.trainedAt = nowFunc()
	m.fitted = true
	return nil
}

// Predict 预测
func (m *AutoRegressive) Predict(stamps []time.Time) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if len(stamps) == 0 {
		return []float64{}, nil
	}

	p := m.params
	n := len(p.Values)

	offsets := make([]int, len(stamps))
	horizon := n - 1
	for i, ts := range stamps {
		offsets[i] = int(math.Round(daysBetween(p.Start, models.TruncateDay(ts))))
		horizon = max(horizon, offsets[i])
	}

	// 训练值之后接递推预测值
	path := make([]float64, n, horizon+1)
	copy(path, p.Values)
	for len(path) <= horizon {
		path = append(path, math.Max(0, m.step(path, len(path))))
	}

	out := make([]float64, len(stamps))
	for i, d := range offsets {
		var yhat float64
		if d < n {
			yhat = m.step(p.Values, d)
		} else {
			yhat = path[d]
		}
		yhat *= p.YScale
		if math.IsNaN(yhat) || math.IsInf(yhat, 0) {
			return nil, fmt.Errorf("预测值非法: %s", stamps[i].Format(time.DateOnly))
		}
		out[i] = math.Max(0, yhat)
	}
	return out, nil
}

// step 用 history 中 idx 之前的 p 个值计算 idx 处的一步预测
// 早于序列起点的滞后值取首个值
func (m *AutoRegressive) step(history []float64, idx int) float64 {
	p := m.params
	yhat := p.Coef[0]
	for j := 1; j <= p.Lags; j++ {
		k := idx - j
		if k < 0 {
			k = 0
		}
		yhat += p.Coef[j] * history[k]
	}
	return yhat
}

func (m *AutoRegressive) marshalParams() (json.RawMessage, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	return json.Marshal(m.params)
}

func (m *AutoRegressive) unmarshalParams(raw json.RawMessage) error {
	var p autoRegressiveParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if p.Lags < 1 || len(p.Coef) != p.Lags+1 || len(p.Values) < p.Lags || p.YScale <= 0 {
		return fmt.Errorf("%w: 自回归模型参数不完整", ErrInvalidArtifact)
	}
	m.params = p
	return nil
}
