/*
 * @module service/forecast/features
 * @description 趋势与季节特征矩阵构造
 * @architecture 数值计算工具
 * @documentReference DESIGN.md
 * @stateFlow 时间戳 -> 归一化时间/绝对天数 -> 趋势列 + 傅里叶列
 * @rules 季节项使用自 1970-01-01 起的绝对天数，保证训练与预测相位一致；历史短于周期的分量降阶
 * @dependencies math, gonum.org/v1/gonum/mat
 * @refs seasonal_trend.go
 */

package forecast

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

// seasonality 单个季节分量
type seasonality struct {
	Name   string  `json:"name"`
	Period float64 `json:"period"`
	Order  int     `json:"order"`
}

// seasonalitiesFor 按配置返回启用的季节分量
func seasonalitiesFor(cfg Config) []seasonality {
	var out []seasonality
	if cfg.YearlySeasonality {
		out = append(out, seasonality{Name: "yearly", Period: 365.25, Order: 10})
	}
	if cfg.WeeklySeasonality {
		out = append(out, seasonality{Name: "weekly", Period: 7, Order: 3})
	}
	if cfg.DailySeasonality {
		out = append(out, seasonality{Name: "daily", Period: 1, Order: 4})
	}
	return out
}

// coverageFor 历史跨度覆盖的周期比例，不足一个周期时小于1
func coverageFor(c seasonality, spanDays float64) float64 {
	if c.Period <= 0 {
		return 1
	}
	return math.Min(1, spanDays/c.Period)
}

// fitToHistory 历史不足一个周期的分量按覆盖比例降低傅里叶阶数，至少保留1阶
func fitToHistory(components []seasonality, spanDays float64) []seasonality {
	out := make([]seasonality, 0, len(components))
	for _, c := range components {
		if coverage := coverageFor(c, spanDays); coverage < 1 {
			c.Order = max(1, min(c.Order, int(math.Floor(float64(c.Order)*coverage))))
		}
		out = append(out, c)
	}
	return out
}

// seasonalWidth 季节特征总列数
func seasonalWidth(components []seasonality) int {
	width := 0
	for _, c := range components {
		width += 2 * c.Order
	}
	return width
}

// epochDays 自 Unix 纪元起的天数
func epochDays(t time.Time) float64 {
	return float64(t.Unix()) / 86400
}

// seasonalMatrix 傅里叶季节特征
func seasonalMatrix(stamps []time.Time, components []seasonality) *mat.Dense {
	width := seasonalWidth(components)
	if width == 0 {
		return nil
	}
	x := mat.NewDense(len(stamps), width, nil)
	for i, ts := range stamps {
		d := epochDays(ts)
		col := 0
		for _, c := range components {
			for k := 1; k <= c.Order; k++ {
				arg := 2 * math.Pi * float64(k) * d / c.Period
				x.Set(i, col, math.Sin(arg))
				x.Set(i, col+1, math.Cos(arg))
				col += 2
			}
		}
	}
	return x
}

// trendMatrix 分段线性趋势特征 [1, t, (t-s_1)+, ..., (t-s_m)+]
func trendMatrix(t []float64, changepoints []float64) *mat.Dense {
	a := mat.NewDense(len(t), 2+len(changepoints), nil)
	for i, ti := range t {
		a.Set(i, 0, 1)
		a.Set(i, 1, ti)
		for j, s := range changepoints {
			if ti > s {
				a.Set(i, 2+j, ti-s)
			}
		}
	}
	return a
}

// changepointPositions 在历史前 changepointRange 比例内均匀放置变点，返回归一化时间
func changepointPositions(t []float64, n int, changepointRange float64) []float64 {
	histSize := int(math.Floor(float64(len(t)) * changepointRange))
	if n+1 > histSize {
		n = histSize - 1
	}
	if n <= 0 {
		return nil
	}
	positions := make([]float64, 0, n)
	for j := 1; j <= n; j++ {
		idx := int(math.Round(float64(j) * float64(histSize-1) / float64(n)))
		positions = append(positions, t[idx])
	}
	return positions
}
