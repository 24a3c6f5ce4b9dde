/*
 * @module service/preprocess/preprocessor
 * @description 序列预处理：把无序销量记录整理为按键分组、按日连续的序列
 * @architecture 纯函数式处理层 - 无外部状态
 * @documentReference DESIGN.md
 * @stateFlow 销量记录 -> 键规范化 -> 分组 -> 同日汇总 -> 补零 -> 日历特征
 * @rules 每个键的序列覆盖该键 min(date)..max(date) 的每一天；输出按键首次出现顺序
 * @dependencies log/slog, service/models
 * @refs service/training, service/evaluation, service/monitoring
 */

package preprocess

import (
	"log/slog"
	"time"

	"forecast-service/logger"
	"forecast-service/service/models"
)

// Preprocessor 序列预处理器
type Preprocessor struct {
	logger *slog.Logger
}

// NewPreprocessor 创建预处理器
func NewPreprocessor(l *slog.Logger) *Preprocessor {
	return &Preprocessor{logger: logger.OrDefault(l)}
}

type seriesAccumulator struct {
	key   models.SeriesKey
	daily map[time.Time]float64
	first time.Time
	last  time.Time
}

// Process 将销量记录转换为日粒度连续序列
// 空键或负销量的记录被丢弃并记录警告
func (p *Preprocessor) Process(records []models.SalesRecord) []models.Series {
	if len(records) == 0 {
		return []models.Series{}
	}

	order := make([]models.SeriesKey, 0)
	groups := make(map[models.SeriesKey]*seriesAccumulator)
	dropped := 0

	for _, r := range records {
		key := r.Key()
		if key.IsEmpty() || r.Quantity < 0 {
			dropped++
			p.logger.Warn("丢弃无效销量记录",
				"location_key", r.LocationKey,
				"item_key", r.ItemKey,
				"quantity", r.Quantity,
				"date", r.Date.Format(time.DateOnly))
			continue
		}

		day := models.TruncateDay(r.Date)
		acc, ok := groups[key]
		if !ok {
			acc = &seriesAccumulator{key: key, daily: make(map[time.Time]float64), first: day, last: day}
			groups[key] = acc
			order = append(order, key)
		}
		acc.daily[day] += float64(r.Quantity)
		if day.Before(acc.first) {
			acc.first = day
		}
		if day.After(acc.last) {
			acc.last = day
		}
	}

	dataset := make([]models.Series, 0, len(order))
	for _, key := range order {
		dataset = append(dataset, groups[key].build())
	}

	p.logger.Debug("序列预处理完成",
		"records", len(records),
		"dropped", dropped,
		"series", len(dataset))
	return dataset
}

// build 生成从首日到末日的连续序列，缺失日补零
func (a *seriesAccumulator) build() models.Series {
	n := int(a.last.Sub(a.first).Hours()/24) + 1
	points := make([]models.SeriesPoint, 0, n)
	for day := a.first; !day.After(a.last); day = day.AddDate(0, 0, 1) {
		points = append(points, models.NewSeriesPoint(day, a.daily[day]))
	}
	return models.Series{Key: a.key, Points: points}
}

// Keys 返回数据集中的全部序列键，保持原有顺序
func Keys(dataset []models.Series) []models.SeriesKey {
	keys := make([]models.SeriesKey, 0, len(dataset))
	for _, s := range dataset {
		keys = append(keys, s.Key)
	}
	return keys
}

// FilterWindow 截取 [from, to] 区间内的点，区间内无点的序列被移除
func FilterWindow(dataset []models.Series, from, to time.Time) []models.Series {
	from, to = models.TruncateDay(from), models.TruncateDay(to)
	out := make([]models.Series, 0, len(dataset))
	for _, s := range dataset {
		points := make([]models.SeriesPoint, 0, len(s.Points))
		for _, p := range s.Points {
			if !p.Timestamp.Before(from) && !p.Timestamp.After(to) {
				points = append(points, p)
			}
		}
		if len(points) > 0 {
			out = append(out, models.Series{Key: s.Key, Points: points})
		}
	}
	return out
}

// Find 查找指定键的序列
func Find(dataset []models.Series, key models.SeriesKey) (models.Series, bool) {
	for _, s := range dataset {
		if s.Key == key {
			return s, true
		}
	}
	return models.Series{}, false
}
