/*
 * @module service/models/series
 * @description 销量与时序数据模型，定义销量记录、序列键和日粒度序列点
 * @architecture 数据模型层
 * @documentReference DESIGN.md
 * @stateFlow 销量记录 -> 预处理 -> 日粒度序列 -> 训练/评估
 * @rules 每个序列键独立处理，序列点按日连续无缺口
 * @dependencies gorm.io/gorm, golang.org/x/text/unicode/norm
 * @refs service/preprocess, service/forecast
 */

package models

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// SalesRecord 销量记录，同时作为 sales_records 表的模型
type SalesRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id,omitempty"`
	Date        time.Time `gorm:"type:date;not null;index:idx_sales_date" json:"date"`
	LocationKey string    `gorm:"type:varchar(64);not null;index:idx_sales_series" json:"location_key"`
	ItemKey     string    `gorm:"type:varchar(128);not null;index:idx_sales_series" json:"item_key"`
	Quantity    int       `gorm:"not null;default:0" json:"quantity"`
	Source      string    `gorm:"type:varchar(32)" json:"source,omitempty"` // simulated, kafka, mqtt, api
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// TableName 指定表名
func (SalesRecord) TableName() string {
	return "sales_records"
}

// Key 返回记录所属的序列键
func (r SalesRecord) Key() SeriesKey {
	return NewSeriesKey(r.LocationKey, r.ItemKey)
}

// SeriesKey 序列键 (location, item)
type SeriesKey struct {
	LocationKey string `json:"location_key"`
	ItemKey     string `json:"item_key"`
}

// NewSeriesKey 创建规范化的序列键
// 去除首尾空白并做 Unicode NFC 规范化，保证同一商品名在不同来源下映射到同一序列
func NewSeriesKey(locationKey, itemKey string) SeriesKey {
	return SeriesKey{
		LocationKey: NormalizeKey(locationKey),
		ItemKey:     NormalizeKey(itemKey),
	}
}

// NormalizeKey 规范化键值
func NormalizeKey(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// IsEmpty 任一分量为空即视为无效键
func (k SeriesKey) IsEmpty() bool {
	return k.LocationKey == "" || k.ItemKey == ""
}

func (k SeriesKey) String() string {
	return k.LocationKey + "/" + k.ItemKey
}

// SeriesPoint 日粒度序列点
type SeriesPoint struct {
	Timestamp time.Time `json:"ds"`
	Value     float64   `json:"y"`
	DayOfWeek int       `json:"day_of_week"` // 周一=0, 周日=6
	DayOfYear int       `json:"day_of_year"`
	Month     int       `json:"month"`
	Quarter   int       `json:"quarter"`
	IsWeekend bool      `json:"is_weekend"`
}

// NewSeriesPoint 根据日期和数值创建序列点并填充日历特征
func NewSeriesPoint(day time.Time, value float64) SeriesPoint {
	day = TruncateDay(day)
	dow := (int(day.Weekday()) + 6) % 7
	return SeriesPoint{
		Timestamp: day,
		Value:     value,
		DayOfWeek: dow,
		DayOfYear: day.YearDay(),
		Month:     int(day.Month()),
		Quarter:   (int(day.Month())-1)/3 + 1,
		IsWeekend: dow >= 5,
	}
}

// Series 单个序列键对应的完整日序列
type Series struct {
	Key    SeriesKey     `json:"key"`
	Points []SeriesPoint `json:"points"`
}

// Len 序列长度
func (s Series) Len() int {
	return len(s.Points)
}

// Values 提取序列数值
func (s Series) Values() []float64 {
	vals := make([]float64, 0, len(s.Points))
	for _, p := range s.Points {
		vals = append(vals, p.Value)
	}
	return vals
}

// Timestamps 提取序列时间戳
func (s Series) Timestamps() []time.Time {
	stamps := make([]time.Time, 0, len(s.Points))
	for _, p := range s.Points {
		stamps = append(stamps, p.Timestamp)
	}
	return stamps
}

// TruncateDay 将时间截断为 UTC 当日零点
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
