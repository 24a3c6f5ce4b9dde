/*
 * @module service/ingest/decoder
 * @description 销量事件解码：把 Kafka/MQTT 消息体解析为销量记录
 * @architecture 纯函数 - 字段别名和类型转换集中在此处
 * @documentReference DESIGN.md
 * @stateFlow 消息体 -> JSON 解析 -> 字段别名匹配 -> cast 类型转换 -> SalesRecord
 * @rules 支持单个对象、对象数组和 {"records": [...]} 三种形态；数量必须为非负整数；缺失日期时使用默认日期
 * @dependencies github.com/spf13/cast, encoding/json
 * @refs ingestor.go
 */

package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"forecast-service/service/models"

	"github.com/spf13/cast"
)

// ErrInvalidEvent 无法解析的销量事件
var ErrInvalidEvent = errors.New("无效的销量事件")

// 字段别名，兼容旧系统的 pincode/item/sales 命名
var (
	dateFields     = []string{"date", "ds", "sale_date"}
	locationFields = []string{"location_key", "pincode", "location"}
	itemFields     = []string{"item_key", "item", "sku"}
	quantityFields = []string{"quantity", "sales", "y", "qty"}
)

// EventDefaults 消息体缺失字段时的默认值
type EventDefaults struct {
	Date        time.Time
	LocationKey string
}

// DecodeSalesEvents 解析消息体
func DecodeSalesEvents(payload []byte, defaults EventDefaults) ([]models.SalesRecord, error) {
	var raw interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	var items []interface{}
	switch v := raw.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		if nested, ok := v["records"].([]interface{}); ok {
			items = nested
		} else {
			items = []interface{}{v}
		}
	default:
		return nil, fmt.Errorf("%w: 消息体必须是对象或数组", ErrInvalidEvent)
	}

	records := make([]models.SalesRecord, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: 第 %d 条不是对象", ErrInvalidEvent, i)
		}
		record, err := decodeRecord(obj, defaults)
		if err != nil {
			return nil, fmt.Errorf("第 %d 条: %w", i, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func decodeRecord(obj map[string]interface{}, defaults EventDefaults) (models.SalesRecord, error) {
	var record models.SalesRecord

	day := defaults.Date
	if v, ok := lookup(obj, dateFields); ok {
		t, err := cast.ToTimeE(v)
		if err != nil {
			return record, fmt.Errorf("%w: 日期 %v 无法解析", ErrInvalidEvent, v)
		}
		day = t
	}
	if day.IsZero() {
		return record, fmt.Errorf("%w: 缺少日期", ErrInvalidEvent)
	}

	location := defaults.LocationKey
	if v, ok := lookup(obj, locationFields); ok {
		location = cast.ToString(v)
	}
	item := ""
	if v, ok := lookup(obj, itemFields); ok {
		item = cast.ToString(v)
	}
	key := models.NewSeriesKey(location, item)
	if key.IsEmpty() {
		return record, fmt.Errorf("%w: 缺少区域或商品", ErrInvalidEvent)
	}

	v, ok := lookup(obj, quantityFields)
	if !ok {
		return record, fmt.Errorf("%w: 缺少数量", ErrInvalidEvent)
	}
	qty, err := cast.ToIntE(v)
	if err != nil {
		// 浮点字符串等形式
		f, ferr := cast.ToFloat64E(v)
		if ferr != nil {
			return record, fmt.Errorf("%w: 数量 %v 无法解析", ErrInvalidEvent, v)
		}
		qty = int(f)
	}
	if qty < 0 {
		return record, fmt.Errorf("%w: 数量不能为负数: %d", ErrInvalidEvent, qty)
	}

	record.Date = models.TruncateDay(day)
	record.LocationKey = key.LocationKey
	record.ItemKey = key.ItemKey
	record.Quantity = qty
	return record, nil
}

// lookup 按别名顺序查找字段，键名忽略大小写
func lookup(obj map[string]interface{}, names []string) (interface{}, bool) {
	for _, name := range names {
		if v, ok := obj[name]; ok && v != nil {
			return v, true
		}
	}
	for k, v := range obj {
		for _, name := range names {
			if strings.EqualFold(k, name) && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}
