/*
 * @module service/registry/registry
 * @description 模型仓库接口：每个 (模型类型, 区域, 商品) 持久化一个模型
 * @architecture 仓储模式 - 文件/数据库/Redis 三种实现共享同一契约
 * @documentReference DESIGN.md
 * @stateFlow 训练完成 -> Save(覆盖) -> Load -> 预测/评估；List -> 模型清单
 * @rules 文件名格式 {kind}_model_{location}_{item}.json；不存在与损坏是两种不同错误
 * @dependencies service/forecast
 * @refs file_registry.go, gorm_registry.go, redis_registry.go
 */

package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"forecast-service/service/forecast"
	"forecast-service/service/models"
)

var (
	// ErrModelNotFound 模型不存在
	ErrModelNotFound = errors.New("模型不存在")
	// ErrModelCorrupted 模型存在但无法解析
	ErrModelCorrupted = errors.New("模型已损坏")
	// ErrInvalidKey 模型键非法
	ErrInvalidKey = errors.New("非法的模型键")
)

const (
	// FileExtension 模型文件扩展名
	FileExtension = ".json"
	modelSeparator = "_model_"
)

// ModelKey 模型键
type ModelKey struct {
	Kind        forecast.Kind
	LocationKey string
	ItemKey     string
}

// NewModelKey 创建规范化的模型键
func NewModelKey(kind forecast.Kind, locationKey, itemKey string) ModelKey {
	return ModelKey{
		Kind:        kind,
		LocationKey: models.NormalizeKey(locationKey),
		ItemKey:     models.NormalizeKey(itemKey),
	}
}

// KeyOf 返回模型对应的键
func KeyOf(m forecast.Model) ModelKey {
	return NewModelKey(m.Kind(), m.Key().LocationKey, m.Key().ItemKey)
}

// SeriesKey 模型键对应的序列键
func (k ModelKey) SeriesKey() models.SeriesKey {
	return models.SeriesKey{LocationKey: k.LocationKey, ItemKey: k.ItemKey}
}

// Validate 校验模型键
// 区域键不能包含下划线，否则无法从文件名还原
func (k ModelKey) Validate() error {
	if _, err := forecast.ParseKind(string(k.Kind)); err != nil || k.Kind == "" {
		return fmt.Errorf("%w: 模型类型 %q", ErrInvalidKey, k.Kind)
	}
	if k.LocationKey == "" || k.ItemKey == "" {
		return fmt.Errorf("%w: 区域和商品不能为空", ErrInvalidKey)
	}
	if strings.Contains(k.LocationKey, "_") {
		return fmt.Errorf("%w: 区域键不能包含下划线: %q", ErrInvalidKey, k.LocationKey)
	}
	for _, part := range []string{k.LocationKey, k.ItemKey} {
		if strings.ContainsAny(part, `/\`+"\x00") || part == "." || part == ".." {
			return fmt.Errorf("%w: 包含路径字符: %q", ErrInvalidKey, part)
		}
	}
	return nil
}

// Filename 模型文件名
func (k ModelKey) Filename() string {
	return string(k.Kind) + modelSeparator + k.LocationKey + "_" + k.ItemKey + FileExtension
}

func (k ModelKey) String() string {
	return k.Filename()
}

// ParseFilename 从文件名还原模型键
// 模型类型取第一个 "_model_" 之前的部分，区域取其后第一个 "_" 之前的部分，剩余为商品
func ParseFilename(name string) (ModelKey, bool) {
	if !strings.HasSuffix(name, FileExtension) {
		return ModelKey{}, false
	}
	base := strings.TrimSuffix(name, FileExtension)

	kindPart, rest, ok := strings.Cut(base, modelSeparator)
	if !ok {
		return ModelKey{}, false
	}
	kind, err := forecast.ParseKind(kindPart)
	if err != nil || kindPart == "" {
		return ModelKey{}, false
	}
	location, item, ok := strings.Cut(rest, "_")
	if !ok || location == "" || item == "" {
		return ModelKey{}, false
	}
	return ModelKey{Kind: kind, LocationKey: location, ItemKey: item}, true
}

// ModelInfo 模型清单条目
type ModelInfo struct {
	Kind        string `json:"model_kind"`
	LocationKey string `json:"location_key"`
	ItemKey     string `json:"item_key"`
	Filename    string `json:"filename"`
}

// ListResult 模型清单
type ListResult struct {
	Models []ModelInfo `json:"models"`
	Count  int         `json:"count"`
	Status string      `json:"status"`
}

// Registry 模型仓库
type Registry interface {
	// Save 保存模型，同键模型整体覆盖
	Save(ctx context.Context, m forecast.Model) error
	// Load 加载模型，不存在返回 ErrModelNotFound，无法解析返回 ErrModelCorrupted
	Load(ctx context.Context, key ModelKey) (forecast.Model, error)
	// List 列出全部可识别的模型
	List(ctx context.Context) (ListResult, error)
	// Type 仓库类型
	Type() string
}

// newListResult 根据文件名列表生成模型清单，无法识别的文件名被跳过
func newListResult(filenames []string, emptyStatus string) ListResult {
	sort.Strings(filenames)
	result := ListResult{Models: make([]ModelInfo, 0, len(filenames))}
	for _, name := range filenames {
		key, ok := ParseFilename(name)
		if !ok {
			continue
		}
		result.Models = append(result.Models, ModelInfo{
			Kind:        string(key.Kind),
			LocationKey: key.LocationKey,
			ItemKey:     key.ItemKey,
			Filename:    name,
		})
	}
	result.Count = len(result.Models)
	if result.Count == 0 {
		result.Status = emptyStatus
	} else {
		result.Status = fmt.Sprintf("共找到 %d 个模型", result.Count)
	}
	return result
}
