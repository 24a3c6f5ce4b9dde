/*
 * @module service/registry/file_registry
 * @description 文件目录模型仓库，每个模型一个文件
 * @architecture 仓储实现 - 扁平目录
 * @documentReference DESIGN.md
 * @stateFlow Save: 临时文件 -> fsync -> rename；Load: 读文件 -> 校验 -> 还原
 * @rules rename 保证读者看不到写了一半的文件；目录不存在时 List 返回空清单
 * @dependencies os, path/filepath
 * @refs registry.go, artifact.go
 */

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"forecast-service/logger"
	"forecast-service/service/forecast"
)

// FileRegistry 文件模型仓库
type FileRegistry struct {
	dir    string
	logger *slog.Logger
}

// NewFileRegistry 创建文件模型仓库
func NewFileRegistry(dir string, l *slog.Logger) *FileRegistry {
	return &FileRegistry{dir: dir, logger: logger.OrDefault(l)}
}

// Type 仓库类型
func (r *FileRegistry) Type() string {
	return "file"
}

// Dir 模型目录
func (r *FileRegistry) Dir() string {
	return r.dir
}

// Path 模型文件路径
func (r *FileRegistry) Path(key ModelKey) string {
	return filepath.Join(r.dir, key.Filename())
}

// Save 保存模型
func (r *FileRegistry) Save(ctx context.Context, m forecast.Model) error {
	key := KeyOf(m)
	if err := key.Validate(); err != nil {
		return err
	}
	data, _, err := encodeArtifact(m)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("创建模型目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, ".tmp-"+string(key.Kind)+"-*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("写入模型文件失败: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("同步模型文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("关闭模型文件失败: %w", err)
	}
	if err := os.Rename(tmpName, r.Path(key)); err != nil {
		return fmt.Errorf("替换模型文件失败: %w", err)
	}

	r.logger.Info("模型已保存",
		"model_kind", key.Kind,
		"location_key", key.LocationKey,
		"item_key", key.ItemKey,
		"path", r.Path(key))
	return nil
}

// Load 加载模型
func (r *FileRegistry) Load(ctx context.Context, key ModelKey) (forecast.Model, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(r.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, key)
		}
		return nil, fmt.Errorf("读取模型文件失败: %w", err)
	}
	return decodeArtifact(data, key)
}

// List 列出目录中的模型
func (r *FileRegistry) List(ctx context.Context) (ListResult, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return newListResult(nil, fmt.Sprintf("模型目录 %s 不存在", r.dir)), nil
		}
		return ListResult{}, fmt.Errorf("读取模型目录失败: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return newListResult(names, fmt.Sprintf("模型目录 %s 中没有模型", r.dir)), nil
}
