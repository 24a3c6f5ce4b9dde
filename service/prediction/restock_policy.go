/*
 * @module service/prediction/restock_policy
 * @description 补货策略：固定缓冲量，或由 yaegi 解释执行的脚本策略
 * @architecture 策略模式 - 预测服务只依赖 RestockPolicy 接口
 * @documentReference DESIGN.md
 * @stateFlow 预测需求量 -> 策略计算 -> 非负补货量
 * @rules 脚本结果截断为非负；脚本出错或异常时回退到固定缓冲量
 * @dependencies github.com/traefik/yaegi, github.com/spf13/cast
 * @refs service.go
 */

package prediction

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"forecast-service/logger"
	"forecast-service/service/models"

	"github.com/spf13/cast"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// DefaultRestockBuffer 默认安全缓冲量
const DefaultRestockBuffer = 5

// RestockInput 补货策略输入
type RestockInput struct {
	Key             models.SeriesKey
	ModelKind       string
	PredictedDemand int
}

// RestockPolicy 补货策略
type RestockPolicy interface {
	RestockQuantity(ctx context.Context, in RestockInput) int
	Name() string
}

// FixedBuffer 补货量 = 预测需求 + 固定缓冲
type FixedBuffer struct {
	Buffer int
}

// RestockQuantity 计算补货量
func (f FixedBuffer) RestockQuantity(ctx context.Context, in RestockInput) int {
	return max(0, in.PredictedDemand+f.Buffer)
}

// Name 策略名称
func (f FixedBuffer) Name() string {
	return fmt.Sprintf("fixed_buffer(%d)", f.Buffer)
}

// ScriptPolicy 脚本补货策略
// 脚本体作为 Run(params) 的函数体执行，可用变量 predicted、buffer、locationKey、itemKey、modelKind
type ScriptPolicy struct {
	fn       func(map[string]interface{}) (interface{}, error)
	fallback FixedBuffer
	logger   *slog.Logger
}

// LoadScriptPolicy 从文件加载脚本策略
func LoadScriptPolicy(path string, fallback FixedBuffer, l *slog.Logger) (*ScriptPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取补货策略脚本失败: %w", err)
	}
	return NewScriptPolicy(string(data), fallback, l)
}

// NewScriptPolicy 编译脚本策略
func NewScriptPolicy(script string, fallback FixedBuffer, l *slog.Logger) (*ScriptPolicy, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("加载标准库失败: %w", err)
	}

	wrapped := fmt.Sprintf(`
package main

func Run(params map[string]interface{}) (interface{}, error) {
	predicted, _ := params["predicted"].(int)
	buffer, _ := params["buffer"].(int)
	locationKey, _ := params["locationKey"].(string)
	itemKey, _ := params["itemKey"].(string)
	modelKind, _ := params["modelKind"].(string)
	_, _, _, _, _ = predicted, buffer, locationKey, itemKey, modelKind

%s
}
`, script)

	if _, err := i.Eval(wrapped); err != nil {
		return nil, fmt.Errorf("补货策略脚本编译失败: %w", err)
	}
	v, err := i.Eval("Run")
	if err != nil {
		return nil, fmt.Errorf("补货策略脚本缺少 Run 函数: %w", err)
	}
	fn, ok := v.Interface().(func(map[string]interface{}) (interface{}, error))
	if !ok {
		return nil, fmt.Errorf("Run 函数签名必须是 func(map[string]interface{}) (interface{}, error)")
	}

	return &ScriptPolicy{fn: fn, fallback: fallback, logger: logger.OrDefault(l)}, nil
}

// Name 策略名称
func (s *ScriptPolicy) Name() string {
	return "script"
}

// RestockQuantity 执行脚本计算补货量
func (s *ScriptPolicy) RestockQuantity(ctx context.Context, in RestockInput) (qty int) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("补货策略脚本异常，使用固定缓冲",
				"location_key", in.Key.LocationKey,
				"item_key", in.Key.ItemKey,
				"error", r)
			qty = s.fallback.RestockQuantity(ctx, in)
		}
	}()

	out, err := s.fn(map[string]interface{}{
		"predicted":   in.PredictedDemand,
		"buffer":      s.fallback.Buffer,
		"locationKey": in.Key.LocationKey,
		"itemKey":     in.Key.ItemKey,
		"modelKind":   in.ModelKind,
	})
	if err == nil {
		var n int
		if n, err = cast.ToIntE(out); err == nil {
			return max(0, n)
		}
	}

	s.logger.Warn("补货策略脚本执行失败，使用固定缓冲",
		"location_key", in.Key.LocationKey,
		"item_key", in.Key.ItemKey,
		"error", err)
	return s.fallback.RestockQuantity(ctx, in)
}
