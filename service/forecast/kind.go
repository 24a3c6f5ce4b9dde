/*
 * @module service/forecast/kind
 * @description 预测模型类型与错误定义
 * @architecture 领域模型层
 * @documentReference DESIGN.md
 * @stateFlow 请求中的模型类型字符串 -> ParseKind -> Kind
 * @rules 只接受已注册的模型类型
 * @dependencies errors
 * @refs model.go
 */

package forecast

import (
	"errors"
	"fmt"
	"strings"
)

// Kind 模型类型
type Kind string

const (
	// KindSeasonalTrend 分段线性趋势 + 傅里叶季节项
	KindSeasonalTrend Kind = "prophet"
	// KindAutoRegressive 带截距的自回归模型
	KindAutoRegressive Kind = "arima"

	// DefaultKind 未指定时使用的模型类型
	DefaultKind = KindSeasonalTrend
)

// MinTrainingPoints 训练所需的最少日数据点
const MinTrainingPoints = 10

var (
	// ErrInsufficientData 训练数据点不足
	ErrInsufficientData = errors.New("训练数据不足")
	// ErrInvalidSeries 序列包含非法值或未按时间递增
	ErrInvalidSeries = errors.New("非法序列")
	// ErrUnknownKind 未知模型类型
	ErrUnknownKind = errors.New("未知模型类型")
	// ErrNotFitted 模型尚未训练
	ErrNotFitted = errors.New("模型尚未训练")
	// ErrInvalidArtifact 序列化数据无法解析
	ErrInvalidArtifact = errors.New("模型数据无法解析")
)

// String 实现 fmt.Stringer
func (k Kind) String() string {
	return string(k)
}

// ParseKind 解析模型类型，空字符串返回默认类型
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultKind, nil
	}
	k := Kind(s)
	if _, ok := constructors[k]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, s)
	}
	return k, nil
}

// Kinds 返回全部已注册的模型类型
func Kinds() []Kind {
	return []Kind{KindSeasonalTrend, KindAutoRegressive}
}
