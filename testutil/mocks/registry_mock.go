/*
 * @module testutil/mocks/registry_mock
 * @description 模型仓库的 testify mock
 * @architecture 测试基础设施
 * @documentReference DESIGN.md
 * @stateFlow 预设期望 -> 被测服务调用 -> 断言调用次数
 * @rules 用于验证输入非法时不访问仓库等交互约束
 * @dependencies github.com/stretchr/testify/mock
 * @refs service/registry/registry.go
 */

package mocks

import (
	"context"

	"forecast-service/service/forecast"
	"forecast-service/service/registry"

	"github.com/stretchr/testify/mock"
)

// MockRegistry 模型仓库 mock
type MockRegistry struct {
	mock.Mock
}

var _ registry.Registry = (*MockRegistry)(nil)

func (m *MockRegistry) Save(ctx context.Context, model forecast.Model) error {
	args := m.Called(ctx, model)
	return args.Error(0)
}

func (m *MockRegistry) Load(ctx context.Context, key registry.ModelKey) (forecast.Model, error) {
	args := m.Called(ctx, key)
	if model, ok := args.Get(0).(forecast.Model); ok {
		return model, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRegistry) List(ctx context.Context) (registry.ListResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(registry.ListResult), args.Error(1)
}

func (m *MockRegistry) Type() string {
	return "mock"
}
