package evaluation

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"forecast-service/service/forecast"
	"forecast-service/service/metrics"
	"forecast-service/service/models"
	"forecast-service/service/registry"
	"forecast-service/testutil"
	"forecast-service/testutil/mocks"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// constModel 对任意日期返回固定值
type constModel struct {
	value float64
	err   error
	panic bool
}

func (m *constModel) Kind() forecast.Kind                  { return forecast.KindSeasonalTrend }
func (m *constModel) Key() models.SeriesKey                { return models.SeriesKey{} }
func (m *constModel) TrainedAt() time.Time                 { return time.Time{} }
func (m *constModel) Fit(points []models.SeriesPoint) error { return nil }
func (m *constModel) Predict(stamps []time.Time) ([]float64, error) {
	if m.panic {
		panic("index out of range")
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make([]float64, len(stamps))
	for i := range out {
		out[i] = m.value
	}
	return out, nil
}

func evalSeries(values ...float64) []models.Series {
	return []models.Series{testutil.BuildSeries("110037", "Milk", testutil.Day(2024, 3, 1), values)}
}

func TestEvaluate_UnknownKindUsesFixedMetricLabel(t *testing.T) {
	engine := NewEngine(new(mocks.MockRegistry), nil)
	invalid := metrics.Evaluations.WithLabelValues(metrics.InvalidModelKind,
		string(models.EvaluationStatusUnsupportedModelKind))

	engine.Evaluate(context.Background(), "110037", "Milk", "kind-0", evalSeries(1, 2, 3))
	before := promtest.ToFloat64(invalid)
	series := promtest.CollectAndCount(metrics.Evaluations)

	for _, kind := range []string{"kind-1", "kind-2", "kind-3"} {
		result := engine.Evaluate(context.Background(), "110037", "Milk", kind, evalSeries(1, 2, 3))
		assert.Equal(t, models.EvaluationStatusUnsupportedModelKind, result.Status)
	}
	assert.Equal(t, before+3, promtest.ToFloat64(invalid))
	assert.Equal(t, series, promtest.CollectAndCount(metrics.Evaluations), "未知模型类型不应产生新的标签组合")
}

func TestEvaluate_Preconditions(t *testing.T) {
	reg := new(mocks.MockRegistry)
	engine := NewEngine(reg, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		location string
		item     string
		kind     string
		dataset  []models.Series
		want     models.EvaluationStatus
	}{
		{"空区域", "", "Milk", "prophet", evalSeries(1, 2), models.EvaluationStatusInvalidInput},
		{"空商品", "110037", " ", "prophet", evalSeries(1, 2), models.EvaluationStatusInvalidInput},
		{"未知模型类型", "110037", "Milk", "lstm", evalSeries(1, 2), models.EvaluationStatusUnsupportedModelKind},
		{"无评估数据", "110037", "Milk", "prophet", nil, models.EvaluationStatusNoEvaluationData},
		{"缺少键字段", "110037", "Milk", "prophet", []models.Series{{Points: evalSeries(1)[0].Points}}, models.EvaluationStatusMissingFields},
		{"缺少日期字段", "110037", "Milk", "prophet", []models.Series{{
			Key:    models.NewSeriesKey("110037", "Milk"),
			Points: []models.SeriesPoint{{Value: 3}},
		}}, models.EvaluationStatusMissingFields},
		{"无对应序列", "400092", "Eggs", "prophet", evalSeries(1, 2), models.EvaluationStatusNoSeriesData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Evaluate(ctx, tt.location, tt.item, tt.kind, tt.dataset)
			assert.Equal(t, tt.want, result.Status)
			assert.NotEmpty(t, result.Message)
			assert.False(t, result.Completed())
		})
	}
	reg.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
}

func TestEvaluate_LoadFailures(t *testing.T) {
	tests := []struct {
		err  error
		want models.EvaluationStatus
	}{
		{registry.ErrModelNotFound, models.EvaluationStatusModelNotFound},
		{registry.ErrModelCorrupted, models.EvaluationStatusModelCorrupted},
		{errors.New("redis: connection refused"), models.EvaluationStatusPredictionFailed},
	}
	for _, tt := range tests {
		reg := new(mocks.MockRegistry)
		reg.On("Load", mock.Anything, registry.NewModelKey(forecast.KindAutoRegressive, "110037", "Milk")).Return(nil, tt.err)
		engine := NewEngine(reg, nil)

		result := engine.Evaluate(context.Background(), "110037", "Milk", "arima", evalSeries(3, 4, 5))
		assert.Equal(t, tt.want, result.Status)
		reg.AssertExpectations(t)
	}
}

func TestEvaluate_Metrics(t *testing.T) {
	reg := new(mocks.MockRegistry)
	reg.On("Load", mock.Anything, mock.Anything).Return(&constModel{value: 10}, nil)
	engine := NewEngine(reg, nil)

	result := engine.Evaluate(context.Background(), "110037", "Milk", "prophet", evalSeries(8, 10, 14))
	require.True(t, result.Completed())
	assert.Equal(t, 3, result.Points)
	assert.Equal(t, 2.0, result.MAE)
	assert.Equal(t, 2.58, result.RMSE)
	// (2/8 + 0 + 4/14) / 3 * 100
	assert.Equal(t, 17.86, result.MAPE)
}

func TestEvaluate_AllZeroActualsGiveInfiniteMAPE(t *testing.T) {
	reg := new(mocks.MockRegistry)
	reg.On("Load", mock.Anything, mock.Anything).Return(&constModel{value: 1}, nil)
	engine := NewEngine(reg, nil)

	result := engine.Evaluate(context.Background(), "110037", "Milk", "prophet", evalSeries(0, 0, 0, 0))
	require.True(t, result.Completed())
	assert.True(t, math.IsInf(result.MAPE, 1))
	assert.Equal(t, 1.0, result.MAE)
}

func TestEvaluate_UnsortedSubseriesAreSorted(t *testing.T) {
	key := models.NewSeriesKey("110037", "Milk")
	dataset := []models.Series{
		{Key: key, Points: []models.SeriesPoint{models.NewSeriesPoint(testutil.Day(2024, 3, 3), 30)}},
		{Key: models.NewSeriesKey("400092", "Eggs"), Points: []models.SeriesPoint{models.NewSeriesPoint(testutil.Day(2024, 3, 1), 99)}},
		{Key: key, Points: []models.SeriesPoint{
			models.NewSeriesPoint(testutil.Day(2024, 3, 2), 20),
			models.NewSeriesPoint(testutil.Day(2024, 3, 1), 10),
		}},
	}

	var seen []time.Time
	model := &recordingModel{seen: &seen}
	reg := new(mocks.MockRegistry)
	reg.On("Load", mock.Anything, mock.Anything).Return(model, nil)

	result := NewEngine(reg, nil).Evaluate(context.Background(), "110037", "Milk", "prophet", dataset)
	require.True(t, result.Completed())
	assert.Equal(t, []time.Time{testutil.Day(2024, 3, 1), testutil.Day(2024, 3, 2), testutil.Day(2024, 3, 3)}, seen)
	assert.Equal(t, 0.0, result.MAE)
}

func TestEvaluate_PredictionFailures(t *testing.T) {
	for name, model := range map[string]*constModel{
		"error": {err: errors.New("singular matrix")},
		"panic": {panic: true},
	} {
		t.Run(name, func(t *testing.T) {
			reg := new(mocks.MockRegistry)
			reg.On("Load", mock.Anything, mock.Anything).Return(model, nil)
			result := NewEngine(reg, nil).Evaluate(context.Background(), "110037", "Milk", "prophet", evalSeries(1, 2, 3))
			assert.Equal(t, models.EvaluationStatusPredictionFailed, result.Status)
		})
	}
}

func TestEvaluate_ShortPredictionIsTruncated(t *testing.T) {
	reg := new(mocks.MockRegistry)
	reg.On("Load", mock.Anything, mock.Anything).Return(&shortModel{n: 2, value: 5}, nil)
	result := NewEngine(reg, nil).Evaluate(context.Background(), "110037", "Milk", "prophet", evalSeries(5, 7, 100))
	require.True(t, result.Completed())
	assert.Equal(t, 2, result.Points)
	assert.Equal(t, 1.0, result.MAE)

	reg = new(mocks.MockRegistry)
	reg.On("Load", mock.Anything, mock.Anything).Return(&shortModel{n: 0}, nil)
	result = NewEngine(reg, nil).Evaluate(context.Background(), "110037", "Milk", "prophet", evalSeries(5, 7))
	assert.Equal(t, models.EvaluationStatusNoAlignedData, result.Status)
}

func TestEvaluate_TrainedModelsFromFileRegistry(t *testing.T) {
	dir := t.TempDir()
	reg := registry.NewFileRegistry(dir, nil)
	start := testutil.Day(2024, 1, 1)
	history := testutil.BuildSeries("110037", "Milk", start, testutil.WeeklyValues(start, 70, 40))

	for _, kind := range forecast.Kinds() {
		model, err := forecast.New(kind, history.Key, forecast.DefaultConfig())
		require.NoError(t, err)
		require.NoError(t, model.Fit(history.Points[:60]))
		require.NoError(t, reg.Save(context.Background(), model))
	}

	window := []models.Series{{Key: history.Key, Points: history.Points[60:]}}
	engine := NewEngine(reg, nil)
	for _, kind := range forecast.Kinds() {
		result := engine.Evaluate(context.Background(), "110037", "Milk", string(kind), window)
		require.True(t, result.Completed(), "%s: %s", kind, result.Message)
		assert.Equal(t, 10, result.Points)
		assert.Less(t, result.MAE, 15.0, "模型类型 %s", kind)
	}

	// 损坏的模型文件
	path := filepath.Join(dir, registry.NewModelKey(forecast.KindSeasonalTrend, "110037", "Milk").Filename())
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
	result := engine.Evaluate(context.Background(), "110037", "Milk", "prophet", window)
	assert.Equal(t, models.EvaluationStatusModelCorrupted, result.Status)
}

type recordingModel struct {
	constModel
	seen *[]time.Time
}

func (m *recordingModel) Predict(stamps []time.Time) ([]float64, error) {
	*m.seen = append(*m.seen, stamps...)
	out := make([]float64, len(stamps))
	for i, ts := range stamps {
		out[i] = float64(ts.Day() * 10)
	}
	return out, nil
}

type shortModel struct {
	constModel
	n     int
	value float64
}

func (m *shortModel) Predict(stamps []time.Time) ([]float64, error) {
	out := make([]float64, 0, m.n)
	for i := 0; i < m.n && i < len(stamps); i++ {
		out = append(out, m.value)
	}
	return out, nil
}
