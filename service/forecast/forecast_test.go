package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"forecast-service/service/datasource"
	"forecast-service/service/models"
	"forecast-service/service/preprocess"
	"forecast-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = models.NewSeriesKey("110037", "Milk")

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindSeasonalTrend, k)

	k, err = ParseKind(" ARIMA ")
	require.NoError(t, err)
	assert.Equal(t, KindAutoRegressive, k)

	_, err = ParseKind("lstm")
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = New(Kind("lstm"), testKey, DefaultConfig())
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestFit_Validation(t *testing.T) {
	start := testutil.Day(2024, 1, 1)
	for _, kind := range Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			m, err := New(kind, testKey, DefaultConfig())
			require.NoError(t, err)

			short := testutil.BuildSeries("a", "b", start, []float64{1, 2, 3})
			assert.ErrorIs(t, m.Fit(short.Points), ErrInsufficientData)

			series := testutil.BuildSeries("a", "b", start, testutil.WeeklyValues(start, 20, 30))
			series.Points[5].Value = math.NaN()
			assert.ErrorIs(t, m.Fit(series.Points), ErrInvalidSeries)

			series = testutil.BuildSeries("a", "b", start, testutil.WeeklyValues(start, 20, 30))
			series.Points[3], series.Points[4] = series.Points[4], series.Points[3]
			assert.ErrorIs(t, m.Fit(series.Points), ErrInvalidSeries)

			_, err = m.Predict([]time.Time{start})
			assert.ErrorIs(t, err, ErrNotFitted)
		})
	}
}

func TestSeasonalTrend_FitsWeeklyPattern(t *testing.T) {
	start := testutil.Day(2024, 1, 1)
	values := testutil.WeeklyValues(start, 90, 40)
	series := testutil.BuildSeries("110037", "Milk", start, values)

	for _, mode := range []string{SeasonalityMultiplicative, SeasonalityAdditive} {
		t.Run(mode, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.SeasonalityMode = mode
			m := NewSeasonalTrend(testKey, cfg)
			require.NoError(t, m.Fit(series.Points))
			assert.False(t, m.TrainedAt().IsZero())

			fitted, err := m.Predict(series.Timestamps())
			require.NoError(t, err)
			mae := 0.0
			for i, v := range values {
				mae += math.Abs(v - fitted[i])
			}
			mae /= float64(len(values))
			assert.Less(t, mae, 2.0, "样本内平均绝对误差应较小")

			// 2024-03-30 周六, 2024-04-03 周三
			future, err := m.Predict([]time.Time{testutil.Day(2024, 3, 30), testutil.Day(2024, 4, 3)})
			require.NoError(t, err)
			assert.Greater(t, future[0], future[1], "周末预测应高于工作日")
			for _, v := range future {
				assert.GreaterOrEqual(t, v, 0.0)
			}
		})
	}
}

func TestSeasonalTrend_ShortHistoryShrinksYearly(t *testing.T) {
	start := testutil.Day(2024, 1, 1)
	series := testutil.BuildSeries("a", "b", start, testutil.WeeklyValues(start, 90, 30))

	m := NewSeasonalTrend(testKey, DefaultConfig())
	require.NoError(t, m.Fit(series.Points))

	orders := map[string]int{}
	for _, c := range m.params.Components {
		orders[c.Name] = c.Order
	}
	assert.Equal(t, 2, orders["yearly"], "89 天约覆盖 0.24 年，年季节项降为2阶")
	assert.Equal(t, 3, orders["weekly"])

	components := fitToHistory(seasonalitiesFor(DefaultConfig()), 89)
	penalty := m.seasonalPenalty(components, 89, 90)
	require.Len(t, penalty, seasonalWidth(components))
	assert.Greater(t, penalty[0], 100*penalty[len(penalty)-1], "年季节项惩罚应远大于周季节项")

	full := fitToHistory(seasonalitiesFor(DefaultConfig()), 730)
	assert.Equal(t, 10, full[0].Order)
	fullPenalty := m.seasonalPenalty(full, 730, 731)
	assert.InDelta(t, fullPenalty[0], fullPenalty[len(fullPenalty)-1], 1e-12)
}

// 模拟数据无趋势和年季节性，留出期误差不应明显劣于训练均值
func TestSeasonalTrend_HoldoutOnSimulatedDemand(t *testing.T) {
	const holdoutDays = 30
	trainStart := testutil.Day(2024, 1, 1)

	for _, trainDays := range []int{30, 90} {
		t.Run(fmt.Sprintf("train_%d_days", trainDays), func(t *testing.T) {
			to := trainStart.AddDate(0, 0, trainDays+holdoutDays-1)
			records, err := datasource.NewSimulatedSource(42).FetchSales(context.Background(), trainStart, to)
			require.NoError(t, err)
			dataset := preprocess.NewPreprocessor(nil).Process(records)
			require.Len(t, dataset, 15)

			var modelErr, meanErr float64
			for _, series := range dataset {
				require.Equal(t, trainDays+holdoutDays, series.Len())
				train, holdout := series.Points[:trainDays], series.Points[trainDays:]

				m := NewSeasonalTrend(series.Key, DefaultConfig())
				require.NoError(t, m.Fit(train))

				stamps := make([]time.Time, len(holdout))
				for i, p := range holdout {
					stamps[i] = p.Timestamp
				}
				predicted, err := m.Predict(stamps)
				require.NoError(t, err)

				trainMean, trainMax := 0.0, 0.0
				for _, p := range train {
					trainMean += p.Value
					trainMax = math.Max(trainMax, p.Value)
				}
				trainMean /= float64(len(train))

				for i, p := range holdout {
					modelErr += math.Abs(p.Value - predicted[i])
					meanErr += math.Abs(p.Value - trainMean)
					if i < 7 {
						assert.LessOrEqual(t, predicted[i], 1.5*trainMax, "%v 第%d天预测越界", series.Key, i+1)
					}
				}
			}

			n := float64(len(dataset) * holdoutDays)
			modelErr, meanErr = modelErr/n, meanErr/n
			limit := 1.1
			if trainDays < 60 {
				limit = 1.3
			}
			assert.LessOrEqual(t, modelErr, limit*meanErr, "模型 MAE=%.2f 训练均值 MAE=%.2f", modelErr, meanErr)
		})
	}
}

func TestSeasonalTrend_Deterministic(t *testing.T) {
	start := testutil.Day(2024, 1, 1)
	series := testutil.BuildSeries("a", "b", start, testutil.WeeklyValues(start, 60, 25))

	m1 := NewSeasonalTrend(testKey, DefaultConfig())
	m2 := NewSeasonalTrend(testKey, DefaultConfig())
	require.NoError(t, m1.Fit(series.Points))
	require.NoError(t, m2.Fit(series.Points))

	tomorrow := []time.Time{testutil.Day(2024, 3, 1)}
	p1, err := m1.Predict(tomorrow)
	require.NoError(t, err)
	p2, err := m2.Predict(tomorrow)
	require.NoError(t, err)
	again, err := m1.Predict(tomorrow)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, p1, again)
}

func TestSeasonalTrend_ZeroSeries(t *testing.T) {
	start := testutil.Day(2024, 1, 1)
	series := testutil.BuildSeries("a", "b", start, make([]float64, 14))

	m := NewSeasonalTrend(testKey, DefaultConfig())
	require.NoError(t, m.Fit(series.Points))
	out, err := m.Predict([]time.Time{testutil.Day(2024, 1, 15)})
	require.NoError(t, err)
	assert.InDelta(t, 0, out[0], 1e-9)
}

func TestSeasonalTrend_ClampsNegative(t *testing.T) {
	start := testutil.Day(2024, 1, 1)
	values := make([]float64, 30)
	for i := range values {
		values[i] = math.Max(0, 60-3*float64(i))
	}
	series := testutil.BuildSeries("a", "b", start, values)

	m := NewSeasonalTrend(testKey, DefaultConfig())
	require.NoError(t, m.Fit(series.Points))
	out, err := m.Predict([]time.Time{testutil.Day(2024, 6, 1)})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out[0], 0.0)
}

func TestChangepointPositions(t *testing.T) {
	t10 := make([]float64, 10)
	for i := range t10 {
		t10[i] = float64(i) / 9
	}
	// 前 80% 共 8 个点，最多 7 个变点
	cps := changepointPositions(t10, 25, 0.8)
	require.Len(t, cps, 7)
	assert.InDelta(t, t10[1], cps[0], 1e-12)
	assert.InDelta(t, t10[7], cps[6], 1e-12)

	t100 := make([]float64, 100)
	for i := range t100 {
		t100[i] = float64(i) / 99
	}
	cps = changepointPositions(t100, 25, 0.8)
	require.Len(t, cps, 25)
	assert.LessOrEqual(t, cps[24], t100[79])
}

func TestAutoRegressive_ConstantSeries(t *testing.T) {
	start := testutil.Day(2024, 1, 1)
	values := make([]float64, 30)
	for i := range values {
		values[i] = 20
	}
	series := testutil.BuildSeries("a", "b", start, values)

	m := NewAutoRegressive(testKey, DefaultConfig())
	require.NoError(t, m.Fit(series.Points))
	assert.Equal(t, 7, m.params.Lags)

	out, err := m.Predict([]time.Time{
		testutil.Day(2024, 1, 15), // 窗口内
		testutil.Day(2024, 1, 31), // 次日
		testutil.Day(2024, 2, 10), // 递推
	})
	require.NoError(t, err)
	for _, v := range out {
		assert.InDelta(t, 20, v, 1.0)
	}
}

func TestAutoRegressive_LagOrder(t *testing.T) {
	start := testutil.Day(2024, 1, 1)
	series := testutil.BuildSeries("a", "b", start, testutil.WeeklyValues(start, 10, 30))

	m := NewAutoRegressive(testKey, DefaultConfig())
	require.NoError(t, m.Fit(series.Points))
	assert.Equal(t, 5, m.params.Lags)
}

func TestAutoRegressive_RequiresContiguous(t *testing.T) {
	start := testutil.Day(2024, 1, 1)
	series := testutil.BuildSeries("a", "b", start, testutil.WeeklyValues(start, 12, 30))
	series.Points[11] = models.NewSeriesPoint(testutil.Day(2024, 2, 1), 30)

	m := NewAutoRegressive(testKey, DefaultConfig())
	assert.ErrorIs(t, m.Fit(series.Points), ErrInvalidSeries)
}

func TestMarshalRoundTrip(t *testing.T) {
	start := testutil.Day(2024, 1, 1)
	series := testutil.BuildSeries("110037", "Milk", start, testutil.WeeklyValues(start, 45, 35))
	stamps := []time.Time{testutil.Day(2024, 2, 10), testutil.Day(2024, 2, 15), testutil.Day(2024, 3, 1)}

	for _, kind := range Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			m, err := New(kind, series.Key, DefaultConfig())
			require.NoError(t, err)
			require.NoError(t, m.Fit(series.Points))

			blob, err := Marshal(m)
			require.NoError(t, err)

			var env map[string]interface{}
			require.NoError(t, json.Unmarshal(blob, &env))
			assert.Equal(t, string(kind), env["kind"])
			assert.Equal(t, "110037", env["location_key"])
			assert.Equal(t, "Milk", env["item_key"])

			restored, err := Unmarshal(blob)
			require.NoError(t, err)
			assert.Equal(t, kind, restored.Kind())
			assert.Equal(t, series.Key, restored.Key())
			assert.True(t, m.TrainedAt().Equal(restored.TrainedAt()))

			want, err := m.Predict(stamps)
			require.NoError(t, err)
			got, err := restored.Predict(stamps)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestMarshal_Unfitted(t *testing.T) {
	_, err := Marshal(NewSeasonalTrend(testKey, DefaultConfig()))
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestUnmarshal_Invalid(t *testing.T) {
	_, err := Unmarshal([]byte("not json"))
	assert.ErrorIs(t, err, ErrInvalidArtifact)

	_, err = Unmarshal([]byte(`{"kind":"lstm","location_key":"a","item_key":"b","params":{}}`))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Unmarshal([]byte(`{"kind":"prophet","location_key":"a","item_key":"b","params":{"trend":[1]}}`))
	assert.ErrorIs(t, err, ErrInvalidArtifact)

	_, err = Unmarshal([]byte(`{"kind":"arima","location_key":"a","item_key":"b","params":{"lags":0}}`))
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}
