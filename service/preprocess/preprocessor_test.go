package preprocess

import (
	"testing"

	"forecast-service/service/models"
	"forecast-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_EmptyInput(t *testing.T) {
	p := NewPreprocessor(nil)
	dataset := p.Process(nil)
	assert.NotNil(t, dataset)
	assert.Empty(t, dataset)
}

func TestProcess_GapFillAndSum(t *testing.T) {
	p := NewPreprocessor(nil)
	records := []models.SalesRecord{
		{Date: testutil.Day(2024, 1, 5), LocationKey: "110037", ItemKey: "Milk", Quantity: 7},
		{Date: testutil.Day(2024, 1, 1), LocationKey: "110037", ItemKey: "Milk", Quantity: 3},
		{Date: testutil.Day(2024, 1, 1), LocationKey: "110037", ItemKey: "Milk", Quantity: 2},
		{Date: testutil.Day(2024, 1, 3), LocationKey: "400092", ItemKey: "Eggs", Quantity: 9},
	}

	dataset := p.Process(records)
	require.Len(t, dataset, 2)

	// 按首次出现顺序
	milk := dataset[0]
	assert.Equal(t, models.SeriesKey{LocationKey: "110037", ItemKey: "Milk"}, milk.Key)
	assert.Equal(t, []float64{5, 0, 0, 0, 7}, milk.Values())

	eggs := dataset[1]
	assert.Equal(t, 1, eggs.Len(), "单条记录生成单点序列")
	assert.Equal(t, 9.0, eggs.Points[0].Value)
}

func TestProcess_DailyContiguous(t *testing.T) {
	p := NewPreprocessor(nil)
	records := []models.SalesRecord{
		{Date: testutil.Day(2023, 12, 30), LocationKey: "400053", ItemKey: "Bread", Quantity: 1},
		{Date: testutil.Day(2024, 3, 2), LocationKey: "400053", ItemKey: "Bread", Quantity: 4},
	}

	dataset := p.Process(records)
	require.Len(t, dataset, 1)
	points := dataset[0].Points
	// 2024 为闰年
	require.Len(t, points, 64)
	for i := 1; i < len(points); i++ {
		assert.Equal(t, points[i-1].Timestamp.AddDate(0, 0, 1), points[i].Timestamp)
	}
}

func TestProcess_CalendarFeatures(t *testing.T) {
	p := NewPreprocessor(nil)
	dataset := p.Process([]models.SalesRecord{
		// 2024-01-06 周六
		{Date: testutil.Day(2024, 1, 6), LocationKey: "a", ItemKey: "b", Quantity: 1},
		{Date: testutil.Day(2024, 4, 1), LocationKey: "a", ItemKey: "b", Quantity: 1},
	})
	require.Len(t, dataset, 1)

	first := dataset[0].Points[0]
	assert.Equal(t, 5, first.DayOfWeek)
	assert.True(t, first.IsWeekend)
	assert.Equal(t, 6, first.DayOfYear)
	assert.Equal(t, 1, first.Month)
	assert.Equal(t, 1, first.Quarter)

	last := dataset[0].Points[len(dataset[0].Points)-1]
	assert.Equal(t, 0, last.DayOfWeek, "2024-04-01 为周一")
	assert.False(t, last.IsWeekend)
	assert.Equal(t, 2, last.Quarter)
}

func TestProcess_NormalizesAndDropsInvalid(t *testing.T) {
	p := NewPreprocessor(nil)
	dataset := p.Process([]models.SalesRecord{
		{Date: testutil.Day(2024, 1, 1), LocationKey: " 110037 ", ItemKey: "Milk", Quantity: 1},
		{Date: testutil.Day(2024, 1, 2), LocationKey: "110037", ItemKey: "Milk ", Quantity: 2},
		{Date: testutil.Day(2024, 1, 2), LocationKey: "", ItemKey: "Milk", Quantity: 2},
		{Date: testutil.Day(2024, 1, 2), LocationKey: "110037", ItemKey: "Eggs", Quantity: -1},
	})
	require.Len(t, dataset, 1)
	assert.Equal(t, "110037/Milk", dataset[0].Key.String())
	assert.Equal(t, []float64{1, 2}, dataset[0].Values())
}

func TestKeysFindAndFilterWindow(t *testing.T) {
	start := testutil.Day(2024, 1, 1)
	dataset := []models.Series{
		testutil.BuildSeries("110037", "Milk", start, []float64{1, 2, 3, 4, 5}),
		testutil.BuildSeries("400092", "Eggs", start.AddDate(0, 0, 10), []float64{1, 2}),
	}

	keys := Keys(dataset)
	assert.Equal(t, []models.SeriesKey{dataset[0].Key, dataset[1].Key}, keys)

	found, ok := Find(dataset, models.NewSeriesKey("400092", "Eggs"))
	assert.True(t, ok)
	assert.Equal(t, 2, found.Len())
	_, ok = Find(dataset, models.NewSeriesKey("x", "y"))
	assert.False(t, ok)

	window := FilterWindow(dataset, testutil.Day(2024, 1, 2), testutil.Day(2024, 1, 4))
	require.Len(t, window, 1)
	assert.Equal(t, []float64{2, 3, 4}, window[0].Values())
}
