package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"forecast-service/service/datasource"
	"forecast-service/service/evaluation"
	"forecast-service/service/forecast"
	"forecast-service/service/models"
	"forecast-service/service/preprocess"
	"forecast-service/service/registry"
	"forecast-service/service/training"
	"forecast-service/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type failingSource struct{}

func (failingSource) Type() string { return "failing" }
func (failingSource) FetchSales(ctx context.Context, from, to time.Time) ([]models.SalesRecord, error) {
	return nil, datasource.ErrDataUnavailable
}

type MonitorTestSuite struct {
	suite.Suite
	testDB   *testutil.TestDB
	registry registry.Registry
	source   *datasource.SimulatedSource
	clock    func() time.Time
}

func (s *MonitorTestSuite) SetupTest() {
	s.testDB = testutil.NewTestDB()
	s.registry = registry.NewFileRegistry(s.T().TempDir(), nil)
	s.source = datasource.NewSimulatedSource(42)
	s.clock = func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) }

	// 用监控窗口之前的历史训练 arima 模型
	ctx := context.Background()
	records, err := s.source.FetchSales(ctx, testutil.Day(2024, 2, 1), testutil.Day(2024, 4, 30))
	s.Require().NoError(err)
	dataset := preprocess.NewPreprocessor(nil).Process(records)
	report := training.NewOrchestrator(s.registry, s.source, training.Options{}).
		Train(ctx, dataset, forecast.KindAutoRegressive)
	s.Require().Equal(15, report.Trained)
}

func (s *MonitorTestSuite) TearDownTest() {
	s.testDB.Close()
}

func (s *MonitorTestSuite) newMonitor(opts Options) *Monitor {
	opts.Clock = s.clock
	return NewMonitor(s.source, evaluation.NewEngine(s.registry, nil), opts)
}

func (s *MonitorTestSuite) TestWindow() {
	from, to := s.newMonitor(Options{}).Window()
	s.Equal(testutil.Day(2024, 5, 31), to)
	s.Equal(testutil.Day(2024, 5, 1), from)
}

func (s *MonitorTestSuite) TestRunDaily_EvaluatesEveryKeyAndKind() {
	m := s.newMonitor(Options{DB: s.testDB.DB})

	bundles := m.RunDaily(context.Background())
	s.Len(bundles, 30)

	byStatus := map[models.EvaluationStatus]int{}
	for _, b := range bundles {
		byStatus[b.Metrics.Status]++
		if b.ModelKind == string(forecast.KindAutoRegressive) {
			s.True(b.Metrics.Completed(), "%s/%s: %s", b.LocationKey, b.ItemKey, b.Metrics.Message)
			s.Equal(31, b.Metrics.Points)
		} else {
			s.Equal(models.EvaluationStatusModelNotFound, b.Metrics.Status)
		}
	}
	s.Equal(15, byStatus[models.EvaluationStatusComplete])
	s.Equal(15, byStatus[models.EvaluationStatusModelNotFound])

	var rows []models.EvaluationRecord
	s.Require().NoError(s.testDB.DB.Find(&rows).Error)
	s.Len(rows, 30)
	s.Equal(rows[0].RunID, rows[29].RunID)
	s.True(rows[0].WindowStart.Equal(testutil.Day(2024, 5, 1)))
}

func (s *MonitorTestSuite) TestRunDaily_ConfiguredKinds() {
	m := s.newMonitor(Options{Kinds: []forecast.Kind{forecast.KindAutoRegressive}})
	bundles := m.RunDaily(context.Background())
	s.Len(bundles, 15)
	for _, b := range bundles {
		s.True(b.Metrics.Completed())
	}
}

func (s *MonitorTestSuite) TestRunDaily_SourceErrorReturnsEmpty() {
	m := NewMonitor(failingSource{}, evaluation.NewEngine(s.registry, nil), Options{
		Clock: s.clock,
		DB:    s.testDB.DB,
	})
	bundles := m.RunDaily(context.Background())
	s.NotNil(bundles)
	s.Empty(bundles)

	var count int64
	s.testDB.DB.Model(&models.EvaluationRecord{}).Count(&count)
	s.Zero(count)
}

func (s *MonitorTestSuite) TestRunDaily_AlertHook() {
	var got Report
	calls := 0
	hook := AlertHookFunc(func(ctx context.Context, report Report) error {
		calls++
		got = report
		return errors.New("下游不可用")
	})

	bundles := s.newMonitor(Options{Kinds: []forecast.Kind{forecast.KindAutoRegressive}, Alert: hook}).
		RunDaily(context.Background())
	s.Equal(1, calls)
	s.Equal(bundles, got.Bundles)
	s.NotEmpty(got.RunID)
	s.Equal(testutil.Day(2024, 5, 31), got.WindowEnd)
}

func TestMonitorTestSuite(t *testing.T) {
	suite.Run(t, new(MonitorTestSuite))
}

func TestWebhookAlertHook(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	hook := NewWebhookAlertHook(server.URL)
	hook.Headers = map[string]string{"X-Token": "secret"}
	report := Report{
		RunID: "run-1",
		Bundles: []models.MetricBundle{{
			LocationKey: "110037",
			ItemKey:     "Milk",
			ModelKind:   "prophet",
			Metrics:     models.EvaluationMetrics{MAE: 1, RMSE: 1, MAPE: math.Inf(1), Points: 2, Status: models.EvaluationStatusComplete},
		}},
	}
	require.NoError(t, hook.Notify(context.Background(), report))
	assert.Equal(t, "run-1", received["run_id"])
	bundle := received["bundles"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Infinity", bundle["metrics"].(map[string]interface{})["mape"])

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	assert.Error(t, NewWebhookAlertHook(failing.URL).Notify(context.Background(), report))
}
