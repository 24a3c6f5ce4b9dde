package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"forecast-service/service/config"
	"forecast-service/service/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.SQLitePath = filepath.Join(t.TempDir(), "forecast.db")
	cfg.Registry.ModelDir = filepath.Join(t.TempDir(), "models")
	cfg.Training.LookbackDays = 60
	return cfg
}

func TestInit_WiresPipeline(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Init(ctx, testConfig(t), nil))
	defer Shutdown()

	assert.Equal(t, "simulated", GlobalSource.Type())
	assert.Equal(t, "file", GlobalRegistry.Type())
	assert.NotNil(t, GlobalMonitor)
	assert.NotNil(t, GlobalIngestor)

	names := make([]string, 0, 4)
	for _, job := range GlobalSchedulerService.Jobs() {
		names = append(names, job.Name)
	}
	assert.Equal(t, []string{scheduler.JobCleanup, scheduler.JobMonitor, scheduler.JobPredict, scheduler.JobTrain}, names)

	report, err := RunTraining(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, report.Total)
	assert.Equal(t, 15, report.Trained)

	result := GlobalPredictionService.Predict(ctx, "110037", "Milk", "prophet")
	assert.True(t, result.Succeeded(), result.Message)
	assert.Equal(t, result.PredictedDemand+5, result.RestockQuantity)

	listed, err := GlobalRegistry.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 15, listed.Count)
}

func TestInit_ScriptPolicy(t *testing.T) {
	cfg := testConfig(t)
	script := filepath.Join(t.TempDir(), "policy.go")
	require.NoError(t, os.WriteFile(script, []byte("return predicted + 20, nil\n"), 0o644))
	cfg.Restock.PolicyScript = script

	require.NoError(t, Init(context.Background(), cfg, nil))
	defer Shutdown()

	_, err := RunTraining(context.Background())
	require.NoError(t, err)
	result := GlobalPredictionService.Predict(context.Background(), "400092", "Bread", "prophet")
	require.True(t, result.Succeeded(), result.Message)
	assert.Equal(t, result.PredictedDemand+20, result.RestockQuantity)
}

func TestInit_RejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.MonitorModelKinds = []string{"lstm"}
	err := Init(context.Background(), cfg, nil)
	assert.Error(t, err)
	Shutdown()

	cfg = testConfig(t)
	cfg.Restock.PolicyScript = filepath.Join(t.TempDir(), "missing.go")
	err = Init(context.Background(), cfg, nil)
	assert.Error(t, err)
	Shutdown()
}
