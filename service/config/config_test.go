/*
 * @module service/config/config_test
 * @description 配置加载单元测试
 * @architecture 测试层
 * @documentReference DESIGN.md
 * @stateFlow 设置环境变量/配置文件 -> 加载 -> 断言
 * @rules 环境变量覆盖配置文件，配置文件覆盖默认值
 * @dependencies testing, stretchr/testify
 */

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.ListenPort)
	assert.Equal(t, DataSourceSimulated, cfg.DataSource.Type)
	assert.Equal(t, RegistryFile, cfg.Registry.Type)
	assert.Equal(t, "trained_models", cfg.Registry.ModelDir)
	assert.Equal(t, 90, cfg.Training.LookbackDays)
	assert.Equal(t, 1, cfg.Training.Workers)
	assert.Equal(t, 5, cfg.Restock.Buffer)
	assert.Equal(t, 3660, cfg.DataSource.MaxWindowDays)
	assert.Equal(t, []string{"prophet", "arima"}, cfg.MonitorModelKinds)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LISTEN_PORT", "8080")
	t.Setenv("MODEL_SAVE_DIR", "/tmp/models")
	t.Setenv("TRAINING_WORKERS", "4")
	t.Setenv("RESTOCK_BUFFER", "8")
	t.Setenv("SCHEDULER_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("MONITOR_MODEL_KINDS", "prophet")
	t.Setenv("MAX_WINDOW_DAYS", "400")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ListenPort)
	assert.Equal(t, "/tmp/models", cfg.Registry.ModelDir)
	assert.Equal(t, 4, cfg.Training.Workers)
	assert.Equal(t, 8, cfg.Restock.Buffer)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"prophet"}, cfg.MonitorModelKinds)
	assert.Equal(t, 400, cfg.DataSource.MaxWindowDays)
}

func TestLoad_InvalidNumberKeepsDefault(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TRAINING_LOOKBACK_DAYS", "abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Training.LookbackDays)
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "forecast.yaml")
	content := `
listen_port: 9000
registry:
  type: gorm
training:
  lookback_days: 60
restock:
  buffer: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("RESTOCK_BUFFER", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.ListenPort)
	assert.Equal(t, RegistryGorm, cfg.Registry.Type)
	assert.Equal(t, 60, cfg.Training.LookbackDays)
	// 环境变量优先
	assert.Equal(t, 7, cfg.Restock.Buffer)
	// 未出现在文件中的字段保持默认值
	assert.Equal(t, "trained_models", cfg.Registry.ModelDir)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DATA_SOURCE_TYPE=gorm\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("DATA_SOURCE_TYPE") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DataSourceGorm, cfg.DataSource.Type)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"默认配置", func(c *Config) {}, false},
		{"未知数据源", func(c *Config) { c.DataSource.Type = "csv" }, true},
		{"未知仓库", func(c *Config) { c.Registry.Type = "s3" }, true},
		{"redis仓库未配置地址", func(c *Config) { c.Registry.Type = RegistryRedis }, true},
		{"redis仓库", func(c *Config) { c.Registry.Type = RegistryRedis; c.Redis.Host = "localhost" }, false},
		{"未知驱动", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"负数缓冲", func(c *Config) { c.Restock.Buffer = -1 }, true},
		{"回溯天数为0", func(c *Config) { c.Training.LookbackDays = 0 }, true},
		{"最大查询天数为0", func(c *Config) { c.DataSource.MaxWindowDays = 0 }, true},
		{"回溯天数超过最大查询天数", func(c *Config) { c.DataSource.MaxWindowDays = 60 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_ClampsWorkers(t *testing.T) {
	cfg := Default()
	cfg.Training.Workers = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Training.Workers)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := Default().Database
	assert.Contains(t, d.DSN(), "host=localhost")
	assert.Contains(t, d.DSN(), "search_path=public")

	d.URL = "postgres://u:p@db:5432/forecast"
	assert.Equal(t, "postgres://u:p@db:5432/forecast", d.DSN())
}

// chdir 切换工作目录，测试结束后恢复
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
