/*
 * @module service/config/config
 * @description 服务配置加载，合并 .env 文件、YAML 配置文件和环境变量
 * @architecture 分层架构 - 基础设施层
 * @documentReference DESIGN.md
 * @stateFlow 默认值 -> .env -> CONFIG_FILE(YAML) -> 环境变量覆盖 -> 校验
 * @rules 环境变量优先级最高；未知枚举值在校验阶段报错
 * @dependencies github.com/joho/godotenv, gopkg.in/yaml.v3, github.com/spf13/cast
 * @refs main.go, service/init.go
 */

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// 数据源类型
const (
	DataSourceSimulated  = "simulated"
	DataSourceGorm       = "gorm"
	DataSourcePostgreSQL = "postgresql"
)

// 模型仓库类型
const (
	RegistryFile  = "file"
	RegistryGorm  = "gorm"
	RegistryRedis = "redis"
)

// 数据库驱动
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config 服务配置
type Config struct {
	ListenPort  int    `yaml:"listen_port"`
	BaseContext string `yaml:"base_context"`
	LogLevel    string `yaml:"log_level"`

	Database   DatabaseConfig   `yaml:"database"`
	DataSource DataSourceConfig `yaml:"data_source"`
	Registry   RegistryConfig   `yaml:"registry"`
	Redis      RedisConfig      `yaml:"redis"`
	Training   TrainingConfig   `yaml:"training"`
	Restock    RestockConfig    `yaml:"restock"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	MQTT       MQTTConfig       `yaml:"mqtt"`

	MonitorModelKinds []string `yaml:"monitor_model_kinds"`
	// AlertWebhook 监控结果推送地址，为空时不推送
	AlertWebhook string `yaml:"alert_webhook"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	URL        string `yaml:"url"`
	Host       string `yaml:"host"`
	Port       string `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	SSLMode    string `yaml:"ssl_mode"`
	Schema     string `yaml:"schema"`
	SQLitePath string `yaml:"sqlite_path"`
}

// DSN 返回 postgres 连接串，DATABASE_URL 优先
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s TimeZone=UTC",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.Schema)
}

// DataSourceConfig 历史销量数据源配置
type DataSourceConfig struct {
	Type string `yaml:"type"`
	// SalesTable postgresql 数据源读取的表
	SalesTable string `yaml:"sales_table"`
	// MaxWindowDays 单次查询允许的最大天数
	MaxWindowDays int `yaml:"max_window_days"`
}

// RegistryConfig 模型仓库配置
type RegistryConfig struct {
	Type      string `yaml:"type"`
	ModelDir  string `yaml:"model_dir"`
	KeyPrefix string `yaml:"key_prefix"`
}

// RedisConfig Redis 配置，Host 为空表示未启用
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled 是否配置了 Redis
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// Addr Redis 地址
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// TrainingConfig 训练配置
type TrainingConfig struct {
	Workers      int    `yaml:"workers"`
	LookbackDays int    `yaml:"lookback_days"`
	ModelKind    string `yaml:"model_kind"`
}

// RestockConfig 补货策略配置
type RestockConfig struct {
	Buffer       int    `yaml:"buffer"`
	PolicyScript string `yaml:"policy_script"`
}

// SchedulerConfig 定时任务配置，cron 表达式含秒字段
type SchedulerConfig struct {
	Enabled             bool   `yaml:"enabled"`
	TrainCron           string `yaml:"train_cron"`
	PredictCron         string `yaml:"predict_cron"`
	MonitorCron         string `yaml:"monitor_cron"`
	CleanupCron         string `yaml:"cleanup_cron"`
	RecordRetentionDays int    `yaml:"record_retention_days"`
}

// KafkaConfig Kafka 配置，Brokers 为空表示未启用
type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"`
	SalesTopic      string   `yaml:"sales_topic"`
	PredictionTopic string   `yaml:"prediction_topic"`
	GroupID         string   `yaml:"group_id"`
}

// MQTTConfig MQTT 配置，Broker 为空表示未启用
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	SalesTopic string `yaml:"sales_topic"`
	ClientID   string `yaml:"client_id"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		ListenPort: 80,
		LogLevel:   "info",
		Database: DatabaseConfig{
			Driver:     DriverSQLite,
			Host:       "localhost",
			Port:       "5432",
			User:       "postgres",
			Name:       "postgres",
			SSLMode:    "disable",
			Schema:     "public",
			SQLitePath: "forecast.db",
		},
		DataSource: DataSourceConfig{
			Type:          DataSourceSimulated,
			SalesTable:    "sales_data",
			MaxWindowDays: 3660,
		},
		Registry: RegistryConfig{
			Type:      RegistryFile,
			ModelDir:  "trained_models",
			KeyPrefix: "forecast:model:",
		},
		Redis: RedisConfig{
			Port: "6379",
		},
		Training: TrainingConfig{
			Workers:      1,
			LookbackDays: 90,
			ModelKind:    "prophet",
		},
		Restock: RestockConfig{
			Buffer: 5,
		},
		Scheduler: SchedulerConfig{
			TrainCron:           "0 0 1 * * *",
			PredictCron:         "0 0 2 * * *",
			MonitorCron:         "0 30 2 * * *",
			CleanupCron:         "0 0 3 * * *",
			RecordRetentionDays: 30,
		},
		Kafka: KafkaConfig{
			SalesTopic:      "sales-events",
			PredictionTopic: "restock-recommendations",
			GroupID:         "forecast-service",
		},
		MQTT: MQTTConfig{
			SalesTopic: "sales/+/events",
			ClientID:   "forecast-service",
		},
		MonitorModelKinds: []string{"prophet", "arima"},
	}
}

// Load 加载配置
func Load() (*Config, error) {
	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile 读取 YAML 配置文件并覆盖默认值
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	return nil
}

// applyEnv 环境变量覆盖
func (c *Config) applyEnv() {
	c.ListenPort = envInt("LISTEN_PORT", c.ListenPort)
	c.BaseContext = getEnvWithDefault("BASE_CONTEXT", c.BaseContext)
	c.LogLevel = getEnvWithDefault("LOG_LEVEL", c.LogLevel)

	c.Database.Driver = getEnvWithDefault("DB_DRIVER", c.Database.Driver)
	c.Database.URL = getEnvWithDefault("DATABASE_URL", c.Database.URL)
	c.Database.Host = getEnvWithDefault("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvWithDefault("DB_PORT", c.Database.Port)
	c.Database.User = getEnvWithDefault("DB_USER", c.Database.User)
	c.Database.Password = getEnvWithDefault("DB_PASSWORD", c.Database.Password)
	c.Database.Name = getEnvWithDefault("DB_NAME", c.Database.Name)
	c.Database.SSLMode = getEnvWithDefault("DB_SSLMODE", c.Database.SSLMode)
	c.Database.Schema = getEnvWithDefault("DB_SCHEMA", c.Database.Schema)
	c.Database.SQLitePath = getEnvWithDefault("SQLITE_PATH", c.Database.SQLitePath)

	c.DataSource.Type = getEnvWithDefault("DATA_SOURCE_TYPE", c.DataSource.Type)
	c.DataSource.SalesTable = getEnvWithDefault("SALES_TABLE", c.DataSource.SalesTable)
	c.DataSource.MaxWindowDays = envInt("MAX_WINDOW_DAYS", c.DataSource.MaxWindowDays)

	c.Registry.Type = getEnvWithDefault("REGISTRY_TYPE", c.Registry.Type)
	c.Registry.ModelDir = getEnvWithDefault("MODEL_SAVE_DIR", c.Registry.ModelDir)
	c.Registry.KeyPrefix = getEnvWithDefault("REGISTRY_KEY_PREFIX", c.Registry.KeyPrefix)

	c.Redis.Host = getEnvWithDefault("REDIS_HOST", c.Redis.Host)
	c.Redis.Port = getEnvWithDefault("REDIS_PORT", c.Redis.Port)
	c.Redis.Password = getEnvWithDefault("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = envInt("REDIS_DB", c.Redis.DB)

	c.Training.Workers = envInt("TRAINING_WORKERS", c.Training.Workers)
	c.Training.LookbackDays = envInt("TRAINING_LOOKBACK_DAYS", c.Training.LookbackDays)
	c.Training.ModelKind = getEnvWithDefault("TRAINING_MODEL_KIND", c.Training.ModelKind)

	c.Restock.Buffer = envInt("RESTOCK_BUFFER", c.Restock.Buffer)
	c.Restock.PolicyScript = getEnvWithDefault("RESTOCK_POLICY_SCRIPT", c.Restock.PolicyScript)

	c.Scheduler.Enabled = envBool("SCHEDULER_ENABLED", c.Scheduler.Enabled)
	c.Scheduler.TrainCron = getEnvWithDefault("TRAIN_CRON", c.Scheduler.TrainCron)
	c.Scheduler.PredictCron = getEnvWithDefault("PREDICT_CRON", c.Scheduler.PredictCron)
	c.Scheduler.MonitorCron = getEnvWithDefault("MONITOR_CRON", c.Scheduler.MonitorCron)
	c.Scheduler.CleanupCron = getEnvWithDefault("CLEANUP_CRON", c.Scheduler.CleanupCron)
	c.Scheduler.RecordRetentionDays = envInt("RECORD_RETENTION_DAYS", c.Scheduler.RecordRetentionDays)

	c.Kafka.Brokers = envList("KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.SalesTopic = getEnvWithDefault("KAFKA_SALES_TOPIC", c.Kafka.SalesTopic)
	c.Kafka.PredictionTopic = getEnvWithDefault("KAFKA_PREDICTION_TOPIC", c.Kafka.PredictionTopic)
	c.Kafka.GroupID = getEnvWithDefault("KAFKA_GROUP_ID", c.Kafka.GroupID)

	c.MQTT.Broker = getEnvWithDefault("MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.SalesTopic = getEnvWithDefault("MQTT_SALES_TOPIC", c.MQTT.SalesTopic)
	c.MQTT.ClientID = getEnvWithDefault("MQTT_CLIENT_ID", c.MQTT.ClientID)

	c.MonitorModelKinds = envList("MONITOR_MODEL_KINDS", c.MonitorModelKinds)
	c.AlertWebhook = getEnvWithDefault("MONITOR_ALERT_WEBHOOK", c.AlertWebhook)
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.DataSource.Type {
	case DataSourceSimulated, DataSourceGorm, DataSourcePostgreSQL:
	default:
		return fmt.Errorf("不支持的数据源类型: %s", c.DataSource.Type)
	}
	switch c.Registry.Type {
	case RegistryFile, RegistryGorm:
	case RegistryRedis:
		if !c.Redis.Enabled() {
			return fmt.Errorf("模型仓库类型为 redis 但未配置 REDIS_HOST")
		}
	default:
		return fmt.Errorf("不支持的模型仓库类型: %s", c.Registry.Type)
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	if c.Training.Workers < 1 {
		c.Training.Workers = 1
	}
	if c.Training.LookbackDays < 1 {
		return fmt.Errorf("训练回溯天数必须大于0: %d", c.Training.LookbackDays)
	}
	if c.DataSource.MaxWindowDays < 1 {
		return fmt.Errorf("最大查询天数必须大于0: %d", c.DataSource.MaxWindowDays)
	}
	if c.Training.LookbackDays > c.DataSource.MaxWindowDays {
		return fmt.Errorf("训练回溯天数 %d 超过最大查询天数 %d", c.Training.LookbackDays, c.DataSource.MaxWindowDays)
	}
	if c.Restock.Buffer < 0 {
		return fmt.Errorf("补货缓冲量不能为负数: %d", c.Restock.Buffer)
	}
	return nil
}

// getEnvWithDefault 获取环境变量，如果不存在则返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := cast.ToIntE(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func envBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := cast.ToBoolE(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func envList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
