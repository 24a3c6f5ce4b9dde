/*
 * @module service/init
 * @description 服务初始化模块，负责数据库连接、迁移以及预测管道各组件的装配
 * @architecture 分层架构 - 服务层
 * @documentReference DESIGN.md
 * @stateFlow 配置 -> 数据库 -> 数据源/模型仓库 -> 训练/预测/评估/监控 -> 定时任务/消息接入
 * @rules 所有依赖装配完成后才对外提供API；可选组件(Redis/Kafka/MQTT)未配置时跳过
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres, gorm.io/driver/sqlite
 * @refs main.go, api/routes.go
 */

package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"forecast-service/client/connectors"
	"forecast-service/logger"
	"forecast-service/service/cleanup"
	"forecast-service/service/config"
	"forecast-service/service/datasource"
	"forecast-service/service/distributed_lock"
	"forecast-service/service/evaluation"
	"forecast-service/service/forecast"
	"forecast-service/service/ingest"
	"forecast-service/service/models"
	"forecast-service/service/monitoring"
	"forecast-service/service/prediction"
	"forecast-service/service/registry"
	"forecast-service/service/scheduler"
	"forecast-service/service/training"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	DB                         *gorm.DB
	GlobalConfig               *config.Config
	GlobalSource               datasource.SalesSource
	GlobalRegistry             registry.Registry
	GlobalTrainingOrchestrator *training.Orchestrator
	GlobalPredictionService    *prediction.Service
	GlobalEvaluationEngine     *evaluation.Engine
	GlobalMonitor              *monitoring.Monitor
	GlobalIngestor             *ingest.Ingestor
	GlobalDailyPredictionJob   *scheduler.DailyPredictionJob
	GlobalCleanupService       *cleanup.RecordCleanupService
	GlobalSchedulerService     *scheduler.SchedulerService

	redisConnector *connectors.RedisConnector
	kafkaConnector *connectors.KafkaConnector
	mqttConnector  *connectors.MQTTConnector
	backgroundStop context.CancelFunc
	serviceLogger  *slog.Logger
)

// Init 按配置装配全部服务
func Init(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	serviceLogger = logger.OrDefault(l)
	GlobalConfig = cfg

	if err := initDatabase(cfg.Database); err != nil {
		return err
	}
	if err := runMigrations(); err != nil {
		return err
	}
	if err := initConnectors(ctx, cfg); err != nil {
		return err
	}
	if err := initServices(ctx, cfg); err != nil {
		return err
	}
	serviceLogger.Info("服务初始化完成",
		"data_source", GlobalSource.Type(),
		"registry", GlobalRegistry.Type(),
		"model_kind", cfg.Training.ModelKind)
	return nil
}

// initDatabase 初始化数据库连接
func initDatabase(cfg config.DatabaseConfig) error {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN())
	default:
		dialector = sqlite.Open(cfg.SQLitePath)
	}

	var err error
	DB, err = gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("数据库连接失败: %w", err)
	}
	if cfg.Driver != config.DriverPostgres {
		// sqlite 单写者
		if sqlDB, err := DB.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	serviceLogger.Info("数据库连接成功", "driver", cfg.Driver)
	return nil
}

// runMigrations 运行数据库迁移
func runMigrations() error {
	serviceLogger.Info("开始运行数据库迁移...")
	if err := DB.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	serviceLogger.Info("数据库表结构迁移完成")
	return nil
}

// initConnectors 初始化已配置的外部连接
func initConnectors(ctx context.Context, cfg *config.Config) error {
	if cfg.Redis.Enabled() {
		redisConnector = connectors.NewRedisConnector(connectors.RedisConfig{
			Address:  cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			Database: cfg.Redis.DB,
		}, serviceLogger)
		if err := redisConnector.Connect(ctx); err != nil {
			return err
		}
	}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaConnector = connectors.NewKafkaConnector(connectors.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
		}, serviceLogger)
	}
	if cfg.MQTT.Broker != "" {
		mqttConnector = connectors.NewMQTTConnector(connectors.MQTTConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			QoS:      1,
		}, serviceLogger)
	}
	return nil
}

// initServices 初始化服务
func initServices(ctx context.Context, cfg *config.Config) error {
	var err error
	GlobalSource, err = datasource.NewSource(ctx, datasource.Deps{Config: cfg, DB: DB})
	if err != nil {
		return fmt.Errorf("初始化数据源失败: %w", err)
	}

	var redisKV registry.RedisKV
	if redisConnector != nil {
		redisKV = redisConnector.Client()
	}
	GlobalRegistry, err = registry.New(cfg.Registry, DB, redisKV, serviceLogger)
	if err != nil {
		return fmt.Errorf("初始化模型仓库失败: %w", err)
	}

	GlobalTrainingOrchestrator = training.NewOrchestrator(GlobalRegistry, GlobalSource, training.Options{
		Workers:     cfg.Training.Workers,
		ModelConfig: forecast.DefaultConfig(),
		DB:          DB,
		Logger:      serviceLogger,
	})

	policy, err := restockPolicy(cfg.Restock)
	if err != nil {
		return err
	}
	GlobalPredictionService = prediction.NewService(GlobalRegistry, prediction.Options{
		Policy: policy,
		Logger: serviceLogger,
	})

	GlobalEvaluationEngine = evaluation.NewEngine(GlobalRegistry, serviceLogger)

	kinds, err := parseKinds(cfg.MonitorModelKinds)
	if err != nil {
		return err
	}
	var alert monitoring.AlertHook
	if cfg.AlertWebhook != "" {
		alert = monitoring.NewWebhookAlertHook(cfg.AlertWebhook)
	}
	GlobalMonitor = monitoring.NewMonitor(GlobalSource, GlobalEvaluationEngine, monitoring.Options{
		Kinds:  kinds,
		DB:     DB,
		Alert:  alert,
		Logger: serviceLogger,
	})

	var publisher scheduler.RecommendationPublisher
	if kafkaConnector != nil {
		publisher = scheduler.NewKafkaRecommendationPublisher(kafkaConnector, cfg.Kafka.PredictionTopic)
	}
	kind, err := forecast.ParseKind(cfg.Training.ModelKind)
	if err != nil {
		return fmt.Errorf("训练模型类型配置错误: %w", err)
	}
	GlobalDailyPredictionJob = scheduler.NewDailyPredictionJob(GlobalSource, GlobalPredictionService, scheduler.DailyPredictionOptions{
		Kind:      kind,
		DB:        DB,
		Publisher: publisher,
		Logger:    serviceLogger,
	})

	GlobalCleanupService = cleanup.NewRecordCleanupService(DB, cfg.Scheduler.RecordRetentionDays, serviceLogger)
	GlobalIngestor = ingest.NewIngestor(datasource.NewGormSource(DB), serviceLogger)

	return initScheduler(cfg)
}

// restockPolicy 配置了脚本时使用脚本策略，否则固定缓冲量
func restockPolicy(cfg config.RestockConfig) (prediction.RestockPolicy, error) {
	fixed := prediction.FixedBuffer{Buffer: cfg.Buffer}
	if cfg.PolicyScript == "" {
		return fixed, nil
	}
	policy, err := prediction.LoadScriptPolicy(cfg.PolicyScript, fixed, serviceLogger)
	if err != nil {
		return nil, fmt.Errorf("加载补货策略脚本失败: %w", err)
	}
	return policy, nil
}

func parseKinds(names []string) ([]forecast.Kind, error) {
	kinds := make([]forecast.Kind, 0, len(names))
	for _, name := range names {
		kind, err := forecast.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("监控模型类型配置错误: %w", err)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// initScheduler 注册定时任务
func initScheduler(cfg *config.Config) error {
	var lock distributed_lock.DistributedLock
	if redisConnector != nil {
		lock = distributed_lock.NewRedisLock(redisConnector.Client(), distributed_lock.DefaultKeyPrefix, serviceLogger)
	}
	GlobalSchedulerService = scheduler.NewSchedulerService(scheduler.Options{
		Lock:   lock,
		Logger: serviceLogger,
	})

	jobs := []scheduler.Job{
		{Name: scheduler.JobTrain, Spec: cfg.Scheduler.TrainCron, Run: func(ctx context.Context) error {
			_, err := RunTraining(ctx)
			return err
		}},
		{Name: scheduler.JobPredict, Spec: cfg.Scheduler.PredictCron, Run: func(ctx context.Context) error {
			_, err := GlobalDailyPredictionJob.Run(ctx)
			return err
		}},
		{Name: scheduler.JobMonitor, Spec: cfg.Scheduler.MonitorCron, Run: func(ctx context.Context) error {
			GlobalMonitor.RunDaily(ctx)
			return nil
		}},
		{Name: scheduler.JobCleanup, Spec: cfg.Scheduler.CleanupCron, Run: func(ctx context.Context) error {
			_, err := GlobalCleanupService.CleanupExpiredRecords(ctx)
			return err
		}},
	}
	for _, job := range jobs {
		if err := GlobalSchedulerService.AddJob(job); err != nil {
			return err
		}
	}
	return nil
}

// RunTraining 使用配置的模型类型训练最近 TRAINING_LOOKBACK_DAYS 天(截至昨天)的数据
func RunTraining(ctx context.Context) (training.TrainingReport, error) {
	kind, err := forecast.ParseKind(GlobalConfig.Training.ModelKind)
	if err != nil {
		return training.TrainingReport{}, err
	}
	to := models.TruncateDay(time.Now().UTC()).AddDate(0, 0, -1)
	from := to.AddDate(0, 0, -(GlobalConfig.Training.LookbackDays - 1))
	return GlobalTrainingOrchestrator.TrainWindow(ctx, from, to, kind)
}

// StartBackground 启动定时任务和消息接入，ctx 取消或调用 Shutdown 时停止
func StartBackground(ctx context.Context) error {
	ctx, backgroundStop = context.WithCancel(ctx)

	if GlobalConfig.Scheduler.Enabled {
		GlobalSchedulerService.Start()
	}
	if kafkaConnector != nil && GlobalConfig.Kafka.SalesTopic != "" {
		go func() {
			if err := GlobalIngestor.RunKafka(ctx, kafkaConnector, GlobalConfig.Kafka.SalesTopic); err != nil {
				serviceLogger.Error("Kafka销量接入退出", "error", err)
			}
		}()
	}
	if mqttConnector != nil && GlobalConfig.MQTT.SalesTopic != "" {
		if err := GlobalIngestor.StartMQTT(ctx, mqttConnector, GlobalConfig.MQTT.SalesTopic); err != nil {
			return fmt.Errorf("启动MQTT销量接入失败: %w", err)
		}
	}
	return nil
}

// Shutdown 停止后台任务并释放连接
func Shutdown() {
	if backgroundStop != nil {
		backgroundStop()
	}
	if GlobalSchedulerService != nil {
		GlobalSchedulerService.Stop()
	}
	if mqttConnector != nil {
		mqttConnector.Disconnect()
	}
	if kafkaConnector != nil {
		if err := kafkaConnector.Close(); err != nil {
			serviceLogger.Warn("关闭Kafka连接失败", "error", err)
		}
	}
	if redisConnector != nil {
		if err := redisConnector.Close(); err != nil {
			serviceLogger.Warn("关闭Redis连接失败", "error", err)
		}
	}
	if closer, ok := GlobalSource.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			serviceLogger.Warn("关闭数据源失败", "error", err)
		}
	}
	if DB != nil {
		if sqlDB, err := DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	serviceLogger.Info("服务已停止")
}
