/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference DESIGN.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs service/init.go
 */

package api

import (
	"forecast-service/api/controllers"
	"forecast-service/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// InitRoute 初始化所有API路由，调用前需完成 service.Init
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController()
	r.Get("/", healthController.Welcome)
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// 需求预测
	forecastController := controllers.NewForecastController(service.GlobalPredictionService)
	r.Post("/predict_demand", forecastController.PredictDemand)

	// 模型清单
	modelController := controllers.NewModelController(service.GlobalRegistry)
	r.Get("/models", modelController.ListModels)

	// 模型评估
	evaluationController := controllers.NewEvaluationController(service.GlobalSource, service.GlobalEvaluationEngine, nil)
	evaluationController.SetMaxWindowDays(service.GlobalConfig.DataSource.MaxWindowDays)
	r.Post("/evaluate", evaluationController.Evaluate)

	// 模型训练
	r.Route("/training", func(r chi.Router) {
		trainingController := controllers.NewTrainingController(service.GlobalTrainingOrchestrator,
			service.GlobalConfig.Training.ModelKind, service.GlobalConfig.Training.LookbackDays)
		trainingController.SetMaxWindowDays(service.GlobalConfig.DataSource.MaxWindowDays)
		r.Post("/run", trainingController.RunTraining)
	})

	// 模型监控
	r.Route("/monitoring", func(r chi.Router) {
		monitoringController := controllers.NewMonitoringController(service.GlobalMonitor)
		r.Post("/run", monitoringController.RunMonitoring)
	})

	// 销量接入
	salesController := controllers.NewSalesController(service.GlobalIngestor)
	r.Post("/sales", salesController.IngestSales)

	// 定时任务
	r.Route("/scheduler", func(r chi.Router) {
		schedulerController := controllers.NewSchedulerController(service.GlobalSchedulerService)
		r.Get("/jobs", schedulerController.ListJobs)
		r.Post("/jobs/{name}/run", schedulerController.RunJob)
	})
}
