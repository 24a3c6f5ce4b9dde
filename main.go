package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"forecast-service/api"
	_ "forecast-service/docs"
	"forecast-service/logger"
	"forecast-service/service"
	"forecast-service/service/config"

	daprd "github.com/dapr/go-sdk/service/http"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"
	httpSwagger "github.com/swaggo/http-swagger"
)

// 运行模式
const (
	modeServe   = "serve"
	modeTrain   = "train"
	modePredict = "predict"
	modeMonitor = "monitor"
)

// @title 需求预测服务 API
// @version 1.0
// @description 按区域、商品训练需求预测模型，预测次日需求、给出补货建议并持续评估模型误差
// @BasePath /
func main() {
	mode := flag.String("mode", modeServe, "运行模式: serve|train|predict|monitor")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	l := logger.InitLogger(cfg.LogLevel)
	l.Info("启动需求预测服务", "mode", *mode, "version", version.Info(), "build", version.BuildContext())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := service.Init(ctx, cfg, l); err != nil {
		l.Error("服务初始化失败", "error", err)
		os.Exit(1)
	}
	defer service.Shutdown()

	switch *mode {
	case modeServe:
		err = serve(ctx, cfg)
	case modeTrain:
		var report interface{}
		report, err = service.RunTraining(ctx)
		printJSON(report)
	case modePredict:
		var report interface{}
		report, err = service.GlobalDailyPredictionJob.Run(ctx)
		printJSON(report)
	case modeMonitor:
		printJSON(service.GlobalMonitor.RunDaily(ctx))
	default:
		l.Error("未知的运行模式", "mode", *mode)
		service.Shutdown()
		os.Exit(2)
	}
	if err != nil {
		l.Error("运行失败", "mode", *mode, "error", err)
		service.Shutdown()
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	mux := chi.NewRouter()

	// 如果有BASE_CONTEXT，则在该路径下挂载所有路由
	if cfg.BaseContext != "" {
		mux.Route(cfg.BaseContext, func(r chi.Router) {
			subMux := r.(*chi.Mux)
			api.InitRoute(subMux)
			r.Handle("/metrics", promhttp.Handler())
			r.Handle("/swagger*", httpSwagger.WrapHandler)
		})
	} else {
		api.InitRoute(mux)
		mux.Handle("/metrics", promhttp.Handler())
		mux.Handle("/swagger*", httpSwagger.WrapHandler)
	}

	if err := service.StartBackground(ctx); err != nil {
		return err
	}

	s := daprd.NewServiceWithMux(":"+strconv.Itoa(cfg.ListenPort), mux)
	go func() {
		<-ctx.Done()
		if err := s.GracefulStop(); err != nil {
			log.Printf("停止HTTP服务失败: %v", err)
		}
	}()
	if err := s.Start(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("输出结果失败: %v", err)
	}
}
