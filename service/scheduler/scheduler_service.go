/*
 * @module service/scheduler/scheduler_service
 * @description 定时任务调度器，按 cron 表达式执行训练、每日预测、监控和记录清理
 * @architecture 基于 robfig/cron 的调度器模式，可选 Redis 分布式锁
 * @documentReference DESIGN.md
 * @stateFlow 注册任务 -> Start -> cron 触发 -> 获取锁 -> 执行 -> 记录结果 -> Stop
 * @rules cron 表达式带秒字段；多实例部署时同一任务同一时刻只在一个实例执行；任务 panic 不影响调度器
 * @dependencies github.com/robfig/cron/v3, service/distributed_lock
 * @refs daily_prediction.go, service/init.go
 */

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"forecast-service/logger"
	"forecast-service/service/distributed_lock"
	"forecast-service/service/metrics"

	"github.com/robfig/cron/v3"
)

// 任务名称
const (
	JobTrain   = "train"
	JobPredict = "predict"
	JobMonitor = "monitor"
	JobCleanup = "cleanup"
)

// 执行结果
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// ErrJobNotFound 任务未注册
var ErrJobNotFound = errors.New("任务未注册")

// DefaultLockTTL 默认锁过期时间
const DefaultLockTTL = 30 * time.Minute

// JobFunc 任务函数
type JobFunc func(ctx context.Context) error

// Job 定时任务
type Job struct {
	Name string
	// Spec 带秒字段的 cron 表达式
	Spec    string
	Run     JobFunc
	LockTTL time.Duration
}

// JobStatus 任务状态
type JobStatus struct {
	Name       string     `json:"name"`
	Spec       string     `json:"spec"`
	Next       *time.Time `json:"next,omitempty"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	LastResult string     `json:"last_result,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

type jobEntry struct {
	job     Job
	entryID cron.EntryID
	lastRun *time.Time
	result  string
	errMsg  string
}

// Options 调度器选项
type Options struct {
	// Lock 为空时不加锁，适用于单实例部署
	Lock   distributed_lock.DistributedLock
	Logger *slog.Logger
}

// SchedulerService 调度器服务
type SchedulerService struct {
	cron     *cron.Cron
	executor *distributed_lock.LockExecutor
	jobs     map[string]*jobEntry
	mutex    sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger
}

// NewSchedulerService 创建调度器服务
func NewSchedulerService(opts Options) *SchedulerService {
	ctx, cancel := context.WithCancel(context.Background())
	l := logger.OrDefault(opts.Logger)

	s := &SchedulerService{
		cron:   cron.New(cron.WithSeconds()),
		jobs:   make(map[string]*jobEntry),
		ctx:    ctx,
		cancel: cancel,
		logger: l,
	}
	if opts.Lock != nil {
		s.executor = distributed_lock.NewLockExecutor(opts.Lock, l)
	}
	return s
}

// AddJob 注册任务
func (s *SchedulerService) AddJob(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("任务名称和执行函数不能为空")
	}
	if job.LockTTL <= 0 {
		job.LockTTL = DefaultLockTTL
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("任务 %s 已注册", job.Name)
	}

	entry := &jobEntry{job: job}
	id, err := s.cron.AddFunc(job.Spec, func() {
		_ = s.execute(s.ctx, entry)
	})
	if err != nil {
		return fmt.Errorf("添加Cron任务失败 [%s]: %w", job.Name, err)
	}
	entry.entryID = id
	s.jobs[job.Name] = entry

	s.logger.Info("添加Cron任务", "job", job.Name, "spec", job.Spec)
	return nil
}

// Start 启动调度器
func (s *SchedulerService) Start() {
	s.cron.Start()
	s.logger.Info("定时任务调度器启动完成", "jobs", len(s.jobs))
}

// Stop 停止调度器并等待正在执行的任务结束
func (s *SchedulerService) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("定时任务调度器已停止")
}

// RunNow 立即执行指定任务
func (s *SchedulerService) RunNow(ctx context.Context, name string) error {
	s.mutex.Lock()
	entry, ok := s.jobs[name]
	s.mutex.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, entry)
}

// Jobs 返回所有任务状态，按名称排序
func (s *SchedulerService) Jobs() []JobStatus {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, entry := range s.jobs {
		status := JobStatus{
			Name:       entry.job.Name,
			Spec:       entry.job.Spec,
			LastRun:    entry.lastRun,
			LastResult: entry.result,
			LastError:  entry.errMsg,
		}
		if next := s.cron.Entry(entry.entryID).Next; !next.IsZero() {
			status.Next = &next
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// execute 执行任务，配置了锁时只有获得锁的实例执行
func (s *SchedulerService) execute(ctx context.Context, entry *jobEntry) (err error) {
	job := entry.job
	start := time.Now()
	result := ResultSuccess

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("任务 %s 执行异常: %v", job.Name, r)
		}
		if err != nil {
			result = ResultFailed
		}

		s.mutex.Lock()
		entry.lastRun = &start
		entry.result = result
		entry.errMsg = ""
		if err != nil {
			entry.errMsg = err.Error()
		}
		s.mutex.Unlock()

		metrics.JobRuns.WithLabelValues(job.Name, result).Inc()
		if err != nil {
			s.logger.Error("定时任务执行失败", "job", job.Name, "error", err,
				"duration_ms", time.Since(start).Milliseconds())
		} else {
			s.logger.Info("定时任务执行结束", "job", job.Name, "result", result,
				"duration_ms", time.Since(start).Milliseconds())
		}
	}()

	s.logger.Info("执行定时任务", "job", job.Name)
	if s.executor == nil {
		return job.Run(ctx)
	}

	ran, err := s.executor.ExecuteWithLockAndRefresh(ctx, job.Name, job.LockTTL, job.LockTTL/3, func() error {
		return job.Run(ctx)
	})
	if err == nil && !ran {
		result = ResultSkipped
	}
	return err
}
