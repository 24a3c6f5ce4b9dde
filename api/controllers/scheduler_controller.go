/*
 * @module api/controllers/scheduler_controller
 * @description 定时任务控制器，查看任务状态并手动触发任务
 * @architecture MVC架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow 请求 -> SchedulerService.Jobs / RunNow -> 响应
 * @rules 未注册的任务返回 404
 * @dependencies github.com/go-chi/chi/v5, service/scheduler
 * @refs service/scheduler/scheduler_service.go
 */

package controllers

import (
	"context"
	"errors"
	"net/http"

	"forecast-service/service/scheduler"

	"github.com/go-chi/chi/v5"
)

// JobRunner 定时任务调度器
type JobRunner interface {
	Jobs() []scheduler.JobStatus
	RunNow(ctx context.Context, name string) error
}

// SchedulerController 定时任务控制器
type SchedulerController struct {
	runner JobRunner
}

// NewSchedulerController 创建定时任务控制器
func NewSchedulerController(runner JobRunner) *SchedulerController {
	return &SchedulerController{runner: runner}
}

// ListJobs 列出定时任务
// @Summary 列出定时任务
// @Description 返回已注册的定时任务及最近一次执行结果
// @Tags 定时任务
// @Produce json
// @Success 200 {object} APIResponse{data=[]scheduler.JobStatus}
// @Router /scheduler/jobs [get]
func (c *SchedulerController) ListJobs(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, SuccessResponse("获取定时任务成功", c.runner.Jobs()))
}

// RunJob 立即执行定时任务
// @Summary 立即执行定时任务
// @Description 同步执行指定任务，配置了分布式锁时同样需要获取锁
// @Tags 定时任务
// @Produce json
// @Param name path string true "任务名称" Enums(train,predict,monitor,cleanup)
// @Success 200 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /scheduler/jobs/{name}/run [post]
func (c *SchedulerController) RunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := c.runner.RunNow(r.Context(), name); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			respond(w, r, http.StatusNotFound, ErrorResponse(http.StatusNotFound, "任务不存在", err))
			return
		}
		respond(w, r, http.StatusInternalServerError, InternalErrorResponse("任务执行失败", err))
		return
	}
	respond(w, r, http.StatusOK, SuccessResponse("任务执行完成", nil))
}
