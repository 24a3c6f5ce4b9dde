/*
 * @module api/controllers/training_controller
 * @description 训练控制器，手动触发指定区间和模型类型的批量训练
 * @architecture MVC架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow 请求解析 -> 默认区间(截至昨天) -> 训练编排器 -> TrainingReport
 * @rules 未指定日期时使用回溯窗口；未知模型类型或区间超过最大天数返回 400
 * @dependencies github.com/go-chi/render, service/training
 * @refs service/training/orchestrator.go
 */

package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"forecast-service/service/datasource"
	"forecast-service/service/forecast"
	"forecast-service/service/models"
	"forecast-service/service/training"

	"github.com/go-chi/render"
)

// Trainer 训练编排器
type Trainer interface {
	TrainWindow(ctx context.Context, from, to time.Time, kind forecast.Kind) (training.TrainingReport, error)
}

// TrainingController 训练控制器
type TrainingController struct {
	trainer      Trainer
	defaultKind  string
	lookbackDays int
	clock        func() time.Time
	// maxWindowDays 显式区间允许的最大天数
	maxWindowDays int
}

// NewTrainingController 创建训练控制器
func NewTrainingController(trainer Trainer, defaultKind string, lookbackDays int) *TrainingController {
	if defaultKind == "" {
		defaultKind = DefaultModelKind
	}
	if lookbackDays < 1 {
		lookbackDays = 90
	}
	return &TrainingController{
		trainer:       trainer,
		defaultKind:   defaultKind,
		lookbackDays:  lookbackDays,
		clock:         time.Now,
		maxWindowDays: datasource.DefaultMaxWindowDays,
	}
}

// SetMaxWindowDays 设置显式训练区间允许的最大天数
func (c *TrainingController) SetMaxWindowDays(days int) {
	c.maxWindowDays = days
}

// TrainingRunRequest 训练请求，字段均可省略
type TrainingRunRequest struct {
	StartDate string `json:"start_date" example:"2024-01-01"`
	EndDate   string `json:"end_date" example:"2024-03-31"`
	ModelKind string `json:"model_kind" example:"prophet"`
}

// RunTraining 触发批量训练
// @Summary 触发批量训练
// @Description 拉取区间销量并为每个序列训练、保存一个模型
// @Tags 模型训练
// @Accept json
// @Produce json
// @Param request body TrainingRunRequest false "训练请求"
// @Success 200 {object} APIResponse{data=training.TrainingReport}
// @Failure 400 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /training/run [post]
func (c *TrainingController) RunTraining(w http.ResponseWriter, r *http.Request) {
	var req TrainingRunRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		respond(w, r, http.StatusBadRequest, BadRequestResponse("请求参数格式错误", err))
		return
	}

	if req.ModelKind == "" {
		req.ModelKind = c.defaultKind
	}
	kind, err := forecast.ParseKind(req.ModelKind)
	if err != nil {
		respond(w, r, http.StatusBadRequest, BadRequestResponse("模型类型错误", err))
		return
	}

	var from, to time.Time
	if req.StartDate == "" && req.EndDate == "" {
		to = models.TruncateDay(c.clock().UTC()).AddDate(0, 0, -1)
		from = to.AddDate(0, 0, -(c.lookbackDays - 1))
	} else if from, to, err = parseDateRange(req.StartDate, req.EndDate, c.maxWindowDays); err != nil {
		respond(w, r, http.StatusBadRequest, BadRequestResponse("日期参数错误", err))
		return
	}

	report, err := c.trainer.TrainWindow(r.Context(), from, to, kind)
	if errors.Is(err, datasource.ErrWindowTooLarge) {
		respond(w, r, http.StatusBadRequest, BadRequestResponse("训练区间过大", err))
		return
	}
	if err != nil {
		respond(w, r, http.StatusInternalServerError, InternalErrorResponse("训练失败", err))
		return
	}
	respond(w, r, http.StatusOK, SuccessResponse("训练完成", report))
}
