/*
 * @module api/controllers/evaluation_controller
 * @description 模型评估控制器，对指定区间的真实销量评估模型误差
 * @architecture MVC架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow 请求解析 -> 拉取区间销量 -> 预处理 -> 评估引擎 -> 状态映射HTTP码
 * @rules 参数校验失败或区间超过最大天数 400；模型或数据不存在 404；预测或模型文件失败 500
 * @dependencies github.com/go-chi/render, service/datasource, service/preprocess
 * @refs service/evaluation
 */

package controllers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"forecast-service/logger"
	"forecast-service/service/datasource"
	"forecast-service/service/models"
	"forecast-service/service/preprocess"

	"github.com/go-chi/render"
)

// Evaluator 评估引擎
type Evaluator interface {
	Evaluate(ctx context.Context, locationKey, itemKey, modelKind string, series []models.Series) models.EvaluationMetrics
}

// EvaluationController 模型评估控制器
type EvaluationController struct {
	source       datasource.SalesSource
	evaluator    Evaluator
	preprocessor *preprocess.Preprocessor
	logger       *slog.Logger
	// maxWindowDays 单次评估允许的最大天数
	maxWindowDays int
}

// NewEvaluationController 创建模型评估控制器
func NewEvaluationController(src datasource.SalesSource, evaluator Evaluator, l *slog.Logger) *EvaluationController {
	l = logger.OrDefault(l)
	return &EvaluationController{
		source:        src,
		evaluator:     evaluator,
		preprocessor:  preprocess.NewPreprocessor(l),
		logger:        l,
		maxWindowDays: datasource.DefaultMaxWindowDays,
	}
}

// SetMaxWindowDays 设置单次评估允许的最大天数
func (c *EvaluationController) SetMaxWindowDays(days int) {
	c.maxWindowDays = days
}

// EvaluateRequest 评估请求，日期格式 YYYY-MM-DD，区间含两端
type EvaluateRequest struct {
	LocationKey string `json:"location_key" example:"110037"`
	ItemKey     string `json:"item_key" example:"Milk"`
	ModelKind   string `json:"model_kind" example:"prophet"`
	StartDate   string `json:"start_date" example:"2024-05-01"`
	EndDate     string `json:"end_date" example:"2024-05-31"`
}

// Evaluate 评估模型
// @Summary 评估模型
// @Description 拉取区间内的真实销量并计算模型的 MAE/RMSE/MAPE
// @Tags 模型评估
// @Accept json
// @Produce json
// @Param request body EvaluateRequest true "评估请求"
// @Success 200 {object} APIResponse{data=models.EvaluationMetrics}
// @Failure 400 {object} APIResponse
// @Failure 404 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /evaluate [post]
func (c *EvaluationController) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respond(w, r, http.StatusBadRequest, BadRequestResponse("请求参数格式错误", err))
		return
	}
	if req.ModelKind == "" {
		req.ModelKind = DefaultModelKind
	}
	from, to, err := parseDateRange(req.StartDate, req.EndDate, c.maxWindowDays)
	if err != nil {
		respond(w, r, http.StatusBadRequest, BadRequestResponse("日期参数错误", err))
		return
	}

	records, err := c.source.FetchSales(r.Context(), from, to)
	if err != nil {
		c.logger.Error("获取评估数据失败",
			"location_key", req.LocationKey,
			"item_key", req.ItemKey,
			"error", err)
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, datasource.ErrWindowTooLarge):
			code = http.StatusBadRequest
		case errors.Is(err, datasource.ErrDataUnavailable):
			code = http.StatusServiceUnavailable
		}
		respond(w, r, code, ErrorResponse(code, "获取评估数据失败", err))
		return
	}
	dataset := c.preprocessor.Process(records)

	result := c.evaluator.Evaluate(r.Context(), req.LocationKey, req.ItemKey, req.ModelKind, dataset)
	code := evaluationHTTPStatus(result.Status)
	if code == http.StatusOK {
		respond(w, r, code, SuccessResponse(result.Message, result))
		return
	}
	respond(w, r, code, &APIResponse{Status: code, Msg: result.Message, Data: result})
}

func evaluationHTTPStatus(status models.EvaluationStatus) int {
	switch status {
	case models.EvaluationStatusComplete:
		return http.StatusOK
	case models.EvaluationStatusInvalidInput,
		models.EvaluationStatusUnsupportedModelKind,
		models.EvaluationStatusMissingFields:
		return http.StatusBadRequest
	case models.EvaluationStatusModelNotFound,
		models.EvaluationStatusNoEvaluationData,
		models.EvaluationStatusNoSeriesData:
		return http.StatusNotFound
	case models.EvaluationStatusNoAlignedData:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// parseDateRange 解析闭区间日期，两者都必填，天数不超过 maxDays
func parseDateRange(start, end string, maxDays int) (time.Time, time.Time, error) {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date 和 end_date 不能为空")
	}
	from, err := time.Parse(time.DateOnly, strings.TrimSpace(start))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date 格式错误: %w", err)
	}
	to, err := time.Parse(time.DateOnly, strings.TrimSpace(end))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date 格式错误: %w", err)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date %s 早于 start_date %s", end, start)
	}
	if err := datasource.CheckWindow(from, to, maxDays); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}
