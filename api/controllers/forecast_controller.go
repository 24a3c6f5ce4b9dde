/*
 * @module api/controllers/forecast_controller
 * @description 需求预测控制器，预测指定区域、商品的次日需求和补货量
 * @architecture MVC架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow 请求解析 -> 字段别名合并 -> 预测服务 -> 状态映射HTTP码 -> 响应
 * @rules InvalidInput 400, ModelNotFound 404, ModelCorrupted/PredictionFailed 500
 * @dependencies github.com/go-chi/render
 * @refs service/prediction
 */

package controllers

import (
	"context"
	"net/http"

	"forecast-service/service/models"

	"github.com/go-chi/render"
)

// DefaultModelKind 请求未指定模型类型时使用
const DefaultModelKind = "prophet"

// Predictor 预测服务
type Predictor interface {
	Predict(ctx context.Context, locationKey, itemKey, modelKind string) models.PredictionResult
}

// ForecastController 需求预测控制器
type ForecastController struct {
	predictor Predictor
}

// NewForecastController 创建需求预测控制器
func NewForecastController(predictor Predictor) *ForecastController {
	return &ForecastController{predictor: predictor}
}

// PredictDemandRequest 预测请求，兼容 pincode/item/model_type 字段名
type PredictDemandRequest struct {
	LocationKey string `json:"location_key" example:"110037"`
	ItemKey     string `json:"item_key" example:"Milk"`
	ModelKind   string `json:"model_kind" example:"prophet"`
	Pincode     string `json:"pincode,omitempty"`
	Item        string `json:"item,omitempty"`
	ModelType   string `json:"model_type,omitempty"`
}

func (req PredictDemandRequest) resolve() (location, item, kind string) {
	location, item, kind = req.LocationKey, req.ItemKey, req.ModelKind
	if location == "" {
		location = req.Pincode
	}
	if item == "" {
		item = req.Item
	}
	if kind == "" {
		kind = req.ModelType
	}
	if kind == "" {
		kind = DefaultModelKind
	}
	return location, item, kind
}

// PredictDemand 预测次日需求
// @Summary 预测次日需求
// @Description 加载已训练模型，预测明天的需求量并给出补货建议
// @Tags 需求预测
// @Accept json
// @Produce json
// @Param request body PredictDemandRequest true "预测请求"
// @Success 200 {object} APIResponse{data=models.PredictionResult}
// @Failure 400 {object} APIResponse{data=models.PredictionResult}
// @Failure 404 {object} APIResponse{data=models.PredictionResult}
// @Failure 500 {object} APIResponse{data=models.PredictionResult}
// @Router /predict_demand [post]
func (c *ForecastController) PredictDemand(w http.ResponseWriter, r *http.Request) {
	var req PredictDemandRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		respond(w, r, http.StatusBadRequest, BadRequestResponse("请求参数格式错误", err))
		return
	}

	location, item, kind := req.resolve()
	result := c.predictor.Predict(r.Context(), location, item, kind)

	code := predictionHTTPStatus(result.Status)
	if code == http.StatusOK {
		respond(w, r, code, SuccessResponse("Demand prediction successful.", result))
		return
	}
	respond(w, r, code, &APIResponse{Status: code, Msg: result.Message, Data: result})
}

func predictionHTTPStatus(status models.PredictionStatus) int {
	switch status {
	case models.PredictionStatusSuccess:
		return http.StatusOK
	case models.PredictionStatusInvalidInput:
		return http.StatusBadRequest
	case models.PredictionStatusModelNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
