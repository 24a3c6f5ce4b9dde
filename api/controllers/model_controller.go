/*
 * @module api/controllers/model_controller
 * @description 模型清单控制器，列出模型仓库中已训练的模型
 * @architecture MVC架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow 请求 -> 仓库 List -> 响应
 * @rules 仓库不存在时返回空清单而不是错误
 * @dependencies service/registry
 * @refs service/registry
 */

package controllers

import (
	"net/http"

	"forecast-service/service/registry"
)

// ModelController 模型清单控制器
type ModelController struct {
	registry registry.Registry
}

// NewModelController 创建模型清单控制器
func NewModelController(reg registry.Registry) *ModelController {
	return &ModelController{registry: reg}
}

// ListModels 列出已训练模型
// @Summary 列出已训练模型
// @Description 列出模型仓库中全部可识别的模型
// @Tags 模型管理
// @Produce json
// @Success 200 {object} APIResponse{data=registry.ListResult}
// @Failure 500 {object} APIResponse
// @Router /models [get]
func (c *ModelController) ListModels(w http.ResponseWriter, r *http.Request) {
	result, err := c.registry.List(r.Context())
	if err != nil {
		respond(w, r, http.StatusInternalServerError, InternalErrorResponse("获取模型清单失败", err))
		return
	}
	respond(w, r, http.StatusOK, SuccessResponse(result.Status, result))
}
