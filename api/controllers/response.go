/*
 * @module api/controllers/response
 * @description 统一响应结构与输出辅助函数
 * @architecture MVC架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow 控制器结果 -> APIResponse -> render.Status + render.JSON
 * @rules 成功 status=0；失败 status 与 HTTP 状态码一致，msg 附带错误信息
 * @dependencies github.com/go-chi/render
 * @refs health_controller.go, forecast_controller.go
 */

package controllers

import (
	"net/http"

	"github.com/go-chi/render"
)

// APIResponse 统一API响应结构
type APIResponse struct {
	Status int         `json:"status" example:"0"`
	Msg    string      `json:"msg" example:"操作成功"`
	Data   interface{} `json:"data,omitempty"`
}

// SuccessResponse 成功响应
func SuccessResponse(msg string, data interface{}) *APIResponse {
	return &APIResponse{Status: 0, Msg: msg, Data: data}
}

// ErrorResponse 失败响应，status 与 HTTP 状态码一致
func ErrorResponse(status int, msg string, err error) *APIResponse {
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	return &APIResponse{Status: status, Msg: msg}
}

// BadRequestResponse 参数错误
func BadRequestResponse(msg string, err error) *APIResponse {
	return ErrorResponse(http.StatusBadRequest, msg, err)
}

// InternalErrorResponse 服务内部错误
func InternalErrorResponse(msg string, err error) *APIResponse {
	return ErrorResponse(http.StatusInternalServerError, msg, err)
}

// respond 写入HTTP状态码和JSON响应
func respond(w http.ResponseWriter, r *http.Request, code int, resp *APIResponse) {
	render.Status(r, code)
	render.JSON(w, r, resp)
}
