/*
 * @module api/controllers/health_controller
 * @description 健康检查控制器，提供欢迎信息和服务存活/就绪检查
 * @architecture MVC架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow HTTP请求处理流程
 * @rules 提供简单的健康检查接口，用于容器健康检查和负载均衡
 * @dependencies net/http, github.com/prometheus/common/version
 * @refs api/routes.go
 */

package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/prometheus/common/version"
)

const serviceName = "forecast-service"

// HealthController 健康检查控制器
type HealthController struct{}

// NewHealthController 创建健康检查控制器实例
func NewHealthController() *HealthController {
	return &HealthController{}
}

// HealthResponse 健康检查响应结构
type HealthResponse struct {
	Status    string    `json:"status" example:"ok"`
	Timestamp time.Time `json:"timestamp" example:"2024-01-01T00:00:00Z"`
	Version   string    `json:"version" example:"1.0.0"`
	Service   string    `json:"service" example:"forecast-service"`
}

// WelcomeResponse 欢迎信息
type WelcomeResponse struct {
	Message string `json:"message" example:"Welcome to the Demand Forecasting API!"`
}

// Welcome 欢迎信息
// @Summary 欢迎信息
// @Description 返回服务欢迎信息
// @Tags 系统
// @Produce json
// @Success 200 {object} WelcomeResponse
// @Router / [get]
func (c *HealthController) Welcome(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, WelcomeResponse{Message: "Welcome to the Demand Forecasting API!"})
}

// Health 健康检查
// @Summary 健康检查
// @Description 检查服务健康状态
// @Tags 系统
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (c *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, newHealthResponse("ok"))
}

// Ready 就绪检查
// @Summary 就绪检查
// @Description 检查服务是否就绪
// @Tags 系统
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /ready [get]
func (c *HealthController) Ready(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, newHealthResponse("ready"))
}

func newHealthResponse(status string) HealthResponse {
	v := version.Version
	if v == "" {
		v = "dev"
	}
	return HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Version:   v,
		Service:   serviceName,
	}
}
