/*
 * @module api/controllers/monitoring_controller
 * @description 监控控制器，手动触发一次滚动窗口模型评估
 * @architecture MVC架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow 请求 -> Monitor.RunDaily -> 指标集合
 * @rules 数据源错误时返回空集合而不是失败
 * @dependencies service/monitoring
 * @refs service/monitoring/monitor.go
 */

package controllers

import (
	"context"
	"fmt"
	"net/http"

	"forecast-service/service/models"
)

// DailyMonitor 监控任务
type DailyMonitor interface {
	RunDaily(ctx context.Context) []models.MetricBundle
}

// MonitoringController 监控控制器
type MonitoringController struct {
	monitor DailyMonitor
}

// NewMonitoringController 创建监控控制器实例
func NewMonitoringController(monitor DailyMonitor) *MonitoringController {
	return &MonitoringController{monitor: monitor}
}

// RunMonitoring 触发一次监控评估
// @Summary 触发监控评估
// @Description 对最近30天(截至昨天)的真实销量评估所有序列和模型类型
// @Tags 模型监控
// @Produce json
// @Success 200 {object} APIResponse{data=[]models.MetricBundle}
// @Router /monitoring/run [post]
func (c *MonitoringController) RunMonitoring(w http.ResponseWriter, r *http.Request) {
	bundles := c.monitor.RunDaily(r.Context())
	respond(w, r, http.StatusOK, SuccessResponse(fmt.Sprintf("共评估 %d 个模型", len(bundles)), bundles))
}
