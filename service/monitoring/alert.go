/*
 * @module service/monitoring/alert
 * @description 监控结果推送：把每日评估结果以 JSON 推送到 Webhook
 * @architecture 钩子接口 - 监控服务只依赖 AlertHook
 * @documentReference DESIGN.md
 * @stateFlow 监控批次完成 -> 组装报告 -> HTTP 推送
 * @rules 推送失败只记录日志，不影响监控结果；不做阈值判断
 * @dependencies net/http, encoding/json
 * @refs monitor.go
 */

package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"forecast-service/service/models"
)

// AlertHook 监控结果钩子
type AlertHook interface {
	Notify(ctx context.Context, report Report) error
}

// AlertHookFunc 函数形式的钩子
type AlertHookFunc func(ctx context.Context, report Report) error

// Notify 调用函数
func (f AlertHookFunc) Notify(ctx context.Context, report Report) error {
	return f(ctx, report)
}

// Report 单次监控批次结果
type Report struct {
	RunID       string                `json:"run_id"`
	WindowStart time.Time             `json:"window_start"`
	WindowEnd   time.Time             `json:"window_end"`
	Bundles     []models.MetricBundle `json:"bundles"`
}

// WebhookAlertHook Webhook 推送
type WebhookAlertHook struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Timeout time.Duration     `json:"timeout"`
	Client  *http.Client      `json:"-"`
}

// NewWebhookAlertHook 创建 Webhook 推送，默认 POST、10 秒超时
func NewWebhookAlertHook(url string) *WebhookAlertHook {
	return &WebhookAlertHook{
		URL:     url,
		Method:  http.MethodPost,
		Timeout: 10 * time.Second,
	}
}

// Notify 发送监控报告
func (w *WebhookAlertHook) Notify(ctx context.Context, report Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("序列化监控报告失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, w.Method, w.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.Headers {
		req.Header.Set(k, v)
	}

	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: w.Timeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("发送Webhook通知失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("Webhook通知响应错误: %d", resp.StatusCode)
	}
	return nil
}
