/*
 * @module api/controllers/sales_controller
 * @description 销量接入控制器，通过HTTP写入销量事件
 * @architecture MVC架构 - 控制器层
 * @documentReference DESIGN.md
 * @stateFlow 读取请求体 -> Ingestor.Handle(api) -> 写入条数
 * @rules 消息体格式与 Kafka/MQTT 接入一致；无法解析返回 400
 * @dependencies service/ingest
 * @refs service/ingest/decoder.go
 */

package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"forecast-service/service/ingest"
)

// maxSalesPayload 单次请求体上限
const maxSalesPayload = 4 << 20

// SalesIngestor 销量接入服务
type SalesIngestor interface {
	Handle(ctx context.Context, source string, payload []byte, defaults ingest.EventDefaults) (int, error)
}

// SalesController 销量接入控制器
type SalesController struct {
	ingestor SalesIngestor
}

// NewSalesController 创建销量接入控制器
func NewSalesController(ingestor SalesIngestor) *SalesController {
	return &SalesController{ingestor: ingestor}
}

// IngestResult 接入结果
type IngestResult struct {
	Stored int `json:"stored" example:"3"`
}

// IngestSales 写入销量事件
// @Summary 写入销量事件
// @Description 接受单个事件对象、事件数组或 {"records": [...]}，字段支持 date/ds、location_key/pincode、item_key/item、quantity/sales
// @Tags 销量接入
// @Accept json
// @Produce json
// @Param request body object true "销量事件"
// @Success 200 {object} APIResponse{data=IngestResult}
// @Failure 400 {object} APIResponse
// @Failure 500 {object} APIResponse
// @Router /sales [post]
func (c *SalesController) IngestSales(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxSalesPayload))
	if err != nil {
		respond(w, r, http.StatusBadRequest, BadRequestResponse("读取请求体失败", err))
		return
	}

	stored, err := c.ingestor.Handle(r.Context(), ingest.SourceAPI, payload, ingest.EventDefaults{})
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidEvent) {
			respond(w, r, http.StatusBadRequest, BadRequestResponse("销量事件格式错误", err))
			return
		}
		respond(w, r, http.StatusInternalServerError, InternalErrorResponse("写入销量失败", err))
		return
	}
	respond(w, r, http.StatusOK, SuccessResponse("写入销量成功", IngestResult{Stored: stored}))
}
