/*
 * @module service/ingest/ingestor
 * @description 销量消息接入：消费 Kafka 主题、订阅 MQTT 主题，把销量事件写入 sales_records
 * @architecture 事件驱动 - 连接器负责收发，接入服务负责解码和落库
 * @documentReference DESIGN.md
 * @stateFlow 消息到达 -> 解码 -> 追加写入 -> 指标计数
 * @rules 单条消息解码失败只丢弃该消息；MQTT 主题 sales/{location}/events 中的区域作为缺省区域
 * @dependencies client/connectors, service/datasource
 * @refs decoder.go, main.go
 */

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"forecast-service/client/connectors"
	"forecast-service/logger"
	"forecast-service/service/datasource"
	"forecast-service/service/metrics"

	"github.com/segmentio/kafka-go"
)

// 接入来源
const (
	SourceKafka = "kafka"
	SourceMQTT  = "mqtt"
	SourceAPI   = "api"
)

// Ingestor 销量接入服务
type Ingestor struct {
	writer datasource.SalesWriter
	clock  func() time.Time
	logger *slog.Logger
}

// NewIngestor 创建接入服务
func NewIngestor(writer datasource.SalesWriter, l *slog.Logger) *Ingestor {
	return &Ingestor{
		writer: writer,
		clock:  time.Now,
		logger: logger.OrDefault(l),
	}
}

// Handle 解码并写入一条消息，返回写入的记录数
func (i *Ingestor) Handle(ctx context.Context, source string, payload []byte, defaults EventDefaults) (int, error) {
	if defaults.Date.IsZero() {
		defaults.Date = i.clock()
	}
	records, err := DecodeSalesEvents(payload, defaults)
	if err != nil {
		metrics.SalesIngested.WithLabelValues(source, "invalid").Inc()
		return 0, err
	}
	for idx := range records {
		records[idx].Source = source
	}
	if err := i.writer.AppendSales(ctx, records); err != nil {
		metrics.SalesIngested.WithLabelValues(source, "failed").Add(float64(len(records)))
		return 0, fmt.Errorf("写入销量记录失败: %w", err)
	}
	metrics.SalesIngested.WithLabelValues(source, "stored").Add(float64(len(records)))
	i.logger.Debug("销量事件已写入", "source", source, "count", len(records))
	return len(records), nil
}

// KafkaHandler Kafka 消息处理函数
func (i *Ingestor) KafkaHandler() connectors.KafkaMessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		defaults := EventDefaults{}
		if !msg.Time.IsZero() {
			defaults.Date = msg.Time
		}
		_, err := i.Handle(ctx, SourceKafka, msg.Value, defaults)
		return err
	}
}

// MQTTHandler MQTT 消息处理函数
func (i *Ingestor) MQTTHandler(ctx context.Context) connectors.MQTTMessageHandler {
	return func(topic string, payload []byte) error {
		_, err := i.Handle(ctx, SourceMQTT, payload, EventDefaults{LocationKey: LocationFromTopic(topic)})
		return err
	}
}

// RunKafka 阻塞消费 Kafka 销量主题直到上下文取消
func (i *Ingestor) RunKafka(ctx context.Context, kc *connectors.KafkaConnector, topic string) error {
	i.logger.Info("启动Kafka销量接入", "topic", topic)
	return kc.Consume(ctx, topic, i.KafkaHandler())
}

// StartMQTT 连接并订阅 MQTT 销量主题
func (i *Ingestor) StartMQTT(ctx context.Context, mc *connectors.MQTTConnector, topic string) error {
	if err := mc.Subscribe(topic, i.MQTTHandler(ctx)); err != nil {
		return err
	}
	if err := mc.Connect(); err != nil {
		return err
	}
	i.logger.Info("启动MQTT销量接入", "topic", topic)
	return nil
}

// LocationFromTopic 从 sales/{location}/events 形式的主题中取区域
func LocationFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) == 3 && parts[0] == "sales" && parts[2] == "events" {
		return parts[1]
	}
	return ""
}
