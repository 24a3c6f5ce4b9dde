/*
 * @module client/connectors/kafka_connector
 * @description Kafka连接器，封装 kafka-go 的生产者和消费者，按主题管理读写端
 * @architecture 适配器模式 - 封装第三方Kafka客户端，提供统一的接口
 * @documentReference DESIGN.md
 * @stateFlow 创建连接器 -> 按需创建主题读写端 -> 消息发送/消费 -> 关闭
 * @rules 消费按消息提交偏移量；处理失败的消息记录日志后继续；上下文取消时退出消费循环
 * @dependencies github.com/segmentio/kafka-go, encoding/json
 * @refs service/ingest, service/scheduler
 */

package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"forecast-service/logger"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig Kafka连接配置
type KafkaConfig struct {
	Brokers      []string      `json:"brokers"`
	GroupID      string        `json:"group_id"`
	WriteTimeout time.Duration `json:"write_timeout"`
	MinBytes     int           `json:"min_bytes"`
	MaxBytes     int           `json:"max_bytes"`
	MaxWait      time.Duration `json:"max_wait"`
}

// MessageWriter 生产者接口，*kafka.Writer 满足该接口
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageReader 消费者接口，*kafka.Reader 满足该接口
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaMessageHandler 消息处理函数
type KafkaMessageHandler func(ctx context.Context, msg kafka.Message) error

// KafkaConnector Kafka连接器
type KafkaConnector struct {
	config  KafkaConfig
	writers map[string]MessageWriter // 按topic分组的生产者
	readers map[string]MessageReader // 按topic分组的消费者
	mutex   sync.Mutex
	logger  *slog.Logger

	// 读写端构造函数，测试时替换
	newWriter func(topic string) MessageWriter
	newReader func(topic string) MessageReader
}

// NewKafkaConnector 创建新的Kafka连接器
func NewKafkaConnector(config KafkaConfig, l *slog.Logger) *KafkaConnector {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 10 * time.Second
	}
	if config.MinBytes <= 0 {
		config.MinBytes = 1
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = 10e6
	}
	if config.MaxWait <= 0 {
		config.MaxWait = time.Second
	}

	kc := &KafkaConnector{
		config:  config,
		writers: make(map[string]MessageWriter),
		readers: make(map[string]MessageReader),
		logger:  logger.OrDefault(l),
	}
	kc.newWriter = func(topic string) MessageWriter {
		return &kafka.Writer{
			Addr:         kafka.TCP(config.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		}
	}
	kc.newReader = func(topic string) MessageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:  config.Brokers,
			Topic:    topic,
			GroupID:  config.GroupID,
			MinBytes: config.MinBytes,
			MaxBytes: config.MaxBytes,
			MaxWait:  config.MaxWait,
		})
	}
	return kc
}

func (kc *KafkaConnector) writer(topic string) MessageWriter {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()
	w, ok := kc.writers[topic]
	if !ok {
		w = kc.newWriter(topic)
		kc.writers[topic] = w
	}
	return w
}

func (kc *KafkaConnector) reader(topic string) MessageReader {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()
	r, ok := kc.readers[topic]
	if !ok {
		r = kc.newReader(topic)
		kc.readers[topic] = r
	}
	return r
}

// Publish 发送单条消息，value 为 []byte/string 时原样发送，否则序列化为 JSON
func (kc *KafkaConnector) Publish(ctx context.Context, topic, key string, value interface{}) error {
	return kc.PublishBatch(ctx, topic, []KeyedValue{{Key: key, Value: value}})
}

// KeyedValue 带键的消息值
type KeyedValue struct {
	Key   string
	Value interface{}
}

// PublishBatch 批量发送消息到同一主题
func (kc *KafkaConnector) PublishBatch(ctx context.Context, topic string, values []KeyedValue) error {
	if len(values) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(values))
	now := time.Now()
	for _, v := range values {
		payload, err := serializeValue(v.Value)
		if err != nil {
			return fmt.Errorf("序列化消息值失败 key=%s: %w", v.Key, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(v.Key), Value: payload, Time: now})
	}

	ctx, cancel := context.WithTimeout(ctx, kc.config.WriteTimeout)
	defer cancel()
	if err := kc.writer(topic).WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("发送消息失败 topic=%s: %w", topic, err)
	}

	kc.logger.Debug("消息已发送", "topic", topic, "count", len(msgs))
	return nil
}

// Consume 消费主题消息直到上下文取消
func (kc *KafkaConnector) Consume(ctx context.Context, topic string, handler KafkaMessageHandler) error {
	r := kc.reader(topic)
	kc.logger.Info("开始消费topic", "topic", topic, "group_id", kc.config.GroupID)

	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				kc.logger.Info("停止消费topic", "topic", topic)
				return nil
			}
			kc.logger.Error("读取消息失败", "topic", topic, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		if err := handler(ctx, msg); err != nil {
			kc.logger.Error("处理消息失败", "topic", topic, "offset", msg.Offset, "error", err)
		}
		if err := r.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			kc.logger.Error("提交偏移量失败", "topic", topic, "offset", msg.Offset, "error", err)
		}
	}
}

// Close 关闭所有读写端
func (kc *KafkaConnector) Close() error {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()

	var errs []error
	for topic, w := range kc.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("关闭生产者失败 topic=%s: %w", topic, err))
		}
	}
	for topic, r := range kc.readers {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("关闭消费者失败 topic=%s: %w", topic, err))
		}
	}
	kc.writers = make(map[string]MessageWriter)
	kc.readers = make(map[string]MessageReader)
	return errors.Join(errs...)
}

// GetStatistics 获取连接器统计信息
func (kc *KafkaConnector) GetStatistics() map[string]interface{} {
	kc.mutex.Lock()
	defer kc.mutex.Unlock()
	return map[string]interface{}{
		"writer_count": len(kc.writers),
		"reader_count": len(kc.readers),
		"brokers":      kc.config.Brokers,
		"group_id":     kc.config.GroupID,
	}
}

// serializeValue 序列化消息值
func serializeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(v)
	}
}
