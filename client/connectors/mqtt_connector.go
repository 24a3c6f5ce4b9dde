/*
 * @module client/connectors/mqtt_connector
 * @description MQTT连接器，封装 paho 客户端，支持通配符订阅和断线重连后自动重新订阅
 * @architecture 适配器模式 - 封装第三方MQTT客户端，提供统一的接口
 * @documentReference DESIGN.md
 * @stateFlow 连接建立 -> 主题订阅 -> 消息分发 -> 连接断开
 * @rules 每个订阅持有自己的处理器，通配符主题同样可以分发；重连后恢复全部订阅
 * @dependencies github.com/eclipse/paho.mqtt.golang
 * @refs service/ingest
 */

package connectors

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"forecast-service/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig MQTT连接配置
type MQTTConfig struct {
	Broker    string        `json:"broker"`
	ClientID  string        `json:"client_id"`
	Username  string        `json:"username"`
	Password  string        `json:"password"`
	KeepAlive time.Duration `json:"keep_alive"`
	QoS       byte          `json:"qos"`
}

// MQTTMessageHandler MQTT消息处理函数
type MQTTMessageHandler func(topic string, payload []byte) error

// MQTTConnector MQTT连接器
type MQTTConnector struct {
	config      MQTTConfig
	client      mqtt.Client
	logger      *slog.Logger
	subscribers map[string]MQTTMessageHandler // 订阅主题到处理器
	mutex       sync.RWMutex

	messagesReceived atomic.Int64
	handlerErrors    atomic.Int64
}

// NewMQTTConnector 创建新的MQTT连接器
func NewMQTTConnector(config MQTTConfig, l *slog.Logger) *MQTTConnector {
	if config.KeepAlive <= 0 {
		config.KeepAlive = 30 * time.Second
	}
	connector := &MQTTConnector{
		config:      config,
		logger:      logger.OrDefault(l),
		subscribers: make(map[string]MQTTMessageHandler),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}
	opts.SetKeepAlive(config.KeepAlive)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(connector.onConnected)
	opts.SetConnectionLostHandler(connector.onConnectionLost)

	connector.client = mqtt.NewClient(opts)
	return connector
}

// Connect 建立MQTT连接
func (mc *MQTTConnector) Connect() error {
	mc.logger.Info("正在连接MQTT broker", "broker", mc.config.Broker)
	if token := mc.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT连接失败: %w", token.Error())
	}
	return nil
}

// Subscribe 订阅主题，支持 + 和 # 通配符
func (mc *MQTTConnector) Subscribe(topic string, handler MQTTMessageHandler) error {
	mc.mutex.Lock()
	mc.subscribers[topic] = handler
	mc.mutex.Unlock()

	if !mc.client.IsConnectionOpen() {
		// 连接建立后由 onConnected 统一订阅
		return nil
	}
	return mc.subscribe(topic, handler)
}

func (mc *MQTTConnector) subscribe(topic string, handler MQTTMessageHandler) error {
	token := mc.client.Subscribe(topic, mc.config.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		mc.dispatch(handler, msg)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("订阅主题失败 topic=%s: %w", topic, token.Error())
	}
	mc.logger.Info("已订阅主题", "topic", topic, "qos", mc.config.QoS)
	return nil
}

// dispatch 调用处理器
func (mc *MQTTConnector) dispatch(handler MQTTMessageHandler, msg mqtt.Message) {
	mc.messagesReceived.Add(1)
	if err := handler(msg.Topic(), msg.Payload()); err != nil {
		mc.handlerErrors.Add(1)
		mc.logger.Error("处理消息失败", "topic", msg.Topic(), "error", err)
	}
}

// Disconnect 断开MQTT连接
func (mc *MQTTConnector) Disconnect() {
	mc.mutex.RLock()
	for topic := range mc.subscribers {
		if token := mc.client.Unsubscribe(topic); token.Wait() && token.Error() != nil {
			mc.logger.Warn("取消订阅失败", "topic", topic, "error", token.Error())
		}
	}
	mc.mutex.RUnlock()

	// 等待250ms让消息发送完成
	mc.client.Disconnect(250)
	mc.logger.Info("MQTT连接器已断开连接")
}

// onConnected 连接建立后恢复所有订阅
func (mc *MQTTConnector) onConnected(client mqtt.Client) {
	mc.logger.Info("MQTT连接已建立", "broker", mc.config.Broker)

	mc.mutex.RLock()
	defer mc.mutex.RUnlock()
	for topic, handler := range mc.subscribers {
		if err := mc.subscribe(topic, handler); err != nil {
			mc.logger.Error("重新订阅主题失败", "topic", topic, "error", err)
		}
	}
}

// onConnectionLost 连接丢失处理器
func (mc *MQTTConnector) onConnectionLost(client mqtt.Client, err error) {
	mc.logger.Warn("MQTT连接丢失，等待自动重连", "error", err)
}

// IsConnected 检查连接状态
func (mc *MQTTConnector) IsConnected() bool {
	return mc.client.IsConnectionOpen()
}

// GetStatistics 获取连接器统计信息
func (mc *MQTTConnector) GetStatistics() map[string]interface{} {
	mc.mutex.RLock()
	topics := make([]string, 0, len(mc.subscribers))
	for topic := range mc.subscribers {
		topics = append(topics, topic)
	}
	mc.mutex.RUnlock()

	return map[string]interface{}{
		"broker":            mc.config.Broker,
		"connected":         mc.IsConnected(),
		"subscribed_topics": topics,
		"messages_received": mc.messagesReceived.Load(),
		"handler_errors":    mc.handlerErrors.Load(),
	}
}
