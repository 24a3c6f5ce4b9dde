/*
 * @module service/scheduler/publisher
 * @description 补货建议推送到 Kafka 主题，消息键为 location/item
 * @architecture 适配器 - 把预测记录转换为 Kafka 消息
 * @documentReference DESIGN.md
 * @stateFlow 预测记录 -> 补货建议消息 -> Kafka
 * @rules 同一批次一次写入
 * @dependencies client/connectors
 * @refs daily_prediction.go
 */

package scheduler

import (
	"context"
	"time"

	"forecast-service/client/connectors"
	"forecast-service/service/models"
)

// BatchPublisher 批量消息发送，*connectors.KafkaConnector 满足该接口
type BatchPublisher interface {
	PublishBatch(ctx context.Context, topic string, values []connectors.KeyedValue) error
}

// Recommendation 补货建议消息
type Recommendation struct {
	RunID           string    `json:"run_id"`
	LocationKey     string    `json:"location_key"`
	ItemKey         string    `json:"item_key"`
	ModelKind       string    `json:"model_kind"`
	PredictedFor    string    `json:"predicted_for"`
	PredictedDemand int       `json:"predicted_demand"`
	RestockQuantity int       `json:"restock_quantity"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// KafkaRecommendationPublisher Kafka 补货建议推送
type KafkaRecommendationPublisher struct {
	publisher BatchPublisher
	topic     string
}

// NewKafkaRecommendationPublisher 创建推送器
func NewKafkaRecommendationPublisher(publisher BatchPublisher, topic string) *KafkaRecommendationPublisher {
	return &KafkaRecommendationPublisher{publisher: publisher, topic: topic}
}

// PublishRecommendations 推送补货建议
func (p *KafkaRecommendationPublisher) PublishRecommendations(ctx context.Context, records []models.PredictionRecord) error {
	now := time.Now().UTC()
	values := make([]connectors.KeyedValue, 0, len(records))
	for _, r := range records {
		values = append(values, connectors.KeyedValue{
			Key: r.LocationKey + "/" + r.ItemKey,
			Value: Recommendation{
				RunID:           r.RunID,
				LocationKey:     r.LocationKey,
				ItemKey:         r.ItemKey,
				ModelKind:       r.ModelKind,
				PredictedFor:    r.PredictedFor.Format(time.DateOnly),
				PredictedDemand: r.PredictedDemand,
				RestockQuantity: r.RestockQuantity,
				GeneratedAt:     now,
			},
		})
	}
	return p.publisher.PublishBatch(ctx, p.topic, values)
}
