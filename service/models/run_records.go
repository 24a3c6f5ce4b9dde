/*
 * @module service/models/run_records
 * @description 批处理运行记录模型：训练批次、每日预测、监控评估
 * @architecture 数据模型层
 * @documentReference DESIGN.md
 * @stateFlow 调度触发 -> 批处理执行 -> 记录落库 -> 过期清理
 * @rules 记录只追加，按保留天数清理
 * @dependencies gorm.io/gorm
 * @refs service/training, service/monitoring, service/scheduler, service/cleanup
 */

package models

import "time"

// TrainingRun 训练批次记录
type TrainingRun struct {
	ID          string     `gorm:"type:varchar(50);primaryKey" json:"id"`
	ModelKind   string     `gorm:"type:varchar(32);not null" json:"model_kind"`
	WindowStart *time.Time `json:"window_start,omitempty"`
	WindowEnd   *time.Time `json:"window_end,omitempty"`
	Total       int        `json:"total"`
	Trained     int        `json:"trained"`
	Skipped     int        `json:"skipped"`
	Failed      int        `json:"failed"`
	DurationMs  int64      `json:"duration_ms"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  time.Time  `json:"finished_at"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (TrainingRun) TableName() string {
	return "training_runs"
}

// PredictionRecord 每日预测结果记录，供补货引擎读取
type PredictionRecord struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID           string    `gorm:"type:varchar(50);not null;index" json:"run_id"`
	LocationKey     string    `gorm:"type:varchar(64);not null" json:"location_key"`
	ItemKey         string    `gorm:"type:varchar(128);not null" json:"item_key"`
	ModelKind       string    `gorm:"type:varchar(32);not null" json:"model_kind"`
	PredictedFor    time.Time `gorm:"type:date" json:"predicted_for"`
	PredictedDemand int       `json:"predicted_demand"`
	RestockQuantity int       `json:"restock_quantity"`
	Status          string    `gorm:"type:varchar(32)" json:"status"`
	Message         string    `gorm:"type:text" json:"message,omitempty"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (PredictionRecord) TableName() string {
	return "prediction_records"
}

// EvaluationRecord 监控评估记录
// MAPE 为 +Inf 时 MAPEInfinite 置为 true，MAPE 字段存 0
type EvaluationRecord struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID        string    `gorm:"type:varchar(50);not null;index" json:"run_id"`
	LocationKey  string    `gorm:"type:varchar(64);not null" json:"location_key"`
	ItemKey      string    `gorm:"type:varchar(128);not null" json:"item_key"`
	ModelKind    string    `gorm:"type:varchar(32);not null" json:"model_kind"`
	WindowStart  time.Time `gorm:"type:date" json:"window_start"`
	WindowEnd    time.Time `gorm:"type:date" json:"window_end"`
	MAE          float64   `json:"mae"`
	RMSE         float64   `json:"rmse"`
	MAPE         float64   `json:"mape"`
	MAPEInfinite bool      `json:"mape_infinite"`
	Points       int       `json:"points"`
	Status       string    `gorm:"type:varchar(32)" json:"status"`
	Message      string    `gorm:"type:text" json:"message,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (EvaluationRecord) TableName() string {
	return "evaluation_records"
}

// AllModels 需要自动迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&SalesRecord{},
		&ModelArtifact{},
		&TrainingRun{},
		&PredictionRecord{},
		&EvaluationRecord{},
	}
}
