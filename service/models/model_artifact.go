/*
 * @module service/models/model_artifact
 * @description 模型制品存储模型，用于数据库版模型仓库
 * @architecture 数据模型层
 * @documentReference DESIGN.md
 * @stateFlow 训练完成 -> 序列化 -> 写入 model_artifacts -> 加载预测
 * @rules 文件名唯一，重新训练整体覆盖
 * @dependencies gorm.io/gorm
 * @refs service/registry/gorm_registry.go
 */

package models

import "time"

// ModelArtifact 持久化的模型制品
type ModelArtifact struct {
	Filename    string    `gorm:"type:varchar(255);primaryKey" json:"filename"`
	Kind        string    `gorm:"type:varchar(32);not null;index:idx_artifact_key" json:"model_kind"`
	LocationKey string    `gorm:"type:varchar(64);not null;index:idx_artifact_key" json:"location_key"`
	ItemKey     string    `gorm:"type:varchar(128);not null;index:idx_artifact_key" json:"item_key"`
	Payload     []byte    `gorm:"not null" json:"-"`
	Checksum    string    `gorm:"type:varchar(64);not null" json:"checksum"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (ModelArtifact) TableName() string {
	return "model_artifacts"
}
