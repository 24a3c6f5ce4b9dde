/*
 * @module service/registry/artifact
 * @description 模型制品信封：模型序列化数据 + blake2b 校验和
 * @architecture 仓库内部编解码
 * @documentReference DESIGN.md
 * @stateFlow Model -> forecast.Marshal -> 计算校验和 -> 信封；信封 -> 校验 -> forecast.Unmarshal
 * @rules 校验和不一致或解码失败均视为模型损坏
 * @dependencies golang.org/x/crypto/blake2b
 * @refs registry.go
 */

package registry

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"forecast-service/service/forecast"

	"golang.org/x/crypto/blake2b"
)

type artifact struct {
	Checksum string          `json:"checksum"`
	Model    json.RawMessage `json:"model"`
}

// checksum blake2b-256 十六进制摘要
func checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// encodeArtifact 序列化模型并附加校验和
func encodeArtifact(m forecast.Model) ([]byte, string, error) {
	payload, err := forecast.Marshal(m)
	if err != nil {
		return nil, "", err
	}
	sum := checksum(payload)
	data, err := json.Marshal(artifact{Checksum: sum, Model: payload})
	if err != nil {
		return nil, "", fmt.Errorf("序列化模型制品失败: %w", err)
	}
	return data, sum, nil
}

// decodeArtifact 校验并还原模型，expected 为请求的模型键
func decodeArtifact(data []byte, expected ModelKey) (forecast.Model, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelCorrupted, expected, err)
	}
	if a.Checksum == "" || checksum(a.Model) != a.Checksum {
		return nil, fmt.Errorf("%w: %s: 校验和不一致", ErrModelCorrupted, expected)
	}
	m, err := forecast.Unmarshal(a.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelCorrupted, expected, err)
	}
	if KeyOf(m) != expected {
		return nil, fmt.Errorf("%w: %s: 模型键不匹配 %s", ErrModelCorrupted, expected, KeyOf(m))
	}
	return m, nil
}
