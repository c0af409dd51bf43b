package models

import (
	"database/sql/driver"
	"encoding/json"
)

// JSON 通用 JSON 对象类型
type JSON map[string]interface{}

// Value 实现 driver.Valuer 接口
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan 实现 sql.Scanner 接口
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, j)
}

// AttemptSummary 安全记录中的失败尝试摘要
type AttemptSummary struct {
	TokenFragment string `json:"token_fragment"` // 截断后的 token 片段
	Reason        string `json:"reason"`         // 失败原因
	UserAgent     string `json:"user_agent"`     // 客户端 UA
	At            int64  `json:"at"`             // Unix 秒时间戳
}

// AttemptList 失败尝试摘要列表（JSON 存储）
type AttemptList []AttemptSummary

// Value 实现 driver.Valuer 接口
func (l AttemptList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal(AttemptList{})
	}
	return json.Marshal(l)
}

// Scan 实现 sql.Scanner 接口
func (l *AttemptList) Scan(value interface{}) error {
	if value == nil {
		*l = AttemptList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(bytes, l)
}
