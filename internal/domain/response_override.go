package domain

import (
	"encoding/json"
	"time"
)

// ResponseOverride 主责任人改写记录（对应 response_overrides 表）
// 只追加的更正日志：同时保留原值和改写值，创建后永不修改
type ResponseOverride struct {
	OverrideID      string `db:"override_id"`       // UUID, PRIMARY KEY
	ResponseID      string `db:"response_id"`       // NOT NULL, FK responses
	LeadResponderID string `db:"lead_responder_id"` // NOT NULL（执行改写的主责任人）

	OriginalValue json.RawMessage `db:"original_value"` // 改写前取值快照
	OverrideValue json.RawMessage `db:"override_value"` // 改写后取值快照
	Reason        string          `db:"reason"`         // NOT NULL

	CreatedAt time.Time `db:"created_at"`
}
