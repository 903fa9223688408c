package domain

import (
	"database/sql"
	"time"
)

// Delegation 问题责任转交（对应 delegations 表）
// 同一问题可存在多条历史转交；只有最近一条 is_active 的转交具有权威性
type Delegation struct {
	DelegationID         string `db:"delegation_id"`          // UUID, PRIMARY KEY
	CampaignAssignmentID string `db:"campaign_assignment_id"` // NOT NULL, FK campaign_assignments
	QuestionID           string `db:"question_id"`            // NOT NULL, FK questions

	FromUserID string         `db:"from_user_id"` // NOT NULL（原责任人）
	ToUserID   string         `db:"to_user_id"`   // NOT NULL（受托人）
	Note       sql.NullString `db:"note"`         // nullable

	IsActive    bool         `db:"is_active"`    // NOT NULL DEFAULT TRUE
	CreatedAt   time.Time    `db:"created_at"`
	CompletedAt sql.NullTime `db:"completed_at"` // 关闭时打点
}
