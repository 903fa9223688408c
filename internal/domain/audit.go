package domain

import (
	"database/sql"
	"encoding/json"
	"time"
)

// 审计动作
const (
	AuditActionValueSaved         = "value_saved"
	AuditActionStatusChanged      = "status_changed"
	AuditActionOverrideApplied    = "override_applied"
	AuditActionPrefillCopied      = "prefill_copied"
	AuditActionPrefillAccepted    = "prefill_accepted"
	AuditActionReviewerAssigned   = "reviewer_assigned"
	AuditActionCommentRecorded    = "comment_recorded"
	AuditActionCommentResolved    = "comment_resolved"
	AuditActionDelegationOpened   = "delegation_opened"
	AuditActionDelegationClosed   = "delegation_closed"
	AuditActionFileAttached       = "file_attached"
	AuditActionAssignmentAssigned = "question_assigned"
)

// ReviewAuditLog 审计日志行（对应 review_audit_logs 表）
// 只追加、不可变；行结构是对外合规消费的兼容性契约，不要轻易加减字段
type ReviewAuditLog struct {
	AuditID              string         `db:"audit_id"`               // UUID, PRIMARY KEY
	ActorID              string         `db:"actor_id"`               // NOT NULL
	CampaignAssignmentID string         `db:"campaign_assignment_id"` // NOT NULL
	QuestionID           sql.NullString `db:"question_id"`
	ResponseID           sql.NullString `db:"response_id"`
	ReviewAssignmentID   sql.NullString `db:"review_assignment_id"`

	Action     string         `db:"action"` // NOT NULL
	FromStatus sql.NullString `db:"from_status"`
	ToStatus   sql.NullString `db:"to_status"`
	Details    sql.NullString `db:"details"` // 自由文本/JSON

	CreatedAt time.Time `db:"created_at"`
}

// MarshalJSON 对外广播用的固定字段序列化（契约字段名保持稳定）
func (l *ReviewAuditLog) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"audit_id":               l.AuditID,
		"actor_id":               l.ActorID,
		"campaign_assignment_id": l.CampaignAssignmentID,
		"action":                 l.Action,
		"timestamp":              l.CreatedAt.UTC().Format(time.RFC3339),
	}
	if l.QuestionID.Valid {
		m["question_id"] = l.QuestionID.String
	}
	if l.ResponseID.Valid {
		m["response_id"] = l.ResponseID.String
	}
	if l.ReviewAssignmentID.Valid {
		m["review_assignment_id"] = l.ReviewAssignmentID.String
	}
	if l.FromStatus.Valid {
		m["from_status"] = l.FromStatus.String
	}
	if l.ToStatus.Valid {
		m["to_status"] = l.ToStatus.String
	}
	if l.Details.Valid {
		m["details"] = l.Details.String
	}
	return json.Marshal(m)
}

// ResponseStatusHistory 响应状态历史（对应 response_status_histories 表）
// 只追加；按时间排序必须构成合法迁移图上的一条路径
type ResponseStatusHistory struct {
	HistoryID  string         `db:"history_id"` // UUID, PRIMARY KEY
	ResponseID string         `db:"response_id"`
	FromStatus string         `db:"from_status"`
	ToStatus   string         `db:"to_status"`
	ChangedBy  string         `db:"changed_by"`
	Reason     sql.NullString `db:"reason"`
	CreatedAt  time.Time      `db:"created_at"`
}

// ResponseChange 响应取值变更历史（对应 response_changes 表）
type ResponseChange struct {
	ChangeID   string          `db:"change_id"` // UUID, PRIMARY KEY
	ResponseID string          `db:"response_id"`
	ChangedBy  string          `db:"changed_by"`
	OldValue   json.RawMessage `db:"old_value"`
	NewValue   json.RawMessage `db:"new_value"`
	CreatedAt  time.Time       `db:"created_at"`
}

// QuestionChange 问题定义变更历史（对应 question_changes 表）
type QuestionChange struct {
	ChangeID   string          `db:"change_id"` // UUID, PRIMARY KEY
	QuestionID string          `db:"question_id"`
	ChangedBy  string          `db:"changed_by"`
	OldValue   json.RawMessage `db:"old_value"`
	NewValue   json.RawMessage `db:"new_value"`
	Reason     sql.NullString  `db:"reason"`
	CreatedAt  time.Time       `db:"created_at"`
}

// QuestionAssignmentChange 责任分配变更历史（对应 question_assignment_changes 表）
type QuestionAssignmentChange struct {
	ChangeID             string         `db:"change_id"` // UUID, PRIMARY KEY
	QuestionAssignmentID string         `db:"question_assignment_id"`
	ChangedBy            string         `db:"changed_by"`
	Action               string         `db:"action"` // created/removed
	Details              sql.NullString `db:"details"`
	CreatedAt            time.Time      `db:"created_at"`
}
