package domain

import (
	"database/sql"
	"time"
)

// ResponseWorkflow 响应工作流影子记录（对应 response_workflows 表）
// 按响应去范式化的投影：当前状态、当前审核人、退回次数
// 与 responses.status 在同一事务内保持一致
type ResponseWorkflow struct {
	ResponseID           string `db:"response_id"`            // PRIMARY KEY, FK responses
	CampaignAssignmentID string `db:"campaign_assignment_id"` // NOT NULL

	CurrentStatus     string         `db:"current_status"`      // NOT NULL
	CurrentReviewerID sql.NullString `db:"current_reviewer_id"` // under_review 时有值
	RevisionCount     int            `db:"revision_count"`      // 每次退回 +1

	UpdatedAt time.Time `db:"updated_at"`
}
