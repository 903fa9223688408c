package domain

import (
	"database/sql"
	"time"
)

// CampaignAssignment 粗粒度状态（手工设置的汇总，不从响应状态推导）
const (
	AssignmentNotStarted       = "not_started"
	AssignmentInProgress       = "in_progress"
	AssignmentSubmitted        = "submitted"
	AssignmentUnderReview      = "under_review"
	AssignmentApproved         = "approved"
	AssignmentChangesRequested = "changes_requested"
)

// CampaignAssignment 活动分配（对应 campaign_assignments 表）
// 一个 Campaign + 一个目标组织 + 一个问卷版本
// relationship_id 为空 ⇒ 平台组织内部分配（同租户）
type CampaignAssignment struct {
	CampaignAssignmentID string `db:"campaign_assignment_id"` // UUID, PRIMARY KEY
	CampaignID           string `db:"campaign_id"`            // NOT NULL, FK campaigns
	OrganizationID       string `db:"organization_id"`        // NOT NULL, FK organizations（目标组织）

	QuestionnaireVersionID string         `db:"questionnaire_version_id"` // NOT NULL
	RelationshipID         sql.NullString `db:"relationship_id"`          // nullable, FK organization_relationships

	// 默认责任人：未单独分配的问题都归属于 lead responder
	LeadResponderID string `db:"lead_responder_id"` // NOT NULL, FK users

	Status  string       `db:"status"`   // DEFAULT 'not_started'
	DueDate sql.NullTime `db:"due_date"` // nullable

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ValidAssignmentStatus 校验分配状态取值
func ValidAssignmentStatus(s string) bool {
	switch s {
	case AssignmentNotStarted, AssignmentInProgress, AssignmentSubmitted,
		AssignmentUnderReview, AssignmentApproved, AssignmentChangesRequested:
		return true
	}
	return false
}
