package domain

import (
	"database/sql"
	"time"
)

// 审核范围
const (
	ScopeQuestion   = "question"
	ScopeSection    = "section"
	ScopeAssignment = "assignment"
)

// ReviewAssignment 自身状态（独立于响应状态机）
const (
	ReviewPending          = "pending"
	ReviewInReview         = "in_review"
	ReviewApproved         = "approved"
	ReviewChangesRequested = "changes_requested"
)

// ReviewAssignment 审核分配（对应 review_assignments 表）
// 一个审核人绑定到一个 CampaignAssignment 内的问题/章节/整单范围
// 同一问题可有多个并行审核人，任意一人完成审核即生效（无须合议）
type ReviewAssignment struct {
	ReviewAssignmentID   string `db:"review_assignment_id"`   // UUID, PRIMARY KEY
	CampaignAssignmentID string `db:"campaign_assignment_id"` // NOT NULL, FK campaign_assignments
	ReviewerID           string `db:"reviewer_id"`            // NOT NULL, FK users

	Scope       string         `db:"scope"`        // 'question' | 'section' | 'assignment'
	QuestionID  sql.NullString `db:"question_id"`  // scope='question' 时有值
	SectionName sql.NullString `db:"section_name"` // scope='section' 时有值

	Status   string `db:"status"`    // DEFAULT 'pending'
	IsActive bool   `db:"is_active"` // NOT NULL DEFAULT TRUE

	CreatedBy string    `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
}

// ValidReviewScope 校验审核范围取值
func ValidReviewScope(s string) bool {
	return s == ScopeQuestion || s == ScopeSection || s == ScopeAssignment
}

// ValidReviewStatus 校验审核状态取值
func ValidReviewStatus(s string) bool {
	switch s {
	case ReviewPending, ReviewInReview, ReviewApproved, ReviewChangesRequested:
		return true
	}
	return false
}

// Covers 该审核分配的范围是否覆盖指定问题
func (ra *ReviewAssignment) Covers(q *Question) bool {
	if !ra.IsActive {
		return false
	}
	switch ra.Scope {
	case ScopeAssignment:
		return true
	case ScopeSection:
		return ra.SectionName.Valid && ra.SectionName.String == q.Section
	case ScopeQuestion:
		return ra.QuestionID.Valid && ra.QuestionID.String == q.QuestionID
	}
	return false
}

// ReviewComment 审核意见（对应 review_comments 表）
// is_resolved/resolved_by 独立于审核分配自身状态；
// requires_change=true 的意见本身不改变响应状态，只有审核人显式发起退回才会
type ReviewComment struct {
	CommentID          string `db:"comment_id"`           // UUID, PRIMARY KEY
	ReviewAssignmentID string `db:"review_assignment_id"` // NOT NULL, FK review_assignments
	ResponseID         string `db:"response_id"`          // NOT NULL, FK responses
	AuthorID           string `db:"author_id"`            // NOT NULL, FK users

	CommentText    string `db:"comment_text"`    // NOT NULL
	RequiresChange bool   `db:"requires_change"` // NOT NULL DEFAULT FALSE

	IsResolved bool           `db:"is_resolved"` // NOT NULL DEFAULT FALSE
	ResolvedBy sql.NullString `db:"resolved_by"`
	ResolvedAt sql.NullTime   `db:"resolved_at"`

	CreatedAt time.Time `db:"created_at"`
}
