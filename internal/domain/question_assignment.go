package domain

import (
	"database/sql"
	"time"
)

// QuestionAssignment 分配类型
const (
	AssignmentTypeQuestion = "question"
	AssignmentTypeSection  = "section"
)

// QuestionAssignment 问题/章节责任分配（对应 question_assignments 表）
// 单个问题或整个章节二选一（由构造函数保证互斥，不依赖数据库约束）
type QuestionAssignment struct {
	QuestionAssignmentID string `db:"question_assignment_id"` // UUID, PRIMARY KEY
	CampaignAssignmentID string `db:"campaign_assignment_id"` // NOT NULL, FK campaign_assignments
	AssignedUserID       string `db:"assigned_user_id"`       // NOT NULL, FK users

	AssignmentType string         `db:"assignment_type"` // 'question' | 'section'
	QuestionID     sql.NullString `db:"question_id"`     // assignment_type='question' 时有值
	SectionName    sql.NullString `db:"section_name"`    // assignment_type='section' 时有值

	CreatedBy string    `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
}

// NewQuestionLevelAssignment 构造问题级分配
func NewQuestionLevelAssignment(campaignAssignmentID, questionID, assignedUserID, createdBy string) *QuestionAssignment {
	return &QuestionAssignment{
		CampaignAssignmentID: campaignAssignmentID,
		AssignedUserID:       assignedUserID,
		AssignmentType:       AssignmentTypeQuestion,
		QuestionID:           sql.NullString{String: questionID, Valid: true},
		CreatedBy:            createdBy,
	}
}

// NewSectionLevelAssignment 构造章节级分配
func NewSectionLevelAssignment(campaignAssignmentID, sectionName, assignedUserID, createdBy string) *QuestionAssignment {
	return &QuestionAssignment{
		CampaignAssignmentID: campaignAssignmentID,
		AssignedUserID:       assignedUserID,
		AssignmentType:       AssignmentTypeSection,
		SectionName:          sql.NullString{String: sectionName, Valid: true},
		CreatedBy:            createdBy,
	}
}
