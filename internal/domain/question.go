package domain

import (
	"database/sql"
	"time"
)

// 问题类型
const (
	QuestionTypeText        = "text"
	QuestionTypeNumeric     = "numeric"
	QuestionTypeDate        = "date"
	QuestionTypeBoolean     = "boolean"
	QuestionTypeMultiSelect = "multi_select"
	QuestionTypeFile        = "file"
)

// 依赖条件（控制问题可见性）
const (
	ConditionEquals        = "equals"
	ConditionNotEquals     = "not_equals"
	ConditionIsAnswered    = "is_answered"
	ConditionIsNotAnswered = "is_not_answered"
)

// Question 问题领域模型（对应 questions 表）
// 归属于内容作者组织和一个问卷版本
type Question struct {
	QuestionID             string `db:"question_id"`              // UUID, PRIMARY KEY
	OrganizationID         string `db:"organization_id"`          // NOT NULL（内容作者组织）
	QuestionnaireVersionID string `db:"questionnaire_version_id"` // NOT NULL, FK questionnaire_versions

	Section      string `db:"section"`       // NOT NULL（章节名，Section 级分配/审核按此匹配）
	QuestionText string `db:"question_text"` // NOT NULL
	QuestionType string `db:"question_type"` // NOT NULL
	IsRequired   bool   `db:"is_required"`   // NOT NULL DEFAULT FALSE
	DisplayOrder int    `db:"display_order"` // NOT NULL DEFAULT 0

	CreatedAt time.Time `db:"created_at"`
}

// QuestionDependency 问题依赖边（对应 question_dependencies 表）
// 问卷内问题之间的有向图；建边时做环检测，保证可见性求值可终止
type QuestionDependency struct {
	DependencyID        string         `db:"dependency_id"`          // UUID, PRIMARY KEY
	QuestionID          string         `db:"question_id"`            // NOT NULL（被控制的问题）
	DependsOnQuestionID string         `db:"depends_on_question_id"` // NOT NULL
	Condition           string         `db:"condition"`              // NOT NULL
	ConditionValue      sql.NullString `db:"condition_value"`        // equals/not_equals 时必填
	CreatedAt           time.Time      `db:"created_at"`
}

// ValidQuestionType 校验问题类型取值
func ValidQuestionType(t string) bool {
	switch t {
	case QuestionTypeText, QuestionTypeNumeric, QuestionTypeDate,
		QuestionTypeBoolean, QuestionTypeMultiSelect, QuestionTypeFile:
		return true
	}
	return false
}

// ValidDependencyCondition 校验依赖条件取值
func ValidDependencyCondition(c string) bool {
	switch c {
	case ConditionEquals, ConditionNotEquals, ConditionIsAnswered, ConditionIsNotAnswered:
		return true
	}
	return false
}
