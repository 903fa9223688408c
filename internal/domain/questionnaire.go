package domain

import (
	"database/sql"
	"time"
)

// Questionnaire 问卷（对应 questionnaires 表）
// 归属于内容作者所在组织
type Questionnaire struct {
	QuestionnaireID string         `db:"questionnaire_id"` // UUID, PRIMARY KEY
	OrganizationID  string         `db:"organization_id"`  // NOT NULL, FK organizations
	Title           string         `db:"title"`            // NOT NULL
	Description     sql.NullString `db:"description"`      // nullable
	CreatedAt       time.Time      `db:"created_at"`
}

// QuestionnaireVersion 问卷版本（对应 questionnaire_versions 表）
// CampaignAssignment 固定引用一个版本，版本发布后内容不再变化
type QuestionnaireVersion struct {
	QuestionnaireVersionID string       `db:"questionnaire_version_id"` // UUID, PRIMARY KEY
	QuestionnaireID        string       `db:"questionnaire_id"`         // NOT NULL, FK questionnaires
	VersionNumber          int          `db:"version_number"`           // NOT NULL
	PublishedAt            sql.NullTime `db:"published_at"`             // nullable（发布后只读）
	CreatedAt              time.Time    `db:"created_at"`
}
