package domain

import (
	"database/sql"
	"time"
)

// Campaign 状态（声明式：授权者可直接设置任意状态，
// 与响应级工作流不同，这里刻意不做状态机约束）
const (
	CampaignDraft     = "draft"
	CampaignActive    = "active"
	CampaignPaused    = "paused"
	CampaignCompleted = "completed"
	CampaignCancelled = "cancelled"
)

// Campaign 数据收集活动（对应 campaigns 表）
// 归属于一个平台组织
type Campaign struct {
	CampaignID     string `db:"campaign_id"`     // UUID, PRIMARY KEY
	OrganizationID string `db:"organization_id"` // NOT NULL, FK organizations（平台组织）

	CampaignName string         `db:"campaign_name"` // NOT NULL
	Description  sql.NullString `db:"description"`   // nullable
	Status       string         `db:"status"`        // DEFAULT 'draft'

	StartDate sql.NullTime `db:"start_date"` // nullable
	EndDate   sql.NullTime `db:"end_date"`   // nullable

	CreatedBy string    `db:"created_by"` // NOT NULL, FK users
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ValidCampaignStatus 校验活动状态取值
func ValidCampaignStatus(s string) bool {
	switch s {
	case CampaignDraft, CampaignActive, CampaignPaused, CampaignCompleted, CampaignCancelled:
		return true
	}
	return false
}
