package domain

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// User 用户领域模型（对应 users 表）
// 认证在外部 IdP 完成，这里只保存归属和角色（用于分配/审核引用）
type User struct {
	// 主键和租户
	UserID         string `db:"user_id"`
	OrganizationID string `db:"organization_id"`

	// 基本信息
	UserAccount string         `db:"user_account"` // NOT NULL
	DisplayName string         `db:"display_name"` // NOT NULL
	Email       sql.NullString `db:"email"`        // nullable

	// 角色集合（与 IdP 下发的 roles 对齐）
	Roles pq.StringArray `db:"roles"` // VARCHAR[], nullable

	Status    string    `db:"status"` // DEFAULT 'active'
	CreatedAt time.Time `db:"created_at"`
}
