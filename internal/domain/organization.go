package domain

import (
	"encoding/json"
	"time"
)

// 组织类型（创建后不可变，变更会使既有关系/分配失效）
const (
	OrgTypePlatform = "platform" // 平台组织：发起 Campaign
	OrgTypeSupplier = "supplier" // 供应商组织：填报响应
)

// Organization 组织领域模型（对应 organizations 表）
// 组织即租户：数据隔离的单位
type Organization struct {
	// 主键
	OrganizationID string `db:"organization_id"` // UUID, PRIMARY KEY

	// 基本信息
	DisplayName string `db:"display_name"` // VARCHAR(255), NOT NULL
	OrgType     string `db:"org_type"`     // VARCHAR(20), NOT NULL ('platform'/'supplier')

	// 状态
	Status string `db:"status"` // VARCHAR(50), DEFAULT 'active' (active/suspended)

	// 扩展配置
	Metadata json.RawMessage `db:"metadata"` // JSONB, nullable

	CreatedAt time.Time `db:"created_at"`
}

// OrganizationRelationship 平台-供应商关系（对应 organization_relationships 表）
// 有向边 (platform_org_id, supplier_org_id)，按有序对唯一
// 只做软停用（is_active），不做物理删除：历史分配仍引用该关系
type OrganizationRelationship struct {
	RelationshipID string `db:"relationship_id"` // UUID, PRIMARY KEY
	PlatformOrgID  string `db:"platform_org_id"` // NOT NULL, FK organizations
	SupplierOrgID  string `db:"supplier_org_id"` // NOT NULL, FK organizations

	// 关系范围内的键值标签（如供应商分级）
	Tags json.RawMessage `db:"tags"` // JSONB, nullable

	IsActive  bool      `db:"is_active"` // NOT NULL DEFAULT TRUE
	CreatedAt time.Time `db:"created_at"`
}

// ValidOrgType 校验组织类型取值
func ValidOrgType(t string) bool {
	return t == OrgTypePlatform || t == OrgTypeSupplier
}
