package tenant

import (
	"fmt"

	"esgbridge-data/internal/domain"
)

// Scope 生效的租户过滤器
// 三种形态：绑定到一个组织 / 不受限（管理员）/ 全部拒绝（无法解析组织）
type Scope struct {
	OrganizationID string
	Unrestricted   bool
	DenyAll        bool
}

// Resolve 按调用者身份推导租户过滤器
// 必须按请求重新推导，绝不跨请求缓存（组织归属可能在请求间变化）
//   - PlatformAdmin ⇒ 不受限，但保留调用者自身组织用于展示/审计（管理员不是匿名的）
//   - 其他角色 ⇒ 钉死在调用者的 organization_id
//   - 无法解析组织 ⇒ 全部拒绝（下游读操作返回空集，而不是靠错误路径兜底）
func Resolve(id Identity) Scope {
	if id.IsAdmin() {
		return Scope{OrganizationID: id.OrganizationID, Unrestricted: true}
	}
	if id.OrganizationID == "" {
		return Scope{DenyAll: true}
	}
	return Scope{OrganizationID: id.OrganizationID}
}

// ApplyFilter 把租户过滤条件追加到 SQL 查询
// 集中在这一处产生过滤条件，避免每个查询点各自记得加 WHERE organization_id = ?
//
// 参数:
//   - query: SQL 查询字符串（会被修改，追加 WHERE 或 AND 条件）
//   - args: SQL 参数数组（会被修改，追加参数）
//   - column: 组织外键列（含表别名，如 "ca.organization_id"）
//   - isFirstCondition: 是否是第一个 WHERE 条件
func (s Scope) ApplyFilter(query *string, args *[]any, column string, isFirstCondition bool) {
	if s.Unrestricted {
		return
	}

	var condition string
	if s.DenyAll {
		// 无法解析组织：返回空集而不是报错
		condition = "FALSE"
	} else {
		*args = append(*args, s.OrganizationID)
		condition = fmt.Sprintf("%s = $%d", column, len(*args))
	}

	if isFirstCondition {
		*query += ` WHERE ` + condition
	} else {
		*query += ` AND ` + condition
	}
}

// Allows 判断指定组织是否在过滤器内
func (s Scope) Allows(organizationID string) bool {
	if s.Unrestricted {
		return true
	}
	if s.DenyAll {
		return false
	}
	return s.OrganizationID == organizationID
}

// Check 写路径上的守卫：目标组织不在过滤器内时返回 TenantViolationError
// 错误不携带目标组织的任何标识
func (s Scope) Check(organizationID string) error {
	if !s.Allows(organizationID) {
		return &domain.TenantViolationError{}
	}
	return nil
}
