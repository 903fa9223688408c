package tenant

import "context"

// RolePlatformAdmin 平台管理员角色：唯一可以跨租户读写的角色
const RolePlatformAdmin = "PlatformAdmin"

// Identity 当前调用者身份（由外部 IdP 按请求下发，核心直接信任）
type Identity struct {
	UserID         string
	OrganizationID string
	Roles          []string
}

// HasRole 角色判定（管理员旁路只通过这一个谓词表达，不做用户子类型特化）
func (id Identity) HasRole(role string) bool {
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin 是否平台管理员
func (id Identity) IsAdmin() bool {
	return id.HasRole(RolePlatformAdmin)
}

type contextKey struct{}

// WithIdentity 把调用者身份放入 context
// 身份只通过 context 显式传递，不放进程级可变状态
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext 取出调用者身份
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
