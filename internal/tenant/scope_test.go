package tenant

import (
	"context"
	"errors"
	"testing"

	"esgbridge-data/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	// 普通用户：钉死在自身组织
	scope := Resolve(Identity{UserID: "u1", OrganizationID: "org-a", Roles: []string{"Responder"}})
	require.False(t, scope.Unrestricted)
	require.False(t, scope.DenyAll)
	require.Equal(t, "org-a", scope.OrganizationID)

	// 平台管理员：不受限，但保留自身组织
	scope = Resolve(Identity{UserID: "u2", OrganizationID: "org-a", Roles: []string{RolePlatformAdmin}})
	require.True(t, scope.Unrestricted)
	require.Equal(t, "org-a", scope.OrganizationID)

	// 无法解析组织：全部拒绝
	scope = Resolve(Identity{UserID: "u3"})
	require.True(t, scope.DenyAll)

	t.Logf("✅ Resolve test passed")
}

func TestScope_ApplyFilter(t *testing.T) {
	// 绑定组织：追加 WHERE 条件和参数
	scope := Scope{OrganizationID: "org-a"}
	query := `SELECT * FROM campaigns`
	args := []any{}
	scope.ApplyFilter(&query, &args, "c.organization_id", true)
	require.Equal(t, `SELECT * FROM campaigns WHERE c.organization_id = $1`, query)
	require.Equal(t, []any{"org-a"}, args)

	// 已有 WHERE：追加 AND 条件
	query = `SELECT * FROM campaigns WHERE status = $1`
	args = []any{"active"}
	scope.ApplyFilter(&query, &args, "c.organization_id", false)
	require.Equal(t, `SELECT * FROM campaigns WHERE status = $1 AND c.organization_id = $2`, query)
	require.Len(t, args, 2)

	// 不受限：查询原样不动
	query = `SELECT * FROM campaigns`
	args = []any{}
	Scope{Unrestricted: true}.ApplyFilter(&query, &args, "c.organization_id", true)
	require.Equal(t, `SELECT * FROM campaigns`, query)
	require.Empty(t, args)

	// 全部拒绝：条件恒假，返回空集而不是报错
	query = `SELECT * FROM campaigns`
	args = []any{}
	Scope{DenyAll: true}.ApplyFilter(&query, &args, "c.organization_id", true)
	require.Equal(t, `SELECT * FROM campaigns WHERE FALSE`, query)
	require.Empty(t, args)

	t.Logf("✅ ApplyFilter test passed")
}

func TestScope_AllowsAndCheck(t *testing.T) {
	scope := Scope{OrganizationID: "org-a"}
	require.True(t, scope.Allows("org-a"))
	require.False(t, scope.Allows("org-b"))

	require.NoError(t, scope.Check("org-a"))

	err := scope.Check("org-b")
	require.Error(t, err)
	var violation *domain.TenantViolationError
	require.True(t, errors.As(err, &violation))
	// 错误信息不允许泄漏目标组织标识
	require.NotContains(t, err.Error(), "org-b")

	// 管理员对任意组织放行
	require.NoError(t, Scope{Unrestricted: true}.Check("org-b"))

	// 全部拒绝对任意组织拦截
	require.Error(t, Scope{DenyAll: true}.Check("org-a"))

	t.Logf("✅ Allows/Check test passed")
}

func TestIdentityContext(t *testing.T) {
	id := Identity{UserID: "u1", OrganizationID: "org-a", Roles: []string{"Responder"}}
	ctx := WithIdentity(context.Background(), id)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, id, got)

	_, ok = FromContext(context.Background())
	require.False(t, ok)

	t.Logf("✅ identity context test passed")
}
