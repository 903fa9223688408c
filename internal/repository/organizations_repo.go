package repository

import (
	"context"
	"encoding/json"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/tenant"
)

// OrganizationFilters 组织列表过滤条件
type OrganizationFilters struct {
	OrgType string
	Status  string
	Search  string
}

// OrganizationsRepository 组织/组织关系数据访问
type OrganizationsRepository interface {
	CreateOrganization(ctx context.Context, org *domain.Organization) (string, error)
	GetOrganization(ctx context.Context, organizationID string) (*domain.Organization, error)
	ListOrganizations(ctx context.Context, scope tenant.Scope, filter OrganizationFilters, page, size int) ([]*domain.Organization, int, error)
	SetOrganizationStatus(ctx context.Context, organizationID, status string) error

	CreateRelationship(ctx context.Context, rel *domain.OrganizationRelationship) (string, error)
	GetRelationship(ctx context.Context, relationshipID string) (*domain.OrganizationRelationship, error)
	// FindRelationship 按有序对 (platform, supplier) 查找
	FindRelationship(ctx context.Context, platformOrgID, supplierOrgID string) (*domain.OrganizationRelationship, error)
	ListRelationships(ctx context.Context, scope tenant.Scope, activeOnly bool, page, size int) ([]*domain.OrganizationRelationship, int, error)
	SetRelationshipTags(ctx context.Context, relationshipID string, tags json.RawMessage) error
	DeactivateRelationship(ctx context.Context, relationshipID string) error
}

// UsersRepository 用户数据访问
type UsersRepository interface {
	CreateUser(ctx context.Context, user *domain.User) (string, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	ListUsers(ctx context.Context, scope tenant.Scope, organizationID string, page, size int) ([]*domain.User, int, error)
}
