package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/repository"
	"esgbridge-data/internal/tenant"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// OrganizationService 组织/关系管理服务接口
// 组织与关系管理是平台管理员动作
type OrganizationService interface {
	CreateOrganization(ctx context.Context, req CreateOrganizationRequest) (string, error)
	GetOrganization(ctx context.Context, identity tenant.Identity, organizationID string) (*domain.Organization, error)
	ListOrganizations(ctx context.Context, req ListOrganizationsRequest) (*ListOrganizationsResponse, error)
	SetOrganizationStatus(ctx context.Context, identity tenant.Identity, organizationID, status string) error

	CreateRelationship(ctx context.Context, req CreateRelationshipRequest) (string, error)
	ListRelationships(ctx context.Context, identity tenant.Identity, activeOnly bool, page, size int) ([]*domain.OrganizationRelationship, int, error)
	SetRelationshipTags(ctx context.Context, identity tenant.Identity, relationshipID string, tags json.RawMessage) error
	DeactivateRelationship(ctx context.Context, identity tenant.Identity, relationshipID string) error

	// 用户目录：镜像 IdP 下发的用户，供 lead_responder_id 等外键引用
	CreateUser(ctx context.Context, req CreateUserRequest) (string, error)
	GetUser(ctx context.Context, identity tenant.Identity, userID string) (*domain.User, error)
	ListUsers(ctx context.Context, req ListUsersRequest) (*ListUsersResponse, error)
}

// CreateOrganizationRequest 创建组织请求
type CreateOrganizationRequest struct {
	Identity    tenant.Identity
	DisplayName string
	OrgType     string
	Metadata    json.RawMessage
}

// ListOrganizationsRequest 组织列表请求
type ListOrganizationsRequest struct {
	Identity tenant.Identity
	OrgType  string
	Status   string
	Search   string
	Page     int
	Size     int
}

// ListOrganizationsResponse 组织列表响应
type ListOrganizationsResponse struct {
	Items []*domain.Organization
	Total int
}

// CreateRelationshipRequest 创建平台-供应商关系请求
type CreateRelationshipRequest struct {
	Identity      tenant.Identity
	PlatformOrgID string
	SupplierOrgID string
	Tags          json.RawMessage
}

// CreateUserRequest 创建用户请求
type CreateUserRequest struct {
	Identity       tenant.Identity
	OrganizationID string
	UserAccount    string
	DisplayName    string
	Email          string
	Roles          []string
}

// ListUsersRequest 用户列表请求
type ListUsersRequest struct {
	Identity       tenant.Identity
	OrganizationID string
	Page           int
	Size           int
}

// ListUsersResponse 用户列表响应
type ListUsersResponse struct {
	Items []*domain.User
	Total int
}

// organizationService 组织管理服务实现
type organizationService struct {
	orgsRepo  repository.OrganizationsRepository
	usersRepo repository.UsersRepository
	logger    *zap.Logger
}

// NewOrganizationService 创建组织管理服务
func NewOrganizationService(orgsRepo repository.OrganizationsRepository, usersRepo repository.UsersRepository, logger *zap.Logger) OrganizationService {
	return &organizationService{orgsRepo: orgsRepo, usersRepo: usersRepo, logger: logger}
}

// requireAdmin 组织生命周期管理只开放给平台管理员
func requireAdmin(id tenant.Identity, action string) error {
	if !id.IsAdmin() {
		return &domain.UnauthorizedActorError{ActorID: id.UserID, Action: action}
	}
	return nil
}

func (s *organizationService) CreateOrganization(ctx context.Context, req CreateOrganizationRequest) (string, error) {
	if err := requireAdmin(req.Identity, "create_organization"); err != nil {
		return "", err
	}
	if req.DisplayName == "" {
		return "", &domain.ValidationError{Field: "display_name", Reason: "display name is required"}
	}
	if !domain.ValidOrgType(req.OrgType) {
		return "", &domain.ValidationError{Field: "org_type", Reason: fmt.Sprintf("invalid org type: %s", req.OrgType)}
	}

	organizationID, err := s.orgsRepo.CreateOrganization(ctx, &domain.Organization{
		DisplayName: req.DisplayName,
		OrgType:     req.OrgType,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create organization: %w", err)
	}
	s.logger.Info("organization created",
		zap.String("organization_id", organizationID),
		zap.String("org_type", req.OrgType))
	return organizationID, nil
}

func (s *organizationService) GetOrganization(ctx context.Context, identity tenant.Identity, organizationID string) (*domain.Organization, error) {
	scope := tenant.Resolve(identity)
	if !scope.Allows(organizationID) {
		return nil, fmt.Errorf("organization not found: %s", organizationID)
	}
	return s.orgsRepo.GetOrganization(ctx, organizationID)
}

func (s *organizationService) ListOrganizations(ctx context.Context, req ListOrganizationsRequest) (*ListOrganizationsResponse, error) {
	items, total, err := s.orgsRepo.ListOrganizations(ctx, tenant.Resolve(req.Identity), repository.OrganizationFilters{
		OrgType: req.OrgType,
		Status:  req.Status,
		Search:  req.Search,
	}, req.Page, req.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return &ListOrganizationsResponse{Items: items, Total: total}, nil
}

func (s *organizationService) SetOrganizationStatus(ctx context.Context, identity tenant.Identity, organizationID, status string) error {
	if err := requireAdmin(identity, "set_organization_status"); err != nil {
		return err
	}
	return s.orgsRepo.SetOrganizationStatus(ctx, organizationID, status)
}

// CreateRelationship 建立平台-供应商关系
// 方向校验：platform 端必须是 platform 类型组织，supplier 端必须是 supplier 类型
func (s *organizationService) CreateRelationship(ctx context.Context, req CreateRelationshipRequest) (string, error) {
	if err := requireAdmin(req.Identity, "create_relationship"); err != nil {
		return "", err
	}

	platform, err := s.orgsRepo.GetOrganization(ctx, req.PlatformOrgID)
	if err != nil {
		return "", err
	}
	if platform.OrgType != domain.OrgTypePlatform {
		return "", &domain.ValidationError{Field: "platform_org_id", Reason: "organization is not a platform organization"}
	}
	supplier, err := s.orgsRepo.GetOrganization(ctx, req.SupplierOrgID)
	if err != nil {
		return "", err
	}
	if supplier.OrgType != domain.OrgTypeSupplier {
		return "", &domain.ValidationError{Field: "supplier_org_id", Reason: "organization is not a supplier organization"}
	}
	if existing, err := s.orgsRepo.FindRelationship(ctx, req.PlatformOrgID, req.SupplierOrgID); err == nil && existing != nil {
		return "", &domain.ValidationError{Field: "supplier_org_id", Reason: "relationship already exists"}
	}

	relationshipID, err := s.orgsRepo.CreateRelationship(ctx, &domain.OrganizationRelationship{
		PlatformOrgID: req.PlatformOrgID,
		SupplierOrgID: req.SupplierOrgID,
		Tags:          req.Tags,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create relationship: %w", err)
	}
	return relationshipID, nil
}

func (s *organizationService) ListRelationships(ctx context.Context, identity tenant.Identity, activeOnly bool, page, size int) ([]*domain.OrganizationRelationship, int, error) {
	return s.orgsRepo.ListRelationships(ctx, tenant.Resolve(identity), activeOnly, page, size)
}

func (s *organizationService) SetRelationshipTags(ctx context.Context, identity tenant.Identity, relationshipID string, tags json.RawMessage) error {
	rel, err := s.orgsRepo.GetRelationship(ctx, relationshipID)
	if err != nil {
		return err
	}
	// 关系双方或管理员可改标签
	scope := tenant.Resolve(identity)
	if !scope.Allows(rel.PlatformOrgID) && !scope.Allows(rel.SupplierOrgID) {
		return &domain.TenantViolationError{}
	}
	return s.orgsRepo.SetRelationshipTags(ctx, relationshipID, tags)
}

func (s *organizationService) DeactivateRelationship(ctx context.Context, identity tenant.Identity, relationshipID string) error {
	if err := requireAdmin(identity, "deactivate_relationship"); err != nil {
		return err
	}
	return s.orgsRepo.DeactivateRelationship(ctx, relationshipID)
}

// CreateUser 在用户目录登记用户
// 管理员可以登记任意组织的用户；其他调用者只能登记本组织的
func (s *organizationService) CreateUser(ctx context.Context, req CreateUserRequest) (string, error) {
	if !req.Identity.IsAdmin() && req.Identity.OrganizationID != req.OrganizationID {
		return "", &domain.TenantViolationError{}
	}
	if req.UserAccount == "" {
		return "", &domain.ValidationError{Field: "user_account", Reason: "user account is required"}
	}
	if req.DisplayName == "" {
		return "", &domain.ValidationError{Field: "display_name", Reason: "display name is required"}
	}
	if _, err := s.orgsRepo.GetOrganization(ctx, req.OrganizationID); err != nil {
		return "", fmt.Errorf("organization not found: %w", err)
	}

	user := &domain.User{
		OrganizationID: req.OrganizationID,
		UserAccount:    req.UserAccount,
		DisplayName:    req.DisplayName,
		Roles:          pq.StringArray(req.Roles),
		Status:         "active",
	}
	if req.Email != "" {
		user.Email = sql.NullString{String: req.Email, Valid: true}
	}
	userID, err := s.usersRepo.CreateUser(ctx, user)
	if err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user created",
		zap.String("user_id", userID),
		zap.String("organization_id", req.OrganizationID))
	return userID, nil
}

func (s *organizationService) GetUser(ctx context.Context, identity tenant.Identity, userID string) (*domain.User, error) {
	user, err := s.usersRepo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := tenant.Resolve(identity).Check(user.OrganizationID); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *organizationService) ListUsers(ctx context.Context, req ListUsersRequest) (*ListUsersResponse, error) {
	items, total, err := s.usersRepo.ListUsers(ctx, tenant.Resolve(req.Identity), req.OrganizationID, req.Page, req.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return &ListUsersResponse{Items: items, Total: total}, nil
}
