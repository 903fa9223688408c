package repository

import (
	"context"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/tenant"
)

// CampaignFilters 活动列表过滤条件
type CampaignFilters struct {
	Status string
	Search string
}

// AssignmentFilters 活动分配列表过滤条件
type AssignmentFilters struct {
	CampaignID      string
	Status          string
	LeadResponderID string
}

// CampaignsRepository 活动/活动分配数据访问
type CampaignsRepository interface {
	CreateCampaign(ctx context.Context, c *domain.Campaign) (string, error)
	GetCampaign(ctx context.Context, scope tenant.Scope, campaignID string) (*domain.Campaign, error)
	ListCampaigns(ctx context.Context, scope tenant.Scope, filter CampaignFilters, page, size int) ([]*domain.Campaign, int, error)
	// SetCampaignStatus 活动状态是声明式的：授权者可直接设置任意合法取值
	SetCampaignStatus(ctx context.Context, campaignID, status string) error

	CreateAssignment(ctx context.Context, ca *domain.CampaignAssignment) (string, error)
	// GetAssignment 按范围过滤读取；目标组织与活动归属组织都在范围内时可见
	GetAssignment(ctx context.Context, scope tenant.Scope, campaignAssignmentID string) (*domain.CampaignAssignment, error)
	// GetAssignmentUnscoped 写路径用：先取整行，再由服务层做 Scope.Check
	GetAssignmentUnscoped(ctx context.Context, campaignAssignmentID string) (*domain.CampaignAssignment, error)
	ListAssignments(ctx context.Context, scope tenant.Scope, filter AssignmentFilters, page, size int) ([]*domain.CampaignAssignment, int, error)
	SetAssignmentStatus(ctx context.Context, campaignAssignmentID, status string) error
	SetLeadResponder(ctx context.Context, campaignAssignmentID, leadResponderID string) error

	// ListAssignmentsByOrgAndQuestionnaire 预填来源检索：目标组织在同一问卷下的历史分配
	ListAssignmentsByOrgAndQuestionnaire(ctx context.Context, organizationID, questionnaireVersionID string) ([]*domain.CampaignAssignment, error)
}
