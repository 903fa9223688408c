package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/repository"
	"esgbridge-data/internal/tenant"

	"go.uber.org/zap"
)

// CampaignService 活动管理服务接口
type CampaignService interface {
	CreateCampaign(ctx context.Context, req CreateCampaignRequest) (string, error)
	GetCampaign(ctx context.Context, identity tenant.Identity, campaignID string) (*domain.Campaign, error)
	ListCampaigns(ctx context.Context, req ListCampaignsRequest) (*ListCampaignsResponse, error)
	// SetCampaignStatus 声明式状态设置：只校验取值合法和调用者归属
	SetCampaignStatus(ctx context.Context, identity tenant.Identity, campaignID, status string) error

	CreateAssignment(ctx context.Context, req CreateAssignmentRequest) (string, error)
	GetAssignment(ctx context.Context, identity tenant.Identity, campaignAssignmentID string) (*domain.CampaignAssignment, error)
	ListAssignments(ctx context.Context, req ListAssignmentsRequest) (*ListAssignmentsResponse, error)
	// SetAssignmentStatus 粗粒度汇总状态，人工维护，不从响应状态推导
	SetAssignmentStatus(ctx context.Context, identity tenant.Identity, campaignAssignmentID, status string) error
	SetLeadResponder(ctx context.Context, identity tenant.Identity, campaignAssignmentID, leadResponderID string) error
}

// CreateCampaignRequest 创建活动请求
type CreateCampaignRequest struct {
	Identity     tenant.Identity
	CampaignName string
	Description  string
	StartDate    *time.Time
	EndDate      *time.Time
}

// ListCampaignsRequest 活动列表请求
type ListCampaignsRequest struct {
	Identity tenant.Identity
	Status   string
	Search   string
	Page     int
	Size     int
}

// ListCampaignsResponse 活动列表响应
type ListCampaignsResponse struct {
	Items []*domain.Campaign
	Total int
}

// CreateAssignmentRequest 创建活动分配请求
type CreateAssignmentRequest struct {
	Identity               tenant.Identity
	CampaignID             string
	OrganizationID         string
	QuestionnaireVersionID string
	RelationshipID         string
	LeadResponderID        string
	DueDate                *time.Time
}

// ListAssignmentsRequest 活动分配列表请求
type ListAssignmentsRequest struct {
	Identity        tenant.Identity
	CampaignID      string
	Status          string
	LeadResponderID string
	Page            int
	Size            int
}

// ListAssignmentsResponse 活动分配列表响应
type ListAssignmentsResponse struct {
	Items []*domain.CampaignAssignment
	Total int
}

// campaignService 活动管理服务实现
type campaignService struct {
	campaignsRepo repository.CampaignsRepository
	orgsRepo      repository.OrganizationsRepository
	questionsRepo repository.QuestionsRepository
	logger        *zap.Logger
}

// NewCampaignService 创建活动管理服务
func NewCampaignService(
	campaignsRepo repository.CampaignsRepository,
	orgsRepo repository.OrganizationsRepository,
	questionsRepo repository.QuestionsRepository,
	logger *zap.Logger,
) CampaignService {
	return &campaignService{
		campaignsRepo: campaignsRepo,
		orgsRepo:      orgsRepo,
		questionsRepo: questionsRepo,
		logger:        logger,
	}
}

func (s *campaignService) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (string, error) {
	if req.CampaignName == "" {
		return "", &domain.ValidationError{Field: "campaign_name", Reason: "campaign name is required"}
	}
	scope := tenant.Resolve(req.Identity)
	if scope.DenyAll {
		return "", &domain.TenantViolationError{}
	}

	c := &domain.Campaign{
		OrganizationID: req.Identity.OrganizationID,
		CampaignName:   req.CampaignName,
		Description:    nullableString(req.Description),
		CreatedBy:      req.Identity.UserID,
	}
	if req.StartDate != nil {
		c.StartDate = sql.NullTime{Time: *req.StartDate, Valid: true}
	}
	if req.EndDate != nil {
		c.EndDate = sql.NullTime{Time: *req.EndDate, Valid: true}
	}

	campaignID, err := s.campaignsRepo.CreateCampaign(ctx, c)
	if err != nil {
		return "", fmt.Errorf("failed to create campaign: %w", err)
	}
	s.logger.Info("campaign created",
		zap.String("campaign_id", campaignID),
		zap.String("organization_id", req.Identity.OrganizationID))
	return campaignID, nil
}

func (s *campaignService) GetCampaign(ctx context.Context, identity tenant.Identity, campaignID string) (*domain.Campaign, error) {
	return s.campaignsRepo.GetCampaign(ctx, tenant.Resolve(identity), campaignID)
}

func (s *campaignService) ListCampaigns(ctx context.Context, req ListCampaignsRequest) (*ListCampaignsResponse, error) {
	items, total, err := s.campaignsRepo.ListCampaigns(ctx, tenant.Resolve(req.Identity), repository.CampaignFilters{
		Status: req.Status,
		Search: req.Search,
	}, req.Page, req.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return &ListCampaignsResponse{Items: items, Total: total}, nil
}

func (s *campaignService) SetCampaignStatus(ctx context.Context, identity tenant.Identity, campaignID, status string) error {
	scope := tenant.Resolve(identity)
	c, err := s.campaignsRepo.GetCampaign(ctx, scope, campaignID)
	if err != nil {
		return err
	}
	if err := scope.Check(c.OrganizationID); err != nil {
		return err
	}
	return s.campaignsRepo.SetCampaignStatus(ctx, campaignID, status)
}

// CreateAssignment 创建活动分配
// 跨组织分配必须携带双方的活跃关系；不携带关系时目标组织必须就是调用者组织
func (s *campaignService) CreateAssignment(ctx context.Context, req CreateAssignmentRequest) (string, error) {
	if req.LeadResponderID == "" {
		return "", &domain.ValidationError{Field: "lead_responder_id", Reason: "a lead responder is required"}
	}
	scope := tenant.Resolve(req.Identity)
	campaign, err := s.campaignsRepo.GetCampaign(ctx, scope, req.CampaignID)
	if err != nil {
		return "", err
	}
	if err := scope.Check(campaign.OrganizationID); err != nil {
		return "", err
	}
	if _, err := s.questionsRepo.GetQuestionnaireVersion(ctx, req.QuestionnaireVersionID); err != nil {
		return "", err
	}

	ca := &domain.CampaignAssignment{
		CampaignID:             req.CampaignID,
		OrganizationID:         req.OrganizationID,
		QuestionnaireVersionID: req.QuestionnaireVersionID,
		LeadResponderID:        req.LeadResponderID,
	}
	if req.OrganizationID != campaign.OrganizationID {
		if req.RelationshipID == "" {
			return "", &domain.ValidationError{Field: "relationship_id", Reason: "cross-organization assignments require a relationship"}
		}
		rel, err := s.orgsRepo.GetRelationship(ctx, req.RelationshipID)
		if err != nil {
			return "", err
		}
		if !rel.IsActive {
			return "", &domain.ValidationError{Field: "relationship_id", Reason: "relationship is not active"}
		}
		if rel.PlatformOrgID != campaign.OrganizationID || rel.SupplierOrgID != req.OrganizationID {
			return "", &domain.ValidationError{Field: "relationship_id", Reason: "relationship does not connect the campaign owner and the target organization"}
		}
		ca.RelationshipID = sql.NullString{String: req.RelationshipID, Valid: true}
	}
	if req.DueDate != nil {
		ca.DueDate = sql.NullTime{Time: *req.DueDate, Valid: true}
	}

	campaignAssignmentID, err := s.campaignsRepo.CreateAssignment(ctx, ca)
	if err != nil {
		return "", fmt.Errorf("failed to create campaign assignment: %w", err)
	}
	s.logger.Info("campaign assignment created",
		zap.String("campaign_assignment_id", campaignAssignmentID),
		zap.String("campaign_id", req.CampaignID),
		zap.String("organization_id", req.OrganizationID))
	return campaignAssignmentID, nil
}

func (s *campaignService) GetAssignment(ctx context.Context, identity tenant.Identity, campaignAssignmentID string) (*domain.CampaignAssignment, error) {
	return s.campaignsRepo.GetAssignment(ctx, tenant.Resolve(identity), campaignAssignmentID)
}

func (s *campaignService) ListAssignments(ctx context.Context, req ListAssignmentsRequest) (*ListAssignmentsResponse, error) {
	items, total, err := s.campaignsRepo.ListAssignments(ctx, tenant.Resolve(req.Identity), repository.AssignmentFilters{
		CampaignID:      req.CampaignID,
		Status:          req.Status,
		LeadResponderID: req.LeadResponderID,
	}, req.Page, req.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaign assignments: %w", err)
	}
	return &ListAssignmentsResponse{Items: items, Total: total}, nil
}

func (s *campaignService) SetAssignmentStatus(ctx context.Context, identity tenant.Identity, campaignAssignmentID, status string) error {
	scope := tenant.Resolve(identity)
	if _, err := s.campaignsRepo.GetAssignment(ctx, scope, campaignAssignmentID); err != nil {
		return err
	}
	return s.campaignsRepo.SetAssignmentStatus(ctx, campaignAssignmentID, status)
}

func (s *campaignService) SetLeadResponder(ctx context.Context, identity tenant.Identity, campaignAssignmentID, leadResponderID string) error {
	scope := tenant.Resolve(identity)
	ca, err := s.campaignsRepo.GetAssignmentUnscoped(ctx, campaignAssignmentID)
	if err != nil {
		return err
	}
	if err := scope.Check(ca.OrganizationID); err != nil {
		return err
	}
	return s.campaignsRepo.SetLeadResponder(ctx, campaignAssignmentID, leadResponderID)
}
