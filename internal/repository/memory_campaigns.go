package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/tenant"

	"github.com/google/uuid"
)

// MemoryCampaignsRepo 活动/活动分配内存实现（单元测试用）
type MemoryCampaignsRepo struct {
	mu          sync.RWMutex
	campaigns   map[string]*domain.Campaign
	assignments map[string]*domain.CampaignAssignment
}

// NewMemoryCampaignsRepo 创建内存活动Repository
func NewMemoryCampaignsRepo() *MemoryCampaignsRepo {
	return &MemoryCampaignsRepo{
		campaigns:   map[string]*domain.Campaign{},
		assignments: map[string]*domain.CampaignAssignment{},
	}
}

// 确保实现了接口
var _ CampaignsRepository = (*MemoryCampaignsRepo)(nil)

func (r *MemoryCampaignsRepo) CreateCampaign(_ context.Context, c *domain.Campaign) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.OrganizationID == "" || c.CampaignName == "" {
		return "", fmt.Errorf("organization_id and campaign_name are required")
	}
	row := *c
	row.CampaignID = uuid.NewString()
	if row.Status == "" {
		row.Status = domain.CampaignDraft
	}
	if !domain.ValidCampaignStatus(row.Status) {
		return "", fmt.Errorf("invalid campaign status: %s", row.Status)
	}
	now := time.Now()
	row.CreatedAt = now
	row.UpdatedAt = now
	r.campaigns[row.CampaignID] = &row
	return row.CampaignID, nil
}

func (r *MemoryCampaignsRepo) GetCampaign(_ context.Context, scope tenant.Scope, campaignID string) (*domain.Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.campaigns[campaignID]
	if !ok || !scope.Allows(c.OrganizationID) {
		return nil, fmt.Errorf("campaign not found: %s", campaignID)
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryCampaignsRepo) ListCampaigns(_ context.Context, scope tenant.Scope, filter CampaignFilters, page, size int) ([]*domain.Campaign, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := []*domain.Campaign{}
	for _, c := range r.campaigns {
		if !scope.Allows(c.OrganizationID) {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(c.CampaignName), strings.ToLower(filter.Search)) {
			continue
		}
		cp := *c
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	total := len(all)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *MemoryCampaignsRepo) SetCampaignStatus(_ context.Context, campaignID, status string) error {
	if !domain.ValidCampaignStatus(status) {
		return fmt.Errorf("invalid campaign status: %s", status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.campaigns[campaignID]
	if !ok {
		return fmt.Errorf("campaign not found: %s", campaignID)
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryCampaignsRepo) CreateAssignment(_ context.Context, ca *domain.CampaignAssignment) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ca.CampaignID == "" || ca.OrganizationID == "" || ca.QuestionnaireVersionID == "" || ca.LeadResponderID == "" {
		return "", fmt.Errorf("campaign_id, organization_id, questionnaire_version_id and lead_responder_id are required")
	}
	row := *ca
	row.CampaignAssignmentID = uuid.NewString()
	if row.Status == "" {
		row.Status = domain.AssignmentNotStarted
	}
	if !domain.ValidAssignmentStatus(row.Status) {
		return "", fmt.Errorf("invalid assignment status: %s", row.Status)
	}
	now := time.Now()
	row.CreatedAt = now
	row.UpdatedAt = now
	r.assignments[row.CampaignAssignmentID] = &row
	return row.CampaignAssignmentID, nil
}

// assignmentVisibleLocked 目标组织或活动归属组织任一落在范围内即可见
func (r *MemoryCampaignsRepo) assignmentVisibleLocked(scope tenant.Scope, ca *domain.CampaignAssignment) bool {
	if scope.Allows(ca.OrganizationID) {
		return true
	}
	if c, ok := r.campaigns[ca.CampaignID]; ok && scope.Allows(c.OrganizationID) {
		return true
	}
	return false
}

func (r *MemoryCampaignsRepo) GetAssignment(_ context.Context, scope tenant.Scope, campaignAssignmentID string) (*domain.CampaignAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ca, ok := r.assignments[campaignAssignmentID]
	if !ok || !r.assignmentVisibleLocked(scope, ca) {
		return nil, fmt.Errorf("campaign assignment not found: %s", campaignAssignmentID)
	}
	cp := *ca
	return &cp, nil
}

func (r *MemoryCampaignsRepo) GetAssignmentUnscoped(_ context.Context, campaignAssignmentID string) (*domain.CampaignAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ca, ok := r.assignments[campaignAssignmentID]
	if !ok {
		return nil, fmt.Errorf("campaign assignment not found: %s", campaignAssignmentID)
	}
	cp := *ca
	return &cp, nil
}

func (r *MemoryCampaignsRepo) ListAssignments(_ context.Context, scope tenant.Scope, filter AssignmentFilters, page, size int) ([]*domain.CampaignAssignment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := []*domain.CampaignAssignment{}
	for _, ca := range r.assignments {
		if !r.assignmentVisibleLocked(scope, ca) {
			continue
		}
		if filter.CampaignID != "" && ca.CampaignID != filter.CampaignID {
			continue
		}
		if filter.Status != "" && ca.Status != filter.Status {
			continue
		}
		if filter.LeadResponderID != "" && ca.LeadResponderID != filter.LeadResponderID {
			continue
		}
		cp := *ca
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	total := len(all)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *MemoryCampaignsRepo) SetAssignmentStatus(_ context.Context, campaignAssignmentID, status string) error {
	if !domain.ValidAssignmentStatus(status) {
		return fmt.Errorf("invalid assignment status: %s", status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ca, ok := r.assignments[campaignAssignmentID]
	if !ok {
		return fmt.Errorf("campaign assignment not found: %s", campaignAssignmentID)
	}
	ca.Status = status
	ca.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryCampaignsRepo) SetLeadResponder(_ context.Context, campaignAssignmentID, leadResponderID string) error {
	if leadResponderID == "" {
		return fmt.Errorf("lead_responder_id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ca, ok := r.assignments[campaignAssignmentID]
	if !ok {
		return fmt.Errorf("campaign assignment not found: %s", campaignAssignmentID)
	}
	ca.LeadResponderID = leadResponderID
	ca.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryCampaignsRepo) ListAssignmentsByOrgAndQuestionnaire(_ context.Context, organizationID, questionnaireVersionID string) ([]*domain.CampaignAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := []*domain.CampaignAssignment{}
	for _, ca := range r.assignments {
		if ca.OrganizationID == organizationID && ca.QuestionnaireVersionID == questionnaireVersionID {
			cp := *ca
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}
