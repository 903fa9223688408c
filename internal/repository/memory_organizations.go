package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/tenant"

	"github.com/google/uuid"
)

// MemoryOrganizationsRepo 组织/组织关系内存实现（单元测试用，DB 禁用时可兜底）
type MemoryOrganizationsRepo struct {
	mu            sync.RWMutex
	organizations map[string]*domain.Organization
	relationships map[string]*domain.OrganizationRelationship
}

// NewMemoryOrganizationsRepo 创建内存组织Repository
func NewMemoryOrganizationsRepo() *MemoryOrganizationsRepo {
	return &MemoryOrganizationsRepo{
		organizations: map[string]*domain.Organization{},
		relationships: map[string]*domain.OrganizationRelationship{},
	}
}

// 确保实现了接口
var _ OrganizationsRepository = (*MemoryOrganizationsRepo)(nil)

func (r *MemoryOrganizationsRepo) CreateOrganization(_ context.Context, org *domain.Organization) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if org.DisplayName == "" {
		return "", fmt.Errorf("display_name is required")
	}
	if !domain.ValidOrgType(org.OrgType) {
		return "", fmt.Errorf("invalid org type: %s", org.OrgType)
	}
	row := *org
	row.OrganizationID = uuid.NewString()
	if row.Status == "" {
		row.Status = "active"
	}
	row.CreatedAt = time.Now()
	r.organizations[row.OrganizationID] = &row
	return row.OrganizationID, nil
}

func (r *MemoryOrganizationsRepo) GetOrganization(_ context.Context, organizationID string) (*domain.Organization, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	org, ok := r.organizations[organizationID]
	if !ok {
		return nil, fmt.Errorf("organization not found: %s", organizationID)
	}
	cp := *org
	return &cp, nil
}

func (r *MemoryOrganizationsRepo) ListOrganizations(_ context.Context, scope tenant.Scope, filter OrganizationFilters, page, size int) ([]*domain.Organization, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := []*domain.Organization{}
	for _, org := range r.organizations {
		if !scope.Allows(org.OrganizationID) {
			continue
		}
		if filter.OrgType != "" && org.OrgType != filter.OrgType {
			continue
		}
		if filter.Status != "" && org.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(org.DisplayName), strings.ToLower(filter.Search)) {
			continue
		}
		cp := *org
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

func (r *MemoryOrganizationsRepo) SetOrganizationStatus(_ context.Context, organizationID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	org, ok := r.organizations[organizationID]
	if !ok {
		return fmt.Errorf("organization not found: %s", organizationID)
	}
	org.Status = status
	return nil
}

func (r *MemoryOrganizationsRepo) CreateRelationship(_ context.Context, rel *domain.OrganizationRelationship) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rel.PlatformOrgID == "" || rel.SupplierOrgID == "" {
		return "", fmt.Errorf("platform_org_id and supplier_org_id are required")
	}
	for _, existing := range r.relationships {
		if existing.PlatformOrgID == rel.PlatformOrgID && existing.SupplierOrgID == rel.SupplierOrgID {
			return "", fmt.Errorf("relationship already exists for this organization pair")
		}
	}
	row := *rel
	row.RelationshipID = uuid.NewString()
	row.IsActive = true
	row.CreatedAt = time.Now()
	r.relationships[row.RelationshipID] = &row
	return row.RelationshipID, nil
}

func (r *MemoryOrganizationsRepo) GetRelationship(_ context.Context, relationshipID string) (*domain.OrganizationRelationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rel, ok := r.relationships[relationshipID]
	if !ok {
		return nil, fmt.Errorf("relationship not found: %s", relationshipID)
	}
	cp := *rel
	return &cp, nil
}

func (r *MemoryOrganizationsRepo) FindRelationship(_ context.Context, platformOrgID, supplierOrgID string) (*domain.OrganizationRelationship, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rel := range r.relationships {
		if rel.PlatformOrgID == platformOrgID && rel.SupplierOrgID == supplierOrgID {
			cp := *rel
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryOrganizationsRepo) ListRelationships(_ context.Context, scope tenant.Scope, activeOnly bool, page, size int) ([]*domain.OrganizationRelationship, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := []*domain.OrganizationRelationship{}
	for _, rel := range r.relationships {
		// 关系的任一端落在范围内即可见
		if !scope.Allows(rel.PlatformOrgID) && !scope.Allows(rel.SupplierOrgID) {
			continue
		}
		if activeOnly && !rel.IsActive {
			continue
		}
		cp := *rel
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

func (r *MemoryOrganizationsRepo) SetRelationshipTags(_ context.Context, relationshipID string, tags json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rel, ok := r.relationships[relationshipID]
	if !ok {
		return fmt.Errorf("relationship not found: %s", relationshipID)
	}
	rel.Tags = tags
	return nil
}

func (r *MemoryOrganizationsRepo) DeactivateRelationship(_ context.Context, relationshipID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rel, ok := r.relationships[relationshipID]
	if !ok {
		return fmt.Errorf("relationship not found: %s", relationshipID)
	}
	rel.IsActive = false
	return nil
}
