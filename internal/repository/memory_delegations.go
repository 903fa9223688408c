package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"esgbridge-data/internal/domain"

	"github.com/google/uuid"
)

// MemoryDelegationsRepo 转交内存实现（单元测试用）
type MemoryDelegationsRepo struct {
	mu          sync.RWMutex
	delegations map[string]*domain.Delegation
	seq         int // 同毫秒内创建顺序的决胜位
}

// NewMemoryDelegationsRepo 创建内存转交Repository
func NewMemoryDelegationsRepo() *MemoryDelegationsRepo {
	return &MemoryDelegationsRepo{delegations: map[string]*domain.Delegation{}}
}

// 确保实现了接口
var _ DelegationsRepository = (*MemoryDelegationsRepo)(nil)

// nextCreatedAt 同毫秒内多次创建时借纳秒位保证 created_at 单调递增
func (r *MemoryDelegationsRepo) nextCreatedAt() time.Time {
	r.seq++
	return time.Now().Add(time.Duration(r.seq) * time.Nanosecond)
}

func (r *MemoryDelegationsRepo) CreateDelegation(_ context.Context, d *domain.Delegation) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.CampaignAssignmentID == "" || d.QuestionID == "" || d.FromUserID == "" || d.ToUserID == "" {
		return "", fmt.Errorf("campaign_assignment_id, question_id, from_user_id and to_user_id are required")
	}
	row := *d
	row.DelegationID = uuid.NewString()
	row.IsActive = true
	row.CreatedAt = r.nextCreatedAt()
	row.CompletedAt = sql.NullTime{}
	r.delegations[row.DelegationID] = &row
	return row.DelegationID, nil
}

func (r *MemoryDelegationsRepo) GetDelegation(_ context.Context, delegationID string) (*domain.Delegation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.delegations[delegationID]
	if !ok {
		return nil, fmt.Errorf("delegation not found: %s", delegationID)
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryDelegationsRepo) CompleteDelegation(_ context.Context, delegationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.delegations[delegationID]
	if !ok || !d.IsActive {
		return fmt.Errorf("delegation not found or already completed: %s", delegationID)
	}
	d.IsActive = false
	d.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return nil
}

func (r *MemoryDelegationsRepo) ListActiveByAssignment(_ context.Context, campaignAssignmentID string) ([]*domain.Delegation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := []*domain.Delegation{}
	for _, d := range r.delegations {
		if d.CampaignAssignmentID == campaignAssignmentID && d.IsActive {
			cp := *d
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (r *MemoryDelegationsRepo) LatestActiveForQuestion(_ context.Context, campaignAssignmentID, questionID string) (*domain.Delegation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *domain.Delegation
	for _, d := range r.delegations {
		if d.CampaignAssignmentID != campaignAssignmentID || d.QuestionID != questionID || !d.IsActive {
			continue
		}
		if latest == nil || d.CreatedAt.After(latest.CreatedAt) {
			latest = d
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}
