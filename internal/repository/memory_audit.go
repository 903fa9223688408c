package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"esgbridge-data/internal/domain"

	"github.com/google/uuid"
)

// MemoryAuditRepo 审计日志内存实现（只追加）
type MemoryAuditRepo struct {
	mu   sync.RWMutex
	logs []*domain.ReviewAuditLog
}

// NewMemoryAuditRepo 创建内存审计Repository
func NewMemoryAuditRepo() *MemoryAuditRepo {
	return &MemoryAuditRepo{logs: []*domain.ReviewAuditLog{}}
}

// 确保实现了接口
var _ AuditRepository = (*MemoryAuditRepo)(nil)

// append 内部追加入口：事务性写入捎带的审计行也走这里
func (r *MemoryAuditRepo) append(l *domain.ReviewAuditLog) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := *l
	row.AuditID = uuid.NewString()
	row.CreatedAt = time.Now()
	r.logs = append(r.logs, &row)
}

func (r *MemoryAuditRepo) Append(_ context.Context, l *domain.ReviewAuditLog) error {
	if l.ActorID == "" || l.CampaignAssignmentID == "" || l.Action == "" {
		return fmt.Errorf("actor_id, campaign_assignment_id and action are required")
	}
	r.append(l)
	return nil
}

func (r *MemoryAuditRepo) ListByAssignment(_ context.Context, campaignAssignmentID string, page, size int) ([]*domain.ReviewAuditLog, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := []*domain.ReviewAuditLog{}
	for _, l := range r.logs {
		if l.CampaignAssignmentID == campaignAssignmentID {
			cp := *l
			all = append(all, &cp)
		}
	}

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

func (r *MemoryAuditRepo) ListByResponse(_ context.Context, responseID string) ([]*domain.ReviewAuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := []*domain.ReviewAuditLog{}
	for _, l := range r.logs {
		if l.ResponseID.Valid && l.ResponseID.String == responseID {
			cp := *l
			items = append(items, &cp)
		}
	}
	return items, nil
}
