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

// MemoryReviewsRepo 审核数据内存实现（单元测试用）
type MemoryReviewsRepo struct {
	mu          sync.RWMutex
	assignments map[string]*domain.ReviewAssignment
	comments    map[string]*domain.ReviewComment
	audit       *MemoryAuditRepo
}

// NewMemoryReviewsRepo 创建内存审核Repository
func NewMemoryReviewsRepo(audit *MemoryAuditRepo) *MemoryReviewsRepo {
	return &MemoryReviewsRepo{
		assignments: map[string]*domain.ReviewAssignment{},
		comments:    map[string]*domain.ReviewComment{},
		audit:       audit,
	}
}

// 确保实现了接口
var _ ReviewsRepository = (*MemoryReviewsRepo)(nil)

func (r *MemoryReviewsRepo) appendAudit(l *domain.ReviewAuditLog) {
	if r.audit == nil || l == nil {
		return
	}
	r.audit.append(l)
}

func (r *MemoryReviewsRepo) CreateReviewAssignment(_ context.Context, ra *domain.ReviewAssignment, audit *domain.ReviewAuditLog) (string, error) {
	if !domain.ValidReviewScope(ra.Scope) {
		return "", fmt.Errorf("invalid review scope: %s", ra.Scope)
	}
	switch ra.Scope {
	case domain.ScopeQuestion:
		if !ra.QuestionID.Valid || ra.SectionName.Valid {
			return "", fmt.Errorf("question scope requires question_id and no section_name")
		}
	case domain.ScopeSection:
		if !ra.SectionName.Valid || ra.QuestionID.Valid {
			return "", fmt.Errorf("section scope requires section_name and no question_id")
		}
	case domain.ScopeAssignment:
		if ra.QuestionID.Valid || ra.SectionName.Valid {
			return "", fmt.Errorf("assignment scope must not carry question_id or section_name")
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	row := *ra
	row.ReviewAssignmentID = uuid.NewString()
	if row.Status == "" {
		row.Status = domain.ReviewPending
	}
	if !domain.ValidReviewStatus(row.Status) {
		return "", fmt.Errorf("invalid review status: %s", row.Status)
	}
	row.IsActive = true
	row.CreatedAt = time.Now()
	r.assignments[row.ReviewAssignmentID] = &row

	if audit != nil {
		audit.ReviewAssignmentID = sql.NullString{String: row.ReviewAssignmentID, Valid: true}
		r.appendAudit(audit)
	}
	return row.ReviewAssignmentID, nil
}

func (r *MemoryReviewsRepo) GetReviewAssignment(_ context.Context, reviewAssignmentID string) (*domain.ReviewAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ra, ok := r.assignments[reviewAssignmentID]
	if !ok {
		return nil, fmt.Errorf("review assignment not found: %s", reviewAssignmentID)
	}
	cp := *ra
	return &cp, nil
}

func (r *MemoryReviewsRepo) ListActiveByCampaignAssignment(_ context.Context, campaignAssignmentID string) ([]*domain.ReviewAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := []*domain.ReviewAssignment{}
	for _, ra := range r.assignments {
		if ra.CampaignAssignmentID == campaignAssignmentID && ra.IsActive {
			cp := *ra
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (r *MemoryReviewsRepo) SetReviewStatus(_ context.Context, reviewAssignmentID, status string) error {
	if !domain.ValidReviewStatus(status) {
		return fmt.Errorf("invalid review status: %s", status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ra, ok := r.assignments[reviewAssignmentID]
	if !ok {
		return fmt.Errorf("review assignment not found: %s", reviewAssignmentID)
	}
	ra.Status = status
	return nil
}

func (r *MemoryReviewsRepo) DeactivateReviewAssignment(_ context.Context, reviewAssignmentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ra, ok := r.assignments[reviewAssignmentID]
	if !ok {
		return fmt.Errorf("review assignment not found: %s", reviewAssignmentID)
	}
	ra.IsActive = false
	return nil
}

func (r *MemoryReviewsRepo) CreateComment(_ context.Context, c *domain.ReviewComment, audit *domain.ReviewAuditLog) (string, error) {
	if c.CommentText == "" {
		return "", fmt.Errorf("comment_text is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	row := *c
	row.CommentID = uuid.NewString()
	row.IsResolved = false
	row.ResolvedBy = sql.NullString{}
	row.ResolvedAt = sql.NullTime{}
	row.CreatedAt = time.Now()
	r.comments[row.CommentID] = &row

	r.appendAudit(audit)
	return row.CommentID, nil
}

func (r *MemoryReviewsRepo) GetComment(_ context.Context, commentID string) (*domain.ReviewComment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.comments[commentID]
	if !ok {
		return nil, fmt.Errorf("review comment not found: %s", commentID)
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryReviewsRepo) ResolveComment(_ context.Context, commentID, resolvedBy string, audit *domain.ReviewAuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.comments[commentID]
	if !ok || c.IsResolved {
		return fmt.Errorf("review comment not found or already resolved: %s", commentID)
	}
	c.IsResolved = true
	c.ResolvedBy = sql.NullString{String: resolvedBy, Valid: true}
	c.ResolvedAt = sql.NullTime{Time: time.Now(), Valid: true}

	r.appendAudit(audit)
	return nil
}

func (r *MemoryReviewsRepo) ListCommentsByResponse(_ context.Context, responseID string) ([]*domain.ReviewComment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := []*domain.ReviewComment{}
	for _, c := range r.comments {
		if c.ResponseID == responseID {
			cp := *c
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}
