package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"esgbridge-data/internal/domain"

	"github.com/google/uuid"
)

// MemoryQuestionAssignmentsRepo 责任分配内存实现（单元测试用）
type MemoryQuestionAssignmentsRepo struct {
	mu          sync.RWMutex
	assignments map[string]*domain.QuestionAssignment
	changes     map[string][]*domain.QuestionAssignmentChange
}

// NewMemoryQuestionAssignmentsRepo 创建内存责任分配Repository
func NewMemoryQuestionAssignmentsRepo() *MemoryQuestionAssignmentsRepo {
	return &MemoryQuestionAssignmentsRepo{
		assignments: map[string]*domain.QuestionAssignment{},
		changes:     map[string][]*domain.QuestionAssignmentChange{},
	}
}

// 确保实现了接口
var _ QuestionAssignmentsRepository = (*MemoryQuestionAssignmentsRepo)(nil)

func (r *MemoryQuestionAssignmentsRepo) CreateQuestionAssignment(_ context.Context, qa *domain.QuestionAssignment) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if qa.CampaignAssignmentID == "" || qa.AssignedUserID == "" {
		return "", fmt.Errorf("campaign_assignment_id and assigned_user_id are required")
	}
	switch qa.AssignmentType {
	case domain.AssignmentTypeQuestion:
		if !qa.QuestionID.Valid || qa.SectionName.Valid {
			return "", fmt.Errorf("question assignment requires question_id and no section_name")
		}
	case domain.AssignmentTypeSection:
		if !qa.SectionName.Valid || qa.QuestionID.Valid {
			return "", fmt.Errorf("section assignment requires section_name and no question_id")
		}
	default:
		return "", fmt.Errorf("invalid assignment type: %s", qa.AssignmentType)
	}

	row := *qa
	row.QuestionAssignmentID = uuid.NewString()
	row.CreatedAt = time.Now()
	r.assignments[row.QuestionAssignmentID] = &row
	return row.QuestionAssignmentID, nil
}

func (r *MemoryQuestionAssignmentsRepo) ListByCampaignAssignment(_ context.Context, campaignAssignmentID string) ([]*domain.QuestionAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := []*domain.QuestionAssignment{}
	for _, qa := range r.assignments {
		if qa.CampaignAssignmentID == campaignAssignmentID {
			cp := *qa
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (r *MemoryQuestionAssignmentsRepo) RemoveQuestionAssignment(_ context.Context, questionAssignmentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.assignments[questionAssignmentID]; !ok {
		return fmt.Errorf("question assignment not found: %s", questionAssignmentID)
	}
	delete(r.assignments, questionAssignmentID)
	return nil
}

func (r *MemoryQuestionAssignmentsRepo) RecordAssignmentChange(_ context.Context, change *domain.QuestionAssignmentChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := *change
	row.ChangeID = uuid.NewString()
	row.CreatedAt = time.Now()
	r.changes[change.QuestionAssignmentID] = append(r.changes[change.QuestionAssignmentID], &row)
	return nil
}

func (r *MemoryQuestionAssignmentsRepo) ListAssignmentChanges(_ context.Context, questionAssignmentID string) ([]*domain.QuestionAssignmentChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*domain.QuestionAssignmentChange, 0, len(r.changes[questionAssignmentID]))
	for _, c := range r.changes[questionAssignmentID] {
		cp := *c
		items = append(items, &cp)
	}
	return items, nil
}
