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

// MemoryQuestionsRepo 问卷/问题/依赖内存实现（单元测试用）
type MemoryQuestionsRepo struct {
	mu             sync.RWMutex
	questionnaires map[string]*domain.Questionnaire
	versions       map[string]*domain.QuestionnaireVersion
	questions      map[string]*domain.Question
	dependencies   map[string]*domain.QuestionDependency
	changes        map[string][]*domain.QuestionChange // questionID -> rows
}

// NewMemoryQuestionsRepo 创建内存问卷Repository
func NewMemoryQuestionsRepo() *MemoryQuestionsRepo {
	return &MemoryQuestionsRepo{
		questionnaires: map[string]*domain.Questionnaire{},
		versions:       map[string]*domain.QuestionnaireVersion{},
		questions:      map[string]*domain.Question{},
		dependencies:   map[string]*domain.QuestionDependency{},
		changes:        map[string][]*domain.QuestionChange{},
	}
}

// 确保实现了接口
var _ QuestionsRepository = (*MemoryQuestionsRepo)(nil)

func (r *MemoryQuestionsRepo) CreateQuestionnaire(_ context.Context, q *domain.Questionnaire) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q.OrganizationID == "" || q.Title == "" {
		return "", fmt.Errorf("organization_id and title are required")
	}
	row := *q
	row.QuestionnaireID = uuid.NewString()
	row.CreatedAt = time.Now()
	r.questionnaires[row.QuestionnaireID] = &row
	return row.QuestionnaireID, nil
}

func (r *MemoryQuestionsRepo) GetQuestionnaire(_ context.Context, questionnaireID string) (*domain.Questionnaire, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.questionnaires[questionnaireID]
	if !ok {
		return nil, fmt.Errorf("questionnaire not found: %s", questionnaireID)
	}
	cp := *q
	return &cp, nil
}

func (r *MemoryQuestionsRepo) CreateQuestionnaireVersion(_ context.Context, v *domain.QuestionnaireVersion) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v.QuestionnaireID == "" {
		return "", fmt.Errorf("questionnaire_id is required")
	}
	row := *v
	row.QuestionnaireVersionID = uuid.NewString()
	row.CreatedAt = time.Now()
	r.versions[row.QuestionnaireVersionID] = &row
	return row.QuestionnaireVersionID, nil
}

func (r *MemoryQuestionsRepo) GetQuestionnaireVersion(_ context.Context, versionID string) (*domain.QuestionnaireVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.versions[versionID]
	if !ok {
		return nil, fmt.Errorf("questionnaire version not found: %s", versionID)
	}
	cp := *v
	return &cp, nil
}

func (r *MemoryQuestionsRepo) CreateQuestion(_ context.Context, q *domain.Question) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q.QuestionnaireVersionID == "" || q.Section == "" || q.QuestionText == "" {
		return "", fmt.Errorf("questionnaire_version_id, section and question_text are required")
	}
	if !domain.ValidQuestionType(q.QuestionType) {
		return "", fmt.Errorf("invalid question type: %s", q.QuestionType)
	}
	row := *q
	row.QuestionID = uuid.NewString()
	row.CreatedAt = time.Now()
	r.questions[row.QuestionID] = &row
	return row.QuestionID, nil
}

func (r *MemoryQuestionsRepo) GetQuestion(_ context.Context, questionID string) (*domain.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.questions[questionID]
	if !ok {
		return nil, fmt.Errorf("question not found: %s", questionID)
	}
	cp := *q
	return &cp, nil
}

func (r *MemoryQuestionsRepo) UpdateQuestion(_ context.Context, q *domain.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.questions[q.QuestionID]
	if !ok {
		return fmt.Errorf("question not found: %s", q.QuestionID)
	}
	existing.QuestionText = q.QuestionText
	existing.IsRequired = q.IsRequired
	return nil
}

func (r *MemoryQuestionsRepo) ListQuestions(_ context.Context, questionnaireVersionID string) ([]*domain.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := []*domain.Question{}
	for _, q := range r.questions {
		if q.QuestionnaireVersionID == questionnaireVersionID {
			cp := *q
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Section != items[j].Section {
			return items[i].Section < items[j].Section
		}
		return items[i].DisplayOrder < items[j].DisplayOrder
	})
	return items, nil
}

func (r *MemoryQuestionsRepo) ListQuestionsBySection(_ context.Context, questionnaireVersionID, section string) ([]*domain.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := []*domain.Question{}
	for _, q := range r.questions {
		if q.QuestionnaireVersionID == questionnaireVersionID && q.Section == section {
			cp := *q
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].DisplayOrder < items[j].DisplayOrder
	})
	return items, nil
}

func (r *MemoryQuestionsRepo) AddDependency(_ context.Context, dep *domain.QuestionDependency) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if dep.QuestionID == "" || dep.DependsOnQuestionID == "" {
		return "", fmt.Errorf("question_id and depends_on_question_id are required")
	}
	if !domain.ValidDependencyCondition(dep.Condition) {
		return "", fmt.Errorf("invalid dependency condition: %s", dep.Condition)
	}
	row := *dep
	row.DependencyID = uuid.NewString()
	row.CreatedAt = time.Now()
	r.dependencies[row.DependencyID] = &row
	return row.DependencyID, nil
}

func (r *MemoryQuestionsRepo) ListDependencies(_ context.Context, questionnaireVersionID string) ([]*domain.QuestionDependency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := []*domain.QuestionDependency{}
	for _, dep := range r.dependencies {
		q, ok := r.questions[dep.QuestionID]
		if !ok || q.QuestionnaireVersionID != questionnaireVersionID {
			continue
		}
		cp := *dep
		items = append(items, &cp)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (r *MemoryQuestionsRepo) ListDependenciesForQuestion(_ context.Context, questionID string) ([]*domain.QuestionDependency, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := []*domain.QuestionDependency{}
	for _, dep := range r.dependencies {
		if dep.QuestionID == questionID {
			cp := *dep
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (r *MemoryQuestionsRepo) RecordQuestionChange(_ context.Context, change *domain.QuestionChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := *change
	row.ChangeID = uuid.NewString()
	row.CreatedAt = time.Now()
	r.changes[change.QuestionID] = append(r.changes[change.QuestionID], &row)
	return nil
}

func (r *MemoryQuestionsRepo) ListQuestionChanges(_ context.Context, questionID string) ([]*domain.QuestionChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*domain.QuestionChange, 0, len(r.changes[questionID]))
	for _, c := range r.changes[questionID] {
		cp := *c
		items = append(items, &cp)
	}
	return items, nil
}
