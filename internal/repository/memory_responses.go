package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/tenant"

	"github.com/google/uuid"
)

// MemoryResponsesRepo 响应Repository内存实现（单元测试用，DB 禁用时可兜底）
// 乐观锁语义与 Postgres 实现一致：版本不匹配返回 ConcurrentModificationError
type MemoryResponsesRepo struct {
	mu        sync.RWMutex
	responses map[string]*domain.Response                 // responseID -> row
	workflows map[string]*domain.ResponseWorkflow         // responseID -> shadow
	histories map[string][]*domain.ResponseStatusHistory  // responseID -> rows
	overrides map[string][]*domain.ResponseOverride       // responseID -> rows
	changes   map[string][]*domain.ResponseChange         // responseID -> rows
	files     map[string][]*domain.FileUpload             // responseID -> rows
	audit     *MemoryAuditRepo

	// assignmentOrgs 可选：campaignAssignmentID -> 目标组织，用于范围过滤
	assignmentOrgs map[string]string
}

// NewMemoryResponsesRepo 创建内存响应Repository
// audit 非空时，事务性写入携带的审计行会落到同一个内存审计仓库
func NewMemoryResponsesRepo(audit *MemoryAuditRepo) *MemoryResponsesRepo {
	return &MemoryResponsesRepo{
		responses:      map[string]*domain.Response{},
		workflows:      map[string]*domain.ResponseWorkflow{},
		histories:      map[string][]*domain.ResponseStatusHistory{},
		overrides:      map[string][]*domain.ResponseOverride{},
		changes:        map[string][]*domain.ResponseChange{},
		files:          map[string][]*domain.FileUpload{},
		audit:          audit,
		assignmentOrgs: map[string]string{},
	}
}

// 确保实现了接口
var _ ResponsesRepository = (*MemoryResponsesRepo)(nil)

// BindAssignmentOrg 注册活动分配的目标组织（测试里供 ListByAssignment 的范围过滤用）
func (r *MemoryResponsesRepo) BindAssignmentOrg(campaignAssignmentID, organizationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignmentOrgs[campaignAssignmentID] = organizationID
}

func (r *MemoryResponsesRepo) appendAudit(l *domain.ReviewAuditLog) {
	if r.audit == nil || l == nil {
		return
	}
	r.audit.append(l)
}

func cloneResponse(src *domain.Response) *domain.Response {
	cp := *src
	if src.OptionValues != nil {
		cp.OptionValues = append(cp.OptionValues[:0:0], src.OptionValues...)
	}
	return &cp
}

func (r *MemoryResponsesRepo) CreateResponse(_ context.Context, resp *domain.Response, audit *domain.ReviewAuditLog) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if resp.CampaignAssignmentID == "" || resp.QuestionID == "" || resp.ResponderID == "" {
		return "", fmt.Errorf("campaign_assignment_id, question_id and responder_id are required")
	}
	for _, existing := range r.responses {
		if existing.CampaignAssignmentID == resp.CampaignAssignmentID &&
			existing.QuestionID == resp.QuestionID &&
			existing.ResponderID == resp.ResponderID {
			return "", fmt.Errorf("response already exists for question %s", resp.QuestionID)
		}
	}

	now := time.Now()
	row := cloneResponse(resp)
	row.ResponseID = uuid.NewString()
	if row.Status == "" {
		row.Status = domain.ResponseNotStarted
	}
	if !domain.ValidResponseStatus(row.Status) {
		return "", fmt.Errorf("invalid response status: %s", row.Status)
	}
	row.Version = 1
	row.CreatedAt = now
	row.UpdatedAt = now
	r.responses[row.ResponseID] = row

	r.workflows[row.ResponseID] = &domain.ResponseWorkflow{
		ResponseID:           row.ResponseID,
		CampaignAssignmentID: row.CampaignAssignmentID,
		CurrentStatus:        row.Status,
		RevisionCount:        0,
		UpdatedAt:            now,
	}

	if audit != nil {
		audit.ResponseID = sql.NullString{String: row.ResponseID, Valid: true}
		r.appendAudit(audit)
	}
	return row.ResponseID, nil
}

func (r *MemoryResponsesRepo) GetResponse(_ context.Context, responseID string) (*domain.Response, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.responses[responseID]
	if !ok {
		return nil, fmt.Errorf("response not found: %s", responseID)
	}
	return cloneResponse(row), nil
}

func (r *MemoryResponsesRepo) GetByQuestionAndAssignment(_ context.Context, campaignAssignmentID, questionID, responderID string) (*domain.Response, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, row := range r.responses {
		if row.CampaignAssignmentID == campaignAssignmentID &&
			row.QuestionID == questionID &&
			row.ResponderID == responderID {
			return cloneResponse(row), nil
		}
	}
	return nil, fmt.Errorf("response not found for question %s", questionID)
}

func (r *MemoryResponsesRepo) ListByAssignment(_ context.Context, scope tenant.Scope, campaignAssignmentID string) ([]*domain.Response, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if scope.DenyAll {
		return []*domain.Response{}, nil
	}
	if !scope.Unrestricted {
		org, ok := r.assignmentOrgs[campaignAssignmentID]
		if ok && org != scope.OrganizationID {
			return []*domain.Response{}, nil
		}
	}

	items := []*domain.Response{}
	for _, row := range r.responses {
		if row.CampaignAssignmentID == campaignAssignmentID {
			items = append(items, cloneResponse(row))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (r *MemoryResponsesRepo) ListByAssignmentAndQuestions(_ context.Context, campaignAssignmentID string, questionIDs []string) ([]*domain.Response, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := map[string]bool{}
	for _, id := range questionIDs {
		wanted[id] = true
	}

	items := []*domain.Response{}
	for _, row := range r.responses {
		if row.CampaignAssignmentID == campaignAssignmentID && wanted[row.QuestionID] {
			items = append(items, cloneResponse(row))
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

// updateLocked 带版本校验的行替换；调用方持有写锁
func (r *MemoryResponsesRepo) updateLocked(resp *domain.Response, expectedVersion int) error {
	row, ok := r.responses[resp.ResponseID]
	if !ok {
		return fmt.Errorf("response not found: %s", resp.ResponseID)
	}
	if row.Version != expectedVersion {
		return &domain.ConcurrentModificationError{ResponseID: resp.ResponseID}
	}
	next := cloneResponse(resp)
	next.Version = expectedVersion + 1
	next.CreatedAt = row.CreatedAt
	next.UpdatedAt = time.Now()
	r.responses[resp.ResponseID] = next
	return nil
}

func (r *MemoryResponsesRepo) appendHistoryLocked(h *domain.ResponseStatusHistory) {
	row := *h
	row.HistoryID = uuid.NewString()
	row.CreatedAt = time.Now()
	r.histories[h.ResponseID] = append(r.histories[h.ResponseID], &row)
}

func (r *MemoryResponsesRepo) upsertWorkflowLocked(w *domain.ResponseWorkflow) {
	row := *w
	row.UpdatedAt = time.Now()
	r.workflows[w.ResponseID] = &row
}

func (r *MemoryResponsesRepo) ApplyTransition(_ context.Context, expectedVersion int, t ResponseTransition) error {
	if t.Response == nil || t.History == nil || t.Audit == nil || t.Workflow == nil {
		return fmt.Errorf("transition requires response, history, audit and workflow rows")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.updateLocked(t.Response, expectedVersion); err != nil {
		return err
	}
	r.appendHistoryLocked(t.History)
	r.upsertWorkflowLocked(t.Workflow)
	r.appendAudit(t.Audit)
	return nil
}

func (r *MemoryResponsesRepo) SaveValue(_ context.Context, expectedVersion int, s ResponseValueSave) error {
	if s.Response == nil || s.Change == nil || s.Audit == nil {
		return fmt.Errorf("value save requires response, change and audit rows")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.updateLocked(s.Response, expectedVersion); err != nil {
		return err
	}
	change := *s.Change
	change.ChangeID = uuid.NewString()
	change.CreatedAt = time.Now()
	r.changes[s.Change.ResponseID] = append(r.changes[s.Change.ResponseID], &change)

	if s.History != nil {
		r.appendHistoryLocked(s.History)
	}
	if s.Workflow != nil {
		r.upsertWorkflowLocked(s.Workflow)
	}
	r.appendAudit(s.Audit)
	return nil
}

func (r *MemoryResponsesRepo) ApplyOverride(_ context.Context, expectedVersion int, o ResponseOverrideSave) error {
	if o.Response == nil || o.Override == nil || o.Audit == nil {
		return fmt.Errorf("override requires response, override and audit rows")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.updateLocked(o.Response, expectedVersion); err != nil {
		return err
	}
	row := *o.Override
	row.OverrideID = uuid.NewString()
	row.CreatedAt = time.Now()
	r.overrides[o.Override.ResponseID] = append(r.overrides[o.Override.ResponseID], &row)
	r.appendAudit(o.Audit)
	return nil
}

func (r *MemoryResponsesRepo) GetWorkflow(_ context.Context, responseID string) (*domain.ResponseWorkflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workflows[responseID]
	if !ok {
		return nil, fmt.Errorf("response workflow not found: %s", responseID)
	}
	cp := *w
	return &cp, nil
}

func (r *MemoryResponsesRepo) ListStatusHistory(_ context.Context, responseID string) ([]*domain.ResponseStatusHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*domain.ResponseStatusHistory, 0, len(r.histories[responseID]))
	for _, h := range r.histories[responseID] {
		cp := *h
		items = append(items, &cp)
	}
	return items, nil
}

func (r *MemoryResponsesRepo) ListOverrides(_ context.Context, responseID string) ([]*domain.ResponseOverride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*domain.ResponseOverride, 0, len(r.overrides[responseID]))
	for _, o := range r.overrides[responseID] {
		cp := *o
		items = append(items, &cp)
	}
	return items, nil
}

func (r *MemoryResponsesRepo) ListChanges(_ context.Context, responseID string) ([]*domain.ResponseChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*domain.ResponseChange, 0, len(r.changes[responseID]))
	for _, c := range r.changes[responseID] {
		cp := *c
		items = append(items, &cp)
	}
	return items, nil
}

func (r *MemoryResponsesRepo) AttachFile(_ context.Context, f *domain.FileUpload, audit *domain.ReviewAuditLog) (string, error) {
	if f.ResponseID == "" || f.StoragePath == "" {
		return "", fmt.Errorf("response_id and storage_path are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	row := *f
	row.FileID = uuid.NewString()
	row.CreatedAt = time.Now()
	r.files[f.ResponseID] = append(r.files[f.ResponseID], &row)
	r.appendAudit(audit)
	return row.FileID, nil
}

func (r *MemoryResponsesRepo) ListFiles(_ context.Context, responseID string) ([]*domain.FileUpload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*domain.FileUpload, 0, len(r.files[responseID]))
	for _, f := range r.files[responseID] {
		cp := *f
		items = append(items, &cp)
	}
	return items, nil
}
