package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/repository"
	"esgbridge-data/internal/tenant"

	"go.uber.org/zap"
)

// QuestionService 问卷内容服务接口
type QuestionService interface {
	CreateQuestionnaire(ctx context.Context, req CreateQuestionnaireRequest) (string, error)
	CreateVersion(ctx context.Context, req CreateVersionRequest) (string, error)
	CreateQuestion(ctx context.Context, req CreateQuestionRequest) (string, error)
	UpdateQuestion(ctx context.Context, req UpdateQuestionRequest) error
	// AddDependency 建依赖边；成环的边在这里拒绝
	AddDependency(ctx context.Context, req AddDependencyRequest) (string, error)
	// EvaluateVisibility 按当前响应取值求值整版问卷的问题可见性
	EvaluateVisibility(ctx context.Context, campaignAssignmentID string) (map[string]bool, error)
	// AssignQuestion 问题级/章节级责任分配
	AssignQuestion(ctx context.Context, req AssignQuestionRequest) (string, error)
	RemoveQuestionAssignment(ctx context.Context, req RemoveQuestionAssignmentRequest) error
}

// CreateQuestionnaireRequest 创建问卷请求
type CreateQuestionnaireRequest struct {
	Identity    tenant.Identity
	Title       string
	Description string
}

// CreateVersionRequest 创建问卷版本请求
type CreateVersionRequest struct {
	Identity        tenant.Identity
	QuestionnaireID string
	VersionNumber   int
}

// CreateQuestionRequest 创建问题请求
type CreateQuestionRequest struct {
	Identity               tenant.Identity
	QuestionnaireVersionID string
	Section                string
	QuestionText           string
	QuestionType           string
	IsRequired             bool
	DisplayOrder           int
}

// UpdateQuestionRequest 修改问题请求（变更前后快照落 question_changes）
type UpdateQuestionRequest struct {
	Identity     tenant.Identity
	QuestionID   string
	QuestionText string
	IsRequired   *bool
	Reason       string
}

// AddDependencyRequest 建依赖边请求
type AddDependencyRequest struct {
	Identity            tenant.Identity
	QuestionID          string
	DependsOnQuestionID string
	Condition           string
	ConditionValue      string
}

// AssignQuestionRequest 责任分配请求（问题/章节二选一）
type AssignQuestionRequest struct {
	Identity             tenant.Identity
	CampaignAssignmentID string
	AssignedUserID       string
	QuestionID           string
	SectionName          string
}

// RemoveQuestionAssignmentRequest 撤销责任分配请求
type RemoveQuestionAssignmentRequest struct {
	Identity             tenant.Identity
	CampaignAssignmentID string
	QuestionAssignmentID string
}

// questionService 问卷内容服务实现
type questionService struct {
	questionsRepo   repository.QuestionsRepository
	assignmentsRepo repository.QuestionAssignmentsRepository
	campaignsRepo   repository.CampaignsRepository
	responsesRepo   repository.ResponsesRepository
	auditRepo       repository.AuditRepository
	logger          *zap.Logger
}

// NewQuestionService 创建问卷内容服务
func NewQuestionService(
	questionsRepo repository.QuestionsRepository,
	assignmentsRepo repository.QuestionAssignmentsRepository,
	campaignsRepo repository.CampaignsRepository,
	responsesRepo repository.ResponsesRepository,
	auditRepo repository.AuditRepository,
	logger *zap.Logger,
) QuestionService {
	return &questionService{
		questionsRepo:   questionsRepo,
		assignmentsRepo: assignmentsRepo,
		campaignsRepo:   campaignsRepo,
		responsesRepo:   responsesRepo,
		auditRepo:       auditRepo,
		logger:          logger,
	}
}

func (s *questionService) CreateQuestionnaire(ctx context.Context, req CreateQuestionnaireRequest) (string, error) {
	if req.Title == "" {
		return "", &domain.ValidationError{Field: "title", Reason: "title is required"}
	}
	scope := tenant.Resolve(req.Identity)
	if scope.DenyAll {
		return "", &domain.TenantViolationError{}
	}
	return s.questionsRepo.CreateQuestionnaire(ctx, &domain.Questionnaire{
		OrganizationID: req.Identity.OrganizationID,
		Title:          req.Title,
		Description:    nullableString(req.Description),
	})
}

func (s *questionService) CreateVersion(ctx context.Context, req CreateVersionRequest) (string, error) {
	q, err := s.questionsRepo.GetQuestionnaire(ctx, req.QuestionnaireID)
	if err != nil {
		return "", err
	}
	scope := tenant.Resolve(req.Identity)
	if err := scope.Check(q.OrganizationID); err != nil {
		return "", err
	}
	return s.questionsRepo.CreateQuestionnaireVersion(ctx, &domain.QuestionnaireVersion{
		QuestionnaireID: req.QuestionnaireID,
		VersionNumber:   req.VersionNumber,
	})
}

func (s *questionService) CreateQuestion(ctx context.Context, req CreateQuestionRequest) (string, error) {
	if !domain.ValidQuestionType(req.QuestionType) {
		return "", &domain.ValidationError{Field: "question_type", Reason: fmt.Sprintf("invalid question type: %s", req.QuestionType)}
	}
	scope := tenant.Resolve(req.Identity)
	if scope.DenyAll {
		return "", &domain.TenantViolationError{}
	}
	return s.questionsRepo.CreateQuestion(ctx, &domain.Question{
		OrganizationID:         req.Identity.OrganizationID,
		QuestionnaireVersionID: req.QuestionnaireVersionID,
		Section:                req.Section,
		QuestionText:           req.QuestionText,
		QuestionType:           req.QuestionType,
		IsRequired:             req.IsRequired,
		DisplayOrder:           req.DisplayOrder,
	})
}

// UpdateQuestion 修改问题文本/必填标记；变更前后快照落 question_changes
func (s *questionService) UpdateQuestion(ctx context.Context, req UpdateQuestionRequest) error {
	q, err := s.questionsRepo.GetQuestion(ctx, req.QuestionID)
	if err != nil {
		return err
	}
	scope := tenant.Resolve(req.Identity)
	if err := scope.Check(q.OrganizationID); err != nil {
		return err
	}

	oldSnapshot, _ := json.Marshal(map[string]any{
		"question_text": q.QuestionText,
		"is_required":   q.IsRequired,
	})
	if req.QuestionText != "" {
		q.QuestionText = req.QuestionText
	}
	if req.IsRequired != nil {
		q.IsRequired = *req.IsRequired
	}
	newSnapshot, _ := json.Marshal(map[string]any{
		"question_text": q.QuestionText,
		"is_required":   q.IsRequired,
	})

	if err := s.questionsRepo.UpdateQuestion(ctx, q); err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	return s.questionsRepo.RecordQuestionChange(ctx, &domain.QuestionChange{
		QuestionID: req.QuestionID,
		ChangedBy:  req.Identity.UserID,
		OldValue:   oldSnapshot,
		NewValue:   newSnapshot,
		Reason:     nullableString(req.Reason),
	})
}

// AddDependency 建依赖边；通过会成环的边直接拒绝，可见性求值因此必然可终止
func (s *questionService) AddDependency(ctx context.Context, req AddDependencyRequest) (string, error) {
	if !domain.ValidDependencyCondition(req.Condition) {
		return "", &domain.ValidationError{Field: "condition", Reason: fmt.Sprintf("invalid condition: %s", req.Condition)}
	}
	if (req.Condition == domain.ConditionEquals || req.Condition == domain.ConditionNotEquals) && req.ConditionValue == "" {
		return "", &domain.ValidationError{Field: "condition_value", Reason: "condition value is required for equals/not_equals"}
	}
	if req.QuestionID == req.DependsOnQuestionID {
		return "", &domain.ValidationError{Field: "depends_on_question_id", Reason: "a question cannot depend on itself"}
	}

	q, err := s.questionsRepo.GetQuestion(ctx, req.QuestionID)
	if err != nil {
		return "", err
	}
	target, err := s.questionsRepo.GetQuestion(ctx, req.DependsOnQuestionID)
	if err != nil {
		return "", err
	}
	if q.QuestionnaireVersionID != target.QuestionnaireVersionID {
		return "", &domain.ValidationError{Field: "depends_on_question_id", Reason: "dependencies must stay within one questionnaire version"}
	}
	scope := tenant.Resolve(req.Identity)
	if err := scope.Check(q.OrganizationID); err != nil {
		return "", err
	}

	// 环检测：沿现有边从 depends_on 出发能走回 question 即成环
	deps, err := s.questionsRepo.ListDependencies(ctx, q.QuestionnaireVersionID)
	if err != nil {
		return "", fmt.Errorf("failed to list dependencies: %w", err)
	}
	edges := map[string][]string{}
	for _, dep := range deps {
		edges[dep.QuestionID] = append(edges[dep.QuestionID], dep.DependsOnQuestionID)
	}
	edges[req.QuestionID] = append(edges[req.QuestionID], req.DependsOnQuestionID)
	if hasCycle(edges, req.QuestionID) {
		return "", &domain.ValidationError{Field: "depends_on_question_id", Reason: "dependency would create a cycle"}
	}

	return s.questionsRepo.AddDependency(ctx, &domain.QuestionDependency{
		QuestionID:          req.QuestionID,
		DependsOnQuestionID: req.DependsOnQuestionID,
		Condition:           req.Condition,
		ConditionValue:      nullableString(req.ConditionValue),
	})
}

// hasCycle 从 start 出发做 DFS，走回 start 即成环
func hasCycle(edges map[string][]string, start string) bool {
	visited := map[string]bool{}
	var walk func(node string) bool
	walk = func(node string) bool {
		for _, next := range edges[node] {
			if next == start {
				return true
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			if walk(next) {
				return true
			}
		}
		return false
	}
	return walk(start)
}

// EvaluateVisibility 按当前响应取值求值问题可见性
// 无依赖 ⇒ 可见；有依赖 ⇒ 全部条件满足才可见。被隐藏问题的取值不参与条件判断
func (s *questionService) EvaluateVisibility(ctx context.Context, campaignAssignmentID string) (map[string]bool, error) {
	ca, err := s.campaignsRepo.GetAssignmentUnscoped(ctx, campaignAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign assignment: %w", err)
	}
	questions, err := s.questionsRepo.ListQuestions(ctx, ca.QuestionnaireVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	deps, err := s.questionsRepo.ListDependencies(ctx, ca.QuestionnaireVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}
	responses, err := s.responsesRepo.ListByAssignment(ctx, tenant.Scope{Unrestricted: true}, campaignAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}

	byQuestion := map[string][]*domain.QuestionDependency{}
	for _, dep := range deps {
		byQuestion[dep.QuestionID] = append(byQuestion[dep.QuestionID], dep)
	}
	questionTypes := map[string]string{}
	for _, q := range questions {
		questionTypes[q.QuestionID] = q.QuestionType
	}
	responseByQuestion := map[string]*domain.Response{}
	for _, resp := range responses {
		responseByQuestion[resp.QuestionID] = resp
	}

	// 依赖图无环（建边时保证），递归求值带备忘即可终止
	visibility := map[string]bool{}
	var visible func(questionID string) bool
	visible = func(questionID string) bool {
		if v, ok := visibility[questionID]; ok {
			return v
		}
		result := true
		for _, dep := range byQuestion[questionID] {
			if !visible(dep.DependsOnQuestionID) {
				result = false
				break
			}
			if !conditionMet(dep, responseByQuestion[dep.DependsOnQuestionID], questionTypes[dep.DependsOnQuestionID]) {
				result = false
				break
			}
		}
		visibility[questionID] = result
		return result
	}
	for _, q := range questions {
		visible(q.QuestionID)
	}
	return visibility, nil
}

// conditionMet 单条依赖条件求值
func conditionMet(dep *domain.QuestionDependency, resp *domain.Response, questionType string) bool {
	answered := resp != nil && resp.HasValue(questionType)
	switch dep.Condition {
	case domain.ConditionIsAnswered:
		return answered
	case domain.ConditionIsNotAnswered:
		return !answered
	case domain.ConditionEquals:
		return answered && valueEquals(resp, questionType, dep.ConditionValue.String)
	case domain.ConditionNotEquals:
		return answered && !valueEquals(resp, questionType, dep.ConditionValue.String)
	}
	return false
}

// valueEquals 取值与条件值的字符串表示比较
func valueEquals(resp *domain.Response, questionType, want string) bool {
	switch questionType {
	case domain.QuestionTypeText, domain.QuestionTypeFile:
		return resp.TextValue.Valid && resp.TextValue.String == want
	case domain.QuestionTypeNumeric:
		return resp.NumericValue.Valid && fmt.Sprintf("%g", resp.NumericValue.Float64) == want
	case domain.QuestionTypeBoolean:
		return resp.BoolValue.Valid && fmt.Sprintf("%t", resp.BoolValue.Bool) == want
	case domain.QuestionTypeDate:
		return resp.DateValue.Valid && resp.DateValue.Time.Format("2006-01-02") == want
	case domain.QuestionTypeMultiSelect:
		for _, opt := range resp.OptionValues {
			if opt == want {
				return true
			}
		}
		return false
	}
	return false
}

// AssignQuestion 问题级/章节级责任分配
func (s *questionService) AssignQuestion(ctx context.Context, req AssignQuestionRequest) (string, error) {
	if req.AssignedUserID == "" {
		return "", &domain.ValidationError{Field: "assigned_user_id", Reason: "an assignee is required"}
	}
	if (req.QuestionID == "") == (req.SectionName == "") {
		return "", &domain.ValidationError{Field: "question_id", Reason: "exactly one of question or section must be set"}
	}
	ca, err := s.campaignsRepo.GetAssignmentUnscoped(ctx, req.CampaignAssignmentID)
	if err != nil {
		return "", fmt.Errorf("failed to get campaign assignment: %w", err)
	}
	scope := tenant.Resolve(req.Identity)
	if err := scope.Check(ca.OrganizationID); err != nil {
		return "", err
	}

	var qa *domain.QuestionAssignment
	if req.QuestionID != "" {
		qa = domain.NewQuestionLevelAssignment(req.CampaignAssignmentID, req.QuestionID, req.AssignedUserID, req.Identity.UserID)
	} else {
		qa = domain.NewSectionLevelAssignment(req.CampaignAssignmentID, req.SectionName, req.AssignedUserID, req.Identity.UserID)
	}

	questionAssignmentID, err := s.assignmentsRepo.CreateQuestionAssignment(ctx, qa)
	if err != nil {
		return "", fmt.Errorf("failed to create question assignment: %w", err)
	}

	if err := s.assignmentsRepo.RecordAssignmentChange(ctx, &domain.QuestionAssignmentChange{
		QuestionAssignmentID: questionAssignmentID,
		ChangedBy:            req.Identity.UserID,
		Action:               "created",
		Details:              sql.NullString{String: fmt.Sprintf("assigned to %s", req.AssignedUserID), Valid: true},
	}); err != nil {
		s.logger.Warn("failed to record assignment change", zap.Error(err))
	}
	if err := s.auditRepo.Append(ctx, &domain.ReviewAuditLog{
		ActorID:              req.Identity.UserID,
		CampaignAssignmentID: req.CampaignAssignmentID,
		QuestionID:           nullableString(req.QuestionID),
		Action:               domain.AuditActionAssignmentAssigned,
		Details:              sql.NullString{String: fmt.Sprintf("assigned to %s", req.AssignedUserID), Valid: true},
	}); err != nil {
		s.logger.Warn("failed to record assignment audit", zap.Error(err))
	}
	return questionAssignmentID, nil
}

// RemoveQuestionAssignment 撤销责任分配，责任回落到章节级/lead
func (s *questionService) RemoveQuestionAssignment(ctx context.Context, req RemoveQuestionAssignmentRequest) error {
	ca, err := s.campaignsRepo.GetAssignmentUnscoped(ctx, req.CampaignAssignmentID)
	if err != nil {
		return fmt.Errorf("failed to get campaign assignment: %w", err)
	}
	scope := tenant.Resolve(req.Identity)
	if err := scope.Check(ca.OrganizationID); err != nil {
		return err
	}

	if err := s.assignmentsRepo.RecordAssignmentChange(ctx, &domain.QuestionAssignmentChange{
		QuestionAssignmentID: req.QuestionAssignmentID,
		ChangedBy:            req.Identity.UserID,
		Action:               "removed",
	}); err != nil {
		s.logger.Warn("failed to record assignment change", zap.Error(err))
	}
	return s.assignmentsRepo.RemoveQuestionAssignment(ctx, req.QuestionAssignmentID)
}
