package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/repository"
	"esgbridge-data/internal/tenant"

	"go.uber.org/zap"
)

// WorkflowService 响应工作流服务接口
// 所有写操作都走乐观锁：携带调用方读到的 version，冲突时返回 ConcurrentModificationError
type WorkflowService interface {
	// SaveDraft 保存草稿取值；响应不存在时创建
	SaveDraft(ctx context.Context, req SaveDraftRequest) (*domain.Response, error)
	// MarkAnswered 标记已作答（draft -> answered，要求已有取值）
	MarkAnswered(ctx context.Context, req TransitionRequest) (*domain.Response, error)
	// Submit 提交送审（draft/answered/pre_populated -> submitted_for_review）
	Submit(ctx context.Context, req TransitionRequest) (*domain.Response, error)
	// BeginReview 审核人开始审核（submitted_for_review -> under_review）
	BeginReview(ctx context.Context, req ReviewActionRequest) (*domain.Response, error)
	// RequestChanges 审核人退回（under_review -> changes_requested，理由必填）
	// 退回后停在 changes_requested，责任人下一次保存草稿时重新开放编辑
	RequestChanges(ctx context.Context, req ReviewActionRequest) (*domain.Response, error)
	// Approve 审核通过（under_review -> review_approved）
	Approve(ctx context.Context, req ReviewActionRequest) (*domain.Response, error)
	// Finalize 终态晋升（review_approved -> final）
	Finalize(ctx context.Context, req TransitionRequest) (*domain.Response, error)
	// Override 主责任人改写他人响应取值（理由必填，状态不变）
	Override(ctx context.Context, req OverrideRequest) (*domain.Response, error)
	// AcceptPrefill 接受预填取值（pre_populated 响应直接送审的快捷路径之前，先显式接受）
	AcceptPrefill(ctx context.Context, req TransitionRequest) (*domain.Response, error)
	// Delegate 转交问题责任
	Delegate(ctx context.Context, req DelegateRequest) (string, error)
	// CompleteDelegation 关闭转交，责任回落
	CompleteDelegation(ctx context.Context, req CompleteDelegationRequest) error
	// AttachFile 给响应挂文件引用
	AttachFile(ctx context.Context, req AttachFileRequest) (string, error)
}

// SaveDraftRequest 保存草稿请求
type SaveDraftRequest struct {
	Identity             tenant.Identity
	CampaignAssignmentID string
	QuestionID           string
	Value                domain.ResponseValue
	// ExpectedVersion 响应已存在时必填；为 0 表示期望创建新响应
	ExpectedVersion int
}

// TransitionRequest 由责任人发起的状态迁移请求
type TransitionRequest struct {
	Identity        tenant.Identity
	ResponseID      string
	ExpectedVersion int
}

// ReviewActionRequest 由审核人发起的动作请求
type ReviewActionRequest struct {
	Identity        tenant.Identity
	ResponseID      string
	ExpectedVersion int
	// Reason 退回时必填，其余动作可选
	Reason string
}

// OverrideRequest 主责任人改写请求
type OverrideRequest struct {
	Identity        tenant.Identity
	ResponseID      string
	ExpectedVersion int
	Value           domain.ResponseValue
	Reason          string
}

// DelegateRequest 转交请求
type DelegateRequest struct {
	Identity             tenant.Identity
	CampaignAssignmentID string
	QuestionID           string
	ToUserID             string
	Note                 string
}

// CompleteDelegationRequest 关闭转交请求
type CompleteDelegationRequest struct {
	Identity     tenant.Identity
	DelegationID string
}

// AttachFileRequest 文件引用挂载请求
type AttachFileRequest struct {
	Identity        tenant.Identity
	ResponseID      string
	FileName        string
	StoragePath     string
	ContentType     string
	SizeBytes       int64
}

// workflowService 响应工作流服务实现
type workflowService struct {
	responsesRepo   repository.ResponsesRepository
	campaignsRepo   repository.CampaignsRepository
	questionsRepo   repository.QuestionsRepository
	reviewsRepo     repository.ReviewsRepository
	delegationsRepo repository.DelegationsRepository
	auditRepo       repository.AuditRepository
	resolver        ResolverService
	logger          *zap.Logger
}

// NewWorkflowService 创建响应工作流服务
func NewWorkflowService(
	responsesRepo repository.ResponsesRepository,
	campaignsRepo repository.CampaignsRepository,
	questionsRepo repository.QuestionsRepository,
	reviewsRepo repository.ReviewsRepository,
	delegationsRepo repository.DelegationsRepository,
	auditRepo repository.AuditRepository,
	resolver ResolverService,
	logger *zap.Logger,
) WorkflowService {
	return &workflowService{
		responsesRepo:   responsesRepo,
		campaignsRepo:   campaignsRepo,
		questionsRepo:   questionsRepo,
		reviewsRepo:     reviewsRepo,
		delegationsRepo: delegationsRepo,
		auditRepo:       auditRepo,
		resolver:        resolver,
		logger:          logger,
	}
}

// guardAssignment 写路径租户守卫：目标组织或活动归属组织任一匹配即可
// 责任人属于目标组织，审核人属于活动发起方；谁真正有权操作由
// requireResponsible / requireReviewer 再行判定
func (s *workflowService) guardAssignment(ctx context.Context, id tenant.Identity, campaignAssignmentID string) (*domain.CampaignAssignment, error) {
	ca, err := s.campaignsRepo.GetAssignmentUnscoped(ctx, campaignAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign assignment: %w", err)
	}
	scope := tenant.Resolve(id)
	if scope.Allows(ca.OrganizationID) {
		return ca, nil
	}
	c, err := s.campaignsRepo.GetCampaign(ctx, tenant.Scope{Unrestricted: true}, ca.CampaignID)
	if err == nil && scope.Allows(c.OrganizationID) {
		return ca, nil
	}
	return nil, &domain.TenantViolationError{}
}

// requireResponsible 操作者必须是当前解析出的责任人
func (s *workflowService) requireResponsible(ctx context.Context, id tenant.Identity, campaignAssignmentID, questionID, action string) error {
	res, err := s.resolver.ResolveResponsible(ctx, campaignAssignmentID, questionID)
	if err != nil {
		return err
	}
	if res.UserID != id.UserID {
		return &domain.UnauthorizedActorError{ActorID: id.UserID, Action: action}
	}
	return nil
}

// requireReviewer 操作者必须持有覆盖该问题的活跃审核分配
func (s *workflowService) requireReviewer(ctx context.Context, id tenant.Identity, resp *domain.Response, action string) (*domain.ReviewAssignment, error) {
	question, err := s.questionsRepo.GetQuestion(ctx, resp.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	reviews, err := s.reviewsRepo.ListActiveByCampaignAssignment(ctx, resp.CampaignAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list review assignments: %w", err)
	}
	for _, ra := range reviews {
		if ra.ReviewerID == id.UserID && ra.Covers(question) {
			return ra, nil
		}
	}
	return nil, &domain.UnauthorizedActorError{ActorID: id.UserID, Action: action}
}

// SaveDraft 保存草稿取值；响应不存在时创建
func (s *workflowService) SaveDraft(ctx context.Context, req SaveDraftRequest) (*domain.Response, error) {
	// 1. 租户守卫 + 责任人校验
	if _, err := s.guardAssignment(ctx, req.Identity, req.CampaignAssignmentID); err != nil {
		return nil, err
	}
	if err := s.requireResponsible(ctx, req.Identity, req.CampaignAssignmentID, req.QuestionID, "save_draft"); err != nil {
		return nil, err
	}

	// 2. 取值与问题类型匹配
	question, err := s.questionsRepo.GetQuestion(ctx, req.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	if req.Value.IsEmpty() {
		return nil, &domain.ValidationError{Field: "value", Reason: "no value provided"}
	}
	if !req.Value.MatchesType(question.QuestionType) {
		return nil, &domain.ValidationError{Field: "value", Reason: fmt.Sprintf("value does not match question type %s", question.QuestionType)}
	}

	// 3. 已存在则更新，否则创建
	resp, err := s.responsesRepo.GetByQuestionAndAssignment(ctx, req.CampaignAssignmentID, req.QuestionID, req.Identity.UserID)
	if err != nil {
		return s.createDraft(ctx, req, question)
	}
	return s.updateDraft(ctx, req, resp)
}

func (s *workflowService) createDraft(ctx context.Context, req SaveDraftRequest, question *domain.Question) (*domain.Response, error) {
	resp := &domain.Response{
		CampaignAssignmentID: req.CampaignAssignmentID,
		QuestionID:           req.QuestionID,
		ResponderID:          req.Identity.UserID,
		Status:               domain.ResponseDraft,
	}
	req.Value.ApplyTo(resp)

	audit := &domain.ReviewAuditLog{
		ActorID:              req.Identity.UserID,
		CampaignAssignmentID: req.CampaignAssignmentID,
		QuestionID:           sql.NullString{String: req.QuestionID, Valid: true},
		Action:               domain.AuditActionValueSaved,
		ToStatus:             sql.NullString{String: domain.ResponseDraft, Valid: true},
		Details:              sql.NullString{String: string(resp.ValueSnapshot()), Valid: true},
	}
	responseID, err := s.responsesRepo.CreateResponse(ctx, resp, audit)
	if err != nil {
		return nil, fmt.Errorf("failed to create response: %w", err)
	}

	created, err := s.responsesRepo.GetResponse(ctx, responseID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload response: %w", err)
	}
	s.logger.Info("draft response created",
		zap.String("response_id", responseID),
		zap.String("question_id", req.QuestionID))
	return created, nil
}

func (s *workflowService) updateDraft(ctx context.Context, req SaveDraftRequest, resp *domain.Response) (*domain.Response, error) {
	// 编辑只在可编辑状态允许；changes_requested 下的保存先迁回 draft
	next := *resp
	var history *domain.ResponseStatusHistory
	var workflow *domain.ResponseWorkflow
	switch resp.Status {
	case domain.ResponseDraft, domain.ResponseAnswered:
		next.Status = domain.ResponseDraft
	case domain.ResponseNotStarted, domain.ResponsePrePopulated, domain.ResponseChangesRequested:
		if !domain.CanTransition(resp.Status, domain.ResponseDraft) {
			return nil, &domain.IllegalTransitionError{From: resp.Status, To: domain.ResponseDraft}
		}
		next.Status = domain.ResponseDraft
	default:
		// submitted_for_review/under_review/review_approved/final 下禁止编辑
		return nil, &domain.IllegalTransitionError{From: resp.Status, To: domain.ResponseDraft}
	}

	oldValue := resp.ValueSnapshot()
	req.Value.ApplyTo(&next)
	newValue := next.ValueSnapshot()

	if next.Status != resp.Status {
		history = &domain.ResponseStatusHistory{
			ResponseID: resp.ResponseID,
			FromStatus: resp.Status,
			ToStatus:   next.Status,
			ChangedBy:  req.Identity.UserID,
		}
		wf, err := s.responsesRepo.GetWorkflow(ctx, resp.ResponseID)
		if err != nil {
			return nil, err
		}
		wf.CurrentStatus = next.Status
		workflow = wf
	}

	save := repository.ResponseValueSave{
		Response: &next,
		Change: &domain.ResponseChange{
			ResponseID: resp.ResponseID,
			ChangedBy:  req.Identity.UserID,
			OldValue:   oldValue,
			NewValue:   newValue,
		},
		History: history,
		Audit: &domain.ReviewAuditLog{
			ActorID:              req.Identity.UserID,
			CampaignAssignmentID: resp.CampaignAssignmentID,
			QuestionID:           sql.NullString{String: resp.QuestionID, Valid: true},
			ResponseID:           sql.NullString{String: resp.ResponseID, Valid: true},
			Action:               domain.AuditActionValueSaved,
			FromStatus:           sql.NullString{String: resp.Status, Valid: true},
			ToStatus:             sql.NullString{String: next.Status, Valid: true},
			Details:              sql.NullString{String: string(newValue), Valid: true},
		},
		Workflow: workflow,
	}
	if err := s.responsesRepo.SaveValue(ctx, req.ExpectedVersion, save); err != nil {
		return nil, err
	}
	return s.responsesRepo.GetResponse(ctx, resp.ResponseID)
}

// transition 责任人侧状态迁移的共用路径
func (s *workflowService) transition(ctx context.Context, id tenant.Identity, responseID string, expectedVersion int, to, reason, action string, byReviewer bool, reviewAssignmentID string) (*domain.Response, error) {
	resp, err := s.responsesRepo.GetResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.guardAssignment(ctx, id, resp.CampaignAssignmentID); err != nil {
		return nil, err
	}
	if !domain.CanTransition(resp.Status, to) {
		return nil, &domain.IllegalTransitionError{From: resp.Status, To: to}
	}

	next := *resp
	next.Status = to
	if to == domain.ResponseSubmittedForReview {
		next.SubmittedAt = sql.NullTime{Time: time.Now(), Valid: true}
	}

	wf, err := s.responsesRepo.GetWorkflow(ctx, responseID)
	if err != nil {
		return nil, err
	}
	wf.CurrentStatus = to
	if byReviewer {
		wf.CurrentReviewerID = sql.NullString{String: id.UserID, Valid: true}
	}
	if to == domain.ResponseChangesRequested {
		wf.RevisionCount++
	}

	t := repository.ResponseTransition{
		Response: &next,
		History: &domain.ResponseStatusHistory{
			ResponseID: responseID,
			FromStatus: resp.Status,
			ToStatus:   to,
			ChangedBy:  id.UserID,
			Reason:     nullableString(reason),
		},
		Audit: &domain.ReviewAuditLog{
			ActorID:              id.UserID,
			CampaignAssignmentID: resp.CampaignAssignmentID,
			QuestionID:           sql.NullString{String: resp.QuestionID, Valid: true},
			ResponseID:           sql.NullString{String: responseID, Valid: true},
			ReviewAssignmentID:   nullableString(reviewAssignmentID),
			Action:               domain.AuditActionStatusChanged,
			FromStatus:           sql.NullString{String: resp.Status, Valid: true},
			ToStatus:             sql.NullString{String: to, Valid: true},
			Details:              nullableString(reason),
		},
		Workflow: wf,
	}
	if err := s.responsesRepo.ApplyTransition(ctx, expectedVersion, t); err != nil {
		return nil, err
	}

	s.logger.Info("response transitioned",
		zap.String("response_id", responseID),
		zap.String("from", resp.Status),
		zap.String("to", to),
		zap.String("action", action))
	return s.responsesRepo.GetResponse(ctx, responseID)
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// MarkAnswered 标记已作答
func (s *workflowService) MarkAnswered(ctx context.Context, req TransitionRequest) (*domain.Response, error) {
	resp, err := s.responsesRepo.GetResponse(ctx, req.ResponseID)
	if err != nil {
		return nil, err
	}
	if err := s.requireResponsible(ctx, req.Identity, resp.CampaignAssignmentID, resp.QuestionID, "mark_answered"); err != nil {
		return nil, err
	}
	question, err := s.questionsRepo.GetQuestion(ctx, resp.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	if !resp.HasValue(question.QuestionType) {
		return nil, &domain.ValidationError{Field: "value", Reason: "cannot mark an empty response as answered"}
	}
	return s.transition(ctx, req.Identity, req.ResponseID, req.ExpectedVersion, domain.ResponseAnswered, "", "mark_answered", false, "")
}

// Submit 提交送审
func (s *workflowService) Submit(ctx context.Context, req TransitionRequest) (*domain.Response, error) {
	resp, err := s.responsesRepo.GetResponse(ctx, req.ResponseID)
	if err != nil {
		return nil, err
	}
	if err := s.requireResponsible(ctx, req.Identity, resp.CampaignAssignmentID, resp.QuestionID, "submit"); err != nil {
		return nil, err
	}
	question, err := s.questionsRepo.GetQuestion(ctx, resp.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	if question.IsRequired && !resp.HasValue(question.QuestionType) {
		return nil, &domain.ValidationError{Field: "value", Reason: "required question cannot be submitted without a value"}
	}
	return s.transition(ctx, req.Identity, req.ResponseID, req.ExpectedVersion, domain.ResponseSubmittedForReview, "", "submit", false, "")
}

// BeginReview 审核人开始审核
func (s *workflowService) BeginReview(ctx context.Context, req ReviewActionRequest) (*domain.Response, error) {
	resp, err := s.responsesRepo.GetResponse(ctx, req.ResponseID)
	if err != nil {
		return nil, err
	}
	ra, err := s.requireReviewer(ctx, req.Identity, resp, "begin_review")
	if err != nil {
		return nil, err
	}
	pulled, err := s.transition(ctx, req.Identity, req.ResponseID, req.ExpectedVersion, domain.ResponseUnderReview, "", "begin_review", true, ra.ReviewAssignmentID)
	if err != nil {
		return nil, err
	}
	// 首次拉入审核时推进审核分配自身状态
	if ra.Status == domain.ReviewPending {
		if err := s.reviewsRepo.SetReviewStatus(ctx, ra.ReviewAssignmentID, domain.ReviewInReview); err != nil {
			s.logger.Warn("failed to update review assignment status",
				zap.String("review_assignment_id", ra.ReviewAssignmentID),
				zap.Error(err))
		}
	}
	return pulled, nil
}

// RequestChanges 审核人退回（理由必填）；责任人下一次保存草稿时重新开放编辑
func (s *workflowService) RequestChanges(ctx context.Context, req ReviewActionRequest) (*domain.Response, error) {
	if req.Reason == "" {
		return nil, &domain.ValidationError{Field: "reason", Reason: "a reason is required when requesting changes"}
	}
	resp, err := s.responsesRepo.GetResponse(ctx, req.ResponseID)
	if err != nil {
		return nil, err
	}
	ra, err := s.requireReviewer(ctx, req.Identity, resp, "request_changes")
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, req.Identity, req.ResponseID, req.ExpectedVersion, domain.ResponseChangesRequested, req.Reason, "request_changes", true, ra.ReviewAssignmentID)
}

// Approve 审核通过
func (s *workflowService) Approve(ctx context.Context, req ReviewActionRequest) (*domain.Response, error) {
	resp, err := s.responsesRepo.GetResponse(ctx, req.ResponseID)
	if err != nil {
		return nil, err
	}
	ra, err := s.requireReviewer(ctx, req.Identity, resp, "approve")
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, req.Identity, req.ResponseID, req.ExpectedVersion, domain.ResponseReviewApproved, req.Reason, "approve", true, ra.ReviewAssignmentID)
}

// Finalize 终态晋升：只有主责任人或审核人可以签署
func (s *workflowService) Finalize(ctx context.Context, req TransitionRequest) (*domain.Response, error) {
	resp, err := s.responsesRepo.GetResponse(ctx, req.ResponseID)
	if err != nil {
		return nil, err
	}
	ca, err := s.guardAssignment(ctx, req.Identity, resp.CampaignAssignmentID)
	if err != nil {
		return nil, err
	}
	if ca.LeadResponderID != req.Identity.UserID {
		if _, err := s.requireReviewer(ctx, req.Identity, resp, "finalize"); err != nil {
			return nil, err
		}
	}
	return s.transition(ctx, req.Identity, req.ResponseID, req.ExpectedVersion, domain.ResponseFinal, "", "finalize", false, "")
}

// Override 主责任人改写他人响应取值（理由必填，状态不变）
func (s *workflowService) Override(ctx context.Context, req OverrideRequest) (*domain.Response, error) {
	if req.Reason == "" {
		return nil, &domain.ValidationError{Field: "reason", Reason: "a reason is required for an override"}
	}
	resp, err := s.responsesRepo.GetResponse(ctx, req.ResponseID)
	if err != nil {
		return nil, err
	}
	ca, err := s.guardAssignment(ctx, req.Identity, resp.CampaignAssignmentID)
	if err != nil {
		return nil, err
	}
	if ca.LeadResponderID != req.Identity.UserID {
		return nil, &domain.UnauthorizedActorError{ActorID: req.Identity.UserID, Action: "override"}
	}
	// 改写只针对他人作答；自己的响应走 SaveDraft
	if resp.ResponderID == req.Identity.UserID {
		return nil, &domain.UnauthorizedActorError{ActorID: req.Identity.UserID, Action: "override"}
	}
	if resp.Status == domain.ResponseFinal {
		return nil, &domain.IllegalTransitionError{From: domain.ResponseFinal, To: domain.ResponseFinal}
	}

	question, err := s.questionsRepo.GetQuestion(ctx, resp.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	if !req.Value.MatchesType(question.QuestionType) {
		return nil, &domain.ValidationError{Field: "value", Reason: fmt.Sprintf("value does not match question type %s", question.QuestionType)}
	}

	originalValue := resp.ValueSnapshot()
	next := *resp
	req.Value.ApplyTo(&next)
	overrideValue := next.ValueSnapshot()

	save := repository.ResponseOverrideSave{
		Response: &next,
		Override: &domain.ResponseOverride{
			ResponseID:      resp.ResponseID,
			LeadResponderID: req.Identity.UserID,
			OriginalValue:   originalValue,
			OverrideValue:   overrideValue,
			Reason:          req.Reason,
		},
		Audit: &domain.ReviewAuditLog{
			ActorID:              req.Identity.UserID,
			CampaignAssignmentID: resp.CampaignAssignmentID,
			QuestionID:           sql.NullString{String: resp.QuestionID, Valid: true},
			ResponseID:           sql.NullString{String: resp.ResponseID, Valid: true},
			Action:               domain.AuditActionOverrideApplied,
			Details:              sql.NullString{String: req.Reason, Valid: true},
		},
	}
	if err := s.responsesRepo.ApplyOverride(ctx, req.ExpectedVersion, save); err != nil {
		return nil, err
	}
	s.logger.Info("response value overridden",
		zap.String("response_id", resp.ResponseID),
		zap.String("lead_responder_id", req.Identity.UserID))
	return s.responsesRepo.GetResponse(ctx, resp.ResponseID)
}

// AcceptPrefill 接受预填取值
func (s *workflowService) AcceptPrefill(ctx context.Context, req TransitionRequest) (*domain.Response, error) {
	resp, err := s.responsesRepo.GetResponse(ctx, req.ResponseID)
	if err != nil {
		return nil, err
	}
	if err := s.requireResponsible(ctx, req.Identity, resp.CampaignAssignmentID, resp.QuestionID, "accept_prefill"); err != nil {
		return nil, err
	}
	if resp.Status != domain.ResponsePrePopulated || !resp.IsPrePopulated {
		return nil, &domain.ValidationError{Field: "status", Reason: "only pre-populated responses can be accepted"}
	}

	next := *resp
	next.IsPrePopulatedAccepted = true

	snapshot, _ := json.Marshal(map[string]any{
		"source_response_id": resp.SourceResponseID.String,
	})
	save := repository.ResponseValueSave{
		Response: &next,
		Change: &domain.ResponseChange{
			ResponseID: resp.ResponseID,
			ChangedBy:  req.Identity.UserID,
			OldValue:   resp.ValueSnapshot(),
			NewValue:   next.ValueSnapshot(),
		},
		Audit: &domain.ReviewAuditLog{
			ActorID:              req.Identity.UserID,
			CampaignAssignmentID: resp.CampaignAssignmentID,
			QuestionID:           sql.NullString{String: resp.QuestionID, Valid: true},
			ResponseID:           sql.NullString{String: resp.ResponseID, Valid: true},
			Action:               domain.AuditActionPrefillAccepted,
			Details:              sql.NullString{String: string(snapshot), Valid: true},
		},
	}
	if err := s.responsesRepo.SaveValue(ctx, req.ExpectedVersion, save); err != nil {
		return nil, err
	}
	return s.responsesRepo.GetResponse(ctx, resp.ResponseID)
}

// Delegate 转交问题责任：只有当前责任人可以转出
func (s *workflowService) Delegate(ctx context.Context, req DelegateRequest) (string, error) {
	if req.ToUserID == "" {
		return "", &domain.ValidationError{Field: "to_user_id", Reason: "a delegate user is required"}
	}
	if req.ToUserID == req.Identity.UserID {
		return "", &domain.ValidationError{Field: "to_user_id", Reason: "cannot delegate a question to yourself"}
	}
	if _, err := s.guardAssignment(ctx, req.Identity, req.CampaignAssignmentID); err != nil {
		return "", err
	}
	if err := s.requireResponsible(ctx, req.Identity, req.CampaignAssignmentID, req.QuestionID, "delegate"); err != nil {
		return "", err
	}

	delegationID, err := s.delegationsRepo.CreateDelegation(ctx, &domain.Delegation{
		CampaignAssignmentID: req.CampaignAssignmentID,
		QuestionID:           req.QuestionID,
		FromUserID:           req.Identity.UserID,
		ToUserID:             req.ToUserID,
		Note:                 nullableString(req.Note),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create delegation: %w", err)
	}

	if err := s.auditRepo.Append(ctx, &domain.ReviewAuditLog{
		ActorID:              req.Identity.UserID,
		CampaignAssignmentID: req.CampaignAssignmentID,
		QuestionID:           sql.NullString{String: req.QuestionID, Valid: true},
		Action:               domain.AuditActionDelegationOpened,
		Details:              sql.NullString{String: fmt.Sprintf("delegated to %s", req.ToUserID), Valid: true},
	}); err != nil {
		s.logger.Warn("failed to record delegation audit", zap.Error(err))
	}
	return delegationID, nil
}

// CompleteDelegation 关闭转交：转出人、受托人任一方都可以关闭
func (s *workflowService) CompleteDelegation(ctx context.Context, req CompleteDelegationRequest) error {
	d, err := s.delegationsRepo.GetDelegation(ctx, req.DelegationID)
	if err != nil {
		return err
	}
	if _, err := s.guardAssignment(ctx, req.Identity, d.CampaignAssignmentID); err != nil {
		return err
	}
	if d.FromUserID != req.Identity.UserID && d.ToUserID != req.Identity.UserID {
		return &domain.UnauthorizedActorError{ActorID: req.Identity.UserID, Action: "complete_delegation"}
	}
	if err := s.delegationsRepo.CompleteDelegation(ctx, req.DelegationID); err != nil {
		return err
	}

	if err := s.auditRepo.Append(ctx, &domain.ReviewAuditLog{
		ActorID:              req.Identity.UserID,
		CampaignAssignmentID: d.CampaignAssignmentID,
		QuestionID:           sql.NullString{String: d.QuestionID, Valid: true},
		Action:               domain.AuditActionDelegationClosed,
	}); err != nil {
		s.logger.Warn("failed to record delegation audit", zap.Error(err))
	}
	return nil
}

// AttachFile 给响应挂文件引用
func (s *workflowService) AttachFile(ctx context.Context, req AttachFileRequest) (string, error) {
	if req.StoragePath == "" || req.FileName == "" {
		return "", &domain.ValidationError{Field: "storage_path", Reason: "file name and storage path are required"}
	}
	resp, err := s.responsesRepo.GetResponse(ctx, req.ResponseID)
	if err != nil {
		return "", err
	}
	ca, err := s.guardAssignment(ctx, req.Identity, resp.CampaignAssignmentID)
	if err != nil {
		return "", err
	}
	if err := s.requireResponsible(ctx, req.Identity, resp.CampaignAssignmentID, resp.QuestionID, "attach_file"); err != nil {
		return "", err
	}

	fileID, err := s.responsesRepo.AttachFile(ctx, &domain.FileUpload{
		ResponseID:     req.ResponseID,
		OrganizationID: ca.OrganizationID,
		FileName:       req.FileName,
		StoragePath:    req.StoragePath,
		ContentType:    req.ContentType,
		SizeBytes:      req.SizeBytes,
		UploadedBy:     req.Identity.UserID,
	}, &domain.ReviewAuditLog{
		ActorID:              req.Identity.UserID,
		CampaignAssignmentID: resp.CampaignAssignmentID,
		QuestionID:           sql.NullString{String: resp.QuestionID, Valid: true},
		ResponseID:           sql.NullString{String: req.ResponseID, Valid: true},
		Action:               domain.AuditActionFileAttached,
		Details:              sql.NullString{String: req.FileName, Valid: true},
	})
	if err != nil {
		return "", fmt.Errorf("failed to attach file: %w", err)
	}
	return fileID, nil
}
