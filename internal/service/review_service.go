package service

import (
	"context"
	"database/sql"
	"fmt"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/repository"
	"esgbridge-data/internal/tenant"

	"go.uber.org/zap"
)

// ReviewService 审核服务接口
type ReviewService interface {
	// AssignReviewer 指派审核人（问题级/章节级/整单级）
	AssignReviewer(ctx context.Context, req AssignReviewerRequest) (string, error)
	// DeactivateReviewer 停用审核分配
	DeactivateReviewer(ctx context.Context, req DeactivateReviewerRequest) error
	// RecordComment 记录审核意见
	RecordComment(ctx context.Context, req RecordCommentRequest) (string, error)
	// ResolveComment 标记意见已解决
	ResolveComment(ctx context.Context, req ResolveCommentRequest) error
	// ListComments 查询响应下的审核意见
	ListComments(ctx context.Context, identity tenant.Identity, responseID string) ([]*domain.ReviewComment, error)
	// ApplyScopeDecision 按审核范围批量裁决：对范围内所有待审响应逐一执行通过/退回
	ApplyScopeDecision(ctx context.Context, req ScopeDecisionRequest) ([]ScopeDecisionResult, error)
}

// AssignReviewerRequest 指派审核人请求
type AssignReviewerRequest struct {
	Identity             tenant.Identity
	CampaignAssignmentID string
	ReviewerID           string
	Scope                string // 'question' | 'section' | 'assignment'
	QuestionID           string // scope='question' 时必填
	SectionName          string // scope='section' 时必填
}

// DeactivateReviewerRequest 停用审核分配请求
type DeactivateReviewerRequest struct {
	Identity           tenant.Identity
	ReviewAssignmentID string
}

// RecordCommentRequest 记录审核意见请求
type RecordCommentRequest struct {
	Identity       tenant.Identity
	ResponseID     string
	CommentText    string
	RequiresChange bool
}

// ResolveCommentRequest 标记意见已解决请求
type ResolveCommentRequest struct {
	Identity  tenant.Identity
	CommentID string
}

// 范围裁决动作
const (
	ScopeDecisionApprove        = "approve"
	ScopeDecisionRequestChanges = "request_changes"
)

// ScopeDecisionRequest 范围批量裁决请求
type ScopeDecisionRequest struct {
	Identity           tenant.Identity
	ReviewAssignmentID string
	Decision           string // 'approve' | 'request_changes'
	Reason             string // request_changes 时必填
}

// ScopeDecisionResult 单个响应的裁决结果
// 部分失败不回滚整体：每个响应独立成败
type ScopeDecisionResult struct {
	ResponseID string
	Applied    bool
	Err        error
}

// reviewService 审核服务实现
type reviewService struct {
	reviewsRepo   repository.ReviewsRepository
	responsesRepo repository.ResponsesRepository
	campaignsRepo repository.CampaignsRepository
	questionsRepo repository.QuestionsRepository
	workflow      WorkflowService
	logger        *zap.Logger
}

// NewReviewService 创建审核服务
func NewReviewService(
	reviewsRepo repository.ReviewsRepository,
	responsesRepo repository.ResponsesRepository,
	campaignsRepo repository.CampaignsRepository,
	questionsRepo repository.QuestionsRepository,
	workflow WorkflowService,
	logger *zap.Logger,
) ReviewService {
	return &reviewService{
		reviewsRepo:   reviewsRepo,
		responsesRepo: responsesRepo,
		campaignsRepo: campaignsRepo,
		questionsRepo: questionsRepo,
		workflow:      workflow,
		logger:        logger,
	}
}

// guardAssignment 写路径租户守卫：活动归属组织或目标组织任一匹配即可
// 审核人通常属于活动发起方（平台组织），不属于响应方组织
func (s *reviewService) guardAssignment(ctx context.Context, id tenant.Identity, campaignAssignmentID string) (*domain.CampaignAssignment, error) {
	ca, err := s.campaignsRepo.GetAssignmentUnscoped(ctx, campaignAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign assignment: %w", err)
	}
	scope := tenant.Resolve(id)
	if scope.Allows(ca.OrganizationID) {
		return ca, nil
	}
	campaign, err := s.campaignsRepo.GetCampaign(ctx, scope, ca.CampaignID)
	if err != nil {
		return nil, &domain.TenantViolationError{}
	}
	if err := scope.Check(campaign.OrganizationID); err != nil {
		return nil, err
	}
	return ca, nil
}

// AssignReviewer 指派审核人
func (s *reviewService) AssignReviewer(ctx context.Context, req AssignReviewerRequest) (string, error) {
	if req.ReviewerID == "" {
		return "", &domain.ValidationError{Field: "reviewer_id", Reason: "a reviewer is required"}
	}
	if _, err := s.guardAssignment(ctx, req.Identity, req.CampaignAssignmentID); err != nil {
		return "", err
	}

	ra := &domain.ReviewAssignment{
		CampaignAssignmentID: req.CampaignAssignmentID,
		ReviewerID:           req.ReviewerID,
		Scope:                req.Scope,
		CreatedBy:            req.Identity.UserID,
	}
	switch req.Scope {
	case domain.ScopeQuestion:
		if req.QuestionID == "" {
			return "", &domain.ValidationError{Field: "question_id", Reason: "question scope requires a question"}
		}
		ra.QuestionID = sql.NullString{String: req.QuestionID, Valid: true}
	case domain.ScopeSection:
		if req.SectionName == "" {
			return "", &domain.ValidationError{Field: "section_name", Reason: "section scope requires a section name"}
		}
		ra.SectionName = sql.NullString{String: req.SectionName, Valid: true}
	case domain.ScopeAssignment:
		// 整单审核不携带问题/章节
	default:
		return "", &domain.ValidationError{Field: "scope", Reason: fmt.Sprintf("invalid review scope: %s", req.Scope)}
	}

	reviewAssignmentID, err := s.reviewsRepo.CreateReviewAssignment(ctx, ra, &domain.ReviewAuditLog{
		ActorID:              req.Identity.UserID,
		CampaignAssignmentID: req.CampaignAssignmentID,
		QuestionID:           ra.QuestionID,
		Action:               domain.AuditActionReviewerAssigned,
		Details:              sql.NullString{String: fmt.Sprintf("reviewer %s, scope %s", req.ReviewerID, req.Scope), Valid: true},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create review assignment: %w", err)
	}

	s.logger.Info("reviewer assigned",
		zap.String("review_assignment_id", reviewAssignmentID),
		zap.String("reviewer_id", req.ReviewerID),
		zap.String("scope", req.Scope))
	return reviewAssignmentID, nil
}

// DeactivateReviewer 停用审核分配（历史意见保留）
func (s *reviewService) DeactivateReviewer(ctx context.Context, req DeactivateReviewerRequest) error {
	ra, err := s.reviewsRepo.GetReviewAssignment(ctx, req.ReviewAssignmentID)
	if err != nil {
		return err
	}
	if _, err := s.guardAssignment(ctx, req.Identity, ra.CampaignAssignmentID); err != nil {
		return err
	}
	return s.reviewsRepo.DeactivateReviewAssignment(ctx, req.ReviewAssignmentID)
}

// requireCoveringReview 调用者必须持有覆盖该响应问题的活跃审核分配
func (s *reviewService) requireCoveringReview(ctx context.Context, id tenant.Identity, resp *domain.Response, action string) (*domain.ReviewAssignment, error) {
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

// RecordComment 记录审核意见（requires_change 本身不改变响应状态）
func (s *reviewService) RecordComment(ctx context.Context, req RecordCommentRequest) (string, error) {
	if req.CommentText == "" {
		return "", &domain.ValidationError{Field: "comment_text", Reason: "comment text is required"}
	}
	resp, err := s.responsesRepo.GetResponse(ctx, req.ResponseID)
	if err != nil {
		return "", err
	}
	ra, err := s.requireCoveringReview(ctx, req.Identity, resp, "record_comment")
	if err != nil {
		return "", err
	}

	commentID, err := s.reviewsRepo.CreateComment(ctx, &domain.ReviewComment{
		ReviewAssignmentID: ra.ReviewAssignmentID,
		ResponseID:         req.ResponseID,
		AuthorID:           req.Identity.UserID,
		CommentText:        req.CommentText,
		RequiresChange:     req.RequiresChange,
	}, &domain.ReviewAuditLog{
		ActorID:              req.Identity.UserID,
		CampaignAssignmentID: resp.CampaignAssignmentID,
		QuestionID:           sql.NullString{String: resp.QuestionID, Valid: true},
		ResponseID:           sql.NullString{String: req.ResponseID, Valid: true},
		ReviewAssignmentID:   sql.NullString{String: ra.ReviewAssignmentID, Valid: true},
		Action:               domain.AuditActionCommentRecorded,
	})
	if err != nil {
		return "", fmt.Errorf("failed to record review comment: %w", err)
	}
	return commentID, nil
}

// ResolveComment 标记意见已解决：作者或响应责任方都可以解决
func (s *reviewService) ResolveComment(ctx context.Context, req ResolveCommentRequest) error {
	c, err := s.reviewsRepo.GetComment(ctx, req.CommentID)
	if err != nil {
		return err
	}
	resp, err := s.responsesRepo.GetResponse(ctx, c.ResponseID)
	if err != nil {
		return err
	}
	if _, err := s.guardAssignment(ctx, req.Identity, resp.CampaignAssignmentID); err != nil {
		return err
	}

	return s.reviewsRepo.ResolveComment(ctx, req.CommentID, req.Identity.UserID, &domain.ReviewAuditLog{
		ActorID:              req.Identity.UserID,
		CampaignAssignmentID: resp.CampaignAssignmentID,
		ResponseID:           sql.NullString{String: c.ResponseID, Valid: true},
		ReviewAssignmentID:   sql.NullString{String: c.ReviewAssignmentID, Valid: true},
		Action:               domain.AuditActionCommentResolved,
	})
}

// ListComments 查询响应下的审核意见
func (s *reviewService) ListComments(ctx context.Context, identity tenant.Identity, responseID string) ([]*domain.ReviewComment, error) {
	resp, err := s.responsesRepo.GetResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.guardAssignment(ctx, identity, resp.CampaignAssignmentID); err != nil {
		return nil, err
	}
	return s.reviewsRepo.ListCommentsByResponse(ctx, responseID)
}

// ApplyScopeDecision 按审核范围批量裁决
// 范围内处于 under_review 的响应逐一执行；submitted_for_review 的先拉入审核再裁决。
// 任何一个响应失败不影响其余响应，结果逐条返回
func (s *reviewService) ApplyScopeDecision(ctx context.Context, req ScopeDecisionRequest) ([]ScopeDecisionResult, error) {
	if req.Decision != ScopeDecisionApprove && req.Decision != ScopeDecisionRequestChanges {
		return nil, &domain.ValidationError{Field: "decision", Reason: fmt.Sprintf("invalid decision: %s", req.Decision)}
	}
	if req.Decision == ScopeDecisionRequestChanges && req.Reason == "" {
		return nil, &domain.ValidationError{Field: "reason", Reason: "a reason is required when requesting changes"}
	}

	ra, err := s.reviewsRepo.GetReviewAssignment(ctx, req.ReviewAssignmentID)
	if err != nil {
		return nil, err
	}
	if !ra.IsActive {
		return nil, &domain.ValidationError{Field: "review_assignment_id", Reason: "review assignment is no longer active"}
	}
	if ra.ReviewerID != req.Identity.UserID {
		return nil, &domain.UnauthorizedActorError{ActorID: req.Identity.UserID, Action: "apply_scope_decision"}
	}
	ca, err := s.guardAssignment(ctx, req.Identity, ra.CampaignAssignmentID)
	if err != nil {
		return nil, err
	}

	// 1. 展开范围到问题集合
	questionIDs, err := s.expandScope(ctx, ra, ca.QuestionnaireVersionID)
	if err != nil {
		return nil, err
	}
	if len(questionIDs) == 0 {
		return []ScopeDecisionResult{}, nil
	}

	// 2. 范围内处于可裁决状态的响应
	responses, err := s.responsesRepo.ListByAssignmentAndQuestions(ctx, ra.CampaignAssignmentID, questionIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}

	// 3. 逐一裁决，部分失败不回滚整体
	results := []ScopeDecisionResult{}
	for _, resp := range responses {
		result := ScopeDecisionResult{ResponseID: resp.ResponseID}

		// 不可裁决状态的响应以逐条失败返回，不从结果里消失
		if resp.Status != domain.ResponseSubmittedForReview && resp.Status != domain.ResponseUnderReview {
			result.Err = &domain.IllegalTransitionError{From: resp.Status, To: domain.ResponseUnderReview}
			results = append(results, result)
			continue
		}

		version := resp.Version
		if resp.Status == domain.ResponseSubmittedForReview {
			pulled, err := s.workflow.BeginReview(ctx, ReviewActionRequest{
				Identity:        req.Identity,
				ResponseID:      resp.ResponseID,
				ExpectedVersion: version,
			})
			if err != nil {
				result.Err = err
				results = append(results, result)
				continue
			}
			version = pulled.Version
		}

		action := ReviewActionRequest{
			Identity:        req.Identity,
			ResponseID:      resp.ResponseID,
			ExpectedVersion: version,
			Reason:          req.Reason,
		}
		if req.Decision == ScopeDecisionApprove {
			_, err = s.workflow.Approve(ctx, action)
		} else {
			_, err = s.workflow.RequestChanges(ctx, action)
		}
		if err != nil {
			result.Err = err
		} else {
			result.Applied = true
		}
		results = append(results, result)
	}

	// 4. 按裁决方向推进审核分配自身状态（独立于各响应的成败）
	status := domain.ReviewChangesRequested
	if req.Decision == ScopeDecisionApprove {
		status = domain.ReviewApproved
	}
	if err := s.reviewsRepo.SetReviewStatus(ctx, req.ReviewAssignmentID, status); err != nil {
		s.logger.Warn("failed to update review assignment status", zap.Error(err))
	}
	return results, nil
}

// expandScope 把审核范围展开成问题 ID 集合
func (s *reviewService) expandScope(ctx context.Context, ra *domain.ReviewAssignment, questionnaireVersionID string) ([]string, error) {
	switch ra.Scope {
	case domain.ScopeQuestion:
		return []string{ra.QuestionID.String}, nil
	case domain.ScopeSection:
		questions, err := s.questionsRepo.ListQuestionsBySection(ctx, questionnaireVersionID, ra.SectionName.String)
		if err != nil {
			return nil, fmt.Errorf("failed to list section questions: %w", err)
		}
		ids := make([]string, 0, len(questions))
		for _, q := range questions {
			ids = append(ids, q.QuestionID)
		}
		return ids, nil
	case domain.ScopeAssignment:
		questions, err := s.questionsRepo.ListQuestions(ctx, questionnaireVersionID)
		if err != nil {
			return nil, fmt.Errorf("failed to list questions: %w", err)
		}
		ids := make([]string, 0, len(questions))
		for _, q := range questions {
			ids = append(ids, q.QuestionID)
		}
		return ids, nil
	}
	return nil, fmt.Errorf("invalid review scope: %s", ra.Scope)
}
