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

// PrepopulationService 跨活动预填服务接口
// 新活动分配引用同一问卷版本时，把目标组织上一轮的终稿取值复制成 pre_populated 响应
type PrepopulationService interface {
	// Prepopulate 为活动分配执行预填，返回创建的响应数
	Prepopulate(ctx context.Context, req PrepopulateRequest) (*PrepopulateResult, error)
}

// PrepopulateRequest 预填请求
type PrepopulateRequest struct {
	Identity             tenant.Identity
	CampaignAssignmentID string
}

// PrepopulateResult 预填结果
type PrepopulateResult struct {
	Created int
	Skipped int
}

// prepopulationService 跨活动预填服务实现
type prepopulationService struct {
	campaignsRepo repository.CampaignsRepository
	questionsRepo repository.QuestionsRepository
	responsesRepo repository.ResponsesRepository
	resolver      ResolverService
	logger        *zap.Logger
}

// NewPrepopulationService 创建预填服务
func NewPrepopulationService(
	campaignsRepo repository.CampaignsRepository,
	questionsRepo repository.QuestionsRepository,
	responsesRepo repository.ResponsesRepository,
	resolver ResolverService,
	logger *zap.Logger,
) PrepopulationService {
	return &prepopulationService{
		campaignsRepo: campaignsRepo,
		questionsRepo: questionsRepo,
		responsesRepo: responsesRepo,
		resolver:      resolver,
		logger:        logger,
	}
}

// Prepopulate 为活动分配执行预填
// 来源规则：同组织 + 同问卷版本的历史活动分配中，取每个问题最近进入 final 的响应。
// 已有响应的问题跳过，不覆盖
func (s *prepopulationService) Prepopulate(ctx context.Context, req PrepopulateRequest) (*PrepopulateResult, error) {
	// 1. 租户守卫
	ca, err := s.campaignsRepo.GetAssignmentUnscoped(ctx, req.CampaignAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign assignment: %w", err)
	}
	scope := tenant.Resolve(req.Identity)
	if err := scope.Check(ca.OrganizationID); err != nil {
		return nil, err
	}

	// 2. 历史来源分配（不含自身）
	history, err := s.campaignsRepo.ListAssignmentsByOrgAndQuestionnaire(ctx, ca.OrganizationID, ca.QuestionnaireVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list source assignments: %w", err)
	}

	// 3. 每个问题取最近的 final 响应（列表按创建时间正序，后出现的覆盖先出现的）
	sources := map[string]*domain.Response{}
	for _, prior := range history {
		if prior.CampaignAssignmentID == ca.CampaignAssignmentID {
			continue
		}
		responses, err := s.responsesRepo.ListByAssignment(ctx, tenant.Scope{Unrestricted: true}, prior.CampaignAssignmentID)
		if err != nil {
			return nil, fmt.Errorf("failed to list source responses: %w", err)
		}
		for _, resp := range responses {
			if resp.Status == domain.ResponseFinal {
				sources[resp.QuestionID] = resp
			}
		}
	}
	if len(sources) == 0 {
		return &PrepopulateResult{}, nil
	}

	// 4. 责任人批量解析（预填响应挂到当前责任人名下）
	resolutions, err := s.resolver.ResolveAll(ctx, req.CampaignAssignmentID)
	if err != nil {
		return nil, err
	}

	// 5. 逐问题复制；已有响应的问题跳过
	result := &PrepopulateResult{}
	for questionID, source := range sources {
		resolution, ok := resolutions[questionID]
		if !ok {
			result.Skipped++
			continue
		}
		if _, err := s.responsesRepo.GetByQuestionAndAssignment(ctx, req.CampaignAssignmentID, questionID, resolution.UserID); err == nil {
			result.Skipped++
			continue
		}

		copied := &domain.Response{
			CampaignAssignmentID: req.CampaignAssignmentID,
			QuestionID:           questionID,
			ResponderID:          resolution.UserID,
			Status:               domain.ResponsePrePopulated,
			TextValue:            source.TextValue,
			NumericValue:         source.NumericValue,
			DateValue:            source.DateValue,
			BoolValue:            source.BoolValue,
			OptionValues:         source.OptionValues,
			IsPrePopulated:       true,
			SourceResponseID:     sql.NullString{String: source.ResponseID, Valid: true},
		}
		_, err := s.responsesRepo.CreateResponse(ctx, copied, &domain.ReviewAuditLog{
			ActorID:              req.Identity.UserID,
			CampaignAssignmentID: req.CampaignAssignmentID,
			QuestionID:           sql.NullString{String: questionID, Valid: true},
			Action:               domain.AuditActionPrefillCopied,
			Details:              sql.NullString{String: fmt.Sprintf("copied from response %s", source.ResponseID), Valid: true},
		})
		if err != nil {
			s.logger.Warn("failed to prepopulate question",
				zap.String("question_id", questionID),
				zap.Error(err))
			result.Skipped++
			continue
		}
		result.Created++
	}

	s.logger.Info("prepopulation finished",
		zap.String("campaign_assignment_id", req.CampaignAssignmentID),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped))
	return result, nil
}
