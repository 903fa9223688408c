package service

import (
	"context"
	"fmt"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/repository"

	"go.uber.org/zap"
)

// ResolverService 责任人解析服务接口
type ResolverService interface {
	// ResolveResponsible 解析某问题当前的责任人
	ResolveResponsible(ctx context.Context, campaignAssignmentID, questionID string) (*Resolution, error)
	// ResolveAll 批量解析整个活动分配下全部问题的责任人
	ResolveAll(ctx context.Context, campaignAssignmentID string) (map[string]*Resolution, error)
}

// Resolution 一次责任人解析结果
type Resolution struct {
	UserID string
	// Source 命中的层级："delegation" | "question" | "section" | "lead"
	Source string
	// DelegationID 命中转交时非空
	DelegationID string
}

// 解析来源
const (
	ResolutionSourceDelegation = "delegation"
	ResolutionSourceQuestion   = "question"
	ResolutionSourceSection    = "section"
	ResolutionSourceLead       = "lead"
)

// resolverService 责任人解析服务实现
// 优先级固定：活跃转交 > 问题级分配 > 章节级分配 > lead responder
type resolverService struct {
	campaignsRepo   repository.CampaignsRepository
	questionsRepo   repository.QuestionsRepository
	assignmentsRepo repository.QuestionAssignmentsRepository
	delegationsRepo repository.DelegationsRepository
	logger          *zap.Logger
}

// NewResolverService 创建责任人解析服务
func NewResolverService(
	campaignsRepo repository.CampaignsRepository,
	questionsRepo repository.QuestionsRepository,
	assignmentsRepo repository.QuestionAssignmentsRepository,
	delegationsRepo repository.DelegationsRepository,
	logger *zap.Logger,
) ResolverService {
	return &resolverService{
		campaignsRepo:   campaignsRepo,
		questionsRepo:   questionsRepo,
		assignmentsRepo: assignmentsRepo,
		delegationsRepo: delegationsRepo,
		logger:          logger,
	}
}

// ResolveResponsible 解析某问题当前的责任人
func (s *resolverService) ResolveResponsible(ctx context.Context, campaignAssignmentID, questionID string) (*Resolution, error) {
	// 1. 活跃转交优先（同题多条时 Repository 已保证取最近一条）
	delegation, err := s.delegationsRepo.LatestActiveForQuestion(ctx, campaignAssignmentID, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up delegation: %w", err)
	}
	if delegation != nil {
		return &Resolution{
			UserID:       delegation.ToUserID,
			Source:       ResolutionSourceDelegation,
			DelegationID: delegation.DelegationID,
		}, nil
	}

	// 2. 问题定义（拿章节名，章节级匹配用）
	question, err := s.questionsRepo.GetQuestion(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	// 3. 问题级 / 章节级分配
	assignments, err := s.assignmentsRepo.ListByCampaignAssignment(ctx, campaignAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list question assignments: %w", err)
	}
	if res := matchAssignment(assignments, question); res != nil {
		return res, nil
	}

	// 4. 兜底：lead responder
	ca, err := s.campaignsRepo.GetAssignmentUnscoped(ctx, campaignAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign assignment: %w", err)
	}
	if ca.LeadResponderID == "" {
		return nil, &domain.UnassignedQuestionError{QuestionID: questionID}
	}
	return &Resolution{UserID: ca.LeadResponderID, Source: ResolutionSourceLead}, nil
}

// matchAssignment 问题级命中优先于章节级；同级多条取最早创建的一条（列表已按创建时间排序）
func matchAssignment(assignments []*domain.QuestionAssignment, q *domain.Question) *Resolution {
	for _, qa := range assignments {
		if qa.AssignmentType == domain.AssignmentTypeQuestion &&
			qa.QuestionID.Valid && qa.QuestionID.String == q.QuestionID {
			return &Resolution{UserID: qa.AssignedUserID, Source: ResolutionSourceQuestion}
		}
	}
	for _, qa := range assignments {
		if qa.AssignmentType == domain.AssignmentTypeSection &&
			qa.SectionName.Valid && qa.SectionName.String == q.Section {
			return &Resolution{UserID: qa.AssignedUserID, Source: ResolutionSourceSection}
		}
	}
	return nil
}

// ResolveAll 批量解析整个活动分配下全部问题的责任人
func (s *resolverService) ResolveAll(ctx context.Context, campaignAssignmentID string) (map[string]*Resolution, error) {
	ca, err := s.campaignsRepo.GetAssignmentUnscoped(ctx, campaignAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign assignment: %w", err)
	}

	questions, err := s.questionsRepo.ListQuestions(ctx, ca.QuestionnaireVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	assignments, err := s.assignmentsRepo.ListByCampaignAssignment(ctx, campaignAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list question assignments: %w", err)
	}
	delegations, err := s.delegationsRepo.ListActiveByAssignment(ctx, campaignAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delegations: %w", err)
	}

	// 同题多条活跃转交：最近创建的覆盖先前的（列表按创建时间正序）
	latestDelegation := map[string]*domain.Delegation{}
	for _, d := range delegations {
		latestDelegation[d.QuestionID] = d
	}

	result := make(map[string]*Resolution, len(questions))
	for _, q := range questions {
		if d, ok := latestDelegation[q.QuestionID]; ok {
			result[q.QuestionID] = &Resolution{
				UserID:       d.ToUserID,
				Source:       ResolutionSourceDelegation,
				DelegationID: d.DelegationID,
			}
			continue
		}
		if res := matchAssignment(assignments, q); res != nil {
			result[q.QuestionID] = res
			continue
		}
		if ca.LeadResponderID == "" {
			return nil, &domain.UnassignedQuestionError{QuestionID: q.QuestionID}
		}
		result[q.QuestionID] = &Resolution{UserID: ca.LeadResponderID, Source: ResolutionSourceLead}
	}
	return result, nil
}
