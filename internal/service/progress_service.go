package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/repository"
	"esgbridge-data/internal/store"
	"esgbridge-data/internal/tenant"

	"go.uber.org/zap"
)

// ProgressService 填报进度服务接口
// 进度是从响应状态推导的派生数据，结果走缓存；任何写路径之后调用 Invalidate
type ProgressService interface {
	GetProgress(ctx context.Context, identity tenant.Identity, campaignAssignmentID string) (*AssignmentProgress, error)
	Invalidate(ctx context.Context, campaignAssignmentID string)
}

// AssignmentProgress 活动分配的填报进度
type AssignmentProgress struct {
	CampaignAssignmentID string `json:"campaign_assignment_id"`
	TotalQuestions       int    `json:"total_questions"`
	Answered             int    `json:"answered"`
	Submitted            int    `json:"submitted"`
	Approved             int    `json:"approved"`
	Final                int    `json:"final"`
	ChangesRequested     int    `json:"changes_requested"`
}

// progressService 填报进度服务实现
type progressService struct {
	campaignsRepo repository.CampaignsRepository
	questionsRepo repository.QuestionsRepository
	responsesRepo repository.ResponsesRepository
	cache         store.KV
	cacheTTL      time.Duration
	logger        *zap.Logger
}

// NewProgressService 创建填报进度服务
func NewProgressService(
	campaignsRepo repository.CampaignsRepository,
	questionsRepo repository.QuestionsRepository,
	responsesRepo repository.ResponsesRepository,
	cache store.KV,
	logger *zap.Logger,
) ProgressService {
	return &progressService{
		campaignsRepo: campaignsRepo,
		questionsRepo: questionsRepo,
		responsesRepo: responsesRepo,
		cache:         cache,
		cacheTTL:      time.Minute,
		logger:        logger,
	}
}

func progressCacheKey(campaignAssignmentID string) string {
	return "progress:" + campaignAssignmentID
}

func (s *progressService) GetProgress(ctx context.Context, identity tenant.Identity, campaignAssignmentID string) (*AssignmentProgress, error) {
	scope := tenant.Resolve(identity)
	ca, err := s.campaignsRepo.GetAssignment(ctx, scope, campaignAssignmentID)
	if err != nil {
		return nil, err
	}

	// 1. 缓存命中直接返回
	if cached, err := s.cache.Get(ctx, progressCacheKey(campaignAssignmentID)); err == nil {
		var progress AssignmentProgress
		if err := json.Unmarshal([]byte(cached), &progress); err == nil {
			return &progress, nil
		}
	}

	// 2. 重算
	questions, err := s.questionsRepo.ListQuestions(ctx, ca.QuestionnaireVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	responses, err := s.responsesRepo.ListByAssignment(ctx, scope, campaignAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}

	progress := &AssignmentProgress{
		CampaignAssignmentID: campaignAssignmentID,
		TotalQuestions:       len(questions),
	}
	for _, resp := range responses {
		switch resp.Status {
		case domain.ResponseAnswered, domain.ResponseDraft, domain.ResponsePrePopulated:
			progress.Answered++
		case domain.ResponseSubmittedForReview, domain.ResponseUnderReview:
			progress.Submitted++
		case domain.ResponseReviewApproved:
			progress.Approved++
		case domain.ResponseFinal:
			progress.Final++
		case domain.ResponseChangesRequested:
			progress.ChangesRequested++
		}
	}

	// 3. 回填缓存（失败只记日志）
	if raw, err := json.Marshal(progress); err == nil {
		if err := s.cache.Set(ctx, progressCacheKey(campaignAssignmentID), string(raw), s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache progress", zap.Error(err))
		}
	}
	return progress, nil
}

func (s *progressService) Invalidate(ctx context.Context, campaignAssignmentID string) {
	if err := s.cache.Delete(ctx, progressCacheKey(campaignAssignmentID)); err != nil {
		s.logger.Warn("failed to invalidate progress cache",
			zap.String("campaign_assignment_id", campaignAssignmentID),
			zap.Error(err))
	}
}
