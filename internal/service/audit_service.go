package service

import (
	"context"
	"encoding/json"
	"fmt"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/mqtt"
	"esgbridge-data/internal/repository"
	"esgbridge-data/internal/tenant"

	"go.uber.org/zap"
)

// AuditService 审计查询与对外广播服务接口
type AuditService interface {
	// ListByAssignment 按活动分配分页查询审计日志
	ListByAssignment(ctx context.Context, req ListAuditRequest) (*ListAuditResponse, error)
	// ListByResponse 查询某响应的完整审计轨迹
	ListByResponse(ctx context.Context, identity tenant.Identity, responseID string) ([]*domain.ReviewAuditLog, error)
	// PublishRecent 把审计行广播到 MQTT（broker 未启用时为空操作）
	PublishRecent(ctx context.Context, l *domain.ReviewAuditLog)
}

// ListAuditRequest 审计日志分页查询请求
type ListAuditRequest struct {
	Identity             tenant.Identity
	CampaignAssignmentID string
	Page                 int
	Size                 int
}

// ListAuditResponse 审计日志分页查询响应
type ListAuditResponse struct {
	Items []*domain.ReviewAuditLog
	Total int
}

// auditService 审计服务实现
type auditService struct {
	auditRepo     repository.AuditRepository
	responsesRepo repository.ResponsesRepository
	campaignsRepo repository.CampaignsRepository
	publisher     *mqtt.Publisher // nil 表示广播未启用
	topicPrefix   string
	logger        *zap.Logger
}

// NewAuditService 创建审计服务
// publisher 传 nil 时广播路径整体关闭
func NewAuditService(
	auditRepo repository.AuditRepository,
	responsesRepo repository.ResponsesRepository,
	campaignsRepo repository.CampaignsRepository,
	publisher *mqtt.Publisher,
	topicPrefix string,
	logger *zap.Logger,
) AuditService {
	if topicPrefix == "" {
		topicPrefix = "esgbridge/audit"
	}
	return &auditService{
		auditRepo:     auditRepo,
		responsesRepo: responsesRepo,
		campaignsRepo: campaignsRepo,
		publisher:     publisher,
		topicPrefix:   topicPrefix,
		logger:        logger,
	}
}

// guardAssignment 读审计也要求调用者能看到活动分配本身
func (s *auditService) guardAssignment(ctx context.Context, id tenant.Identity, campaignAssignmentID string) error {
	scope := tenant.Resolve(id)
	if _, err := s.campaignsRepo.GetAssignment(ctx, scope, campaignAssignmentID); err != nil {
		return fmt.Errorf("campaign assignment not visible: %w", err)
	}
	return nil
}

func (s *auditService) ListByAssignment(ctx context.Context, req ListAuditRequest) (*ListAuditResponse, error) {
	if err := s.guardAssignment(ctx, req.Identity, req.CampaignAssignmentID); err != nil {
		return nil, err
	}
	items, total, err := s.auditRepo.ListByAssignment(ctx, req.CampaignAssignmentID, req.Page, req.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return &ListAuditResponse{Items: items, Total: total}, nil
}

func (s *auditService) ListByResponse(ctx context.Context, identity tenant.Identity, responseID string) ([]*domain.ReviewAuditLog, error) {
	resp, err := s.responsesRepo.GetResponse(ctx, responseID)
	if err != nil {
		return nil, err
	}
	if err := s.guardAssignment(ctx, identity, resp.CampaignAssignmentID); err != nil {
		return nil, err
	}
	return s.auditRepo.ListByResponse(ctx, responseID)
}

// PublishRecent 把审计行广播到 MQTT
// 广播失败只记日志，不影响主流程（审计落库才是权威记录）
func (s *auditService) PublishRecent(_ context.Context, l *domain.ReviewAuditLog) {
	if s.publisher == nil || l == nil {
		return
	}
	payload, err := json.Marshal(l)
	if err != nil {
		s.logger.Warn("failed to marshal audit event", zap.Error(err))
		return
	}
	topic := fmt.Sprintf("%s/%s", s.topicPrefix, l.CampaignAssignmentID)
	if err := s.publisher.Publish(topic, 1, false, payload); err != nil {
		s.logger.Warn("failed to publish audit event",
			zap.String("topic", topic),
			zap.Error(err))
	}
}
