package repository

import (
	"context"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/tenant"
)

// ResponseTransition 一次原子状态迁移需要落库的全部内容
// Response 携带新状态（version 为迁移前版本，落库时 +1）；
// 状态行、历史行、审计行、影子投影在同一事务内写入——
// 状态变了但历史缺失（或反之）不是可接受的结果
type ResponseTransition struct {
	Response *domain.Response
	History  *domain.ResponseStatusHistory
	Audit    *domain.ReviewAuditLog
	Workflow *domain.ResponseWorkflow
}

// ResponseValueSave 一次原子取值写入（状态可能同时变化，也可能不变）
type ResponseValueSave struct {
	Response *domain.Response
	Change   *domain.ResponseChange
	// History 仅当状态发生变化时非空
	History *domain.ResponseStatusHistory
	Audit   *domain.ReviewAuditLog
	// Workflow 仅当状态发生变化时非空
	Workflow *domain.ResponseWorkflow
}

// ResponseOverrideSave 一次原子改写：override 行先落，再更新取值字段，状态不变
type ResponseOverrideSave struct {
	Response *domain.Response
	Override *domain.ResponseOverride
	Audit    *domain.ReviewAuditLog
}

// ResponsesRepository 响应数据访问
// 所有写入都以 expectedVersion 做乐观锁：版本不匹配返回 ConcurrentModificationError
type ResponsesRepository interface {
	// CreateResponse 创建响应行（含预填行）；同一 (question, assignment, responder) 唯一
	CreateResponse(ctx context.Context, r *domain.Response, audit *domain.ReviewAuditLog) (string, error)
	GetResponse(ctx context.Context, responseID string) (*domain.Response, error)
	GetByQuestionAndAssignment(ctx context.Context, campaignAssignmentID, questionID, responderID string) (*domain.Response, error)
	ListByAssignment(ctx context.Context, scope tenant.Scope, campaignAssignmentID string) ([]*domain.Response, error)
	ListByAssignmentAndQuestions(ctx context.Context, campaignAssignmentID string, questionIDs []string) ([]*domain.Response, error)

	ApplyTransition(ctx context.Context, expectedVersion int, t ResponseTransition) error
	SaveValue(ctx context.Context, expectedVersion int, s ResponseValueSave) error
	ApplyOverride(ctx context.Context, expectedVersion int, o ResponseOverrideSave) error

	GetWorkflow(ctx context.Context, responseID string) (*domain.ResponseWorkflow, error)
	ListStatusHistory(ctx context.Context, responseID string) ([]*domain.ResponseStatusHistory, error)
	ListOverrides(ctx context.Context, responseID string) ([]*domain.ResponseOverride, error)
	ListChanges(ctx context.Context, responseID string) ([]*domain.ResponseChange, error)

	AttachFile(ctx context.Context, f *domain.FileUpload, audit *domain.ReviewAuditLog) (string, error)
	ListFiles(ctx context.Context, responseID string) ([]*domain.FileUpload, error)
}

// ReviewsRepository 审核分配/审核意见数据访问
type ReviewsRepository interface {
	CreateReviewAssignment(ctx context.Context, ra *domain.ReviewAssignment, audit *domain.ReviewAuditLog) (string, error)
	GetReviewAssignment(ctx context.Context, reviewAssignmentID string) (*domain.ReviewAssignment, error)
	ListActiveByCampaignAssignment(ctx context.Context, campaignAssignmentID string) ([]*domain.ReviewAssignment, error)
	SetReviewStatus(ctx context.Context, reviewAssignmentID, status string) error
	DeactivateReviewAssignment(ctx context.Context, reviewAssignmentID string) error

	CreateComment(ctx context.Context, c *domain.ReviewComment, audit *domain.ReviewAuditLog) (string, error)
	GetComment(ctx context.Context, commentID string) (*domain.ReviewComment, error)
	// ResolveComment 标记已解决；解决状态独立于审核分配自身状态
	ResolveComment(ctx context.Context, commentID, resolvedBy string, audit *domain.ReviewAuditLog) error
	ListCommentsByResponse(ctx context.Context, responseID string) ([]*domain.ReviewComment, error)
}

// AuditRepository 审计日志落库（只追加）
type AuditRepository interface {
	Append(ctx context.Context, l *domain.ReviewAuditLog) error
	ListByAssignment(ctx context.Context, campaignAssignmentID string, page, size int) ([]*domain.ReviewAuditLog, int, error)
	ListByResponse(ctx context.Context, responseID string) ([]*domain.ReviewAuditLog, error)
}
