package repository

import (
	"context"

	"esgbridge-data/internal/domain"
)

// QuestionsRepository 问卷/问题/依赖数据访问
// 问卷内容按版本只读引用，不做租户行过滤（内容归属组织在服务层校验）
type QuestionsRepository interface {
	CreateQuestionnaire(ctx context.Context, q *domain.Questionnaire) (string, error)
	GetQuestionnaire(ctx context.Context, questionnaireID string) (*domain.Questionnaire, error)
	CreateQuestionnaireVersion(ctx context.Context, v *domain.QuestionnaireVersion) (string, error)
	GetQuestionnaireVersion(ctx context.Context, versionID string) (*domain.QuestionnaireVersion, error)

	CreateQuestion(ctx context.Context, q *domain.Question) (string, error)
	GetQuestion(ctx context.Context, questionID string) (*domain.Question, error)
	// UpdateQuestion 修改问题文本/必填标记（变更快照由服务层另行落 question_changes）
	UpdateQuestion(ctx context.Context, q *domain.Question) error
	ListQuestions(ctx context.Context, questionnaireVersionID string) ([]*domain.Question, error)
	ListQuestionsBySection(ctx context.Context, questionnaireVersionID, section string) ([]*domain.Question, error)

	AddDependency(ctx context.Context, dep *domain.QuestionDependency) (string, error)
	ListDependencies(ctx context.Context, questionnaireVersionID string) ([]*domain.QuestionDependency, error)
	ListDependenciesForQuestion(ctx context.Context, questionID string) ([]*domain.QuestionDependency, error)

	RecordQuestionChange(ctx context.Context, change *domain.QuestionChange) error
	ListQuestionChanges(ctx context.Context, questionID string) ([]*domain.QuestionChange, error)
}

// QuestionAssignmentsRepository 问题/章节责任分配数据访问
type QuestionAssignmentsRepository interface {
	CreateQuestionAssignment(ctx context.Context, qa *domain.QuestionAssignment) (string, error)
	ListByCampaignAssignment(ctx context.Context, campaignAssignmentID string) ([]*domain.QuestionAssignment, error)
	RemoveQuestionAssignment(ctx context.Context, questionAssignmentID string) error

	RecordAssignmentChange(ctx context.Context, change *domain.QuestionAssignmentChange) error
	ListAssignmentChanges(ctx context.Context, questionAssignmentID string) ([]*domain.QuestionAssignmentChange, error)
}

// DelegationsRepository 转交数据访问
type DelegationsRepository interface {
	CreateDelegation(ctx context.Context, d *domain.Delegation) (string, error)
	GetDelegation(ctx context.Context, delegationID string) (*domain.Delegation, error)
	// CompleteDelegation 关闭转交：is_active=false 并打 completed_at
	CompleteDelegation(ctx context.Context, delegationID string) error
	ListActiveByAssignment(ctx context.Context, campaignAssignmentID string) ([]*domain.Delegation, error)
	// LatestActiveForQuestion 同一问题多条活跃转交时只取最近创建的一条
	LatestActiveForQuestion(ctx context.Context, campaignAssignmentID, questionID string) (*domain.Delegation, error)
}
