package service

import (
	"errors"
	"testing"

	"esgbridge-data/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newQuestionService(f *serviceFixture) QuestionService {
	return NewQuestionService(f.questions, f.questionAssignments, f.campaigns, f.responses, f.audit, zap.NewNop())
}

func TestQuestionService_AddDependencyValidation(t *testing.T) {
	f := newServiceFixture(t)
	svc := newQuestionService(f)

	// equals 缺条件值
	_, err := svc.AddDependency(f.ctx, AddDependencyRequest{
		Identity:            f.reviewer,
		QuestionID:          f.q2,
		DependsOnQuestionID: f.q1,
		Condition:           domain.ConditionEquals,
	})
	var validation *domain.ValidationError
	require.True(t, errors.As(err, &validation))
	require.Equal(t, "condition_value", validation.Field)

	// 非法条件
	_, err = svc.AddDependency(f.ctx, AddDependencyRequest{
		Identity:            f.reviewer,
		QuestionID:          f.q2,
		DependsOnQuestionID: f.q1,
		Condition:           "greater_than",
	})
	require.True(t, errors.As(err, &validation))

	// 自依赖
	_, err = svc.AddDependency(f.ctx, AddDependencyRequest{
		Identity:            f.reviewer,
		QuestionID:          f.q1,
		DependsOnQuestionID: f.q1,
		Condition:           domain.ConditionIsAnswered,
	})
	require.True(t, errors.As(err, &validation))

	t.Logf("✅ dependency validation test passed")
}

func TestQuestionService_AddDependencyRejectsCycle(t *testing.T) {
	f := newServiceFixture(t)
	svc := newQuestionService(f)

	// q2 -> q1, q3 -> q2 合法链
	_, err := svc.AddDependency(f.ctx, AddDependencyRequest{
		Identity:            f.reviewer,
		QuestionID:          f.q2,
		DependsOnQuestionID: f.q1,
		Condition:           domain.ConditionIsAnswered,
	})
	require.NoError(t, err)
	_, err = svc.AddDependency(f.ctx, AddDependencyRequest{
		Identity:            f.reviewer,
		QuestionID:          f.q3,
		DependsOnQuestionID: f.q2,
		Condition:           domain.ConditionIsAnswered,
	})
	require.NoError(t, err)

	// q1 -> q3 会闭环，拒绝
	_, err = svc.AddDependency(f.ctx, AddDependencyRequest{
		Identity:            f.reviewer,
		QuestionID:          f.q1,
		DependsOnQuestionID: f.q3,
		Condition:           domain.ConditionIsAnswered,
	})
	var validation *domain.ValidationError
	require.True(t, errors.As(err, &validation))

	// 直接反向边同样成环
	_, err = svc.AddDependency(f.ctx, AddDependencyRequest{
		Identity:            f.reviewer,
		QuestionID:          f.q1,
		DependsOnQuestionID: f.q2,
		Condition:           domain.ConditionIsAnswered,
	})
	require.True(t, errors.As(err, &validation))

	t.Logf("✅ dependency cycle rejection test passed")
}

func TestQuestionService_EvaluateVisibility(t *testing.T) {
	f := newServiceFixture(t)
	svc := newQuestionService(f)

	// q2 仅当 q1 回答为 "yes" 时可见；q3 仅当 q2 已作答时可见
	_, err := svc.AddDependency(f.ctx, AddDependencyRequest{
		Identity:            f.reviewer,
		QuestionID:          f.q2,
		DependsOnQuestionID: f.q1,
		Condition:           domain.ConditionEquals,
		ConditionValue:      "yes",
	})
	require.NoError(t, err)
	_, err = svc.AddDependency(f.ctx, AddDependencyRequest{
		Identity:            f.reviewer,
		QuestionID:          f.q3,
		DependsOnQuestionID: f.q2,
		Condition:           domain.ConditionIsAnswered,
	})
	require.NoError(t, err)

	// 未作答：q1 可见，q2/q3 不可见
	visibility, err := svc.EvaluateVisibility(f.ctx, f.assignmentID)
	require.NoError(t, err)
	require.True(t, visibility[f.q1])
	require.False(t, visibility[f.q2])
	require.False(t, visibility[f.q3])

	// q1 回答 "no"：equals 不满足
	resp := f.saveDraftText(t, f.lead, f.q1, "no", 0)
	visibility, err = svc.EvaluateVisibility(f.ctx, f.assignmentID)
	require.NoError(t, err)
	require.False(t, visibility[f.q2])

	// q1 改回 "yes"：q2 可见；q2 仍未作答，q3 不可见
	f.saveDraftText(t, f.lead, f.q1, "yes", resp.Version)
	visibility, err = svc.EvaluateVisibility(f.ctx, f.assignmentID)
	require.NoError(t, err)
	require.True(t, visibility[f.q2])
	require.False(t, visibility[f.q3])

	// q2 作答后 q3 可见
	num := 480.0
	_, err = f.workflow.SaveDraft(f.ctx, SaveDraftRequest{
		Identity:             f.lead,
		CampaignAssignmentID: f.assignmentID,
		QuestionID:           f.q2,
		Value:                domain.ResponseValue{Numeric: &num},
	})
	require.NoError(t, err)
	visibility, err = svc.EvaluateVisibility(f.ctx, f.assignmentID)
	require.NoError(t, err)
	require.True(t, visibility[f.q3])

	t.Logf("✅ visibility evaluation test passed")
}

func TestQuestionService_HiddenDependencyHidesDownstream(t *testing.T) {
	f := newServiceFixture(t)
	svc := newQuestionService(f)

	// q2 依赖 q1 == "yes"；q3 依赖 q2 未作答（is_not_answered）
	_, err := svc.AddDependency(f.ctx, AddDependencyRequest{
		Identity:            f.reviewer,
		QuestionID:          f.q2,
		DependsOnQuestionID: f.q1,
		Condition:           domain.ConditionEquals,
		ConditionValue:      "yes",
	})
	require.NoError(t, err)
	_, err = svc.AddDependency(f.ctx, AddDependencyRequest{
		Identity:            f.reviewer,
		QuestionID:          f.q3,
		DependsOnQuestionID: f.q2,
		Condition:           domain.ConditionIsNotAnswered,
	})
	require.NoError(t, err)

	// q2 被隐藏时：即使 q2 未作答满足 is_not_answered，q3 也不可见
	// （被隐藏问题的取值不参与条件判断，隐藏沿依赖链传递）
	visibility, err := svc.EvaluateVisibility(f.ctx, f.assignmentID)
	require.NoError(t, err)
	require.False(t, visibility[f.q2])
	require.False(t, visibility[f.q3])

	t.Logf("✅ hidden dependency test passed")
}

func TestQuestionService_AssignQuestionExactlyOneTarget(t *testing.T) {
	f := newServiceFixture(t)
	svc := newQuestionService(f)

	// 问题和章节都不给
	_, err := svc.AssignQuestion(f.ctx, AssignQuestionRequest{
		Identity:             f.lead,
		CampaignAssignmentID: f.assignmentID,
		AssignedUserID:       f.teammate.UserID,
	})
	var validation *domain.ValidationError
	require.True(t, errors.As(err, &validation))

	// 问题和章节同时给
	_, err = svc.AssignQuestion(f.ctx, AssignQuestionRequest{
		Identity:             f.lead,
		CampaignAssignmentID: f.assignmentID,
		AssignedUserID:       f.teammate.UserID,
		QuestionID:           f.q1,
		SectionName:          "Environment",
	})
	require.True(t, errors.As(err, &validation))

	// 合法的问题级分配：留变更记录 + 审计
	questionAssignmentID, err := svc.AssignQuestion(f.ctx, AssignQuestionRequest{
		Identity:             f.lead,
		CampaignAssignmentID: f.assignmentID,
		AssignedUserID:       f.teammate.UserID,
		QuestionID:           f.q1,
	})
	require.NoError(t, err)

	changes, err := f.questionAssignments.ListAssignmentChanges(f.ctx, questionAssignmentID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Equal(t, "created", changes[0].Action)

	// 撤销分配：责任回落由解析器兜底
	err = svc.RemoveQuestionAssignment(f.ctx, RemoveQuestionAssignmentRequest{
		Identity:             f.lead,
		CampaignAssignmentID: f.assignmentID,
		QuestionAssignmentID: questionAssignmentID,
	})
	require.NoError(t, err)

	res, err := f.resolver.ResolveResponsible(f.ctx, f.assignmentID, f.q1)
	require.NoError(t, err)
	require.Equal(t, f.lead.UserID, res.UserID)

	t.Logf("✅ question assignment test passed")
}

func TestQuestionService_UpdateQuestionKeepsChangeTrail(t *testing.T) {
	f := newServiceFixture(t)
	svc := newQuestionService(f)

	required := false
	err := svc.UpdateQuestion(f.ctx, UpdateQuestionRequest{
		Identity:     f.reviewer,
		QuestionID:   f.q1,
		QuestionText: "Describe scope 1 and scope 2 emission sources",
		IsRequired:   &required,
		Reason:       "Broadened after methodology review",
	})
	require.NoError(t, err)

	updated, err := f.questions.GetQuestion(f.ctx, f.q1)
	require.NoError(t, err)
	require.Equal(t, "Describe scope 1 and scope 2 emission sources", updated.QuestionText)
	require.False(t, updated.IsRequired)

	changes, err := f.questions.ListQuestionChanges(f.ctx, f.q1)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.Contains(t, string(changes[0].OldValue), "scope 1 emission sources")
	require.Contains(t, string(changes[0].NewValue), "scope 2")
	require.Equal(t, "Broadened after methodology review", changes[0].Reason.String)

	// 供应商组织改不了平台组织的问卷内容
	err = svc.UpdateQuestion(f.ctx, UpdateQuestionRequest{
		Identity:     f.lead,
		QuestionID:   f.q1,
		QuestionText: "tampered",
	})
	var violation *domain.TenantViolationError
	require.True(t, errors.As(err, &violation))

	t.Logf("✅ question change trail test passed")
}
