package service

import (
	"testing"

	"esgbridge-data/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestResolverService_LeadFallback(t *testing.T) {
	f := newServiceFixture(t)

	// 没有任何分配/转交：全部落在 lead responder
	for _, questionID := range []string{f.q1, f.q2, f.q3} {
		res, err := f.resolver.ResolveResponsible(f.ctx, f.assignmentID, questionID)
		require.NoError(t, err)
		require.Equal(t, f.lead.UserID, res.UserID)
		require.Equal(t, ResolutionSourceLead, res.Source)
	}

	t.Logf("✅ lead fallback test passed")
}

func TestResolverService_Priority(t *testing.T) {
	f := newServiceFixture(t)

	// 章节级分配：Environment 整章归 teammate
	_, err := f.questionAssignments.CreateQuestionAssignment(f.ctx,
		domain.NewSectionLevelAssignment(f.assignmentID, "Environment", f.teammate.UserID, f.lead.UserID))
	require.NoError(t, err)

	res, err := f.resolver.ResolveResponsible(f.ctx, f.assignmentID, f.q1)
	require.NoError(t, err)
	require.Equal(t, f.teammate.UserID, res.UserID)
	require.Equal(t, ResolutionSourceSection, res.Source)

	// Governance 章节不受影响，仍归 lead
	res, err = f.resolver.ResolveResponsible(f.ctx, f.assignmentID, f.q3)
	require.NoError(t, err)
	require.Equal(t, ResolutionSourceLead, res.Source)

	// 问题级分配压过章节级
	_, err = f.questionAssignments.CreateQuestionAssignment(f.ctx,
		domain.NewQuestionLevelAssignment(f.assignmentID, f.q1, "user-specialist", f.lead.UserID))
	require.NoError(t, err)

	res, err = f.resolver.ResolveResponsible(f.ctx, f.assignmentID, f.q1)
	require.NoError(t, err)
	require.Equal(t, "user-specialist", res.UserID)
	require.Equal(t, ResolutionSourceQuestion, res.Source)

	// 活跃转交压过一切
	_, err = f.delegations.CreateDelegation(f.ctx, &domain.Delegation{
		CampaignAssignmentID: f.assignmentID,
		QuestionID:           f.q1,
		FromUserID:           "user-specialist",
		ToUserID:             "user-delegate",
	})
	require.NoError(t, err)

	res, err = f.resolver.ResolveResponsible(f.ctx, f.assignmentID, f.q1)
	require.NoError(t, err)
	require.Equal(t, "user-delegate", res.UserID)
	require.Equal(t, ResolutionSourceDelegation, res.Source)

	t.Logf("✅ resolution priority test passed")
}

func TestResolverService_LatestDelegationWins(t *testing.T) {
	f := newServiceFixture(t)

	first, err := f.delegations.CreateDelegation(f.ctx, &domain.Delegation{
		CampaignAssignmentID: f.assignmentID,
		QuestionID:           f.q2,
		FromUserID:           f.lead.UserID,
		ToUserID:             "user-first",
	})
	require.NoError(t, err)
	second, err := f.delegations.CreateDelegation(f.ctx, &domain.Delegation{
		CampaignAssignmentID: f.assignmentID,
		QuestionID:           f.q2,
		FromUserID:           f.lead.UserID,
		ToUserID:             "user-second",
	})
	require.NoError(t, err)

	// 同题多条活跃转交：最近创建的一条生效
	res, err := f.resolver.ResolveResponsible(f.ctx, f.assignmentID, f.q2)
	require.NoError(t, err)
	require.Equal(t, "user-second", res.UserID)
	require.Equal(t, second, res.DelegationID)

	// 最近一条关闭后回落到更早的活跃转交
	require.NoError(t, f.delegations.CompleteDelegation(f.ctx, second))
	res, err = f.resolver.ResolveResponsible(f.ctx, f.assignmentID, f.q2)
	require.NoError(t, err)
	require.Equal(t, "user-first", res.UserID)
	require.Equal(t, first, res.DelegationID)

	// 全部关闭后回落 lead
	require.NoError(t, f.delegations.CompleteDelegation(f.ctx, first))
	res, err = f.resolver.ResolveResponsible(f.ctx, f.assignmentID, f.q2)
	require.NoError(t, err)
	require.Equal(t, f.lead.UserID, res.UserID)
	require.Equal(t, ResolutionSourceLead, res.Source)

	t.Logf("✅ latest delegation test passed")
}

func TestResolverService_ResolveAll(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.questionAssignments.CreateQuestionAssignment(f.ctx,
		domain.NewSectionLevelAssignment(f.assignmentID, "Environment", f.teammate.UserID, f.lead.UserID))
	require.NoError(t, err)
	_, err = f.delegations.CreateDelegation(f.ctx, &domain.Delegation{
		CampaignAssignmentID: f.assignmentID,
		QuestionID:           f.q2,
		FromUserID:           f.teammate.UserID,
		ToUserID:             "user-delegate",
	})
	require.NoError(t, err)

	all, err := f.resolver.ResolveAll(f.ctx, f.assignmentID)
	require.NoError(t, err)
	require.Len(t, all, 3)

	// 逐题结果与单题解析一致
	require.Equal(t, f.teammate.UserID, all[f.q1].UserID)
	require.Equal(t, ResolutionSourceSection, all[f.q1].Source)
	require.Equal(t, "user-delegate", all[f.q2].UserID)
	require.Equal(t, ResolutionSourceDelegation, all[f.q2].Source)
	require.Equal(t, f.lead.UserID, all[f.q3].UserID)
	require.Equal(t, ResolutionSourceLead, all[f.q3].Source)

	t.Logf("✅ resolve-all test passed")
}
