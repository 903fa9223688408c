package service

import (
	"errors"
	"testing"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/tenant"

	"github.com/stretchr/testify/require"
)

func TestReviewService_AssignReviewerValidation(t *testing.T) {
	f := newServiceFixture(t)

	// 问题级范围缺问题
	_, err := f.review.AssignReviewer(f.ctx, AssignReviewerRequest{
		Identity:             f.reviewer,
		CampaignAssignmentID: f.assignmentID,
		ReviewerID:           f.reviewer.UserID,
		Scope:                domain.ScopeQuestion,
	})
	var validation *domain.ValidationError
	require.True(t, errors.As(err, &validation))

	// 非法范围
	_, err = f.review.AssignReviewer(f.ctx, AssignReviewerRequest{
		Identity:             f.reviewer,
		CampaignAssignmentID: f.assignmentID,
		ReviewerID:           f.reviewer.UserID,
		Scope:                "everything",
	})
	require.True(t, errors.As(err, &validation))

	// 第三方组织不能指派
	_, err = f.review.AssignReviewer(f.ctx, AssignReviewerRequest{
		Identity:             f.outsider,
		CampaignAssignmentID: f.assignmentID,
		ReviewerID:           f.outsider.UserID,
		Scope:                domain.ScopeAssignment,
	})
	var violation *domain.TenantViolationError
	require.True(t, errors.As(err, &violation))

	// 活动发起方指派章节级审核人
	reviewAssignmentID, err := f.review.AssignReviewer(f.ctx, AssignReviewerRequest{
		Identity:             f.reviewer,
		CampaignAssignmentID: f.assignmentID,
		ReviewerID:           f.reviewer.UserID,
		Scope:                domain.ScopeSection,
		SectionName:          "Environment",
	})
	require.NoError(t, err)

	ra, err := f.reviews.GetReviewAssignment(f.ctx, reviewAssignmentID)
	require.NoError(t, err)
	require.Equal(t, domain.ReviewPending, ra.Status)
	require.True(t, ra.IsActive)

	t.Logf("✅ assign-reviewer validation test passed")
}

func TestReviewService_CommentLifecycle(t *testing.T) {
	f := newServiceFixture(t)
	f.assignWholeReviewer(t)

	resp := f.saveDraftText(t, f.lead, f.q1, "Answer under review", 0)
	resp, err := f.workflow.Submit(f.ctx, TransitionRequest{Identity: f.lead, ResponseID: resp.ResponseID, ExpectedVersion: resp.Version})
	require.NoError(t, err)

	// 非审核人不能留意见
	_, err = f.review.RecordComment(f.ctx, RecordCommentRequest{
		Identity:    f.teammate,
		ResponseID:  resp.ResponseID,
		CommentText: "looks wrong",
	})
	var unauthorized *domain.UnauthorizedActorError
	require.True(t, errors.As(err, &unauthorized))

	// requires_change 的意见本身不改变响应状态
	commentID, err := f.review.RecordComment(f.ctx, RecordCommentRequest{
		Identity:       f.reviewer,
		ResponseID:     resp.ResponseID,
		CommentText:    "Please attach the measurement methodology",
		RequiresChange: true,
	})
	require.NoError(t, err)

	current, err := f.responses.GetResponse(f.ctx, resp.ResponseID)
	require.NoError(t, err)
	require.Equal(t, domain.ResponseSubmittedForReview, current.Status)

	comments, err := f.review.ListComments(f.ctx, f.lead, resp.ResponseID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.True(t, comments[0].RequiresChange)
	require.False(t, comments[0].IsResolved)

	// 责任方解决意见
	err = f.review.ResolveComment(f.ctx, ResolveCommentRequest{Identity: f.lead, CommentID: commentID})
	require.NoError(t, err)

	comments, err = f.review.ListComments(f.ctx, f.lead, resp.ResponseID)
	require.NoError(t, err)
	require.True(t, comments[0].IsResolved)
	require.Equal(t, f.lead.UserID, comments[0].ResolvedBy.String)

	// 重复解决被拒
	err = f.review.ResolveComment(f.ctx, ResolveCommentRequest{Identity: f.lead, CommentID: commentID})
	require.Error(t, err)

	t.Logf("✅ comment lifecycle test passed")
}

func TestReviewService_ApplyScopeDecision(t *testing.T) {
	f := newServiceFixture(t)

	// Environment 一题送审、一题停在草稿，Governance 一题也在草稿
	r1 := f.saveDraftText(t, f.lead, f.q1, "Gas boilers", 0)
	r1, err := f.workflow.Submit(f.ctx, TransitionRequest{Identity: f.lead, ResponseID: r1.ResponseID, ExpectedVersion: r1.Version})
	require.NoError(t, err)

	num := 480.0
	r2, err := f.workflow.SaveDraft(f.ctx, SaveDraftRequest{
		Identity:             f.lead,
		CampaignAssignmentID: f.assignmentID,
		QuestionID:           f.q2,
		Value:                domain.ResponseValue{Numeric: &num},
	})
	require.NoError(t, err)

	yes := true
	r3, err := f.workflow.SaveDraft(f.ctx, SaveDraftRequest{
		Identity:             f.lead,
		CampaignAssignmentID: f.assignmentID,
		QuestionID:           f.q3,
		Value:                domain.ResponseValue{Bool: &yes},
	})
	require.NoError(t, err)

	reviewAssignmentID, err := f.review.AssignReviewer(f.ctx, AssignReviewerRequest{
		Identity:             f.reviewer,
		CampaignAssignmentID: f.assignmentID,
		ReviewerID:           f.reviewer.UserID,
		Scope:                domain.ScopeSection,
		SectionName:          "Environment",
	})
	require.NoError(t, err)

	// request_changes 必须带理由
	_, err = f.review.ApplyScopeDecision(f.ctx, ScopeDecisionRequest{
		Identity:           f.reviewer,
		ReviewAssignmentID: reviewAssignmentID,
		Decision:           ScopeDecisionRequestChanges,
	})
	var validation *domain.ValidationError
	require.True(t, errors.As(err, &validation))

	// 只有被指派的审核人本人可以裁决
	_, err = f.review.ApplyScopeDecision(f.ctx, ScopeDecisionRequest{
		Identity:           tenant.Identity{UserID: "user-other-reviewer", OrganizationID: f.platformOrgID},
		ReviewAssignmentID: reviewAssignmentID,
		Decision:           ScopeDecisionApprove,
	})
	var unauthorized *domain.UnauthorizedActorError
	require.True(t, errors.As(err, &unauthorized))

	// 章节批量通过：送审中的响应先拉入审核再通过；
	// 范围内不可裁决的草稿以逐条失败返回，不会从结果里消失
	results, err := f.review.ApplyScopeDecision(f.ctx, ScopeDecisionRequest{
		Identity:           f.reviewer,
		ReviewAssignmentID: reviewAssignmentID,
		Decision:           ScopeDecisionApprove,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byResponse := map[string]ScopeDecisionResult{}
	for _, result := range results {
		byResponse[result.ResponseID] = result
	}
	require.True(t, byResponse[r1.ResponseID].Applied)
	require.NoError(t, byResponse[r1.ResponseID].Err)
	require.False(t, byResponse[r2.ResponseID].Applied)
	var illegal *domain.IllegalTransitionError
	require.True(t, errors.As(byResponse[r2.ResponseID].Err, &illegal))
	require.Equal(t, domain.ResponseDraft, illegal.From)

	resp, err := f.responses.GetResponse(f.ctx, r1.ResponseID)
	require.NoError(t, err)
	require.Equal(t, domain.ResponseReviewApproved, resp.Status)

	// 裁决失败的草稿保持原状
	resp, err = f.responses.GetResponse(f.ctx, r2.ResponseID)
	require.NoError(t, err)
	require.Equal(t, domain.ResponseDraft, resp.Status)

	// 范围外的 Governance 草稿不受影响
	resp, err = f.responses.GetResponse(f.ctx, r3.ResponseID)
	require.NoError(t, err)
	require.Equal(t, domain.ResponseDraft, resp.Status)

	// 审核分配自身状态推进
	ra, err := f.reviews.GetReviewAssignment(f.ctx, reviewAssignmentID)
	require.NoError(t, err)
	require.Equal(t, domain.ReviewApproved, ra.Status)

	t.Logf("✅ scope decision test passed")
}

func TestReviewService_DeactivatedReviewerLosesAuthority(t *testing.T) {
	f := newServiceFixture(t)
	reviewAssignmentID := f.assignWholeReviewer(t)

	resp := f.saveDraftText(t, f.lead, f.q1, "Answer", 0)
	resp, err := f.workflow.Submit(f.ctx, TransitionRequest{Identity: f.lead, ResponseID: resp.ResponseID, ExpectedVersion: resp.Version})
	require.NoError(t, err)

	err = f.review.DeactivateReviewer(f.ctx, DeactivateReviewerRequest{
		Identity:           f.reviewer,
		ReviewAssignmentID: reviewAssignmentID,
	})
	require.NoError(t, err)

	// 停用后审核动作被拒
	_, err = f.workflow.BeginReview(f.ctx, ReviewActionRequest{
		Identity:        f.reviewer,
		ResponseID:      resp.ResponseID,
		ExpectedVersion: resp.Version,
	})
	var unauthorized *domain.UnauthorizedActorError
	require.True(t, errors.As(err, &unauthorized))

	// 停用的分配也不能再批量裁决
	_, err = f.review.ApplyScopeDecision(f.ctx, ScopeDecisionRequest{
		Identity:           f.reviewer,
		ReviewAssignmentID: reviewAssignmentID,
		Decision:           ScopeDecisionApprove,
	})
	require.Error(t, err)

	t.Logf("✅ reviewer deactivation test passed")
}
