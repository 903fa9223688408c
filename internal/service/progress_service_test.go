package service

import (
	"testing"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestProgressService_StatusBuckets 验证各状态落入正确的进度桶
func TestProgressService_StatusBuckets(t *testing.T) {
	f := newServiceFixture(t)
	progress := NewProgressService(f.campaigns, f.questions, f.responses, store.NewMemoryKV(), zap.NewNop())

	// 1. 空分配：只有题目总数
	p, err := progress.GetProgress(f.ctx, f.lead, f.assignmentID)
	require.NoError(t, err)
	require.Equal(t, 3, p.TotalQuestions)
	require.Equal(t, 0, p.Answered)
	require.Equal(t, 0, p.Submitted)

	// 2. q1 走到已提交，q2 停在草稿
	resp := f.saveDraftText(t, f.lead, f.q1, "Diesel generators on site", 0)
	resp, err = f.workflow.MarkAnswered(f.ctx, TransitionRequest{
		Identity:        f.lead,
		ResponseID:      resp.ResponseID,
		ExpectedVersion: resp.Version,
	})
	require.NoError(t, err)
	_, err = f.workflow.Submit(f.ctx, TransitionRequest{
		Identity:        f.lead,
		ResponseID:      resp.ResponseID,
		ExpectedVersion: resp.Version,
	})
	require.NoError(t, err)

	tonnes := 412.5
	_, err = f.workflow.SaveDraft(f.ctx, SaveDraftRequest{
		Identity:             f.lead,
		CampaignAssignmentID: f.assignmentID,
		QuestionID:           f.q2,
		Value:                domain.ResponseValue{Numeric: &tonnes},
	})
	require.NoError(t, err)

	progress.Invalidate(f.ctx, f.assignmentID)
	p, err = progress.GetProgress(f.ctx, f.lead, f.assignmentID)
	require.NoError(t, err)
	require.Equal(t, 3, p.TotalQuestions)
	require.Equal(t, 1, p.Answered)
	require.Equal(t, 1, p.Submitted)
	require.Equal(t, 0, p.Approved)
	require.Equal(t, 0, p.Final)
}

// TestProgressService_CacheAndInvalidate 缓存命中返回旧值，失效后重算
func TestProgressService_CacheAndInvalidate(t *testing.T) {
	f := newServiceFixture(t)
	progress := NewProgressService(f.campaigns, f.questions, f.responses, store.NewMemoryKV(), zap.NewNop())

	p, err := progress.GetProgress(f.ctx, f.lead, f.assignmentID)
	require.NoError(t, err)
	require.Equal(t, 0, p.Answered)

	// 缓存尚未失效：底层变化不反映
	f.saveDraftText(t, f.lead, f.q1, "New draft after caching", 0)
	p, err = progress.GetProgress(f.ctx, f.lead, f.assignmentID)
	require.NoError(t, err)
	require.Equal(t, 0, p.Answered)

	progress.Invalidate(f.ctx, f.assignmentID)
	p, err = progress.GetProgress(f.ctx, f.lead, f.assignmentID)
	require.NoError(t, err)
	require.Equal(t, 1, p.Answered)
}

// TestProgressService_TenantGuard 外部组织看不到进度
func TestProgressService_TenantGuard(t *testing.T) {
	f := newServiceFixture(t)
	progress := NewProgressService(f.campaigns, f.questions, f.responses, store.NewMemoryKV(), zap.NewNop())

	_, err := progress.GetProgress(f.ctx, f.outsider, f.assignmentID)
	require.Error(t, err)
}
