package service

import (
	"database/sql"
	"errors"
	"testing"

	"esgbridge-data/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// seedFinalResponse 在历史活动分配里种一条 final 响应作为预填来源
func seedFinalResponse(t *testing.T, f *serviceFixture, campaignAssignmentID, questionID, text string) string {
	t.Helper()
	responseID, err := f.responses.CreateResponse(f.ctx, &domain.Response{
		CampaignAssignmentID: campaignAssignmentID,
		QuestionID:           questionID,
		ResponderID:          f.lead.UserID,
		Status:               domain.ResponseFinal,
		TextValue:            sql.NullString{String: text, Valid: true},
	}, nil)
	require.NoError(t, err)
	return responseID
}

func TestPrepopulationService_CopyFromPriorCampaign(t *testing.T) {
	f := newServiceFixture(t)
	prepopulation := NewPrepopulationService(f.campaigns, f.questions, f.responses, f.resolver, zap.NewNop())

	// 去年同问卷版本的活动分配，q1 已定稿
	priorCampaignID, err := f.campaigns.CreateCampaign(f.ctx, &domain.Campaign{
		OrganizationID: f.platformOrgID,
		CampaignName:   "FY2025 Supplier ESG Disclosure",
		CreatedBy:      "user-admin",
	})
	require.NoError(t, err)
	priorAssignmentID, err := f.campaigns.CreateAssignment(f.ctx, &domain.CampaignAssignment{
		CampaignID:             priorCampaignID,
		OrganizationID:         f.supplierOrgID,
		QuestionnaireVersionID: f.versionID,
		LeadResponderID:        f.lead.UserID,
	})
	require.NoError(t, err)
	sourceID := seedFinalResponse(t, f, priorAssignmentID, f.q1, "Last year's emission sources")

	// 第三方组织不能触发预填
	_, err = prepopulation.Prepopulate(f.ctx, PrepopulateRequest{
		Identity:             f.outsider,
		CampaignAssignmentID: f.assignmentID,
	})
	var violation *domain.TenantViolationError
	require.True(t, errors.As(err, &violation))

	result, err := prepopulation.Prepopulate(f.ctx, PrepopulateRequest{
		Identity:             f.lead,
		CampaignAssignmentID: f.assignmentID,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Created)
	require.Equal(t, 0, result.Skipped)

	// 预填响应：状态 pre_populated、取值照搬、谱系指回来源
	resp, err := f.responses.GetByQuestionAndAssignment(f.ctx, f.assignmentID, f.q1, f.lead.UserID)
	require.NoError(t, err)
	require.Equal(t, domain.ResponsePrePopulated, resp.Status)
	require.True(t, resp.IsPrePopulated)
	require.False(t, resp.IsPrePopulatedAccepted)
	require.Equal(t, "Last year's emission sources", resp.TextValue.String)
	require.Equal(t, sourceID, resp.SourceResponseID.String)

	// 再跑一次：已有响应跳过，不覆盖
	result, err = prepopulation.Prepopulate(f.ctx, PrepopulateRequest{
		Identity:             f.lead,
		CampaignAssignmentID: f.assignmentID,
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.Created)
	require.Equal(t, 1, result.Skipped)

	// 预填有审计落痕
	logs, _, err := f.audit.ListByAssignment(f.ctx, f.assignmentID, 1, 50)
	require.NoError(t, err)
	copied := 0
	for _, l := range logs {
		if l.Action == domain.AuditActionPrefillCopied {
			copied++
		}
	}
	require.Equal(t, 1, copied)

	t.Logf("✅ prepopulation copy test passed")
}

func TestPrepopulationService_AcceptPrefillThenSubmit(t *testing.T) {
	f := newServiceFixture(t)
	prepopulation := NewPrepopulationService(f.campaigns, f.questions, f.responses, f.resolver, zap.NewNop())

	priorCampaignID, err := f.campaigns.CreateCampaign(f.ctx, &domain.Campaign{
		OrganizationID: f.platformOrgID,
		CampaignName:   "FY2025 Supplier ESG Disclosure",
		CreatedBy:      "user-admin",
	})
	require.NoError(t, err)
	priorAssignmentID, err := f.campaigns.CreateAssignment(f.ctx, &domain.CampaignAssignment{
		CampaignID:             priorCampaignID,
		OrganizationID:         f.supplierOrgID,
		QuestionnaireVersionID: f.versionID,
		LeadResponderID:        f.lead.UserID,
	})
	require.NoError(t, err)
	seedFinalResponse(t, f, priorAssignmentID, f.q1, "Carried-over answer")

	_, err = prepopulation.Prepopulate(f.ctx, PrepopulateRequest{
		Identity:             f.lead,
		CampaignAssignmentID: f.assignmentID,
	})
	require.NoError(t, err)
	resp, err := f.responses.GetByQuestionAndAssignment(f.ctx, f.assignmentID, f.q1, f.lead.UserID)
	require.NoError(t, err)

	// 普通草稿不能走接受预填
	yes := true
	draft, err := f.workflow.SaveDraft(f.ctx, SaveDraftRequest{
		Identity:             f.lead,
		CampaignAssignmentID: f.assignmentID,
		QuestionID:           f.q3,
		Value:                domain.ResponseValue{Bool: &yes},
	})
	require.NoError(t, err)
	_, err = f.workflow.AcceptPrefill(f.ctx, TransitionRequest{
		Identity:        f.lead,
		ResponseID:      draft.ResponseID,
		ExpectedVersion: draft.Version,
	})
	var validation *domain.ValidationError
	require.True(t, errors.As(err, &validation))

	// 接受预填
	resp, err = f.workflow.AcceptPrefill(f.ctx, TransitionRequest{
		Identity:        f.lead,
		ResponseID:      resp.ResponseID,
		ExpectedVersion: resp.Version,
	})
	require.NoError(t, err)
	require.True(t, resp.IsPrePopulatedAccepted)
	require.Equal(t, domain.ResponsePrePopulated, resp.Status)

	// 接受后的预填响应可以直接送审
	resp, err = f.workflow.Submit(f.ctx, TransitionRequest{
		Identity:        f.lead,
		ResponseID:      resp.ResponseID,
		ExpectedVersion: resp.Version,
	})
	require.NoError(t, err)
	require.Equal(t, domain.ResponseSubmittedForReview, resp.Status)

	// 已接受的响应不能再次接受
	_, err = f.workflow.AcceptPrefill(f.ctx, TransitionRequest{
		Identity:        f.lead,
		ResponseID:      resp.ResponseID,
		ExpectedVersion: resp.Version,
	})
	require.True(t, errors.As(err, &validation))

	t.Logf("✅ accept-prefill test passed")
}

func TestPrepopulationService_EditInsteadOfAccept(t *testing.T) {
	f := newServiceFixture(t)
	prepopulation := NewPrepopulationService(f.campaigns, f.questions, f.responses, f.resolver, zap.NewNop())

	priorCampaignID, err := f.campaigns.CreateCampaign(f.ctx, &domain.Campaign{
		OrganizationID: f.platformOrgID,
		CampaignName:   "FY2025 Supplier ESG Disclosure",
		CreatedBy:      "user-admin",
	})
	require.NoError(t, err)
	priorAssignmentID, err := f.campaigns.CreateAssignment(f.ctx, &domain.CampaignAssignment{
		CampaignID:             priorCampaignID,
		OrganizationID:         f.supplierOrgID,
		QuestionnaireVersionID: f.versionID,
		LeadResponderID:        f.lead.UserID,
	})
	require.NoError(t, err)
	seedFinalResponse(t, f, priorAssignmentID, f.q1, "Stale answer")

	_, err = prepopulation.Prepopulate(f.ctx, PrepopulateRequest{
		Identity:             f.lead,
		CampaignAssignmentID: f.assignmentID,
	})
	require.NoError(t, err)
	resp, err := f.responses.GetByQuestionAndAssignment(f.ctx, f.assignmentID, f.q1, f.lead.UserID)
	require.NoError(t, err)

	// 不接受，直接改：pre_populated -> draft，预填谱系保留
	edited := f.saveDraftText(t, f.lead, f.q1, "Fresh answer", resp.Version)
	require.Equal(t, domain.ResponseDraft, edited.Status)
	require.Equal(t, "Fresh answer", edited.TextValue.String)
	require.True(t, edited.IsPrePopulated)
	require.True(t, edited.SourceResponseID.Valid)

	t.Logf("✅ edit-prefill test passed")
}
