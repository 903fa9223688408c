package service

import (
	"context"
	"testing"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/repository"
	"esgbridge-data/internal/tenant"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// campaignFixture 活动管理测试夹具：平台/供应商两个组织 + 一个问卷版本
type campaignFixture struct {
	ctx       context.Context
	orgs      *repository.MemoryOrganizationsRepo
	campaigns *repository.MemoryCampaignsRepo
	questions *repository.MemoryQuestionsRepo
	svc       CampaignService

	platformID string
	supplierID string
	versionID  string

	platformUser tenant.Identity
	supplierUser tenant.Identity
}

func newCampaignFixture(t *testing.T) *campaignFixture {
	t.Helper()
	ctx := context.Background()
	f := &campaignFixture{
		ctx:       ctx,
		orgs:      repository.NewMemoryOrganizationsRepo(),
		campaigns: repository.NewMemoryCampaignsRepo(),
		questions: repository.NewMemoryQuestionsRepo(),
	}
	f.svc = NewCampaignService(f.campaigns, f.orgs, f.questions, zap.NewNop())

	var err error
	f.platformID, err = f.orgs.CreateOrganization(ctx, &domain.Organization{
		DisplayName: "Platform Corp", OrgType: domain.OrgTypePlatform,
	})
	require.NoError(t, err)
	f.supplierID, err = f.orgs.CreateOrganization(ctx, &domain.Organization{
		DisplayName: "Supplier Ltd", OrgType: domain.OrgTypeSupplier,
	})
	require.NoError(t, err)

	questionnaireID, err := f.questions.CreateQuestionnaire(ctx, &domain.Questionnaire{
		OrganizationID: f.platformID,
		Title:          "Annual ESG Questionnaire",
	})
	require.NoError(t, err)
	f.versionID, err = f.questions.CreateQuestionnaireVersion(ctx, &domain.QuestionnaireVersion{
		QuestionnaireID: questionnaireID,
		VersionNumber:   1,
	})
	require.NoError(t, err)

	f.platformUser = tenant.Identity{UserID: "user-platform", OrganizationID: f.platformID}
	f.supplierUser = tenant.Identity{UserID: "user-supplier", OrganizationID: f.supplierID}
	return f
}

// TestCampaignService_CreateAndList 活动创建与租户隔离读取
func TestCampaignService_CreateAndList(t *testing.T) {
	f := newCampaignFixture(t)

	_, err := f.svc.CreateCampaign(f.ctx, CreateCampaignRequest{Identity: f.platformUser})
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "campaign_name", validation.Field)

	campaignID, err := f.svc.CreateCampaign(f.ctx, CreateCampaignRequest{
		Identity:     f.platformUser,
		CampaignName: "FY2026 Disclosure",
		Description:  "Annual supplier disclosure round",
	})
	require.NoError(t, err)

	c, err := f.svc.GetCampaign(f.ctx, f.platformUser, campaignID)
	require.NoError(t, err)
	require.Equal(t, "FY2026 Disclosure", c.CampaignName)
	require.Equal(t, f.platformID, c.OrganizationID)

	// 其他组织看不到活动
	_, err = f.svc.GetCampaign(f.ctx, f.supplierUser, campaignID)
	require.Error(t, err)

	out, err := f.svc.ListCampaigns(f.ctx, ListCampaignsRequest{Identity: f.platformUser, Page: 1, Size: 10})
	require.NoError(t, err)
	require.Equal(t, 1, out.Total)

	out, err = f.svc.ListCampaigns(f.ctx, ListCampaignsRequest{Identity: f.supplierUser, Page: 1, Size: 10})
	require.NoError(t, err)
	require.Equal(t, 0, out.Total)
}

// TestCampaignService_CrossOrgAssignmentRequiresRelationship 跨组织分配必须有活跃关系
func TestCampaignService_CrossOrgAssignmentRequiresRelationship(t *testing.T) {
	f := newCampaignFixture(t)

	campaignID, err := f.svc.CreateCampaign(f.ctx, CreateCampaignRequest{
		Identity:     f.platformUser,
		CampaignName: "FY2026 Disclosure",
	})
	require.NoError(t, err)

	// 无关系的跨组织分配被拒
	_, err = f.svc.CreateAssignment(f.ctx, CreateAssignmentRequest{
		Identity:               f.platformUser,
		CampaignID:             campaignID,
		OrganizationID:         f.supplierID,
		QuestionnaireVersionID: f.versionID,
		LeadResponderID:        "user-lead",
	})
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "relationship_id", validation.Field)

	relID, err := f.orgs.CreateRelationship(f.ctx, &domain.OrganizationRelationship{
		PlatformOrgID: f.platformID,
		SupplierOrgID: f.supplierID,
	})
	require.NoError(t, err)

	assignmentID, err := f.svc.CreateAssignment(f.ctx, CreateAssignmentRequest{
		Identity:               f.platformUser,
		CampaignID:             campaignID,
		OrganizationID:         f.supplierID,
		QuestionnaireVersionID: f.versionID,
		RelationshipID:         relID,
		LeadResponderID:        "user-lead",
	})
	require.NoError(t, err)

	ca, err := f.svc.GetAssignment(f.ctx, f.supplierUser, assignmentID)
	require.NoError(t, err)
	require.Equal(t, f.supplierID, ca.OrganizationID)
	require.Equal(t, "user-lead", ca.LeadResponderID)

	// 停用关系后不能再分配
	require.NoError(t, f.orgs.DeactivateRelationship(f.ctx, relID))
	_, err = f.svc.CreateAssignment(f.ctx, CreateAssignmentRequest{
		Identity:               f.platformUser,
		CampaignID:             campaignID,
		OrganizationID:         f.supplierID,
		QuestionnaireVersionID: f.versionID,
		RelationshipID:         relID,
		LeadResponderID:        "user-lead-2",
	})
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "relationship_id", validation.Field)
}

// TestCampaignService_AssignmentMaintenance 分配状态与 lead 责任人维护
func TestCampaignService_AssignmentMaintenance(t *testing.T) {
	f := newCampaignFixture(t)

	campaignID, err := f.svc.CreateCampaign(f.ctx, CreateCampaignRequest{
		Identity:     f.platformUser,
		CampaignName: "FY2026 Disclosure",
	})
	require.NoError(t, err)

	// 对调用者自己组织的分配不需要关系
	assignmentID, err := f.svc.CreateAssignment(f.ctx, CreateAssignmentRequest{
		Identity:               f.platformUser,
		CampaignID:             campaignID,
		OrganizationID:         f.platformID,
		QuestionnaireVersionID: f.versionID,
		LeadResponderID:        "user-internal-lead",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.SetAssignmentStatus(f.ctx, f.platformUser, assignmentID, "in_progress"))
	ca, err := f.svc.GetAssignment(f.ctx, f.platformUser, assignmentID)
	require.NoError(t, err)
	require.Equal(t, "in_progress", ca.Status)

	require.NoError(t, f.svc.SetLeadResponder(f.ctx, f.platformUser, assignmentID, "user-new-lead"))
	ca, err = f.svc.GetAssignment(f.ctx, f.platformUser, assignmentID)
	require.NoError(t, err)
	require.Equal(t, "user-new-lead", ca.LeadResponderID)

	// 供应商用户不能改平台组织分配的责任人
	err = f.svc.SetLeadResponder(f.ctx, f.supplierUser, assignmentID, "user-hijack")
	require.Error(t, err)
}
