// +build integration

package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strconv"
	"testing"

	"esgbridge-data/internal/config"
	"esgbridge-data/internal/database"
	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/tenant"

	"github.com/google/uuid"
)

// getEnv 读取环境变量，缺省时返回默认值
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt 读取整型环境变量
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// 获取测试数据库连接
func getTestDBForResponses(t *testing.T) *sql.DB {
	cfg := &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "esgbridge"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		t.Skipf("Skipping integration test: cannot ping database: %v", err)
		return nil
	}

	return db
}

// responseTestSeed 响应集成测试的基础数据：两个组织、两名用户、一次活动分配
type responseTestSeed struct {
	platformOrgID string
	supplierOrgID string
	adminID       string
	leadID        string
	campaignID    string
	versionID     string
	questionID    string
	assignmentID  string
}

func seedResponseTestData(t *testing.T, db *sql.DB) *responseTestSeed {
	s := &responseTestSeed{
		platformOrgID: uuid.NewString(),
		supplierOrgID: uuid.NewString(),
		adminID:       uuid.NewString(),
		leadID:        uuid.NewString(),
		campaignID:    uuid.NewString(),
		versionID:     uuid.NewString(),
		questionID:    uuid.NewString(),
		assignmentID:  uuid.NewString(),
	}
	questionnaireID := uuid.NewString()

	steps := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO organizations (organization_id, display_name, org_type) VALUES ($1::uuid, $2, $3)`,
			[]any{s.platformOrgID, "Integration Platform Org", "platform"}},
		{`INSERT INTO organizations (organization_id, display_name, org_type) VALUES ($1::uuid, $2, $3)`,
			[]any{s.supplierOrgID, "Integration Supplier Org", "supplier"}},
		{`INSERT INTO users (user_id, organization_id, user_account, display_name) VALUES ($1::uuid, $2::uuid, $3, $4)`,
			[]any{s.adminID, s.platformOrgID, "it-admin", "Integration Admin"}},
		{`INSERT INTO users (user_id, organization_id, user_account, display_name) VALUES ($1::uuid, $2::uuid, $3, $4)`,
			[]any{s.leadID, s.supplierOrgID, "it-lead", "Integration Lead"}},
		{`INSERT INTO campaigns (campaign_id, organization_id, campaign_name, created_by) VALUES ($1::uuid, $2::uuid, $3, $4::uuid)`,
			[]any{s.campaignID, s.platformOrgID, "Integration Campaign", s.adminID}},
		{`INSERT INTO questionnaires (questionnaire_id, organization_id, title) VALUES ($1::uuid, $2::uuid, $3)`,
			[]any{questionnaireID, s.platformOrgID, "Integration Questionnaire"}},
		{`INSERT INTO questionnaire_versions (questionnaire_version_id, questionnaire_id, version_number) VALUES ($1::uuid, $2::uuid, $3)`,
			[]any{s.versionID, questionnaireID, 1}},
		{`INSERT INTO questions (question_id, organization_id, questionnaire_version_id, section, question_text, question_type, is_required, display_order)
		  VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7, $8)`,
			[]any{s.questionID, s.platformOrgID, s.versionID, "Environment", "Integration question", "text", true, 1}},
		{`INSERT INTO campaign_assignments (campaign_assignment_id, campaign_id, organization_id, questionnaire_version_id, lead_responder_id)
		  VALUES ($1::uuid, $2::uuid, $3::uuid, $4::uuid, $5::uuid)`,
			[]any{s.assignmentID, s.campaignID, s.supplierOrgID, s.versionID, s.leadID}},
	}
	for _, step := range steps {
		if _, err := db.Exec(step.query, step.args...); err != nil {
			t.Fatalf("failed to seed test data: %v", err)
		}
	}
	return s
}

// 清理测试数据
func cleanupResponseTestData(t *testing.T, db *sql.DB, s *responseTestSeed) {
	db.Exec(`DELETE FROM review_audit_logs WHERE campaign_assignment_id = $1::uuid`, s.assignmentID)
	db.Exec(`DELETE FROM response_status_histories WHERE response_id IN (SELECT response_id FROM responses WHERE campaign_assignment_id = $1::uuid)`, s.assignmentID)
	db.Exec(`DELETE FROM response_changes WHERE response_id IN (SELECT response_id FROM responses WHERE campaign_assignment_id = $1::uuid)`, s.assignmentID)
	db.Exec(`DELETE FROM response_workflows WHERE campaign_assignment_id = $1::uuid`, s.assignmentID)
	db.Exec(`DELETE FROM responses WHERE campaign_assignment_id = $1::uuid`, s.assignmentID)
	db.Exec(`DELETE FROM campaign_assignments WHERE campaign_assignment_id = $1::uuid`, s.assignmentID)
	db.Exec(`DELETE FROM questions WHERE question_id = $1::uuid`, s.questionID)
	db.Exec(`DELETE FROM questionnaire_versions WHERE questionnaire_version_id = $1::uuid`, s.versionID)
	db.Exec(`DELETE FROM questionnaires WHERE organization_id = $1::uuid`, s.platformOrgID)
	db.Exec(`DELETE FROM campaigns WHERE campaign_id = $1::uuid`, s.campaignID)
	db.Exec(`DELETE FROM users WHERE user_id IN ($1::uuid, $2::uuid)`, s.adminID, s.leadID)
	db.Exec(`DELETE FROM organizations WHERE organization_id IN ($1::uuid, $2::uuid)`, s.platformOrgID, s.supplierOrgID)
}

func TestPostgresResponsesRepository_CreateAndGet(t *testing.T) {
	db := getTestDBForResponses(t)
	if db == nil {
		return
	}
	defer db.Close()

	seed := seedResponseTestData(t, db)
	defer cleanupResponseTestData(t, db, seed)

	repo := NewPostgresResponsesRepository(db)
	ctx := context.Background()

	resp := &domain.Response{
		CampaignAssignmentID: seed.assignmentID,
		QuestionID:           seed.questionID,
		ResponderID:          seed.leadID,
		Status:               domain.ResponseDraft,
		TextValue:            sql.NullString{String: "integration draft", Valid: true},
	}
	responseID, err := repo.CreateResponse(ctx, resp, &domain.ReviewAuditLog{
		ActorID:              seed.leadID,
		CampaignAssignmentID: seed.assignmentID,
		Action:               domain.AuditActionValueSaved,
	})
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}
	if responseID == "" {
		t.Fatal("Expected non-empty response_id")
	}

	created, err := repo.GetResponse(ctx, responseID)
	if err != nil {
		t.Fatalf("GetResponse failed: %v", err)
	}
	if created.Status != domain.ResponseDraft {
		t.Errorf("Expected status 'draft', got '%s'", created.Status)
	}
	if created.TextValue.String != "integration draft" {
		t.Errorf("Expected text value 'integration draft', got '%s'", created.TextValue.String)
	}
	if created.Version != 1 {
		t.Errorf("Expected version 1, got %d", created.Version)
	}

	// 影子投影同步创建
	w, err := repo.GetWorkflow(ctx, responseID)
	if err != nil {
		t.Fatalf("GetWorkflow failed: %v", err)
	}
	if w.CurrentStatus != domain.ResponseDraft {
		t.Errorf("Expected workflow status 'draft', got '%s'", w.CurrentStatus)
	}

	t.Logf("✅ CreateAndGet test passed: responseID=%s", responseID)
}

func TestPostgresResponsesRepository_ApplyTransition(t *testing.T) {
	db := getTestDBForResponses(t)
	if db == nil {
		return
	}
	defer db.Close()

	seed := seedResponseTestData(t, db)
	defer cleanupResponseTestData(t, db, seed)

	repo := NewPostgresResponsesRepository(db)
	ctx := context.Background()

	responseID, err := repo.CreateResponse(ctx, &domain.Response{
		CampaignAssignmentID: seed.assignmentID,
		QuestionID:           seed.questionID,
		ResponderID:          seed.leadID,
		Status:               domain.ResponseDraft,
		TextValue:            sql.NullString{String: "before transition", Valid: true},
	}, nil)
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}

	resp, err := repo.GetResponse(ctx, responseID)
	if err != nil {
		t.Fatalf("GetResponse failed: %v", err)
	}

	next := *resp
	next.Status = domain.ResponseAnswered
	err = repo.ApplyTransition(ctx, resp.Version, ResponseTransition{
		Response: &next,
		History: &domain.ResponseStatusHistory{
			ResponseID: responseID,
			FromStatus: domain.ResponseDraft,
			ToStatus:   domain.ResponseAnswered,
			ChangedBy:  seed.leadID,
		},
		Audit: &domain.ReviewAuditLog{
			ActorID:              seed.leadID,
			CampaignAssignmentID: seed.assignmentID,
			ResponseID:           sql.NullString{String: responseID, Valid: true},
			Action:               domain.AuditActionStatusChanged,
			FromStatus:           sql.NullString{String: domain.ResponseDraft, Valid: true},
			ToStatus:             sql.NullString{String: domain.ResponseAnswered, Valid: true},
		},
		Workflow: &domain.ResponseWorkflow{
			ResponseID:           responseID,
			CampaignAssignmentID: seed.assignmentID,
			CurrentStatus:        domain.ResponseAnswered,
		},
	})
	if err != nil {
		t.Fatalf("ApplyTransition failed: %v", err)
	}

	updated, err := repo.GetResponse(ctx, responseID)
	if err != nil {
		t.Fatalf("GetResponse failed: %v", err)
	}
	if updated.Status != domain.ResponseAnswered {
		t.Errorf("Expected status 'answered', got '%s'", updated.Status)
	}
	if updated.Version != resp.Version+1 {
		t.Errorf("Expected version %d, got %d", resp.Version+1, updated.Version)
	}

	history, err := repo.ListStatusHistory(ctx, responseID)
	if err != nil {
		t.Fatalf("ListStatusHistory failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 history row, got %d", len(history))
	}
	if history[0].ToStatus != domain.ResponseAnswered {
		t.Errorf("Expected history to_status 'answered', got '%s'", history[0].ToStatus)
	}

	t.Logf("✅ ApplyTransition test passed: responseID=%s version=%d", responseID, updated.Version)
}

func TestPostgresResponsesRepository_VersionConflict(t *testing.T) {
	db := getTestDBForResponses(t)
	if db == nil {
		return
	}
	defer db.Close()

	seed := seedResponseTestData(t, db)
	defer cleanupResponseTestData(t, db, seed)

	repo := NewPostgresResponsesRepository(db)
	ctx := context.Background()

	responseID, err := repo.CreateResponse(ctx, &domain.Response{
		CampaignAssignmentID: seed.assignmentID,
		QuestionID:           seed.questionID,
		ResponderID:          seed.leadID,
		Status:               domain.ResponseDraft,
		TextValue:            sql.NullString{String: "conflict base", Valid: true},
	}, nil)
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}

	resp, err := repo.GetResponse(ctx, responseID)
	if err != nil {
		t.Fatalf("GetResponse failed: %v", err)
	}

	// 用过期版本提交迁移
	next := *resp
	next.Status = domain.ResponseAnswered
	staleVersion := resp.Version + 5
	err = repo.ApplyTransition(ctx, staleVersion, ResponseTransition{
		Response: &next,
		History: &domain.ResponseStatusHistory{
			ResponseID: responseID,
			FromStatus: domain.ResponseDraft,
			ToStatus:   domain.ResponseAnswered,
			ChangedBy:  seed.leadID,
		},
		Audit: &domain.ReviewAuditLog{
			ActorID:              seed.leadID,
			CampaignAssignmentID: seed.assignmentID,
			Action:               domain.AuditActionStatusChanged,
		},
		Workflow: &domain.ResponseWorkflow{
			ResponseID:           responseID,
			CampaignAssignmentID: seed.assignmentID,
			CurrentStatus:        domain.ResponseAnswered,
		},
	})
	if err == nil {
		t.Fatal("Expected version conflict error, got nil")
	}
	var conflict *domain.ConcurrentModificationError
	if !errors.As(err, &conflict) {
		t.Fatalf("Expected ConcurrentModificationError, got %v", err)
	}

	// 状态没有变化
	unchanged, err := repo.GetResponse(ctx, responseID)
	if err != nil {
		t.Fatalf("GetResponse failed: %v", err)
	}
	if unchanged.Status != domain.ResponseDraft {
		t.Errorf("Expected status 'draft' after failed transition, got '%s'", unchanged.Status)
	}
	if unchanged.Version != resp.Version {
		t.Errorf("Expected version %d after failed transition, got %d", resp.Version, unchanged.Version)
	}

	t.Logf("✅ VersionConflict test passed: responseID=%s", responseID)
}

func TestPostgresResponsesRepository_ListByAssignmentScoped(t *testing.T) {
	db := getTestDBForResponses(t)
	if db == nil {
		return
	}
	defer db.Close()

	seed := seedResponseTestData(t, db)
	defer cleanupResponseTestData(t, db, seed)

	repo := NewPostgresResponsesRepository(db)
	ctx := context.Background()

	_, err := repo.CreateResponse(ctx, &domain.Response{
		CampaignAssignmentID: seed.assignmentID,
		QuestionID:           seed.questionID,
		ResponderID:          seed.leadID,
		Status:               domain.ResponseDraft,
		TextValue:            sql.NullString{String: "scoped read", Valid: true},
	}, nil)
	if err != nil {
		t.Fatalf("CreateResponse failed: %v", err)
	}

	// 供应商自己的作用域能看到
	own, err := repo.ListByAssignment(ctx, tenant.Scope{OrganizationID: seed.supplierOrgID}, seed.assignmentID)
	if err != nil {
		t.Fatalf("ListByAssignment failed: %v", err)
	}
	if len(own) != 1 {
		t.Errorf("Expected 1 response in own scope, got %d", len(own))
	}

	// 无关组织的作用域得到空集
	foreign, err := repo.ListByAssignment(ctx, tenant.Scope{OrganizationID: uuid.NewString()}, seed.assignmentID)
	if err != nil {
		t.Fatalf("ListByAssignment failed: %v", err)
	}
	if len(foreign) != 0 {
		t.Errorf("Expected empty result for foreign scope, got %d", len(foreign))
	}

	t.Logf("✅ ListByAssignmentScoped test passed")
}
