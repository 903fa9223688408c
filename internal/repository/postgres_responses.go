package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/tenant"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresResponsesRepository 响应Repository实现
// 状态迁移、取值写入、主责改写都在单事务内完成：
// 响应行（带版本校验）+ 历史行 + 审计行 + 影子投影要么全部落库要么全部回滚
type PostgresResponsesRepository struct {
	db *sql.DB
}

// NewPostgresResponsesRepository 创建响应Repository
func NewPostgresResponsesRepository(db *sql.DB) *PostgresResponsesRepository {
	return &PostgresResponsesRepository{db: db}
}

// 确保实现了接口
var _ ResponsesRepository = (*PostgresResponsesRepository)(nil)

const responseColumns = `
	response_id::text,
	campaign_assignment_id::text,
	question_id::text,
	responder_id::text,
	status,
	text_value,
	numeric_value,
	date_value,
	bool_value,
	COALESCE(option_values, '{}'),
	is_pre_populated,
	is_pre_populated_accepted,
	source_response_id,
	version,
	submitted_at,
	created_at,
	updated_at
`

func scanResponse(row interface{ Scan(...any) error }) (*domain.Response, error) {
	var resp domain.Response
	err := row.Scan(
		&resp.ResponseID,
		&resp.CampaignAssignmentID,
		&resp.QuestionID,
		&resp.ResponderID,
		&resp.Status,
		&resp.TextValue,
		&resp.NumericValue,
		&resp.DateValue,
		&resp.BoolValue,
		&resp.OptionValues,
		&resp.IsPrePopulated,
		&resp.IsPrePopulatedAccepted,
		&resp.SourceResponseID,
		&resp.Version,
		&resp.SubmittedAt,
		&resp.CreatedAt,
		&resp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateResponse 创建响应行（含预填行），审计行同事务写入
// (question_id, campaign_assignment_id, responder_id) 唯一约束在库里兜底
func (r *PostgresResponsesRepository) CreateResponse(ctx context.Context, resp *domain.Response, audit *domain.ReviewAuditLog) (string, error) {
	if resp.CampaignAssignmentID == "" || resp.QuestionID == "" || resp.ResponderID == "" {
		return "", fmt.Errorf("campaign_assignment_id, question_id and responder_id are required")
	}
	status := resp.Status
	if status == "" {
		status = domain.ResponseNotStarted
	}
	if !domain.ValidResponseStatus(status) {
		return "", fmt.Errorf("invalid response status: %s", status)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	responseID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO responses (response_id, campaign_assignment_id, question_id, responder_id, status,
		        text_value, numeric_value, date_value, bool_value, option_values,
		        is_pre_populated, is_pre_populated_accepted, source_response_id, version)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4::uuid, $5,
		        $6, $7, $8, $9, $10,
		        $11, $12, $13, 1)
	`, responseID, resp.CampaignAssignmentID, resp.QuestionID, resp.ResponderID, status,
		resp.TextValue, resp.NumericValue, resp.DateValue, resp.BoolValue, pq.Array([]string(resp.OptionValues)),
		resp.IsPrePopulated, resp.IsPrePopulatedAccepted, resp.SourceResponseID)
	if err != nil {
		return "", fmt.Errorf("failed to create response: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO response_workflows (response_id, campaign_assignment_id, current_status, revision_count)
		VALUES ($1::uuid, $2::uuid, $3, 0)
	`, responseID, resp.CampaignAssignmentID, status)
	if err != nil {
		return "", fmt.Errorf("failed to create response workflow: %w", err)
	}

	if audit != nil {
		audit.ResponseID = sql.NullString{String: responseID, Valid: true}
		if err := insertAuditTx(ctx, tx, audit); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit response creation: %w", err)
	}
	return responseID, nil
}

// GetResponse 获取响应
func (r *PostgresResponsesRepository) GetResponse(ctx context.Context, responseID string) (*domain.Response, error) {
	resp, err := scanResponse(r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM responses WHERE response_id = $1::uuid`, responseColumns),
		responseID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("response not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return resp, nil
}

// GetByQuestionAndAssignment 按唯一键获取响应
func (r *PostgresResponsesRepository) GetByQuestionAndAssignment(ctx context.Context, campaignAssignmentID, questionID, responderID string) (*domain.Response, error) {
	resp, err := scanResponse(r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM responses
		WHERE campaign_assignment_id = $1::uuid AND question_id = $2::uuid AND responder_id = $3::uuid
	`, responseColumns), campaignAssignmentID, questionID, responderID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("response not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return resp, nil
}

// ListByAssignment 查询活动分配下全部响应（租户范围过滤走 campaign_assignments 组织列）
func (r *PostgresResponsesRepository) ListByAssignment(ctx context.Context, scope tenant.Scope, campaignAssignmentID string) ([]*domain.Response, error) {
	args := []any{campaignAssignmentID}
	query := fmt.Sprintf(`
		SELECT %s FROM responses r
		WHERE r.campaign_assignment_id = $1::uuid
	`, qualifyResponseColumns("r"))

	if !scope.Unrestricted {
		if scope.DenyAll {
			query += " AND FALSE"
		} else {
			args = append(args, scope.OrganizationID)
			query += fmt.Sprintf(` AND r.campaign_assignment_id IN (
				SELECT ca.campaign_assignment_id FROM campaign_assignments ca
				LEFT JOIN campaigns c ON c.campaign_id = ca.campaign_id
				WHERE ca.organization_id = $%d::uuid OR c.organization_id = $%d::uuid
			)`, len(args), len(args))
		}
	}
	query += " ORDER BY r.created_at"

	return r.listResponses(ctx, query, args...)
}

// ListByAssignmentAndQuestions 按问题子集查询响应（审核范围扇出用）
func (r *PostgresResponsesRepository) ListByAssignmentAndQuestions(ctx context.Context, campaignAssignmentID string, questionIDs []string) ([]*domain.Response, error) {
	if len(questionIDs) == 0 {
		return []*domain.Response{}, nil
	}
	query := fmt.Sprintf(`
		SELECT %s FROM responses
		WHERE campaign_assignment_id = $1::uuid AND question_id = ANY($2::uuid[])
		ORDER BY created_at
	`, responseColumns)
	return r.listResponses(ctx, query, campaignAssignmentID, pq.Array(questionIDs))
}

func (r *PostgresResponsesRepository) listResponses(ctx context.Context, query string, args ...any) ([]*domain.Response, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	items := []*domain.Response{}
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		items = append(items, resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate responses: %w", err)
	}
	return items, nil
}

// updateResponseTx 带乐观锁的响应行更新；版本不匹配返回 ConcurrentModificationError
func updateResponseTx(ctx context.Context, tx *sql.Tx, resp *domain.Response, expectedVersion int) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE responses SET
			status = $2,
			text_value = $3,
			numeric_value = $4,
			date_value = $5,
			bool_value = $6,
			option_values = $7,
			is_pre_populated = $8,
			is_pre_populated_accepted = $9,
			source_response_id = $10,
			submitted_at = $11,
			version = version + 1,
			updated_at = NOW()
		WHERE response_id = $1::uuid AND version = $12
	`, resp.ResponseID, resp.Status,
		resp.TextValue, resp.NumericValue, resp.DateValue, resp.BoolValue, pq.Array([]string(resp.OptionValues)),
		resp.IsPrePopulated, resp.IsPrePopulatedAccepted, resp.SourceResponseID,
		resp.SubmittedAt, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update response: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ConcurrentModificationError{ResponseID: resp.ResponseID}
	}
	return nil
}

func insertHistoryTx(ctx context.Context, tx *sql.Tx, h *domain.ResponseStatusHistory) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO response_status_histories (history_id, response_id, from_status, to_status, changed_by, reason)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5::uuid, $6)
	`, uuid.NewString(), h.ResponseID, h.FromStatus, h.ToStatus, h.ChangedBy, h.Reason)
	if err != nil {
		return fmt.Errorf("failed to insert status history: %w", err)
	}
	return nil
}

func insertAuditTx(ctx context.Context, tx *sql.Tx, l *domain.ReviewAuditLog) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO review_audit_logs (audit_id, actor_id, campaign_assignment_id, question_id,
		        response_id, review_assignment_id, action, from_status, to_status, details)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7, $8, $9, $10)
	`, uuid.NewString(), l.ActorID, l.CampaignAssignmentID, l.QuestionID,
		l.ResponseID, l.ReviewAssignmentID, l.Action, l.FromStatus, l.ToStatus, l.Details)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

func upsertWorkflowTx(ctx context.Context, tx *sql.Tx, w *domain.ResponseWorkflow) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO response_workflows (response_id, campaign_assignment_id, current_status, current_reviewer_id, revision_count, updated_at)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5, NOW())
		ON CONFLICT (response_id) DO UPDATE SET
			current_status = EXCLUDED.current_status,
			current_reviewer_id = EXCLUDED.current_reviewer_id,
			revision_count = EXCLUDED.revision_count,
			updated_at = NOW()
	`, w.ResponseID, w.CampaignAssignmentID, w.CurrentStatus, w.CurrentReviewerID, w.RevisionCount)
	if err != nil {
		return fmt.Errorf("failed to upsert response workflow: %w", err)
	}
	return nil
}

// ApplyTransition 原子状态迁移
func (r *PostgresResponsesRepository) ApplyTransition(ctx context.Context, expectedVersion int, t ResponseTransition) error {
	if t.Response == nil || t.History == nil || t.Audit == nil || t.Workflow == nil {
		return fmt.Errorf("transition requires response, history, audit and workflow rows")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateResponseTx(ctx, tx, t.Response, expectedVersion); err != nil {
		return err
	}
	if err := insertHistoryTx(ctx, tx, t.History); err != nil {
		return err
	}
	if err := insertAuditTx(ctx, tx, t.Audit); err != nil {
		return err
	}
	if err := upsertWorkflowTx(ctx, tx, t.Workflow); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition: %w", err)
	}
	return nil
}

// SaveValue 原子取值写入（状态可能同时变化）
func (r *PostgresResponsesRepository) SaveValue(ctx context.Context, expectedVersion int, s ResponseValueSave) error {
	if s.Response == nil || s.Change == nil || s.Audit == nil {
		return fmt.Errorf("value save requires response, change and audit rows")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateResponseTx(ctx, tx, s.Response, expectedVersion); err != nil {
		return err
	}

	oldVal := s.Change.OldValue
	if len(oldVal) == 0 {
		oldVal = json.RawMessage(`{}`)
	}
	newVal := s.Change.NewValue
	if len(newVal) == 0 {
		newVal = json.RawMessage(`{}`)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO response_changes (change_id, response_id, changed_by, old_value, new_value)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4::jsonb, $5::jsonb)
	`, uuid.NewString(), s.Change.ResponseID, s.Change.ChangedBy, string(oldVal), string(newVal))
	if err != nil {
		return fmt.Errorf("failed to insert response change: %w", err)
	}

	if s.History != nil {
		if err := insertHistoryTx(ctx, tx, s.History); err != nil {
			return err
		}
	}
	if err := insertAuditTx(ctx, tx, s.Audit); err != nil {
		return err
	}
	if s.Workflow != nil {
		if err := upsertWorkflowTx(ctx, tx, s.Workflow); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit value save: %w", err)
	}
	return nil
}

// ApplyOverride 原子主责改写：override 行先落，再更新取值字段，状态不变
func (r *PostgresResponsesRepository) ApplyOverride(ctx context.Context, expectedVersion int, o ResponseOverrideSave) error {
	if o.Response == nil || o.Override == nil || o.Audit == nil {
		return fmt.Errorf("override requires response, override and audit rows")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	origVal := o.Override.OriginalValue
	if len(origVal) == 0 {
		origVal = json.RawMessage(`{}`)
	}
	overVal := o.Override.OverrideValue
	if len(overVal) == 0 {
		overVal = json.RawMessage(`{}`)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO response_overrides (override_id, response_id, lead_responder_id, original_value, override_value, reason)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4::jsonb, $5::jsonb, $6)
	`, uuid.NewString(), o.Override.ResponseID, o.Override.LeadResponderID,
		string(origVal), string(overVal), o.Override.Reason)
	if err != nil {
		return fmt.Errorf("failed to insert response override: %w", err)
	}

	if err := updateResponseTx(ctx, tx, o.Response, expectedVersion); err != nil {
		return err
	}
	if err := insertAuditTx(ctx, tx, o.Audit); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit override: %w", err)
	}
	return nil
}

// GetWorkflow 获取影子投影
func (r *PostgresResponsesRepository) GetWorkflow(ctx context.Context, responseID string) (*domain.ResponseWorkflow, error) {
	var w domain.ResponseWorkflow
	err := r.db.QueryRowContext(ctx, `
		SELECT response_id::text, campaign_assignment_id::text, current_status, current_reviewer_id, revision_count, updated_at
		FROM response_workflows WHERE response_id = $1::uuid
	`, responseID).Scan(&w.ResponseID, &w.CampaignAssignmentID, &w.CurrentStatus, &w.CurrentReviewerID, &w.RevisionCount, &w.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("response workflow not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get response workflow: %w", err)
	}
	return &w, nil
}

// ListStatusHistory 查询状态历史（按时间正序：必须构成合法迁移路径）
func (r *PostgresResponsesRepository) ListStatusHistory(ctx context.Context, responseID string) ([]*domain.ResponseStatusHistory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT history_id::text, response_id::text, from_status, to_status, changed_by::text, reason, created_at
		FROM response_status_histories
		WHERE response_id = $1::uuid
		ORDER BY created_at, history_id
	`, responseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}
	defer rows.Close()

	items := []*domain.ResponseStatusHistory{}
	for rows.Next() {
		var h domain.ResponseStatusHistory
		if err := rows.Scan(&h.HistoryID, &h.ResponseID, &h.FromStatus, &h.ToStatus, &h.ChangedBy, &h.Reason, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		items = append(items, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate status history: %w", err)
	}
	return items, nil
}

// ListOverrides 查询改写记录
func (r *PostgresResponsesRepository) ListOverrides(ctx context.Context, responseID string) ([]*domain.ResponseOverride, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT override_id::text, response_id::text, lead_responder_id::text, original_value, override_value, reason, created_at
		FROM response_overrides
		WHERE response_id = $1::uuid
		ORDER BY created_at
	`, responseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	defer rows.Close()

	items := []*domain.ResponseOverride{}
	for rows.Next() {
		var o domain.ResponseOverride
		var origVal, overVal json.RawMessage
		if err := rows.Scan(&o.OverrideID, &o.ResponseID, &o.LeadResponderID, &origVal, &overVal, &o.Reason, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		o.OriginalValue = origVal
		o.OverrideValue = overVal
		items = append(items, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate overrides: %w", err)
	}
	return items, nil
}

// ListChanges 查询取值变更历史
func (r *PostgresResponsesRepository) ListChanges(ctx context.Context, responseID string) ([]*domain.ResponseChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT change_id::text, response_id::text, changed_by::text, old_value, new_value, created_at
		FROM response_changes
		WHERE response_id = $1::uuid
		ORDER BY created_at
	`, responseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list response changes: %w", err)
	}
	defer rows.Close()

	items := []*domain.ResponseChange{}
	for rows.Next() {
		var c domain.ResponseChange
		var oldVal, newVal json.RawMessage
		if err := rows.Scan(&c.ChangeID, &c.ResponseID, &c.ChangedBy, &oldVal, &newVal, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan response change: %w", err)
		}
		c.OldValue = oldVal
		c.NewValue = newVal
		items = append(items, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate response changes: %w", err)
	}
	return items, nil
}

// AttachFile 附加文件引用（核心不读文件字节），审计行同事务写入
func (r *PostgresResponsesRepository) AttachFile(ctx context.Context, f *domain.FileUpload, audit *domain.ReviewAuditLog) (string, error) {
	if f.ResponseID == "" || f.StoragePath == "" {
		return "", fmt.Errorf("response_id and storage_path are required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	fileID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO file_uploads (file_id, response_id, organization_id, file_name, storage_path, content_type, size_bytes, uploaded_by)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7, $8::uuid)
	`, fileID, f.ResponseID, f.OrganizationID, f.FileName, f.StoragePath, f.ContentType, f.SizeBytes, f.UploadedBy)
	if err != nil {
		return "", fmt.Errorf("failed to attach file: %w", err)
	}

	if audit != nil {
		if err := insertAuditTx(ctx, tx, audit); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit file attach: %w", err)
	}
	return fileID, nil
}

// ListFiles 查询响应下的文件引用
func (r *PostgresResponsesRepository) ListFiles(ctx context.Context, responseID string) ([]*domain.FileUpload, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT file_id::text, response_id::text, organization_id::text, file_name, storage_path, content_type, size_bytes, uploaded_by::text, created_at
		FROM file_uploads
		WHERE response_id = $1::uuid
		ORDER BY created_at
	`, responseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	items := []*domain.FileUpload{}
	for rows.Next() {
		var f domain.FileUpload
		if err := rows.Scan(&f.FileID, &f.ResponseID, &f.OrganizationID, &f.FileName, &f.StoragePath, &f.ContentType, &f.SizeBytes, &f.UploadedBy, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		items = append(items, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate files: %w", err)
	}
	return items, nil
}

// qualifyResponseColumns 给列清单加表别名
func qualifyResponseColumns(alias string) string {
	return fmt.Sprintf(`
		%[1]s.response_id::text,
		%[1]s.campaign_assignment_id::text,
		%[1]s.question_id::text,
		%[1]s.responder_id::text,
		%[1]s.status,
		%[1]s.text_value,
		%[1]s.numeric_value,
		%[1]s.date_value,
		%[1]s.bool_value,
		COALESCE(%[1]s.option_values, '{}'),
		%[1]s.is_pre_populated,
		%[1]s.is_pre_populated_accepted,
		%[1]s.source_response_id,
		%[1]s.version,
		%[1]s.submitted_at,
		%[1]s.created_at,
		%[1]s.updated_at
	`, alias)
}
