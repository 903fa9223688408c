package repository

import (
	"context"
	"database/sql"
	"fmt"

	"esgbridge-data/internal/domain"

	"github.com/google/uuid"
)

// PostgresAuditRepository 审计日志Repository实现（只追加）
type PostgresAuditRepository struct {
	db *sql.DB
}

// NewPostgresAuditRepository 创建审计Repository
func NewPostgresAuditRepository(db *sql.DB) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db}
}

// 确保实现了接口
var _ AuditRepository = (*PostgresAuditRepository)(nil)

const auditColumns = `
	audit_id::text,
	actor_id::text,
	campaign_assignment_id::text,
	question_id,
	response_id,
	review_assignment_id,
	action,
	from_status,
	to_status,
	details,
	created_at
`

func scanAuditLog(row interface{ Scan(...any) error }) (*domain.ReviewAuditLog, error) {
	var l domain.ReviewAuditLog
	err := row.Scan(
		&l.AuditID,
		&l.ActorID,
		&l.CampaignAssignmentID,
		&l.QuestionID,
		&l.ResponseID,
		&l.ReviewAssignmentID,
		&l.Action,
		&l.FromStatus,
		&l.ToStatus,
		&l.Details,
		&l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Append 追加一条审计行（只有不挂在其他写入事务上的动作才单独走这里）
func (r *PostgresAuditRepository) Append(ctx context.Context, l *domain.ReviewAuditLog) error {
	if l.ActorID == "" || l.CampaignAssignmentID == "" || l.Action == "" {
		return fmt.Errorf("actor_id, campaign_assignment_id and action are required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO review_audit_logs (audit_id, actor_id, campaign_assignment_id, question_id,
		        response_id, review_assignment_id, action, from_status, to_status, details)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7, $8, $9, $10)
	`, uuid.NewString(), l.ActorID, l.CampaignAssignmentID, l.QuestionID,
		l.ResponseID, l.ReviewAssignmentID, l.Action, l.FromStatus, l.ToStatus, l.Details)
	if err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}
	return nil
}

// ListByAssignment 按活动分配分页查询审计日志（时间正序）
func (r *PostgresAuditRepository) ListByAssignment(ctx context.Context, campaignAssignmentID string, page, size int) ([]*domain.ReviewAuditLog, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 500 {
		size = 50
	}

	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM review_audit_logs WHERE campaign_assignment_id = $1::uuid
	`, campaignAssignmentID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM review_audit_logs
		WHERE campaign_assignment_id = $1::uuid
		ORDER BY created_at, audit_id
		LIMIT $2 OFFSET $3
	`, auditColumns), campaignAssignmentID, size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	items := []*domain.ReviewAuditLog{}
	for rows.Next() {
		l, err := scanAuditLog(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan audit log: %w", err)
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return items, total, nil
}

// ListByResponse 查询某响应相关的审计日志（时间正序）
func (r *PostgresAuditRepository) ListByResponse(ctx context.Context, responseID string) ([]*domain.ReviewAuditLog, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM review_audit_logs
		WHERE response_id = $1
		ORDER BY created_at, audit_id
	`, auditColumns), sql.NullString{String: responseID, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	items := []*domain.ReviewAuditLog{}
	for rows.Next() {
		l, err := scanAuditLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return items, nil
}
