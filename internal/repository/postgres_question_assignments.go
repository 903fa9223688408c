package repository

import (
	"context"
	"database/sql"
	"fmt"

	"esgbridge-data/internal/domain"

	"github.com/google/uuid"
)

// PostgresQuestionAssignmentsRepository 问题/章节责任分配Repository实现
type PostgresQuestionAssignmentsRepository struct {
	db *sql.DB
}

// NewPostgresQuestionAssignmentsRepository 创建责任分配Repository
func NewPostgresQuestionAssignmentsRepository(db *sql.DB) *PostgresQuestionAssignmentsRepository {
	return &PostgresQuestionAssignmentsRepository{db: db}
}

// 确保实现了接口
var _ QuestionAssignmentsRepository = (*PostgresQuestionAssignmentsRepository)(nil)

// CreateQuestionAssignment 创建责任分配
func (r *PostgresQuestionAssignmentsRepository) CreateQuestionAssignment(ctx context.Context, qa *domain.QuestionAssignment) (string, error) {
	if qa.CampaignAssignmentID == "" || qa.AssignedUserID == "" {
		return "", fmt.Errorf("campaign_assignment_id and assigned_user_id are required")
	}
	switch qa.AssignmentType {
	case domain.AssignmentTypeQuestion:
		if !qa.QuestionID.Valid {
			return "", fmt.Errorf("question_id is required for question-level assignment")
		}
	case domain.AssignmentTypeSection:
		if !qa.SectionName.Valid {
			return "", fmt.Errorf("section_name is required for section-level assignment")
		}
	default:
		return "", fmt.Errorf("invalid assignment_type: %s", qa.AssignmentType)
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO question_assignments (question_assignment_id, campaign_assignment_id, assigned_user_id,
		                                  assignment_type, question_id, section_name, created_by)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7::uuid)
	`, id, qa.CampaignAssignmentID, qa.AssignedUserID, qa.AssignmentType,
		qa.QuestionID, qa.SectionName, qa.CreatedBy)
	if err != nil {
		return "", fmt.Errorf("failed to create question assignment: %w", err)
	}
	return id, nil
}

// ListByCampaignAssignment 查询一个活动分配下的全部责任分配
func (r *PostgresQuestionAssignmentsRepository) ListByCampaignAssignment(ctx context.Context, campaignAssignmentID string) ([]*domain.QuestionAssignment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT question_assignment_id::text, campaign_assignment_id::text, assigned_user_id::text,
		       assignment_type, question_id, section_name, created_by::text, created_at
		FROM question_assignments
		WHERE campaign_assignment_id = $1::uuid
		ORDER BY created_at
	`, campaignAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list question assignments: %w", err)
	}
	defer rows.Close()

	items := []*domain.QuestionAssignment{}
	for rows.Next() {
		var qa domain.QuestionAssignment
		if err := rows.Scan(&qa.QuestionAssignmentID, &qa.CampaignAssignmentID, &qa.AssignedUserID,
			&qa.AssignmentType, &qa.QuestionID, &qa.SectionName, &qa.CreatedBy, &qa.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan question assignment: %w", err)
		}
		items = append(items, &qa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate question assignments: %w", err)
	}
	return items, nil
}

// RemoveQuestionAssignment 移除责任分配（变更历史由服务层另行记录）
func (r *PostgresQuestionAssignmentsRepository) RemoveQuestionAssignment(ctx context.Context, questionAssignmentID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM question_assignments WHERE question_assignment_id = $1::uuid`,
		questionAssignmentID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove question assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("question assignment not found")
	}
	return nil
}

// RecordAssignmentChange 追加责任分配变更历史（只追加）
func (r *PostgresQuestionAssignmentsRepository) RecordAssignmentChange(ctx context.Context, change *domain.QuestionAssignmentChange) error {
	if change.QuestionAssignmentID == "" || change.ChangedBy == "" {
		return fmt.Errorf("question_assignment_id and changed_by are required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO question_assignment_changes (change_id, question_assignment_id, changed_by, action, details)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5)
	`, uuid.NewString(), change.QuestionAssignmentID, change.ChangedBy, change.Action, change.Details)
	if err != nil {
		return fmt.Errorf("failed to record assignment change: %w", err)
	}
	return nil
}

// ListAssignmentChanges 查询责任分配变更历史
func (r *PostgresQuestionAssignmentsRepository) ListAssignmentChanges(ctx context.Context, questionAssignmentID string) ([]*domain.QuestionAssignmentChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT change_id::text, question_assignment_id::text, changed_by::text, action, details, created_at
		FROM question_assignment_changes
		WHERE question_assignment_id = $1::uuid
		ORDER BY created_at
	`, questionAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignment changes: %w", err)
	}
	defer rows.Close()

	items := []*domain.QuestionAssignmentChange{}
	for rows.Next() {
		var c domain.QuestionAssignmentChange
		if err := rows.Scan(&c.ChangeID, &c.QuestionAssignmentID, &c.ChangedBy, &c.Action, &c.Details, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment change: %w", err)
		}
		items = append(items, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assignment changes: %w", err)
	}
	return items, nil
}
