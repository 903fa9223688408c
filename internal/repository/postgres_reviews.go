package repository

import (
	"context"
	"database/sql"
	"fmt"

	"esgbridge-data/internal/domain"

	"github.com/google/uuid"
)

// PostgresReviewsRepository 审核数据Repository实现
type PostgresReviewsRepository struct {
	db *sql.DB
}

// NewPostgresReviewsRepository 创建审核Repository
func NewPostgresReviewsRepository(db *sql.DB) *PostgresReviewsRepository {
	return &PostgresReviewsRepository{db: db}
}

// 确保实现了接口
var _ ReviewsRepository = (*PostgresReviewsRepository)(nil)

const reviewAssignmentColumns = `
	review_assignment_id::text,
	campaign_assignment_id::text,
	reviewer_id::text,
	scope,
	question_id,
	section_name,
	COALESCE(status, 'pending') as status,
	is_active,
	created_by::text,
	created_at
`

func scanReviewAssignment(row interface{ Scan(...any) error }) (*domain.ReviewAssignment, error) {
	var ra domain.ReviewAssignment
	err := row.Scan(
		&ra.ReviewAssignmentID,
		&ra.CampaignAssignmentID,
		&ra.ReviewerID,
		&ra.Scope,
		&ra.QuestionID,
		&ra.SectionName,
		&ra.Status,
		&ra.IsActive,
		&ra.CreatedBy,
		&ra.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ra, nil
}

// CreateReviewAssignment 创建审核分配，审计行同事务写入
// scope 与 question_id/section_name 的配对关系在这里兜底校验
func (r *PostgresReviewsRepository) CreateReviewAssignment(ctx context.Context, ra *domain.ReviewAssignment, audit *domain.ReviewAuditLog) (string, error) {
	if !domain.ValidReviewScope(ra.Scope) {
		return "", fmt.Errorf("invalid review scope: %s", ra.Scope)
	}
	switch ra.Scope {
	case domain.ScopeQuestion:
		if !ra.QuestionID.Valid || ra.SectionName.Valid {
			return "", fmt.Errorf("question scope requires question_id and no section_name")
		}
	case domain.ScopeSection:
		if !ra.SectionName.Valid || ra.QuestionID.Valid {
			return "", fmt.Errorf("section scope requires section_name and no question_id")
		}
	case domain.ScopeAssignment:
		if ra.QuestionID.Valid || ra.SectionName.Valid {
			return "", fmt.Errorf("assignment scope must not carry question_id or section_name")
		}
	}
	status := ra.Status
	if status == "" {
		status = domain.ReviewPending
	}
	if !domain.ValidReviewStatus(status) {
		return "", fmt.Errorf("invalid review status: %s", status)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	reviewAssignmentID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_assignments (review_assignment_id, campaign_assignment_id, reviewer_id,
		        scope, question_id, section_name, status, is_active, created_by)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7, TRUE, $8::uuid)
	`, reviewAssignmentID, ra.CampaignAssignmentID, ra.ReviewerID,
		ra.Scope, ra.QuestionID, ra.SectionName, status, ra.CreatedBy)
	if err != nil {
		return "", fmt.Errorf("failed to create review assignment: %w", err)
	}

	if audit != nil {
		audit.ReviewAssignmentID = sql.NullString{String: reviewAssignmentID, Valid: true}
		if err := insertAuditTx(ctx, tx, audit); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit review assignment: %w", err)
	}
	return reviewAssignmentID, nil
}

// GetReviewAssignment 获取审核分配
func (r *PostgresReviewsRepository) GetReviewAssignment(ctx context.Context, reviewAssignmentID string) (*domain.ReviewAssignment, error) {
	ra, err := scanReviewAssignment(r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM review_assignments WHERE review_assignment_id = $1::uuid`, reviewAssignmentColumns),
		reviewAssignmentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("review assignment not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get review assignment: %w", err)
	}
	return ra, nil
}

// ListActiveByCampaignAssignment 查询活动分配下的在途审核分配
func (r *PostgresReviewsRepository) ListActiveByCampaignAssignment(ctx context.Context, campaignAssignmentID string) ([]*domain.ReviewAssignment, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM review_assignments
		WHERE campaign_assignment_id = $1::uuid AND is_active = TRUE
		ORDER BY created_at
	`, reviewAssignmentColumns), campaignAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list review assignments: %w", err)
	}
	defer rows.Close()

	items := []*domain.ReviewAssignment{}
	for rows.Next() {
		ra, err := scanReviewAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review assignment: %w", err)
		}
		items = append(items, ra)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review assignments: %w", err)
	}
	return items, nil
}

// SetReviewStatus 更新审核分配自身状态（独立于响应状态机）
func (r *PostgresReviewsRepository) SetReviewStatus(ctx context.Context, reviewAssignmentID, status string) error {
	if !domain.ValidReviewStatus(status) {
		return fmt.Errorf("invalid review status: %s", status)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE review_assignments SET status = $2 WHERE review_assignment_id = $1::uuid
	`, reviewAssignmentID, status)
	if err != nil {
		return fmt.Errorf("failed to set review status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("review assignment not found: %s", reviewAssignmentID)
	}
	return nil
}

// DeactivateReviewAssignment 停用审核分配（软删除，历史意见保留）
func (r *PostgresReviewsRepository) DeactivateReviewAssignment(ctx context.Context, reviewAssignmentID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE review_assignments SET is_active = FALSE WHERE review_assignment_id = $1::uuid
	`, reviewAssignmentID)
	if err != nil {
		return fmt.Errorf("failed to deactivate review assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("review assignment not found: %s", reviewAssignmentID)
	}
	return nil
}

// CreateComment 记录审核意见，审计行同事务写入
// requires_change=true 本身不改变响应状态
func (r *PostgresReviewsRepository) CreateComment(ctx context.Context, c *domain.ReviewComment, audit *domain.ReviewAuditLog) (string, error) {
	if c.CommentText == "" {
		return "", fmt.Errorf("comment_text is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	commentID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_comments (comment_id, review_assignment_id, response_id, author_id,
		        comment_text, requires_change, is_resolved)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4::uuid, $5, $6, FALSE)
	`, commentID, c.ReviewAssignmentID, c.ResponseID, c.AuthorID, c.CommentText, c.RequiresChange)
	if err != nil {
		return "", fmt.Errorf("failed to create review comment: %w", err)
	}

	if audit != nil {
		if err := insertAuditTx(ctx, tx, audit); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit review comment: %w", err)
	}
	return commentID, nil
}

// GetComment 获取审核意见
func (r *PostgresReviewsRepository) GetComment(ctx context.Context, commentID string) (*domain.ReviewComment, error) {
	var c domain.ReviewComment
	err := r.db.QueryRowContext(ctx, `
		SELECT comment_id::text, review_assignment_id::text, response_id::text, author_id::text,
		       comment_text, requires_change, is_resolved, resolved_by, resolved_at, created_at
		FROM review_comments WHERE comment_id = $1::uuid
	`, commentID).Scan(
		&c.CommentID, &c.ReviewAssignmentID, &c.ResponseID, &c.AuthorID,
		&c.CommentText, &c.RequiresChange, &c.IsResolved, &c.ResolvedBy, &c.ResolvedAt, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("review comment not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get review comment: %w", err)
	}
	return &c, nil
}

// ResolveComment 标记意见已解决（幂等性由 WHERE is_resolved = FALSE 兜底）
func (r *PostgresReviewsRepository) ResolveComment(ctx context.Context, commentID, resolvedBy string, audit *domain.ReviewAuditLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE review_comments SET is_resolved = TRUE, resolved_by = $2::uuid, resolved_at = NOW()
		WHERE comment_id = $1::uuid AND is_resolved = FALSE
	`, commentID, resolvedBy)
	if err != nil {
		return fmt.Errorf("failed to resolve review comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("review comment not found or already resolved: %s", commentID)
	}

	if audit != nil {
		if err := insertAuditTx(ctx, tx, audit); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit comment resolution: %w", err)
	}
	return nil
}

// ListCommentsByResponse 查询响应下的全部审核意见
func (r *PostgresReviewsRepository) ListCommentsByResponse(ctx context.Context, responseID string) ([]*domain.ReviewComment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT comment_id::text, review_assignment_id::text, response_id::text, author_id::text,
		       comment_text, requires_change, is_resolved, resolved_by, resolved_at, created_at
		FROM review_comments
		WHERE response_id = $1::uuid
		ORDER BY created_at
	`, responseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list review comments: %w", err)
	}
	defer rows.Close()

	items := []*domain.ReviewComment{}
	for rows.Next() {
		var c domain.ReviewComment
		if err := rows.Scan(
			&c.CommentID, &c.ReviewAssignmentID, &c.ResponseID, &c.AuthorID,
			&c.CommentText, &c.RequiresChange, &c.IsResolved, &c.ResolvedBy, &c.ResolvedAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review comment: %w", err)
		}
		items = append(items, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review comments: %w", err)
	}
	return items, nil
}
