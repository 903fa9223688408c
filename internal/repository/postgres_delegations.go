package repository

import (
	"context"
	"database/sql"
	"fmt"

	"esgbridge-data/internal/domain"

	"github.com/google/uuid"
)

// PostgresDelegationsRepository 转交Repository实现
type PostgresDelegationsRepository struct {
	db *sql.DB
}

// NewPostgresDelegationsRepository 创建转交Repository
func NewPostgresDelegationsRepository(db *sql.DB) *PostgresDelegationsRepository {
	return &PostgresDelegationsRepository{db: db}
}

// 确保实现了接口
var _ DelegationsRepository = (*PostgresDelegationsRepository)(nil)

const delegationColumns = `
	delegation_id::text,
	campaign_assignment_id::text,
	question_id::text,
	from_user_id::text,
	to_user_id::text,
	note,
	is_active,
	created_at,
	completed_at
`

func scanDelegation(row interface{ Scan(...any) error }) (*domain.Delegation, error) {
	var d domain.Delegation
	err := row.Scan(
		&d.DelegationID,
		&d.CampaignAssignmentID,
		&d.QuestionID,
		&d.FromUserID,
		&d.ToUserID,
		&d.Note,
		&d.IsActive,
		&d.CreatedAt,
		&d.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDelegation 创建转交（总是新行，保留历史）
func (r *PostgresDelegationsRepository) CreateDelegation(ctx context.Context, d *domain.Delegation) (string, error) {
	if d.CampaignAssignmentID == "" || d.QuestionID == "" || d.FromUserID == "" || d.ToUserID == "" {
		return "", fmt.Errorf("campaign_assignment_id, question_id, from_user_id and to_user_id are required")
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO delegations (delegation_id, campaign_assignment_id, question_id, from_user_id, to_user_id, note, is_active)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4::uuid, $5::uuid, $6, TRUE)
	`, id, d.CampaignAssignmentID, d.QuestionID, d.FromUserID, d.ToUserID, d.Note)
	if err != nil {
		return "", fmt.Errorf("failed to create delegation: %w", err)
	}
	return id, nil
}

// GetDelegation 获取转交
func (r *PostgresDelegationsRepository) GetDelegation(ctx context.Context, delegationID string) (*domain.Delegation, error) {
	d, err := scanDelegation(r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM delegations WHERE delegation_id = $1::uuid`, delegationColumns),
		delegationID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("delegation not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get delegation: %w", err)
	}
	return d, nil
}

// CompleteDelegation 关闭转交（is_active=false + completed_at 打点）
func (r *PostgresDelegationsRepository) CompleteDelegation(ctx context.Context, delegationID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE delegations SET is_active = FALSE, completed_at = NOW()
		WHERE delegation_id = $1::uuid AND is_active = TRUE
	`, delegationID)
	if err != nil {
		return fmt.Errorf("failed to complete delegation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("active delegation not found")
	}
	return nil
}

// ListActiveByAssignment 查询活动分配下全部活跃转交
func (r *PostgresDelegationsRepository) ListActiveByAssignment(ctx context.Context, campaignAssignmentID string) ([]*domain.Delegation, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM delegations
		WHERE campaign_assignment_id = $1::uuid AND is_active = TRUE
		ORDER BY created_at DESC
	`, delegationColumns), campaignAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delegations: %w", err)
	}
	defer rows.Close()

	items := []*domain.Delegation{}
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delegation: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate delegations: %w", err)
	}
	return items, nil
}

// LatestActiveForQuestion 同一问题存在多条活跃转交时只取最近创建的一条
// 查不到时返回 (nil, nil)：无转交是正常情况，交给解析器走下一优先级
func (r *PostgresDelegationsRepository) LatestActiveForQuestion(ctx context.Context, campaignAssignmentID, questionID string) (*domain.Delegation, error) {
	d, err := scanDelegation(r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s FROM delegations
		WHERE campaign_assignment_id = $1::uuid AND question_id = $2::uuid AND is_active = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`, delegationColumns), campaignAssignmentID, questionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest delegation: %w", err)
	}
	return d, nil
}
