package repository

import (
	"context"
	"database/sql"
	"fmt"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/tenant"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresUsersRepository 用户Repository实现
// 认证在外部 IdP，这里只维护归属与角色引用
type PostgresUsersRepository struct {
	db *sql.DB
}

// NewPostgresUsersRepository 创建用户Repository
func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

// 确保实现了接口
var _ UsersRepository = (*PostgresUsersRepository)(nil)

// CreateUser 创建用户
func (r *PostgresUsersRepository) CreateUser(ctx context.Context, user *domain.User) (string, error) {
	if user.OrganizationID == "" || user.UserAccount == "" {
		return "", fmt.Errorf("organization_id and user_account are required")
	}

	userID := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (user_id, organization_id, user_account, display_name, email, roles, status)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, COALESCE(NULLIF($7, ''), 'active'))
	`, userID, user.OrganizationID, user.UserAccount, user.DisplayName, user.Email,
		pq.Array([]string(user.Roles)), user.Status)
	if err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	return userID, nil
}

// GetUser 获取用户
func (r *PostgresUsersRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	var user domain.User
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id::text, organization_id::text, user_account, display_name,
		       email, COALESCE(roles, '{}'), COALESCE(status, 'active'), created_at
		FROM users
		WHERE user_id = $1::uuid
	`, userID).Scan(
		&user.UserID,
		&user.OrganizationID,
		&user.UserAccount,
		&user.DisplayName,
		&user.Email,
		&user.Roles,
		&user.Status,
		&user.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// ListUsers 查询用户列表（租户范围过滤）
func (r *PostgresUsersRepository) ListUsers(ctx context.Context, scope tenant.Scope, organizationID string, page, size int) ([]*domain.User, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	offset := (page - 1) * size

	args := []any{}
	query := `FROM users`
	first := true
	if organizationID != "" {
		args = append(args, organizationID)
		query += fmt.Sprintf(" WHERE organization_id = $%d::uuid", len(args))
		first = false
	}
	scope.ApplyFilter(&query, &args, "organization_id", first)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) "+query, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	args = append(args, size, offset)
	listQuery := fmt.Sprintf(`
		SELECT user_id::text, organization_id::text, user_account, display_name,
		       email, COALESCE(roles, '{}'), COALESCE(status, 'active'), created_at
		%s
		ORDER BY user_account
		LIMIT $%d OFFSET $%d
	`, query, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	items := []*domain.User{}
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.UserID, &user.OrganizationID, &user.UserAccount, &user.DisplayName,
			&user.Email, &user.Roles, &user.Status, &user.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		items = append(items, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate users: %w", err)
	}

	return items, total, nil
}
