package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/tenant"

	"github.com/google/uuid"
)

// PostgresOrganizationsRepository 组织Repository实现
type PostgresOrganizationsRepository struct {
	db *sql.DB
}

// NewPostgresOrganizationsRepository 创建组织Repository
func NewPostgresOrganizationsRepository(db *sql.DB) *PostgresOrganizationsRepository {
	return &PostgresOrganizationsRepository{db: db}
}

// 确保实现了接口
var _ OrganizationsRepository = (*PostgresOrganizationsRepository)(nil)

// CreateOrganization 创建组织（org_type 创建后不可变，没有对应的 UPDATE 方法）
func (r *PostgresOrganizationsRepository) CreateOrganization(ctx context.Context, org *domain.Organization) (string, error) {
	if org.DisplayName == "" {
		return "", fmt.Errorf("display_name is required")
	}
	if !domain.ValidOrgType(org.OrgType) {
		return "", fmt.Errorf("invalid org_type: %s", org.OrgType)
	}

	orgID := uuid.NewString()
	metadata := org.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organizations (organization_id, display_name, org_type, status, metadata)
		VALUES ($1::uuid, $2, $3, COALESCE(NULLIF($4, ''), 'active'), $5::jsonb)
	`, orgID, org.DisplayName, org.OrgType, org.Status, string(metadata))
	if err != nil {
		return "", fmt.Errorf("failed to create organization: %w", err)
	}

	return orgID, nil
}

// GetOrganization 获取组织
func (r *PostgresOrganizationsRepository) GetOrganization(ctx context.Context, organizationID string) (*domain.Organization, error) {
	if organizationID == "" {
		return nil, fmt.Errorf("organization_id is required")
	}

	query := `
		SELECT
			organization_id::text,
			display_name,
			org_type,
			COALESCE(status, 'active') as status,
			COALESCE(metadata, '{}'::jsonb) as metadata,
			created_at
		FROM organizations
		WHERE organization_id = $1::uuid
	`

	var org domain.Organization
	var metadataRaw json.RawMessage
	err := r.db.QueryRowContext(ctx, query, organizationID).Scan(
		&org.OrganizationID,
		&org.DisplayName,
		&org.OrgType,
		&org.Status,
		&metadataRaw,
		&org.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("organization not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	org.Metadata = metadataRaw
	return &org, nil
}

// ListOrganizations 查询组织列表（租户范围过滤 + 分页）
func (r *PostgresOrganizationsRepository) ListOrganizations(ctx context.Context, scope tenant.Scope, filter OrganizationFilters, page, size int) ([]*domain.Organization, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	offset := (page - 1) * size

	where := []string{}
	args := []any{}

	if filter.OrgType != "" {
		args = append(args, filter.OrgType)
		where = append(where, fmt.Sprintf("org_type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("display_name ILIKE $%d", len(args)))
	}

	base := `FROM organizations`
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}
	query := base + whereClause
	scope.ApplyFilter(&query, &args, "organization_id", len(where) == 0)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) "+query, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count organizations: %w", err)
	}

	args = append(args, size, offset)
	listQuery := fmt.Sprintf(`
		SELECT
			organization_id::text,
			display_name,
			org_type,
			COALESCE(status, 'active') as status,
			COALESCE(metadata, '{}'::jsonb) as metadata,
			created_at
		%s
		ORDER BY display_name
		LIMIT $%d OFFSET $%d
	`, query, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	items := []*domain.Organization{}
	for rows.Next() {
		var org domain.Organization
		var metadataRaw json.RawMessage
		if err := rows.Scan(&org.OrganizationID, &org.DisplayName, &org.OrgType, &org.Status, &metadataRaw, &org.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan organization: %w", err)
		}
		org.Metadata = metadataRaw
		items = append(items, &org)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate organizations: %w", err)
	}

	return items, total, nil
}

// SetOrganizationStatus 设置组织状态（软操作，不做物理删除）
func (r *PostgresOrganizationsRepository) SetOrganizationStatus(ctx context.Context, organizationID, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE organizations SET status = $2 WHERE organization_id = $1::uuid`,
		organizationID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to set organization status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("organization not found")
	}
	return nil
}

// CreateRelationship 创建平台-供应商关系（有序对唯一）
func (r *PostgresOrganizationsRepository) CreateRelationship(ctx context.Context, rel *domain.OrganizationRelationship) (string, error) {
	if rel.PlatformOrgID == "" || rel.SupplierOrgID == "" {
		return "", fmt.Errorf("platform_org_id and supplier_org_id are required")
	}

	relID := uuid.NewString()
	tags := rel.Tags
	if len(tags) == 0 {
		tags = json.RawMessage(`{}`)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organization_relationships (relationship_id, platform_org_id, supplier_org_id, tags, is_active)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4::jsonb, TRUE)
	`, relID, rel.PlatformOrgID, rel.SupplierOrgID, string(tags))
	if err != nil {
		// 唯一约束 (platform_org_id, supplier_org_id)
		return "", fmt.Errorf("failed to create relationship: %w", err)
	}

	return relID, nil
}

// GetRelationship 获取关系
func (r *PostgresOrganizationsRepository) GetRelationship(ctx context.Context, relationshipID string) (*domain.OrganizationRelationship, error) {
	return r.scanRelationship(r.db.QueryRowContext(ctx, `
		SELECT relationship_id::text, platform_org_id::text, supplier_org_id::text,
		       COALESCE(tags, '{}'::jsonb), is_active, created_at
		FROM organization_relationships
		WHERE relationship_id = $1::uuid
	`, relationshipID))
}

// FindRelationship 按有序对查找关系
func (r *PostgresOrganizationsRepository) FindRelationship(ctx context.Context, platformOrgID, supplierOrgID string) (*domain.OrganizationRelationship, error) {
	return r.scanRelationship(r.db.QueryRowContext(ctx, `
		SELECT relationship_id::text, platform_org_id::text, supplier_org_id::text,
		       COALESCE(tags, '{}'::jsonb), is_active, created_at
		FROM organization_relationships
		WHERE platform_org_id = $1::uuid AND supplier_org_id = $2::uuid
	`, platformOrgID, supplierOrgID))
}

func (r *PostgresOrganizationsRepository) scanRelationship(row *sql.Row) (*domain.OrganizationRelationship, error) {
	var rel domain.OrganizationRelationship
	var tagsRaw json.RawMessage
	err := row.Scan(
		&rel.RelationshipID,
		&rel.PlatformOrgID,
		&rel.SupplierOrgID,
		&tagsRaw,
		&rel.IsActive,
		&rel.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("relationship not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get relationship: %w", err)
	}
	rel.Tags = tagsRaw
	return &rel, nil
}

// ListRelationships 查询关系列表（平台侧或供应商侧都能看到自己参与的关系）
func (r *PostgresOrganizationsRepository) ListRelationships(ctx context.Context, scope tenant.Scope, activeOnly bool, page, size int) ([]*domain.OrganizationRelationship, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	offset := (page - 1) * size

	where := []string{}
	args := []any{}
	if activeOnly {
		where = append(where, "is_active = TRUE")
	}
	if !scope.Unrestricted {
		if scope.DenyAll {
			where = append(where, "FALSE")
		} else {
			args = append(args, scope.OrganizationID)
			// 双边可见：参与关系即在范围内
			where = append(where, fmt.Sprintf("(platform_org_id = $%d::uuid OR supplier_org_id = $%d::uuid)", len(args), len(args)))
		}
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organization_relationships`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count relationships: %w", err)
	}

	args = append(args, size, offset)
	query := fmt.Sprintf(`
		SELECT relationship_id::text, platform_org_id::text, supplier_org_id::text,
		       COALESCE(tags, '{}'::jsonb), is_active, created_at
		FROM organization_relationships
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list relationships: %w", err)
	}
	defer rows.Close()

	items := []*domain.OrganizationRelationship{}
	for rows.Next() {
		var rel domain.OrganizationRelationship
		var tagsRaw json.RawMessage
		if err := rows.Scan(&rel.RelationshipID, &rel.PlatformOrgID, &rel.SupplierOrgID, &tagsRaw, &rel.IsActive, &rel.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan relationship: %w", err)
		}
		rel.Tags = tagsRaw
		items = append(items, &rel)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate relationships: %w", err)
	}

	return items, total, nil
}

// SetRelationshipTags 更新关系标签
func (r *PostgresOrganizationsRepository) SetRelationshipTags(ctx context.Context, relationshipID string, tags json.RawMessage) error {
	if len(tags) == 0 {
		tags = json.RawMessage(`{}`)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE organization_relationships SET tags = $2::jsonb WHERE relationship_id = $1::uuid`,
		relationshipID, string(tags),
	)
	if err != nil {
		return fmt.Errorf("failed to set relationship tags: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("relationship not found")
	}
	return nil
}

// DeactivateRelationship 软停用关系（历史分配仍引用该行，不做物理删除）
func (r *PostgresOrganizationsRepository) DeactivateRelationship(ctx context.Context, relationshipID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE organization_relationships SET is_active = FALSE WHERE relationship_id = $1::uuid`,
		relationshipID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate relationship: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("relationship not found")
	}
	return nil
}
