package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/tenant"

	"github.com/google/uuid"
)

// PostgresCampaignsRepository 活动/活动分配Repository实现
type PostgresCampaignsRepository struct {
	db *sql.DB
}

// NewPostgresCampaignsRepository 创建活动Repository
func NewPostgresCampaignsRepository(db *sql.DB) *PostgresCampaignsRepository {
	return &PostgresCampaignsRepository{db: db}
}

// 确保实现了接口
var _ CampaignsRepository = (*PostgresCampaignsRepository)(nil)

const campaignColumns = `
	campaign_id::text,
	organization_id::text,
	campaign_name,
	description,
	COALESCE(status, 'draft') as status,
	start_date,
	end_date,
	created_by::text,
	created_at,
	updated_at
`

func scanCampaign(row interface{ Scan(...any) error }) (*domain.Campaign, error) {
	var c domain.Campaign
	err := row.Scan(
		&c.CampaignID,
		&c.OrganizationID,
		&c.CampaignName,
		&c.Description,
		&c.Status,
		&c.StartDate,
		&c.EndDate,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCampaign 创建活动
func (r *PostgresCampaignsRepository) CreateCampaign(ctx context.Context, c *domain.Campaign) (string, error) {
	if c.OrganizationID == "" || c.CampaignName == "" || c.CreatedBy == "" {
		return "", fmt.Errorf("organization_id, campaign_name and created_by are required")
	}

	campaignID := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaigns (campaign_id, organization_id, campaign_name, description, status,
		                       start_date, end_date, created_by)
		VALUES ($1::uuid, $2::uuid, $3, $4, COALESCE(NULLIF($5, ''), 'draft'), $6, $7, $8::uuid)
	`, campaignID, c.OrganizationID, c.CampaignName, c.Description, c.Status,
		c.StartDate, c.EndDate, c.CreatedBy)
	if err != nil {
		return "", fmt.Errorf("failed to create campaign: %w", err)
	}

	return campaignID, nil
}

// GetCampaign 获取活动（租户范围过滤）
func (r *PostgresCampaignsRepository) GetCampaign(ctx context.Context, scope tenant.Scope, campaignID string) (*domain.Campaign, error) {
	if campaignID == "" {
		return nil, fmt.Errorf("campaign_id is required")
	}

	args := []any{campaignID}
	query := fmt.Sprintf(`SELECT %s FROM campaigns WHERE campaign_id = $1::uuid`, campaignColumns)
	scope.ApplyFilter(&query, &args, "organization_id", false)

	c, err := scanCampaign(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			// 过滤掉的行和不存在的行对调用方不可区分
			return nil, fmt.Errorf("campaign not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return c, nil
}

// ListCampaigns 查询活动列表
func (r *PostgresCampaignsRepository) ListCampaigns(ctx context.Context, scope tenant.Scope, filter CampaignFilters, page, size int) ([]*domain.Campaign, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	offset := (page - 1) * size

	where := []string{}
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("campaign_name ILIKE $%d", len(args)))
	}

	query := `FROM campaigns`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	scope.ApplyFilter(&query, &args, "organization_id", len(where) == 0)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) "+query, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	args = append(args, size, offset)
	listQuery := fmt.Sprintf(`SELECT %s %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		campaignColumns, query, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	items := []*domain.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan campaign: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate campaigns: %w", err)
	}

	return items, total, nil
}

// SetCampaignStatus 设置活动状态（声明式，不校验迁移路径）
func (r *PostgresCampaignsRepository) SetCampaignStatus(ctx context.Context, campaignID, status string) error {
	if !domain.ValidCampaignStatus(status) {
		return fmt.Errorf("invalid campaign status: %s", status)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE campaigns SET status = $2, updated_at = NOW() WHERE campaign_id = $1::uuid`,
		campaignID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to set campaign status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("campaign not found")
	}
	return nil
}

const assignmentColumns = `
	campaign_assignment_id::text,
	campaign_id::text,
	organization_id::text,
	questionnaire_version_id::text,
	relationship_id,
	lead_responder_id::text,
	COALESCE(status, 'not_started') as status,
	due_date,
	created_at,
	updated_at
`

func scanAssignment(row interface{ Scan(...any) error }) (*domain.CampaignAssignment, error) {
	var ca domain.CampaignAssignment
	err := row.Scan(
		&ca.CampaignAssignmentID,
		&ca.CampaignID,
		&ca.OrganizationID,
		&ca.QuestionnaireVersionID,
		&ca.RelationshipID,
		&ca.LeadResponderID,
		&ca.Status,
		&ca.DueDate,
		&ca.CreatedAt,
		&ca.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ca, nil
}

// CreateAssignment 创建活动分配
func (r *PostgresCampaignsRepository) CreateAssignment(ctx context.Context, ca *domain.CampaignAssignment) (string, error) {
	if ca.CampaignID == "" || ca.OrganizationID == "" || ca.QuestionnaireVersionID == "" || ca.LeadResponderID == "" {
		return "", fmt.Errorf("campaign_id, organization_id, questionnaire_version_id and lead_responder_id are required")
	}

	assignmentID := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO campaign_assignments (campaign_assignment_id, campaign_id, organization_id,
		        questionnaire_version_id, relationship_id, lead_responder_id, status, due_date)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4::uuid, $5, $6::uuid,
		        COALESCE(NULLIF($7, ''), 'not_started'), $8)
	`, assignmentID, ca.CampaignID, ca.OrganizationID, ca.QuestionnaireVersionID,
		ca.RelationshipID, ca.LeadResponderID, ca.Status, ca.DueDate)
	if err != nil {
		return "", fmt.Errorf("failed to create campaign assignment: %w", err)
	}

	return assignmentID, nil
}

// GetAssignment 获取活动分配（租户范围过滤：目标组织或活动归属组织在范围内即可见）
func (r *PostgresCampaignsRepository) GetAssignment(ctx context.Context, scope tenant.Scope, campaignAssignmentID string) (*domain.CampaignAssignment, error) {
	if campaignAssignmentID == "" {
		return nil, fmt.Errorf("campaign_assignment_id is required")
	}

	args := []any{campaignAssignmentID}
	query := fmt.Sprintf(`
		SELECT %s FROM campaign_assignments ca
		WHERE ca.campaign_assignment_id = $1::uuid
	`, qualifyAssignmentColumns("ca"))

	if !scope.Unrestricted {
		if scope.DenyAll {
			query += " AND FALSE"
		} else {
			args = append(args, scope.OrganizationID)
			query += fmt.Sprintf(` AND (ca.organization_id = $%d::uuid
				OR ca.campaign_id IN (SELECT campaign_id FROM campaigns WHERE organization_id = $%d::uuid))`,
				len(args), len(args))
		}
	}

	ca, err := scanAssignment(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("campaign assignment not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get campaign assignment: %w", err)
	}
	return ca, nil
}

// GetAssignmentUnscoped 不带范围过滤读取（写路径先取整行再做 Scope.Check）
func (r *PostgresCampaignsRepository) GetAssignmentUnscoped(ctx context.Context, campaignAssignmentID string) (*domain.CampaignAssignment, error) {
	if campaignAssignmentID == "" {
		return nil, fmt.Errorf("campaign_assignment_id is required")
	}

	ca, err := scanAssignment(r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM campaign_assignments WHERE campaign_assignment_id = $1::uuid`, assignmentColumns),
		campaignAssignmentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("campaign assignment not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get campaign assignment: %w", err)
	}
	return ca, nil
}

// ListAssignments 查询活动分配列表
func (r *PostgresCampaignsRepository) ListAssignments(ctx context.Context, scope tenant.Scope, filter AssignmentFilters, page, size int) ([]*domain.CampaignAssignment, int, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	offset := (page - 1) * size

	where := []string{}
	args := []any{}
	if filter.CampaignID != "" {
		args = append(args, filter.CampaignID)
		where = append(where, fmt.Sprintf("ca.campaign_id = $%d::uuid", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("ca.status = $%d", len(args)))
	}
	if filter.LeadResponderID != "" {
		args = append(args, filter.LeadResponderID)
		where = append(where, fmt.Sprintf("ca.lead_responder_id = $%d::uuid", len(args)))
	}
	if !scope.Unrestricted {
		if scope.DenyAll {
			where = append(where, "FALSE")
		} else {
			args = append(args, scope.OrganizationID)
			where = append(where, fmt.Sprintf(`(ca.organization_id = $%d::uuid
				OR ca.campaign_id IN (SELECT campaign_id FROM campaigns WHERE organization_id = $%d::uuid))`,
				len(args), len(args)))
		}
	}

	query := `FROM campaign_assignments ca`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) "+query, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count campaign assignments: %w", err)
	}

	args = append(args, size, offset)
	listQuery := fmt.Sprintf(`SELECT %s %s ORDER BY ca.created_at DESC LIMIT $%d OFFSET $%d`,
		qualifyAssignmentColumns("ca"), query, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaign assignments: %w", err)
	}
	defer rows.Close()

	items := []*domain.CampaignAssignment{}
	for rows.Next() {
		ca, err := scanAssignment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan campaign assignment: %w", err)
		}
		items = append(items, ca)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate campaign assignments: %w", err)
	}

	return items, total, nil
}

// SetAssignmentStatus 设置分配粗粒度状态（手工汇总，不从响应状态推导）
func (r *PostgresCampaignsRepository) SetAssignmentStatus(ctx context.Context, campaignAssignmentID, status string) error {
	if !domain.ValidAssignmentStatus(status) {
		return fmt.Errorf("invalid assignment status: %s", status)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE campaign_assignments SET status = $2, updated_at = NOW() WHERE campaign_assignment_id = $1::uuid`,
		campaignAssignmentID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to set assignment status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("campaign assignment not found")
	}
	return nil
}

// SetLeadResponder 更换主责任人
func (r *PostgresCampaignsRepository) SetLeadResponder(ctx context.Context, campaignAssignmentID, leadResponderID string) error {
	if leadResponderID == "" {
		return fmt.Errorf("lead_responder_id is required")
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE campaign_assignments SET lead_responder_id = $2::uuid, updated_at = NOW() WHERE campaign_assignment_id = $1::uuid`,
		campaignAssignmentID, leadResponderID,
	)
	if err != nil {
		return fmt.Errorf("failed to set lead responder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("campaign assignment not found")
	}
	return nil
}

// ListAssignmentsByOrgAndQuestionnaire 预填来源检索（同组织、同问卷版本的历史分配，按创建时间倒序）
func (r *PostgresCampaignsRepository) ListAssignmentsByOrgAndQuestionnaire(ctx context.Context, organizationID, questionnaireVersionID string) ([]*domain.CampaignAssignment, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM campaign_assignments
		WHERE organization_id = $1::uuid AND questionnaire_version_id = $2::uuid
		ORDER BY created_at DESC
	`, assignmentColumns), organizationID, questionnaireVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments by questionnaire: %w", err)
	}
	defer rows.Close()

	items := []*domain.CampaignAssignment{}
	for rows.Next() {
		ca, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign assignment: %w", err)
		}
		items = append(items, ca)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate campaign assignments: %w", err)
	}
	return items, nil
}

// qualifyAssignmentColumns 给列清单加表别名
func qualifyAssignmentColumns(alias string) string {
	return fmt.Sprintf(`
		%[1]s.campaign_assignment_id::text,
		%[1]s.campaign_id::text,
		%[1]s.organization_id::text,
		%[1]s.questionnaire_version_id::text,
		%[1]s.relationship_id,
		%[1]s.lead_responder_id::text,
		COALESCE(%[1]s.status, 'not_started') as status,
		%[1]s.due_date,
		%[1]s.created_at,
		%[1]s.updated_at
	`, alias)
}
