package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"esgbridge-data/internal/domain"

	"github.com/google/uuid"
)

// PostgresQuestionsRepository 问卷/问题Repository实现
type PostgresQuestionsRepository struct {
	db *sql.DB
}

// NewPostgresQuestionsRepository 创建问题Repository
func NewPostgresQuestionsRepository(db *sql.DB) *PostgresQuestionsRepository {
	return &PostgresQuestionsRepository{db: db}
}

// 确保实现了接口
var _ QuestionsRepository = (*PostgresQuestionsRepository)(nil)

// CreateQuestionnaire 创建问卷
func (r *PostgresQuestionsRepository) CreateQuestionnaire(ctx context.Context, q *domain.Questionnaire) (string, error) {
	if q.OrganizationID == "" || q.Title == "" {
		return "", fmt.Errorf("organization_id and title are required")
	}
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO questionnaires (questionnaire_id, organization_id, title, description)
		VALUES ($1::uuid, $2::uuid, $3, $4)
	`, id, q.OrganizationID, q.Title, q.Description)
	if err != nil {
		return "", fmt.Errorf("failed to create questionnaire: %w", err)
	}
	return id, nil
}

// GetQuestionnaire 获取问卷
func (r *PostgresQuestionsRepository) GetQuestionnaire(ctx context.Context, questionnaireID string) (*domain.Questionnaire, error) {
	var q domain.Questionnaire
	err := r.db.QueryRowContext(ctx, `
		SELECT questionnaire_id::text, organization_id::text, title, description, created_at
		FROM questionnaires WHERE questionnaire_id = $1::uuid
	`, questionnaireID).Scan(&q.QuestionnaireID, &q.OrganizationID, &q.Title, &q.Description, &q.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("questionnaire not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get questionnaire: %w", err)
	}
	return &q, nil
}

// CreateQuestionnaireVersion 创建问卷版本
func (r *PostgresQuestionsRepository) CreateQuestionnaireVersion(ctx context.Context, v *domain.QuestionnaireVersion) (string, error) {
	if v.QuestionnaireID == "" || v.VersionNumber <= 0 {
		return "", fmt.Errorf("questionnaire_id and a positive version_number are required")
	}
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO questionnaire_versions (questionnaire_version_id, questionnaire_id, version_number, published_at)
		VALUES ($1::uuid, $2::uuid, $3, $4)
	`, id, v.QuestionnaireID, v.VersionNumber, v.PublishedAt)
	if err != nil {
		return "", fmt.Errorf("failed to create questionnaire version: %w", err)
	}
	return id, nil
}

// GetQuestionnaireVersion 获取问卷版本
func (r *PostgresQuestionsRepository) GetQuestionnaireVersion(ctx context.Context, versionID string) (*domain.QuestionnaireVersion, error) {
	var v domain.QuestionnaireVersion
	err := r.db.QueryRowContext(ctx, `
		SELECT questionnaire_version_id::text, questionnaire_id::text, version_number, published_at, created_at
		FROM questionnaire_versions WHERE questionnaire_version_id = $1::uuid
	`, versionID).Scan(&v.QuestionnaireVersionID, &v.QuestionnaireID, &v.VersionNumber, &v.PublishedAt, &v.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("questionnaire version not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get questionnaire version: %w", err)
	}
	return &v, nil
}

const questionColumns = `
	question_id::text,
	organization_id::text,
	questionnaire_version_id::text,
	section,
	question_text,
	question_type,
	is_required,
	display_order,
	created_at
`

func scanQuestion(row interface{ Scan(...any) error }) (*domain.Question, error) {
	var q domain.Question
	err := row.Scan(
		&q.QuestionID,
		&q.OrganizationID,
		&q.QuestionnaireVersionID,
		&q.Section,
		&q.QuestionText,
		&q.QuestionType,
		&q.IsRequired,
		&q.DisplayOrder,
		&q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// CreateQuestion 创建问题
func (r *PostgresQuestionsRepository) CreateQuestion(ctx context.Context, q *domain.Question) (string, error) {
	if q.OrganizationID == "" || q.QuestionnaireVersionID == "" || q.QuestionText == "" {
		return "", fmt.Errorf("organization_id, questionnaire_version_id and question_text are required")
	}
	if !domain.ValidQuestionType(q.QuestionType) {
		return "", fmt.Errorf("invalid question_type: %s", q.QuestionType)
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO questions (question_id, organization_id, questionnaire_version_id, section,
		                       question_text, question_type, is_required, display_order)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7, $8)
	`, id, q.OrganizationID, q.QuestionnaireVersionID, q.Section,
		q.QuestionText, q.QuestionType, q.IsRequired, q.DisplayOrder)
	if err != nil {
		return "", fmt.Errorf("failed to create question: %w", err)
	}
	return id, nil
}

// GetQuestion 获取问题
func (r *PostgresQuestionsRepository) GetQuestion(ctx context.Context, questionID string) (*domain.Question, error) {
	q, err := scanQuestion(r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM questions WHERE question_id = $1::uuid`, questionColumns),
		questionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("question not found: %w", err)
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return q, nil
}

// UpdateQuestion 修改问题文本/必填标记
func (r *PostgresQuestionsRepository) UpdateQuestion(ctx context.Context, q *domain.Question) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE questions
		SET question_text = $2, is_required = $3
		WHERE question_id = $1::uuid
	`, q.QuestionID, q.QuestionText, q.IsRequired)
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("question not found: %s", q.QuestionID)
	}
	return nil
}

// ListQuestions 按问卷版本查询问题（展示顺序）
func (r *PostgresQuestionsRepository) ListQuestions(ctx context.Context, questionnaireVersionID string) ([]*domain.Question, error) {
	return r.listQuestions(ctx,
		fmt.Sprintf(`SELECT %s FROM questions WHERE questionnaire_version_id = $1::uuid ORDER BY display_order, created_at`, questionColumns),
		questionnaireVersionID)
}

// ListQuestionsBySection 按章节查询问题
func (r *PostgresQuestionsRepository) ListQuestionsBySection(ctx context.Context, questionnaireVersionID, section string) ([]*domain.Question, error) {
	return r.listQuestions(ctx,
		fmt.Sprintf(`SELECT %s FROM questions WHERE questionnaire_version_id = $1::uuid AND section = $2 ORDER BY display_order, created_at`, questionColumns),
		questionnaireVersionID, section)
}

func (r *PostgresQuestionsRepository) listQuestions(ctx context.Context, query string, args ...any) ([]*domain.Question, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	items := []*domain.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		items = append(items, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate questions: %w", err)
	}
	return items, nil
}

// AddDependency 添加依赖边（环检测在服务层建边前完成）
func (r *PostgresQuestionsRepository) AddDependency(ctx context.Context, dep *domain.QuestionDependency) (string, error) {
	if dep.QuestionID == "" || dep.DependsOnQuestionID == "" {
		return "", fmt.Errorf("question_id and depends_on_question_id are required")
	}
	if !domain.ValidDependencyCondition(dep.Condition) {
		return "", fmt.Errorf("invalid dependency condition: %s", dep.Condition)
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO question_dependencies (dependency_id, question_id, depends_on_question_id, condition, condition_value)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5)
	`, id, dep.QuestionID, dep.DependsOnQuestionID, dep.Condition, dep.ConditionValue)
	if err != nil {
		return "", fmt.Errorf("failed to add question dependency: %w", err)
	}
	return id, nil
}

// ListDependencies 查询问卷版本内全部依赖边
func (r *PostgresQuestionsRepository) ListDependencies(ctx context.Context, questionnaireVersionID string) ([]*domain.QuestionDependency, error) {
	return r.listDependencies(ctx, `
		SELECT d.dependency_id::text, d.question_id::text, d.depends_on_question_id::text,
		       d.condition, d.condition_value, d.created_at
		FROM question_dependencies d
		JOIN questions q ON q.question_id = d.question_id
		WHERE q.questionnaire_version_id = $1::uuid
	`, questionnaireVersionID)
}

// ListDependenciesForQuestion 查询单个问题的入边
func (r *PostgresQuestionsRepository) ListDependenciesForQuestion(ctx context.Context, questionID string) ([]*domain.QuestionDependency, error) {
	return r.listDependencies(ctx, `
		SELECT dependency_id::text, question_id::text, depends_on_question_id::text,
		       condition, condition_value, created_at
		FROM question_dependencies
		WHERE question_id = $1::uuid
	`, questionID)
}

func (r *PostgresQuestionsRepository) listDependencies(ctx context.Context, query string, args ...any) ([]*domain.QuestionDependency, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list question dependencies: %w", err)
	}
	defer rows.Close()

	items := []*domain.QuestionDependency{}
	for rows.Next() {
		var d domain.QuestionDependency
		if err := rows.Scan(&d.DependencyID, &d.QuestionID, &d.DependsOnQuestionID,
			&d.Condition, &d.ConditionValue, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan question dependency: %w", err)
		}
		items = append(items, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate question dependencies: %w", err)
	}
	return items, nil
}

// RecordQuestionChange 追加问题定义变更历史（只追加）
func (r *PostgresQuestionsRepository) RecordQuestionChange(ctx context.Context, change *domain.QuestionChange) error {
	if change.QuestionID == "" || change.ChangedBy == "" {
		return fmt.Errorf("question_id and changed_by are required")
	}
	oldVal := change.OldValue
	if len(oldVal) == 0 {
		oldVal = json.RawMessage(`{}`)
	}
	newVal := change.NewValue
	if len(newVal) == 0 {
		newVal = json.RawMessage(`{}`)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO question_changes (change_id, question_id, changed_by, old_value, new_value, reason)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4::jsonb, $5::jsonb, $6)
	`, uuid.NewString(), change.QuestionID, change.ChangedBy, string(oldVal), string(newVal), change.Reason)
	if err != nil {
		return fmt.Errorf("failed to record question change: %w", err)
	}
	return nil
}

// ListQuestionChanges 查询问题变更历史
func (r *PostgresQuestionsRepository) ListQuestionChanges(ctx context.Context, questionID string) ([]*domain.QuestionChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT change_id::text, question_id::text, changed_by::text, old_value, new_value, reason, created_at
		FROM question_changes
		WHERE question_id = $1::uuid
		ORDER BY created_at
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list question changes: %w", err)
	}
	defer rows.Close()

	items := []*domain.QuestionChange{}
	for rows.Next() {
		var c domain.QuestionChange
		var oldVal, newVal json.RawMessage
		if err := rows.Scan(&c.ChangeID, &c.QuestionID, &c.ChangedBy, &oldVal, &newVal, &c.Reason, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan question change: %w", err)
		}
		c.OldValue = oldVal
		c.NewValue = newVal
		items = append(items, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate question changes: %w", err)
	}
	return items, nil
}
