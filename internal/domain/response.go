package domain

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// Response 状态机的全部状态
const (
	ResponseNotStarted         = "not_started"
	ResponsePrePopulated       = "pre_populated"
	ResponseDraft              = "draft"
	ResponseAnswered           = "answered"
	ResponseSubmittedForReview = "submitted_for_review"
	ResponseUnderReview        = "under_review"
	ResponseChangesRequested   = "changes_requested"
	ResponseReviewApproved     = "review_approved"
	ResponseFinal              = "final"
)

// responseTransitions 合法状态迁移边
// pre_populated 只能通过跨活动预填进入；changes_requested -> draft 重新开放编辑；
// review_approved -> final 为终态晋升（整单签署时触发）
var responseTransitions = map[string][]string{
	ResponseNotStarted:         {ResponsePrePopulated, ResponseDraft},
	ResponsePrePopulated:       {ResponseDraft, ResponseSubmittedForReview},
	ResponseDraft:              {ResponseAnswered, ResponseSubmittedForReview},
	ResponseAnswered:           {ResponseSubmittedForReview},
	ResponseSubmittedForReview: {ResponseUnderReview},
	ResponseUnderReview:        {ResponseChangesRequested, ResponseReviewApproved},
	ResponseChangesRequested:   {ResponseDraft},
	ResponseReviewApproved:     {ResponseFinal},
	ResponseFinal:              {},
}

// CanTransition 判断 from -> to 是否为合法迁移边
func CanTransition(from, to string) bool {
	for _, next := range responseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidResponseStatus 校验响应状态取值
func ValidResponseStatus(s string) bool {
	_, ok := responseTransitions[s]
	return ok
}

// Response 响应领域模型（对应 responses 表）
// (question_id, campaign_assignment_id, responder_id) 唯一；
// version 列用于乐观锁，所有状态/值变更都要求版本匹配
type Response struct {
	ResponseID           string `db:"response_id"`            // UUID, PRIMARY KEY
	CampaignAssignmentID string `db:"campaign_assignment_id"` // NOT NULL, FK campaign_assignments
	QuestionID           string `db:"question_id"`            // NOT NULL, FK questions
	ResponderID          string `db:"responder_id"`           // NOT NULL, FK users

	Status string `db:"status"` // NOT NULL DEFAULT 'not_started'

	// 类型化取值：每种 question_type 恰好填充一个
	TextValue    sql.NullString  `db:"text_value"`
	NumericValue sql.NullFloat64 `db:"numeric_value"`
	DateValue    sql.NullTime    `db:"date_value"`
	BoolValue    sql.NullBool    `db:"bool_value"`
	OptionValues pq.StringArray  `db:"option_values"` // multi_select

	// 跨活动预填谱系
	IsPrePopulated         bool           `db:"is_pre_populated"`
	IsPrePopulatedAccepted bool           `db:"is_pre_populated_accepted"`
	SourceResponseID       sql.NullString `db:"source_response_id"`

	Version     int          `db:"version"` // 乐观锁版本号
	SubmittedAt sql.NullTime `db:"submitted_at"`
	CreatedAt   time.Time    `db:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at"`
}

// HasValue 当前响应是否已有取值（按问题类型判断）
func (r *Response) HasValue(questionType string) bool {
	switch questionType {
	case QuestionTypeText:
		return r.TextValue.Valid && r.TextValue.String != ""
	case QuestionTypeNumeric:
		return r.NumericValue.Valid
	case QuestionTypeDate:
		return r.DateValue.Valid
	case QuestionTypeBoolean:
		return r.BoolValue.Valid
	case QuestionTypeMultiSelect:
		return len(r.OptionValues) > 0
	case QuestionTypeFile:
		// 文件型问题的值是 file_uploads 引用，这里只看文本占位
		return r.TextValue.Valid && r.TextValue.String != ""
	}
	return false
}

// ValueSnapshot 把当前取值序列化为 JSON 快照（用于 response_changes / response_overrides）
func (r *Response) ValueSnapshot() json.RawMessage {
	m := map[string]any{}
	if r.TextValue.Valid {
		m["text"] = r.TextValue.String
	}
	if r.NumericValue.Valid {
		m["numeric"] = r.NumericValue.Float64
	}
	if r.DateValue.Valid {
		m["date"] = r.DateValue.Time.UTC().Format(time.RFC3339)
	}
	if r.BoolValue.Valid {
		m["bool"] = r.BoolValue.Bool
	}
	if len(r.OptionValues) > 0 {
		m["options"] = []string(r.OptionValues)
	}
	raw, _ := json.Marshal(m)
	return raw
}

// ResponseValue 一次取值写入（服务层入参）
type ResponseValue struct {
	Text    *string
	Numeric *float64
	Date    *time.Time
	Bool    *bool
	Options []string
}

// IsEmpty 是否未携带任何取值
func (v ResponseValue) IsEmpty() bool {
	return v.Text == nil && v.Numeric == nil && v.Date == nil && v.Bool == nil && len(v.Options) == 0
}

// MatchesType 取值是否与问题类型匹配（且只填充对应字段）
func (v ResponseValue) MatchesType(questionType string) bool {
	switch questionType {
	case QuestionTypeText, QuestionTypeFile:
		return v.Text != nil && v.Numeric == nil && v.Date == nil && v.Bool == nil && len(v.Options) == 0
	case QuestionTypeNumeric:
		return v.Numeric != nil && v.Text == nil && v.Date == nil && v.Bool == nil && len(v.Options) == 0
	case QuestionTypeDate:
		return v.Date != nil && v.Text == nil && v.Numeric == nil && v.Bool == nil && len(v.Options) == 0
	case QuestionTypeBoolean:
		return v.Bool != nil && v.Text == nil && v.Numeric == nil && v.Date == nil && len(v.Options) == 0
	case QuestionTypeMultiSelect:
		return len(v.Options) > 0 && v.Text == nil && v.Numeric == nil && v.Date == nil && v.Bool == nil
	}
	return false
}

// ApplyTo 把取值写入响应（先清空再写，保证恰好一个字段有值）
func (v ResponseValue) ApplyTo(r *Response) {
	r.TextValue = sql.NullString{}
	r.NumericValue = sql.NullFloat64{}
	r.DateValue = sql.NullTime{}
	r.BoolValue = sql.NullBool{}
	r.OptionValues = nil

	if v.Text != nil {
		r.TextValue = sql.NullString{String: *v.Text, Valid: true}
	}
	if v.Numeric != nil {
		r.NumericValue = sql.NullFloat64{Float64: *v.Numeric, Valid: true}
	}
	if v.Date != nil {
		r.DateValue = sql.NullTime{Time: *v.Date, Valid: true}
	}
	if v.Bool != nil {
		r.BoolValue = sql.NullBool{Bool: *v.Bool, Valid: true}
	}
	if len(v.Options) > 0 {
		r.OptionValues = pq.StringArray(v.Options)
	}
}
