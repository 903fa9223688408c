package domain

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	// 合法迁移边
	legal := [][2]string{
		{ResponseNotStarted, ResponsePrePopulated},
		{ResponseNotStarted, ResponseDraft},
		{ResponsePrePopulated, ResponseDraft},
		{ResponsePrePopulated, ResponseSubmittedForReview},
		{ResponseDraft, ResponseAnswered},
		{ResponseDraft, ResponseSubmittedForReview},
		{ResponseAnswered, ResponseSubmittedForReview},
		{ResponseSubmittedForReview, ResponseUnderReview},
		{ResponseUnderReview, ResponseChangesRequested},
		{ResponseUnderReview, ResponseReviewApproved},
		{ResponseChangesRequested, ResponseDraft},
		{ResponseReviewApproved, ResponseFinal},
	}
	for _, edge := range legal {
		require.True(t, CanTransition(edge[0], edge[1]), "expected %s -> %s to be legal", edge[0], edge[1])
	}

	// 非法迁移边
	illegal := [][2]string{
		{ResponseNotStarted, ResponseSubmittedForReview},
		{ResponseDraft, ResponseUnderReview},
		{ResponseDraft, ResponseFinal},
		{ResponseSubmittedForReview, ResponseReviewApproved},
		{ResponseSubmittedForReview, ResponseDraft},
		{ResponseUnderReview, ResponseFinal},
		{ResponseChangesRequested, ResponseSubmittedForReview},
		{ResponseReviewApproved, ResponseDraft},
		{ResponseFinal, ResponseDraft},
		{ResponseFinal, ResponseFinal},
	}
	for _, edge := range illegal {
		require.False(t, CanTransition(edge[0], edge[1]), "expected %s -> %s to be illegal", edge[0], edge[1])
	}

	// final 是终态：没有任何出边
	for _, to := range []string{
		ResponseNotStarted, ResponsePrePopulated, ResponseDraft, ResponseAnswered,
		ResponseSubmittedForReview, ResponseUnderReview, ResponseChangesRequested,
		ResponseReviewApproved, ResponseFinal,
	} {
		require.False(t, CanTransition(ResponseFinal, to))
	}

	t.Logf("✅ CanTransition test passed")
}

func TestValidResponseStatus(t *testing.T) {
	require.True(t, ValidResponseStatus(ResponseDraft))
	require.True(t, ValidResponseStatus(ResponseFinal))
	require.False(t, ValidResponseStatus("archived"))
	require.False(t, ValidResponseStatus(""))
}

func TestResponse_HasValue(t *testing.T) {
	empty := &Response{}
	require.False(t, empty.HasValue(QuestionTypeText))
	require.False(t, empty.HasValue(QuestionTypeNumeric))
	require.False(t, empty.HasValue(QuestionTypeMultiSelect))

	text := &Response{TextValue: sql.NullString{String: "Scope 1 emissions", Valid: true}}
	require.True(t, text.HasValue(QuestionTypeText))
	require.False(t, text.HasValue(QuestionTypeNumeric))

	// 空字符串不算有值
	blank := &Response{TextValue: sql.NullString{String: "", Valid: true}}
	require.False(t, blank.HasValue(QuestionTypeText))

	numeric := &Response{NumericValue: sql.NullFloat64{Float64: 0, Valid: true}}
	require.True(t, numeric.HasValue(QuestionTypeNumeric), "zero is a real numeric value")

	boolean := &Response{BoolValue: sql.NullBool{Bool: false, Valid: true}}
	require.True(t, boolean.HasValue(QuestionTypeBoolean), "false is a real boolean value")

	multi := &Response{OptionValues: []string{"solar"}}
	require.True(t, multi.HasValue(QuestionTypeMultiSelect))

	t.Logf("✅ HasValue test passed")
}

func TestResponseValue_MatchesType(t *testing.T) {
	text := "answer"
	num := 42.5
	yes := true
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.True(t, ResponseValue{Text: &text}.MatchesType(QuestionTypeText))
	require.True(t, ResponseValue{Numeric: &num}.MatchesType(QuestionTypeNumeric))
	require.True(t, ResponseValue{Bool: &yes}.MatchesType(QuestionTypeBoolean))
	require.True(t, ResponseValue{Date: &day}.MatchesType(QuestionTypeDate))
	require.True(t, ResponseValue{Options: []string{"a", "b"}}.MatchesType(QuestionTypeMultiSelect))
	require.True(t, ResponseValue{Text: &text}.MatchesType(QuestionTypeFile))

	// 类型不匹配
	require.False(t, ResponseValue{Numeric: &num}.MatchesType(QuestionTypeText))
	require.False(t, ResponseValue{Text: &text}.MatchesType(QuestionTypeNumeric))

	// 同时携带多个取值字段也算不匹配
	require.False(t, ResponseValue{Text: &text, Numeric: &num}.MatchesType(QuestionTypeText))

	require.True(t, ResponseValue{}.IsEmpty())
	require.False(t, ResponseValue{Text: &text}.IsEmpty())

	t.Logf("✅ MatchesType test passed")
}

func TestResponseValue_ApplyTo(t *testing.T) {
	text := "old"
	resp := &Response{}
	ResponseValue{Text: &text}.ApplyTo(resp)
	require.True(t, resp.TextValue.Valid)
	require.Equal(t, "old", resp.TextValue.String)

	// 换类型写入时旧取值被清空
	num := 7.0
	ResponseValue{Numeric: &num}.ApplyTo(resp)
	require.False(t, resp.TextValue.Valid)
	require.True(t, resp.NumericValue.Valid)
	require.Equal(t, 7.0, resp.NumericValue.Float64)

	ResponseValue{Options: []string{"wind", "solar"}}.ApplyTo(resp)
	require.False(t, resp.NumericValue.Valid)
	require.Equal(t, []string{"wind", "solar"}, []string(resp.OptionValues))

	t.Logf("✅ ApplyTo test passed")
}

func TestResponse_ValueSnapshot(t *testing.T) {
	resp := &Response{
		TextValue: sql.NullString{String: "hello", Valid: true},
	}
	var snapshot map[string]any
	require.NoError(t, json.Unmarshal(resp.ValueSnapshot(), &snapshot))
	require.Equal(t, "hello", snapshot["text"])
	require.NotContains(t, snapshot, "numeric")

	empty := &Response{}
	require.JSONEq(t, `{}`, string(empty.ValueSnapshot()))
}

func TestReviewAssignment_Covers(t *testing.T) {
	q := &Question{QuestionID: "q1", Section: "Environment"}

	whole := &ReviewAssignment{Scope: ScopeAssignment, IsActive: true}
	require.True(t, whole.Covers(q))

	section := &ReviewAssignment{
		Scope:       ScopeSection,
		SectionName: sql.NullString{String: "Environment", Valid: true},
		IsActive:    true,
	}
	require.True(t, section.Covers(q))
	require.False(t, section.Covers(&Question{QuestionID: "q2", Section: "Governance"}))

	question := &ReviewAssignment{
		Scope:      ScopeQuestion,
		QuestionID: sql.NullString{String: "q1", Valid: true},
		IsActive:   true,
	}
	require.True(t, question.Covers(q))
	require.False(t, question.Covers(&Question{QuestionID: "q2", Section: "Environment"}))

	// 停用的审核分配不覆盖任何问题
	whole.IsActive = false
	require.False(t, whole.Covers(q))

	t.Logf("✅ Covers test passed")
}
