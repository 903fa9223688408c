package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"esgbridge-data/internal/domain"
	"esgbridge-data/internal/repository"
	"esgbridge-data/internal/tenant"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ExportService 合规导出服务接口
// 把一个活动分配的响应与审计轨迹导出成 Excel 工作簿
type ExportService interface {
	ExportAssignment(ctx context.Context, identity tenant.Identity, campaignAssignmentID string) ([]byte, error)
}

// exportService 合规导出服务实现
type exportService struct {
	campaignsRepo repository.CampaignsRepository
	questionsRepo repository.QuestionsRepository
	responsesRepo repository.ResponsesRepository
	auditRepo     repository.AuditRepository
	logger        *zap.Logger
}

// NewExportService 创建合规导出服务
func NewExportService(
	campaignsRepo repository.CampaignsRepository,
	questionsRepo repository.QuestionsRepository,
	responsesRepo repository.ResponsesRepository,
	auditRepo repository.AuditRepository,
	logger *zap.Logger,
) ExportService {
	return &exportService{
		campaignsRepo: campaignsRepo,
		questionsRepo: questionsRepo,
		responsesRepo: responsesRepo,
		auditRepo:     auditRepo,
		logger:        logger,
	}
}

// ExportAssignment 导出响应与审计轨迹
// 两个工作表：Responses（问题 x 取值 x 状态），Audit Trail（完整审计时间线）
func (s *exportService) ExportAssignment(ctx context.Context, identity tenant.Identity, campaignAssignmentID string) ([]byte, error) {
	scope := tenant.Resolve(identity)
	ca, err := s.campaignsRepo.GetAssignment(ctx, scope, campaignAssignmentID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questionsRepo.ListQuestions(ctx, ca.QuestionnaireVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	responses, err := s.responsesRepo.ListByAssignment(ctx, scope, campaignAssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	logs, _, err := s.auditRepo.ListByAssignment(ctx, campaignAssignmentID, 1, 500)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	// Responses 工作表
	const respSheet = "Responses"
	f.SetSheetName("Sheet1", respSheet)
	respHeaders := []string{"Section", "Question", "Type", "Required", "Status", "Value", "Pre-populated", "Responder", "Submitted At"}
	for i, h := range respHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(respSheet, cell, h)
	}

	responseByQuestion := map[string]*domain.Response{}
	for _, resp := range responses {
		responseByQuestion[resp.QuestionID] = resp
	}
	for row, q := range questions {
		values := []any{q.Section, q.QuestionText, q.QuestionType, q.IsRequired, "", "", false, "", ""}
		if resp, ok := responseByQuestion[q.QuestionID]; ok {
			values[4] = resp.Status
			values[5] = renderValue(resp, q.QuestionType)
			values[6] = resp.IsPrePopulated
			values[7] = resp.ResponderID
			if resp.SubmittedAt.Valid {
				values[8] = resp.SubmittedAt.Time.UTC().Format(time.RFC3339)
			}
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(respSheet, cell, v)
		}
	}

	// Audit Trail 工作表
	const auditSheet = "Audit Trail"
	if _, err := f.NewSheet(auditSheet); err != nil {
		return nil, fmt.Errorf("failed to create audit sheet: %w", err)
	}
	auditHeaders := []string{"Timestamp", "Actor", "Action", "From Status", "To Status", "Details"}
	for i, h := range auditHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(auditSheet, cell, h)
	}
	for row, l := range logs {
		values := []any{
			l.CreatedAt.UTC().Format(time.RFC3339),
			l.ActorID,
			l.Action,
			l.FromStatus.String,
			l.ToStatus.String,
			l.Details.String,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(auditSheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	s.logger.Info("assignment exported",
		zap.String("campaign_assignment_id", campaignAssignmentID),
		zap.Int("questions", len(questions)),
		zap.Int("responses", len(responses)))
	return buf.Bytes(), nil
}

// renderValue 取值的展示文本
func renderValue(resp *domain.Response, questionType string) string {
	switch questionType {
	case domain.QuestionTypeText, domain.QuestionTypeFile:
		return resp.TextValue.String
	case domain.QuestionTypeNumeric:
		if resp.NumericValue.Valid {
			return fmt.Sprintf("%g", resp.NumericValue.Float64)
		}
	case domain.QuestionTypeDate:
		if resp.DateValue.Valid {
			return resp.DateValue.Time.Format("2006-01-02")
		}
	case domain.QuestionTypeBoolean:
		if resp.BoolValue.Valid {
			return fmt.Sprintf("%t", resp.BoolValue.Bool)
		}
	case domain.QuestionTypeMultiSelect:
		out := ""
		for i, opt := range resp.OptionValues {
			if i > 0 {
				out += ", "
			}
			out += opt
		}
		return out
	}
	return ""
}
