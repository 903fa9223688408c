package domain

import "fmt"

// 工作流/权限错误都是可恢复的业务条件，不是进程级错误。
// 调用方用 errors.As 识别类型后决定重试或提示。

// IllegalTransitionError 非法状态迁移
type IllegalTransitionError struct {
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal response transition: %s -> %s", e.From, e.To)
}

// UnauthorizedActorError 操作者对目标没有责任/审核权限
type UnauthorizedActorError struct {
	ActorID string
	Action  string
}

func (e *UnauthorizedActorError) Error() string {
	return fmt.Sprintf("actor %s is not authorized for action %s", e.ActorID, e.Action)
}

// UnassignedQuestionError 解析不到责任人（有 lead responder 兜底，正常不可达）
type UnassignedQuestionError struct {
	QuestionID string
}

func (e *UnassignedQuestionError) Error() string {
	return fmt.Sprintf("no responsibility owner resolved for question %s", e.QuestionID)
}

// ConcurrentModificationError 乐观锁冲突：调用方需重读后重试
type ConcurrentModificationError struct {
	ResponseID string
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("response %s was modified concurrently, re-read and retry", e.ResponseID)
}

// TenantViolationError 越租户访问
// 错误信息中不允许出现其他组织的任何标识
type TenantViolationError struct{}

func (e *TenantViolationError) Error() string {
	return "access denied: resource is outside the caller's organization"
}

// ValidationError 入参校验失败（缺少必填理由、取值与问题类型不匹配等）
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}
