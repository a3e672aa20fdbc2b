package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持 errors.Is：Module 与 Code 相同即视为同一类错误
//
// 使用场景：
//   - 配置错误：阈值顺序 q ≤ p ≤ v 不成立、距离半径非正（INVALID_CONFIG）
//   - 召回错误：放宽阈值后仍无候选（EMPTY_CANDIDATES）
//   - 输入错误：矩阵形状不匹配等（INVALID_INPUT）
type DomainError struct {
	Code    string // 错误代码（如 "INVALID_CONFIG"）
	Message string // 错误消息
	Module  string // 模块名称（如 "config", "recall", "electre"）
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is 使 errors.Is 按 Module + Code 匹配，忽略 Message。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Module == t.Module && e.Code == t.Code
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// 错误代码常量
const (
	ErrorCodeInvalidConfig   = "INVALID_CONFIG"   // 配置无效，计算前拒绝
	ErrorCodeInvalidInput    = "INVALID_INPUT"    // 输入无效
	ErrorCodeEmptyCandidates = "EMPTY_CANDIDATES" // 无候选
	ErrorCodeNotFound        = "NOT_FOUND"        // 资源不存在
)

// 模块名称常量
const (
	ModuleConfig  = "config"
	ModuleRecall  = "recall"
	ModuleScoring = "scoring"
	ModuleElectre = "electre"
	ModuleStore   = "store"
)

var (
	// ErrConfiguration 是所有配置错误的哨兵值，用于 errors.Is。
	ErrConfiguration = NewDomainError(ModuleConfig, ErrorCodeInvalidConfig, "invalid configuration")

	// ErrEmptyCandidateSet 表示检索（含放宽阈值重试）后没有任何候选。
	ErrEmptyCandidateSet = NewDomainError(ModuleRecall, ErrorCodeEmptyCandidates, "recall: no candidates found")
)

// NewConfigError 创建配置错误，errors.Is(err, ErrConfiguration) 为 true。
func NewConfigError(message string) *DomainError {
	return NewDomainError(ModuleConfig, ErrorCodeInvalidConfig, message)
}

// IsConfigurationError 检查错误是否为配置错误
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsEmptyCandidateSet 检查错误是否为无候选
func IsEmptyCandidateSet(err error) bool {
	return errors.Is(err, ErrEmptyCandidateSet)
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == ErrorCodeInvalidInput
	}
	return false
}
