package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrEmptyInput         = errors.New("文档无可用文本")
	ErrExtractionFailed   = errors.New("提取文档文本失败")
	ErrUnsupportedFormat  = errors.New("不支持的文档格式")
	ErrBackendUnavailable = errors.New("模型后端不可用")
	ErrIndexBuildFailed   = errors.New("构建向量索引失败")
	ErrStoreFailed        = errors.New("存储画像失败")
	ErrPublishFailed      = errors.New("发布事件失败")
	ErrDatabaseFailed     = errors.New("数据库操作失败")
)

// ProfileProcessError 包含详细错误信息的自定义错误
type ProfileProcessError struct {
	ProfileUUID string
	Op          string
	BaseErr     error
	Detail      string
}

func (e *ProfileProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, UUID:%s): %s", e.BaseErr, e.Op, e.ProfileUUID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, UUID:%s)", e.BaseErr, e.Op, e.ProfileUUID)
}

func (e *ProfileProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ProfileProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewEmptyInputError(uuid, detail string) error {
	return &ProfileProcessError{
		ProfileUUID: uuid,
		Op:          "validate",
		BaseErr:     ErrEmptyInput,
		Detail:      detail,
	}
}

func NewExtractionError(uuid, detail string) error {
	return &ProfileProcessError{
		ProfileUUID: uuid,
		Op:          "extract",
		BaseErr:     ErrExtractionFailed,
		Detail:      detail,
	}
}

func NewBackendError(uuid, detail string) error {
	return &ProfileProcessError{
		ProfileUUID: uuid,
		Op:          "llm",
		BaseErr:     ErrBackendUnavailable,
		Detail:      detail,
	}
}

func NewIndexError(uuid, detail string) error {
	return &ProfileProcessError{
		ProfileUUID: uuid,
		Op:          "index",
		BaseErr:     ErrIndexBuildFailed,
		Detail:      detail,
	}
}

func NewStoreError(uuid, detail string) error {
	return &ProfileProcessError{
		ProfileUUID: uuid,
		Op:          "store",
		BaseErr:     ErrStoreFailed,
		Detail:      detail,
	}
}

func NewPublishError(uuid, detail string) error {
	return &ProfileProcessError{
		ProfileUUID: uuid,
		Op:          "publish",
		BaseErr:     ErrPublishFailed,
		Detail:      detail,
	}
}

func NewDatabaseError(uuid, detail string) error {
	return &ProfileProcessError{
		ProfileUUID: uuid,
		Op:          "database",
		BaseErr:     ErrDatabaseFailed,
		Detail:      detail,
	}
}
