package service

import (
	"errors"
	"fmt"
)

// ErrorKind 服务层错误分类，由 handler 统一映射为 HTTP 状态码
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidInput
	KindInvalidIdentifier
	KindNotFound
	KindValidation
	KindStorage
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindInvalidIdentifier:
		return "invalid_identifier"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation_failure"
	case KindStorage:
		return "storage_failure"
	default:
		return "unknown"
	}
}

// Error 带分类的服务错误。Message 可直接返回给客户端，Err 仅用于诊断。
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is 同 Kind 即视为相等，便于 errors.Is(err, ErrNotFound)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrInvalidIdentifier = &Error{Kind: KindInvalidIdentifier}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrStorage           = &Error{Kind: KindStorage}
)

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf 取出错误分类，非 *Error 返回 KindUnknown
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// MessageOf 返回可对外展示的错误文案
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}
