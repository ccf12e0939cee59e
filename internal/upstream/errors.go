package upstream

import (
	"errors"
	"fmt"
)

// 上游错误分类
var (
	ErrNotFound    = errors.New("upstream: not found")
	ErrClient      = errors.New("upstream: client error")
	ErrUnavailable = errors.New("upstream: unavailable")
)

// Error 描述一次失败的上游调用
//
// Kind 为上面的分类哨兵之一，Status 为上游 HTTP 状态码（无响应时为 0）。
type Error struct {
	Op     string
	Kind   error
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is 支持 errors.Is(err, ErrNotFound) 等判断
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusOf 返回上游状态码，非上游错误返回 0
func StatusOf(err error) int {
	var upErr *Error
	if errors.As(err, &upErr) {
		return upErr.Status
	}
	return 0
}

// classifyStatus 按上游 HTTP 状态码分类
func classifyStatus(op string, status int) *Error {
	switch {
	case status == 404:
		return &Error{Op: op, Kind: ErrNotFound, Status: status}
	case status >= 400 && status < 500:
		return &Error{Op: op, Kind: ErrClient, Status: status}
	default:
		return &Error{Op: op, Kind: ErrUnavailable, Status: status}
	}
}
