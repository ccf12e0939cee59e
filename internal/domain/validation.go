package domain

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// 验证相关的错误定义
var (
	ErrInvalidEmail = errors.New("invalid email format")
	ErrInvalidID    = errors.New("invalid id format")
)

// 验证常量
const (
	// RFC 5321 邮箱地址长度限制
	MaxEmailLength = 254
	// 上游邮件与附件ID的最大长度
	MaxIDLength = 128
)

// EmailValidator 校验路径参数中的邮箱地址与ID
type EmailValidator struct {
	validate *validator.Validate
}

// NewEmailValidator 创建邮箱验证器
func NewEmailValidator() *EmailValidator {
	return &EmailValidator{validate: validator.New()}
}

// ValidateEmail 校验邮箱地址格式
func (v *EmailValidator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > MaxEmailLength {
		return ErrInvalidEmail
	}
	if err := v.validate.Var(email, "email"); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateID 校验上游不透明ID
//
// ID 会被拼接进上游 URL 路径，因此拒绝分隔符、空白与控制字符。
func (v *EmailValidator) ValidateID(id string) error {
	if id == "" || len(id) > MaxIDLength {
		return ErrInvalidID
	}
	for _, r := range id {
		if r == '/' || r == '\\' || r == '?' || r == '#' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrInvalidID
		}
	}
	if id == "." || id == ".." {
		return ErrInvalidID
	}
	return nil
}
