package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrSchemaViolation 上游数据不符合内部结构
var ErrSchemaViolation = errors.New("schema violation")

// 必填字段（不可为 null）与可空字段（必须出现，可为 null）
var (
	summaryRequired    = []string{"id", "from_address", "to_address", "received_at"}
	summaryNullable    = []string{"subject"}
	emailNullable      = []string{"subject", "html_content", "text_content"}
	attachmentRequired = []string{"id", "filename"}
)

// DefaultAttachmentContentType 上游未提供 MIME 类型时使用
const DefaultAttachmentContentType = "application/octet-stream"

// SchemaValidator 将上游 JSON 校验并转换为内部实体
//
// 缺省值：has_attachments=false，attachment_count=0，attachments=[]。
// 无副作用，可并发使用。
type SchemaValidator struct {
	validate *validator.Validate
}

// NewSchemaValidator 创建结构校验器
func NewSchemaValidator() *SchemaValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &SchemaValidator{validate: v}
}

// ParseEmailSummary 校验单条收件箱记录
func (v *SchemaValidator) ParseEmailSummary(raw json.RawMessage) (EmailSummary, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return EmailSummary{}, err
	}
	if err := checkFields(fields, summaryRequired, summaryNullable); err != nil {
		return EmailSummary{}, err
	}

	var s EmailSummary
	if err := decodeInto(raw, &s); err != nil {
		return EmailSummary{}, err
	}
	if err := v.check(s); err != nil {
		return EmailSummary{}, err
	}
	return s, nil
}

// ParseEmailSummaries 校验收件箱列表，null 视为空列表
func (v *SchemaValidator) ParseEmailSummaries(raw json.RawMessage) ([]EmailSummary, error) {
	items, err := decodeArray(raw)
	if err != nil {
		return nil, err
	}

	out := make([]EmailSummary, 0, len(items))
	for i, item := range items {
		s, err := v.ParseEmailSummary(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// ParseEmail 校验完整邮件
func (v *SchemaValidator) ParseEmail(raw json.RawMessage) (Email, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return Email{}, err
	}
	if err := checkFields(fields, summaryRequired, emailNullable); err != nil {
		return Email{}, err
	}

	var e Email
	if err := decodeInto(raw, &e); err != nil {
		return Email{}, err
	}
	if err := v.check(e.EmailSummary); err != nil {
		return Email{}, err
	}

	// 附件逐条校验，以便检查字段是否出现
	e.Attachments = []Attachment{}
	if rawAttachments, ok := fields["attachments"]; ok {
		items, err := decodeArray(rawAttachments)
		if err != nil {
			return Email{}, fmt.Errorf("attachments: %w", err)
		}
		for i, item := range items {
			a, err := v.ParseAttachment(item)
			if err != nil {
				return Email{}, fmt.Errorf("attachments[%d]: %w", i, err)
			}
			e.Attachments = append(e.Attachments, a)
		}
	}
	return e, nil
}

// ParseAttachment 校验附件元数据
func (v *SchemaValidator) ParseAttachment(raw json.RawMessage) (Attachment, error) {
	fields, err := decodeObject(raw)
	if err != nil {
		return Attachment{}, err
	}
	if err := checkFields(fields, attachmentRequired, nil); err != nil {
		return Attachment{}, err
	}

	var a Attachment
	if err := decodeInto(raw, &a); err != nil {
		return Attachment{}, err
	}
	if a.ContentType == "" {
		a.ContentType = DefaultAttachmentContentType
	}
	if err := v.check(a); err != nil {
		return Attachment{}, err
	}
	return a, nil
}

// ParseDomains 校验域名列表
//
// 元素可以是字符串，也可以是带 domain 字段的对象。
func (v *SchemaValidator) ParseDomains(raw json.RawMessage) ([]string, error) {
	items, err := decodeArray(raw)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		var name string
		if err := json.Unmarshal(item, &name); err != nil {
			var obj struct {
				Domain string `json:"domain"`
			}
			if err := json.Unmarshal(item, &obj); err != nil {
				return nil, fmt.Errorf("%w: domain %d has wrong type", ErrSchemaViolation, i)
			}
			name = obj.Domain
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: domain %d is empty", ErrSchemaViolation, i)
		}
		out = append(out, name)
	}
	return out, nil
}

func (v *SchemaValidator) check(value interface{}) error {
	err := v.validate.Struct(value)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: field %q failed %q", ErrSchemaViolation, verrs[0].Field(), verrs[0].Tag())
	}
	return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: expected object", ErrSchemaViolation)
	}
	return fields, nil
}

func decodeArray(raw json.RawMessage) ([]json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 || isNull(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: expected array", ErrSchemaViolation)
	}
	return items, nil
}

func decodeInto(raw json.RawMessage, dst interface{}) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: field %q has wrong type", ErrSchemaViolation, typeErr.Field)
		}
		return fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	return nil
}

func checkFields(fields map[string]json.RawMessage, required, nullable []string) error {
	for _, key := range required {
		value, ok := fields[key]
		if !ok || isNull(value) {
			return fmt.Errorf("%w: missing field %q", ErrSchemaViolation, key)
		}
	}
	for _, key := range nullable {
		if _, ok := fields[key]; !ok {
			return fmt.Errorf("%w: missing field %q", ErrSchemaViolation, key)
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
