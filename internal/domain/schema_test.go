package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidator_ParseEmailSummary(t *testing.T) {
	v := NewSchemaValidator()

	t.Run("缺省字段使用默认值", func(t *testing.T) {
		raw := json.RawMessage(`{
			"id": "m1",
			"from_address": "alice@example.com",
			"to_address": "bob@barid.site",
			"subject": "hello",
			"received_at": 1700000000
		}`)

		s, err := v.ParseEmailSummary(raw)
		require.NoError(t, err)
		assert.Equal(t, "m1", s.ID)
		assert.Equal(t, "hello", *s.Subject)
		assert.Equal(t, int64(1700000000), s.ReceivedAt)
		assert.False(t, s.HasAttachments)
		assert.Equal(t, 0, s.AttachmentCount)
	})

	t.Run("subject 可以为 null", func(t *testing.T) {
		raw := json.RawMessage(`{"id":"m1","from_address":"a","to_address":"b","subject":null,"received_at":1}`)

		s, err := v.ParseEmailSummary(raw)
		require.NoError(t, err)
		assert.Nil(t, s.Subject)
	})

	t.Run("from_address 不必是合法邮箱", func(t *testing.T) {
		raw := json.RawMessage(`{"id":"m1","from_address":"Mailer Daemon","to_address":"x","subject":null,"received_at":1}`)

		s, err := v.ParseEmailSummary(raw)
		require.NoError(t, err)
		assert.Equal(t, "Mailer Daemon", s.FromAddress)
	})

	failures := []struct {
		name string
		raw  string
	}{
		{"缺少 subject", `{"id":"m1","from_address":"a","to_address":"b","received_at":1}`},
		{"缺少 id", `{"from_address":"a","to_address":"b","subject":null,"received_at":1}`},
		{"id 为空字符串", `{"id":"","from_address":"a","to_address":"b","subject":null,"received_at":1}`},
		{"from_address 为 null", `{"id":"m1","from_address":null,"to_address":"b","subject":null,"received_at":1}`},
		{"缺少 received_at", `{"id":"m1","from_address":"a","to_address":"b","subject":null}`},
		{"received_at 类型错误", `{"id":"m1","from_address":"a","to_address":"b","subject":null,"received_at":"yesterday"}`},
		{"received_at 不是整数", `{"id":"m1","from_address":"a","to_address":"b","subject":null,"received_at":1.5}`},
		{"id 类型错误", `{"id":42,"from_address":"a","to_address":"b","subject":null,"received_at":1}`},
		{"attachment_count 为负数", `{"id":"m1","from_address":"a","to_address":"b","subject":null,"received_at":1,"attachment_count":-1}`},
		{"不是对象", `["m1"]`},
		{"null", `null`},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ParseEmailSummary(json.RawMessage(tt.raw))
			assert.ErrorIs(t, err, ErrSchemaViolation)
		})
	}
}

func TestSchemaValidator_ParseEmailSummaries(t *testing.T) {
	v := NewSchemaValidator()

	list, err := v.ParseEmailSummaries(json.RawMessage(`[]`))
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)

	list, err = v.ParseEmailSummaries(json.RawMessage(`null`))
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = v.ParseEmailSummaries(json.RawMessage(`[
		{"id":"m1","from_address":"a","to_address":"b","subject":"s","received_at":1,"has_attachments":true,"attachment_count":2},
		{"id":"m2","from_address":"a","to_address":"b","subject":null,"received_at":2}
	]`))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].HasAttachments)
	assert.Equal(t, 2, list[0].AttachmentCount)
	assert.Equal(t, "m2", list[1].ID)

	_, err = v.ParseEmailSummaries(json.RawMessage(`[{"id":"m1"}]`))
	assert.ErrorIs(t, err, ErrSchemaViolation)

	_, err = v.ParseEmailSummaries(json.RawMessage(`{"id":"m1"}`))
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestSchemaValidator_ParseEmail(t *testing.T) {
	v := NewSchemaValidator()

	t.Run("完整邮件", func(t *testing.T) {
		raw := json.RawMessage(`{
			"id": "m1",
			"from_address": "alice@example.com",
			"to_address": "bob@barid.site",
			"subject": "report",
			"received_at": 1700000000,
			"has_attachments": true,
			"attachment_count": 1,
			"html_content": "<p>hi</p>",
			"text_content": null,
			"attachments": [
				{"id": "a1", "filename": "report.pdf", "content_type": "application/pdf", "size": 2048}
			]
		}`)

		e, err := v.ParseEmail(raw)
		require.NoError(t, err)
		assert.Equal(t, "<p>hi</p>", *e.HTMLContent)
		assert.Nil(t, e.TextContent)
		require.Len(t, e.Attachments, 1)
		assert.Equal(t, "report.pdf", e.Attachments[0].Filename)
		assert.Equal(t, int64(2048), e.Attachments[0].Size)
	})

	t.Run("attachments 缺省为空列表", func(t *testing.T) {
		raw := json.RawMessage(`{"id":"m1","from_address":"a","to_address":"b","subject":null,"received_at":1,"html_content":null,"text_content":"plain"}`)

		e, err := v.ParseEmail(raw)
		require.NoError(t, err)
		assert.NotNil(t, e.Attachments)
		assert.Empty(t, e.Attachments)
		assert.False(t, e.HasAttachments)
		assert.Equal(t, 0, e.AttachmentCount)
	})

	t.Run("附件缺省 MIME 类型", func(t *testing.T) {
		raw := json.RawMessage(`{"id":"m1","from_address":"a","to_address":"b","subject":null,"received_at":1,"html_content":null,"text_content":null,
			"attachments":[{"id":"a1","filename":"blob"}]}`)

		e, err := v.ParseEmail(raw)
		require.NoError(t, err)
		assert.Equal(t, DefaultAttachmentContentType, e.Attachments[0].ContentType)
	})

	failures := []struct {
		name string
		raw  string
	}{
		{"缺少 html_content", `{"id":"m1","from_address":"a","to_address":"b","subject":null,"received_at":1,"text_content":null}`},
		{"缺少 text_content", `{"id":"m1","from_address":"a","to_address":"b","subject":null,"received_at":1,"html_content":null}`},
		{"缺少 subject", `{"id":"m1","from_address":"a","to_address":"b","received_at":1,"html_content":null,"text_content":null}`},
		{"附件缺少 id", `{"id":"m1","from_address":"a","to_address":"b","subject":null,"received_at":1,"html_content":null,"text_content":null,"attachments":[{"filename":"x"}]}`},
		{"附件大小为负", `{"id":"m1","from_address":"a","to_address":"b","subject":null,"received_at":1,"html_content":null,"text_content":null,"attachments":[{"id":"a1","filename":"x","size":-5}]}`},
		{"attachments 不是数组", `{"id":"m1","from_address":"a","to_address":"b","subject":null,"received_at":1,"html_content":null,"text_content":null,"attachments":"none"}`},
	}

	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ParseEmail(json.RawMessage(tt.raw))
			assert.ErrorIs(t, err, ErrSchemaViolation)
		})
	}
}

func TestSchemaValidator_ParseDomains(t *testing.T) {
	v := NewSchemaValidator()

	domains, err := v.ParseDomains(json.RawMessage(`["barid.site", " example.com "]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"barid.site", "example.com"}, domains)

	domains, err = v.ParseDomains(json.RawMessage(`[{"domain":"barid.site"},"example.com"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"barid.site", "example.com"}, domains)

	_, err = v.ParseDomains(json.RawMessage(`[""]`))
	assert.ErrorIs(t, err, ErrSchemaViolation)

	_, err = v.ParseDomains(json.RawMessage(`[42]`))
	assert.ErrorIs(t, err, ErrSchemaViolation)

	_, err = v.ParseDomains(json.RawMessage(`"barid.site"`))
	assert.ErrorIs(t, err, ErrSchemaViolation)
}
