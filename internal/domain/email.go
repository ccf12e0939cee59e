package domain

// EmailSummary 表示收件箱列表中的一行，字段名与上游保持一致。
type EmailSummary struct {
	ID              string  `json:"id" validate:"required"`
	FromAddress     string  `json:"from_address"`
	ToAddress       string  `json:"to_address"`
	Subject         *string `json:"subject"`
	ReceivedAt      int64   `json:"received_at"` // Unix 秒
	HasAttachments  bool    `json:"has_attachments"`
	AttachmentCount int     `json:"attachment_count" validate:"gte=0"`
}

// Email 表示完整邮件，包含正文与附件元数据。
type Email struct {
	EmailSummary
	HTMLContent *string      `json:"html_content"`
	TextContent *string      `json:"text_content"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment 表示附件元数据，内容按需从上游流式读取。
type Attachment struct {
	ID          string `json:"id" validate:"required"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size" validate:"gte=0"`
}
