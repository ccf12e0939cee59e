package httptransport

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"tempmail/gateway/internal/domain"
)

// listDomains 获取可用域名列表
//
// @Summary 获取可用域名列表
// @Tags Mail
// @Produce json
// @Success 200 {array} string
// @Header 200 {string} X-Cache "HIT 或 MISS"
// @Router /api/domains [get]
func (h *Handler) listDomains(c *gin.Context) {
	domains, status, err := h.mail.Domains(c.Request.Context())
	if err != nil {
		h.writeError(c, scopeDomains, err)
		return
	}
	if domains == nil {
		domains = []string{}
	}

	c.Header("X-Cache", string(status))
	c.JSON(http.StatusOK, domains)
}

// listInbox 获取地址下的邮件列表
//
// @Summary 获取收件箱
// @Tags Mail
// @Produce json
// @Param email path string true "邮箱地址"
// @Success 200 {array} domain.EmailSummary
// @Router /api/inbox/{email} [get]
func (h *Handler) listInbox(c *gin.Context) {
	emails, err := h.mail.Inbox(c.Request.Context(), c.Param("email"))
	if err != nil {
		h.writeError(c, scopeInbox, err)
		return
	}
	if emails == nil {
		emails = []domain.EmailSummary{}
	}
	c.JSON(http.StatusOK, emails)
}

// deleteInbox 清空地址下的邮件
//
// @Summary 清空收件箱
// @Tags Mail
// @Produce json
// @Param email path string true "邮箱地址"
// @Success 200 {object} DeleteResponse
// @Router /api/inbox/{email} [delete]
func (h *Handler) deleteInbox(c *gin.Context) {
	deleted, err := h.mail.DeleteInbox(c.Request.Context(), c.Param("email"))
	if err != nil {
		h.writeError(c, scopeDeleteInbox, err)
		return
	}
	c.JSON(http.StatusOK, DeleteResponse{
		Success:      true,
		Message:      MsgInboxDeleted,
		DeletedCount: &deleted,
	})
}

// getEmail 获取邮件详情
//
// @Summary 获取邮件详情
// @Tags Mail
// @Produce json
// @Param id path string true "邮件ID"
// @Success 200 {object} domain.Email
// @Router /api/email/{id} [get]
func (h *Handler) getEmail(c *gin.Context) {
	email, err := h.mail.Email(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, scopeEmail, err)
		return
	}
	c.JSON(http.StatusOK, email)
}

// deleteEmail 删除单封邮件
//
// @Summary 删除邮件
// @Tags Mail
// @Produce json
// @Param id path string true "邮件ID"
// @Success 200 {object} DeleteResponse
// @Router /api/email/{id} [delete]
func (h *Handler) deleteEmail(c *gin.Context) {
	if err := h.mail.DeleteEmail(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, scopeDeleteEmail, err)
		return
	}
	c.JSON(http.StatusOK, DeleteResponse{
		Success: true,
		Message: MsgEmailDeleted,
	})
}

// downloadAttachment 以流的方式转发附件
//
// @Summary 下载附件
// @Tags Mail
// @Produce octet-stream
// @Param emailId path string true "邮件ID"
// @Param attachmentId path string true "附件ID"
// @Success 200 {file} binary
// @Router /api/attachment/{emailId}/{attachmentId} [get]
func (h *Handler) downloadAttachment(c *gin.Context) {
	attachmentID := c.Param("attachmentId")

	stream, err := h.mail.Attachment(c.Request.Context(), c.Param("emailId"), attachmentID)
	if err != nil {
		h.writeError(c, scopeAttachment, err)
		return
	}
	defer stream.Body.Close()

	contentType := stream.ContentType
	if contentType == "" {
		contentType = domain.DefaultAttachmentContentType
	}
	disposition := stream.ContentDisposition
	if disposition == "" {
		disposition = fmt.Sprintf("attachment; filename=%q", attachmentID)
	}

	c.DataFromReader(http.StatusOK, stream.ContentLength, contentType, stream.Body, map[string]string{
		"Content-Disposition": disposition,
	})
}
