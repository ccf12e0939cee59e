package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/gateway/internal/domain"
	"tempmail/gateway/internal/referral"
	"tempmail/gateway/internal/service"
	"tempmail/gateway/internal/upstream"
)

// 客户端可见的错误消息，不包含上游细节
const (
	MsgNotFound            = "Not found"
	MsgInternalError       = "Internal server error"
	MsgInvalidEmail        = "Invalid email address format"
	MsgInvalidEmailID      = "Invalid email ID"
	MsgInvalidAttachmentID = "Invalid attachment ID"
	MsgEmailNotFound       = "Email not found"
	MsgInboxNotFound       = "Inbox not found"
	MsgAttachmentNotFound  = "Attachment not found"
	MsgProviderRejected    = "Request rejected by mail provider"
	MsgProviderUnavailable = "Mail provider unavailable"
	MsgReferralNotFound    = "Referral code not found"
	MsgSelfReferral        = "Cannot claim your own referral code"
	MsgAlreadyClaimed      = "Referral code already claimed"
	MsgEmailDeleted        = "Email deleted successfully"
	MsgInboxDeleted        = "Inbox cleared successfully"
)

// errorScope 描述错误发生的端点，用于选择 404 文案与 5xx 状态码
type errorScope struct {
	op       string
	notFound string
	readPath bool // 读取类端点在上游 5xx 时返回 502
}

var (
	scopeDomains     = errorScope{op: "list_domains", notFound: MsgNotFound}
	scopeInbox       = errorScope{op: "list_inbox", notFound: MsgInboxNotFound, readPath: true}
	scopeDeleteInbox = errorScope{op: "delete_inbox", notFound: MsgInboxNotFound} // 404 已在 service 层转换为 0 封
	scopeEmail       = errorScope{op: "get_email", notFound: MsgEmailNotFound, readPath: true}
	scopeDeleteEmail = errorScope{op: "delete_email", notFound: MsgEmailNotFound}
	scopeAttachment  = errorScope{op: "get_attachment", notFound: MsgAttachmentNotFound, readPath: true}
	scopeReferral    = errorScope{op: "claim_referral", notFound: MsgReferralNotFound}
)

// writeError 将业务错误映射为 HTTP 响应
func (h *Handler) writeError(c *gin.Context, scope errorScope, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAttachmentID):
		BadRequest(c, MsgInvalidAttachmentID)
	case errors.Is(err, domain.ErrInvalidEmail):
		BadRequest(c, MsgInvalidEmail)
	case errors.Is(err, domain.ErrInvalidID):
		BadRequest(c, MsgInvalidEmailID)

	case errors.Is(err, upstream.ErrNotFound):
		NotFound(c, scope.notFound)
	case errors.Is(err, upstream.ErrClient):
		status := upstream.StatusOf(err)
		if status < 400 || status > 499 {
			status = http.StatusBadRequest
		}
		Error(c, status, MsgProviderRejected)
	case errors.Is(err, upstream.ErrUnavailable):
		if scope.readPath && upstream.StatusOf(err) >= 500 {
			BadGateway(c, MsgProviderUnavailable)
			return
		}
		InternalError(c)

	case errors.Is(err, referral.ErrReferralNotFound):
		NotFound(c, MsgReferralNotFound)
	case errors.Is(err, referral.ErrSelfReferral):
		BadRequest(c, MsgSelfReferral)
	case errors.Is(err, referral.ErrAlreadyClaimed):
		Conflict(c, MsgAlreadyClaimed)

	default:
		h.logger.Error("unhandled error",
			zap.String("op", scope.op),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		InternalError(c)
	}
}
