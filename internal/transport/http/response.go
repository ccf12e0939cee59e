package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse 统一错误响应结构
type ErrorResponse struct {
	Error string `json:"error"`
}

// DeleteResponse 删除操作的响应
type DeleteResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount *int   `json:"deleted_count,omitempty"`
}

// ReferralResponse 创建或获取推荐码的响应
type ReferralResponse struct {
	ReferralCode string `json:"referralCode"`
	Referrals    int    `json:"referrals"`
	BonusEmails  int    `json:"bonusEmails"`
}

// Error 错误响应
func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, ErrorResponse{Error: msg})
}

// BadRequest 请求参数错误（400）
func BadRequest(c *gin.Context, msg string) {
	Error(c, http.StatusBadRequest, msg)
}

// NotFound 资源不存在（404）
func NotFound(c *gin.Context, msg string) {
	Error(c, http.StatusNotFound, msg)
}

// Conflict 资源冲突（409）
func Conflict(c *gin.Context, msg string) {
	Error(c, http.StatusConflict, msg)
}

// InternalError 服务器内部错误（500）
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, MsgInternalError)
}

// BadGateway 服务商不可用（502）
func BadGateway(c *gin.Context, msg string) {
	Error(c, http.StatusBadGateway, msg)
}
