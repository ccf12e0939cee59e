package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tempmail/gateway/internal/referral"
)

// 推荐码领取结果标签
const (
	claimSuccess   = "success"
	claimNotFound  = "not_found"
	claimSelf      = "self_referral"
	claimDuplicate = "duplicate"
	claimFailed    = "error"
)

// sessionID 从 sid 查询参数获取会话标识
func sessionID(c *gin.Context) string {
	return referral.SessionID(c.Query("sid"))
}

// createReferral 创建或获取当前会话的推荐码
//
// @Summary 获取推荐码
// @Tags Referral
// @Produce json
// @Param sid query string false "会话标识"
// @Success 200 {object} ReferralResponse
// @Router /api/referral/create [get]
func (h *Handler) createReferral(c *gin.Context) {
	rec := h.referrals.CreateOrGet(sessionID(c))
	c.JSON(http.StatusOK, ReferralResponse{
		ReferralCode: rec.ReferralCode,
		Referrals:    rec.Referrals,
		BonusEmails:  rec.BonusEmails,
	})
}

// referralStats 获取当前会话的推荐统计
//
// @Summary 推荐统计
// @Tags Referral
// @Produce json
// @Param sid query string false "会话标识"
// @Success 200 {object} domain.ReferralStats
// @Router /api/referral/stats [get]
func (h *Handler) referralStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.referrals.Stats(sessionID(c)))
}

// claimReferral 领取推荐码，奖励归推荐码所属会话
//
// @Summary 领取推荐码
// @Tags Referral
// @Produce json
// @Param code path string true "推荐码"
// @Param sid query string false "领取者会话标识"
// @Success 200 {object} referral.ClaimResult
// @Router /api/referral/claim/{code} [post]
func (h *Handler) claimReferral(c *gin.Context) {
	result, err := h.referrals.Claim(c.Param("code"), sessionID(c))
	h.metrics.RecordReferralClaim(claimOutcome(err))
	if err != nil {
		h.writeError(c, scopeReferral, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func claimOutcome(err error) string {
	switch err {
	case nil:
		return claimSuccess
	case referral.ErrReferralNotFound:
		return claimNotFound
	case referral.ErrSelfReferral:
		return claimSelf
	case referral.ErrAlreadyClaimed:
		return claimDuplicate
	default:
		return claimFailed
	}
}
