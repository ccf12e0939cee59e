package domain

// Referral 表示一个会话的推荐记录
//
// Referrals 与 BonusEmails 在进程生命周期内只增不减。
type Referral struct {
	ID           string `json:"id"`           // 会话标识
	ReferralCode string `json:"referralCode"` // 可分享的推荐码
	CreatedAt    int64  `json:"createdAt"`    // 毫秒时间戳
	Referrals    int    `json:"referrals"`    // 成功领取次数
	BonusEmails  int    `json:"bonusEmails"`  // 累计奖励额度
}

// ReferralStats 推荐统计投影
type ReferralStats struct {
	TotalReferrals int    `json:"totalReferrals"`
	BonusEmails    int    `json:"bonusEmails"`
	ReferralCode   string `json:"referralCode"`
}

// Stats 返回记录的统计投影
func (r Referral) Stats() ReferralStats {
	return ReferralStats{
		TotalReferrals: r.Referrals,
		BonusEmails:    r.BonusEmails,
		ReferralCode:   r.ReferralCode,
	}
}
